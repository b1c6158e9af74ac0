package models

import "time"

// AppealStatus defines lifecycle states for comment appeals.
type AppealStatus string

const (
	// AppealStatusPending indicates the appeal is awaiting admin review.
	AppealStatusPending AppealStatus = "pending"
	// AppealStatusAccepted indicates the appeal was accepted and the
	// comment re-approved.
	AppealStatusAccepted AppealStatus = "accepted"
	// AppealStatusRejected indicates the appeal was denied. Terminal; the
	// rejection of the comment stands.
	AppealStatusRejected AppealStatus = "rejected"
)

// Appeal is an author-submitted request to re-review a rejected comment.
// At most one pending appeal may exist per (comment, user).
type Appeal struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	CommentID    uint         `gorm:"not null;index:idx_appeals_comment_user" json:"comment_id"`
	Comment      *Comment     `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
	UserID       uint         `gorm:"not null;index:idx_appeals_comment_user" json:"user_id"`
	User         *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reason       string       `gorm:"type:text" json:"reason"`
	Status       AppealStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewedByID *uint        `json:"reviewed_by,omitempty"`
	ReviewedBy   *User        `gorm:"foreignKey:ReviewedByID" json:"reviewer,omitempty"`
	ReviewedAt   *time.Time   `json:"reviewed_at,omitempty"`
	AdminNotes   string       `gorm:"type:text" json:"admin_notes"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
