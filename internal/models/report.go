package models

import "time"

// ReportStatus defines lifecycle states for third-party comment reports.
type ReportStatus string

const (
	ReportStatusPending   ReportStatus = "pending"
	ReportStatusResolved  ReportStatus = "resolved"
	ReportStatusDismissed ReportStatus = "dismissed"
)

// Report is a third-party flag on a comment. It is a separate track from
// appeals: any user may report, and a report never transitions the comment
// itself.
type Report struct {
	ID           uint         `gorm:"primaryKey" json:"id"`
	CommentID    uint         `gorm:"not null;index" json:"comment_id"`
	Comment      *Comment     `gorm:"foreignKey:CommentID" json:"comment,omitempty"`
	UserID       uint         `gorm:"not null;index" json:"user_id"`
	User         *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reason       string       `gorm:"size:120;not null" json:"reason"`
	Description  string       `gorm:"type:text" json:"description"`
	Status       ReportStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ReviewedByID *uint        `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time   `json:"reviewed_at,omitempty"`
	AdminNotes   string       `gorm:"type:text" json:"admin_notes"`
	CreatedAt    time.Time    `json:"created_at"`
}
