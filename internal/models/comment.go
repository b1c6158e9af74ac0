package models

import (
	"time"
)

// CommentStatus defines lifecycle states for article comments.
type CommentStatus string

const (
	// CommentStatusPending indicates the comment awaits human review.
	CommentStatusPending CommentStatus = "pending"
	// CommentStatusApproved indicates the comment is publicly visible.
	CommentStatusApproved CommentStatus = "approved"
	// CommentStatusRejected indicates the comment was refused. The author
	// may appeal a rejection.
	CommentStatusRejected CommentStatus = "rejected"
	// CommentStatusArchived is the terminal soft-delete state used when a
	// comment with existing replies is removed. Content is redacted.
	CommentStatusArchived CommentStatus = "archived"
)

// ArchivedContent replaces the body of an archived comment.
const ArchivedContent = "[removed]"

// Comment is a user-authored remark on an article, optionally nested under
// a parent comment.
type Comment struct {
	ID        uint          `gorm:"primaryKey" json:"id"`
	ArticleID uint          `gorm:"not null;index" json:"article_id"`
	Article   *Article      `gorm:"foreignKey:ArticleID" json:"article,omitempty"`
	UserID    uint          `gorm:"not null;index" json:"user_id"`
	User      *User         `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ParentID  *uint         `gorm:"index" json:"parent_id,omitempty"`
	Parent    *Comment      `gorm:"foreignKey:ParentID" json:"parent,omitempty"`
	Content   string        `gorm:"type:text;not null" json:"content"`
	Status    CommentStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`

	// Classifier verdict, stamped once when the comment is submitted.
	AICategory    string    `gorm:"size:60" json:"ai_category"`
	AIRiskScore   float64   `json:"ai_risk_score"`
	AIConfidence  float64   `json:"ai_confidence"`
	AIReasons     []string  `gorm:"serializer:json" json:"ai_reasons"`
	AIProcessed   bool      `gorm:"column:ai_processed;default:false" json:"ai_processed"`
	AIProcessedAt *time.Time `gorm:"column:ai_processed_at" json:"ai_processed_at,omitempty"`

	// Human review metadata, set by the moderation or appeal services.
	ReviewedByID *uint      `gorm:"index" json:"reviewed_by,omitempty"`
	ReviewedBy   *User      `gorm:"foreignKey:ReviewedByID" json:"reviewer,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	ReviewNotes  string     `gorm:"type:text" json:"review_notes"`

	// ReplyCount counts direct children with status approved. Mutated only
	// inside the moderation transaction.
	ReplyCount  int  `gorm:"not null;default:0" json:"reply_count"`
	LikeCount   int  `gorm:"not null;default:0" json:"like_count"`
	ReportCount int  `gorm:"not null;default:0" json:"report_count"`
	IsEdited    bool `gorm:"default:false" json:"is_edited"`
	EditedAt    *time.Time `json:"edited_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidStatus reports whether s is one of the four comment states.
func ValidStatus(s CommentStatus) bool {
	switch s {
	case CommentStatusPending, CommentStatusApproved, CommentStatusRejected, CommentStatusArchived:
		return true
	}
	return false
}
