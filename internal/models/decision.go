package models

import "time"

// Feedback types for classifier training rows.
const (
	FeedbackConfirmation = "confirmation"
	FeedbackCorrection   = "correction"
)

// ModerationDecision records one human moderation decision against the
// classifier's verdict, for later retraining. Append-only.
type ModerationDecision struct {
	ID            uint          `gorm:"primaryKey" json:"id"`
	CommentID     uint          `gorm:"not null;index" json:"comment_id"`
	Content       string        `gorm:"type:text;not null" json:"content"`
	AIPrediction  CommentStatus `gorm:"type:varchar(20)" json:"ai_prediction"`
	AICategory    string        `gorm:"size:60" json:"ai_category"`
	AIConfidence  float64       `json:"ai_confidence"`
	HumanDecision CommentStatus `gorm:"type:varchar(20);not null" json:"human_decision"`
	// FeedbackType is "confirmation" when the human agreed with the
	// classifier's suggestion, "correction" otherwise.
	FeedbackType string    `gorm:"size:20;not null" json:"feedback_type"`
	AdminID      uint      `gorm:"not null;index" json:"admin_id"`
	CreatedAt    time.Time `json:"created_at"`
}
