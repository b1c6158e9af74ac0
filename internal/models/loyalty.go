package models

import "time"

// Loyalty actions awarded by the moderation engine.
const (
	LoyaltyActionComment = "comment"
	LoyaltyActionReply   = "reply"
)

// Points per action.
const (
	PointsComment = 10
	PointsReply   = 5
)

// LoyaltyPoint is an append-only ledger entry recording points awarded for
// an action. The unique index on (user, action, reference) makes awards
// idempotent: re-firing the same award is a no-op.
type LoyaltyPoint struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"not null;uniqueIndex:idx_loyalty_award" json:"user_id"`
	Action        string    `gorm:"size:60;not null;uniqueIndex:idx_loyalty_award" json:"action"`
	Points        int       `gorm:"not null" json:"points"`
	ReferenceID   uint      `gorm:"not null;uniqueIndex:idx_loyalty_award" json:"reference_id"`
	ReferenceType string    `gorm:"size:30;not null" json:"reference_type"`
	CreatedAt     time.Time `json:"created_at"`
}
