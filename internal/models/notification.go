package models

import "time"

// Notification is a delivered event record for a single recipient. Rows are
// created by the fan-out layer and mutated only by the recipient marking
// them read; expired rows are removed by the janitor.
type Notification struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	UserID    uint           `gorm:"not null;index" json:"user_id"`
	SenderID  *uint          `json:"sender_id,omitempty"`
	Type      string         `gorm:"size:60;not null;index" json:"type"`
	Title     string         `gorm:"size:200;not null" json:"title"`
	Message   string         `gorm:"type:text;not null" json:"message"`
	Link      string         `json:"link"`
	Data      map[string]any `gorm:"serializer:json" json:"data,omitempty"`
	Read      bool           `gorm:"default:false;index" json:"read"`
	ReadAt    *time.Time     `json:"read_at,omitempty"`
	ExpiresAt *time.Time     `gorm:"index" json:"expires_at,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
