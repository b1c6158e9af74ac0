package models

import (
	"time"

	"gorm.io/gorm"
)

// Article is the target of comments. Only the fields the moderation engine
// touches are modeled here; article CRUD itself lives outside this service.
type Article struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	Title          string         `gorm:"not null" json:"title"`
	Slug           string         `gorm:"uniqueIndex;size:160;not null" json:"slug"`
	AuthorID       uint           `gorm:"not null;index" json:"author_id"`
	Author         *User          `gorm:"foreignKey:AuthorID" json:"author,omitempty"`
	// CommentCount counts approved comments (top-level and nested).
	// Mutated only by the moderation transaction, never read-modify-written.
	CommentCount   int            `gorm:"not null;default:0" json:"comment_count"`
	LastActivityAt *time.Time     `json:"last_activity_at,omitempty"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}
