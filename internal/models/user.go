// Package models contains data structures for the application's domain models.
package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents an account in the newsdesk application. Admins carry the
// moderation capability checked by the authorizer.
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	Username     string         `gorm:"uniqueIndex;size:60;not null" json:"username"`
	Email        string         `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password     string         `gorm:"not null" json:"-"`
	DisplayName  string         `gorm:"size:120" json:"display_name"`
	AvatarURL    string         `json:"avatar_url"`
	IsAdmin      bool           `gorm:"default:false" json:"is_admin"`
	IsBanned     bool           `gorm:"default:false" json:"is_banned"`
	LoyaltyTotal int            `gorm:"default:0" json:"loyalty_total"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
