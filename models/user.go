package models

import (
	"time"

	"github.com/google/uuid"
)

// User represents a chat participant. The automated participant is a regular
// user row flagged with IsBot.
type User struct {
	UserID       uuid.UUID `gorm:"type:uuid;primaryKey" json:"user_id"`
	Name         string    `gorm:"not null" json:"name"`
	ProfileImage string    `json:"profile_image"`
	IsBot        bool      `gorm:"default:false;index" json:"is_bot"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
