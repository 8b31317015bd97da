package models

import (
	"time"

	"github.com/google/uuid"
)

// Conversation binds one human participant to the automated participant under
// an active script context. Created once; never deleted here.
type Conversation struct {
	ChatID    string    `gorm:"primaryKey" json:"chat_id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null" json:"user_id"`
	BotID     uuid.UUID `gorm:"type:uuid;not null" json:"bot_id"`
	Context   string    `gorm:"not null" json:"context"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
