package models

import "time"

// ProgressRecord tracks the last script step whose automated prompt has been
// delivered for a (chat, context) pair. Upserted, never deleted.
type ProgressRecord struct {
	ChatID    string    `gorm:"primaryKey" json:"chat_id"`
	Context   string    `gorm:"primaryKey" json:"context"`
	StepName  string    `gorm:"not null" json:"step_name"`
	UpdatedAt time.Time `json:"updated_at"`
}
