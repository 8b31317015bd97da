package models

import (
	"time"

	"github.com/google/uuid"
)

// Message body types.
const (
	MessageTypeText = "string"
	MessageTypeHTML = "HTML"
)

// Offered action kinds.
const (
	ActionTypeButton = "BUTTON"
	ActionTypeFile   = "FILE"
)

// ChatAction is one selectable option the automated side offers the human.
type ChatAction struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	ActionID string `json:"action_id"`
}

// MessageBody is the payload of a message. ActionID is set when the human
// selected one of the offered actions.
type MessageBody struct {
	Type     string `json:"type"`
	Value    string `json:"value"`
	ActionID string `json:"action_id,omitempty"`
}

// Message is one entry in a conversation's log. Within a chat, created_at is
// the sole ordering key; the DAO keeps it strictly increasing per chat.
// Automated messages record the script step they delivered in StepName.
type Message struct {
	ID        uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	ChatID    string       `gorm:"index:idx_messages_chat_created,priority:1;not null" json:"chat_id"`
	FromUser  uuid.UUID    `gorm:"type:uuid;not null" json:"from_user"`
	Context   string       `gorm:"not null" json:"context"`
	Body      MessageBody  `gorm:"serializer:json" json:"message"`
	Actions   []ChatAction `gorm:"serializer:json" json:"actions"`
	StepName  string       `json:"step_name,omitempty"`
	CreatedAt time.Time    `gorm:"index:idx_messages_chat_created,priority:2" json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// PopulatedMessage is the read-side projection of a Message with the sender's
// user record joined in for presentation. The log itself stores ids only.
type PopulatedMessage struct {
	Message
	FromUser User `json:"from_user"`
}
