package dao

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mk-Guvi/at-chatbot-backend/models"
)

// ConversationDAO handles conversation-related database operations
type ConversationDAO struct {
	db *gorm.DB
}

func NewConversationDAO(db *gorm.DB) *ConversationDAO {
	return &ConversationDAO{db: db}
}

// WithTx returns a ConversationDAO bound to the given transaction.
func (d *ConversationDAO) WithTx(tx *gorm.DB) *ConversationDAO {
	return &ConversationDAO{db: tx}
}

// CreateConversation creates a new conversation
func (d *ConversationDAO) CreateConversation(ctx context.Context, chatID string, userID, botID uuid.UUID, context string) (*models.Conversation, error) {
	convo := &models.Conversation{
		ChatID:  chatID,
		UserID:  userID,
		BotID:   botID,
		Context: context,
	}
	if err := d.db.WithContext(ctx).Create(convo).Error; err != nil {
		return nil, err
	}
	return convo, nil
}

// GetConversationByChatID retrieves a conversation by chat id
func (d *ConversationDAO) GetConversationByChatID(ctx context.Context, chatID string) (*models.Conversation, error) {
	var convo models.Conversation
	if err := d.db.WithContext(ctx).Where("chat_id = ?", chatID).First(&convo).Error; err != nil {
		return nil, err
	}
	return &convo, nil
}

// GetConversationsByUserID retrieves a user's conversations, most recent first
func (d *ConversationDAO) GetConversationsByUserID(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	var convos []models.Conversation
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).
		Order("updated_at DESC").
		Find(&convos).Error; err != nil {
		return nil, err
	}
	return convos, nil
}
