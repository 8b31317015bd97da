package dao

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mk-Guvi/at-chatbot-backend/models"
)

// MessageDAO owns the per-conversation message log. Rows are append-only;
// the only mutations are the engine's cascading delete and edit. Callers
// serialize per chat_id (see logic), so created_at monotonicity per chat
// holds.
type MessageDAO struct {
	db *gorm.DB
}

func NewMessageDAO(db *gorm.DB) *MessageDAO {
	return &MessageDAO{db: db}
}

// WithTx returns a MessageDAO bound to the given transaction.
func (d *MessageDAO) WithTx(tx *gorm.DB) *MessageDAO {
	return &MessageDAO{db: tx}
}

// Transaction runs fn in one database transaction. Multi-table mutations
// (cascade plus tracker write) go through here with tx-bound DAOs so a fault
// anywhere rolls back everything.
func (d *MessageDAO) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return d.db.WithContext(ctx).Transaction(fn)
}

// Append stores a message, assigning id and timestamps when absent. The
// created_at is forced strictly after the chat's current latest so the log
// stays totally ordered even within one clock tick.
func (d *MessageDAO) Append(ctx context.Context, msg *models.Message) (*models.Message, error) {
	if msg.ID == uuid.Nil {
		msg.ID = uuid.New()
	}
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if msg.CreatedAt.IsZero() {
			msg.CreatedAt = now
		}
		var latest models.Message
		err := tx.Where("chat_id = ?", msg.ChatID).
			Order("created_at DESC").
			First(&latest).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		if err == nil && !msg.CreatedAt.After(latest.CreatedAt) {
			msg.CreatedAt = latest.CreatedAt.Add(time.Microsecond)
		}
		if msg.UpdatedAt.IsZero() {
			msg.UpdatedAt = msg.CreatedAt
		}
		return tx.Create(msg).Error
	})
	if err != nil {
		return nil, err
	}
	return msg, nil
}

// Latest returns the message with the maximum created_at for the chat.
func (d *MessageDAO) Latest(ctx context.Context, chatID string) (*models.Message, error) {
	var msg models.Message
	if err := d.db.WithContext(ctx).Where("chat_id = ?", chatID).
		Order("created_at DESC").
		First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// List retrieves the chat's messages for a context, ascending by created_at.
func (d *MessageDAO) List(ctx context.Context, chatID, context string) ([]models.Message, error) {
	var messages []models.Message
	if err := d.db.WithContext(ctx).Where("chat_id = ? AND context = ?", chatID, context).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// ListAll retrieves every message of the chat regardless of context.
func (d *MessageDAO) ListAll(ctx context.Context, chatID string) ([]models.Message, error) {
	var messages []models.Message
	if err := d.db.WithContext(ctx).Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error; err != nil {
		return nil, err
	}
	return messages, nil
}

// GetByID retrieves a single message of the chat.
func (d *MessageDAO) GetByID(ctx context.Context, chatID string, messageID uuid.UUID) (*models.Message, error) {
	var msg models.Message
	if err := d.db.WithContext(ctx).Where("chat_id = ? AND id = ?", chatID, messageID).
		First(&msg).Error; err != nil {
		return nil, err
	}
	return &msg, nil
}

// DeleteFrom removes msg and every message of the same chat with
// created_at >= msg.created_at, returning the number of rows removed.
// Callers that also touch the tracker run it through Transaction/WithTx.
func (d *MessageDAO) DeleteFrom(ctx context.Context, chatID string, msg *models.Message) (int64, error) {
	res := d.db.WithContext(ctx).Where("chat_id = ? AND created_at >= ?", chatID, msg.CreatedAt).
		Delete(&models.Message{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}

// ReplaceBodyAndCascade rewrites the target message's body and removes every
// later message of the chat. The boundary read, the cascade and the rewrite
// share one transaction, so a fault leaves the log unchanged.
func (d *MessageDAO) ReplaceBodyAndCascade(ctx context.Context, chatID string, messageID uuid.UUID, newBody models.MessageBody) (*models.Message, error) {
	var target models.Message
	err := d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("chat_id = ? AND id = ?", chatID, messageID).
			First(&target).Error; err != nil {
			return err
		}
		if err := tx.Where("chat_id = ? AND created_at > ?", chatID, target.CreatedAt).
			Delete(&models.Message{}).Error; err != nil {
			return err
		}
		target.Body = newBody
		target.UpdatedAt = time.Now().UTC()
		return tx.Save(&target).Error
	})
	if err != nil {
		return nil, err
	}
	return &target, nil
}
