package dao

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mk-Guvi/at-chatbot-backend/models"
)

// ProgressDAO stores the (chat_id, context) -> step cursor.
type ProgressDAO struct {
	db *gorm.DB
}

func NewProgressDAO(db *gorm.DB) *ProgressDAO {
	return &ProgressDAO{db: db}
}

// WithTx returns a ProgressDAO bound to the given transaction.
func (d *ProgressDAO) WithTx(tx *gorm.DB) *ProgressDAO {
	return &ProgressDAO{db: tx}
}

// Get retrieves the progress record for a chat and context.
func (d *ProgressDAO) Get(ctx context.Context, chatID, context string) (*models.ProgressRecord, error) {
	var rec models.ProgressRecord
	if err := d.db.WithContext(ctx).Where("chat_id = ? AND context = ?", chatID, context).
		First(&rec).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// Set upserts the progress record. Setting the same step twice is a no-op.
func (d *ProgressDAO) Set(ctx context.Context, chatID, context, step string) error {
	rec := models.ProgressRecord{
		ChatID:    chatID,
		Context:   context,
		StepName:  step,
		UpdatedAt: time.Now().UTC(),
	}
	return d.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "context"}},
		DoUpdates: clause.AssignmentColumns([]string{"step_name", "updated_at"}),
	}).Create(&rec).Error
}
