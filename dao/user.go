package dao

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mk-Guvi/at-chatbot-backend/models"
)

// UserDAO handles user-related database operations
type UserDAO struct {
	db *gorm.DB
}

func NewUserDAO(db *gorm.DB) *UserDAO {
	return &UserDAO{db: db}
}

// CreateUser creates a new user
func (d *UserDAO) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	if user.UserID == uuid.Nil {
		user.UserID = uuid.New()
	}
	if err := d.db.WithContext(ctx).Create(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetUserByID retrieves a user by id
func (d *UserDAO) GetUserByID(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("user_id = ?", userID).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// GetAllUsers retrieves every user
func (d *UserDAO) GetAllUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := d.db.WithContext(ctx).Find(&users).Error; err != nil {
		return nil, err
	}
	return users, nil
}

// GetBotUser retrieves the designated automated participant
func (d *UserDAO) GetBotUser(ctx context.Context) (*models.User, error) {
	var user models.User
	if err := d.db.WithContext(ctx).Where("is_bot = ?", true).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// SaveUser persists changes to an existing user
func (d *UserDAO) SaveUser(ctx context.Context, user *models.User) error {
	return d.db.WithContext(ctx).Save(user).Error
}
