package logic

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mk-Guvi/at-chatbot-backend/config"
	"github.com/mk-Guvi/at-chatbot-backend/dao"
	"github.com/mk-Guvi/at-chatbot-backend/models"
)

// UserLogic handles user-related business logic
type UserLogic struct {
	userDAO *dao.UserDAO
	logger  *zap.Logger
}

func NewUserLogic(userDAO *dao.UserDAO, logger *zap.Logger) *UserLogic {
	return &UserLogic{userDAO: userDAO, logger: logger}
}

// CreateUser creates a user profile
func (l *UserLogic) CreateUser(ctx context.Context, name, profileImage string, isBot bool) (*models.User, error) {
	if name == "" {
		return nil, invalidArgument("name is required")
	}
	user, err := l.userDAO.CreateUser(ctx, &models.User{
		Name:         name,
		ProfileImage: profileImage,
		IsBot:        isBot,
	})
	if err != nil {
		return nil, storageFault("create user", err)
	}
	l.logger.Info("created user",
		zap.String("user_id", user.UserID.String()),
		zap.Bool("is_bot", isBot))
	return user, nil
}

// GetUser retrieves user info
func (l *UserLogic) GetUser(ctx context.Context, userID uuid.UUID) (*models.User, error) {
	user, err := l.userDAO.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("user not found")
		}
		return nil, storageFault("fetch user", err)
	}
	return user, nil
}

// GetAllUsers retrieves every user
func (l *UserLogic) GetAllUsers(ctx context.Context) ([]models.User, error) {
	users, err := l.userDAO.GetAllUsers(ctx)
	if err != nil {
		return nil, storageFault("list users", err)
	}
	return users, nil
}

// GetChatbotUser retrieves the automated participant
func (l *UserLogic) GetChatbotUser(ctx context.Context) (*models.User, error) {
	user, err := l.userDAO.GetBotUser(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("chatbot user not found")
		}
		return nil, storageFault("fetch chatbot user", err)
	}
	return user, nil
}

func (l *UserLogic) generateJWT(userID uuid.UUID) (string, time.Time, error) {
	expireAt := time.Now().Add(time.Duration(config.GlobalConfig.Auth.ExpHour) * time.Hour)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID.String(),
		"exp":     expireAt.Unix(),
	})
	tokenString, err := token.SignedString([]byte(config.GlobalConfig.Auth.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return tokenString, expireAt, nil
}

// Login issues a bearer token for an existing user
func (l *UserLogic) Login(ctx context.Context, userID uuid.UUID) (*models.User, string, time.Time, error) {
	user, err := l.userDAO.GetUserByID(ctx, userID)
	if err != nil {
		if isNotFound(err) {
			return nil, "", time.Time{}, notFound("user not found")
		}
		return nil, "", time.Time{}, storageFault("fetch user", err)
	}

	token, expireAt, err := l.generateJWT(userID)
	if err != nil {
		return nil, "", time.Time{}, storageFault("sign token", err)
	}

	user.UpdatedAt = time.Now()
	if err := l.userDAO.SaveUser(ctx, user); err != nil {
		return nil, "", time.Time{}, storageFault("save user", err)
	}

	return user, token, expireAt, nil
}
