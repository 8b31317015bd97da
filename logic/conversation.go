package logic

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/mk-Guvi/at-chatbot-backend/dao"
	"github.com/mk-Guvi/at-chatbot-backend/models"
	"github.com/mk-Guvi/at-chatbot-backend/script"
)

// ConversationLogic handles conversation-level reads and chat creation. The
// engine owns the state machine; this layer owns the populated read-side view.
type ConversationLogic struct {
	userDAO     *dao.UserDAO
	convoDAO    *dao.ConversationDAO
	messageDAO  *dao.MessageDAO
	progressDAO *dao.ProgressDAO
	catalog     *script.Catalog
	locks       *ChatLocks
	logger      *zap.Logger
}

func NewConversationLogic(
	userDAO *dao.UserDAO,
	convoDAO *dao.ConversationDAO,
	messageDAO *dao.MessageDAO,
	progressDAO *dao.ProgressDAO,
	catalog *script.Catalog,
	locks *ChatLocks,
	logger *zap.Logger,
) *ConversationLogic {
	return &ConversationLogic{
		userDAO:     userDAO,
		convoDAO:    convoDAO,
		messageDAO:  messageDAO,
		progressDAO: progressDAO,
		catalog:     catalog,
		locks:       locks,
		logger:      logger,
	}
}

// CreateChatResult is the seeded conversation returned to the caller.
type CreateChatResult struct {
	ChatID string                    `json:"chat_id"`
	Chats  []models.PopulatedMessage `json:"chats"`
}

// CreateChat mints a conversation for the user under the given context, seeds
// the first script step as the opening automated message and records the
// tracker at that step. Conversation, seed message and tracker commit as one
// transaction.
func (l *ConversationLogic) CreateChat(ctx context.Context, userID uuid.UUID, context string) (*CreateChatResult, error) {
	if !l.catalog.HasContext(context) {
		return nil, invalidContext(context)
	}
	firstStep, ok := l.catalog.FirstStep(context)
	if !ok {
		return nil, invalidState("script has no steps")
	}

	if _, err := l.userDAO.GetUserByID(ctx, userID); err != nil {
		if isNotFound(err) {
			return nil, notFound("user not found")
		}
		return nil, storageFault("fetch user", err)
	}
	bot, err := l.userDAO.GetBotUser(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("chatbot user not found")
		}
		return nil, storageFault("fetch chatbot user", err)
	}

	chatID := uuid.NewString()
	unlock := l.locks.Lock(chatID)
	defer unlock()

	stepData, _ := l.catalog.GetStep(context, firstStep)
	var stored *models.Message
	err = l.messageDAO.Transaction(ctx, func(tx *gorm.DB) error {
		if _, err := l.convoDAO.WithTx(tx).CreateConversation(ctx, chatID, userID, bot.UserID, context); err != nil {
			return err
		}
		seed := &models.Message{
			ChatID:   chatID,
			FromUser: bot.UserID,
			Context:  context,
			Body: models.MessageBody{
				Type:  models.MessageTypeText,
				Value: stepData.Message,
			},
			Actions:  stepData.Actions,
			StepName: firstStep,
		}
		s, err := l.messageDAO.WithTx(tx).Append(ctx, seed)
		if err != nil {
			return err
		}
		stored = s
		return l.progressDAO.WithTx(tx).Set(ctx, chatID, context, firstStep)
	})
	if err != nil {
		return nil, storageFault("seed conversation", err)
	}

	populated, err := l.Populate(ctx, []models.Message{*stored})
	if err != nil {
		return nil, err
	}

	l.logger.Info("created chat",
		zap.String("chat_id", chatID),
		zap.String("context", context),
		zap.String("user_id", userID.String()))
	return &CreateChatResult{ChatID: chatID, Chats: populated}, nil
}

// GetAllChatMessages returns the chat's messages for a context with senders
// joined in.
func (l *ConversationLogic) GetAllChatMessages(ctx context.Context, chatID, context string) ([]models.PopulatedMessage, error) {
	if _, err := l.convoDAO.GetConversationByChatID(ctx, chatID); err != nil {
		if isNotFound(err) {
			return nil, notFound("chat not found")
		}
		return nil, storageFault("fetch conversation", err)
	}

	var (
		messages []models.Message
		err      error
	)
	if context != "" {
		messages, err = l.messageDAO.List(ctx, chatID, context)
	} else {
		messages, err = l.messageDAO.ListAll(ctx, chatID)
	}
	if err != nil {
		return nil, storageFault("list messages", err)
	}
	return l.Populate(ctx, messages)
}

// GetUserChats lists the user's conversations, most recent first.
func (l *ConversationLogic) GetUserChats(ctx context.Context, userID uuid.UUID) ([]models.Conversation, error) {
	if _, err := l.userDAO.GetUserByID(ctx, userID); err != nil {
		if isNotFound(err) {
			return nil, notFound("user not found")
		}
		return nil, storageFault("fetch user", err)
	}
	convos, err := l.convoDAO.GetConversationsByUserID(ctx, userID)
	if err != nil {
		return nil, storageFault("list conversations", err)
	}
	return convos, nil
}

// Populate joins each message's sender record in for presentation. The log
// stores participant ids only; this is the read-side projection.
func (l *ConversationLogic) Populate(ctx context.Context, messages []models.Message) ([]models.PopulatedMessage, error) {
	users := make(map[uuid.UUID]models.User)
	out := make([]models.PopulatedMessage, 0, len(messages))
	for _, m := range messages {
		u, ok := users[m.FromUser]
		if !ok {
			fetched, err := l.userDAO.GetUserByID(ctx, m.FromUser)
			if err != nil {
				if isNotFound(err) {
					return nil, notFound("message sender not found")
				}
				return nil, storageFault("fetch message sender", err)
			}
			u = *fetched
			users[m.FromUser] = u
		}
		out = append(out, models.PopulatedMessage{Message: m, FromUser: u})
	}
	return out, nil
}
