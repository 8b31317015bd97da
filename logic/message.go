package logic

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mk-Guvi/at-chatbot-backend/dao"
	"github.com/mk-Guvi/at-chatbot-backend/models"
	"github.com/mk-Guvi/at-chatbot-backend/script"
)

// MessageLogic handles the human side's inbound message path. The engine
// consumes what this appends on the next respond call.
type MessageLogic struct {
	userDAO    *dao.UserDAO
	convoDAO   *dao.ConversationDAO
	messageDAO *dao.MessageDAO
	catalog    *script.Catalog
	locks      *ChatLocks
	logger     *zap.Logger
}

func NewMessageLogic(
	userDAO *dao.UserDAO,
	convoDAO *dao.ConversationDAO,
	messageDAO *dao.MessageDAO,
	catalog *script.Catalog,
	locks *ChatLocks,
	logger *zap.Logger,
) *MessageLogic {
	return &MessageLogic{
		userDAO:    userDAO,
		convoDAO:   convoDAO,
		messageDAO: messageDAO,
		catalog:    catalog,
		locks:      locks,
		logger:     logger,
	}
}

// AddChatMessage appends the human's message to the chat. When fromMessageID
// is set the message replaces that earlier message instead, cascading away
// everything after it (the "resend from here" path).
func (l *MessageLogic) AddChatMessage(ctx context.Context, chatID string, userID uuid.UUID, context string, body models.MessageBody, fromMessageID *uuid.UUID) (*models.Message, error) {
	if !l.catalog.HasContext(context) {
		return nil, invalidContext(context)
	}
	if body.Value == "" {
		return nil, invalidArgument("message value is required")
	}
	if body.Type != models.MessageTypeText && body.Type != models.MessageTypeHTML {
		return nil, invalidArgument("message type must be string or HTML")
	}

	// Lock before touching the chat at all so the whole read-validate-write
	// sequence serializes against the engine's cascades.
	unlock := l.locks.Lock(chatID)
	defer unlock()

	convo, err := l.convoDAO.GetConversationByChatID(ctx, chatID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("chat not found")
		}
		return nil, storageFault("fetch conversation", err)
	}
	if convo.UserID != userID {
		return nil, forbidden("user is not a participant of this chat")
	}

	if fromMessageID != nil {
		prior, err := l.messageDAO.GetByID(ctx, chatID, *fromMessageID)
		if err != nil {
			if isNotFound(err) {
				return nil, notFound("message not found")
			}
			return nil, storageFault("fetch message", err)
		}
		if prior.FromUser != userID {
			return nil, forbidden("only the author can resend from a message")
		}
		updated, err := l.messageDAO.ReplaceBodyAndCascade(ctx, chatID, *fromMessageID, body)
		if err != nil {
			return nil, storageFault("replace message body", err)
		}
		return updated, nil
	}

	msg := &models.Message{
		ChatID:   chatID,
		FromUser: userID,
		Context:  context,
		Body:     body,
	}
	stored, err := l.messageDAO.Append(ctx, msg)
	if err != nil {
		return nil, storageFault("append message", err)
	}

	l.logger.Debug("appended human message",
		zap.String("chat_id", chatID),
		zap.String("message_id", stored.ID.String()))
	return stored, nil
}
