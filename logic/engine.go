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

// ConversationEngine drives the scripted conversation flow. It owns no state
// of its own: it orchestrates the message log and the progress tracker against
// the read-only script catalog. Every operation for a given chat runs under
// that chat's lock.
type ConversationEngine struct {
	convoDAO    *dao.ConversationDAO
	messageDAO  *dao.MessageDAO
	progressDAO *dao.ProgressDAO
	catalog     *script.Catalog
	handlers    map[string]ActionHandler
	locks       *ChatLocks
	logger      *zap.Logger
}

func NewConversationEngine(
	convoDAO *dao.ConversationDAO,
	messageDAO *dao.MessageDAO,
	progressDAO *dao.ProgressDAO,
	catalog *script.Catalog,
	locks *ChatLocks,
	logger *zap.Logger,
) *ConversationEngine {
	e := &ConversationEngine{
		convoDAO:    convoDAO,
		messageDAO:  messageDAO,
		progressDAO: progressDAO,
		catalog:     catalog,
		handlers:    make(map[string]ActionHandler),
		locks:       locks,
		logger:      logger,
	}
	registerBuiltinActions(e)
	return e
}

// RegisterAction adds an entry to the dispatch table. The registry is built at
// startup; extending the flow means adding entries here, not branching logic.
func (e *ConversationEngine) RegisterAction(actionID string, h ActionHandler) {
	e.handlers[actionID] = h
}

// RespondResult is what the engine said, plus whether the script has steps
// left after it.
type RespondResult struct {
	Appended []models.Message
	HasNext  bool
}

// Respond reads the chat's latest message and computes the automated side's
// reply. A chat with no messages yet is NOT_FOUND. When the bot spoke last
// there is nothing new to say and only has_next is reported. A human message
// carrying a registered action_id dispatches its handler; anything else (free
// text, or an action_id nobody registered) re-delivers the current step's
// prompt.
func (e *ConversationEngine) Respond(ctx context.Context, chatID, context string, botID, userID uuid.UUID) (*RespondResult, error) {
	if !e.catalog.HasContext(context) {
		return nil, invalidContext(context)
	}

	unlock := e.locks.Lock(chatID)
	defer unlock()

	latest, err := e.messageDAO.Latest(ctx, chatID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("chat not found")
		}
		return nil, storageFault("fetch latest message", err)
	}

	if latest.FromUser == botID {
		hasNext, err := e.hasNext(ctx, chatID, context)
		if err != nil {
			return nil, err
		}
		return &RespondResult{Appended: []models.Message{}, HasNext: hasNext}, nil
	}

	if actionID := latest.Body.ActionID; actionID != "" {
		if handler, ok := e.handlers[actionID]; ok {
			appended, err := handler(ctx, e, ActionParams{
				ChatID:  chatID,
				Context: context,
				BotID:   botID,
				UserID:  userID,
			})
			if err != nil {
				return nil, err
			}
			hasNext, err := e.hasNext(ctx, chatID, context)
			if err != nil {
				return nil, err
			}
			e.logger.Info("dispatched action",
				zap.String("chat_id", chatID),
				zap.String("action_id", actionID),
				zap.Int("appended", len(appended)))
			return &RespondResult{Appended: appended, HasNext: hasNext}, nil
		}
		e.logger.Warn("unregistered action_id, using free-text path",
			zap.String("chat_id", chatID),
			zap.String("action_id", actionID))
	}

	return e.respondFreeText(ctx, chatID, context, botID)
}

// respondFreeText re-delivers the tracker's current step prompt.
func (e *ConversationEngine) respondFreeText(ctx context.Context, chatID, context string, botID uuid.UUID) (*RespondResult, error) {
	rec, err := e.progressDAO.Get(ctx, chatID, context)
	if err != nil {
		if isNotFound(err) {
			return nil, invalidState("no progress recorded for this conversation/context")
		}
		return nil, storageFault("fetch progress record", err)
	}

	stepData, ok := e.catalog.GetStep(context, rec.StepName)
	if !ok {
		return nil, invalidState("recorded step is not part of the script")
	}

	msg, err := e.appendBotMessage(ctx, chatID, context, botID, stepData.Message, stepData.Actions, rec.StepName)
	if err != nil {
		return nil, err
	}

	return &RespondResult{
		Appended: []models.Message{*msg},
		HasNext:  !e.catalog.IsLastStep(context, rec.StepName),
	}, nil
}

// hasNext is false iff the tracker's step is the context's last declared step.
// A missing record means "before the first step", so any non-empty script
// still has steps left.
func (e *ConversationEngine) hasNext(ctx context.Context, chatID, context string) (bool, error) {
	rec, err := e.progressDAO.Get(ctx, chatID, context)
	if err != nil {
		if isNotFound(err) {
			return len(e.catalog.StepsOf(context)) > 0, nil
		}
		return false, storageFault("fetch progress record", err)
	}
	return !e.catalog.IsLastStep(context, rec.StepName), nil
}

// EditMessage rewrites a human message's body, cascading away everything that
// came after it. The rewrite and the cascade commit as one transaction inside
// ReplaceBodyAndCascade. Edited bodies are free text (no action_id), so the
// tracker stays where it is; the swept automated replies are re-derived by
// the next respond call.
func (e *ConversationEngine) EditMessage(ctx context.Context, chatID string, messageID uuid.UUID, context string, newBody models.MessageBody, editorID uuid.UUID) (*models.Message, error) {
	unlock := e.locks.Lock(chatID)
	defer unlock()

	if err := e.guardMutation(ctx, chatID, context); err != nil {
		return nil, err
	}

	msg, err := e.messageDAO.GetByID(ctx, chatID, messageID)
	if err != nil {
		if isNotFound(err) {
			return nil, notFound("message not found")
		}
		return nil, storageFault("fetch message", err)
	}
	if msg.FromUser != editorID {
		return nil, forbidden("only the author can edit a message")
	}
	if newBody.ActionID != "" {
		return nil, invalidArgument("edited message cannot carry an action_id")
	}

	updated, err := e.messageDAO.ReplaceBodyAndCascade(ctx, chatID, messageID, newBody)
	if err != nil {
		return nil, storageFault("replace message body", err)
	}

	e.logger.Info("edited message",
		zap.String("chat_id", chatID),
		zap.String("message_id", messageID.String()))
	return updated, nil
}

// DeleteMessage removes a human message and everything after it, then rolls
// the tracker back to the step of the nearest surviving automated message.
// The cascade, the rollback derivation and the tracker write run in one
// transaction: either all of it commits or the log and tracker stay as they
// were.
func (e *ConversationEngine) DeleteMessage(ctx context.Context, chatID string, messageID uuid.UUID, context string, actorID uuid.UUID) error {
	unlock := e.locks.Lock(chatID)
	defer unlock()

	if err := e.guardMutation(ctx, chatID, context); err != nil {
		return err
	}

	msg, err := e.messageDAO.GetByID(ctx, chatID, messageID)
	if err != nil {
		if isNotFound(err) {
			return notFound("message not found")
		}
		return storageFault("fetch message", err)
	}
	if msg.FromUser != actorID {
		return forbidden("only the author can delete a message")
	}

	convo, err := e.convoDAO.GetConversationByChatID(ctx, chatID)
	if err != nil {
		if isNotFound(err) {
			return notFound("chat not found")
		}
		return storageFault("fetch conversation", err)
	}

	var (
		deleted int64
		step    string
	)
	err = e.messageDAO.Transaction(ctx, func(tx *gorm.DB) error {
		messages := e.messageDAO.WithTx(tx)
		deleted, err = messages.DeleteFrom(ctx, chatID, msg)
		if err != nil {
			return err
		}
		step, err = e.rollbackStep(ctx, messages, chatID, context, convo.BotID)
		if err != nil {
			return err
		}
		return e.progressDAO.WithTx(tx).Set(ctx, chatID, context, step)
	})
	if err != nil {
		if _, ok := KindOf(err); ok {
			return err
		}
		return storageFault("cascade delete", err)
	}

	e.logger.Info("deleted message with cascade",
		zap.String("chat_id", chatID),
		zap.String("message_id", messageID.String()),
		zap.Int64("deleted", deleted),
		zap.String("rollback_step", step))
	return nil
}

// guardMutation is the shared guard chain of edit and delete: the context must
// be known, the chat must have progress, and the script must not be exhausted.
func (e *ConversationEngine) guardMutation(ctx context.Context, chatID, context string) error {
	if !e.catalog.HasContext(context) {
		return invalidContext(context)
	}
	rec, err := e.progressDAO.Get(ctx, chatID, context)
	if err != nil {
		if isNotFound(err) {
			return notFound("chat not found")
		}
		return storageFault("fetch progress record", err)
	}
	if e.catalog.IsLastStep(context, rec.StepName) {
		return conversationEnded(context)
	}
	return nil
}

// rollbackStep derives the step the chat should return to after a cascading
// delete: the step stored on the nearest surviving automated message, falling
// back to prompt-text matching for rows without one, and defaulting to the
// first declared step. The caller passes a tx-bound MessageDAO so the survey
// sees the cascade it runs alongside.
func (e *ConversationEngine) rollbackStep(ctx context.Context, messages *dao.MessageDAO, chatID, context string, botID uuid.UUID) (string, error) {
	remaining, err := messages.List(ctx, chatID, context)
	if err != nil {
		return "", storageFault("list messages", err)
	}
	for i := len(remaining) - 1; i >= 0; i-- {
		m := remaining[i]
		if m.FromUser != botID {
			continue
		}
		if m.StepName != "" {
			return m.StepName, nil
		}
		if step, ok := e.catalog.StepForPrompt(context, m.Body.Value); ok {
			return step, nil
		}
	}
	first, ok := e.catalog.FirstStep(context)
	if !ok {
		return "", invalidState("script has no steps")
	}
	return first, nil
}

// appendBotMessage appends one automated message carrying a script prompt.
func (e *ConversationEngine) appendBotMessage(ctx context.Context, chatID, context string, botID uuid.UUID, value string, actions []models.ChatAction, stepName string) (*models.Message, error) {
	msg := &models.Message{
		ChatID:   chatID,
		FromUser: botID,
		Context:  context,
		Body: models.MessageBody{
			Type:  models.MessageTypeText,
			Value: value,
		},
		Actions:  actions,
		StepName: stepName,
	}
	stored, err := e.messageDAO.Append(ctx, msg)
	if err != nil {
		return nil, storageFault("append message", err)
	}
	return stored, nil
}
