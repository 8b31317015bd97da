package logic

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mk-Guvi/at-chatbot-backend/dao"
	"github.com/mk-Guvi/at-chatbot-backend/models"
	"github.com/mk-Guvi/at-chatbot-backend/script"
)

const testScript = `{
  "ONBOARDING": {
    "STEP_1": {
      "message": "Welcome",
      "actions": [{ "type": "BUTTON", "value": "Start", "action_id": "ONBOARDING_START" }]
    },
    "STEP_2": {
      "message": "Share your resume",
      "actions": [
        { "type": "FILE", "value": "Upload", "action_id": "UPLOAD_RESUME" },
        { "type": "BUTTON", "value": "Skip", "action_id": "SKIP_RESUME" }
      ]
    },
    "STEP_3": {
      "message": "Tell me about yourself",
      "actions": [{ "type": "BUTTON", "value": "Finish", "action_id": "FINISH_SETUP" }]
    },
    "STEP_4": {
      "message": "All set",
      "actions": []
    }
  }
}`

type engineEnv struct {
	db          *gorm.DB
	engine      *ConversationEngine
	convoDAO    *dao.ConversationDAO
	messageDAO  *dao.MessageDAO
	progressDAO *dao.ProgressDAO
	userDAO     *dao.UserDAO
	catalog     *script.Catalog
	locks       *ChatLocks
	bot         *models.User
	human       *models.User
}

func newEngineEnv(t *testing.T) *engineEnv {
	t.Helper()
	ctx := context.Background()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "test.db")), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
		&models.ProgressRecord{},
	))

	catalog, err := script.Parse([]byte(testScript))
	require.NoError(t, err)

	userDAO := dao.NewUserDAO(db)
	bot, err := userDAO.CreateUser(ctx, &models.User{Name: "Ava", IsBot: true})
	require.NoError(t, err)
	human, err := userDAO.CreateUser(ctx, &models.User{Name: "Riley"})
	require.NoError(t, err)

	convoDAO := dao.NewConversationDAO(db)
	messageDAO := dao.NewMessageDAO(db)
	progressDAO := dao.NewProgressDAO(db)
	locks := NewChatLocks()

	return &engineEnv{
		db:          db,
		engine:      NewConversationEngine(convoDAO, messageDAO, progressDAO, catalog, locks, zap.NewNop()),
		convoDAO:    convoDAO,
		messageDAO:  messageDAO,
		progressDAO: progressDAO,
		userDAO:     userDAO,
		catalog:     catalog,
		locks:       locks,
		bot:         bot,
		human:       human,
	}
}

// seedChat creates the conversation and delivers STEP_1's prompt, the way
// CreateChat does.
func (e *engineEnv) seedChat(t *testing.T, chatID string) *models.Message {
	t.Helper()
	ctx := context.Background()
	_, err := e.convoDAO.CreateConversation(ctx, chatID, e.human.UserID, e.bot.UserID, "ONBOARDING")
	require.NoError(t, err)
	sd, ok := e.catalog.GetStep("ONBOARDING", StepOne)
	require.True(t, ok)
	seed, err := e.messageDAO.Append(ctx, &models.Message{
		ChatID:   chatID,
		FromUser: e.bot.UserID,
		Context:  "ONBOARDING",
		Body:     models.MessageBody{Type: models.MessageTypeText, Value: sd.Message},
		Actions:  sd.Actions,
		StepName: StepOne,
	})
	require.NoError(t, err)
	require.NoError(t, e.progressDAO.Set(ctx, chatID, "ONBOARDING", StepOne))
	return seed
}

func (e *engineEnv) humanSay(t *testing.T, chatID, value, actionID string) *models.Message {
	t.Helper()
	msg, err := e.messageDAO.Append(context.Background(), &models.Message{
		ChatID:   chatID,
		FromUser: e.human.UserID,
		Context:  "ONBOARDING",
		Body:     models.MessageBody{Type: models.MessageTypeText, Value: value, ActionID: actionID},
	})
	require.NoError(t, err)
	return msg
}

func (e *engineEnv) respond(t *testing.T, chatID string) (*RespondResult, error) {
	t.Helper()
	return e.engine.Respond(context.Background(), chatID, "ONBOARDING", e.bot.UserID, e.human.UserID)
}

func requireKind(t *testing.T, err error, want Kind) {
	t.Helper()
	require.Error(t, err)
	kind, ok := KindOf(err)
	require.True(t, ok, "expected a domain error, got %v", err)
	require.Equal(t, want, kind)
}

func TestRespond_EmptyChat_NotFound(t *testing.T) {
	e := newEngineEnv(t)

	_, err := e.respond(t, "chat-1")
	requireKind(t, err, KindNotFound)
}

func TestRespond_UnknownContext(t *testing.T) {
	e := newEngineEnv(t)
	e.seedChat(t, "chat-1")

	_, err := e.engine.Respond(context.Background(), "chat-1", "NOPE", e.bot.UserID, e.human.UserID)
	requireKind(t, err, KindInvalidContext)
}

func TestRespond_BotSpokeLast_NothingToSay(t *testing.T) {
	e := newEngineEnv(t)
	e.seedChat(t, "chat-1")

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Empty(t, result.Appended)
	require.True(t, result.HasNext)
}

func TestRespond_BotSpokeLast_ScriptExhausted(t *testing.T) {
	e := newEngineEnv(t)
	e.seedChat(t, "chat-1")
	require.NoError(t, e.progressDAO.Set(context.Background(), "chat-1", "ONBOARDING", StepFour))

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Empty(t, result.Appended)
	require.False(t, result.HasNext)
}

func TestRespond_BotSpokeLast_NoProgressRecord(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	_, err := e.convoDAO.CreateConversation(ctx, "chat-1", e.human.UserID, e.bot.UserID, "ONBOARDING")
	require.NoError(t, err)
	_, err = e.messageDAO.Append(ctx, &models.Message{
		ChatID:   "chat-1",
		FromUser: e.bot.UserID,
		Context:  "ONBOARDING",
		Body:     models.MessageBody{Type: models.MessageTypeText, Value: "Welcome"},
	})
	require.NoError(t, err)

	// No record means "before the first step": steps remain.
	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.True(t, result.HasNext)
}

func TestRespond_ActionDispatch_AdvancesAndPrompts(t *testing.T) {
	e := newEngineEnv(t)
	e.seedChat(t, "chat-1")
	e.humanSay(t, "chat-1", "Start", ActionOnboardingStart)

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 2)
	require.Equal(t, "Share your resume", result.Appended[1].Body.Value)
	require.Equal(t, StepTwo, result.Appended[1].StepName)
	require.Len(t, result.Appended[1].Actions, 2)
	require.True(t, result.HasNext)

	rec, err := e.progressDAO.Get(context.Background(), "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepTwo, rec.StepName)
}

func TestRespond_ActionDispatch_ToFinalStep(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	e.seedChat(t, "chat-1")
	require.NoError(t, e.progressDAO.Set(ctx, "chat-1", "ONBOARDING", StepThree))
	e.humanSay(t, "chat-1", "Finish", ActionFinishSetup)

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 2)
	require.Equal(t, "All set", result.Appended[1].Body.Value)
	require.False(t, result.HasNext)

	rec, err := e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepFour, rec.StepName)
}

func TestRespond_AdvanceOnlyHandler(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	e.seedChat(t, "chat-1")
	require.NoError(t, e.progressDAO.Set(ctx, "chat-1", "ONBOARDING", StepTwo))
	e.humanSay(t, "chat-1", "Skip", ActionSkipResume)

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 1)
	require.Empty(t, result.Appended[0].StepName)
	require.True(t, result.HasNext)

	rec, err := e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepThree, rec.StepName)

	// The next free-text reply delivers STEP_3's own prompt.
	e.humanSay(t, "chat-1", "ok", "")
	result, err = e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 1)
	require.Equal(t, "Tell me about yourself", result.Appended[0].Body.Value)
	require.Equal(t, StepThree, result.Appended[0].StepName)
}

func TestRespond_FreeText_RepeatsCurrentPrompt(t *testing.T) {
	e := newEngineEnv(t)
	e.seedChat(t, "chat-1")
	e.humanSay(t, "chat-1", "hello there", "")

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 1)
	require.Equal(t, "Welcome", result.Appended[0].Body.Value)
	require.Equal(t, StepOne, result.Appended[0].StepName)
	require.True(t, result.HasNext)
}

func TestRespond_FreeText_AtFinalStep(t *testing.T) {
	e := newEngineEnv(t)
	e.seedChat(t, "chat-1")
	require.NoError(t, e.progressDAO.Set(context.Background(), "chat-1", "ONBOARDING", StepFour))
	e.humanSay(t, "chat-1", "thanks!", "")

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 1)
	require.Equal(t, "All set", result.Appended[0].Body.Value)
	require.False(t, result.HasNext)
}

func TestRespond_FreeText_NoProgress_InvalidState(t *testing.T) {
	e := newEngineEnv(t)
	_, err := e.convoDAO.CreateConversation(context.Background(), "chat-1", e.human.UserID, e.bot.UserID, "ONBOARDING")
	require.NoError(t, err)
	e.humanSay(t, "chat-1", "hello", "")

	_, err = e.respond(t, "chat-1")
	requireKind(t, err, KindInvalidState)
}

func TestRespond_UnknownAction_FallsBackToFreeText(t *testing.T) {
	e := newEngineEnv(t)
	e.seedChat(t, "chat-1")
	e.humanSay(t, "chat-1", "???", "NOT_A_REAL_ACTION")

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 1)
	require.Equal(t, "Welcome", result.Appended[0].Body.Value)
}

func TestRegisterAction_Extensible(t *testing.T) {
	e := newEngineEnv(t)
	e.seedChat(t, "chat-1")

	e.engine.RegisterAction("CUSTOM", func(ctx context.Context, en *ConversationEngine, p ActionParams) ([]models.Message, error) {
		return confirmThenPrompt(ctx, en, p, "custom ack", StepFour)
	})
	e.humanSay(t, "chat-1", "go", "CUSTOM")

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 2)
	require.Equal(t, "custom ack", result.Appended[0].Body.Value)
	require.False(t, result.HasNext)
}

// Two polls racing on the same chat must behave as if serialized: whichever
// runs first repeats the prompt, the other then sees the bot spoke last.
func TestRespond_ConcurrentPolls_SingleReply(t *testing.T) {
	e := newEngineEnv(t)
	e.seedChat(t, "chat-1")
	e.humanSay(t, "chat-1", "hello there", "")

	var wg sync.WaitGroup
	results := make([]*RespondResult, 2)
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = e.respond(t, "chat-1")
		}(i)
	}
	wg.Wait()

	appended := 0
	for i := 0; i < 2; i++ {
		require.NoError(t, errs[i])
		appended += len(results[i].Appended)
	}
	require.Equal(t, 1, appended, "exactly one poll may repeat the prompt")

	msgs, err := e.messageDAO.List(context.Background(), "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Len(t, msgs, 3)
}

// A poll and a cascading delete racing on the same chat must end in the same
// state regardless of which side wins the lock: only the seed survives and
// the tracker agrees with it.
func TestDeleteMessage_ConcurrentWithRespond_Serialized(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	e.seedChat(t, "chat-1")
	human := e.humanSay(t, "chat-1", "Start", ActionOnboardingStart)

	var wg sync.WaitGroup
	var respondErr, deleteErr error
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, respondErr = e.respond(t, "chat-1")
	}()
	go func() {
		defer wg.Done()
		deleteErr = e.engine.DeleteMessage(ctx, "chat-1", human.ID, "ONBOARDING", e.human.UserID)
	}()
	wg.Wait()

	require.NoError(t, respondErr)
	require.NoError(t, deleteErr)

	msgs, err := e.messageDAO.List(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, StepOne, msgs[0].StepName)

	rec, err := e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepOne, rec.StepName)
}

func TestEditMessage_Guards(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	seed := e.seedChat(t, "chat-1")
	human := e.humanSay(t, "chat-1", "hello", "")
	newBody := models.MessageBody{Type: models.MessageTypeText, Value: "edited"}

	_, err := e.engine.EditMessage(ctx, "chat-1", human.ID, "NOPE", newBody, e.human.UserID)
	requireKind(t, err, KindInvalidContext)

	_, err = e.engine.EditMessage(ctx, "chat-2", human.ID, "ONBOARDING", newBody, e.human.UserID)
	requireKind(t, err, KindNotFound)

	_, err = e.engine.EditMessage(ctx, "chat-1", uuid.New(), "ONBOARDING", newBody, e.human.UserID)
	requireKind(t, err, KindNotFound)

	_, err = e.engine.EditMessage(ctx, "chat-1", seed.ID, "ONBOARDING", newBody, e.human.UserID)
	requireKind(t, err, KindForbidden)

	_, err = e.engine.EditMessage(ctx, "chat-1", human.ID, "ONBOARDING",
		models.MessageBody{Type: models.MessageTypeText, Value: "edited", ActionID: "ONBOARDING_START"},
		e.human.UserID)
	requireKind(t, err, KindInvalidArgument)
}

func TestEditMessage_ConversationEnded_LogUnchanged(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	e.seedChat(t, "chat-1")
	human := e.humanSay(t, "chat-1", "hello", "")
	require.NoError(t, e.progressDAO.Set(ctx, "chat-1", "ONBOARDING", StepFour))

	_, err := e.engine.EditMessage(ctx, "chat-1", human.ID, "ONBOARDING",
		models.MessageBody{Type: models.MessageTypeText, Value: "edited"}, e.human.UserID)
	requireKind(t, err, KindConversationEnded)

	msgs, err := e.messageDAO.List(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, "hello", msgs[1].Body.Value)
}

func TestEditMessage_CascadesAndReturnsUpdated(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	e.seedChat(t, "chat-1")
	human := e.humanSay(t, "chat-1", "first try", "")

	// Bot replied after the human message; the edit must sweep it away.
	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 1)

	updated, err := e.engine.EditMessage(ctx, "chat-1", human.ID, "ONBOARDING",
		models.MessageBody{Type: models.MessageTypeText, Value: "second try"}, e.human.UserID)
	require.NoError(t, err)
	require.Equal(t, "second try", updated.Body.Value)

	msgs, err := e.messageDAO.List(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.Equal(t, StepOne, msgs[0].StepName)
	require.Equal(t, "second try", msgs[1].Body.Value)

	// Free-text edits never move the tracker.
	rec, err := e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepOne, rec.StepName)
}

func TestDeleteMessage_RollsBackProgress(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	seed := e.seedChat(t, "chat-1")
	human := e.humanSay(t, "chat-1", "Start", ActionOnboardingStart)

	result, err := e.respond(t, "chat-1")
	require.NoError(t, err)
	require.Len(t, result.Appended, 2)

	rec, err := e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepTwo, rec.StepName)

	// Deleting the trigger removes it and everything after, including the
	// STEP_2 prompt, and rolls the tracker back to STEP_1.
	require.NoError(t, e.engine.DeleteMessage(ctx, "chat-1", human.ID, "ONBOARDING", e.human.UserID))

	msgs, err := e.messageDAO.List(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	require.Equal(t, seed.ID, msgs[0].ID)

	rec, err = e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepOne, rec.StepName)
}

// A fault on the tracker write must undo the message cascade with it: the
// delete either fully applies or leaves both the log and the tracker as they
// were.
func TestDeleteMessage_TrackerFault_LeavesLogUnchanged(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	e.seedChat(t, "chat-1")
	human := e.humanSay(t, "chat-1", "Start", ActionOnboardingStart)
	_, err := e.respond(t, "chat-1")
	require.NoError(t, err)

	faulty := errors.New("disk full")
	require.NoError(t, e.db.Callback().Create().Before("gorm:create").
		Register("fail_progress_writes", func(tx *gorm.DB) {
			if tx.Statement != nil && tx.Statement.Table == "progress_records" {
				tx.AddError(faulty)
			}
		}))

	err = e.engine.DeleteMessage(ctx, "chat-1", human.ID, "ONBOARDING", e.human.UserID)
	requireKind(t, err, KindStorageFault)

	msgs, err := e.messageDAO.List(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Len(t, msgs, 4, "failed delete must not shrink the log")
	rec, err := e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepTwo, rec.StepName)

	// With the fault cleared the same delete commits whole.
	require.NoError(t, e.db.Callback().Create().Remove("fail_progress_writes"))
	require.NoError(t, e.engine.DeleteMessage(ctx, "chat-1", human.ID, "ONBOARDING", e.human.UserID))

	msgs, err = e.messageDAO.List(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	rec, err = e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepOne, rec.StepName)
}

func TestDeleteMessage_Forbidden(t *testing.T) {
	e := newEngineEnv(t)
	seed := e.seedChat(t, "chat-1")

	err := e.engine.DeleteMessage(context.Background(), "chat-1", seed.ID, "ONBOARDING", e.human.UserID)
	requireKind(t, err, KindForbidden)
}

func TestDeleteMessage_ConversationEnded(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	e.seedChat(t, "chat-1")
	human := e.humanSay(t, "chat-1", "hello", "")
	require.NoError(t, e.progressDAO.Set(ctx, "chat-1", "ONBOARDING", StepFour))

	err := e.engine.DeleteMessage(ctx, "chat-1", human.ID, "ONBOARDING", e.human.UserID)
	requireKind(t, err, KindConversationEnded)
}

func TestDeleteMessage_PromptTextFallback(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	_, err := e.convoDAO.CreateConversation(ctx, "chat-1", e.human.UserID, e.bot.UserID, "ONBOARDING")
	require.NoError(t, err)

	// Legacy row: the bot prompt predates step names on messages.
	_, err = e.messageDAO.Append(ctx, &models.Message{
		ChatID:   "chat-1",
		FromUser: e.bot.UserID,
		Context:  "ONBOARDING",
		Body:     models.MessageBody{Type: models.MessageTypeText, Value: "Share your resume"},
	})
	require.NoError(t, err)
	human := e.humanSay(t, "chat-1", "here you go", "")
	require.NoError(t, e.progressDAO.Set(ctx, "chat-1", "ONBOARDING", StepTwo))

	require.NoError(t, e.engine.DeleteMessage(ctx, "chat-1", human.ID, "ONBOARDING", e.human.UserID))

	rec, err := e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepTwo, rec.StepName)
}

func TestDeleteMessage_DefaultsToFirstStep(t *testing.T) {
	e := newEngineEnv(t)
	ctx := context.Background()
	_, err := e.convoDAO.CreateConversation(ctx, "chat-1", e.human.UserID, e.bot.UserID, "ONBOARDING")
	require.NoError(t, err)
	human := e.humanSay(t, "chat-1", "hello", "")
	require.NoError(t, e.progressDAO.Set(ctx, "chat-1", "ONBOARDING", StepTwo))

	// No automated message survives, so the tracker falls back to STEP_1.
	require.NoError(t, e.engine.DeleteMessage(ctx, "chat-1", human.ID, "ONBOARDING", e.human.UserID))

	rec, err := e.progressDAO.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, StepOne, rec.StepName)
}
