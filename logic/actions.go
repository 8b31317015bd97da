package logic

import (
	"context"

	"github.com/google/uuid"

	"github.com/mk-Guvi/at-chatbot-backend/models"
)

// Step names of the onboarding script, matching chatbot.json.
const (
	StepOne   = "STEP_1"
	StepTwo   = "STEP_2"
	StepThree = "STEP_3"
	StepFour  = "STEP_4"
)

// Action ids the onboarding script offers.
const (
	ActionOnboardingStart = "ONBOARDING_START"
	ActionUploadResume    = "UPLOAD_RESUME"
	ActionSkipResume      = "SKIP_RESUME"
	ActionFinishSetup     = "FINISH_SETUP"
)

// ActionParams carries the identities a handler appends messages on behalf of.
type ActionParams struct {
	ChatID  string
	Context string
	BotID   uuid.UUID
	UserID  uuid.UUID
}

// ActionHandler reacts to a human message that selected an offered action. A
// handler appends one or more automated messages and moves the tracker; it
// never mutates existing log rows.
type ActionHandler func(ctx context.Context, e *ConversationEngine, p ActionParams) ([]models.Message, error)

func registerBuiltinActions(e *ConversationEngine) {
	e.RegisterAction(ActionOnboardingStart, handleOnboardingStart)
	e.RegisterAction(ActionUploadResume, handleUploadResume)
	e.RegisterAction(ActionSkipResume, handleSkipResume)
	e.RegisterAction(ActionFinishSetup, handleFinishSetup)
}

// confirmThenPrompt appends a fixed confirmation, then the given step's own
// prompt and actions, and advances the tracker to that step.
func confirmThenPrompt(ctx context.Context, e *ConversationEngine, p ActionParams, confirmation, nextStep string) ([]models.Message, error) {
	confirm, err := e.appendBotMessage(ctx, p.ChatID, p.Context, p.BotID, confirmation, nil, "")
	if err != nil {
		return nil, err
	}
	appended := []models.Message{*confirm}

	stepData, ok := e.catalog.GetStep(p.Context, nextStep)
	if !ok {
		return nil, invalidState("handler target step is not part of the script")
	}
	prompt, err := e.appendBotMessage(ctx, p.ChatID, p.Context, p.BotID, stepData.Message, stepData.Actions, nextStep)
	if err != nil {
		return nil, err
	}
	appended = append(appended, *prompt)

	if err := e.progressDAO.Set(ctx, p.ChatID, p.Context, nextStep); err != nil {
		return nil, storageFault("update progress record", err)
	}
	return appended, nil
}

// confirmThenAdvance appends a fixed confirmation and moves the tracker
// without delivering the next prompt; the next respond call delivers it.
func confirmThenAdvance(ctx context.Context, e *ConversationEngine, p ActionParams, confirmation, nextStep string) ([]models.Message, error) {
	confirm, err := e.appendBotMessage(ctx, p.ChatID, p.Context, p.BotID, confirmation, nil, "")
	if err != nil {
		return nil, err
	}
	if err := e.progressDAO.Set(ctx, p.ChatID, p.Context, nextStep); err != nil {
		return nil, storageFault("update progress record", err)
	}
	return []models.Message{*confirm}, nil
}

func handleOnboardingStart(ctx context.Context, e *ConversationEngine, p ActionParams) ([]models.Message, error) {
	return confirmThenPrompt(ctx, e, p, "Awesome, let's get you set up.", StepTwo)
}

func handleUploadResume(ctx context.Context, e *ConversationEngine, p ActionParams) ([]models.Message, error) {
	return confirmThenPrompt(ctx, e, p, "Got your file, thanks for sharing it.", StepThree)
}

func handleSkipResume(ctx context.Context, e *ConversationEngine, p ActionParams) ([]models.Message, error) {
	return confirmThenAdvance(ctx, e, p, "No problem, you can add it later from your profile.", StepThree)
}

func handleFinishSetup(ctx context.Context, e *ConversationEngine, p ActionParams) ([]models.Message, error) {
	return confirmThenPrompt(ctx, e, p, "Perfect, that's everything I needed.", StepFour)
}
