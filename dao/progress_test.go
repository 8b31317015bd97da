package dao

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestProgress_GetMissing(t *testing.T) {
	d := NewProgressDAO(newTestDB(t))

	_, err := d.Get(context.Background(), "chat-1", "ONBOARDING")
	require.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestProgress_SetAndGet(t *testing.T) {
	d := NewProgressDAO(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "chat-1", "ONBOARDING", "STEP_1"))

	rec, err := d.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, "STEP_1", rec.StepName)
}

func TestProgress_SetIdempotent(t *testing.T) {
	d := NewProgressDAO(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "chat-1", "ONBOARDING", "STEP_1"))
	require.NoError(t, d.Set(ctx, "chat-1", "ONBOARDING", "STEP_1"))

	rec, err := d.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, "STEP_1", rec.StepName)
}

func TestProgress_Upsert(t *testing.T) {
	d := NewProgressDAO(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "chat-1", "ONBOARDING", "STEP_1"))
	require.NoError(t, d.Set(ctx, "chat-1", "ONBOARDING", "STEP_2"))

	rec, err := d.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, "STEP_2", rec.StepName)
}

func TestProgress_KeyedByChatAndContext(t *testing.T) {
	d := NewProgressDAO(newTestDB(t))
	ctx := context.Background()

	require.NoError(t, d.Set(ctx, "chat-1", "ONBOARDING", "STEP_2"))
	require.NoError(t, d.Set(ctx, "chat-1", "SUPPORT", "ASK"))
	require.NoError(t, d.Set(ctx, "chat-2", "ONBOARDING", "STEP_1"))

	rec, err := d.Get(ctx, "chat-1", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, "STEP_2", rec.StepName)

	rec, err = d.Get(ctx, "chat-1", "SUPPORT")
	require.NoError(t, err)
	require.Equal(t, "ASK", rec.StepName)

	rec, err = d.Get(ctx, "chat-2", "ONBOARDING")
	require.NoError(t, err)
	require.Equal(t, "STEP_1", rec.StepName)
}
