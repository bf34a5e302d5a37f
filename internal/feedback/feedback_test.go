package feedback

import (
	"context"
	"testing"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/database"
	"maitred/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRecorder(t *testing.T) (*Recorder, *database.Store) {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	store := database.NewStore(db)
	return New(store, nil, zerolog.Nop()), store
}

func addIntent(t *testing.T, store *database.Store, tenant, id string, createdAt time.Time) {
	t.Helper()
	require.NoError(t, store.CreateIntent(context.Background(), &models.OrderIntent{
		ID: id, TenantID: tenant, ConversationID: "c1",
		Status: string(models.IntentStatusOK), Feedback: string(models.FeedbackUnset), CreatedAt: createdAt,
	}))
}

func TestSubmitFeedbackIsIdempotent(t *testing.T) {
	rec, store := newRecorder(t)
	ctx := context.Background()
	addIntent(t, store, "t1", "i1", time.Now().UTC())

	got, err := rec.SubmitFeedback(ctx, "t1", "i1", models.FeedbackIncorrect)
	require.NoError(t, err)
	assert.Equal(t, models.FeedbackIncorrect, got)

	for i := 0; i < 3; i++ {
		got, err = rec.SubmitFeedback(ctx, "t1", "i1", models.FeedbackCorrect)
		require.NoError(t, err)
		assert.Equal(t, models.FeedbackIncorrect, got)
	}

	stored, err := store.GetIntent(ctx, "t1", "i1")
	require.NoError(t, err)
	assert.Equal(t, string(models.FeedbackIncorrect), stored.Feedback)
	require.NotNil(t, stored.FeedbackAt)
}

func TestSubmitFeedbackUnknownIntent(t *testing.T) {
	rec, store := newRecorder(t)
	addIntent(t, store, "t1", "i1", time.Now().UTC())

	_, err := rec.SubmitFeedback(context.Background(), "t1", "missing", models.FeedbackCorrect)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))

	_, err = rec.SubmitFeedback(context.Background(), "t2", "i1", models.FeedbackCorrect)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestSubmitFeedbackRejectsUnknownVerdict(t *testing.T) {
	rec, _ := newRecorder(t)
	_, err := rec.SubmitFeedback(context.Background(), "t1", "i1", models.FeedbackUnset)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = ParseVerdict("maybe")
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestAccuracyOverWindow(t *testing.T) {
	rec, store := newRecorder(t)
	ctx := context.Background()
	now := time.Now().UTC()

	addIntent(t, store, "t1", "i1", now.Add(-time.Hour))
	addIntent(t, store, "t1", "i2", now.Add(-2*time.Hour))
	addIntent(t, store, "t1", "i3", now.Add(-3*time.Hour))
	addIntent(t, store, "t1", "i4", now.Add(-3*time.Hour))
	addIntent(t, store, "t1", "old", now.Add(-30*24*time.Hour))
	addIntent(t, store, "t2", "other", now.Add(-time.Hour))

	for id, fb := range map[string]models.Feedback{
		"i1": models.FeedbackCorrect, "i2": models.FeedbackCorrect, "i3": models.FeedbackIncorrect,
		"old": models.FeedbackIncorrect, "other": models.FeedbackIncorrect,
	} {
		tenant := "t1"
		if id == "other" {
			tenant = "t2"
		}
		_, err := rec.SubmitFeedback(ctx, tenant, id, fb)
		require.NoError(t, err)
	}

	acc, err := rec.Accuracy(ctx, "t1", 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 4, acc.Total)
	assert.Equal(t, 3, acc.Rated)
	assert.Equal(t, 2, acc.Correct)
	assert.InDelta(t, 2.0/3.0, acc.Rate, 1e-9)

	empty, err := rec.Accuracy(ctx, "nobody", 0)
	require.NoError(t, err)
	assert.Equal(t, 0.0, empty.Rate)
	assert.Equal(t, DefaultWindow.String(), empty.Window)
}
