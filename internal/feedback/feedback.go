// Package feedback records human verdicts on extracted intents and reports accuracy.
package feedback

import (
	"context"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/database"
	"maitred/internal/models"
	"maitred/internal/monitoring"

	"github.com/rs/zerolog"
)

// DefaultWindow is used when Accuracy is asked for a non-positive window
const DefaultWindow = 7 * 24 * time.Hour

// Store is the intent persistence the recorder needs
type Store interface {
	GetIntent(ctx context.Context, tenantID, intentID string) (*models.OrderIntent, error)
	SetIntentFeedback(ctx context.Context, tenantID, intentID string, feedback models.Feedback, at time.Time) (bool, error)
	IntentStatsSince(ctx context.Context, tenantID string, since time.Time) (database.IntentStats, error)
}

// Accuracy summarizes feedback over a trailing window
type Accuracy struct {
	TenantID  string  `json:"tenant_id"`
	Window    string  `json:"window"`
	Total     int     `json:"total"`
	Rated     int     `json:"rated"`
	Correct   int     `json:"correct"`
	Incorrect int     `json:"incorrect"`
	Rate      float64 `json:"rate"`
}

// Recorder implements feedback submission and accuracy queries
type Recorder struct {
	store   Store
	metrics *monitoring.Collector
	log     zerolog.Logger
	now     func() time.Time
}

// New creates a recorder
func New(store Store, metrics *monitoring.Collector, log zerolog.Logger) *Recorder {
	return &Recorder{
		store:   store,
		metrics: metrics,
		log:     log.With().Str("component", "feedback").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ParseVerdict accepts "correct" or "incorrect"
func ParseVerdict(s string) (models.Feedback, error) {
	switch models.Feedback(s) {
	case models.FeedbackCorrect, models.FeedbackIncorrect:
		return models.Feedback(s), nil
	}
	return "", apperr.New(apperr.KindValidation, "feedback must be correct or incorrect", nil)
}

// SubmitFeedback records the verdict if none was recorded yet. A repeat
// submission changes nothing and returns the verdict already stored.
func (r *Recorder) SubmitFeedback(ctx context.Context, tenantID, intentID string, verdict models.Feedback) (models.Feedback, error) {
	if _, err := ParseVerdict(string(verdict)); err != nil {
		return "", err
	}

	changed, err := r.store.SetIntentFeedback(ctx, tenantID, intentID, verdict, r.now())
	if err != nil {
		return "", err
	}
	if changed {
		r.log.Info().Str("tenant", tenantID).Str("intent", intentID).Str("feedback", string(verdict)).Msg("feedback recorded")
		return verdict, nil
	}

	intent, err := r.store.GetIntent(ctx, tenantID, intentID)
	if err != nil {
		return "", err
	}
	r.log.Debug().Str("tenant", tenantID).Str("intent", intentID).Msg("feedback already recorded")
	return models.Feedback(intent.Feedback), nil
}

// Accuracy reports the correct share of rated intents created within window
func (r *Recorder) Accuracy(ctx context.Context, tenantID string, window time.Duration) (Accuracy, error) {
	if window <= 0 {
		window = DefaultWindow
	}
	stats, err := r.store.IntentStatsSince(ctx, tenantID, r.now().Add(-window))
	if err != nil {
		return Accuracy{}, err
	}

	acc := Accuracy{
		TenantID:  tenantID,
		Window:    window.String(),
		Total:     stats.Total,
		Rated:     stats.Correct + stats.Incorrect,
		Correct:   stats.Correct,
		Incorrect: stats.Incorrect,
	}
	if acc.Rated > 0 {
		acc.Rate = float64(acc.Correct) / float64(acc.Rated)
	}
	r.metrics.RecordAccuracy(tenantID, acc.Rate)
	return acc, nil
}
