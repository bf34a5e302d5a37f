package database

import (
	"context"
	"fmt"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/models"

	"github.com/jinzhu/gorm"
)

// IntentStats are raw feedback counts over a set of intents
type IntentStats struct {
	Total     int
	Correct   int
	Incorrect int
}

// CreateIntent persists an extraction attempt
func (s *Store) CreateIntent(ctx context.Context, intent *models.OrderIntent) error {
	if err := s.db.Create(intent).Error; err != nil {
		return fmt.Errorf("create intent %s: %w", intent.ID, err)
	}
	return nil
}

// GetIntent loads an intent by id within the tenant
func (s *Store) GetIntent(ctx context.Context, tenantID, intentID string) (*models.OrderIntent, error) {
	var intent models.OrderIntent
	err := s.db.Where("tenant_id = ? AND id = ?", tenantID, intentID).First(&intent).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, apperr.New(apperr.KindNotFound, "intent "+intentID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load intent %s: %w", intentID, err)
	}
	return &intent, nil
}

// SetIntentFeedback records feedback only while it is still unset.
// It reports whether this call changed the row.
func (s *Store) SetIntentFeedback(ctx context.Context, tenantID, intentID string, feedback models.Feedback, at time.Time) (bool, error) {
	res := s.db.Model(&models.OrderIntent{}).
		Where("tenant_id = ? AND id = ? AND feedback = ?", tenantID, intentID, string(models.FeedbackUnset)).
		Updates(map[string]interface{}{
			"feedback":    string(feedback),
			"feedback_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("record feedback for intent %s: %w", intentID, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// IntentStatsSince counts the tenant's intents created after since, by feedback
func (s *Store) IntentStatsSince(ctx context.Context, tenantID string, since time.Time) (IntentStats, error) {
	var rows []struct {
		Feedback string
		N        int
	}
	err := s.db.Model(&models.OrderIntent{}).
		Select("feedback, count(*) as n").
		Where("tenant_id = ? AND created_at > ?", tenantID, since).
		Group("feedback").
		Scan(&rows).Error
	if err != nil {
		return IntentStats{}, fmt.Errorf("count intents: %w", err)
	}

	var stats IntentStats
	for _, r := range rows {
		stats.Total += r.N
		switch models.Feedback(r.Feedback) {
		case models.FeedbackCorrect:
			stats.Correct += r.N
		case models.FeedbackIncorrect:
			stats.Incorrect += r.N
		}
	}
	return stats, nil
}
