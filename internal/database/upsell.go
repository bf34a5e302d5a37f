package database

import (
	"context"
	"fmt"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/models"

	"github.com/jinzhu/gorm"
)

// ActiveRules returns the tenant's active cross-sell rules, highest priority first
func (s *Store) ActiveRules(ctx context.Context, tenantID string) ([]models.CrossSellRule, error) {
	var rules []models.CrossSellRule
	err := s.db.Where("tenant_id = ? AND active = ?", tenantID, true).
		Order("priority DESC").Order("id ASC").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("load cross-sell rules: %w", err)
	}
	return rules, nil
}

// CreateUpsellEvent records a shown suggestion
func (s *Store) CreateUpsellEvent(ctx context.Context, event *models.UpsellEvent) error {
	if err := s.db.Create(event).Error; err != nil {
		return fmt.Errorf("create upsell event: %w", err)
	}
	return nil
}

// GetUpsellEvent loads an event within the tenant
func (s *Store) GetUpsellEvent(ctx context.Context, tenantID string, id uint) (*models.UpsellEvent, error) {
	var event models.UpsellEvent
	err := s.db.Where("tenant_id = ? AND id = ?", tenantID, id).First(&event).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, apperr.New(apperr.KindNotFound, fmt.Sprintf("upsell event %d", id), err)
	}
	if err != nil {
		return nil, fmt.Errorf("load upsell event %d: %w", id, err)
	}
	return &event, nil
}

// ResolveUpsellEvent sets the outcome of a shown event; it reports whether the row changed
func (s *Store) ResolveUpsellEvent(ctx context.Context, tenantID string, id uint, outcome models.UpsellOutcome, at time.Time) (bool, error) {
	res := s.db.Model(&models.UpsellEvent{}).
		Where("tenant_id = ? AND id = ? AND outcome = ?", tenantID, id, string(models.UpsellOutcomeShown)).
		Updates(map[string]interface{}{
			"outcome":     string(outcome),
			"resolved_at": at,
		})
	if res.Error != nil {
		return false, fmt.Errorf("resolve upsell event %d: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

// LastRejection returns the newest rejected event for the item in the conversation, or nil
func (s *Store) LastRejection(ctx context.Context, tenantID, conversationID, itemID string) (*models.UpsellEvent, error) {
	var event models.UpsellEvent
	err := s.db.Where("tenant_id = ? AND conversation_id = ? AND suggested_item_id = ? AND outcome = ?",
		tenantID, conversationID, itemID, string(models.UpsellOutcomeRejected)).
		Order("resolved_at DESC").Order("id DESC").
		First(&event).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load last rejection: %w", err)
	}
	return &event, nil
}
