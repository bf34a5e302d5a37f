package database

import (
	"context"
	"fmt"

	"maitred/internal/models"

	"github.com/jinzhu/gorm"
)

// MenuVersion returns the tenant's published menu version, 0 for unknown tenants
func (s *Store) MenuVersion(ctx context.Context, tenantID string) (int, error) {
	var tenant models.Tenant
	err := s.db.Where("id = ?", tenantID).First(&tenant).Error
	if gorm.IsRecordNotFoundError(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("load tenant %s: %w", tenantID, err)
	}
	return tenant.MenuVersion, nil
}

// GetActiveMenuItems returns every active item on the tenant's menu ordered by id
func (s *Store) GetActiveMenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error) {
	var items []models.MenuItem
	err := s.db.Where("tenant_id = ? AND active = ?", tenantID, true).Order("id ASC").Find(&items).Error
	if err != nil {
		return nil, fmt.Errorf("load menu items for %s: %w", tenantID, err)
	}
	return items, nil
}

// GetSynonyms returns the tenant's synonym phrases
func (s *Store) GetSynonyms(ctx context.Context, tenantID string) ([]models.MenuSynonym, error) {
	var synonyms []models.MenuSynonym
	err := s.db.Where("tenant_id = ?", tenantID).Order("id ASC").Find(&synonyms).Error
	if err != nil {
		return nil, fmt.Errorf("load synonyms for %s: %w", tenantID, err)
	}
	return synonyms, nil
}

// GetOptionGroups returns the option groups (with options) of the given items
func (s *Store) GetOptionGroups(ctx context.Context, tenantID string, itemIDs []string) ([]models.OptionGroup, error) {
	return optionGroups(s.db, tenantID, itemIDs)
}

// GetMenuSlice reads the active items among itemIDs and their option groups
// inside one transaction, so both halves come from the same published menu
func (s *Store) GetMenuSlice(ctx context.Context, tenantID string, itemIDs []string) ([]models.MenuItem, []models.OptionGroup, error) {
	if len(itemIDs) == 0 {
		return nil, nil, nil
	}
	var (
		items  []models.MenuItem
		groups []models.OptionGroup
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if tx.Dialect().GetName() == "postgres" {
			if err := tx.Exec("SET TRANSACTION ISOLATION LEVEL REPEATABLE READ").Error; err != nil {
				return fmt.Errorf("set isolation: %w", err)
			}
		}
		err := tx.Where("tenant_id = ? AND active = ? AND id IN (?)", tenantID, true, itemIDs).
			Order("id ASC").Find(&items).Error
		if err != nil {
			return fmt.Errorf("load menu items for %s: %w", tenantID, err)
		}
		groups, err = optionGroups(tx, tenantID, itemIDs)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return items, groups, nil
}

func optionGroups(db *gorm.DB, tenantID string, itemIDs []string) ([]models.OptionGroup, error) {
	if len(itemIDs) == 0 {
		return nil, nil
	}
	var groups []models.OptionGroup
	err := db.
		Preload("Options", func(db *gorm.DB) *gorm.DB {
			return db.Where("tenant_id = ?", tenantID).Order("position ASC").Order("id ASC")
		}).
		Where("tenant_id = ? AND menu_item_id IN (?)", tenantID, itemIDs).
		Order("menu_item_id ASC").Order("position ASC").Order("id ASC").
		Find(&groups).Error
	if err != nil {
		return nil, fmt.Errorf("load option groups for %s: %w", tenantID, err)
	}
	return groups, nil
}
