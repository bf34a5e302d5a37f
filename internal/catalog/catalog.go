// Package catalog describes the read-only menu collaborator and the immutable
// snapshots the engine takes from it.
package catalog

import (
	"context"
	"fmt"

	"maitred/internal/models"

	"github.com/shopspring/decimal"
)

// Catalog is the read-only menu source. *database.Store implements it.
type Catalog interface {
	MenuVersion(ctx context.Context, tenantID string) (int, error)
	GetActiveMenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error)
	GetSynonyms(ctx context.Context, tenantID string) ([]models.MenuSynonym, error)
	// GetMenuSlice reads the active items among itemIDs and their option
	// groups as one consistent view of the menu
	GetMenuSlice(ctx context.Context, tenantID string, itemIDs []string) ([]models.MenuItem, []models.OptionGroup, error)
}

// Snapshot is an immutable copy of items and option groups for a set of item ids
type Snapshot struct {
	TenantID string
	items    map[string]models.MenuItem
	groups   map[string][]models.OptionGroup
}

// Take reads the active items among itemIDs and their option groups in one
// consistent read. Ids that are not active on the menu are simply absent.
func Take(ctx context.Context, cat Catalog, tenantID string, itemIDs []string) (*Snapshot, error) {
	snap := &Snapshot{
		TenantID: tenantID,
		items:    make(map[string]models.MenuItem, len(itemIDs)),
		groups:   make(map[string][]models.OptionGroup, len(itemIDs)),
	}
	if len(itemIDs) == 0 {
		return snap, nil
	}

	items, groups, err := cat.GetMenuSlice(ctx, tenantID, itemIDs)
	if err != nil {
		return nil, fmt.Errorf("snapshot menu: %w", err)
	}
	for _, item := range items {
		snap.items[item.ID] = item
	}
	for _, g := range groups {
		if _, ok := snap.items[g.MenuItemID]; ok {
			snap.groups[g.MenuItemID] = append(snap.groups[g.MenuItemID], g)
		}
	}
	return snap, nil
}

// Item returns the snapshotted item
func (s *Snapshot) Item(id string) (models.MenuItem, bool) {
	item, ok := s.items[id]
	return item, ok
}

// Groups returns the option groups of an item
func (s *Snapshot) Groups(itemID string) []models.OptionGroup {
	return s.groups[itemID]
}

// Group returns one option group of an item
func (s *Snapshot) Group(itemID, groupID string) (models.OptionGroup, bool) {
	for _, g := range s.groups[itemID] {
		if g.ID == groupID {
			return g, true
		}
	}
	return models.OptionGroup{}, false
}

// FindOption locates an active option among the item's groups
func (s *Snapshot) FindOption(itemID, optionID string) (models.OptionGroup, models.MenuOption, bool) {
	for _, g := range s.groups[itemID] {
		if opt, ok := g.OptionByID(optionID); ok {
			return g, opt, true
		}
	}
	return models.OptionGroup{}, models.MenuOption{}, false
}

// UnitPrice is the item price plus the deltas of the selected options
func (s *Snapshot) UnitPrice(itemID string, optionIDs []string) decimal.Decimal {
	item, ok := s.items[itemID]
	if !ok {
		return decimal.Zero
	}
	price := item.Price
	for _, id := range optionIDs {
		if _, opt, ok := s.FindOption(itemID, id); ok {
			price = price.Add(opt.PriceDelta)
		}
	}
	return price
}

// MissingRequired returns the required groups of the item with no selection in optionIDs
func (s *Snapshot) MissingRequired(itemID string, optionIDs []string) []models.OptionGroup {
	var missing []models.OptionGroup
	for _, g := range s.groups[itemID] {
		if !g.Required {
			continue
		}
		chosen := false
		for _, id := range optionIDs {
			if _, ok := g.OptionByID(id); ok {
				chosen = true
				break
			}
		}
		if !chosen {
			missing = append(missing, g)
		}
	}
	return missing
}
