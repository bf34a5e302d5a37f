package upsell

import (
	"context"
	"fmt"
	"sort"

	"maitred/internal/models"
)

// Source names the strategy that produced a suggestion
type Source string

const (
	SourceRule       Source = "rule"
	SourceCoPurchase Source = "co_purchase"
)

// Strategy proposes at most one item to suggest for the current order
type Strategy interface {
	Source() Source
	Propose(ctx context.Context, req Request, active map[string]models.MenuItem) (string, bool, error)
}

// RuleStrategy applies the tenant's manual cross-sell rules
type RuleStrategy struct {
	store Store
}

func (s *RuleStrategy) Source() Source { return SourceRule }

// Propose picks the highest-priority active rule triggered by the order whose
// suggestion is on the menu and not already ordered. Ties go to the older rule.
func (s *RuleStrategy) Propose(ctx context.Context, req Request, active map[string]models.MenuItem) (string, bool, error) {
	rules, err := s.store.ActiveRules(ctx, req.TenantID)
	if err != nil {
		return "", false, err
	}
	sort.SliceStable(rules, func(i, j int) bool {
		if rules[i].Priority != rules[j].Priority {
			return rules[i].Priority > rules[j].Priority
		}
		return rules[i].ID < rules[j].ID
	})

	current := req.itemSet()
	for _, rule := range rules {
		if !rule.Active || !current[rule.TriggerItemID] || current[rule.SuggestItemID] {
			continue
		}
		if _, ok := active[rule.SuggestItemID]; !ok {
			continue
		}
		return rule.SuggestItemID, true, nil
	}
	return "", false, nil
}

// CoPurchaseStrategy suggests what other customers most often ordered together with the current items
type CoPurchaseStrategy struct {
	store      Store
	sampleSize int
	minCount   int
}

func (s *CoPurchaseStrategy) Source() Source { return SourceCoPurchase }

// Propose counts, per sampled order, the items not already in the current order
func (s *CoPurchaseStrategy) Propose(ctx context.Context, req Request, active map[string]models.MenuItem) (string, bool, error) {
	current := req.itemSet()
	ids := make([]string, 0, len(current))
	for id := range current {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	orders, err := s.store.RecentOrdersContaining(ctx, req.TenantID, ids, s.sampleSize)
	if err != nil {
		return "", false, fmt.Errorf("co-purchase sample: %w", err)
	}

	counts := make(map[string]int)
	for _, order := range orders {
		if order.ID == req.OrderID {
			continue
		}
		seen := make(map[string]bool, len(order.Items))
		for _, line := range order.Items {
			if current[line.MenuItemID] || seen[line.MenuItemID] {
				continue
			}
			seen[line.MenuItemID] = true
			counts[line.MenuItemID]++
		}
	}

	best, bestCount := "", 0
	for id, n := range counts {
		if n < s.minCount {
			continue
		}
		if _, ok := active[id]; !ok {
			continue
		}
		if n > bestCount || (n == bestCount && id < best) {
			best, bestCount = id, n
		}
	}
	return best, best != "", nil
}
