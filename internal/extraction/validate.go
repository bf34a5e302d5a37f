package extraction

import (
	"fmt"
	"math"

	"maitred/internal/catalog"
	"maitred/internal/models"
	"maitred/internal/retrieval"
)

// Validation is the outcome of Validate
type Validation struct {
	Items      []Item
	Confidence float64
	Warnings   []string
	// Inconsistent lists candidate ids the catalog no longer has
	Inconsistent []string
}

// Validate restricts a raw backend result to the candidate set and the snapshot.
// It never fails: problems become warnings and the offending parts are dropped or repaired.
func Validate(raw *RawResult, candidates []retrieval.Candidate, snap *catalog.Snapshot) Validation {
	var v Validation
	if raw == nil {
		return v
	}

	allowed := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		allowed[c.MenuItemID] = true
	}

	for _, ri := range raw.Items {
		if !allowed[ri.MenuItemID] {
			v.Warnings = append(v.Warnings, fmt.Sprintf("dropped %q: not among candidates", ri.MenuItemID))
			continue
		}
		menuItem, ok := snap.Item(ri.MenuItemID)
		if !ok {
			v.Inconsistent = append(v.Inconsistent, ri.MenuItemID)
			v.Warnings = append(v.Warnings, fmt.Sprintf("dropped %q: missing from catalog", ri.MenuItemID))
			continue
		}

		qty := int(math.Round(ri.Quantity))
		if qty < 1 {
			v.Warnings = append(v.Warnings, fmt.Sprintf("quantity of %q raised to 1", ri.MenuItemID))
			qty = 1
		}

		optionIDs := validOptions(ri, snap, &v)

		item := Item{
			ExtractedItem: models.ExtractedItem{
				MenuItemID: ri.MenuItemID,
				Name:       menuItem.Name,
				Quantity:   qty,
				OptionIDs:  optionIDs,
				Notes:      ri.Notes,
				Confidence: clamp01(ri.Confidence),
			},
			UnitPrice: snap.UnitPrice(ri.MenuItemID, optionIDs),
		}
		for _, g := range snap.MissingRequired(ri.MenuItemID, optionIDs) {
			item.MissingRequired = append(item.MissingRequired, g.ID)
		}
		v.Items = append(v.Items, item)
	}

	v.Confidence = clamp01(raw.Confidence)
	return v
}

// validOptions keeps known options and trims groups to their max_select
func validOptions(ri RawItem, snap *catalog.Snapshot, v *Validation) []string {
	perGroup := make(map[string]int)
	seen := make(map[string]bool)
	var kept []string
	for _, id := range ri.OptionIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		group, _, ok := snap.FindOption(ri.MenuItemID, id)
		if !ok {
			v.Warnings = append(v.Warnings, fmt.Sprintf("dropped option %q of %q", id, ri.MenuItemID))
			continue
		}
		if group.MaxSelect > 0 && perGroup[group.ID] >= group.MaxSelect {
			v.Warnings = append(v.Warnings, fmt.Sprintf("trimmed option %q: %q allows %d", id, group.Name, group.MaxSelect))
			continue
		}
		perGroup[group.ID]++
		kept = append(kept, id)
	}
	return kept
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) || f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
