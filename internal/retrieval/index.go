package retrieval

import (
	"maitred/internal/models"
)

// MatchType tells which layer produced a candidate
type MatchType string

const (
	MatchExact   MatchType = "exact"
	MatchSynonym MatchType = "synonym"
	MatchFuzzy   MatchType = "fuzzy"
)

// Candidate is a menu item hypothesized to be mentioned in a message
type Candidate struct {
	MenuItemID    string    `json:"menu_item_id"`
	Name          string    `json:"name"`
	MatchedPhrase string    `json:"matched_phrase"`
	Score         float64   `json:"score"`
	MatchType     MatchType `json:"match_type"`
}

type phrase struct {
	itemID string
	text   string
	tokens []string
	weight float64
}

// Index is an immutable, pre-tokenized view of one tenant's menu version
type Index struct {
	TenantID string
	Version  int
	items    map[string]models.MenuItem
	names    []phrase
	synonyms []phrase
}

// BuildIndex tokenizes item names and synonyms. Synonyms of inactive or unknown items are skipped.
func BuildIndex(tenantID string, version int, items []models.MenuItem, synonyms []models.MenuSynonym) *Index {
	idx := &Index{
		TenantID: tenantID,
		Version:  version,
		items:    make(map[string]models.MenuItem, len(items)),
	}
	for _, item := range items {
		if !item.Active {
			continue
		}
		idx.items[item.ID] = item
		idx.names = append(idx.names, phrase{itemID: item.ID, text: item.Name, tokens: Tokenize(item.Name), weight: 1})
	}
	for _, syn := range synonyms {
		if _, ok := idx.items[syn.MenuItemID]; !ok {
			continue
		}
		w := syn.Weight
		if w <= 0 || w > 1 {
			w = 1
		}
		idx.synonyms = append(idx.synonyms, phrase{itemID: syn.MenuItemID, text: syn.Phrase, tokens: Tokenize(syn.Phrase), weight: w})
	}
	return idx
}

// Size is the number of active items in the index
func (idx *Index) Size() int {
	return len(idx.items)
}
