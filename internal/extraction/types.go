// Package extraction turns customer text into a validated order intent
// restricted to the retrieved menu candidates.
package extraction

import (
	"context"
	"errors"

	"maitred/internal/catalog"
	"maitred/internal/models"
	"maitred/internal/retrieval"

	"github.com/shopspring/decimal"
)

var (
	// ErrUnavailable means no backend is configured or it could not be reached
	ErrUnavailable = errors.New("extraction backend unavailable")
	// ErrMalformed means the backend answered with something that is not an extraction
	ErrMalformed = errors.New("malformed extraction response")
)

// Input is one extraction request from the orchestrator
type Input struct {
	TenantID       string
	ConversationID string
	Text           string
	History        models.MessageHistory
}

// Request is what a Backend sees: the text plus the closed world it may choose from
type Request struct {
	Text       string
	History    models.MessageHistory
	Candidates []retrieval.Candidate
	Snapshot   *catalog.Snapshot
}

// RawItem is one item as proposed by a backend, before validation
type RawItem struct {
	MenuItemID string   `json:"menu_item_id"`
	Quantity   float64  `json:"quantity"`
	OptionIDs  []string `json:"option_ids"`
	Notes      string   `json:"notes"`
	Confidence float64  `json:"confidence"`
}

// RawResult is the unvalidated backend answer
type RawResult struct {
	Items      []RawItem `json:"items"`
	Confidence float64   `json:"confidence"`
}

// Backend proposes items for a request
type Backend interface {
	Extract(ctx context.Context, req Request) (*RawResult, error)
	ModelID() string
}

// Item is a validated intent line
type Item struct {
	models.ExtractedItem
	UnitPrice decimal.Decimal
	// MissingRequired lists required option groups with no selection
	MissingRequired []string
}

// Intent is the validated outcome of one extraction attempt
type Intent struct {
	ID         string
	Status     models.IntentStatus
	Items      []Item
	Confidence float64
	ModelID    string
	Warnings   []string
	Candidates []retrieval.Candidate
	Snapshot   *catalog.Snapshot
}

// HasItems reports whether validation kept anything
func (i *Intent) HasItems() bool {
	return i != nil && len(i.Items) > 0
}
