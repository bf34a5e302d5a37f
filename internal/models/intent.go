package models

import (
	"database/sql/driver"
	"time"
)

// Feedback is the post-hoc human verdict on an extraction
type Feedback string

const (
	FeedbackUnset     Feedback = "unset"
	FeedbackCorrect   Feedback = "correct"
	FeedbackIncorrect Feedback = "incorrect"
)

// IntentStatus describes how an extraction attempt ended
type IntentStatus string

const (
	IntentStatusOK           IntentStatus = "ok"
	IntentStatusNoCandidates IntentStatus = "no_candidates"
	IntentStatusUnavailable  IntentStatus = "unavailable"
	IntentStatusFailed       IntentStatus = "failed"
)

// OrderIntent is the persisted record of one extraction attempt
type OrderIntent struct {
	ID             string         `gorm:"primary_key"`
	TenantID       string         `gorm:"index:idx_order_intents_tenant_created;not null"`
	ConversationID string         `gorm:"not null"`
	RawText        string         `gorm:"type:text"`
	Items          ExtractedItems `gorm:"type:text"`
	Confidence     float64
	ModelID        string
	Status         string      `gorm:"not null"`
	Warnings       StringSlice `gorm:"type:text"`
	Feedback       string      `gorm:"not null"`
	FeedbackAt     *time.Time
	CreatedAt      time.Time `gorm:"index:idx_order_intents_tenant_created"`
}

// ExtractedItem is one validated line of an intent
type ExtractedItem struct {
	MenuItemID string   `json:"menu_item_id"`
	Name       string   `json:"name"`
	Quantity   int      `json:"quantity"`
	OptionIDs  []string `json:"option_ids,omitempty"`
	Notes      string   `json:"notes,omitempty"`
	Confidence float64  `json:"confidence"`
}

// ExtractedItems is stored as a JSON column
type ExtractedItems []ExtractedItem

func (e ExtractedItems) Value() (driver.Value, error) {
	if len(e) == 0 {
		return "[]", nil
	}
	return jsonValue(e)
}

func (e *ExtractedItems) Scan(value interface{}) error {
	if value == nil {
		*e = ExtractedItems{}
		return nil
	}
	return jsonScan(value, e)
}
