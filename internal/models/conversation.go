package models

import (
	"database/sql/driver"
	"time"
)

// Conversation is one ongoing chat between a tenant and a customer channel address
type Conversation struct {
	ID                uint   `gorm:"primary_key"`
	TenantID          string `gorm:"unique_index:ux_conversations_tenant_conversation;not null"`
	ConversationID    string `gorm:"unique_index:ux_conversations_tenant_conversation;not null"`
	CustomerID        string `gorm:"not null"`
	CustomerName      string
	State             string `gorm:"not null"`
	OrderID           *string
	LastActivityAt    time.Time
	History           MessageHistory    `gorm:"type:text"`
	PendingSelections PendingSelections `gorm:"type:text"`
	PendingUpsellID   *uint
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Message directions kept in the rolling history
const (
	DirectionInbound  = "in"
	DirectionOutbound = "out"
)

// HistoryEntry is one message kept as extraction context
type HistoryEntry struct {
	Direction string    `json:"direction"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// MessageHistory is the short rolling buffer of recent messages
type MessageHistory []HistoryEntry

func (h MessageHistory) Value() (driver.Value, error) {
	if len(h) == 0 {
		return "[]", nil
	}
	return jsonValue(h)
}

func (h *MessageHistory) Scan(value interface{}) error {
	if value == nil {
		*h = MessageHistory{}
		return nil
	}
	return jsonScan(value, h)
}

// Append adds an entry and keeps only the newest max entries
func (h MessageHistory) Append(entry HistoryEntry, max int) MessageHistory {
	h = append(h, entry)
	if max > 0 && len(h) > max {
		h = append(MessageHistory(nil), h[len(h)-max:]...)
	}
	return h
}

// PendingSelection is an extracted item held back until a required option is chosen
type PendingSelection struct {
	MenuItemID string   `json:"menu_item_id"`
	Quantity   int      `json:"quantity"`
	OptionIDs  []string `json:"option_ids"`
	Notes      string   `json:"notes,omitempty"`
	GroupID    string   `json:"group_id"`
}

// PendingSelections queues items awaiting a required option, first one is being asked
type PendingSelections []PendingSelection

func (p PendingSelections) Value() (driver.Value, error) {
	if len(p) == 0 {
		return "[]", nil
	}
	return jsonValue(p)
}

func (p *PendingSelections) Scan(value interface{}) error {
	if value == nil {
		*p = PendingSelections{}
		return nil
	}
	return jsonScan(value, p)
}
