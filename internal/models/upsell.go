package models

import "time"

// UpsellOutcome tracks what the customer did with a suggestion
type UpsellOutcome string

const (
	UpsellOutcomeShown    UpsellOutcome = "shown"
	UpsellOutcomeAccepted UpsellOutcome = "accepted"
	UpsellOutcomeRejected UpsellOutcome = "rejected"
)

// UpsellEvent records one suggestion shown to a customer and how it was resolved
type UpsellEvent struct {
	ID              uint   `gorm:"primary_key"`
	TenantID        string `gorm:"index:idx_upsell_events_lookup;not null"`
	ConversationID  string `gorm:"index:idx_upsell_events_lookup;not null"`
	SuggestedItemID string `gorm:"index:idx_upsell_events_lookup;not null"`
	OrderID         string
	Source          string
	Message         string `gorm:"type:text"`
	Outcome         string `gorm:"not null"`
	ResolvedAt      *time.Time
	CreatedAt       time.Time
}
