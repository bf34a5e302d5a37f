package conversation

// State is where a conversation is in the ordering flow
type State string

const (
	StateIdle                  State = "IDLE"
	StateGreeted               State = "GREETED"
	StateBrowsing              State = "BROWSING"
	StateBuildingOrder         State = "BUILDING_ORDER"
	StateAwaitingLocation      State = "AWAITING_LOCATION"
	StateAwaitingPaymentMethod State = "AWAITING_PAYMENT_METHOD"
	StateAwaitingPayment       State = "AWAITING_PAYMENT"
	StateConfirmed             State = "CONFIRMED"
	StateCancelled             State = "CANCELLED"
)

// IsTerminal reports whether the next text starts a fresh order
func (s State) IsTerminal() bool {
	return s == StateConfirmed || s == StateCancelled
}

// collectsItems reports whether items may still be added in this state
func (s State) collectsItems() bool {
	switch s {
	case StateGreeted, StateBrowsing, StateBuildingOrder:
		return true
	}
	return false
}

// needsOrder reports whether the state only makes sense with a draft order behind it
func (s State) needsOrder() bool {
	switch s {
	case StateAwaitingLocation, StateAwaitingPaymentMethod, StateAwaitingPayment:
		return true
	}
	return false
}
