package conversation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const (
	// MaxButtons is the most buttons one message may carry
	MaxButtons = 3
	// MaxButtonLabel is the longest button title in runes
	MaxButtonLabel = 20
)

// EventKind is the type of an inbound event
type EventKind string

const (
	EventText     EventKind = "text"
	EventLocation EventKind = "location"
	EventButton   EventKind = "button"
	EventPayment  EventKind = "payment"
)

// Button ids understood by the orchestrator
const (
	ButtonMenu      = "menu"
	ButtonCheckout  = "checkout"
	ButtonCancel    = "cancel"
	ButtonPayCard   = "pay:card"
	ButtonPayCash   = "pay:cash"
	ButtonUpsellYes = "upsell:yes"
	ButtonUpsellNo  = "upsell:no"

	addPrefix    = "add:"
	optionPrefix = "opt:"
)

// Location is a shared map point
type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// PaymentOutcome is reported by the payment provider
type PaymentOutcome struct {
	Success   bool   `json:"success"`
	Reference string `json:"reference"`
}

// Event is one inbound thing that happened in the chat
type Event struct {
	Kind     EventKind       `json:"kind"`
	Text     string          `json:"text,omitempty"`
	Location *Location       `json:"location,omitempty"`
	ButtonID string          `json:"button_id,omitempty"`
	Payment  *PaymentOutcome `json:"payment,omitempty"`
}

// Validate checks that the event carries the payload of its kind
func (e Event) Validate() error {
	switch e.Kind {
	case EventText:
		if strings.TrimSpace(e.Text) == "" {
			return fmt.Errorf("text event without text")
		}
	case EventLocation:
		if e.Location == nil {
			return fmt.Errorf("location event without coordinates")
		}
		if e.Location.Lat < -90 || e.Location.Lat > 90 || e.Location.Lng < -180 || e.Location.Lng > 180 {
			return fmt.Errorf("location out of range")
		}
	case EventButton:
		if e.ButtonID == "" {
			return fmt.Errorf("button event without id")
		}
	case EventPayment:
		if e.Payment == nil {
			return fmt.Errorf("payment event without outcome")
		}
	default:
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	return nil
}

// Customer identifies who is writing
type Customer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Turn is one inbound event for a conversation
type Turn struct {
	TenantID       string
	ConversationID string
	Customer       Customer
	Event          Event
}

// Button is a quick reply offered to the customer
type Button struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// OutboundMessage is one reply
type OutboundMessage struct {
	Text    string   `json:"text"`
	Buttons []Button `json:"buttons,omitempty"`
}

// NewMessage builds a reply keeping at most MaxButtons buttons with titles
// shortened to MaxButtonLabel runes
func NewMessage(text string, buttons ...Button) OutboundMessage {
	if len(buttons) > MaxButtons {
		buttons = buttons[:MaxButtons]
	}
	msg := OutboundMessage{Text: text}
	for _, b := range buttons {
		msg.Buttons = append(msg.Buttons, Button{ID: b.ID, Title: truncateLabel(b.Title)})
	}
	return msg
}

func truncateLabel(s string) string {
	s = strings.TrimSpace(s)
	if utf8.RuneCountInString(s) <= MaxButtonLabel {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:MaxButtonLabel-1])) + "…"
}

// TurnResult is what a turn produced
type TurnResult struct {
	Replies []OutboundMessage `json:"replies"`
	State   State             `json:"state"`
	// NoOp is set when the event was ignored and nothing changed
	NoOp     bool   `json:"no_op"`
	OrderID  string `json:"order_id,omitempty"`
	IntentID string `json:"intent_id,omitempty"`
}
