// Package conversation drives the per-conversation ordering state machine:
// every inbound event passes through here and leaves with at least one reply
// or an explicit no-op marker.
package conversation

import (
	"context"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/catalog"
	"maitred/internal/extraction"
	"maitred/internal/geo"
	"maitred/internal/models"
	"maitred/internal/monitoring"
	"maitred/internal/payment"
	"maitred/internal/upsell"

	"github.com/rs/zerolog"
)

// Store persists conversations and their draft orders
type Store interface {
	GetConversation(ctx context.Context, tenantID, conversationID string) (*models.Conversation, error)
	GetOrder(ctx context.Context, tenantID, orderID string) (*models.Order, error)
	SaveTurn(ctx context.Context, conv *models.Conversation, order *models.Order) error
}

// Extractor turns text into a validated intent
type Extractor interface {
	Extract(ctx context.Context, in extraction.Input) (*extraction.Intent, error)
}

// Upseller offers and resolves suggestions
type Upseller interface {
	Suggest(ctx context.Context, req upsell.Request) (*upsell.Suggestion, error)
	Resolve(ctx context.Context, tenantID string, eventID uint, accepted bool) (*models.UpsellEvent, error)
}

// Deps are the collaborators of the orchestrator
type Deps struct {
	Store       Store
	Catalog     catalog.Catalog
	Extractor   Extractor
	Upsell      Upseller
	Geo         geo.Checker
	Payments    payment.Gateway
	Sessions    *SessionStore
	Metrics     *monitoring.Collector
	Log         zerolog.Logger
	HistorySize int
}

// Orchestrator handles turns. Safe for concurrent use; turns of the same
// conversation are serialized by the session store.
type Orchestrator struct {
	store       Store
	catalog     catalog.Catalog
	extractor   Extractor
	upsell      Upseller
	geo         geo.Checker
	payments    payment.Gateway
	sessions    *SessionStore
	metrics     *monitoring.Collector
	log         zerolog.Logger
	historySize int
	now         func() time.Time
}

// New wires an orchestrator
func New(d Deps) *Orchestrator {
	if d.HistorySize <= 0 {
		d.HistorySize = 10
	}
	return &Orchestrator{
		store:       d.Store,
		catalog:     d.Catalog,
		extractor:   d.Extractor,
		upsell:      d.Upsell,
		geo:         d.Geo,
		payments:    d.Payments,
		sessions:    d.Sessions,
		metrics:     d.Metrics,
		log:         d.Log.With().Str("component", "conversation").Logger(),
		historySize: d.HistorySize,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// turn is the mutable working copy of one HandleTurn call
type turn struct {
	in       Turn
	conv     *models.Conversation
	order    *models.Order
	start    State
	history  models.MessageHistory
	replies  []OutboundMessage
	noOp     bool
	intentID string
	log      zerolog.Logger
}

func (t *turn) state() State { return State(t.conv.State) }

func (t *turn) setState(s State) { t.conv.State = string(s) }

func (t *turn) hasPending() bool { return len(t.conv.PendingSelections) > 0 }

func (t *turn) add(m OutboundMessage) { t.replies = append(t.replies, m) }

func (t *turn) reply(text string, buttons ...Button) {
	t.replies = append(t.replies, NewMessage(text, buttons...))
}

// HandleTurn applies one inbound event to its conversation
func (o *Orchestrator) HandleTurn(ctx context.Context, in Turn) (*TurnResult, error) {
	if in.TenantID == "" || in.ConversationID == "" {
		return nil, apperr.New(apperr.KindValidation, "tenant and conversation are required", nil)
	}
	invalid := in.Event.Validate()

	started := time.Now()
	sess, release, err := o.sessions.Acquire(ctx, in.TenantID, in.ConversationID)
	if err != nil {
		return nil, err
	}
	defer release()
	gen := sess.Generation()

	t, err := o.load(ctx, in)
	if err != nil {
		return o.failure(StateIdle), err
	}

	if invalid != nil {
		return o.reprompt(ctx, t, invalid, started)
	}

	if err := o.dispatch(ctx, t); err != nil {
		t.log.Error().Err(err).Str("state", string(t.start)).Msg("turn failed")
		return o.failure(t.start), err
	}

	if t.noOp {
		return &TurnResult{State: t.start, NoOp: true}, nil
	}

	now := o.now()
	t.conv.LastActivityAt = now
	for _, r := range t.replies {
		t.conv.History = t.conv.History.Append(models.HistoryEntry{Direction: models.DirectionOutbound, Text: r.Text, At: now}, o.historySize)
	}

	applied, err := sess.Commit(gen, func() error {
		return o.store.SaveTurn(ctx, t.conv, t.order)
	})
	if err != nil {
		t.log.Error().Err(err).Msg("saving turn failed")
		return o.failure(t.start), err
	}
	if !applied {
		t.log.Info().Msg("conversation was reset during the turn, discarding result")
		return &TurnResult{State: StateIdle, NoOp: true}, nil
	}

	final := t.state()
	if final != t.start {
		t.log.Info().Str("from", string(t.start)).Str("to", string(final)).Msg("state changed")
	}
	o.metrics.RecordTurn(string(in.Event.Kind), string(final), time.Since(started))

	result := &TurnResult{Replies: t.replies, State: final, IntentID: t.intentID}
	if t.conv.OrderID != nil {
		result.OrderID = *t.conv.OrderID
	}
	return result, nil
}

// Reset returns the conversation to IDLE, cancelling its draft order.
// Turns in flight for the conversation discard their results.
func (o *Orchestrator) Reset(ctx context.Context, tenantID, conversationID string) error {
	if tenantID == "" || conversationID == "" {
		return apperr.New(apperr.KindValidation, "tenant and conversation are required", nil)
	}
	return o.sessions.Reset(tenantID, conversationID, func() error {
		conv, err := o.store.GetConversation(ctx, tenantID, conversationID)
		if err != nil {
			return err
		}
		var order *models.Order
		if conv.OrderID != nil {
			order, err = o.store.GetOrder(ctx, tenantID, *conv.OrderID)
			if err != nil && !apperr.Is(err, apperr.KindNotFound) {
				return err
			}
			if order != nil && (order.IsDraft() || order.Status == string(models.OrderStatusCheckout)) {
				order.Status = string(models.OrderStatusCancelled)
			} else {
				order = nil
			}
		}

		conv.State = string(StateIdle)
		conv.OrderID = nil
		conv.PendingSelections = nil
		conv.PendingUpsellID = nil
		conv.LastActivityAt = o.now()
		if err := o.store.SaveTurn(ctx, conv, order); err != nil {
			return err
		}
		o.log.Info().Str("tenant", tenantID).Str("conversation", conversationID).Msg("conversation reset")
		return nil
	})
}

func (o *Orchestrator) load(ctx context.Context, in Turn) (*turn, error) {
	conv, err := o.store.GetConversation(ctx, in.TenantID, in.ConversationID)
	switch {
	case apperr.Is(err, apperr.KindNotFound):
		conv = &models.Conversation{
			TenantID:       in.TenantID,
			ConversationID: in.ConversationID,
			CustomerID:     in.Customer.ID,
			State:          string(StateIdle),
		}
	case err != nil:
		return nil, err
	}
	if in.Customer.Name != "" {
		conv.CustomerName = in.Customer.Name
	}
	if conv.CustomerID == "" {
		conv.CustomerID = in.Customer.ID
	}

	t := &turn{
		in:      in,
		conv:    conv,
		start:   State(conv.State),
		history: conv.History,
		log: o.log.With().
			Str("tenant", in.TenantID).
			Str("conversation", in.ConversationID).
			Logger(),
	}

	if conv.OrderID != nil {
		order, err := o.store.GetOrder(ctx, in.TenantID, *conv.OrderID)
		switch {
		case apperr.Is(err, apperr.KindNotFound):
			t.log.Warn().Str("order", *conv.OrderID).Msg("conversation points at a missing order")
			conv.OrderID = nil
		case err != nil:
			return nil, err
		default:
			t.order = order
		}
	}

	if in.Event.Kind == EventText && in.Event.Validate() == nil {
		conv.History = conv.History.Append(models.HistoryEntry{Direction: models.DirectionInbound, Text: in.Event.Text, At: o.now()}, o.historySize)
	}
	return t, nil
}

// reprompt answers a malformed event with the clarifying reply of the current
// step. Nothing is persisted and the state is left as it was.
func (o *Orchestrator) reprompt(ctx context.Context, t *turn, invalid error, started time.Time) (*TurnResult, error) {
	t.log.Warn().Err(invalid).Str("state", string(t.start)).Str("event", string(t.in.Event.Kind)).Msg("invalid event")
	if err := o.clarify(ctx, t); err != nil {
		t.log.Error().Err(err).Msg("clarifying reply failed")
		return o.failure(t.start), err
	}
	o.metrics.RecordTurn("invalid", string(t.start), time.Since(started))
	return &TurnResult{Replies: t.replies, State: t.start}, apperr.New(apperr.KindValidation, "invalid event", invalid)
}

func (o *Orchestrator) failure(state State) *TurnResult {
	return &TurnResult{
		State:   state,
		Replies: []OutboundMessage{NewMessage(msgSomethingWrong)},
	}
}
