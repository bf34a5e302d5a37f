// Package upsell decides whether to offer one extra item before payment and
// records what the customer did with it.
package upsell

import (
	"context"
	"fmt"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/models"
	"maitred/internal/monitoring"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Store is the persistence the engine needs. *database.Store implements it.
type Store interface {
	ActiveRules(ctx context.Context, tenantID string) ([]models.CrossSellRule, error)
	RecentOrdersContaining(ctx context.Context, tenantID string, itemIDs []string, limit int) ([]models.Order, error)
	LastRejection(ctx context.Context, tenantID, conversationID, itemID string) (*models.UpsellEvent, error)
	CountConfirmedOrdersSince(ctx context.Context, tenantID, conversationID string, since time.Time, excludeOrderID string) (int, error)
	CountConfirmedOrdersWithItem(ctx context.Context, tenantID, conversationID, menuItemID string) (int, error)
	CreateUpsellEvent(ctx context.Context, event *models.UpsellEvent) error
	GetUpsellEvent(ctx context.Context, tenantID string, id uint) (*models.UpsellEvent, error)
	ResolveUpsellEvent(ctx context.Context, tenantID string, id uint, outcome models.UpsellOutcome, at time.Time) (bool, error)
}

// Catalog lists the items that may be suggested
type Catalog interface {
	GetActiveMenuItems(ctx context.Context, tenantID string) ([]models.MenuItem, error)
}

// Config tunes the engine
type Config struct {
	Enabled          bool
	GenerateMessages bool
	CooldownOrders   int
	SampleSize       int
	MinCoOccurrence  int
	Timeout          time.Duration
}

// Request describes the order a suggestion is wanted for
type Request struct {
	TenantID       string
	ConversationID string
	OrderID        string
	CustomerName   string
	Items          []models.OrderItem
}

func (r Request) itemSet() map[string]bool {
	set := make(map[string]bool, len(r.Items))
	for _, line := range r.Items {
		set[line.MenuItemID] = true
	}
	return set
}

// Suggestion is one shown offer
type Suggestion struct {
	EventID  uint            `json:"event_id"`
	ItemID   string          `json:"item_id"`
	ItemName string          `json:"item_name"`
	Price    decimal.Decimal `json:"price"`
	Message  string          `json:"message"`
	Source   Source          `json:"source"`
}

// Engine runs the strategies, the cool-down and message generation
type Engine struct {
	store      Store
	catalog    Catalog
	generator  Generator
	strategies []Strategy
	cfg        Config
	metrics    *monitoring.Collector
	log        zerolog.Logger
	now        func() time.Time
}

// New creates an engine with the rule and co-purchase strategies, in that order.
// generator may be nil; templates are used then.
func New(store Store, cat Catalog, generator Generator, cfg Config, metrics *monitoring.Collector, log zerolog.Logger) *Engine {
	if cfg.CooldownOrders <= 0 {
		cfg.CooldownOrders = 3
	}
	if cfg.SampleSize <= 0 {
		cfg.SampleSize = 200
	}
	if cfg.MinCoOccurrence <= 0 {
		cfg.MinCoOccurrence = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 8 * time.Second
	}
	return &Engine{
		store:     store,
		catalog:   cat,
		generator: generator,
		strategies: []Strategy{
			&RuleStrategy{store: store},
			&CoPurchaseStrategy{store: store, sampleSize: cfg.SampleSize, minCount: cfg.MinCoOccurrence},
		},
		cfg:     cfg,
		metrics: metrics,
		log:     log.With().Str("component", "upsell").Logger(),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// Suggest returns at most one suggestion for the order, or nil.
// A suggestion in cool-down suppresses the offer; later strategies are not consulted.
func (e *Engine) Suggest(ctx context.Context, req Request) (*Suggestion, error) {
	if !e.cfg.Enabled || len(req.Items) == 0 {
		return nil, nil
	}

	items, err := e.catalog.GetActiveMenuItems(ctx, req.TenantID)
	if err != nil {
		return nil, fmt.Errorf("load menu: %w", err)
	}
	active := make(map[string]models.MenuItem, len(items))
	for _, item := range items {
		active[item.ID] = item
	}

	var (
		itemID string
		source Source
	)
	for _, s := range e.strategies {
		id, ok, err := s.Propose(ctx, req, active)
		if err != nil {
			return nil, err
		}
		if ok {
			itemID, source = id, s.Source()
			break
		}
	}
	if itemID == "" {
		return nil, nil
	}

	suppressed, err := e.coolingDown(ctx, req, itemID)
	if err != nil {
		return nil, err
	}
	if suppressed {
		e.log.Debug().
			Str("tenant", req.TenantID).
			Str("conversation", req.ConversationID).
			Str("item", itemID).
			Msg("suggestion suppressed by cool-down")
		return nil, nil
	}

	item := active[itemID]
	message, err := e.message(ctx, req, item)
	if err != nil {
		return nil, err
	}

	event := &models.UpsellEvent{
		TenantID:        req.TenantID,
		ConversationID:  req.ConversationID,
		SuggestedItemID: itemID,
		OrderID:         req.OrderID,
		Source:          string(source),
		Message:         message,
		Outcome:         string(models.UpsellOutcomeShown),
		CreatedAt:       e.now(),
	}
	if err := e.store.CreateUpsellEvent(ctx, event); err != nil {
		return nil, err
	}
	e.metrics.RecordUpsell(string(source), string(models.UpsellOutcomeShown))

	return &Suggestion{
		EventID:  event.ID,
		ItemID:   itemID,
		ItemName: item.Name,
		Price:    item.Price,
		Message:  message,
		Source:   source,
	}, nil
}

// coolingDown reports whether the item was rejected in this conversation and
// fewer than CooldownOrders orders have been confirmed since
func (e *Engine) coolingDown(ctx context.Context, req Request, itemID string) (bool, error) {
	rejection, err := e.store.LastRejection(ctx, req.TenantID, req.ConversationID, itemID)
	if err != nil {
		return false, err
	}
	if rejection == nil {
		return false, nil
	}
	since := rejection.CreatedAt
	if rejection.ResolvedAt != nil {
		since = *rejection.ResolvedAt
	}
	n, err := e.store.CountConfirmedOrdersSince(ctx, req.TenantID, req.ConversationID, since, rejection.OrderID)
	if err != nil {
		return false, err
	}
	return n < e.cfg.CooldownOrders, nil
}

// message asks the generator and falls back to a template on any failure
func (e *Engine) message(ctx context.Context, req Request, item models.MenuItem) (string, error) {
	prior, err := e.store.CountConfirmedOrdersWithItem(ctx, req.TenantID, req.ConversationID, item.ID)
	if err != nil {
		return "", err
	}
	names := make([]string, 0, len(req.Items))
	for _, line := range req.Items {
		names = append(names, fmt.Sprintf("%dx %s", line.Quantity, line.Name))
	}
	mc := MessageContext{
		CustomerName:   req.CustomerName,
		CurrentItems:   names,
		ItemName:       item.Name,
		Price:          item.Price,
		PriorPurchases: prior,
	}

	if e.cfg.GenerateMessages && e.generator != nil {
		genCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
		out, err := e.generator.Generate(genCtx, mc)
		if err == nil {
			if msg := Sanitize(out); msg != "" {
				return msg, nil
			}
		} else {
			e.log.Warn().Err(err).Str("tenant", req.TenantID).Msg("suggestion generation failed, using template")
		}
	}
	return templateMessage(mc), nil
}

// Resolve records the customer's answer to a shown suggestion. A second
// resolution of the same event returns ALREADY_RECORDED.
func (e *Engine) Resolve(ctx context.Context, tenantID string, eventID uint, accepted bool) (*models.UpsellEvent, error) {
	outcome := models.UpsellOutcomeRejected
	if accepted {
		outcome = models.UpsellOutcomeAccepted
	}

	changed, err := e.store.ResolveUpsellEvent(ctx, tenantID, eventID, outcome, e.now())
	if err != nil {
		return nil, err
	}
	event, err := e.store.GetUpsellEvent(ctx, tenantID, eventID)
	if err != nil {
		return nil, err
	}
	if !changed {
		return event, apperr.New(apperr.KindAlreadyRecorded, fmt.Sprintf("upsell event %d is %s", eventID, event.Outcome), nil)
	}
	e.metrics.RecordUpsell(event.Source, string(outcome))
	return event, nil
}
