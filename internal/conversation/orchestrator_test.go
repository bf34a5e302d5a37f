package conversation

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/config"
	"maitred/internal/database"
	"maitred/internal/extraction"
	"maitred/internal/geo"
	"maitred/internal/models"
	"maitred/internal/payment"
	"maitred/internal/retrieval"
	"maitred/internal/upsell"

	"github.com/jinzhu/gorm"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const tenant = database.DemoTenantID

// scriptedBackend answers by exact text and can hold a call until released
type scriptedBackend struct {
	mu      sync.Mutex
	answers map[string]*extraction.RawResult
	calls   int
	entered chan struct{}
	release chan struct{}
}

func (b *scriptedBackend) ModelID() string { return "scripted" }

func (b *scriptedBackend) Extract(ctx context.Context, req extraction.Request) (*extraction.RawResult, error) {
	b.mu.Lock()
	b.calls++
	answer := b.answers[req.Text]
	entered, release := b.entered, b.release
	b.mu.Unlock()

	if entered != nil {
		entered <- struct{}{}
		<-release
	}
	if answer == nil {
		return &extraction.RawResult{}, nil
	}
	return answer, nil
}

type mockGeo struct {
	mock.Mock
}

func (m *mockGeo) CheckServiceArea(ctx context.Context, tenantID string, lat, lng float64) (geo.Result, error) {
	args := m.Called(ctx, tenantID, lat, lng)
	return args.Get(0).(geo.Result), args.Error(1)
}

type env struct {
	db       *gorm.DB
	store    *database.Store
	backend  *scriptedBackend
	orch     *Orchestrator
	sessions *SessionStore
}

func newEnv(t *testing.T, checker geo.Checker) *env {
	t.Helper()
	db, err := database.OpenInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, database.SeedDemo(db))
	store := database.NewStore(db)

	retriever, err := retrieval.New(store, 4, 20, zerolog.Nop())
	require.NoError(t, err)

	backend := &scriptedBackend{answers: map[string]*extraction.RawResult{
		"2 tavuk döner, bir de ayran": {Items: []extraction.RawItem{
			{MenuItemID: "tavuk-doner", Quantity: 2, Confidence: 0.9},
			{MenuItemID: "ayran", Quantity: 1, Confidence: 0.9},
		}, Confidence: 0.9},
		"2 tavuk döner": {Items: []extraction.RawItem{
			{MenuItemID: "tavuk-doner", Quantity: 2, Confidence: 0.9},
		}, Confidence: 0.9},
		"bir et döner": {Items: []extraction.RawItem{
			{MenuItemID: "et-doner", Quantity: 1, Confidence: 0.8},
		}, Confidence: 0.8},
	}}
	extractor := extraction.New(retriever, store, backend, store,
		extraction.Config{Timeout: time.Second, RetryInterval: time.Millisecond}, nil, zerolog.Nop())

	engine := upsell.New(store, store, nil, upsell.Config{Enabled: true}, nil, zerolog.Nop())

	if checker == nil {
		checker = geo.NewStaticAreas([]config.StoreConfig{{
			TenantID: tenant, ID: "kadikoy", Name: "Kadıköy",
			Lat: 41.0, Lng: 29.0, RadiusKm: 5, DeliveryFee: decimal.NewFromInt(10),
		}})
	}
	payments, err := payment.NewLinkIssuer("https://pay.example.com/c/%s")
	require.NoError(t, err)

	sessions := NewSessionStore(time.Minute, time.Millisecond, nil, zerolog.Nop())
	t.Cleanup(sessions.Close)

	orch := New(Deps{
		Store:     store,
		Catalog:   store,
		Extractor: extractor,
		Upsell:    engine,
		Geo:       checker,
		Payments:  payments,
		Sessions:  sessions,
		Log:       zerolog.Nop(),
	})
	return &env{db: db, store: store, backend: backend, orch: orch, sessions: sessions}
}

func (e *env) send(t *testing.T, conversationID string, ev Event) *TurnResult {
	t.Helper()
	res, err := e.orch.HandleTurn(context.Background(), Turn{
		TenantID:       tenant,
		ConversationID: conversationID,
		Customer:       Customer{ID: "cust-" + conversationID, Name: "Ayşe"},
		Event:          ev,
	})
	require.NoError(t, err)
	require.NotNil(t, res)
	return res
}

func text(s string) Event    { return Event{Kind: EventText, Text: s} }
func button(id string) Event { return Event{Kind: EventButton, ButtonID: id} }
func location(lat, lng float64) Event {
	return Event{Kind: EventLocation, Location: &Location{Lat: lat, Lng: lng}}
}

func buttonIDs(m OutboundMessage) []string {
	ids := make([]string, len(m.Buttons))
	for i, b := range m.Buttons {
		ids[i] = b.ID
	}
	return ids
}

func TestHandleTurn_FullOrderFlow(t *testing.T) {
	e := newEnv(t, nil)
	ctx := context.Background()

	res := e.send(t, "c1", text("2 tavuk döner"))
	assert.Equal(t, StateBuildingOrder, res.State)
	require.Len(t, res.Replies, 2)
	assert.Contains(t, res.Replies[0].Text, "Ayşe")
	assert.Contains(t, res.Replies[1].Text, "2× Tavuk Döner")
	assert.Equal(t, []string{ButtonCheckout, ButtonMenu, ButtonCancel}, buttonIDs(res.Replies[1]))
	assert.NotEmpty(t, res.IntentID)
	orderID := res.OrderID
	require.NotEmpty(t, orderID)

	res = e.send(t, "c1", button(ButtonCheckout))
	assert.Equal(t, StateAwaitingLocation, res.State)

	res = e.send(t, "c1", location(41.01, 29.01))
	assert.Equal(t, StateAwaitingPaymentMethod, res.State)
	assert.Equal(t, []string{ButtonPayCard, ButtonPayCash, ButtonCancel}, buttonIDs(res.Replies[0]))

	res = e.send(t, "c1", button(ButtonPayCard))
	assert.Equal(t, StateAwaitingPayment, res.State)
	require.Len(t, res.Replies, 1)
	assert.Contains(t, res.Replies[0].Text, "Ayran")
	assert.Equal(t, []string{ButtonUpsellYes, ButtonUpsellNo}, buttonIDs(res.Replies[0]))

	res = e.send(t, "c1", button(ButtonUpsellYes))
	assert.Equal(t, StateAwaitingPayment, res.State)

	order, err := e.store.GetOrder(ctx, tenant, orderID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderStatusCheckout), order.Status)
	assert.Equal(t, "kadikoy", order.StoreID)
	assert.Equal(t, string(payment.MethodCard), order.PaymentMethod)
	assert.True(t, order.HasMenuItem("ayran"))
	assert.True(t, decimal.NewFromInt(105).Equal(order.Total()), order.Total().String())
	require.NotEmpty(t, order.CheckoutRef)
	assert.Contains(t, order.CheckoutURL, order.CheckoutRef)

	res = e.send(t, "c1", Event{Kind: EventPayment, Payment: &PaymentOutcome{Success: true, Reference: order.CheckoutRef}})
	assert.Equal(t, StateConfirmed, res.State)

	order, err = e.store.GetOrder(ctx, tenant, orderID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderStatusConfirmed), order.Status)
	assert.NotNil(t, order.ConfirmedAt)

	res = e.send(t, "c1", text("2 tavuk döner, bir de ayran"))
	assert.Equal(t, StateBuildingOrder, res.State)
	assert.NotEqual(t, orderID, res.OrderID)
}

func TestHandleTurn_ExtractedOrderTotal(t *testing.T) {
	e := newEnv(t, nil)

	res := e.send(t, "c1", text("2 tavuk döner, bir de ayran"))
	require.Equal(t, StateBuildingOrder, res.State)

	order, err := e.store.GetOrder(context.Background(), tenant, res.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 2)
	assert.True(t, decimal.NewFromInt(95).Equal(order.Total()))
}

func TestHandleTurn_AsksForRequiredOption(t *testing.T) {
	e := newEnv(t, nil)

	res := e.send(t, "c1", text("bir et döner"))
	assert.Equal(t, StateBuildingOrder, res.State)
	require.Len(t, res.Replies, 2)
	question := res.Replies[1]
	assert.Contains(t, question.Text, "porsiyon")
	assert.Equal(t, []string{"opt:yarim", "opt:tam"}, buttonIDs(question))
	assert.Empty(t, res.OrderID)

	res = e.send(t, "c1", button(ButtonCheckout))
	assert.Equal(t, StateBuildingOrder, res.State)
	assert.Equal(t, question.Text, res.Replies[0].Text)

	calls := e.backend.calls
	res = e.send(t, "c1", text("tam olsun"))
	assert.Equal(t, calls, e.backend.calls)
	require.NotEmpty(t, res.OrderID)

	order, err := e.store.GetOrder(context.Background(), tenant, res.OrderID)
	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "et-doner", order.Items[0].MenuItemID)
	assert.Equal(t, []string{"tam"}, []string(order.Items[0].OptionIDs))
	assert.True(t, decimal.NewFromInt(80).Equal(order.Items[0].UnitPrice))

	conv, err := e.store.GetConversation(context.Background(), tenant, "c1")
	require.NoError(t, err)
	assert.Empty(t, conv.PendingSelections)
}

func TestHandleTurn_MenuButtonAddsItem(t *testing.T) {
	e := newEnv(t, nil)

	res := e.send(t, "c1", button(ButtonMenu))
	assert.Equal(t, StateBrowsing, res.State)
	require.Len(t, res.Replies, 2)
	assert.Len(t, res.Replies[1].Buttons, MaxButtons)

	res = e.send(t, "c1", button("add:kola"))
	assert.Equal(t, StateBuildingOrder, res.State)
	assert.Contains(t, res.Replies[0].Text, "1× Kola")
}

func TestHandleTurn_LocationWhileBrowsing(t *testing.T) {
	checker := &mockGeo{}
	e := newEnv(t, checker)

	res := e.send(t, "c1", button(ButtonMenu))
	require.Equal(t, StateBrowsing, res.State)

	res = e.send(t, "c1", location(41.0, 29.0))
	assert.Equal(t, StateBrowsing, res.State)
	assert.False(t, res.NoOp)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, msgLocationLater, res.Replies[0].Text)
	checker.AssertNotCalled(t, "CheckServiceArea", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleTurn_OutsideServiceArea(t *testing.T) {
	checker := &mockGeo{}
	checker.On("CheckServiceArea", mock.Anything, tenant, 40.0, 30.0).
		Return(geo.Result{WithinArea: false}, nil).Once()
	e := newEnv(t, checker)

	e.send(t, "c1", text("2 tavuk döner"))
	e.send(t, "c1", button(ButtonCheckout))
	res := e.send(t, "c1", location(40.0, 30.0))
	assert.Equal(t, StateAwaitingLocation, res.State)
	assert.Equal(t, msgOutsideArea, res.Replies[0].Text)
	checker.AssertExpectations(t)
}

func TestHandleTurn_Cancel(t *testing.T) {
	e := newEnv(t, nil)

	res := e.send(t, "c1", text("iptal"))
	assert.Equal(t, msgNothingToCancel, res.Replies[0].Text)

	res = e.send(t, "c1", text("2 tavuk döner"))
	orderID := res.OrderID

	res = e.send(t, "c1", text("İptal"))
	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, msgCancelled, res.Replies[0].Text)

	order, err := e.store.GetOrder(context.Background(), tenant, orderID)
	require.NoError(t, err)
	assert.Equal(t, string(models.OrderStatusCancelled), order.Status)

	res = e.send(t, "c1", button(ButtonCancel))
	assert.Equal(t, StateCancelled, res.State)
	assert.Equal(t, msgNothingToCancel, res.Replies[0].Text)
}

func TestHandleTurn_StrayPaymentIsNoOp(t *testing.T) {
	e := newEnv(t, nil)

	e.send(t, "c1", text("2 tavuk döner"))
	res := e.send(t, "c1", Event{Kind: EventPayment, Payment: &PaymentOutcome{Success: true, Reference: "chk_unknown"}})
	assert.True(t, res.NoOp)
	assert.Empty(t, res.Replies)
	assert.Equal(t, StateBuildingOrder, res.State)

	conv, err := e.store.GetConversation(context.Background(), tenant, "c1")
	require.NoError(t, err)
	assert.Equal(t, string(StateBuildingOrder), conv.State)
}

func TestHandleTurn_FailedPaymentReturnsToMethodChoice(t *testing.T) {
	e := newEnv(t, nil)

	e.send(t, "c1", text("2 tavuk döner, bir de ayran"))
	e.send(t, "c1", button(ButtonCheckout))
	e.send(t, "c1", location(41.0, 29.0))
	res := e.send(t, "c1", button(ButtonPayCash))
	require.Equal(t, StateAwaitingPayment, res.State)

	order, err := e.store.GetOrder(context.Background(), tenant, res.OrderID)
	require.NoError(t, err)
	assert.Empty(t, order.CheckoutURL)

	res = e.send(t, "c1", Event{Kind: EventPayment, Payment: &PaymentOutcome{Success: false, Reference: order.CheckoutRef}})
	assert.Equal(t, StateAwaitingPaymentMethod, res.State)
	assert.Equal(t, msgPaymentFailed, res.Replies[0].Text)

	order, err = e.store.GetOrder(context.Background(), tenant, res.OrderID)
	require.NoError(t, err)
	assert.Empty(t, order.CheckoutRef)
}

func TestHandleTurn_NotUnderstood(t *testing.T) {
	e := newEnv(t, nil)

	e.send(t, "c1", button(ButtonMenu))
	res := e.send(t, "c1", text("pizza"))
	assert.Equal(t, StateBrowsing, res.State)
	assert.Equal(t, msgNotUnderstood, res.Replies[0].Text)
}

func TestHandleTurn_InvalidEventGetsClarifyingReply(t *testing.T) {
	e := newEnv(t, nil)
	e.send(t, "c1", text("2 tavuk döner"))

	tests := []struct {
		name string
		ev   Event
	}{
		{"blank text", text("   ")},
		{"location without coordinates", Event{Kind: EventLocation}},
		{"unknown kind", Event{Kind: "sticker"}},
		{"empty event", Event{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := e.orch.HandleTurn(context.Background(), Turn{TenantID: tenant, ConversationID: "c1", Event: tt.ev})
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindValidation))
			assert.Equal(t, 1, strings.Count(err.Error(), "invalid event"))
			require.NotNil(t, res)
			assert.Equal(t, StateBuildingOrder, res.State)
			require.Len(t, res.Replies, 1)
			assert.Equal(t, msgAnythingElse, res.Replies[0].Text)
		})
	}

	conv, err := e.store.GetConversation(context.Background(), tenant, "c1")
	require.NoError(t, err)
	assert.Equal(t, string(StateBuildingOrder), conv.State)
}

func TestHandleTurn_InvalidEventOnNewConversation(t *testing.T) {
	e := newEnv(t, nil)

	res, err := e.orch.HandleTurn(context.Background(), Turn{TenantID: tenant, ConversationID: "c9", Event: Event{Kind: "sticker"}})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	require.NotNil(t, res)
	assert.Equal(t, StateIdle, res.State)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, msgAskAnything, res.Replies[0].Text)

	_, err = e.store.GetConversation(context.Background(), tenant, "c9")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestHandleTurn_RequiresConversation(t *testing.T) {
	e := newEnv(t, nil)

	res, err := e.orch.HandleTurn(context.Background(), Turn{TenantID: tenant, Event: text("hi")})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Nil(t, res)
}

func TestHandleTurn_MissingOrderStartsOver(t *testing.T) {
	e := newEnv(t, nil)

	res := e.send(t, "c1", text("2 tavuk döner"))
	orderID := res.OrderID
	require.NotEmpty(t, orderID)
	res = e.send(t, "c1", button(ButtonCheckout))
	require.Equal(t, StateAwaitingLocation, res.State)

	require.NoError(t, e.db.Where("order_id = ?", orderID).Delete(&models.OrderItem{}).Error)
	require.NoError(t, e.db.Where("id = ?", orderID).Delete(&models.Order{}).Error)

	res = e.send(t, "c1", location(41.01, 29.01))
	assert.Equal(t, StateBrowsing, res.State)
	require.Len(t, res.Replies, 1)
	assert.Equal(t, msgOrderLost, res.Replies[0].Text)
	assert.Empty(t, res.OrderID)

	conv, err := e.store.GetConversation(context.Background(), tenant, "c1")
	require.NoError(t, err)
	assert.Equal(t, string(StateBrowsing), conv.State)
	assert.Nil(t, conv.OrderID)

	res = e.send(t, "c1", text("2 tavuk döner"))
	assert.Equal(t, StateBuildingOrder, res.State)
	assert.NotEqual(t, orderID, res.OrderID)
}

func TestHandleTurn_MissingOrderAtPaymentChoice(t *testing.T) {
	e := newEnv(t, nil)

	res := e.send(t, "c1", text("2 tavuk döner"))
	orderID := res.OrderID
	e.send(t, "c1", button(ButtonCheckout))
	res = e.send(t, "c1", location(41.01, 29.01))
	require.Equal(t, StateAwaitingPaymentMethod, res.State)

	require.NoError(t, e.db.Where("id = ?", orderID).Delete(&models.Order{}).Error)

	res = e.send(t, "c1", button(ButtonPayCard))
	assert.Equal(t, StateBrowsing, res.State)
	assert.Equal(t, msgOrderLost, res.Replies[0].Text)
}

func TestReset_DiscardsTurnInFlight(t *testing.T) {
	e := newEnv(t, nil)
	e.send(t, "c1", text("2 tavuk döner"))

	e.backend.mu.Lock()
	e.backend.entered = make(chan struct{})
	e.backend.release = make(chan struct{})
	e.backend.mu.Unlock()

	done := make(chan *TurnResult)
	go func() {
		res, _ := e.orch.HandleTurn(context.Background(), Turn{
			TenantID: tenant, ConversationID: "c1", Event: text("2 tavuk döner, bir de ayran"),
		})
		done <- res
	}()

	<-e.backend.entered
	require.NoError(t, e.orch.Reset(context.Background(), tenant, "c1"))
	close(e.backend.release)

	res := <-done
	require.NotNil(t, res)
	assert.True(t, res.NoOp)
	assert.Equal(t, StateIdle, res.State)

	conv, err := e.store.GetConversation(context.Background(), tenant, "c1")
	require.NoError(t, err)
	assert.Equal(t, string(StateIdle), conv.State)
	assert.Nil(t, conv.OrderID)
}

func TestReset_UnknownConversation(t *testing.T) {
	e := newEnv(t, nil)
	err := e.orch.Reset(context.Background(), tenant, "nope")
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}
