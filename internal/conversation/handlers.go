package conversation

import (
	"context"
	"fmt"
	"strings"

	"maitred/internal/apperr"
	"maitred/internal/catalog"
	"maitred/internal/extraction"
	"maitred/internal/models"
	"maitred/internal/payment"
	"maitred/internal/retrieval"
	"maitred/internal/upsell"

	"github.com/google/uuid"
)

var cancelWords = map[string]bool{
	"cancel":   true,
	"iptal":    true,
	"iptal et": true,
}

func isCancel(ev Event) bool {
	switch ev.Kind {
	case EventButton:
		return ev.ButtonID == ButtonCancel
	case EventText:
		return cancelWords[strings.Join(retrieval.Tokenize(ev.Text), " ")]
	}
	return false
}

func (o *Orchestrator) dispatch(ctx context.Context, t *turn) error {
	ev := t.in.Event
	switch {
	case ev.Kind == EventPayment:
		return o.onPayment(t)
	case isCancel(ev):
		return o.cancel(t)
	case t.state().needsOrder() && t.order == nil:
		return o.orderLost(t)
	case t.state() == StateIdle || t.state().IsTerminal():
		return o.onStart(ctx, t)
	}

	switch ev.Kind {
	case EventText:
		return o.onText(ctx, t)
	case EventButton:
		return o.onButton(ctx, t)
	case EventLocation:
		return o.onLocation(ctx, t)
	}
	return o.clarify(ctx, t)
}

// onStart greets and, for text, goes straight to order taking
func (o *Orchestrator) onStart(ctx context.Context, t *turn) error {
	if t.state().IsTerminal() {
		t.order = nil
		t.conv.OrderID = nil
		t.conv.PendingSelections = nil
		t.conv.PendingUpsellID = nil
	}
	hello := greeting(t.conv.CustomerName)
	t.setState(StateGreeted)

	ev := t.in.Event
	switch {
	case ev.Kind == EventText:
		t.reply(hello)
		return o.takeOrder(ctx, t, ev.Text, true)
	case ev.Kind == EventButton && ev.ButtonID == ButtonMenu:
		t.reply(hello)
		return o.showMenu(ctx, t)
	}
	t.reply(hello+" "+msgAskAnything, menuButton)
	return nil
}

func (o *Orchestrator) onText(ctx context.Context, t *turn) error {
	if !t.state().collectsItems() {
		return o.clarify(ctx, t)
	}
	if t.hasPending() {
		handled, err := o.optionFromText(ctx, t, t.in.Event.Text)
		if handled || err != nil {
			return err
		}
	}
	return o.takeOrder(ctx, t, t.in.Event.Text, false)
}

func (o *Orchestrator) onButton(ctx context.Context, t *turn) error {
	id := t.in.Event.ButtonID
	state := t.state()

	switch {
	case id == ButtonMenu && state.collectsItems():
		return o.showMenu(ctx, t)
	case strings.HasPrefix(id, addPrefix) && state.collectsItems():
		return o.manualAdd(ctx, t, strings.TrimPrefix(id, addPrefix))
	case strings.HasPrefix(id, optionPrefix) && state.collectsItems() && t.hasPending():
		return o.chooseOption(ctx, t, strings.TrimPrefix(id, optionPrefix))
	case id == ButtonCheckout && state == StateBuildingOrder:
		return o.checkout(ctx, t)
	case (id == ButtonPayCard || id == ButtonPayCash) && state == StateAwaitingPaymentMethod:
		return o.choosePayment(ctx, t, payment.Method(strings.TrimPrefix(id, "pay:")))
	case (id == ButtonUpsellYes || id == ButtonUpsellNo) && state == StateAwaitingPayment && t.conv.PendingUpsellID != nil:
		return o.answerUpsell(ctx, t, id == ButtonUpsellYes)
	}
	return o.clarify(ctx, t)
}

// onLocation only consults the geo collaborator while a location is expected
func (o *Orchestrator) onLocation(ctx context.Context, t *turn) error {
	if t.state() != StateAwaitingLocation {
		if t.state().collectsItems() {
			t.reply(msgLocationLater)
			return nil
		}
		return o.clarify(ctx, t)
	}

	if t.order == nil {
		return o.orderLost(t)
	}

	loc := t.in.Event.Location
	res, err := o.geo.CheckServiceArea(ctx, t.in.TenantID, loc.Lat, loc.Lng)
	if err != nil {
		return fmt.Errorf("check service area: %w", err)
	}
	if !res.WithinArea {
		t.reply(msgOutsideArea, cancelButton)
		return nil
	}

	t.order.StoreID = res.NearestStore.ID
	t.order.DeliveryFee = res.DeliveryFee
	t.setState(StateAwaitingPaymentMethod)
	t.reply(fmt.Sprintf("Great, our %s store delivers to you.\n%s\n%s", res.NearestStore.Name, orderSummary(t.order), msgChoosePayment),
		cardButton, cashButton, cancelButton)
	return nil
}

// onPayment applies a provider outcome; anything not matching the pending checkout is ignored
func (o *Orchestrator) onPayment(t *turn) error {
	p := t.in.Event.Payment
	if t.state() != StateAwaitingPayment || t.order == nil || t.order.CheckoutRef == "" ||
		(p.Reference != "" && p.Reference != t.order.CheckoutRef) {
		t.noOp = true
		t.log.Warn().
			Str("state", string(t.state())).
			Str("reference", p.Reference).
			Bool("success", p.Success).
			Msg("ignoring payment outcome without a matching checkout")
		return nil
	}

	if p.Success {
		now := o.now()
		t.order.Status = string(models.OrderStatusConfirmed)
		t.order.ConfirmedAt = &now
		t.setState(StateConfirmed)
		t.reply(fmt.Sprintf("Payment received, thank you! Your order is confirmed.\n%s", orderSummary(t.order)))
		return nil
	}

	t.order.CheckoutRef = ""
	t.order.CheckoutURL = ""
	t.setState(StateAwaitingPaymentMethod)
	t.reply(msgPaymentFailed, cardButton, cashButton, cancelButton)
	return nil
}

func (o *Orchestrator) cancel(t *turn) error {
	if t.state() == StateIdle || t.state().IsTerminal() {
		t.reply(msgNothingToCancel, menuButton)
		return nil
	}
	if t.order != nil && (t.order.IsDraft() || t.order.Status == string(models.OrderStatusCheckout)) {
		t.order.Status = string(models.OrderStatusCancelled)
	}
	t.conv.PendingSelections = nil
	t.conv.PendingUpsellID = nil
	t.setState(StateCancelled)
	t.reply(msgCancelled)
	return nil
}

// orderLost starts over from browsing when the order behind a checkout step is gone
func (o *Orchestrator) orderLost(t *turn) error {
	t.log.Warn().Str("state", string(t.state())).Msg("no order behind checkout step, starting over")
	t.order = nil
	t.conv.OrderID = nil
	t.conv.PendingSelections = nil
	t.conv.PendingUpsellID = nil
	t.setState(StateBrowsing)
	t.reply(msgOrderLost, menuButton)
	return nil
}

// clarify re-prompts for the current step without changing state
func (o *Orchestrator) clarify(ctx context.Context, t *turn) error {
	switch t.state() {
	case StateGreeted, StateBrowsing:
		t.reply(msgAskAnything, menuButton)
	case StateBuildingOrder:
		if t.hasPending() {
			_, question, err := o.settlePending(ctx, t)
			if err != nil {
				return err
			}
			if question != nil {
				t.add(*question)
				return nil
			}
		}
		t.reply(msgAnythingElse, checkoutButton, menuButton, cancelButton)
	case StateAwaitingLocation:
		t.reply(msgShareLocation, cancelButton)
	case StateAwaitingPaymentMethod:
		t.reply(msgChoosePayment, cardButton, cashButton, cancelButton)
	case StateAwaitingPayment:
		if t.conv.PendingUpsellID != nil {
			t.reply("Would you like to add the suggested item before paying?", yesButton, noButton)
			return nil
		}
		if t.order != nil && t.order.CheckoutURL != "" {
			t.reply(fmt.Sprintf("We're waiting for your payment: %s", t.order.CheckoutURL), cancelButton)
			return nil
		}
		t.reply("We're waiting for the store to confirm your order.", cancelButton)
	default:
		t.reply(msgAskAnything, menuButton)
	}
	return nil
}

// takeOrder runs extraction and merges what it found into the draft
func (o *Orchestrator) takeOrder(ctx context.Context, t *turn, text string, greeted bool) error {
	intent, err := o.extractor.Extract(ctx, extraction.Input{
		TenantID:       t.in.TenantID,
		ConversationID: t.in.ConversationID,
		Text:           text,
		History:        t.history,
	})
	if intent != nil {
		t.intentID = intent.ID
	}
	if err != nil {
		if apperr.Is(err, apperr.KindExtractionUnavailable) {
			t.reply(msgExtractionDown)
			return o.showMenu(ctx, t)
		}
		return err
	}

	var added []models.OrderItem
	for _, item := range intent.Items {
		if len(item.MissingRequired) > 0 {
			t.conv.PendingSelections = append(t.conv.PendingSelections, models.PendingSelection{
				MenuItemID: item.MenuItemID,
				Quantity:   item.Quantity,
				OptionIDs:  item.OptionIDs,
				Notes:      item.Notes,
				GroupID:    item.MissingRequired[0],
			})
			continue
		}
		line := models.OrderItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Quantity:   item.Quantity,
			OptionIDs:  models.StringSlice(item.OptionIDs),
			Notes:      item.Notes,
		}
		o.ensureOrder(t).AddItem(line)
		added = append(added, line)
	}

	if len(added) == 0 && !t.hasPending() {
		if greeted {
			t.replies[len(t.replies)-1] = NewMessage(t.replies[len(t.replies)-1].Text+" "+msgAskAnything, menuButton)
			return nil
		}
		t.reply(msgNotUnderstood, menuButton)
		return nil
	}

	t.setState(StateBuildingOrder)
	return o.confirmAdded(ctx, t, added)
}

// confirmAdded settles pending selections and tells the customer what changed
func (o *Orchestrator) confirmAdded(ctx context.Context, t *turn, added []models.OrderItem) error {
	settled, question, err := o.settlePending(ctx, t)
	if err != nil {
		return err
	}
	added = append(added, settled...)

	if len(added) > 0 {
		text := fmt.Sprintf("Added %s.\n%s", itemList(added), orderSummary(t.order))
		if question == nil {
			t.reply(text, checkoutButton, menuButton, cancelButton)
		} else {
			t.reply(text)
		}
	}
	if question != nil {
		t.add(*question)
		return nil
	}
	if len(added) == 0 {
		if t.order == nil || t.order.IsEmpty() {
			t.setState(StateBrowsing)
			t.reply(msgAskAnything, menuButton)
			return nil
		}
		t.reply(fmt.Sprintf("%s\n%s", orderSummary(t.order), msgAnythingElse), checkoutButton, menuButton, cancelButton)
	}
	return nil
}

// settlePending adds every pending item whose required options are complete,
// stopping at the first one that still needs an answer and returning its question
func (o *Orchestrator) settlePending(ctx context.Context, t *turn) ([]models.OrderItem, *OutboundMessage, error) {
	var added []models.OrderItem
	for t.hasPending() {
		p := &t.conv.PendingSelections[0]
		snap, err := catalog.Take(ctx, o.catalog, t.in.TenantID, []string{p.MenuItemID})
		if err != nil {
			return nil, nil, err
		}
		item, ok := snap.Item(p.MenuItemID)
		if !ok {
			t.log.Warn().Str("menu_item", p.MenuItemID).Msg("pending item left the menu")
			t.conv.PendingSelections = t.conv.PendingSelections[1:]
			continue
		}

		missing := snap.MissingRequired(p.MenuItemID, p.OptionIDs)
		if len(missing) > 0 {
			p.GroupID = missing[0].ID
			q := optionQuestion(item, missing[0])
			return added, &q, nil
		}

		line := models.OrderItem{
			MenuItemID: item.ID,
			Name:       item.Name,
			UnitPrice:  snap.UnitPrice(item.ID, p.OptionIDs),
			Quantity:   p.Quantity,
			OptionIDs:  models.StringSlice(p.OptionIDs),
			Notes:      p.Notes,
		}
		o.ensureOrder(t).AddItem(line)
		added = append(added, line)
		t.conv.PendingSelections = t.conv.PendingSelections[1:]
	}
	if len(t.conv.PendingSelections) == 0 {
		t.conv.PendingSelections = nil
	}
	return added, nil, nil
}

// optionFromText completes the pending selection when the text names one of its options
func (o *Orchestrator) optionFromText(ctx context.Context, t *turn, text string) (bool, error) {
	p := t.conv.PendingSelections[0]
	snap, err := catalog.Take(ctx, o.catalog, t.in.TenantID, []string{p.MenuItemID})
	if err != nil {
		return false, err
	}
	group, ok := snap.Group(p.MenuItemID, p.GroupID)
	if !ok {
		return false, nil
	}
	for _, opt := range group.Options {
		if opt.Active && retrieval.ContainsPhrase(text, opt.Name) {
			return true, o.chooseOption(ctx, t, opt.ID)
		}
	}
	return false, nil
}

func (o *Orchestrator) chooseOption(ctx context.Context, t *turn, optionID string) error {
	p := &t.conv.PendingSelections[0]
	snap, err := catalog.Take(ctx, o.catalog, t.in.TenantID, []string{p.MenuItemID})
	if err != nil {
		return err
	}
	group, ok := snap.Group(p.MenuItemID, p.GroupID)
	if !ok {
		return o.confirmAdded(ctx, t, nil)
	}
	if _, ok := group.OptionByID(optionID); !ok {
		t.reply("Sorry, that option isn't available.")
		return o.confirmAdded(ctx, t, nil)
	}

	p.OptionIDs = append(p.OptionIDs, optionID)
	t.setState(StateBuildingOrder)
	return o.confirmAdded(ctx, t, nil)
}

// manualAdd adds one of an item picked from the menu
func (o *Orchestrator) manualAdd(ctx context.Context, t *turn, itemID string) error {
	snap, err := catalog.Take(ctx, o.catalog, t.in.TenantID, []string{itemID})
	if err != nil {
		return err
	}
	if _, ok := snap.Item(itemID); !ok {
		t.reply("Sorry, that item isn't available right now.", menuButton)
		return nil
	}
	t.conv.PendingSelections = append(models.PendingSelections{{MenuItemID: itemID, Quantity: 1}}, t.conv.PendingSelections...)
	t.setState(StateBuildingOrder)
	return o.confirmAdded(ctx, t, nil)
}

func (o *Orchestrator) showMenu(ctx context.Context, t *turn) error {
	items, err := o.catalog.GetActiveMenuItems(ctx, t.in.TenantID)
	if err != nil {
		return err
	}
	if t.state() != StateBuildingOrder {
		t.setState(StateBrowsing)
	}
	if len(items) == 0 {
		t.reply(msgMenuEmpty)
		return nil
	}
	t.add(menuListing(items))
	return nil
}

func (o *Orchestrator) checkout(ctx context.Context, t *turn) error {
	if t.hasPending() {
		return o.clarify(ctx, t)
	}
	if t.order == nil || t.order.IsEmpty() {
		t.reply(msgEmptyOrder, menuButton)
		return nil
	}
	t.setState(StateAwaitingLocation)
	t.reply(fmt.Sprintf("Your order:\n%s\n%s", orderSummary(t.order), msgShareLocation), cancelButton)
	return nil
}

// choosePayment offers the order's single upsell, then starts the payment
func (o *Orchestrator) choosePayment(ctx context.Context, t *turn, method payment.Method) error {
	if t.order == nil {
		return o.orderLost(t)
	}
	t.order.PaymentMethod = string(method)

	if !t.order.UpsellOffered && o.upsell != nil {
		t.order.UpsellOffered = true
		s, err := o.upsell.Suggest(ctx, upsell.Request{
			TenantID:       t.in.TenantID,
			ConversationID: t.in.ConversationID,
			OrderID:        t.order.ID,
			CustomerName:   t.conv.CustomerName,
			Items:          t.order.Items,
		})
		if err != nil {
			t.log.Warn().Err(err).Msg("upsell failed, continuing to payment")
		}
		if s != nil {
			eventID := s.EventID
			t.conv.PendingUpsellID = &eventID
			t.setState(StateAwaitingPayment)
			t.reply(s.Message, yesButton, noButton)
			return nil
		}
	}
	return o.startPayment(ctx, t)
}

func (o *Orchestrator) answerUpsell(ctx context.Context, t *turn, accepted bool) error {
	if t.order == nil {
		return o.orderLost(t)
	}
	eventID := *t.conv.PendingUpsellID
	t.conv.PendingUpsellID = nil

	event, err := o.upsell.Resolve(ctx, t.in.TenantID, eventID, accepted)
	if err != nil && !apperr.Is(err, apperr.KindAlreadyRecorded) {
		t.log.Warn().Err(err).Uint("event", eventID).Msg("could not record upsell outcome")
	}

	if accepted && err == nil {
		snap, err := catalog.Take(ctx, o.catalog, t.in.TenantID, []string{event.SuggestedItemID})
		if err != nil {
			return err
		}
		if item, ok := snap.Item(event.SuggestedItemID); ok {
			line := models.OrderItem{MenuItemID: item.ID, Name: item.Name, UnitPrice: item.Price, Quantity: 1}
			t.order.AddItem(line)
			t.reply(fmt.Sprintf("Added %s.", itemList([]models.OrderItem{line})))
		} else {
			t.reply("Sorry, that item just ran out.")
		}
	}
	return o.startPayment(ctx, t)
}

func (o *Orchestrator) startPayment(ctx context.Context, t *turn) error {
	if t.order == nil {
		return o.orderLost(t)
	}
	handle, err := o.payments.InitiatePayment(ctx, t.order)
	if err != nil {
		t.log.Error().Err(err).Str("order", t.order.ID).Msg("initiating payment failed")
		t.setState(StateAwaitingPaymentMethod)
		t.reply(msgPaymentStartFail, cardButton, cashButton, cancelButton)
		return nil
	}

	t.order.Status = string(models.OrderStatusCheckout)
	t.order.CheckoutRef = handle.Reference
	t.order.CheckoutURL = handle.URL
	t.setState(StateAwaitingPayment)

	if handle.URL != "" {
		t.reply(fmt.Sprintf("%s\nPay securely here: %s", orderSummary(t.order), handle.URL), cancelButton)
	} else {
		t.reply(fmt.Sprintf("%s\nYou'll pay in cash on delivery. We'll confirm as soon as the store accepts your order.", orderSummary(t.order)), cancelButton)
	}
	return nil
}

func (o *Orchestrator) ensureOrder(t *turn) *models.Order {
	if t.order == nil || !t.order.IsDraft() {
		t.order = &models.Order{
			ID:             uuid.New().String(),
			TenantID:       t.in.TenantID,
			ConversationID: t.in.ConversationID,
			CustomerID:     t.conv.CustomerID,
			Status:         string(models.OrderStatusDraft),
		}
		id := t.order.ID
		t.conv.OrderID = &id
	}
	return t.order
}
