package conversation

import (
	"fmt"
	"strings"

	"maitred/internal/models"

	"github.com/shopspring/decimal"
)

const (
	msgSomethingWrong   = "Sorry, something went wrong on our side. Please try again in a moment."
	msgNotUnderstood    = "Sorry, I couldn't find that on our menu. Tell me what you'd like, for example \"2 tavuk döner\", or tap Menu."
	msgExtractionDown   = "Sorry, I can't read orders from messages right now. Please pick from the menu instead."
	msgAskAnything      = "Tell me what you'd like to order, or tap Menu to see what we have."
	msgAnythingElse     = "Anything else? Tap Checkout when you're ready."
	msgShareLocation    = "Please share your delivery location so I can check that we deliver to you."
	msgLocationLater    = "Thanks! I'll ask for your location when you check out."
	msgOutsideArea      = "Sorry, we don't deliver to that location yet. You can share another location or cancel."
	msgChoosePayment    = "How would you like to pay?"
	msgPaymentFailed    = "The payment didn't go through. Would you like to try again?"
	msgPaymentStartFail = "Sorry, we couldn't start the payment. Please choose a payment method again."
	msgCancelled        = "Your order has been cancelled. Send us a message any time to start a new one."
	msgNothingToCancel  = "There's no open order to cancel."
	msgEmptyOrder       = "Your order is empty. Tell me what you'd like first."
	msgMenuEmpty        = "Our menu is empty right now, please check back later."
	msgOrderLost        = "Sorry, we lost track of your order. Please tell me again what you'd like, or tap Menu."
)

var (
	menuButton     = Button{ID: ButtonMenu, Title: "Menu"}
	checkoutButton = Button{ID: ButtonCheckout, Title: "Checkout"}
	cancelButton   = Button{ID: ButtonCancel, Title: "Cancel"}
	cardButton     = Button{ID: ButtonPayCard, Title: "Card"}
	cashButton     = Button{ID: ButtonPayCash, Title: "Cash"}
	yesButton      = Button{ID: ButtonUpsellYes, Title: "Yes, add it"}
	noButton       = Button{ID: ButtonUpsellNo, Title: "No, thanks"}
)

func money(d decimal.Decimal) string {
	return d.StringFixed(2)
}

func greeting(name string) string {
	if name == "" {
		return "Hi! Welcome."
	}
	return fmt.Sprintf("Hi %s! Welcome.", name)
}

func itemList(items []models.OrderItem) string {
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = fmt.Sprintf("%d× %s", item.Quantity, item.Name)
	}
	return strings.Join(parts, ", ")
}

func orderSummary(order *models.Order) string {
	var sb strings.Builder
	for _, line := range order.Items {
		fmt.Fprintf(&sb, "%d× %s: %s", line.Quantity, line.Name, money(line.LineTotal()))
		if line.Notes != "" {
			fmt.Fprintf(&sb, " (%s)", line.Notes)
		}
		sb.WriteString("\n")
	}
	if order.DeliveryFee.IsPositive() {
		fmt.Fprintf(&sb, "Subtotal: %s\nDelivery: %s\n", money(order.Subtotal()), money(order.DeliveryFee))
	}
	fmt.Fprintf(&sb, "Total: %s", money(order.Total()))
	return sb.String()
}

func optionQuestion(item models.MenuItem, group models.OptionGroup) OutboundMessage {
	names := make([]string, 0, len(group.Options))
	buttons := make([]Button, 0, MaxButtons)
	for _, opt := range group.Options {
		if !opt.Active {
			continue
		}
		label := opt.Name
		if opt.PriceDelta.IsPositive() {
			label = fmt.Sprintf("%s (+%s)", opt.Name, money(opt.PriceDelta))
		}
		names = append(names, label)
		buttons = append(buttons, Button{ID: optionPrefix + opt.ID, Title: label})
	}
	text := fmt.Sprintf("Which %s would you like for your %s? %s", strings.ToLower(group.Name), item.Name, strings.Join(names, ", "))
	return NewMessage(text, buttons...)
}

func menuListing(items []models.MenuItem) OutboundMessage {
	var sb strings.Builder
	sb.WriteString("Here's our menu:")
	buttons := make([]Button, 0, MaxButtons)
	for _, item := range items {
		fmt.Fprintf(&sb, "\n• %s: %s", item.Name, money(item.Price))
		buttons = append(buttons, Button{ID: addPrefix + item.ID, Title: item.Name})
	}
	return NewMessage(sb.String(), buttons...)
}
