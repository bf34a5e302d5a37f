// Package payment issues hosted checkout links for confirmed carts.
package payment

import (
	"context"
	"fmt"
	"strings"

	"maitred/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Method is how the customer pays
type Method string

const (
	MethodCard Method = "card"
	MethodCash Method = "cash"
)

// CheckoutHandle identifies one payment attempt
type CheckoutHandle struct {
	Reference string
	URL       string
	Amount    decimal.Decimal
}

// Gateway is the payment collaborator
type Gateway interface {
	InitiatePayment(ctx context.Context, order *models.Order) (CheckoutHandle, error)
}

// LinkIssuer builds checkout links from a URL template with one %s for the reference
type LinkIssuer struct {
	urlTemplate string
}

// NewLinkIssuer validates the template
func NewLinkIssuer(urlTemplate string) (*LinkIssuer, error) {
	if strings.Count(urlTemplate, "%s") != 1 {
		return nil, fmt.Errorf("checkout url %q must contain exactly one %%s", urlTemplate)
	}
	return &LinkIssuer{urlTemplate: urlTemplate}, nil
}

// InitiatePayment issues a fresh reference for the order. Cash orders get a
// reference but no link.
func (l *LinkIssuer) InitiatePayment(ctx context.Context, order *models.Order) (CheckoutHandle, error) {
	if order == nil || order.IsEmpty() {
		return CheckoutHandle{}, fmt.Errorf("cannot pay for an empty order")
	}
	handle := CheckoutHandle{
		Reference: "chk_" + strings.ReplaceAll(uuid.New().String(), "-", ""),
		Amount:    order.Total(),
	}
	if Method(order.PaymentMethod) != MethodCash {
		handle.URL = fmt.Sprintf(l.urlTemplate, handle.Reference)
	}
	return handle, nil
}
