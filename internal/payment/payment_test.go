package payment

import (
	"context"
	"strings"
	"testing"

	"maitred/internal/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLinkIssuerValidatesTemplate(t *testing.T) {
	_, err := NewLinkIssuer("https://pay.example.com/checkout")
	assert.Error(t, err)
	_, err = NewLinkIssuer("https://pay.example.com/%s/%s")
	assert.Error(t, err)
}

func TestInitiatePayment(t *testing.T) {
	issuer, err := NewLinkIssuer("https://pay.example.com/checkout/%s")
	require.NoError(t, err)

	order := &models.Order{ID: "o1", PaymentMethod: string(MethodCard), DeliveryFee: decimal.NewFromInt(10)}
	order.AddItem(models.OrderItem{MenuItemID: "ayran", UnitPrice: decimal.NewFromInt(5), Quantity: 2})

	first, err := issuer.InitiatePayment(context.Background(), order)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(first.Reference, "chk_"))
	assert.Equal(t, "https://pay.example.com/checkout/"+first.Reference, first.URL)
	assert.True(t, first.Amount.Equal(decimal.NewFromInt(20)))

	second, err := issuer.InitiatePayment(context.Background(), order)
	require.NoError(t, err)
	assert.NotEqual(t, first.Reference, second.Reference)

	order.PaymentMethod = string(MethodCash)
	cash, err := issuer.InitiatePayment(context.Background(), order)
	require.NoError(t, err)
	assert.Empty(t, cash.URL)

	_, err = issuer.InitiatePayment(context.Background(), &models.Order{})
	assert.Error(t, err)
}
