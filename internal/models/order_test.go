package models

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestOrderAddItemMergesSameOptions(t *testing.T) {
	order := &Order{ID: "o1", Status: string(OrderStatusDraft)}

	order.AddItem(OrderItem{MenuItemID: "doner", UnitPrice: decimal.NewFromInt(45), Quantity: 1, OptionIDs: StringSlice{"spicy", "large"}})
	order.AddItem(OrderItem{MenuItemID: "doner", UnitPrice: decimal.NewFromInt(45), Quantity: 2, OptionIDs: StringSlice{"large", "spicy"}})
	order.AddItem(OrderItem{MenuItemID: "doner", UnitPrice: decimal.NewFromInt(45), Quantity: 1})

	assert.Len(t, order.Items, 2)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, "large,spicy", order.Items[0].OptionsKey)
	assert.Equal(t, "o1", order.Items[1].OrderID)
}

func TestOrderTotals(t *testing.T) {
	order := &Order{DeliveryFee: decimal.RequireFromString("7.50")}
	order.AddItem(OrderItem{MenuItemID: "doner", UnitPrice: decimal.NewFromInt(45), Quantity: 2})
	order.AddItem(OrderItem{MenuItemID: "ayran", UnitPrice: decimal.NewFromInt(5), Quantity: 0})

	assert.True(t, order.Subtotal().Equal(decimal.NewFromInt(95)))
	assert.True(t, order.Total().Equal(decimal.RequireFromString("102.50")))
	assert.Equal(t, []string{"doner", "ayran"}, order.MenuItemIDs())
	assert.True(t, order.HasMenuItem("ayran"))
}

func TestOrderAddItemJoinsNotes(t *testing.T) {
	order := &Order{}
	order.AddItem(OrderItem{MenuItemID: "doner", Quantity: 1, Notes: "no onions"})
	order.AddItem(OrderItem{MenuItemID: "doner", Quantity: 1, Notes: "extra sauce"})
	order.AddItem(OrderItem{MenuItemID: "doner", Quantity: 1, Notes: "no onions"})

	assert.Equal(t, "no onions; extra sauce", order.Items[0].Notes)
	assert.Equal(t, 3, order.Items[0].Quantity)
}

func TestMessageHistoryAppendKeepsNewest(t *testing.T) {
	var h MessageHistory
	for _, text := range []string{"a", "b", "c", "d"} {
		h = h.Append(HistoryEntry{Direction: DirectionInbound, Text: text}, 3)
	}
	assert.Len(t, h, 3)
	assert.Equal(t, "b", h[0].Text)
	assert.Equal(t, "d", h[2].Text)
}

func TestStringSliceRoundTripThroughScan(t *testing.T) {
	var s StringSlice
	assert.NoError(t, s.Scan([]byte(`["a","b"]`)))
	assert.True(t, s.Contains("b"))
	assert.NoError(t, s.Scan(nil))
	assert.Empty(t, s)
	assert.Error(t, s.Scan(42))
}
