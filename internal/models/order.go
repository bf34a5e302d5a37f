package models

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus represents the possible states of an order
type OrderStatus string

const (
	OrderStatusDraft     OrderStatus = "draft"
	OrderStatusCheckout  OrderStatus = "checkout"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Order represents a customer order built up over a conversation
type Order struct {
	ID             string `gorm:"primary_key"`
	TenantID       string `gorm:"index:idx_orders_tenant_status;not null"`
	Status         string `gorm:"index:idx_orders_tenant_status;not null"`
	ConversationID string `gorm:"index:idx_orders_conversation;not null"`
	CustomerID     string
	Items          []OrderItem `gorm:"foreignkey:OrderID"`
	PaymentMethod  string
	StoreID        string
	DeliveryFee    decimal.Decimal `gorm:"type:decimal(10,2);not null;default:0"`
	CheckoutRef    string
	CheckoutURL    string
	UpsellOffered  bool
	ConfirmedAt    *time.Time `gorm:"index:idx_orders_confirmed_at"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem represents a line in an order
type OrderItem struct {
	ID         uint   `gorm:"primary_key"`
	OrderID    string `gorm:"index:idx_order_items_order;not null"`
	MenuItemID string `gorm:"index:idx_order_items_menu_item;not null"`
	Name       string
	UnitPrice  decimal.Decimal `gorm:"type:decimal(10,2);not null"`
	Quantity   int             `gorm:"not null"`
	OptionIDs  StringSlice     `gorm:"type:text"`
	OptionsKey string
	Notes      string
}

// OptionsKey builds the merge key for a set of selected options, independent of order
func OptionsKey(optionIDs []string) string {
	ids := append([]string(nil), optionIDs...)
	sort.Strings(ids)
	return strings.Join(ids, ",")
}

// IsDraft reports whether items may still be changed
func (o *Order) IsDraft() bool {
	return o.Status == string(OrderStatusDraft)
}

// IsEmpty reports whether the order has no items
func (o *Order) IsEmpty() bool {
	return len(o.Items) == 0
}

// AddItem merges item into the order: the same menu item with the same options
// increments the existing line instead of adding a duplicate
func (o *Order) AddItem(item OrderItem) {
	if item.Quantity < 1 {
		item.Quantity = 1
	}
	item.OptionsKey = OptionsKey(item.OptionIDs)
	for i := range o.Items {
		line := &o.Items[i]
		if line.MenuItemID == item.MenuItemID && line.OptionsKey == item.OptionsKey {
			line.Quantity += item.Quantity
			if item.Notes != "" && !strings.Contains(line.Notes, item.Notes) {
				if line.Notes == "" {
					line.Notes = item.Notes
				} else {
					line.Notes += "; " + item.Notes
				}
			}
			return
		}
	}
	item.OrderID = o.ID
	o.Items = append(o.Items, item)
}

// HasMenuItem reports whether any line references the menu item
func (o *Order) HasMenuItem(menuItemID string) bool {
	for _, line := range o.Items {
		if line.MenuItemID == menuItemID {
			return true
		}
	}
	return false
}

// MenuItemIDs returns the distinct menu items in the order, in line order
func (o *Order) MenuItemIDs() []string {
	seen := make(map[string]bool, len(o.Items))
	ids := make([]string, 0, len(o.Items))
	for _, line := range o.Items {
		if !seen[line.MenuItemID] {
			seen[line.MenuItemID] = true
			ids = append(ids, line.MenuItemID)
		}
	}
	return ids
}

// Subtotal is the sum of all lines without delivery
func (o *Order) Subtotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.Items {
		total = total.Add(line.LineTotal())
	}
	return total
}

// Total is the subtotal plus delivery fee
func (o *Order) Total() decimal.Decimal {
	return o.Subtotal().Add(o.DeliveryFee)
}

// LineTotal is unit price times quantity
func (oi *OrderItem) LineTotal() decimal.Decimal {
	return oi.UnitPrice.Mul(decimal.NewFromInt(int64(oi.Quantity)))
}
