package database

import (
	"context"
	"fmt"
	"time"

	"maitred/internal/apperr"
	"maitred/internal/models"

	"github.com/jinzhu/gorm"
)

// GetOrder loads an order and its items
func (s *Store) GetOrder(ctx context.Context, tenantID, orderID string) (*models.Order, error) {
	var order models.Order
	err := s.db.Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("tenant_id = ? AND id = ?", tenantID, orderID).First(&order).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, apperr.New(apperr.KindNotFound, "order "+orderID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load order %s: %w", orderID, err)
	}
	return &order, nil
}

// SaveOrder persists an order and replaces its items
func (s *Store) SaveOrder(ctx context.Context, order *models.Order) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		return saveOrder(tx, order)
	})
}

func saveOrder(tx *gorm.DB, order *models.Order) error {
	err := tx.Set("gorm:association_autoupdate", false).
		Set("gorm:association_autocreate", false).
		Save(order).Error
	if err != nil {
		return fmt.Errorf("save order %s: %w", order.ID, err)
	}

	if err := tx.Where("order_id = ?", order.ID).Delete(&models.OrderItem{}).Error; err != nil {
		return fmt.Errorf("clear items of order %s: %w", order.ID, err)
	}
	for i := range order.Items {
		item := &order.Items[i]
		item.ID = 0
		item.OrderID = order.ID
		if err := tx.Create(item).Error; err != nil {
			return fmt.Errorf("create item of order %s: %w", order.ID, err)
		}
	}
	return nil
}

// CountConfirmedOrdersSince counts the conversation's orders confirmed after since,
// ignoring excludeOrderID
func (s *Store) CountConfirmedOrdersSince(ctx context.Context, tenantID, conversationID string, since time.Time, excludeOrderID string) (int, error) {
	var count int
	err := s.db.Model(&models.Order{}).
		Where("tenant_id = ? AND conversation_id = ? AND status = ? AND confirmed_at > ?",
			tenantID, conversationID, string(models.OrderStatusConfirmed), since).
		Where("id <> ?", excludeOrderID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count confirmed orders: %w", err)
	}
	return count, nil
}

// CountConfirmedOrdersWithItem counts the conversation's confirmed orders that contained the item
func (s *Store) CountConfirmedOrdersWithItem(ctx context.Context, tenantID, conversationID, menuItemID string) (int, error) {
	var count int
	err := s.db.Model(&models.Order{}).
		Where("tenant_id = ? AND conversation_id = ? AND status = ?",
			tenantID, conversationID, string(models.OrderStatusConfirmed)).
		Where("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.menu_item_id = ?)", menuItemID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("count orders with item %s: %w", menuItemID, err)
	}
	return count, nil
}

// RecentOrdersContaining returns up to limit of the tenant's most recent confirmed
// orders that contain at least one of itemIDs. Draft and cancelled orders never qualify.
func (s *Store) RecentOrdersContaining(ctx context.Context, tenantID string, itemIDs []string, limit int) ([]models.Order, error) {
	if len(itemIDs) == 0 || limit <= 0 {
		return nil, nil
	}
	var orders []models.Order
	err := s.db.Preload("Items").
		Where("tenant_id = ? AND status = ?", tenantID, string(models.OrderStatusConfirmed)).
		Where("EXISTS (SELECT 1 FROM order_items oi WHERE oi.order_id = orders.id AND oi.menu_item_id IN (?))", itemIDs).
		Order("confirmed_at DESC").Order("id DESC").
		Limit(limit).
		Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("load co-purchase sample: %w", err)
	}
	return orders, nil
}
