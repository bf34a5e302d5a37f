package database

import (
	"context"
	"fmt"

	"maitred/internal/apperr"
	"maitred/internal/models"

	"github.com/jinzhu/gorm"
)

// GetConversation loads a conversation by its tenant-scoped id
func (s *Store) GetConversation(ctx context.Context, tenantID, conversationID string) (*models.Conversation, error) {
	var conv models.Conversation
	err := s.db.Where("tenant_id = ? AND conversation_id = ?", tenantID, conversationID).First(&conv).Error
	if gorm.IsRecordNotFoundError(err) {
		return nil, apperr.New(apperr.KindNotFound, "conversation "+conversationID, err)
	}
	if err != nil {
		return nil, fmt.Errorf("load conversation %s: %w", conversationID, err)
	}
	return &conv, nil
}

// CreateConversation inserts a new conversation
func (s *Store) CreateConversation(ctx context.Context, conv *models.Conversation) error {
	if err := s.db.Create(conv).Error; err != nil {
		return fmt.Errorf("create conversation %s: %w", conv.ConversationID, err)
	}
	return nil
}

// SaveTurn persists the conversation and its draft order atomically
func (s *Store) SaveTurn(ctx context.Context, conv *models.Conversation, order *models.Order) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if order != nil {
			if err := saveOrder(tx, order); err != nil {
				return err
			}
		}
		if err := tx.Save(conv).Error; err != nil {
			return fmt.Errorf("save conversation %s: %w", conv.ConversationID, err)
		}
		return nil
	})
}
