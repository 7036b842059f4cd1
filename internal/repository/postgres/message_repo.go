package postgres

import (
	"context"

	"github.com/dom/league-chat/internal/domain"
	"gorm.io/gorm"
)

type messageRepository struct {
	db *gorm.DB
}

func NewMessageRepository(db *gorm.DB) *messageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, message *domain.Message) error {
	return r.db.WithContext(ctx).Create(message).Error
}

func (r *messageRepository) GetConversation(ctx context.Context, userA, userB string, limit, offset int) ([]*domain.Message, error) {
	messages := []*domain.Message{}
	err := r.db.WithContext(ctx).
		Where("(sender_username = ? AND recipient_username = ?) OR (sender_username = ? AND recipient_username = ?)",
			userA, userB, userB, userA).
		Order("timestamp DESC, id DESC").
		Limit(limit).
		Offset(offset).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	return messages, nil
}
