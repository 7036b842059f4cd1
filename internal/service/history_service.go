package service

import (
	"context"
	"slices"

	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/repository"
)

type HistoryService struct {
	messageRepo repository.MessageRepository
}

func NewHistoryService(messageRepo repository.MessageRepository) *HistoryService {
	return &HistoryService{messageRepo: messageRepo}
}

// GetConversation returns one page of the conversation between userA and
// userB in ascending timestamp order. Page 0 holds the most recent messages.
// An empty conversation is an empty slice. No maximum size is enforced here.
func (s *HistoryService) GetConversation(ctx context.Context, userA, userB string, page, size int) ([]*domain.Message, error) {
	if page < 0 || size <= 0 {
		return nil, domain.ErrInvalidPagination
	}

	messages, err := s.messageRepo.GetConversation(ctx, userA, userB, size, page*size)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		return []*domain.Message{}, nil
	}

	// The repository returns newest first
	slices.Reverse(messages)
	return messages, nil
}
