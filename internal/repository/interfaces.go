//go:generate go run go.uber.org/mock/mockgen -source=interfaces.go -destination=../mocks/mock_repository.go -package=mocks
package repository

import (
	"context"

	"github.com/dom/league-chat/internal/domain"
)

type IdentityRepository interface {
	// Upsert creates the identity or renames it when the username changed.
	// It must be atomic per identity id.
	Upsert(ctx context.Context, identity *domain.Identity) (*domain.Identity, error)
	GetByID(ctx context.Context, id string) (*domain.Identity, error)
	GetByUsername(ctx context.Context, username string) (*domain.Identity, error)
}

type MessageRepository interface {
	Create(ctx context.Context, message *domain.Message) error
	// GetConversation returns the messages exchanged between userA and userB,
	// newest first, skipping offset and returning at most limit.
	GetConversation(ctx context.Context, userA, userB string, limit, offset int) ([]*domain.Message, error)
}

type Repositories struct {
	Identity IdentityRepository
	Message  MessageRepository
}
