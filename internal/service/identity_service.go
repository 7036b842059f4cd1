package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/dom/league-chat/internal/domain"
	"github.com/dom/league-chat/internal/repository"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"
)

// IdentityResolver is the write path into the identity store.
type IdentityResolver struct {
	identityRepo repository.IdentityRepository
	inflight     singleflight.Group
	synced       sync.Map // id -> last username written by this process
}

func NewIdentityResolver(identityRepo repository.IdentityRepository) *IdentityResolver {
	return &IdentityResolver{identityRepo: identityRepo}
}

// Sync creates the identity on first sight and renames it when username
// changed. Concurrent calls for the same (id, username) share one write.
func (r *IdentityResolver) Sync(ctx context.Context, id, username string, claims map[string]interface{}) error {
	if last, ok := r.synced.Load(id); ok && last.(string) == username {
		return nil
	}

	// shared by every waiter
	syncCtx := context.WithoutCancel(ctx)
	_, err, _ := r.inflight.Do(id+"\x00"+username, func() (interface{}, error) {
		identity, err := r.identityRepo.Upsert(syncCtx, &domain.Identity{
			ID:       id,
			Username: username,
			Claims:   datatypes.JSONMap(claims),
		})
		if err != nil {
			return nil, err
		}
		r.synced.Store(id, identity.Username)
		return identity, nil
	})
	if err != nil {
		return fmt.Errorf("%w: %s: %w", domain.ErrIdentitySync, id, err)
	}
	return nil
}

func (r *IdentityResolver) Resolve(ctx context.Context, id string) (*domain.Identity, error) {
	return r.identityRepo.GetByID(ctx, id)
}

func (r *IdentityResolver) ResolveUsername(ctx context.Context, username string) (*domain.Identity, error) {
	return r.identityRepo.GetByUsername(ctx, username)
}
