package badgerdb

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dom/league-chat/internal/domain"
)

type identityRepository struct {
	db *badger.DB
}

func NewIdentityRepository(db *badger.DB) *identityRepository {
	return &identityRepository{db: db}
}

func identityKey(id string) []byte {
	return []byte("identity\x00id\x00" + id)
}

func usernameKey(username string) []byte {
	return []byte("identity\x00username\x00" + username)
}

// Upsert reads the current row inside the transaction, so two concurrent
// first-sight upserts for the same id conflict at commit and the loser retries
// against the winner's row.
func (r *identityRepository) Upsert(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	for attempt := 0; attempt < maxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		var result *domain.Identity
		err := r.db.Update(func(txn *badger.Txn) error {
			existing, err := getIdentity(txn, identity.ID)
			if err != nil && !errors.Is(err, domain.ErrIdentityNotFound) {
				return err
			}

			owner, err := getUsernameOwner(txn, identity.Username)
			if err != nil && !errors.Is(err, domain.ErrIdentityNotFound) {
				return err
			}
			if owner != "" && owner != identity.ID {
				return domain.ErrUsernameTaken
			}

			if existing != nil && existing.Username == identity.Username && sameClaims(existing, identity) {
				// Read-only transactions never conflict
				result = existing
				return nil
			}

			now := time.Now()
			next := &domain.Identity{
				ID:        identity.ID,
				Username:  identity.Username,
				Claims:    identity.Claims,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if existing != nil {
				next.CreatedAt = existing.CreatedAt
				if existing.Username != identity.Username {
					if err := txn.Delete(usernameKey(existing.Username)); err != nil {
						return err
					}
				}
			}

			data, err := json.Marshal(next)
			if err != nil {
				return err
			}
			if err := txn.Set(identityKey(next.ID), data); err != nil {
				return err
			}
			if err := txn.Set(usernameKey(next.Username), []byte(next.ID)); err != nil {
				return err
			}

			result = next
			return nil
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	return nil, fmt.Errorf("upsert identity %s: %w", identity.ID, badger.ErrConflict)
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	var identity *domain.Identity
	err := r.db.View(func(txn *badger.Txn) error {
		var err error
		identity, err = getIdentity(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func (r *identityRepository) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	var identity *domain.Identity
	err := r.db.View(func(txn *badger.Txn) error {
		id, err := getUsernameOwner(txn, username)
		if err != nil {
			return err
		}
		identity, err = getIdentity(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return identity, nil
}

func sameClaims(a, b *domain.Identity) bool {
	left, err := json.Marshal(a.Claims)
	if err != nil {
		return false
	}
	right, err := json.Marshal(b.Claims)
	if err != nil {
		return false
	}
	return bytes.Equal(left, right)
}

func getIdentity(txn *badger.Txn, id string) (*domain.Identity, error) {
	item, err := txn.Get(identityKey(id))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}

	var identity domain.Identity
	err = item.Value(func(val []byte) error {
		return json.Unmarshal(val, &identity)
	})
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

func getUsernameOwner(txn *badger.Txn, username string) (string, error) {
	item, err := txn.Get(usernameKey(username))
	if err != nil {
		if errors.Is(err, badger.ErrKeyNotFound) {
			return "", domain.ErrIdentityNotFound
		}
		return "", err
	}

	owner, err := item.ValueCopy(nil)
	if err != nil {
		return "", err
	}
	return string(owner), nil
}
