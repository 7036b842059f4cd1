package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/dom/league-chat/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type identityRepository struct {
	db *gorm.DB
}

func NewIdentityRepository(db *gorm.DB) *identityRepository {
	return &identityRepository{db: db}
}

// Upsert relies on the primary key conflict so two first-sight inserts for the
// same id cannot both create a row.
func (r *identityRepository) Upsert(ctx context.Context, identity *domain.Identity) (*domain.Identity, error) {
	now := time.Now()
	row := &domain.Identity{
		ID:        identity.ID,
		Username:  identity.Username,
		Claims:    identity.Claims,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"username", "claims", "updated_at"}),
	}).Create(row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrUsernameTaken
		}
		return nil, err
	}

	return r.GetByID(ctx, identity.ID)
}

func (r *identityRepository) GetByID(ctx context.Context, id string) (*domain.Identity, error) {
	var identity domain.Identity
	err := r.db.WithContext(ctx).First(&identity, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}

func (r *identityRepository) GetByUsername(ctx context.Context, username string) (*domain.Identity, error) {
	var identity domain.Identity
	err := r.db.WithContext(ctx).First(&identity, "username = ?", username).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrIdentityNotFound
		}
		return nil, err
	}
	return &identity, nil
}
