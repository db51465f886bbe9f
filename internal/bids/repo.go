package bids

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
)

// Repository stores bid history. Bids are never updated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, bids ...*models.Bid) error
	ListByListing(ctx context.Context, listingID uuid.UUID, limit int) ([]models.Bid, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Insert(ctx context.Context, bids ...*models.Bid) error {
	if len(bids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(bids).Error
}

func (r *repository) ListByListing(ctx context.Context, listingID uuid.UUID, limit int) ([]models.Bid, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []models.Bid
	err := r.db.WithContext(ctx).
		Where("listing_id = ?", listingID).
		Order("created_at DESC, amount_cents DESC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
