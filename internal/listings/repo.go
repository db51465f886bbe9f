package listings

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// Snapshot is the listing state a bid was validated against.
type Snapshot struct {
	CurrentBidCents int64
	BidCount        int
}

// BidUpdate is the new price and leader after a bid resolves.
type BidUpdate struct {
	CurrentBidCents    int64
	HighBidderID       uuid.UUID
	HighBidderMaxCents int64
	AddedBids          int
	// At is when the bid is placed; the write is refused once ends_at has passed.
	At time.Time
}

// Repository persists listings.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, listing *models.Listing) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ApplyBid(ctx context.Context, id uuid.UUID, observed Snapshot, update BidUpdate) (bool, error)
	ListDue(ctx context.Context, now time.Time, limit int) ([]models.Listing, error)
	Close(ctx context.Context, id uuid.UUID, observed Snapshot, status enums.ListingStatus, at time.Time) (bool, error)
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

func (r *repository) Create(ctx context.Context, listing *models.Listing) error {
	return r.db.WithContext(ctx).Create(listing).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&listing).Error; err != nil {
		return nil, err
	}
	return &listing, nil
}

// ApplyBid writes the new price only if the listing is still active, not yet ended and unchanged since observed.
func (r *repository) ApplyBid(ctx context.Context, id uuid.UUID, observed Snapshot, update BidUpdate) (bool, error) {
	at := update.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND ends_at > ? AND current_bid_cents = ? AND bid_count = ?",
			id, enums.ListingStatusActive, at, observed.CurrentBidCents, observed.BidCount).
		Updates(map[string]any{
			"current_bid_cents":     update.CurrentBidCents,
			"high_bidder_id":        update.HighBidderID,
			"high_bidder_max_cents": update.HighBidderMaxCents,
			"bid_count":             gorm.Expr("bid_count + ?", update.AddedBids),
			"updated_at":            at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// ListDue returns active listings whose end time has passed.
func (r *repository) ListDue(ctx context.Context, now time.Time, limit int) ([]models.Listing, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Listing
	err := r.db.WithContext(ctx).
		Where("status = ? AND ends_at <= ?", enums.ListingStatusActive, now).
		Order("ends_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// Close settles an active listing at the price and bid count the caller observed.
// It reports false if another worker closed it first or a bid landed since the read.
func (r *repository) Close(ctx context.Context, id uuid.UUID, observed Snapshot, status enums.ListingStatus, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Listing{}).
		Where("id = ? AND status = ? AND current_bid_cents = ? AND bid_count = ?",
			id, enums.ListingStatusActive, observed.CurrentBidCents, observed.BidCount).
		Updates(map[string]any{
			"status":     status,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
