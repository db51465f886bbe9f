package orders

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// Repository persists orders. Every status write is guarded by the allowed source statuses.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error)
	FindByListing(ctx context.Context, listingID uuid.UUID) (*models.Order, error)
	Transition(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, at time.Time) (bool, error)
	MarkReady(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)
	SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error)
	ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds the orders repository to a database handle.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("payment_intent_id = ?", paymentIntentID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByListing(ctx context.Context, listingID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("listing_id = ?", listingID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Transition moves the order to `to` only while its status is one of `from`.
// It reports false when the guard matched no row.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, from []enums.OrderStatus, to enums.OrderStatus, at time.Time) (bool, error) {
	if len(from) == 0 {
		return false, errors.New("transition requires at least one source status")
	}
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	if column := stampColumn(to); column != "" {
		updates[column] = at
	}
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) MarkReady(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, enums.OrderStatusPaid).
		Updates(map[string]any{
			"ready_at":   at,
			"updated_at": at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SetPaymentIntent attaches the provider reference once, while the order awaits payment.
func (r *repository) SetPaymentIntent(ctx context.Context, id uuid.UUID, paymentIntentID string) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ? AND payment_intent_id IS NULL", id, enums.OrderStatusPending).
		Updates(map[string]any{
			"payment_intent_id": paymentIntentID,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListDeliveredBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Where("status = ? AND delivered_at IS NOT NULL AND delivered_at <= ?", enums.OrderStatusDelivered, cutoff).
		Order("delivered_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}
