package ledger

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
)

// Repository is append-only: payment records are inserted and read, never updated or deleted.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Insert(ctx context.Context, record *models.PaymentRecord) (bool, error)
	ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a payment ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// Insert reports false when a record for the same provider event already exists.
func (r *repository) Insert(ctx context.Context, record *models.PaymentRecord) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_event_id"}},
			DoNothing: true,
		}).
		Create(record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListByOrderID(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error) {
	var records []models.PaymentRecord
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
