package disputes

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// Repository persists provider disputes keyed by the provider dispute id.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	InsertIfAbsent(ctx context.Context, dispute *models.Dispute) (bool, error)
	FindByProviderID(ctx context.Context, providerDisputeID string) (*models.Dispute, error)
	Advance(ctx context.Context, providerDisputeID string, from []enums.DisputeStatus, to enums.DisputeStatus, at time.Time) (bool, error)
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

func (r *repository) InsertIfAbsent(ctx context.Context, dispute *models.Dispute) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "provider_dispute_id"}},
			DoNothing: true,
		}).
		Create(dispute)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindByProviderID(ctx context.Context, providerDisputeID string) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).Where("provider_dispute_id = ?", providerDisputeID).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

// Advance moves the dispute to `to` only while its status is one of `from`.
func (r *repository) Advance(ctx context.Context, providerDisputeID string, from []enums.DisputeStatus, to enums.DisputeStatus, at time.Time) (bool, error) {
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	if to.IsClosed() {
		updates["closed_at"] = at
	}
	res := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("provider_dispute_id = ? AND status IN ?", providerDisputeID, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
