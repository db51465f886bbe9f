package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// Dispute mirrors a provider chargeback against an order.
type Dispute struct {
	ID                uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID           `gorm:"column:order_id;type:uuid;not null"`
	ProviderDisputeID string              `gorm:"column:provider_dispute_id;type:text;not null"`
	Reason            string              `gorm:"column:reason;type:text"`
	AmountCents       int64               `gorm:"column:amount_cents;not null"`
	Status            enums.DisputeStatus `gorm:"column:status;type:dispute_status;not null"`
	OpenedAt          time.Time           `gorm:"column:opened_at;not null"`
	ClosedAt          *time.Time          `gorm:"column:closed_at"`
	UpdatedAt         time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Dispute) TableName() string { return "disputes" }

func (d *Dispute) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
