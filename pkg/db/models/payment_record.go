package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// PaymentRecord is an append-only money event tied to an order.
type PaymentRecord struct {
	ID               uuid.UUID               `gorm:"column:id;type:uuid;primaryKey"`
	OrderID          uuid.UUID               `gorm:"column:order_id;type:uuid;not null"`
	Kind             enums.PaymentRecordKind `gorm:"column:kind;type:payment_record_kind;not null"`
	AmountCents      int64                   `gorm:"column:amount_cents;not null"`
	Currency         string                  `gorm:"column:currency;type:text;not null"`
	ProviderEventID  string                  `gorm:"column:provider_event_id;type:text;not null"`
	ProviderObjectID string                  `gorm:"column:provider_object_id;type:text"`
	CreatedAt        time.Time               `gorm:"column:created_at;autoCreateTime"`
}

func (PaymentRecord) TableName() string { return "payment_records" }

func (p *PaymentRecord) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
