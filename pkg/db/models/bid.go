package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Bid is an insert-only record of every accepted bid, including proxy auto-raises.
type Bid struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ListingID   uuid.UUID `gorm:"column:listing_id;type:uuid;not null"`
	BidderID    uuid.UUID `gorm:"column:bidder_id;type:uuid;not null"`
	AmountCents int64     `gorm:"column:amount_cents;not null"`
	MaxCents    int64     `gorm:"column:max_cents;not null"`
	IsProxy     bool      `gorm:"column:is_proxy;not null;default:false"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (Bid) TableName() string { return "bids" }

func (b *Bid) BeforeCreate(*gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}
