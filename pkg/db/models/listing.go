package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// Listing is an auction. HighBidderMaxCents is the leader's proxy ceiling and is never exposed.
type Listing struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SellerID           uuid.UUID           `gorm:"column:seller_id;type:uuid;not null"`
	Title              string              `gorm:"column:title;type:text;not null"`
	Currency           string              `gorm:"column:currency;type:text;not null"`
	StartingPriceCents int64               `gorm:"column:starting_price_cents;not null"`
	ReservePriceCents  int64               `gorm:"column:reserve_price_cents;not null;default:0"`
	CurrentBidCents    int64               `gorm:"column:current_bid_cents;not null;default:0"`
	HighBidderID       *uuid.UUID          `gorm:"column:high_bidder_id;type:uuid"`
	HighBidderMaxCents int64               `gorm:"column:high_bidder_max_cents;not null;default:0"`
	BidCount           int                 `gorm:"column:bid_count;not null;default:0"`
	Status             enums.ListingStatus `gorm:"column:status;type:listing_status;not null"`
	EndsAt             time.Time           `gorm:"column:ends_at;not null"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (Listing) TableName() string { return "listings" }

func (l *Listing) BeforeCreate(*gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}

// ReserveActive reports whether a reserve exists and has not been met yet.
func (l Listing) ReserveActive() bool {
	return l.ReservePriceCents > 0 && l.CurrentBidCents < l.ReservePriceCents
}
