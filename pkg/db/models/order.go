package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// Order is one buyer/seller transaction for a sold listing.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	ListingID       uuid.UUID         `gorm:"column:listing_id;type:uuid;not null"`
	BuyerID         uuid.UUID         `gorm:"column:buyer_id;type:uuid;not null"`
	SellerID        uuid.UUID         `gorm:"column:seller_id;type:uuid;not null"`
	AmountCents     int64             `gorm:"column:amount_cents;not null"`
	Currency        string            `gorm:"column:currency;type:text;not null"`
	Status          enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	PaymentIntentID *string           `gorm:"column:payment_intent_id"`
	ReadyAt         *time.Time        `gorm:"column:ready_at"`
	PaidAt          *time.Time        `gorm:"column:paid_at"`
	ShippedAt       *time.Time        `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time        `gorm:"column:delivered_at"`
	RefundedAt      *time.Time        `gorm:"column:refunded_at"`
	CancelledAt     *time.Time        `gorm:"column:cancelled_at"`
	CompletedAt     *time.Time        `gorm:"column:completed_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}

// IsParty reports whether the user is the buyer or the seller.
func (o Order) IsParty(userID uuid.UUID) bool {
	return o.BuyerID == userID || o.SellerID == userID
}
