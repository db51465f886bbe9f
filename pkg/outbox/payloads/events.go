package payloads

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// OrderStatusChangedEvent is emitted in the same transaction as every order status write.
type OrderStatusChangedEvent struct {
	OrderID        uuid.UUID         `json:"order_id"`
	ListingID      uuid.UUID         `json:"listing_id"`
	BuyerID        uuid.UUID         `json:"buyer_id"`
	SellerID       uuid.UUID         `json:"seller_id"`
	PreviousStatus enums.OrderStatus `json:"previous_status"`
	Status         enums.OrderStatus `json:"status"`
	Trigger        string            `json:"trigger"`
	AmountCents    int64             `json:"amount_cents"`
	Currency       string            `json:"currency"`
}

// AuctionClosedEvent is emitted when the close job settles a listing.
type AuctionClosedEvent struct {
	ListingID       uuid.UUID           `json:"listing_id"`
	SellerID        uuid.UUID           `json:"seller_id"`
	Status          enums.ListingStatus `json:"status"`
	WinnerID        *uuid.UUID          `json:"winner_id,omitempty"`
	OrderID         *uuid.UUID          `json:"order_id,omitempty"`
	FinalPriceCents int64               `json:"final_price_cents"`
	BidCount        int                 `json:"bid_count"`
}
