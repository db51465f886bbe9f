package bids

import "github.com/angelmondragon/bidhouse-backend/pkg/db/models"

// Increment returns the minimum raise over price, in cents.
func Increment(priceCents int64) int64 {
	switch {
	case priceCents < 5_000:
		return 100
	case priceCents < 50_000:
		return 500
	case priceCents < 100_000:
		return 1_000
	default:
		return 2_500
	}
}

// MinimumBid is the lowest acceptable next bid: the starting price before any bid, else current plus increment.
func MinimumBid(listing models.Listing) int64 {
	if listing.BidCount == 0 {
		return listing.StartingPriceCents
	}
	return listing.CurrentBidCents + Increment(listing.CurrentBidCents)
}
