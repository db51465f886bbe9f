package bids

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
)

// resolution is the outcome of a bid against the current leader's proxy ceiling.
type resolution struct {
	price      int64
	leader     uuid.UUID
	leaderMax  int64
	challenger bool
	// incumbent auto-raise recorded as its own bid row
	proxyRaise bool
}

func resolve(listing models.Listing, bidder uuid.UUID, amount, ceiling int64) resolution {
	if listing.HighBidderID == nil || listing.BidCount == 0 {
		return resolution{price: amount, leader: bidder, leaderMax: ceiling, challenger: true}
	}

	incumbent := *listing.HighBidderID
	incumbentMax := listing.HighBidderMaxCents
	if incumbentMax < listing.CurrentBidCents {
		incumbentMax = listing.CurrentBidCents
	}

	if incumbent == bidder {
		// leader raising their own bid or ceiling
		return resolution{price: amount, leader: bidder, leaderMax: max(ceiling, incumbentMax), challenger: true}
	}

	if incumbentMax >= ceiling {
		price := min(incumbentMax, ceiling+Increment(ceiling))
		return resolution{price: price, leader: incumbent, leaderMax: incumbentMax, proxyRaise: true}
	}

	price := min(ceiling, incumbentMax+Increment(incumbentMax))
	if price < amount {
		price = amount
	}
	return resolution{price: price, leader: bidder, leaderMax: ceiling, challenger: true}
}
