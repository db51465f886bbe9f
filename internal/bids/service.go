package bids

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/internal/listings"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/metrics"
	"github.com/angelmondragon/bidhouse-backend/pkg/money"
)

// Bid results as exported in metrics.
const (
	ResultAccepted     = "accepted"
	ResultOutbid       = "outbid"
	ResultTooLow       = "too_low"
	ResultBelowReserve = "below_reserve"
	ResultConflict     = "conflict"
	ResultError        = "error"
)

// ErrBidNotHigher is the message for a bid overtaken by a concurrent one.
const ErrBidNotHigher = "bid must be higher than current bid"

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type listingStore interface {
	WithTx(tx *gorm.DB) listings.Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	ApplyBid(ctx context.Context, id uuid.UUID, observed listings.Snapshot, update listings.BidUpdate) (bool, error)
}

type outbidNotifier interface {
	NotifyOutbid(ctx context.Context, listing models.Listing, userID uuid.UUID) error
}

// Service places bids.
type Service interface {
	Place(ctx context.Context, input PlaceInput) (*PlaceResult, error)
}

type PlaceInput struct {
	ListingID   uuid.UUID
	BidderID    uuid.UUID
	AmountCents int64
	MaxCents    *int64
}

// PlaceResult is the accepted bid plus the listing state it produced.
type PlaceResult struct {
	Bid              models.Bid `json:"bid"`
	CurrentBidCents  int64      `json:"current_bid_cents"`
	BidCount         int        `json:"bid_count"`
	Leading          bool       `json:"leading"`
	MinimumNextCents int64      `json:"minimum_next_cents"`
}

type ServiceParams struct {
	Listings listingStore
	Bids     Repository
	Tx       txRunner
	Notifier outbidNotifier
	Metrics  *metrics.BidMetrics
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	listings listingStore
	bids     Repository
	tx       txRunner
	notifier outbidNotifier
	metrics  *metrics.BidMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Listings == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "listings repository required")
	}
	if params.Bids == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "bids repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		listings: params.Listings,
		bids:     params.Bids,
		tx:       params.Tx,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     logg,
		now:      now,
	}, nil
}

// Place validates a bid against the listing it observed and writes it only if that listing is unchanged.
func (s *service) Place(ctx context.Context, input PlaceInput) (*PlaceResult, error) {
	result, err := s.place(ctx, input)
	switch {
	case err == nil && result.Leading:
		s.metrics.Observe(ResultAccepted)
	case err == nil:
		s.metrics.Observe(ResultOutbid)
	default:
		s.metrics.Observe(resultLabel(err))
	}
	return result, err
}

func (s *service) place(ctx context.Context, input PlaceInput) (*PlaceResult, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount_cents must be positive")
	}
	ceiling := input.AmountCents
	if input.MaxCents != nil {
		if *input.MaxCents < input.AmountCents {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "max_cents must be at least amount_cents").
				WithDetails(map[string]any{"max_cents": "must be greater than or equal to amount_cents"})
		}
		ceiling = *input.MaxCents
	}

	listing, err := s.loadListing(ctx, s.listings, input.ListingID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(*listing, input); err != nil {
		return nil, err
	}

	res := resolve(*listing, input.BidderID, input.AmountCents, ceiling)
	rows := bidRows(*listing, input, ceiling, res)
	previousLeader := listing.HighBidderID

	var applied bool
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		ok, err := s.listings.WithTx(tx).ApplyBid(ctx, listing.ID,
			listings.Snapshot{CurrentBidCents: listing.CurrentBidCents, BidCount: listing.BidCount},
			listings.BidUpdate{
				CurrentBidCents:    res.price,
				HighBidderID:       res.leader,
				HighBidderMaxCents: res.leaderMax,
				AddedBids:          len(rows),
				At:                 s.now(),
			})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply bid")
		}
		if !ok {
			return nil
		}
		applied = true
		if err := s.bids.WithTx(tx).Insert(ctx, rows...); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "insert bid")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !applied {
		return nil, s.lostRace(ctx, input)
	}

	listing.CurrentBidCents = res.price
	listing.BidCount += len(rows)
	listing.HighBidderID = &res.leader
	listing.HighBidderMaxCents = res.leaderMax

	if previousLeader != nil && *previousLeader != res.leader && s.notifier != nil {
		if err := s.notifier.NotifyOutbid(ctx, *listing, *previousLeader); err != nil {
			s.logg.Error(s.logg.WithField(ctx, "listing_id", listing.ID.String()), "outbid notification failed", err)
		}
	}

	return &PlaceResult{
		Bid:              *rows[0],
		CurrentBidCents:  listing.CurrentBidCents,
		BidCount:         listing.BidCount,
		Leading:          res.leader == input.BidderID,
		MinimumNextCents: MinimumBid(*listing),
	}, nil
}

func (s *service) loadListing(ctx context.Context, store listingStore, id uuid.UUID) (*models.Listing, error) {
	listing, err := store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "listing not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load listing")
	}
	return listing, nil
}

func (s *service) validate(listing models.Listing, input PlaceInput) error {
	if listing.SellerID == input.BidderID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "sellers cannot bid on their own listing")
	}
	if listing.Status != enums.ListingStatusActive || !s.now().Before(listing.EndsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "auction has ended")
	}

	minimum := MinimumBid(listing)
	if input.AmountCents < minimum {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "bid must be at least %s", money.Format(minimum, listing.Currency)).
			WithDetails(map[string]any{"minimum_cents": minimum})
	}
	if listing.ReserveActive() && input.AmountCents < listing.ReservePriceCents {
		return pkgerrors.Newf(pkgerrors.CodeValidation, "bid must meet the reserve price of %s", money.Format(listing.ReservePriceCents, listing.Currency)).
			WithDetails(map[string]any{"reserve_cents": listing.ReservePriceCents})
	}
	return nil
}

// lostRace explains a guarded write that matched no row.
func (s *service) lostRace(ctx context.Context, input PlaceInput) error {
	current, err := s.loadListing(ctx, s.listings, input.ListingID)
	if err != nil {
		return err
	}
	if current.Status != enums.ListingStatusActive || !s.now().Before(current.EndsAt) {
		return pkgerrors.New(pkgerrors.CodeValidation, "auction has ended")
	}
	if current.CurrentBidCents >= input.AmountCents {
		return pkgerrors.New(pkgerrors.CodeValidation, ErrBidNotHigher).
			WithDetails(map[string]any{
				"current_bid_cents": current.CurrentBidCents,
				"minimum_cents":     MinimumBid(*current),
			})
	}
	return pkgerrors.New(pkgerrors.CodeConflict, "listing changed while placing bid; retry")
}

func bidRows(listing models.Listing, input PlaceInput, ceiling int64, res resolution) []*models.Bid {
	placed := &models.Bid{
		ListingID:   listing.ID,
		BidderID:    input.BidderID,
		AmountCents: input.AmountCents,
		MaxCents:    ceiling,
	}
	if res.challenger && res.price > input.AmountCents {
		placed.AmountCents = res.price
		placed.IsProxy = true
	}
	rows := []*models.Bid{placed}
	if res.proxyRaise {
		rows = append(rows, &models.Bid{
			ListingID:   listing.ID,
			BidderID:    res.leader,
			AmountCents: res.price,
			MaxCents:    res.leaderMax,
			IsProxy:     true,
		})
	}
	return rows
}

func resultLabel(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return ResultError
	}
	switch {
	case typed.Code() == pkgerrors.CodeConflict:
		return ResultConflict
	case typed.Message() == ErrBidNotHigher:
		return ResultConflict
	case typed.Code() == pkgerrors.CodeValidation && isReserveError(typed):
		return ResultBelowReserve
	case typed.Code() == pkgerrors.CodeValidation:
		return ResultTooLow
	default:
		return ResultError
	}
}

func isReserveError(err *pkgerrors.Error) bool {
	details, ok := err.Details().(map[string]any)
	if !ok {
		return false
	}
	_, ok = details["reserve_cents"]
	return ok
}

