package listings

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/internal/orders"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type orderCreator interface {
	CreatePending(ctx context.Context, tx *gorm.DB, input orders.CreatePendingInput) (*models.Order, error)
}

type closeNotifier interface {
	NotifyAuctionClosed(ctx context.Context, listing models.Listing, orderID *uuid.UUID) error
}

// CloseSummary counts what one close pass settled.
type CloseSummary struct {
	Sold   int
	Unsold int
}

type ServiceParams struct {
	Repo     Repository
	Orders   orderCreator
	Tx       txRunner
	Outbox   outbox.Emitter
	Notifier closeNotifier
	Logger   *logger.Logger
}

// Service settles auctions once they end.
type Service struct {
	repo     Repository
	orders   orderCreator
	tx       txRunner
	outbox   outbox.Emitter
	notifier closeNotifier
	logg     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	switch {
	case params.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "listings repository required")
	case params.Orders == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders service required")
	case params.Tx == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	case params.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:     params.Repo,
		orders:   params.Orders,
		tx:       params.Tx,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		logg:     logg,
	}, nil
}

// HasWinner reports whether the listing closes as sold.
func HasWinner(listing models.Listing) bool {
	if listing.BidCount == 0 || listing.HighBidderID == nil {
		return false
	}
	return listing.ReservePriceCents == 0 || listing.CurrentBidCents >= listing.ReservePriceCents
}

// CloseDue settles every ended auction in one batch. Each listing closes in its own transaction.
func (s *Service) CloseDue(ctx context.Context, now time.Time, limit int) (CloseSummary, error) {
	var summary CloseSummary
	due, err := s.repo.ListDue(ctx, now, limit)
	if err != nil {
		return summary, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list ended listings")
	}

	var errs error
	for _, listing := range due {
		closed, orderID, err := s.closeOne(ctx, listing, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("close listing %s: %w", listing.ID, err))
			continue
		}
		if !closed {
			continue
		}
		if orderID != nil {
			summary.Sold++
			listing.Status = enums.ListingStatusSold
		} else {
			summary.Unsold++
			listing.Status = enums.ListingStatusUnsold
		}
		if s.notifier != nil {
			if err := s.notifier.NotifyAuctionClosed(ctx, listing, orderID); err != nil {
				s.logg.Error(s.logg.WithField(ctx, "listing_id", listing.ID.String()), "auction close notification failed", err)
			}
		}
	}
	return summary, errs
}

func (s *Service) closeOne(ctx context.Context, listing models.Listing, now time.Time) (bool, *uuid.UUID, error) {
	status := enums.ListingStatusUnsold
	if HasWinner(listing) {
		status = enums.ListingStatusSold
	}

	var (
		closed  bool
		orderID *uuid.UUID
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		observed := Snapshot{CurrentBidCents: listing.CurrentBidCents, BidCount: listing.BidCount}
		ok, err := s.repo.WithTx(tx).Close(ctx, listing.ID, observed, status, now)
		if err != nil {
			return err
		}
		if !ok {
			// closed elsewhere or changed since ListDue; the next pass settles the current row
			s.logg.Warn(s.logg.WithField(ctx, "listing_id", listing.ID.String()), "listing changed before close, skipping")
			return nil
		}
		closed = true

		event := payloads.AuctionClosedEvent{
			ListingID:       listing.ID,
			SellerID:        listing.SellerID,
			Status:          status,
			FinalPriceCents: listing.CurrentBidCents,
			BidCount:        listing.BidCount,
		}
		if status == enums.ListingStatusSold {
			order, err := s.orders.CreatePending(ctx, tx, orders.CreatePendingInput{
				ListingID:   listing.ID,
				BuyerID:     *listing.HighBidderID,
				SellerID:    listing.SellerID,
				AmountCents: listing.CurrentBidCents,
				Currency:    listing.Currency,
			})
			if err != nil {
				return err
			}
			orderID = &order.ID
			event.WinnerID = listing.HighBidderID
			event.OrderID = orderID
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventAuctionClosed,
			AggregateType: enums.AggregateListing,
			AggregateID:   listing.ID,
			Actor:         &outbox.ActorRef{Kind: "system"},
			Data:          event,
			OccurredAt:    now,
		})
	})
	if err != nil {
		return false, nil, err
	}
	return closed, orderID, nil
}
