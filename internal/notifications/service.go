package notifications

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/money"
	"github.com/angelmondragon/bidhouse-backend/pkg/pagination"
)

// Service covers the in-app notification inbox and the writers other domains call.
type Service interface {
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error)
	NotifyOrderStatus(ctx context.Context, order models.Order) error
	NotifyOutbid(ctx context.Context, listing models.Listing, userID uuid.UUID) error
	NotifyAuctionClosed(ctx context.Context, listing models.Listing, orderID *uuid.UUID) error
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type service struct {
	repo Repository
	now  func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	UserID     uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	return &service{repo: repo, now: func() time.Time { return time.Now().UTC() }}, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	query := listNotificationsParams{
		UserID:     params.UserID,
		Limit:      params.Limit,
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	cursor := ""
	if next != nil {
		cursor = pagination.EncodeCursor(*next)
	}
	if rows == nil {
		rows = []models.Notification{}
	}
	return &ListResult{Items: rows, Cursor: cursor}, nil
}

func (s *service) MarkRead(ctx context.Context, userID, notificationID uuid.UUID) error {
	if userID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, userID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	if userID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	count, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}

// NotifyOrderStatus writes the buyer and seller notifications for the order's current status.
func (s *service) NotifyOrderStatus(ctx context.Context, order models.Order) error {
	buyer, seller := orderStatusMessages(order)
	var rows []*models.Notification
	if buyer != nil {
		rows = append(rows, newNotification(order.BuyerID, *buyer, orderLink(order.ID)))
	}
	if seller != nil {
		rows = append(rows, newNotification(order.SellerID, *seller, orderLink(order.ID)))
	}
	if err := s.repo.Create(ctx, rows...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order notifications")
	}
	return nil
}

func (s *service) NotifyOutbid(ctx context.Context, listing models.Listing, userID uuid.UUID) error {
	msg := message{
		kind:  enums.NotificationTypeOutbid,
		title: "You were outbid",
		body:  fmt.Sprintf("The price on %q is now %s.", listing.Title, money.Format(listing.CurrentBidCents, listing.Currency)),
	}
	if err := s.repo.Create(ctx, newNotification(userID, msg, listingLink(listing.ID))); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create outbid notification")
	}
	return nil
}

// NotifyAuctionClosed tells the seller (and the winner, when there is one) how the auction ended.
func (s *service) NotifyAuctionClosed(ctx context.Context, listing models.Listing, orderID *uuid.UUID) error {
	price := money.Format(listing.CurrentBidCents, listing.Currency)
	var rows []*models.Notification
	if listing.Status == enums.ListingStatusSold && listing.HighBidderID != nil && orderID != nil {
		rows = append(rows,
			newNotification(*listing.HighBidderID, message{
				kind:  enums.NotificationTypeAuctionWon,
				title: "You won the auction",
				body:  fmt.Sprintf("You won %q for %s. Complete checkout to pay.", listing.Title, price),
			}, orderLink(*orderID)),
			newNotification(listing.SellerID, message{
				kind:  enums.NotificationTypeAuctionSold,
				title: "Your item sold",
				body:  fmt.Sprintf("%q sold for %s.", listing.Title, price),
			}, orderLink(*orderID)),
		)
	} else {
		rows = append(rows, newNotification(listing.SellerID, message{
			kind:  enums.NotificationTypeAuctionUnsold,
			title: "Auction ended without a sale",
			body:  fmt.Sprintf("%q ended without a winning bid.", listing.Title),
		}, listingLink(listing.ID)))
	}
	if err := s.repo.Create(ctx, rows...); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create auction notifications")
	}
	return nil
}

func (s *service) DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	deleted, err := s.repo.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete read notifications")
	}
	return deleted, nil
}

func newNotification(userID uuid.UUID, msg message, link *string) *models.Notification {
	return &models.Notification{
		UserID:  userID,
		Type:    msg.kind,
		Title:   msg.title,
		Message: msg.body,
		Link:    link,
	}
}
