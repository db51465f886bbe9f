package orders

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/api/middleware"
	"github.com/angelmondragon/bidhouse-backend/api/responses"
	"github.com/angelmondragon/bidhouse-backend/api/validators"
	internalorders "github.com/angelmondragon/bidhouse-backend/internal/orders"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
)

// PaymentLister loads the payment records attached to an order.
type PaymentLister interface {
	ListForOrder(ctx context.Context, orderID uuid.UUID) ([]models.PaymentRecord, error)
}

type orderResponse struct {
	ID              uuid.UUID         `json:"id"`
	ListingID       uuid.UUID         `json:"listing_id"`
	BuyerID         uuid.UUID         `json:"buyer_id"`
	SellerID        uuid.UUID         `json:"seller_id"`
	Role            string            `json:"role"`
	AmountCents     int64             `json:"amount_cents"`
	Currency        string            `json:"currency"`
	Status          enums.OrderStatus `json:"status"`
	PaymentIntentID *string           `json:"payment_intent_id,omitempty"`
	ReadyAt         *time.Time        `json:"ready_at,omitempty"`
	PaidAt          *time.Time        `json:"paid_at,omitempty"`
	ShippedAt       *time.Time        `json:"shipped_at,omitempty"`
	DeliveredAt     *time.Time        `json:"delivered_at,omitempty"`
	RefundedAt      *time.Time        `json:"refunded_at,omitempty"`
	CancelledAt     *time.Time        `json:"cancelled_at,omitempty"`
	CompletedAt     *time.Time        `json:"completed_at,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
	Payments        []paymentResponse `json:"payments,omitempty"`
}

type paymentResponse struct {
	Kind        enums.PaymentRecordKind `json:"kind"`
	AmountCents int64                   `json:"amount_cents"`
	Currency    string                  `json:"currency"`
	RecordedAt  time.Time               `json:"recorded_at"`
}

type actionRequest struct {
	Action string `json:"action" validate:"required,oneof=mark_ready mark_shipped confirm_delivery cancel"`
}

func toOrderResponse(order *models.Order, userID uuid.UUID) orderResponse {
	role := string(internalorders.ActorBuyer)
	if order.SellerID == userID {
		role = string(internalorders.ActorSeller)
	}
	return orderResponse{
		ID:              order.ID,
		ListingID:       order.ListingID,
		BuyerID:         order.BuyerID,
		SellerID:        order.SellerID,
		Role:            role,
		AmountCents:     order.AmountCents,
		Currency:        order.Currency,
		Status:          order.Status,
		PaymentIntentID: order.PaymentIntentID,
		ReadyAt:         order.ReadyAt,
		PaidAt:          order.PaidAt,
		ShippedAt:       order.ShippedAt,
		DeliveredAt:     order.DeliveredAt,
		RefundedAt:      order.RefundedAt,
		CancelledAt:     order.CancelledAt,
		CompletedAt:     order.CompletedAt,
		CreatedAt:       order.CreatedAt,
		UpdatedAt:       order.UpdatedAt,
	}
}

// Detail returns an order to either of its parties along with its payment history.
func Detail(svc internalorders.Service, payments PaymentLister, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, orderID, err := parseCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.Get(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		resp := toOrderResponse(order, userID)
		if payments != nil {
			records, err := payments.ListForOrder(r.Context(), order.ID)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			for _, rec := range records {
				resp.Payments = append(resp.Payments, paymentResponse{
					Kind:        rec.Kind,
					AmountCents: rec.AmountCents,
					Currency:    rec.Currency,
					RecordedAt:  rec.CreatedAt,
				})
			}
		}
		responses.WriteSuccess(w, resp)
	}
}

// Action runs a buyer or seller action against the order.
func Action(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, orderID, err := parseCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req actionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		order, err := svc.PerformAction(r.Context(), internalorders.ActionInput{
			OrderID: orderID,
			UserID:  userID,
			Action:  enums.OrderAction(strings.TrimSpace(req.Action)),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toOrderResponse(order, userID))
	}
}

// Checkout opens or reuses the payment intent for a pending order.
func Checkout(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "orders service unavailable"))
			return
		}

		userID, orderID, err := parseCaller(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Checkout(r.Context(), orderID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseCaller(r *http.Request) (uuid.UUID, uuid.UUID, error) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	orderID, err := validators.ParseUUIDParam(r, "orderId")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	return userID, orderID, nil
}
