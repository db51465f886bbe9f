package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox/payloads"
	pkgstripe "github.com/angelmondragon/bidhouse-backend/pkg/stripe"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StatusNotifier receives orders after a committed status change.
type StatusNotifier interface {
	NotifyOrderStatus(ctx context.Context, order models.Order) error
}

// Service is the only writer of order status outside of migrations.
type Service interface {
	ApplyTrigger(ctx context.Context, tx *gorm.DB, input TriggerInput) (*TransitionResult, error)
	CreatePending(ctx context.Context, tx *gorm.DB, input CreatePendingInput) (*models.Order, error)
	PerformAction(ctx context.Context, input ActionInput) (*models.Order, error)
	Get(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error)
	Checkout(ctx context.Context, orderID, userID uuid.UUID) (*CheckoutResult, error)
	CompleteDelivered(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Outbox   outbox.Emitter
	Notifier StatusNotifier
	Payments pkgstripe.PaymentIntentClient
	Logger   *logger.Logger
	Clock    func() time.Time
}

type service struct {
	repo     Repository
	tx       txRunner
	outbox   outbox.Emitter
	notifier StatusNotifier
	payments pkgstripe.PaymentIntentClient
	logg     *logger.Logger
	now      func() time.Time
}

// TriggerInput names the order, the trigger and who fired it.
type TriggerInput struct {
	OrderID uuid.UUID
	Trigger Trigger
	Actor   outbox.ActorRef
}

// TransitionResult reports what a trigger did. Applied is false for a guarded no-op.
type TransitionResult struct {
	Order    *models.Order
	Previous enums.OrderStatus
	Applied  bool
}

type CreatePendingInput struct {
	ListingID   uuid.UUID
	BuyerID     uuid.UUID
	SellerID    uuid.UUID
	AmountCents int64
	Currency    string
}

type ActionInput struct {
	OrderID uuid.UUID
	UserID  uuid.UUID
	Action  enums.OrderAction
}

// CheckoutResult carries what the client needs to confirm payment.
type CheckoutResult struct {
	OrderID         uuid.UUID `json:"order_id"`
	PaymentIntentID string    `json:"payment_intent_id"`
	ClientSecret    string    `json:"client_secret"`
	AmountCents     int64     `json:"amount_cents"`
	Currency        string    `json:"currency"`
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders repository required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	if params.Outbox == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox emitter required")
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
		repo:     params.Repo,
		tx:       params.Tx,
		outbox:   params.Outbox,
		notifier: params.Notifier,
		payments: params.Payments,
		logg:     logg,
		now:      now,
	}, nil
}

// ApplyTrigger runs one guarded transition inside tx and queues the status event with it.
func (s *service) ApplyTrigger(ctx context.Context, tx *gorm.DB, input TriggerInput) (*TransitionResult, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "transaction required")
	}
	target, ok := Target(input.Trigger)
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown trigger %q", input.Trigger)
	}
	repo := s.repo.WithTx(tx)

	order, err := repo.FindByID(ctx, input.OrderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	previous := order.Status

	applied, err := repo.Transition(ctx, order.ID, Sources(input.Trigger), target, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}

	current, err := repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if !applied {
		return &TransitionResult{Order: current, Previous: current.Status, Applied: false}, nil
	}

	actor := input.Actor
	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   current.ID,
		Actor:         &actor,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:        current.ID,
			ListingID:      current.ListingID,
			BuyerID:        current.BuyerID,
			SellerID:       current.SellerID,
			PreviousStatus: previous,
			Status:         current.Status,
			Trigger:        string(input.Trigger),
			AmountCents:    current.AmountCents,
			Currency:       current.Currency,
		},
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order status event")
	}
	return &TransitionResult{Order: current, Previous: previous, Applied: true}, nil
}

func (s *service) CreatePending(ctx context.Context, tx *gorm.DB, input CreatePendingInput) (*models.Order, error) {
	if input.AmountCents <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order amount must be positive")
	}
	if input.BuyerID == input.SellerID {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "buyer and seller must differ")
	}
	order := &models.Order{
		ListingID:   input.ListingID,
		BuyerID:     input.BuyerID,
		SellerID:    input.SellerID,
		AmountCents: input.AmountCents,
		Currency:    input.Currency,
		Status:      enums.OrderStatusPending,
	}
	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID, userID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	// non-parties cannot learn the order exists
	if !order.IsParty(userID) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func actionTrigger(action enums.OrderAction) (Trigger, bool) {
	switch action {
	case enums.OrderActionMarkShipped:
		return TriggerMarkShipped, true
	case enums.OrderActionConfirmDelivery:
		return TriggerConfirmDelivery, true
	case enums.OrderActionCancel:
		return TriggerCancel, true
	default:
		return "", false
	}
}

func roleOf(order *models.Order, userID uuid.UUID) Actor {
	if order.SellerID == userID {
		return ActorSeller
	}
	return ActorBuyer
}

// PerformAction applies a buyer or seller action after checking role and current status.
func (s *service) PerformAction(ctx context.Context, input ActionInput) (*models.Order, error) {
	if !input.Action.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "unknown action %q", input.Action)
	}
	order, err := s.Get(ctx, input.OrderID, input.UserID)
	if err != nil {
		return nil, err
	}
	role := roleOf(order, input.UserID)

	if input.Action == enums.OrderActionMarkReady {
		return s.markReady(ctx, order, role)
	}

	trigger, _ := actionTrigger(input.Action)
	if !AllowedFor(trigger, role) {
		return nil, forbidden(input.Action, fmt.Sprintf("only the %s can %s this order", allowedRole(trigger), humanAction(input.Action)))
	}
	if _, ok := Next(order.Status, trigger); !ok {
		return nil, forbidden(input.Action, fmt.Sprintf("cannot %s an order that is %s", humanAction(input.Action), order.Status))
	}

	var result *TransitionResult
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var applyErr error
		result, applyErr = s.ApplyTrigger(ctx, tx, TriggerInput{
			OrderID: order.ID,
			Trigger: trigger,
			Actor:   outbox.ActorRef{UserID: &input.UserID, Kind: string(role)},
		})
		return applyErr
	})
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order changed to %s before the action was applied", result.Order.Status).
			WithDetails(map[string]any{"status": result.Order.Status})
	}

	s.notify(ctx, *result.Order)
	return result.Order, nil
}

func (s *service) markReady(ctx context.Context, order *models.Order, role Actor) (*models.Order, error) {
	if role != ActorSeller {
		return nil, forbidden(enums.OrderActionMarkReady, "only the seller can mark this order ready")
	}
	if order.Status != enums.OrderStatusPaid {
		return nil, forbidden(enums.OrderActionMarkReady, fmt.Sprintf("cannot mark an order ready that is %s", order.Status))
	}
	ok, err := s.repo.MarkReady(ctx, order.ID, s.now())
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order ready")
	}
	current, err := s.repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	if !ok {
		return nil, pkgerrors.Newf(pkgerrors.CodeStateConflict, "order changed to %s before the action was applied", current.Status).
			WithDetails(map[string]any{"status": current.Status})
	}
	return current, nil
}

// Checkout creates the PaymentIntent for a pending order, or returns the one already attached.
func (s *service) Checkout(ctx context.Context, orderID, userID uuid.UUID) (*CheckoutResult, error) {
	if s.payments == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "payments are not configured")
	}
	order, err := s.Get(ctx, orderID, userID)
	if err != nil {
		return nil, err
	}
	if order.BuyerID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the buyer can pay for this order")
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.Newf(pkgerrors.CodeForbidden, "cannot pay for an order that is %s", order.Status)
	}

	if order.PaymentIntentID != nil && *order.PaymentIntentID != "" {
		return s.existingIntent(ctx, order, *order.PaymentIntentID)
	}

	intent, err := s.payments.Create(ctx, pkgstripe.CreateIntentInput{
		OrderID:        order.ID.String(),
		AmountCents:    order.AmountCents,
		Currency:       order.Currency,
		IdempotencyKey: "order-checkout-" + order.ID.String(),
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	attached, err := s.repo.SetPaymentIntent(ctx, order.ID, intent.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment intent")
	}
	if !attached {
		current, err := s.repo.FindByID(ctx, order.ID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if current.PaymentIntentID == nil || *current.PaymentIntentID != intent.ID {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order checkout changed concurrently")
		}
	}
	return checkoutResult(order, intent), nil
}

func (s *service) existingIntent(ctx context.Context, order *models.Order, id string) (*CheckoutResult, error) {
	intent, err := s.payments.Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payment intent")
	}
	return checkoutResult(order, intent), nil
}

func checkoutResult(order *models.Order, intent *pkgstripe.Intent) *CheckoutResult {
	return &CheckoutResult{
		OrderID:         order.ID,
		PaymentIntentID: intent.ID,
		ClientSecret:    intent.ClientSecret,
		AmountCents:     order.AmountCents,
		Currency:        order.Currency,
	}
}

// CompleteDelivered closes out delivered orders whose dispute window ended before cutoff.
func (s *service) CompleteDelivered(ctx context.Context, cutoff time.Time, limit int) (int, error) {
	due, err := s.repo.ListDeliveredBefore(ctx, cutoff, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list delivered orders")
	}

	completed := 0
	var errs error
	for _, order := range due {
		var result *TransitionResult
		err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			var applyErr error
			result, applyErr = s.ApplyTrigger(ctx, tx, TriggerInput{
				OrderID: order.ID,
				Trigger: TriggerComplete,
				Actor:   outbox.ActorRef{Kind: string(ActorSystem)},
			})
			return applyErr
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("complete order %s: %w", order.ID, err))
			continue
		}
		if result.Applied {
			completed++
			s.notify(ctx, *result.Order)
		}
	}
	return completed, errs
}

func (s *service) notify(ctx context.Context, order models.Order) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyOrderStatus(ctx, order); err != nil {
		s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "order notification failed", err)
	}
}

func forbidden(action enums.OrderAction, reason string) error {
	return pkgerrors.New(pkgerrors.CodeForbidden, reason).
		WithDetails(map[string]any{"action": action, "reason": reason})
}

func allowedRole(trigger Trigger) Actor {
	r := rules[trigger]
	if len(r.actors) == 0 {
		return ActorSystem
	}
	return r.actors[0]
}

func humanAction(action enums.OrderAction) string {
	switch action {
	case enums.OrderActionMarkShipped:
		return "ship"
	case enums.OrderActionConfirmDelivery:
		return "confirm delivery of"
	case enums.OrderActionCancel:
		return "cancel"
	case enums.OrderActionMarkReady:
		return "mark ready"
	default:
		return string(action)
	}
}
