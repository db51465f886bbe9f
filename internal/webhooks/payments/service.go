package payments

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/internal/disputes"
	"github.com/angelmondragon/bidhouse-backend/internal/orders"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Ledger     Ledger
	Orders     orders.Service
	OrderRepo  orders.Repository
	Disputes   disputes.Service
	Tx         txRunner
	Dispatcher *Dispatcher
	Logger     *logger.Logger
	Clock      func() time.Time
}

// Service reconciles verified provider events into order, dispute and ledger state.
type Service struct {
	ledger     Ledger
	orders     orders.Service
	orderRepo  orders.Repository
	disputes   disputes.Service
	tx         txRunner
	dispatcher *Dispatcher
	logg       *logger.Logger
	now        func() time.Time
}

// Result describes how one delivery was handled.
type Result struct {
	EventID    string
	EventType  string
	Duplicate  bool
	Outcome    enums.WebhookOutcome
	OrderID    *uuid.UUID
	Transition *orders.TransitionResult
	// Recorded is set when the event only adds a payment record to Order.
	Recorded *models.Order
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "webhook ledger required")
	}
	if params.Orders == nil || params.OrderRepo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "orders service and repository required")
	}
	if params.Disputes == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "disputes service required")
	}
	if params.Tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "transaction runner required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	dispatcher := params.Dispatcher
	if dispatcher == nil {
		dispatcher = NewDispatcher(DispatcherParams{Logger: logg})
	}
	now := params.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		ledger:     params.Ledger,
		orders:     params.Orders,
		orderRepo:  params.OrderRepo,
		disputes:   params.Disputes,
		tx:         params.Tx,
		dispatcher: dispatcher,
		logg:       logg,
		now:        now,
	}, nil
}

// Handle claims the event and applies it in one transaction, then runs side effects after commit.
// A returned error means nothing was committed and the provider should retry.
func (s *Service) Handle(ctx context.Context, event *stripe.Event) (*Result, error) {
	if event == nil || event.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id required")
	}
	p, err := planFor(event)
	if err != nil {
		return nil, err
	}
	ctx = s.logg.WithFields(ctx, map[string]any{
		"event_id":   p.eventID,
		"event_type": p.eventType,
	})

	var result *Result
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		result = &Result{EventID: p.eventID, EventType: p.eventType}
		ledger := s.ledger.WithTx(tx)

		claimed, err := ledger.Claim(ctx, p.eventID, p.eventType, s.now())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "claim webhook event")
		}
		if !claimed {
			result.Duplicate = true
			return nil
		}

		if err := s.apply(ctx, tx, p, result); err != nil {
			return err
		}
		if err := ledger.Resolve(ctx, p.eventID, result.OrderID, result.Outcome); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook outcome")
		}
		return nil
	})
	if err != nil {
		s.logg.Error(ctx, "webhook processing failed", err)
		return nil, err
	}

	if result.Duplicate {
		s.logg.Info(ctx, "webhook event already processed")
	}
	s.dispatcher.Dispatch(ctx, p, result)
	return result, nil
}

func (s *Service) apply(ctx context.Context, tx *gorm.DB, p plan, result *Result) error {
	result.Outcome = enums.WebhookOutcomeIgnored
	if !Handled(p.eventType) {
		s.logg.Debug(ctx, "webhook event type not handled")
		return nil
	}

	order, err := s.resolveOrder(ctx, tx, p)
	if err != nil {
		return err
	}
	if order == nil {
		s.logg.Warn(ctx, "webhook event references no known order")
		return nil
	}
	result.OrderID = &order.ID
	result.Outcome = enums.WebhookOutcomeNoop
	if !p.hasWork() {
		return nil
	}
	if p.recordOnly() {
		result.Outcome = enums.WebhookOutcomeApplied
		result.Recorded = order
		return nil
	}

	if p.dispute != nil {
		applied, err := s.disputes.Apply(ctx, tx, disputes.ApplyInput{
			OrderID:           order.ID,
			ProviderDisputeID: p.dispute.providerID,
			Reason:            p.dispute.reason,
			AmountCents:       p.dispute.amountCents,
			Status:            p.dispute.status,
			OccurredAt:        p.occurredAt,
		})
		if err != nil {
			return err
		}
		if applied.Changed {
			result.Outcome = enums.WebhookOutcomeApplied
		}
	}

	if p.trigger != "" {
		transition, err := s.orders.ApplyTrigger(ctx, tx, orders.TriggerInput{
			OrderID: order.ID,
			Trigger: p.trigger,
			Actor:   outbox.ActorRef{Kind: string(orders.ActorProvider)},
		})
		if err != nil {
			return err
		}
		result.Transition = transition
		if transition.Applied {
			result.Outcome = enums.WebhookOutcomeApplied
		} else {
			s.logg.Info(s.logg.WithOrderID(ctx, order.ID.String()), "webhook transition skipped for current status "+string(transition.Order.Status))
		}
	}
	return nil
}

// resolveOrder prefers metadata.order_id and falls back to the payment intent id.
func (s *Service) resolveOrder(ctx context.Context, tx *gorm.DB, p plan) (*models.Order, error) {
	repo := s.orderRepo.WithTx(tx)
	if p.orderID != nil {
		order, err := repo.FindByID(ctx, *p.orderID)
		if err == nil {
			return order, nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
	}
	if p.paymentIntentID == "" {
		return nil, nil
	}
	order, err := repo.FindByPaymentIntent(ctx, p.paymentIntentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
	}
	return order, nil
}
