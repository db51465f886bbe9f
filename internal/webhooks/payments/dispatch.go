package payments

import (
	"context"

	"github.com/angelmondragon/bidhouse-backend/internal/ledger"
	"github.com/angelmondragon/bidhouse-backend/internal/orders"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/metrics"
)

const outcomeDuplicate = "duplicate"

// Side effect labels for failure metrics.
const (
	EffectPaymentRecord = "payment_record"
	EffectNotification  = "notification"
)

type DispatcherParams struct {
	Records  ledger.Service
	Notifier orders.StatusNotifier
	Metrics  *metrics.WebhookMetrics
	Logger   *logger.Logger
}

// Dispatcher runs best-effort work after a webhook transaction commits. Failures are logged and counted.
type Dispatcher struct {
	records  ledger.Service
	notifier orders.StatusNotifier
	metrics  *metrics.WebhookMetrics
	logg     *logger.Logger
}

func NewDispatcher(params DispatcherParams) *Dispatcher {
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Dispatcher{
		records:  params.Records,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     logg,
	}
}

func (d *Dispatcher) Dispatch(ctx context.Context, p plan, result *Result) {
	if result.Duplicate {
		d.metrics.ObserveEvent(p.eventType, outcomeDuplicate)
		return
	}
	d.metrics.ObserveEvent(p.eventType, string(result.Outcome))

	if result.Recorded != nil {
		d.record(d.logg.WithOrderID(ctx, result.Recorded.ID.String()), p, *result.Recorded)
		return
	}
	if result.Transition == nil || result.Transition.Order == nil {
		return
	}
	order := *result.Transition.Order
	ctx = d.logg.WithOrderID(ctx, order.ID.String())

	if !result.Transition.Applied {
		if p.trigger == orders.TriggerPaymentSucceeded && capturedTooLate(order.Status) {
			d.metrics.IncUnmatchedCapture(string(order.Status))
			d.logg.Warn(d.logg.WithFields(ctx, map[string]any{
				"order_status":      order.Status,
				"payment_intent_id": p.paymentIntentID,
			}), "payment captured for order not awaiting payment")
		}
		return
	}

	d.record(ctx, p, order)

	if d.notifier != nil {
		if err := d.notifier.NotifyOrderStatus(ctx, order); err != nil {
			d.metrics.IncSideEffectFailure(EffectNotification)
			d.logg.Error(ctx, "order status notification failed", err)
		}
	}
}

func (d *Dispatcher) record(ctx context.Context, p plan, order models.Order) {
	if p.record == nil || d.records == nil {
		return
	}
	currency := p.record.currency
	if currency == "" {
		currency = order.Currency
	}
	_, created, err := d.records.Record(ctx, ledger.RecordInput{
		OrderID:          order.ID,
		Kind:             p.record.kind,
		AmountCents:      p.record.amountCents,
		Currency:         currency,
		ProviderEventID:  p.eventID,
		ProviderObjectID: p.record.objectID,
	})
	switch {
	case err != nil:
		d.metrics.IncSideEffectFailure(EffectPaymentRecord)
		d.logg.Error(ctx, "payment record insert failed", err)
	case !created:
		d.logg.Debug(ctx, "payment record already present")
	}
}

// capturedTooLate is true for statuses where a successful payment no longer has an order to settle.
func capturedTooLate(status enums.OrderStatus) bool {
	return status == enums.OrderStatusPaymentFailed || status == enums.OrderStatusCancelled
}
