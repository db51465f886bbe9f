package payments

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/internal/orders"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
)

func TestPaymentSucceededAppliesOnce(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPending, "pi_success")
	payload := eventPayload(t, newEventID(), EventPaymentSucceeded, time.Now(), intentPayload("pi_success", order.ID, 25000))

	first := f.handle(t, payload)
	assert.False(t, first.Duplicate)
	assert.Equal(t, enums.WebhookOutcomeApplied, first.Outcome)
	assert.Equal(t, enums.OrderStatusPaid, f.reload(t, order.ID).Status)
	assert.NotNil(t, f.reload(t, order.ID).PaidAt)

	second := f.handle(t, payload)
	assert.True(t, second.Duplicate)

	assert.Equal(t, int64(1), f.count(t, &models.PaymentRecord{}, "order_id = ? AND kind = ?", order.ID, enums.PaymentRecordCapture))
	assert.Equal(t, int64(1), f.count(t, &models.OutboxEvent{}, ""))
	assert.Equal(t, 1, f.notifier.count())

	var entry models.WebhookEvent
	require.NoError(t, f.conn.First(&entry, "event_id = ?", first.EventID).Error)
	assert.Equal(t, enums.WebhookOutcomeApplied, entry.Outcome)
	require.NotNil(t, entry.OrderID)
	assert.Equal(t, order.ID, *entry.OrderID)
}

func TestConcurrentDuplicateDeliveriesApplyOnce(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPending, "pi_concurrent")
	payload := eventPayload(t, newEventID(), EventPaymentSucceeded, time.Now(), intentPayload("pi_concurrent", order.ID, 25000))

	event := decodeEvent(t, payload)

	const deliveries = 6
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		fresh   int
		dupes   int
		failure error
	)
	for i := 0; i < deliveries; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.Handle(context.Background(), event)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failure = err
				return
			}
			if result.Duplicate {
				dupes++
			} else {
				fresh++
			}
		}()
	}
	wg.Wait()

	require.NoError(t, failure)
	assert.Equal(t, 1, fresh)
	assert.Equal(t, deliveries-1, dupes)
	assert.Equal(t, int64(1), f.count(t, &models.PaymentRecord{}, "order_id = ?", order.ID))
	assert.Equal(t, int64(1), f.count(t, &models.WebhookEvent{}, ""))
}

func TestLateFailureDoesNotRegressPaidOrder(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPending, "pi_order")

	f.handle(t, eventPayload(t, newEventID(), EventPaymentSucceeded, time.Now(), intentPayload("pi_order", order.ID, 25000)))
	late := f.handle(t, eventPayload(t, newEventID(), EventPaymentFailed, time.Now().Add(-time.Minute), intentPayload("pi_order", order.ID, 25000)))

	assert.Equal(t, enums.WebhookOutcomeNoop, late.Outcome)
	require.NotNil(t, late.Transition)
	assert.False(t, late.Transition.Applied)
	assert.Equal(t, enums.OrderStatusPaid, f.reload(t, order.ID).Status)
	assert.Equal(t, int64(0), f.count(t, &models.PaymentRecord{}, "kind = ?", enums.PaymentRecordFailure))
	assert.Equal(t, 1, f.notifier.count())
}

func TestRefundUpdatedAppliesOnceByPaymentIntent(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusShipped, "pi_refund")
	payload := eventPayload(t, newEventID(), EventRefundUpdated, time.Now(), refundPayload("re_1", "pi_refund", "succeeded", 25000))

	first := f.handle(t, payload)
	assert.Equal(t, enums.WebhookOutcomeApplied, first.Outcome)
	second := f.handle(t, payload)
	assert.True(t, second.Duplicate)

	stored := f.reload(t, order.ID)
	assert.Equal(t, enums.OrderStatusRefunded, stored.Status)
	assert.NotNil(t, stored.RefundedAt)
	assert.Equal(t, int64(1), f.count(t, &models.PaymentRecord{}, "order_id = ? AND kind = ?", order.ID, enums.PaymentRecordRefund))
}

func TestPendingRefundLeavesOrderAlone(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPaid, "pi_pending_refund")

	result := f.handle(t, eventPayload(t, newEventID(), EventRefundUpdated, time.Now(), refundPayload("re_2", "pi_pending_refund", "pending", 500)))

	assert.Equal(t, enums.WebhookOutcomeNoop, result.Outcome)
	assert.Equal(t, enums.OrderStatusPaid, f.reload(t, order.ID).Status)
	assert.Equal(t, int64(0), f.count(t, &models.PaymentRecord{}, ""))
}

func TestUnknownTypeAndOrphanEventsAreIgnored(t *testing.T) {
	f := newFixture(t)

	unknown := f.handle(t, eventPayload(t, newEventID(), "customer.created", time.Now(), map[string]any{"id": "cus_1"}))
	assert.Equal(t, enums.WebhookOutcomeIgnored, unknown.Outcome)

	orphan := f.handle(t, eventPayload(t, newEventID(), EventPaymentSucceeded, time.Now(), intentPayload("pi_nobody", uuid.New(), 100)))
	assert.Equal(t, enums.WebhookOutcomeIgnored, orphan.Outcome)
	assert.Nil(t, orphan.OrderID)

	assert.Equal(t, int64(2), f.count(t, &models.WebhookEvent{}, "outcome = ?", enums.WebhookOutcomeIgnored))
	assert.Equal(t, 0, f.notifier.count())

	again := f.handle(t, eventPayload(t, unknown.EventID, "customer.created", time.Now(), map[string]any{"id": "cus_1"}))
	assert.True(t, again.Duplicate)
}

func TestDisputeLifecycle(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusDelivered, "pi_disputed")

	opened := f.handle(t, eventPayload(t, newEventID(), EventDisputeCreated, time.Now(), disputePayload("dp_1", "pi_disputed", "needs_response", 25000)))
	assert.Equal(t, enums.WebhookOutcomeApplied, opened.Outcome)
	assert.Equal(t, enums.OrderStatusDisputed, f.reload(t, order.ID).Status)

	review := f.handle(t, eventPayload(t, newEventID(), EventDisputeUpdated, time.Now(), disputePayload("dp_1", "pi_disputed", "under_review", 25000)))
	assert.Equal(t, enums.WebhookOutcomeApplied, review.Outcome)
	assert.Nil(t, review.Transition)

	closed := f.handle(t, eventPayload(t, newEventID(), EventDisputeClosed, time.Now(), disputePayload("dp_1", "pi_disputed", "lost", 25000)))
	assert.Equal(t, enums.WebhookOutcomeApplied, closed.Outcome)
	assert.Equal(t, enums.OrderStatusRefunded, f.reload(t, order.ID).Status)

	late := f.handle(t, eventPayload(t, newEventID(), EventDisputeUpdated, time.Now(), disputePayload("dp_1", "pi_disputed", "under_review", 25000)))
	assert.Equal(t, enums.WebhookOutcomeNoop, late.Outcome)

	var dispute models.Dispute
	require.NoError(t, f.conn.First(&dispute, "provider_dispute_id = ?", "dp_1").Error)
	assert.Equal(t, enums.DisputeStatusClosedLost, dispute.Status)
	assert.NotNil(t, dispute.ClosedAt)
	assert.Equal(t, int64(1), f.count(t, &models.PaymentRecord{}, "kind = ?", enums.PaymentRecordDisputeLoss))
}

func TestDisputeWonCompletesOrder(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusShipped, "pi_won")

	f.handle(t, eventPayload(t, newEventID(), EventDisputeCreated, time.Now(), disputePayload("dp_won", "pi_won", "needs_response", 25000)))
	f.handle(t, eventPayload(t, newEventID(), EventDisputeClosed, time.Now(), disputePayload("dp_won", "pi_won", "won", 25000)))

	assert.Equal(t, enums.OrderStatusCompleted, f.reload(t, order.ID).Status)
	assert.Equal(t, int64(0), f.count(t, &models.PaymentRecord{}, ""))
}

type failingOrders struct {
	orders.Service
}

func (failingOrders) ApplyTrigger(context.Context, *gorm.DB, orders.TriggerInput) (*orders.TransitionResult, error) {
	return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, errors.New("connection reset"), "update order status")
}

func TestProcessingFailureReleasesClaim(t *testing.T) {
	f := newFixtureWithOrders(t, failingOrders{})
	order := f.seedOrder(t, enums.OrderStatusPending, "pi_retry")
	payload := eventPayload(t, newEventID(), EventPaymentSucceeded, time.Now(), intentPayload("pi_retry", order.ID, 25000))

	_, err := f.svc.Handle(context.Background(), decodeEvent(t, payload))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Equal(t, int64(0), f.count(t, &models.WebhookEvent{}, ""))
	assert.Equal(t, enums.OrderStatusPending, f.reload(t, order.ID).Status)
}

func TestMalformedObjectIsRejected(t *testing.T) {
	f := newFixture(t)
	payload := eventPayload(t, newEventID(), EventPaymentSucceeded, time.Now(), map[string]any{"id": "pi_x", "currency": "usd"})

	_, err := f.svc.Handle(context.Background(), decodeEvent(t, payload))
	require.Error(t, err)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, RejectMalformed, RejectionReason(err))
	assert.Equal(t, int64(0), f.count(t, &models.WebhookEvent{}, ""))
}

func chargePayload(chargeID, intentID string, amount, refunded int64) map[string]any {
	return map[string]any{
		"id":              chargeID,
		"object":          "charge",
		"amount":          amount,
		"amount_refunded": refunded,
		"refunded":        refunded >= amount,
		"currency":        "usd",
		"payment_intent":  intentID,
		"metadata":        map[string]any{},
	}
}

func TestPartialChargeRefundRecordsWithoutRefundingOrder(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusDelivered, "pi_partial")

	partial := f.handle(t, eventPayload(t, newEventID(), EventChargeRefunded, time.Now(), chargePayload("ch_partial", "pi_partial", 25000, 5000)))
	assert.Equal(t, enums.WebhookOutcomeApplied, partial.Outcome)
	assert.Nil(t, partial.Transition)
	assert.Equal(t, enums.OrderStatusDelivered, f.reload(t, order.ID).Status)
	assert.Equal(t, int64(1), f.count(t, &models.PaymentRecord{}, "order_id = ? AND kind = ? AND amount_cents = ?", order.ID, enums.PaymentRecordRefund, 5000))
	assert.Equal(t, 0, f.notifier.count())

	full := f.handle(t, eventPayload(t, newEventID(), EventChargeRefunded, time.Now(), chargePayload("ch_partial", "pi_partial", 25000, 25000)))
	assert.Equal(t, enums.WebhookOutcomeApplied, full.Outcome)
	require.NotNil(t, full.Transition)
	assert.True(t, full.Transition.Applied)
	assert.Equal(t, enums.OrderStatusRefunded, f.reload(t, order.ID).Status)
	assert.Equal(t, int64(2), f.count(t, &models.PaymentRecord{}, "order_id = ? AND kind = ?", order.ID, enums.PaymentRecordRefund))
}

func TestSuccessAfterFailureIsFlaggedForReconciliation(t *testing.T) {
	f := newFixture(t)
	order := f.seedOrder(t, enums.OrderStatusPending, "pi_flip")

	f.handle(t, eventPayload(t, newEventID(), EventPaymentFailed, time.Now().Add(-time.Minute), intentPayload("pi_flip", order.ID, 25000)))
	late := f.handle(t, eventPayload(t, newEventID(), EventPaymentSucceeded, time.Now(), intentPayload("pi_flip", order.ID, 25000)))

	assert.Equal(t, enums.WebhookOutcomeNoop, late.Outcome)
	assert.Equal(t, enums.OrderStatusPaymentFailed, f.reload(t, order.ID).Status)

	families, err := f.registry.Gather()
	require.NoError(t, err)
	var flagged float64
	for _, mf := range families {
		if mf.GetName() != "bidhouse_webhook_unmatched_captures_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, label := range m.GetLabel() {
				if label.GetName() == "status" && label.GetValue() == string(enums.OrderStatusPaymentFailed) {
					flagged += m.GetCounter().GetValue()
				}
			}
		}
	}
	assert.Equal(t, float64(1), flagged)
}
