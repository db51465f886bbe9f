package payments

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/bidhouse-backend/internal/orders"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/bidhouse-backend/pkg/errors"
	pkgstripe "github.com/angelmondragon/bidhouse-backend/pkg/stripe"
)

type objectKind int

const (
	objectPaymentIntent objectKind = iota + 1
	objectCharge
	objectRefund
	objectDispute
)

const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventPaymentCanceled  = "payment_intent.canceled"
	EventDisputeCreated   = "charge.dispute.created"
	EventDisputeUpdated   = "charge.dispute.updated"
	EventDisputeClosed    = "charge.dispute.closed"
	EventChargeRefunded   = "charge.refunded"
	EventRefundUpdated    = "charge.refund.updated"
)

var eventObjects = map[string]objectKind{
	EventPaymentSucceeded: objectPaymentIntent,
	EventPaymentFailed:    objectPaymentIntent,
	EventPaymentCanceled:  objectPaymentIntent,
	EventDisputeCreated:   objectDispute,
	EventDisputeUpdated:   objectDispute,
	EventDisputeClosed:    objectDispute,
	EventChargeRefunded:   objectCharge,
	EventRefundUpdated:    objectRefund,
}

// Handled reports whether the event type has a mapping.
func Handled(eventType string) bool {
	_, ok := eventObjects[eventType]
	return ok
}

type paymentIntentObject struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountReceived int64             `json:"amount_received"`
	Currency       string            `json:"currency"`
	Metadata       map[string]string `json:"metadata"`
}

type chargeObject struct {
	ID             string            `json:"id"`
	Amount         int64             `json:"amount"`
	AmountRefunded int64             `json:"amount_refunded"`
	Refunded       bool              `json:"refunded"`
	Currency       string            `json:"currency"`
	PaymentIntent  string            `json:"payment_intent"`
	Metadata       map[string]string `json:"metadata"`
}

type refundObject struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

type disputeObject struct {
	ID            string            `json:"id"`
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Status        string            `json:"status"`
	Reason        string            `json:"reason"`
	PaymentIntent string            `json:"payment_intent"`
	Metadata      map[string]string `json:"metadata"`
}

// plan is what one event asks of the order and dispute tables.
type plan struct {
	eventID    string
	eventType  string
	occurredAt time.Time

	orderID         *uuid.UUID
	paymentIntentID string

	trigger orders.Trigger

	dispute *disputeChange

	record *recordChange
}

type disputeChange struct {
	providerID  string
	reason      string
	amountCents int64
	status      enums.DisputeStatus
}

type recordChange struct {
	kind        enums.PaymentRecordKind
	amountCents int64
	currency    string
	objectID    string
}

// hasWork is false for mapped events that carry nothing to apply, like a pending refund.
func (p plan) hasWork() bool {
	return p.trigger != "" || p.dispute != nil || p.record != nil
}

// recordOnly is a money movement that leaves order and dispute state alone, like a partial refund.
func (p plan) recordOnly() bool {
	return p.trigger == "" && p.dispute == nil && p.record != nil
}

// planFor decodes data.object for a mapped event type. Unmapped types return a plan with no work.
func planFor(event *stripe.Event) (plan, error) {
	p := plan{eventID: event.ID, eventType: string(event.Type), occurredAt: time.Unix(event.Created, 0).UTC()}
	kind, ok := eventObjects[p.eventType]
	if !ok {
		return p, nil
	}
	if event.Data == nil || len(event.Data.Raw) == 0 {
		return p, pkgerrors.New(pkgerrors.CodeValidation, "event data.object missing")
	}
	raw := event.Data.Raw
	if err := validateObject(kind, raw); err != nil {
		return p, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "event object failed validation").
			WithDetails(map[string]any{"reason": RejectMalformed})
	}

	switch kind {
	case objectPaymentIntent:
		var obj paymentIntentObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return p, decodeError(err)
		}
		p.paymentIntentID = obj.ID
		p.orderID = orderIDFrom(obj.Metadata)
		switch p.eventType {
		case EventPaymentSucceeded:
			p.trigger = orders.TriggerPaymentSucceeded
			amount := obj.AmountReceived
			if amount == 0 {
				amount = obj.Amount
			}
			p.record = &recordChange{kind: enums.PaymentRecordCapture, amountCents: amount, currency: obj.Currency, objectID: obj.ID}
		case EventPaymentFailed:
			p.trigger = orders.TriggerPaymentFailed
			p.record = &recordChange{kind: enums.PaymentRecordFailure, amountCents: obj.Amount, currency: obj.Currency, objectID: obj.ID}
		case EventPaymentCanceled:
			p.trigger = orders.TriggerPaymentCanceled
		}

	case objectCharge:
		var obj chargeObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return p, decodeError(err)
		}
		p.paymentIntentID = obj.PaymentIntent
		p.orderID = orderIDFrom(obj.Metadata)
		p.record = &recordChange{kind: enums.PaymentRecordRefund, amountCents: obj.AmountRefunded, currency: obj.Currency, objectID: obj.ID}
		// a partial refund is recorded but the order stays where it is
		if obj.Refunded || (obj.Amount > 0 && obj.AmountRefunded >= obj.Amount) {
			p.trigger = orders.TriggerRefunded
		}

	case objectRefund:
		var obj refundObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return p, decodeError(err)
		}
		p.paymentIntentID = obj.PaymentIntent
		p.orderID = orderIDFrom(obj.Metadata)
		if obj.Status == string(stripe.RefundStatusSucceeded) {
			p.trigger = orders.TriggerRefunded
			p.record = &recordChange{kind: enums.PaymentRecordRefund, amountCents: obj.Amount, currency: obj.Currency, objectID: obj.ID}
		}

	case objectDispute:
		var obj disputeObject
		if err := json.Unmarshal(raw, &obj); err != nil {
			return p, decodeError(err)
		}
		p.paymentIntentID = obj.PaymentIntent
		p.orderID = orderIDFrom(obj.Metadata)
		change := &disputeChange{providerID: obj.ID, reason: obj.Reason, amountCents: obj.Amount}
		switch p.eventType {
		case EventDisputeCreated:
			change.status = enums.DisputeStatusCreated
			p.trigger = orders.TriggerDisputeOpened
		case EventDisputeUpdated:
			change.status = enums.DisputeStatusCreated
			if strings.HasSuffix(obj.Status, "under_review") {
				change.status = enums.DisputeStatusUnderReview
			}
		case EventDisputeClosed:
			if obj.Status == string(stripe.DisputeStatusLost) {
				change.status = enums.DisputeStatusClosedLost
				p.trigger = orders.TriggerDisputeLost
				p.record = &recordChange{kind: enums.PaymentRecordDisputeLoss, amountCents: obj.Amount, currency: obj.Currency, objectID: obj.ID}
			} else {
				change.status = enums.DisputeStatusClosedWon
				p.trigger = orders.TriggerDisputeWon
			}
		}
		p.dispute = change
	}
	return p, nil
}

func orderIDFrom(metadata map[string]string) *uuid.UUID {
	raw := strings.TrimSpace(metadata[pkgstripe.MetadataOrderID])
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil
	}
	return &id
}

func decodeError(err error) error {
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode event object").
		WithDetails(map[string]any{"reason": RejectMalformed})
}
