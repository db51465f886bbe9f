package registry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/pkg/config"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox/payloads"
)

func TestEventRegistryResolveOrderStatusChanged(t *testing.T) {
	reg := newTestEventRegistry(t)

	orderID := uuid.New()
	event := models.OutboxEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload: mustEnvelope(t, payloads.OrderStatusChangedEvent{
			OrderID:        orderID,
			PreviousStatus: enums.OrderStatusPending,
			Status:         enums.OrderStatusPaid,
			Trigger:        "payment_succeeded",
		}),
	}

	resolved, err := reg.Resolve(event)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "orders-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
	payload, ok := resolved.Payload.(*payloads.OrderStatusChangedEvent)
	if !ok {
		t.Fatalf("unexpected payload type %T", resolved.Payload)
	}
	if payload.OrderID != orderID || payload.Status != enums.OrderStatusPaid {
		t.Fatalf("payload mismatch %+v", payload)
	}
	if resolved.Envelope.EventID == "" {
		t.Fatalf("envelope missing event id")
	}
}

func TestEventRegistryRoutesAuctionClosedToListingsTopic(t *testing.T) {
	reg := newTestEventRegistry(t)

	listingID := uuid.New()
	resolved, err := reg.Resolve(models.OutboxEvent{
		EventType:     enums.EventAuctionClosed,
		AggregateType: enums.AggregateListing,
		AggregateID:   listingID,
		Payload:       mustEnvelope(t, payloads.AuctionClosedEvent{ListingID: listingID, Status: enums.ListingStatusUnsold}),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Descriptor.Topic != "listings-topic" {
		t.Fatalf("unexpected topic %q", resolved.Descriptor.Topic)
	}
}

func TestEventRegistryResolveNonRetryable(t *testing.T) {
	reg := newTestEventRegistry(t)

	cases := map[string]models.OutboxEvent{
		"unknown type": {
			EventType:     enums.OutboxEventType("listing_reposted"),
			AggregateType: enums.AggregateListing,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, map[string]string{"a": "b"}),
		},
		"aggregate mismatch": {
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateListing,
			AggregateID:   uuid.New(),
			Payload:       mustEnvelope(t, payloads.OrderStatusChangedEvent{}),
		},
		"missing aggregate": {
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			Payload:       mustEnvelope(t, payloads.OrderStatusChangedEvent{}),
		},
		"bad envelope": {
			EventType:     enums.EventOrderStatusChanged,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{"data":`),
		},
	}

	for name, event := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := reg.Resolve(event)
			var nonRetry NonRetryableError
			if !errors.As(err, &nonRetry) {
				t.Fatalf("expected non-retryable error, got %v", err)
			}
		})
	}
}

func TestNewEventRegistryRequiresTopics(t *testing.T) {
	if _, err := NewEventRegistry(config.PubSubConfig{ListingsTopic: "l"}); err == nil {
		t.Fatal("expected error for missing orders topic")
	}
	if _, err := NewEventRegistry(config.PubSubConfig{OrdersTopic: "o"}); err == nil {
		t.Fatal("expected error for missing listings topic")
	}
}

func newTestEventRegistry(t *testing.T) *EventRegistry {
	t.Helper()
	reg, err := NewEventRegistry(config.PubSubConfig{
		OrdersTopic:   "orders-topic",
		ListingsTopic: "listings-topic",
	})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	if len(reg.Topics()) != 2 {
		t.Fatalf("expected 2 topics, got %v", reg.Topics())
	}
	return reg
}

func mustEnvelope(t *testing.T, data any) json.RawMessage {
	t.Helper()
	raw, err := json.Marshal(data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	envelope, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	return envelope
}
