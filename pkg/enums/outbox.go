package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder   OutboxAggregateType = "order"
	AggregateListing OutboxAggregateType = "listing"
)

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventOrderStatusChanged OutboxEventType = "order_status_changed"
	EventAuctionClosed      OutboxEventType = "auction_closed"
)

var validOutboxEventTypes = []OutboxEventType{
	EventOrderStatusChanged,
	EventAuctionClosed,
}

func (e OutboxEventType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known outbox event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into an OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid outbox event type %q", value)
}
