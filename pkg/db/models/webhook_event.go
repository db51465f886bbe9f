package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// WebhookEvent is the idempotency ledger row for one provider event id.
type WebhookEvent struct {
	EventID    string               `gorm:"column:event_id;type:text;primaryKey"`
	EventType  string               `gorm:"column:event_type;type:text;not null"`
	OrderID    *uuid.UUID           `gorm:"column:order_id;type:uuid"`
	Outcome    enums.WebhookOutcome `gorm:"column:outcome;type:text;not null"`
	ReceivedAt time.Time            `gorm:"column:received_at;not null"`
}

func (WebhookEvent) TableName() string { return "webhook_events" }
