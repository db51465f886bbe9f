package payments

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
)

// Ledger records which provider events were processed.
type Ledger interface {
	WithTx(tx *gorm.DB) Ledger
	Claim(ctx context.Context, eventID, eventType string, at time.Time) (bool, error)
	Resolve(ctx context.Context, eventID string, orderID *uuid.UUID, outcome enums.WebhookOutcome) error
	Find(ctx context.Context, eventID string) (*models.WebhookEvent, error)
}

type webhookLedger struct {
	db *gorm.DB
}

func NewLedger(db *gorm.DB) Ledger {
	return &webhookLedger{db: db}
}

func (l *webhookLedger) WithTx(tx *gorm.DB) Ledger {
	if tx == nil {
		return l
	}
	return &webhookLedger{db: tx}
}

// Claim inserts the event row. False means another delivery already claimed it.
// A concurrent claim of the same id blocks on the primary key until the holder commits or rolls back.
func (l *webhookLedger) Claim(ctx context.Context, eventID, eventType string, at time.Time) (bool, error) {
	row := models.WebhookEvent{
		EventID:    eventID,
		EventType:  eventType,
		Outcome:    enums.WebhookOutcomeIgnored,
		ReceivedAt: at,
	}
	res := l.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "event_id"}}, DoNothing: true}).
		Create(&row)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (l *webhookLedger) Resolve(ctx context.Context, eventID string, orderID *uuid.UUID, outcome enums.WebhookOutcome) error {
	return l.db.WithContext(ctx).
		Model(&models.WebhookEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"order_id": orderID,
			"outcome":  outcome,
		}).Error
}

func (l *webhookLedger) Find(ctx context.Context, eventID string) (*models.WebhookEvent, error) {
	var row models.WebhookEvent
	if err := l.db.WithContext(ctx).Where("event_id = ?", eventID).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}
