package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
)

const notificationRetention = 30 * 24 * time.Hour

type NotificationCleanupJobParams struct {
	Logger    *logger.Logger
	Purger    notificationPurger
	Retention time.Duration
}

type notificationPurger interface {
	DeleteReadBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Purger == nil {
		return nil, fmt.Errorf("notifications service required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = notificationRetention
	}
	return &notificationCleanupJob{
		logg:      params.Logger,
		purger:    params.Purger,
		retention: retention,
		now:       time.Now,
	}, nil
}

type notificationCleanupJob struct {
	logg      *logger.Logger
	purger    notificationPurger
	retention time.Duration
	now       func() time.Time
}

func (j *notificationCleanupJob) Name() string { return "notification-cleanup" }

// Run deletes read notifications older than the retention. Unread rows are never removed.
func (j *notificationCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.purger.DeleteReadBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("notification cleanup: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"rows_deleted": deleted,
	})
	j.logg.Info(logCtx, "notification cleanup complete")
	return nil
}
