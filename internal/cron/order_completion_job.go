package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
)

const (
	defaultDisputeWindow       = 72 * time.Hour
	defaultCompletionBatchSize = 100
)

type orderCompleter interface {
	CompleteDelivered(ctx context.Context, cutoff time.Time, limit int) (int, error)
}

type OrderCompletionJobParams struct {
	Logger        *logger.Logger
	Orders        orderCompleter
	DisputeWindow time.Duration
	BatchSize     int
}

// NewOrderCompletionJob completes delivered orders once the dispute window has passed.
func NewOrderCompletionJob(params OrderCompletionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders service required")
	}
	window := params.DisputeWindow
	if window <= 0 {
		window = defaultDisputeWindow
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCompletionBatchSize
	}
	return &orderCompletionJob{
		logg:   params.Logger,
		orders: params.Orders,
		window: window,
		batch:  batch,
		now:    time.Now,
	}, nil
}

type orderCompletionJob struct {
	logg   *logger.Logger
	orders orderCompleter
	window time.Duration
	batch  int
	now    func() time.Time
}

func (j *orderCompletionJob) Name() string { return "order-completion" }

func (j *orderCompletionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.window)
	completed, err := j.orders.CompleteDelivered(ctx, cutoff, j.batch)
	if err != nil {
		return fmt.Errorf("order completion: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":    cutoff,
		"completed": completed,
	})
	j.logg.Info(logCtx, "order completion complete")
	return nil
}
