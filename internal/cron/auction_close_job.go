package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/bidhouse-backend/internal/listings"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
)

const defaultCloseBatchSize = 100

type auctionCloser interface {
	CloseDue(ctx context.Context, now time.Time, limit int) (listings.CloseSummary, error)
}

type AuctionCloseJobParams struct {
	Logger    *logger.Logger
	Closer    auctionCloser
	BatchSize int
}

// NewAuctionCloseJob settles listings whose ends_at has passed.
func NewAuctionCloseJob(params AuctionCloseJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Closer == nil {
		return nil, fmt.Errorf("listings service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultCloseBatchSize
	}
	return &auctionCloseJob{
		logg:  params.Logger,
		close: params.Closer,
		batch: batch,
		now:   time.Now,
	}, nil
}

type auctionCloseJob struct {
	logg  *logger.Logger
	close auctionCloser
	batch int
	now   func() time.Time
}

func (j *auctionCloseJob) Name() string { return "auction-close" }

func (j *auctionCloseJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	summary, err := j.close.CloseDue(ctx, now, j.batch)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"sold":   summary.Sold,
		"unsold": summary.Unsold,
		"batch":  j.batch,
	})
	if err != nil {
		return fmt.Errorf("auction close: %w", err)
	}
	j.logg.Info(logCtx, "auction close complete")
	return nil
}
