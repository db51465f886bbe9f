package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/metrics"
)

const defaultInterval = time.Hour

// LockFactory builds the lock guarding one job. ttl is the job's interval.
type LockFactory func(job string, ttl time.Duration) (Lock, error)

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

type scheduledJob struct {
	job      Job
	interval time.Duration
	lock     Lock
}

// Service executes registered cron jobs, each on its own cadence and under its own lock.
type Service struct {
	logg    *logger.Logger
	jobs    []scheduledJob
	metrics *metrics.CronJobMetrics
}

// NewService builds a cron service.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	fallback := params.Interval
	if fallback <= 0 {
		fallback = defaultInterval
	}

	jobs := make([]scheduledJob, 0, len(registry.Entries()))
	for _, entry := range registry.Entries() {
		interval := entry.Interval
		if interval <= 0 {
			interval = fallback
		}
		lock, err := params.Locks(entry.Job.Name(), interval)
		if err != nil {
			return nil, fmt.Errorf("lock for %s: %w", entry.Job.Name(), err)
		}
		jobs = append(jobs, scheduledJob{job: entry.Job, interval: interval, lock: lock})
	}
	return &Service{
		logg:    params.Logger,
		jobs:    jobs,
		metrics: params.Metrics,
	}, nil
}

// Run starts one loop per job and blocks until the context is canceled.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var wg sync.WaitGroup
	for _, sj := range s.jobs {
		wg.Add(1)
		go func(sj scheduledJob) {
			defer wg.Done()
			s.loop(ctx, sj)
		}(sj)
	}
	wg.Wait()
	s.logg.Info(ctx, "cron service context canceled")
	return ctx.Err()
}

// RunOnce runs every job a single time, honoring locks.
func (s *Service) RunOnce(ctx context.Context) error {
	return s.runCycle(ctx)
}

func (s *Service) loop(ctx context.Context, sj scheduledJob) {
	if err := s.runScheduled(ctx, sj); err != nil {
		s.logg.Error(ctx, "scheduled run failed", err)
	}
	ticker := time.NewTicker(sj.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.runScheduled(ctx, sj); err != nil {
				s.logg.Error(ctx, "scheduled run failed", err)
			}
		}
	}
}

func (s *Service) runCycle(ctx context.Context) error {
	s.logg.Info(ctx, "scheduled run starting")
	for _, sj := range s.jobs {
		if err := s.runScheduled(ctx, sj); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "scheduled run complete")
	return nil
}

func (s *Service) runScheduled(ctx context.Context, sj scheduledJob) error {
	jobCtx := s.logg.WithField(ctx, "job", sj.job.Name())
	locked, err := sj.lock.Acquire(jobCtx)
	if err != nil {
		return fmt.Errorf("lock acquire %s: %w", sj.job.Name(), err)
	}
	if !locked {
		s.logg.Info(jobCtx, "another cron instance holds the job lock; skipping")
		return nil
	}
	defer func() {
		if relErr := sj.lock.Release(jobCtx); relErr != nil {
			s.logg.Error(jobCtx, "failed to release cron lock", relErr)
		}
	}()
	s.runJob(jobCtx, sj.job)
	return nil
}

func (s *Service) runJob(ctx context.Context, job Job) {
	jobCtx := s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err := job.Run(jobCtx)
	duration := time.Since(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
}
