package cron

import (
	"context"
	"time"
)

// Job represents a scheduled task that runs inside the cron worker.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Scheduled pairs a job with its cadence.
type Scheduled struct {
	Job      Job
	Interval time.Duration
}

// Registry tracks registered cron jobs.
type Registry struct {
	entries []Scheduled
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a job that runs every interval. A non-positive interval uses the service default.
func (r *Registry) Register(job Job, interval time.Duration) {
	if job == nil {
		return
	}
	r.entries = append(r.entries, Scheduled{Job: job, Interval: interval})
}

// Jobs returns the registered jobs in the order they were added.
func (r *Registry) Jobs() []Job {
	jobs := make([]Job, 0, len(r.entries))
	for _, entry := range r.entries {
		jobs = append(jobs, entry.Job)
	}
	return jobs
}

// Entries returns a copy of the schedule.
func (r *Registry) Entries() []Scheduled {
	entries := make([]Scheduled, len(r.entries))
	copy(entries, r.entries)
	return entries
}
