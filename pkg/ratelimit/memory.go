package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1024

type window struct {
	start time.Time
	span  time.Duration
	count int64
}

// Memory is a process-local fixed-window counter. Counts are lost on restart and are
// not shared between instances; use the Redis limiter when running more than one.
type Memory struct {
	mu      sync.Mutex
	now     func() time.Time
	windows map[string]*window
	calls   int
}

// NewMemory constructs an empty in-process limiter.
func NewMemory() *Memory {
	return &Memory{now: time.Now, windows: map[string]*window{}}
}

// WithClock swaps the time source. Tests only.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) Allow(_ context.Context, key string, policy Policy) (Decision, error) {
	if policy.Limit <= 0 || policy.Window <= 0 {
		return Decision{Allowed: true}, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	start := now.Truncate(policy.Window)

	w, ok := m.windows[key]
	if !ok || !w.start.Equal(start) {
		w = &window{start: start, span: policy.Window}
		m.windows[key] = w
	}
	w.count++

	m.calls++
	if m.calls%sweepEvery == 0 {
		m.sweep(now)
	}

	decision := Decision{Count: w.count, Limit: int64(policy.Limit), Allowed: w.count <= int64(policy.Limit)}
	if !decision.Allowed {
		decision.RetryAfter = start.Add(policy.Window).Sub(now)
	}
	return decision, nil
}

// sweep drops windows that have already closed. Caller holds mu.
func (m *Memory) sweep(now time.Time) {
	for key, w := range m.windows {
		if !now.Before(w.start.Add(w.span)) {
			delete(m.windows, key)
		}
	}
}

// Len reports how many keys are currently tracked.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}
