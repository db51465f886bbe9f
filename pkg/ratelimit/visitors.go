package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Visitors keeps a token bucket per client address.
type Visitors struct {
	mu       sync.Mutex
	visitors map[string]*visitor
	rps      rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

// NewVisitors builds a per-address limiter allowing rps with the given burst.
func NewVisitors(rps float64, burst int) *Visitors {
	if burst <= 0 {
		burst = 1
	}
	return &Visitors{
		visitors: map[string]*visitor{},
		rps:      rate.Limit(rps),
		burst:    burst,
		idle:     3 * time.Minute,
		now:      time.Now,
	}
}

// Allow consumes one token for addr.
func (v *Visitors) Allow(addr string) bool {
	v.mu.Lock()
	entry, ok := v.visitors[addr]
	if !ok {
		entry = &visitor{limiter: rate.NewLimiter(v.rps, v.burst)}
		v.visitors[addr] = entry
	}
	entry.lastSeen = v.now()
	limiter := entry.limiter
	v.mu.Unlock()

	return limiter.Allow()
}

// Sweep forgets addresses idle for longer than the idle window.
func (v *Visitors) Sweep() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	removed := 0
	cutoff := v.now().Add(-v.idle)
	for addr, entry := range v.visitors {
		if entry.lastSeen.Before(cutoff) {
			delete(v.visitors, addr)
			removed++
		}
	}
	return removed
}

// Run sweeps idle visitors every interval until ctx ends.
func (v *Visitors) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			v.Sweep()
		}
	}
}
