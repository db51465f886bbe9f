// Package ratelimit holds the injected limiters guarding user-facing write endpoints.
package ratelimit

import (
	"context"
	"strings"
	"time"
)

// Policy is a fixed-window budget: Limit hits per Window.
type Policy struct {
	Limit  int
	Window time.Duration
}

// Decision reports the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int64
	Limit      int64
	RetryAfter time.Duration
}

// Limiter counts hits per key under a policy.
type Limiter interface {
	Allow(ctx context.Context, key string, policy Policy) (Decision, error)
}

// Key builds the user+action key every limiter is addressed by.
func Key(userID, action string) string {
	return strings.TrimSpace(userID) + ":" + strings.TrimSpace(action)
}
