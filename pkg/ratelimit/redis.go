package ratelimit

import (
	"context"
	"errors"
	"time"
)

// fixedWindowStore is satisfied by pkg/redis.Client.
type fixedWindowStore interface {
	FixedWindowAllow(ctx context.Context, scope string, limit int64, window time.Duration) (bool, int64, error)
}

// Redis shares fixed-window counters across instances through INCR + EXPIRE.
type Redis struct {
	store fixedWindowStore
}

func NewRedis(store fixedWindowStore) (*Redis, error) {
	if store == nil {
		return nil, errors.New("redis store required for rate limiter")
	}
	return &Redis{store: store}, nil
}

func (r *Redis) Allow(ctx context.Context, key string, policy Policy) (Decision, error) {
	if policy.Limit <= 0 || policy.Window <= 0 {
		return Decision{Allowed: true}, nil
	}
	allowed, count, err := r.store.FixedWindowAllow(ctx, key, int64(policy.Limit), policy.Window)
	if err != nil {
		return Decision{}, err
	}
	decision := Decision{Allowed: allowed, Count: count, Limit: int64(policy.Limit)}
	if !allowed {
		decision.RetryAfter = policy.Window
	}
	return decision, nil
}
