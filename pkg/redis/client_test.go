package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/bidhouse-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	for i := 1; i <= 2; i++ {
		allowed, count, err := client.FixedWindowAllow(ctx, "user-1:bid", 2, time.Minute)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !allowed || count != int64(i) {
			t.Fatalf("call %d: allowed=%v count=%d", i, allowed, count)
		}
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected a single expire for the window, got %d", len(mock.expireCalls))
	}
	if mock.expireCalls[0].key != "bh:rate_limit:user-1:bid" || mock.expireCalls[0].ttl != time.Minute {
		t.Fatalf("unexpected expire call %+v", mock.expireCalls[0])
	}

	allowed, count, err := client.FixedWindowAllow(ctx, "user-1:bid", 2, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed || count != 3 {
		t.Fatalf("expected limit reached, allowed=%v count=%d", allowed, count)
	}
}

func TestSetNXAndGet(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	ok, err := client.SetNX(ctx, "k", "v1", time.Minute)
	if err != nil || !ok {
		t.Fatalf("first SetNX should win, ok=%v err=%v", ok, err)
	}
	ok, err = client.SetNX(ctx, "k", "v2", time.Minute)
	if err != nil || ok {
		t.Fatalf("second SetNX should lose, ok=%v err=%v", ok, err)
	}
	got, err := client.Get(ctx, "k")
	if err != nil || got != "v1" {
		t.Fatalf("unexpected get %q %v", got, err)
	}
	if err := client.Del(ctx, "k"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := client.Get(ctx, "k"); !errors.Is(err, Nil) {
		t.Fatalf("expected Nil after delete, got %v", err)
	}
}

func TestUninitializedClient(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); err == nil {
		t.Fatal("expected error from empty client")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on empty client should be a no-op: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	if got := client.IdempotencyKey("bids", "abc"); got != "bh:idempotency:bids:abc" {
		t.Fatalf("unexpected idempotency key %s", got)
	}
	if got := client.RateLimitKey(" scope "); got != "bh:rate_limit:scope" {
		t.Fatalf("unexpected rate limit key %s", got)
	}
	if got := client.LockKey("auction-close"); got != "bh:lock:auction-close" {
		t.Fatalf("unexpected lock key %s", got)
	}
	if got := client.IdempotencyKey("", "abc"); got != "bh:idempotency:abc" {
		t.Fatalf("empty parts should be skipped, got %s", got)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatal("expected url to be required")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6379/2", PoolSize: 7, DialTimeout: time.Second})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.DB != 2 || opts.PoolSize != 7 || opts.DialTimeout != time.Second {
		t.Fatalf("unexpected options %+v", opts)
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{data: map[string]string{}, incr: map[string]int64{}}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(_ context.Context, key string, value any, _ time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(_ context.Context, key string) *redis.StringCmd {
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(_ context.Context, key string, value any, _ time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(_ context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: ttl})
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
