package cron

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

type memoryRedis struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryRedis() *memoryRedis {
	return &memoryRedis{values: map[string]string{}}
}

func (m *memoryRedis) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[key]; ok {
		return false, nil
	}
	m.values[key] = value.(string)
	return true, nil
}

func (m *memoryRedis) Get(_ context.Context, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	if !ok {
		return "", redis.Nil
	}
	return v, nil
}

func (m *memoryRedis) Del(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.values, k)
	}
	return nil
}

func TestRedisLockIsExclusive(t *testing.T) {
	store := newMemoryRedis()
	first, err := NewRedisLock(store, "lock:auction-close", time.Minute)
	if err != nil {
		t.Fatalf("NewRedisLock: %v", err)
	}
	second, _ := NewRedisLock(store, "lock:auction-close", time.Minute)
	ctx := context.Background()

	ok, err := first.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || ok {
		t.Fatalf("second acquire should fail: ok=%v err=%v", ok, err)
	}

	// a non-owner release leaves the lock in place
	if err := second.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if _, err := store.Get(ctx, "lock:auction-close"); err != nil {
		t.Fatalf("lock should still be held: %v", err)
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	ok, err = second.Acquire(ctx)
	if err != nil || !ok {
		t.Fatalf("acquire after release: ok=%v err=%v", ok, err)
	}
}

func TestNewRedisLockValidates(t *testing.T) {
	if _, err := NewRedisLock(nil, "k", time.Minute); err == nil {
		t.Fatal("expected error without client")
	}
	if _, err := NewRedisLock(newMemoryRedis(), "", time.Minute); err == nil {
		t.Fatal("expected error without key")
	}
}
