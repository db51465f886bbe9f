// Package dbtest opens throwaway sqlite databases carrying the production table layout.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var schema = []string{
	`CREATE TABLE listings (
  id TEXT PRIMARY KEY,
  seller_id TEXT NOT NULL,
  title TEXT NOT NULL,
  currency TEXT NOT NULL,
  starting_price_cents INTEGER NOT NULL,
  reserve_price_cents INTEGER NOT NULL DEFAULT 0,
  current_bid_cents INTEGER NOT NULL DEFAULT 0,
  high_bidder_id TEXT,
  high_bidder_max_cents INTEGER NOT NULL DEFAULT 0,
  bid_count INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL,
  ends_at DATETIME NOT NULL,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE bids (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL,
  bidder_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  max_cents INTEGER NOT NULL,
  is_proxy INTEGER NOT NULL DEFAULT 0,
  created_at DATETIME
);`,
	`CREATE TABLE orders (
  id TEXT PRIMARY KEY,
  listing_id TEXT NOT NULL UNIQUE,
  buyer_id TEXT NOT NULL,
  seller_id TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  status TEXT NOT NULL,
  payment_intent_id TEXT UNIQUE,
  ready_at DATETIME,
  paid_at DATETIME,
  shipped_at DATETIME,
  delivered_at DATETIME,
  refunded_at DATETIME,
  cancelled_at DATETIME,
  completed_at DATETIME,
  created_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE payment_records (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  kind TEXT NOT NULL,
  amount_cents INTEGER NOT NULL,
  currency TEXT NOT NULL,
  provider_event_id TEXT NOT NULL UNIQUE,
  provider_object_id TEXT,
  created_at DATETIME
);`,
	`CREATE TABLE webhook_events (
  event_id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  order_id TEXT,
  outcome TEXT NOT NULL,
  received_at DATETIME NOT NULL
);`,
	`CREATE TABLE disputes (
  id TEXT PRIMARY KEY,
  order_id TEXT NOT NULL,
  provider_dispute_id TEXT NOT NULL UNIQUE,
  reason TEXT,
  amount_cents INTEGER NOT NULL,
  status TEXT NOT NULL,
  opened_at DATETIME NOT NULL,
  closed_at DATETIME,
  updated_at DATETIME
);`,
	`CREATE TABLE notifications (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  type TEXT NOT NULL,
  title TEXT NOT NULL,
  message TEXT NOT NULL,
  link TEXT,
  read_at DATETIME,
  created_at DATETIME
);`,
	`CREATE TABLE outbox_events (
  id TEXT PRIMARY KEY,
  event_type TEXT NOT NULL,
  aggregate_type TEXT NOT NULL,
  aggregate_id TEXT NOT NULL,
  payload TEXT NOT NULL,
  attempt_count INTEGER NOT NULL DEFAULT 0,
  last_error TEXT,
  published_at DATETIME,
  created_at DATETIME
);`,
}

// Open returns an isolated in-memory database with every table created.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := "file:bidhouse_" + uuid.NewString() + "?mode=memory&cache=shared&_busy_timeout=5000"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	// one connection keeps transactions serialized under sqlite's table locks
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return conn
}
