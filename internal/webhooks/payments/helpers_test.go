package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/bidhouse-backend/internal/disputes"
	"github.com/angelmondragon/bidhouse-backend/internal/ledger"
	"github.com/angelmondragon/bidhouse-backend/internal/orders"
	dbpkg "github.com/angelmondragon/bidhouse-backend/pkg/db"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/dbtest"
	"github.com/angelmondragon/bidhouse-backend/pkg/db/models"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	"github.com/angelmondragon/bidhouse-backend/pkg/metrics"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox"
)

const testSecret = "whsec_test"

type countingNotifier struct {
	mu     sync.Mutex
	orders []models.Order
	err    error
}

func (n *countingNotifier) NotifyOrderStatus(_ context.Context, order models.Order) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.orders = append(n.orders, order)
	return n.err
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.orders)
}

type fixture struct {
	conn     *gorm.DB
	svc      *Service
	orders   orders.Service
	notifier *countingNotifier
	registry *prometheus.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithOrders(t, nil)
}

// newFixtureWithOrders swaps the orders service when override is set.
func newFixtureWithOrders(t *testing.T, override orders.Service) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	tx := dbpkg.FromGorm(conn)
	notifier := &countingNotifier{}
	registry := prometheus.NewRegistry()

	orderRepo := orders.NewRepository(conn)
	orderSvc, err := orders.NewService(orders.ServiceParams{
		Repo:   orderRepo,
		Tx:     tx,
		Outbox: outbox.NewService(outbox.NewRepository(conn), nil),
	})
	require.NoError(t, err)
	if override != nil {
		orderSvc = override
	}
	disputeSvc, err := disputes.NewService(disputes.NewRepository(conn))
	require.NoError(t, err)
	records, err := ledger.NewService(ledger.NewRepository(conn))
	require.NoError(t, err)

	svc, err := NewService(ServiceParams{
		Ledger:    NewLedger(conn),
		Orders:    orderSvc,
		OrderRepo: orderRepo,
		Disputes:  disputeSvc,
		Tx:        tx,
		Dispatcher: NewDispatcher(DispatcherParams{
			Records:  records,
			Notifier: notifier,
			Metrics:  metrics.NewWebhookMetrics(registry),
		}),
	})
	require.NoError(t, err)
	return &fixture{conn: conn, svc: svc, orders: orderSvc, notifier: notifier, registry: registry}
}

func (f *fixture) seedOrder(t *testing.T, status enums.OrderStatus, intentID string) *models.Order {
	t.Helper()
	order := &models.Order{
		ListingID:   uuid.New(),
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		AmountCents: 25000,
		Currency:    "usd",
		Status:      status,
	}
	if intentID != "" {
		order.PaymentIntentID = &intentID
	}
	require.NoError(t, f.conn.Create(order).Error)
	return order
}

func (f *fixture) reload(t *testing.T, id uuid.UUID) models.Order {
	t.Helper()
	var order models.Order
	require.NoError(t, f.conn.First(&order, "id = ?", id).Error)
	return order
}

func (f *fixture) count(t *testing.T, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := f.conn.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (f *fixture) handle(t *testing.T, payload []byte) *Result {
	t.Helper()
	result, err := f.svc.Handle(context.Background(), decodeEvent(t, payload))
	require.NoError(t, err)
	return result
}

func eventPayload(t *testing.T, id, eventType string, created time.Time, object map[string]any) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":          id,
		"object":      "event",
		"type":        eventType,
		"created":     created.Unix(),
		"livemode":    false,
		"api_version": "2024-06-20",
		"data":        map[string]any{"object": object},
	})
	require.NoError(t, err)
	return payload
}

func decodeEvent(t *testing.T, payload []byte) *stripe.Event {
	t.Helper()
	var event stripe.Event
	require.NoError(t, json.Unmarshal(payload, &event))
	return &event
}

func intentPayload(intentID string, orderID uuid.UUID, amount int64) map[string]any {
	return map[string]any{
		"id":              intentID,
		"object":          "payment_intent",
		"amount":          amount,
		"amount_received": amount,
		"currency":        "usd",
		"metadata":        map[string]any{"order_id": orderID.String()},
	}
}

func refundPayload(refundID, intentID, status string, amount int64) map[string]any {
	return map[string]any{
		"id":             refundID,
		"object":         "refund",
		"amount":         amount,
		"currency":       "usd",
		"status":         status,
		"charge":         "ch_1",
		"payment_intent": intentID,
		"metadata":       map[string]any{},
	}
}

func disputePayload(disputeID, intentID, status string, amount int64) map[string]any {
	return map[string]any{
		"id":             disputeID,
		"object":         "dispute",
		"amount":         amount,
		"currency":       "usd",
		"status":         status,
		"reason":         "fraudulent",
		"charge":         "ch_1",
		"payment_intent": intentID,
	}
}

func newEventID() string {
	return "evt_" + uuid.NewString()
}

func signatureHeader(payload []byte, secret string, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
