package routes

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/bidhouse-backend/internal/notifications"
	pkgAuth "github.com/angelmondragon/bidhouse-backend/pkg/auth"
	"github.com/angelmondragon/bidhouse-backend/pkg/config"
	"github.com/angelmondragon/bidhouse-backend/pkg/enums"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/metrics"
	"github.com/angelmondragon/bidhouse-backend/pkg/ratelimit"
)

type stubPinger struct {
	err error
}

func (p stubPinger) Ping(context.Context) error {
	return p.err
}

type stubNotificationsService struct {
	notifications.Service
	listed []uuid.UUID
}

func (s *stubNotificationsService) List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error) {
	s.listed = append(s.listed, params.UserID)
	return &notifications.ListResult{}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App:       config.AppConfig{Env: "test"},
		JWT:       config.JWTConfig{Secret: "router-secret", Issuer: "bidhouse-test"},
		Webhook:   config.WebhookConfig{MaxBodyBytes: 1 << 20},
		RateLimit: config.RateLimitConfig{Window: time.Minute, BidLimit: 5, ActionLimit: 5},
	}
}

func newTestRouter(t *testing.T, deps Dependencies) http.Handler {
	t.Helper()
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return NewRouter(testConfig(), logg, deps)
}

func bearer(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(testConfig().JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{
		UserID: userID,
		Role:   enums.UserRoleMember,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router := newTestRouter(t, Dependencies{DB: stubPinger{}, Redis: stubPinger{}})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
		if resp.Header().Get("X-Bidhouse-Env") != "test" {
			t.Fatalf("%s: missing env header", path)
		}
	}
}

func TestReadyFailsWhenRedisIsDown(t *testing.T) {
	router := newTestRouter(t, Dependencies{DB: stubPinger{}, Redis: stubPinger{err: errors.New("refused")}})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), `"redis":"down"`) {
		t.Fatalf("unexpected body %s", resp.Body.String())
	}
}

func TestMetricsRouteServesRegistry(t *testing.T) {
	registry := prometheus.NewRegistry()
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	webhookMetrics.IncRejected("stale")

	router := newTestRouter(t, Dependencies{Gatherer: registry})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "bidhouse_webhook_rejections_total") {
		t.Fatalf("metrics output missing webhook counter:\n%s", resp.Body.String())
	}
}

func TestWebhookMountedTwiceWithoutAuth(t *testing.T) {
	router := newTestRouter(t, Dependencies{})
	for _, path := range []string{"/webhooks/payment", "/api/v1/webhooks/stripe"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`)))
		// no gate is wired, so the controller answers 500 rather than auth answering 401
		if resp.Code != http.StatusInternalServerError {
			t.Fatalf("%s: expected 500 got %d", path, resp.Code)
		}
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router := newTestRouter(t, Dependencies{Notifications: &stubNotificationsService{}})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAPIRoutesAuthenticatedCaller(t *testing.T) {
	svc := &stubNotificationsService{}
	router := newTestRouter(t, Dependencies{Notifications: svc})
	userID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
	req.Header.Set("Authorization", bearer(t, userID))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	if len(svc.listed) != 1 || svc.listed[0] != userID {
		t.Fatalf("expected list for %s, got %v", userID, svc.listed)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	router := newTestRouter(t, Dependencies{})
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/carts", nil))
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}

func TestWebhookIsNotIPRateLimited(t *testing.T) {
	router := newTestRouter(t, Dependencies{Visitors: ratelimit.NewVisitors(1, 2)})
	for _, path := range []string{"/webhooks/payment", "/api/v1/webhooks/stripe"} {
		for i := 0; i < 10; i++ {
			req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(`{}`))
			req.RemoteAddr = "203.0.113.7:443"
			resp := httptest.NewRecorder()
			router.ServeHTTP(resp, req)
			if resp.Code == http.StatusTooManyRequests {
				t.Fatalf("%s: delivery %d was rate limited", path, i)
			}
		}
	}
}

func TestAPIGroupIsIPRateLimited(t *testing.T) {
	router := newTestRouter(t, Dependencies{Visitors: ratelimit.NewVisitors(1, 2), Notifications: &stubNotificationsService{}})
	var limited bool
	for i := 0; i < 10; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/notifications", nil)
		req.RemoteAddr = "203.0.113.8:443"
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, req)
		if resp.Code == http.StatusTooManyRequests {
			limited = true
			break
		}
	}
	if !limited {
		t.Fatalf("expected the api group to enforce the per-ip limit")
	}
}
