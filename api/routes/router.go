package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/bidhouse-backend/api/controllers"
	ordercontrollers "github.com/angelmondragon/bidhouse-backend/api/controllers/orders"
	webhookcontrollers "github.com/angelmondragon/bidhouse-backend/api/controllers/webhooks"
	"github.com/angelmondragon/bidhouse-backend/api/middleware"
	"github.com/angelmondragon/bidhouse-backend/internal/bids"
	"github.com/angelmondragon/bidhouse-backend/internal/notifications"
	"github.com/angelmondragon/bidhouse-backend/internal/orders"
	"github.com/angelmondragon/bidhouse-backend/internal/webhooks/payments"
	"github.com/angelmondragon/bidhouse-backend/pkg/config"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/ratelimit"
)

const (
	actionBid         = "bid"
	actionOrderAction = "order_action"
	actionCheckout    = "checkout"
)

type idempotencyStore interface {
	Get(context.Context, string) (string, error)
	Set(context.Context, string, any, time.Duration) error
	SetNX(context.Context, string, any, time.Duration) (bool, error)
	Del(context.Context, ...string) error
	IdempotencyKey(scope, id string) string
}

type webhookGate interface {
	Verify(payload []byte, signature string) (*stripe.Event, error)
}

type webhookHandler interface {
	Handle(ctx context.Context, event *stripe.Event) (*payments.Result, error)
}

type webhookRejections interface {
	IncRejected(reason string)
}

// Dependencies is everything the router hands to controllers and middleware.
type Dependencies struct {
	DB          controllers.Pinger
	Redis       controllers.Pinger
	Idempotency idempotencyStore
	Limiter     ratelimit.Limiter
	Visitors    *ratelimit.Visitors
	Gatherer    prometheus.Gatherer

	Bids          bids.Service
	Orders        orders.Service
	Payments      ordercontrollers.PaymentLister
	Notifications notifications.Service

	WebhookGate       webhookGate
	WebhookService    webhookHandler
	WebhookRejections webhookRejections
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.App.AllowedOrigins()),
	)

	bidPolicy := ratelimit.Policy{Limit: cfg.RateLimit.BidLimit, Window: cfg.RateLimit.Window}
	actionPolicy := ratelimit.Policy{Limit: cfg.RateLimit.ActionLimit, Window: cfg.RateLimit.Window}
	idempotent := middleware.Idempotency(deps.Idempotency, logg)
	ipLimit := middleware.IPRateLimit(deps.Visitors, logg)

	paymentWebhook := webhookcontrollers.PaymentWebhook(deps.WebhookGate, deps.WebhookService, deps.WebhookRejections, cfg.Webhook.MaxBodyBytes, logg)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, deps.DB, deps.Redis))
	})

	gatherer := deps.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// provider deliveries are never rate limited; retries and replays are handled by the ledger
	r.Post("/webhooks/payment", paymentWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/webhooks/stripe", paymentWebhook)

		r.Group(func(r chi.Router) {
			r.Use(ipLimit)
			r.Use(middleware.Auth(cfg.JWT, logg))

			r.With(
				middleware.ActionRateLimit(deps.Limiter, actionBid, bidPolicy, logg),
				idempotent,
			).Post("/listings/{listingId}/bids", controllers.PlaceBid(deps.Bids, logg))

			r.Route("/orders/{orderId}", func(r chi.Router) {
				r.Get("/", ordercontrollers.Detail(deps.Orders, deps.Payments, logg))
				r.With(
					middleware.ActionRateLimit(deps.Limiter, actionOrderAction, actionPolicy, logg),
					idempotent,
				).Post("/actions", ordercontrollers.Action(deps.Orders, logg))
				r.With(
					middleware.ActionRateLimit(deps.Limiter, actionCheckout, actionPolicy, logg),
					idempotent,
				).Post("/checkout", ordercontrollers.Checkout(deps.Orders, logg))
			})

			r.Route("/notifications", func(r chi.Router) {
				r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
				r.With(idempotent).Post("/{notificationId}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
				r.With(idempotent).Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
			})
		})
	})

	return r
}
