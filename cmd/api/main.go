package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/angelmondragon/bidhouse-backend/api/routes"
	"github.com/angelmondragon/bidhouse-backend/internal/bids"
	"github.com/angelmondragon/bidhouse-backend/internal/disputes"
	"github.com/angelmondragon/bidhouse-backend/internal/ledger"
	"github.com/angelmondragon/bidhouse-backend/internal/listings"
	"github.com/angelmondragon/bidhouse-backend/internal/notifications"
	"github.com/angelmondragon/bidhouse-backend/internal/orders"
	"github.com/angelmondragon/bidhouse-backend/internal/webhooks/payments"
	"github.com/angelmondragon/bidhouse-backend/pkg/config"
	"github.com/angelmondragon/bidhouse-backend/pkg/db"
	"github.com/angelmondragon/bidhouse-backend/pkg/instance"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/metrics"
	"github.com/angelmondragon/bidhouse-backend/pkg/migrate"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox"
	"github.com/angelmondragon/bidhouse-backend/pkg/ratelimit"
	"github.com/angelmondragon/bidhouse-backend/pkg/redis"
	pkgstripe "github.com/angelmondragon/bidhouse-backend/pkg/stripe"
)

const (
	shutdownTimeout = 15 * time.Second
	sweepInterval   = time.Minute
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = "api"

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		logg.Error(ctx, "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	stripeClient, err := pkgstripe.NewClient(ctx, cfg.Stripe, logg)
	if err != nil {
		logg.Error(ctx, "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)
	bidMetrics := metrics.NewBidMetrics(registry)

	limiter, err := buildLimiter(cfg.RateLimit, redisClient)
	if err != nil {
		logg.Error(ctx, "failed to build rate limiter", err)
		os.Exit(1)
	}
	visitors := ratelimit.NewVisitors(cfg.RateLimit.IPRatePerSecond, cfg.RateLimit.IPBurst)
	go visitors.Run(ctx, sweepInterval)

	gormDB := dbClient.DB()
	outboxService := outbox.NewService(outbox.NewRepository(gormDB), logg)

	notificationService, err := notifications.NewService(notifications.NewRepository(gormDB))
	requireService(ctx, logg, "notifications", err)
	ledgerService, err := ledger.NewService(ledger.NewRepository(gormDB))
	requireService(ctx, logg, "ledger", err)
	disputeService, err := disputes.NewService(disputes.NewRepository(gormDB))
	requireService(ctx, logg, "disputes", err)

	orderRepo := orders.NewRepository(gormDB)
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orderRepo,
		Tx:       dbClient,
		Outbox:   outboxService,
		Notifier: notificationService,
		Payments: pkgstripe.NewPaymentIntentClient(stripeClient),
		Logger:   logg,
	})
	requireService(ctx, logg, "orders", err)

	bidService, err := bids.NewService(bids.ServiceParams{
		Listings: listings.NewRepository(gormDB),
		Bids:     bids.NewRepository(gormDB),
		Tx:       dbClient,
		Notifier: notificationService,
		Metrics:  bidMetrics,
		Logger:   logg,
	})
	requireService(ctx, logg, "bids", err)

	gate, err := payments.NewGate(payments.GateParams{
		SigningSecret:   cfg.Stripe.WebhookSecret,
		StaleTolerance:  cfg.Webhook.StaleTolerance,
		FutureTolerance: cfg.Webhook.FutureTolerance,
	})
	requireService(ctx, logg, "webhook gate", err)

	webhookService, err := payments.NewService(payments.ServiceParams{
		Ledger:    payments.NewLedger(gormDB),
		Orders:    orderService,
		OrderRepo: orderRepo,
		Disputes:  disputeService,
		Tx:        dbClient,
		Dispatcher: payments.NewDispatcher(payments.DispatcherParams{
			Records:  ledgerService,
			Notifier: notificationService,
			Metrics:  webhookMetrics,
			Logger:   logg,
		}),
		Logger: logg,
	})
	requireService(ctx, logg, "payment webhooks", err)

	handler := routes.NewRouter(cfg, logg, routes.Dependencies{
		DB:                dbClient,
		Redis:             redisClient,
		Idempotency:       redisClient,
		Limiter:           limiter,
		Visitors:          visitors,
		Gatherer:          registry,
		Bids:              bidService,
		Orders:            orderService,
		Payments:          ledgerService,
		Notifications:     notificationService,
		WebhookGate:       gate,
		WebhookService:    webhookService,
		WebhookRejections: webhookMetrics,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"addr":        addr,
		"instance":    instance.GetID(),
		"rateLimiter": cfg.RateLimit.Backend,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		logg.Info(ctx, "shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "graceful shutdown failed", err)
		}
	}
}

func buildLimiter(cfg config.RateLimitConfig, store *redis.Client) (ratelimit.Limiter, error) {
	if cfg.Backend == "redis" {
		return ratelimit.NewRedis(store)
	}
	return ratelimit.NewMemory(), nil
}

func requireService(ctx context.Context, logg *logger.Logger, name string, err error) {
	if err == nil {
		return
	}
	logg.Error(ctx, "failed to build "+name+" service", err)
	os.Exit(1)
}
