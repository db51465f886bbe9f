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
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/bidhouse-backend/internal/cron"
	"github.com/angelmondragon/bidhouse-backend/internal/listings"
	"github.com/angelmondragon/bidhouse-backend/internal/notifications"
	"github.com/angelmondragon/bidhouse-backend/internal/orders"
	"github.com/angelmondragon/bidhouse-backend/pkg/config"
	"github.com/angelmondragon/bidhouse-backend/pkg/db"
	"github.com/angelmondragon/bidhouse-backend/pkg/logger"
	"github.com/angelmondragon/bidhouse-backend/pkg/metrics"
	"github.com/angelmondragon/bidhouse-backend/pkg/migrate"
	"github.com/angelmondragon/bidhouse-backend/pkg/outbox"
	"github.com/angelmondragon/bidhouse-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	registry, err := buildRegistry(cfg, logg, dbClient)
	if err != nil {
		logg.Error(context.Background(), "failed to register cron jobs", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Locks: func(job string, ttl time.Duration) (cron.Lock, error) {
			return cron.NewRedisLock(redisClient, redisClient.LockKey("cron:"+job), ttl)
		},
		Metrics: metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"jobs":        len(registry.Jobs()),
	})

	metricsServer := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           promhttp.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logg.Error(ctx, "metrics listener stopped", err)
		}
	}()

	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = metricsServer.Shutdown(shutdownCtx)

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	gormDB := dbClient.DB()
	outboxRepo := outbox.NewRepository(gormDB)
	outboxService := outbox.NewService(outboxRepo, logg)

	notificationService, err := notifications.NewService(notifications.NewRepository(gormDB))
	if err != nil {
		return nil, err
	}
	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(gormDB),
		Tx:       dbClient,
		Outbox:   outboxService,
		Notifier: notificationService,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}
	listingService, err := listings.NewService(listings.ServiceParams{
		Repo:     listings.NewRepository(gormDB),
		Orders:   orderService,
		Tx:       dbClient,
		Outbox:   outboxService,
		Notifier: notificationService,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	closeJob, err := cron.NewAuctionCloseJob(cron.AuctionCloseJobParams{
		Logger:    logg,
		Closer:    listingService,
		BatchSize: cfg.Auction.CloseBatchSize,
	})
	if err != nil {
		return nil, err
	}
	completionJob, err := cron.NewOrderCompletionJob(cron.OrderCompletionJobParams{
		Logger:        logg,
		Orders:        orderService,
		DisputeWindow: cfg.Auction.DisputeWindow,
		BatchSize:     cfg.Auction.CloseBatchSize,
	})
	if err != nil {
		return nil, err
	}
	cleanupJob, err := cron.NewNotificationCleanupJob(cron.NotificationCleanupJobParams{
		Logger:    logg,
		Purger:    notificationService,
		Retention: cfg.Notifications.Retention,
	})
	if err != nil {
		return nil, err
	}
	retentionJob, err := cron.NewOutboxRetentionJob(cron.OutboxRetentionJobParams{
		Logger:     logg,
		Repository: outboxRepo,
		Retention:  cfg.Outbox.Retention,
	})
	if err != nil {
		return nil, err
	}

	registry := cron.NewRegistry()
	registry.Register(closeJob, cfg.Auction.CloseInterval)
	registry.Register(completionJob, cfg.Auction.CompletionInterval)
	registry.Register(cleanupJob, cfg.Notifications.CleanupInterval)
	registry.Register(retentionJob, cfg.Outbox.RetentionInterval)
	return registry, nil
}
