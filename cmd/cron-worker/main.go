package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crustohq/crusto-backend/internal/alerts"
	"github.com/crustohq/crusto-backend/internal/catalog"
	"github.com/crustohq/crusto-backend/internal/cron"
	"github.com/crustohq/crusto-backend/internal/invalidation"
	"github.com/crustohq/crusto-backend/pkg/config"
	"github.com/crustohq/crusto-backend/pkg/db"
	"github.com/crustohq/crusto-backend/pkg/logger"
	"github.com/crustohq/crusto-backend/pkg/metrics"
	"github.com/crustohq/crusto-backend/pkg/migrate"
	"github.com/crustohq/crusto-backend/pkg/pubsub"
	"github.com/crustohq/crusto-backend/pkg/redis"
)

const lockKeyFormat = "crusto:cron-worker:lock:%s"

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
		logg.Error(context.Background(), "failed to build cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, lockKey(cfg.App.Env), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(cfg *config.Config, logg *logger.Logger, dbClient *db.Client) (*cron.Registry, error) {
	conn := dbClient.DB()

	retention, err := cron.NewFailedJobRetentionJob(cron.FailedJobRetentionParams{
		Logger:        logg,
		Jobs:          invalidation.NewJobRepository(conn),
		RetentionDays: cfg.Cron.FailedJobRetentionDays,
	})
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifier(cfg, logg)
	if err != nil {
		return nil, err
	}
	audit, err := cron.NewLowStockAuditJob(cron.LowStockAuditParams{
		Logger:      logg,
		Ingredients: catalog.NewIngredientRepository(conn),
		Pizzas:      catalog.NewPizzaRepository(conn),
		Notifier:    notifier,
		Threshold:   cfg.Alerts.LowStockThreshold,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(retention, audit), nil
}

func buildNotifier(cfg *config.Config, logg *logger.Logger) (alerts.Notifier, error) {
	if cfg.GCP.ProjectID == "" {
		return alerts.NewLogNotifier(logg)
	}
	client, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, err
	}
	return alerts.NewPubSubNotifier(client.AlertsPublisher(), logg)
}

func lockKey(env string) string {
	if env == "" {
		env = "local"
	}
	return fmt.Sprintf(lockKeyFormat, env)
}
