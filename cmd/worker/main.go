package main

import (
	"context"
	"errors"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/crustohq/crusto-backend/internal/alerts"
	"github.com/crustohq/crusto-backend/internal/catalog"
	"github.com/crustohq/crusto-backend/internal/derived"
	"github.com/crustohq/crusto-backend/internal/invalidation"
	"github.com/crustohq/crusto-backend/internal/ops"
	"github.com/crustohq/crusto-backend/pkg/config"
	"github.com/crustohq/crusto-backend/pkg/db"
	"github.com/crustohq/crusto-backend/pkg/enums"
	"github.com/crustohq/crusto-backend/pkg/instance"
	"github.com/crustohq/crusto-backend/pkg/logger"
	"github.com/crustohq/crusto-backend/pkg/metrics"
	"github.com/crustohq/crusto-backend/pkg/migrate"
	"github.com/crustohq/crusto-backend/pkg/pubsub"
	"github.com/crustohq/crusto-backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "worker"

	logg = logger.New(logger.Options{
		ServiceName: "worker",
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

	service, err := buildService(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build worker service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"instance":    instance.GetID(),
	})
	logg.Info(ctx, "starting invalidation worker")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "worker shutting down gracefully")
}

func buildService(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (*Service, error) {
	conn := dbClient.DB()

	ingredients := catalog.NewIngredientRepository(conn)
	pizzas := catalog.NewPizzaRepository(conn)
	source := catalog.NewSource(ingredients, pizzas)

	cache, err := derived.NewCache(redisClient, source, logg)
	if err != nil {
		return nil, err
	}

	notifier, pubsubClient, err := buildNotifier(cfg, logg)
	if err != nil {
		return nil, err
	}

	jobs := invalidation.NewJobRepository(conn)
	queueMetrics := metrics.NewQueueMetrics(prometheus.DefaultRegisterer)

	newWorker := func(queue enums.QueueKind) (*invalidation.Worker, error) {
		return invalidation.NewWorker(invalidation.WorkerParams{
			Queue:             queue,
			Repo:              jobs,
			Pizzas:            pizzas,
			Ingredients:       ingredients,
			Cache:             cache,
			Notifier:          notifier,
			Metrics:           queueMetrics,
			Config:            cfg.Queue,
			LowStockThreshold: cfg.Alerts.LowStockThreshold,
			Logger:            logg,
		})
	}
	priceWorker, err := newWorker(enums.QueueKindPrice)
	if err != nil {
		return nil, err
	}
	availabilityWorker, err := newWorker(enums.QueueKindAvailability)
	if err != nil {
		return nil, err
	}

	return NewService(ServiceParams{
		Config:             cfg,
		Logger:             logg,
		DB:                 dbClient,
		Redis:              redisClient,
		PubSub:             pubsubClient,
		PriceWorker:        priceWorker,
		AvailabilityWorker: availabilityWorker,
		Ops:                ops.NewRouter(cfg, logg, dbClient, redisClient),
	})
}

// buildNotifier uses pub/sub when a GCP project is configured and falls back
// to structured log alerts everywhere else.
func buildNotifier(cfg *config.Config, logg *logger.Logger) (alerts.Notifier, *pubsub.Client, error) {
	if cfg.GCP.ProjectID == "" {
		notifier, err := alerts.NewLogNotifier(logg)
		return notifier, nil, err
	}

	client, err := pubsub.NewClient(context.Background(), cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return nil, nil, err
	}
	notifier, err := alerts.NewPubSubNotifier(client.AlertsPublisher(), logg)
	if err != nil {
		return nil, nil, err
	}
	return notifier, client, nil
}
