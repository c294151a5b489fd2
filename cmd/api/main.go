package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/crustohq/crusto-backend/api/routes"
	cartsvc "github.com/crustohq/crusto-backend/internal/cart"
	"github.com/crustohq/crusto-backend/internal/catalog"
	"github.com/crustohq/crusto-backend/internal/derived"
	"github.com/crustohq/crusto-backend/internal/invalidation"
	"github.com/crustohq/crusto-backend/internal/orders"
	"github.com/crustohq/crusto-backend/internal/settlement"
	"github.com/crustohq/crusto-backend/pkg/config"
	"github.com/crustohq/crusto-backend/pkg/db"
	"github.com/crustohq/crusto-backend/pkg/logger"
	"github.com/crustohq/crusto-backend/pkg/migrate"
	"github.com/crustohq/crusto-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

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

	router, err := buildRouter(cfg, logg, dbClient, redisClient)
	if err != nil {
		logg.Error(context.Background(), "failed to build router", err)
		os.Exit(1)
	}

	server := &http.Server{
		Addr:    ":" + cfg.App.Port,
		Handler: router,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
		"port":        cfg.App.Port,
	})

	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "api server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logg.Error(ctx, "error shutting down api server", err)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func buildRouter(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, redisClient *redis.Client) (http.Handler, error) {
	conn := dbClient.DB()

	ingredients := catalog.NewIngredientRepository(conn)
	pizzas := catalog.NewPizzaRepository(conn)
	source := catalog.NewSource(ingredients, pizzas)

	cache, err := derived.NewCache(redisClient, source, logg)
	if err != nil {
		return nil, err
	}
	embedder, err := derived.NewEmbedder(cache, source, logg)
	if err != nil {
		return nil, err
	}

	queues, err := invalidation.NewQueues(invalidation.NewJobRepository(conn), logg)
	if err != nil {
		return nil, err
	}

	catalogService, err := catalog.NewService(ingredients, pizzas, queues, cache, embedder, dbClient, logg)
	if err != nil {
		return nil, err
	}
	cartService, err := cartsvc.NewService(cartsvc.NewRepository(conn), pizzas, embedder, logg)
	if err != nil {
		return nil, err
	}

	settler, err := settlement.NewService(dbClient, queues, logg)
	if err != nil {
		return nil, err
	}
	ordersRepo := orders.NewRepository(conn)
	ordersService, err := orders.NewService(ordersRepo, dbClient, settler, logg)
	if err != nil {
		return nil, err
	}

	return routes.NewRouter(cfg, logg, dbClient, redisClient, catalogService, cartService, ordersRepo, ordersService), nil
}
