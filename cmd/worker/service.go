package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/crustohq/crusto-backend/internal/invalidation"
	"github.com/crustohq/crusto-backend/pkg/config"
	"github.com/crustohq/crusto-backend/pkg/db"
	"github.com/crustohq/crusto-backend/pkg/logger"
	"github.com/crustohq/crusto-backend/pkg/pubsub"
	"github.com/crustohq/crusto-backend/pkg/redis"
)

const shutdownTimeout = 10 * time.Second

type ServiceParams struct {
	Config             *config.Config
	Logger             *logger.Logger
	DB                 *db.Client
	Redis              *redis.Client
	PubSub             *pubsub.Client
	PriceWorker        *invalidation.Worker
	AvailabilityWorker *invalidation.Worker
	Ops                http.Handler
}

type Service struct {
	cfg                *config.Config
	logg               *logger.Logger
	db                 *db.Client
	redis              *redis.Client
	pubsub             *pubsub.Client
	priceWorker        *invalidation.Worker
	availabilityWorker *invalidation.Worker
	ops                http.Handler
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PriceWorker == nil {
		return nil, errors.New("price worker is required")
	}
	if params.AvailabilityWorker == nil {
		return nil, errors.New("availability worker is required")
	}
	if params.Ops == nil {
		return nil, errors.New("ops handler is required")
	}

	return &Service{
		cfg:                params.Config,
		logg:               params.Logger,
		db:                 params.DB,
		redis:              params.Redis,
		pubsub:             params.PubSub,
		priceWorker:        params.PriceWorker,
		availabilityWorker: params.AvailabilityWorker,
		ops:                params.Ops,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if s.pubsub != nil {
		if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
			return err
		}
	}
	s.logg.Info(ctx, "all worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	server := &http.Server{
		Addr:    ":" + s.cfg.App.Port,
		Handler: s.ops,
	}

	errCh := make(chan error, 3)
	go func() {
		errCh <- s.priceWorker.Run(ctx)
	}()
	go func() {
		errCh <- s.availabilityWorker.Run(ctx)
	}()
	go func() {
		s.logg.Info(s.logg.WithField(ctx, "addr", server.Addr), "ops server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	shutdown := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.logg.Error(shutdownCtx, "ops server shutdown failed", err)
		}
	}

	select {
	case <-ctx.Done():
		s.logg.Info(ctx, "worker context canceled")
		shutdown()
		return ctx.Err()
	case err := <-errCh:
		shutdown()
		if err != nil && !errors.Is(err, context.Canceled) {
			s.logg.Error(ctx, "worker stopped unexpectedly", err)
			return err
		}
		return err
	}
}
