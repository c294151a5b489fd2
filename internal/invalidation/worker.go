package invalidation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/crustohq/crusto-backend/internal/alerts"
	"github.com/crustohq/crusto-backend/internal/derived"
	"github.com/crustohq/crusto-backend/pkg/config"
	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
	"github.com/crustohq/crusto-backend/pkg/logger"
	"github.com/crustohq/crusto-backend/pkg/metrics"
)

const (
	defaultConcurrency    = 5
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 5 * time.Second
	defaultPollInterval   = 500 * time.Millisecond
	defaultBatchSize      = 25
)

type pizzaFinder interface {
	FindReferencing(ctx context.Context, ingredientID uuid.UUID) ([]models.Pizza, error)
}

type ingredientFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ingredient, error)
}

// WorkerParams wires one invalidation queue's worker.
type WorkerParams struct {
	Queue             enums.QueueKind
	Repo              JobRepository
	Pizzas            pizzaFinder
	Ingredients       ingredientFinder
	Cache             derived.Cache
	Notifier          alerts.Notifier
	Metrics           *metrics.QueueMetrics
	Config            config.QueueConfig
	LowStockThreshold int
	Logger            *logger.Logger
}

// Worker drains one invalidation queue: each job fans out to every pizza
// referencing the ingredient and refreshes that queue's derived value.
type Worker struct {
	queue       enums.QueueKind
	repo        JobRepository
	pizzas      pizzaFinder
	ingredients ingredientFinder
	cache       derived.Cache
	notifier    alerts.Notifier
	metrics     *metrics.QueueMetrics
	logg        *logger.Logger

	concurrency    int
	maxAttempts    int
	initialBackoff time.Duration
	pollInterval   time.Duration
	batchSize      int
	lowStock       int
}

// NewWorker builds a queue worker from its params.
func NewWorker(params WorkerParams) (*Worker, error) {
	if !params.Queue.IsValid() {
		return nil, fmt.Errorf("queue kind required")
	}
	if params.Repo == nil {
		return nil, errors.New("job repository is required")
	}
	if params.Pizzas == nil {
		return nil, errors.New("pizza finder is required")
	}
	if params.Ingredients == nil {
		return nil, errors.New("ingredient finder is required")
	}
	if params.Cache == nil {
		return nil, errors.New("derived cache is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}

	concurrency := params.Config.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	maxAttempts := params.Config.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	initialBackoff := params.Config.InitialBackoff
	if initialBackoff <= 0 {
		initialBackoff = defaultInitialBackoff
	}
	pollInterval := params.Config.PollInterval
	if pollInterval <= 0 {
		pollInterval = defaultPollInterval
	}
	batchSize := params.Config.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &Worker{
		queue:          params.Queue,
		repo:           params.Repo,
		pizzas:         params.Pizzas,
		ingredients:    params.Ingredients,
		cache:          params.Cache,
		notifier:       params.Notifier,
		metrics:        params.Metrics,
		logg:           params.Logger,
		concurrency:    concurrency,
		maxAttempts:    maxAttempts,
		initialBackoff: initialBackoff,
		pollInterval:   pollInterval,
		batchSize:      batchSize,
		lowStock:       params.LowStockThreshold,
	}, nil
}

// Run polls the queue until the context is canceled.
func (w *Worker) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = w.logg.WithQueue(ctx, w.queue.String())

	for {
		select {
		case <-ctx.Done():
			w.logg.Info(ctx, "invalidation worker context canceled")
			return ctx.Err()
		default:
		}

		processed, err := w.ProcessBatch(ctx)
		if err != nil {
			w.logg.Error(ctx, "invalidation batch error", err)
		}
		if processed && err == nil {
			continue
		}
		if err := w.sleep(ctx, w.pollInterval); err != nil {
			return err
		}
	}
}

// ProcessBatch claims and processes one batch of due jobs. It reports whether
// any job was claimed.
func (w *Worker) ProcessBatch(ctx context.Context) (bool, error) {
	jobs, err := w.repo.ClaimDue(ctx, w.queue, w.batchSize, time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("claiming jobs: %w", err)
	}

	if pending, countErr := w.repo.CountPending(ctx, w.queue); countErr == nil {
		w.metrics.SetPending(w.queue.String(), int(pending))
	}

	if len(jobs) == 0 {
		return false, nil
	}

	sem := make(chan struct{}, w.concurrency)
	var wg sync.WaitGroup
	for _, job := range jobs {
		wg.Add(1)
		sem <- struct{}{}
		go func(job models.InvalidationJob) {
			defer wg.Done()
			defer func() { <-sem }()
			w.processJob(ctx, job)
		}(job)
	}
	wg.Wait()
	return true, nil
}

func (w *Worker) processJob(ctx context.Context, job models.InvalidationJob) {
	ctx = w.logg.WithJobID(ctx, job.JobKey())
	ctx = w.logg.WithIngredientID(ctx, job.IngredientID.String())

	start := time.Now()
	err := w.handle(ctx, job)
	w.metrics.ObserveDuration(w.queue.String(), time.Since(start))

	if err == nil {
		if doneErr := w.repo.MarkDone(ctx, job.ID); doneErr != nil {
			w.logg.Error(ctx, "removing completed job failed", doneErr)
			return
		}
		w.metrics.IncSuccess(w.queue.String())
		w.logg.Info(ctx, "invalidation job completed")
		return
	}

	if job.AttemptCount >= w.maxAttempts {
		if failErr := w.repo.MarkFailed(ctx, job.ID, err); failErr != nil {
			w.logg.Error(ctx, "parking exhausted job failed", failErr)
			return
		}
		w.metrics.IncFailure(w.queue.String())
		w.logg.Error(ctx, "invalidation job exhausted attempts", err)
		return
	}

	nextAttempt := time.Now().UTC().Add(w.backoffFor(job.AttemptCount))
	if retryErr := w.repo.MarkRetry(ctx, job.ID, nextAttempt, err); retryErr != nil {
		w.logg.Error(ctx, "rescheduling job failed", retryErr)
		return
	}
	w.metrics.IncRetry(w.queue.String())
	w.logg.Warn(w.logg.WithField(ctx, "error", err.Error()), "invalidation job rescheduled")
}

// handle refreshes the queue's derived value for every pizza the ingredient
// touches. Only a failing referencing query retries the job; a single pizza's
// refresh failure is logged and skipped, since the next mutation touching
// that ingredient re-enqueues the recompute anyway.
func (w *Worker) handle(ctx context.Context, job models.InvalidationJob) error {
	pizzas, err := w.pizzas.FindReferencing(ctx, job.IngredientID)
	if err != nil {
		return fmt.Errorf("finding referencing pizzas: %w", err)
	}

	var skipped error
	for i := range pizzas {
		pizzaID := pizzas[i].ID
		var refreshErr error
		switch w.queue {
		case enums.QueueKindPrice:
			_, refreshErr = w.cache.RefreshPrice(ctx, pizzaID)
		case enums.QueueKindAvailability:
			_, refreshErr = w.cache.RefreshAvailability(ctx, pizzaID)
		}
		if refreshErr != nil {
			w.logg.Error(w.logg.WithPizzaID(ctx, pizzaID.String()), "pizza refresh failed, skipping", refreshErr)
			skipped = multierr.Append(skipped, fmt.Errorf("pizza %s: %w", pizzaID, refreshErr))
		}
	}
	if skipped != nil {
		w.logg.Warn(w.logg.WithField(ctx, "skipped", skipped.Error()), "job completed with skipped pizzas")
	}

	if w.queue == enums.QueueKindAvailability {
		w.maybeAlertLowStock(ctx, job.IngredientID, int64(len(pizzas)))
	}
	return nil
}

// maybeAlertLowStock is best effort: a delivery failure never fails the job.
func (w *Worker) maybeAlertLowStock(ctx context.Context, ingredientID uuid.UUID, affectedPizzas int64) {
	if w.notifier == nil {
		return
	}
	ingredient, err := w.ingredients.FindByID(ctx, ingredientID)
	if err != nil {
		w.logg.Warn(ctx, "loading ingredient for low-stock check failed")
		return
	}
	if ingredient.IsDeleted || ingredient.Stock > w.lowStock {
		return
	}

	alert := alerts.LowStockAlert{
		IngredientID:   ingredient.ID,
		Name:           ingredient.Name,
		Stock:          ingredient.Stock,
		AffectedPizzas: affectedPizzas,
	}
	if err := w.notifier.NotifyLowStock(ctx, alert); err != nil {
		w.logg.Error(ctx, "low-stock alert delivery failed", err)
	}
}

func (w *Worker) backoffFor(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	backoff := w.initialBackoff
	for i := 1; i < attempt; i++ {
		backoff *= 2
	}
	return backoff
}

func (w *Worker) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
