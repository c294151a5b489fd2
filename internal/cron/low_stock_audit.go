package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/crustohq/crusto-backend/internal/alerts"
	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

const defaultLowStockThreshold = 10

type lowStockLister interface {
	ListLowStock(ctx context.Context, threshold int) ([]models.Ingredient, error)
}

type pizzaCounter interface {
	CountReferencing(ctx context.Context, ingredientID uuid.UUID) (int64, error)
}

// LowStockAuditParams configure the daily low-stock sweep.
type LowStockAuditParams struct {
	Logger      *logger.Logger
	Ingredients lowStockLister
	Pizzas      pizzaCounter
	Notifier    alerts.Notifier
	Threshold   int
}

// NewLowStockAuditJob sweeps the catalog for ingredients at or below the
// low-stock threshold and raises an admin alert per ingredient. The sweep
// backstops the per-settlement alerts: an ingredient that went low while
// alert delivery was down still gets reported on the next cycle.
func NewLowStockAuditJob(params LowStockAuditParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Ingredients == nil {
		return nil, fmt.Errorf("ingredient lister required")
	}
	if params.Pizzas == nil {
		return nil, fmt.Errorf("pizza counter required")
	}
	if params.Notifier == nil {
		return nil, fmt.Errorf("notifier required")
	}
	threshold := params.Threshold
	if threshold <= 0 {
		threshold = defaultLowStockThreshold
	}
	return &lowStockAuditJob{
		logg:        params.Logger,
		ingredients: params.Ingredients,
		pizzas:      params.Pizzas,
		notifier:    params.Notifier,
		threshold:   threshold,
	}, nil
}

type lowStockAuditJob struct {
	logg        *logger.Logger
	ingredients lowStockLister
	pizzas      pizzaCounter
	notifier    alerts.Notifier
	threshold   int
}

func (j *lowStockAuditJob) Name() string { return "low-stock-audit" }

func (j *lowStockAuditJob) Run(ctx context.Context) error {
	low, err := j.ingredients.ListLowStock(ctx, j.threshold)
	if err != nil {
		return fmt.Errorf("list low stock ingredients: %w", err)
	}

	notified := 0
	for _, ingredient := range low {
		affected, err := j.pizzas.CountReferencing(ctx, ingredient.ID)
		if err != nil {
			ingCtx := j.logg.WithIngredientID(ctx, ingredient.ID.String())
			j.logg.Warn(ingCtx, "could not count affected pizzas; reporting zero")
			affected = 0
		}
		alert := alerts.LowStockAlert{
			IngredientID:   ingredient.ID,
			Name:           ingredient.Name,
			Stock:          ingredient.Stock,
			AffectedPizzas: affected,
		}
		// Best effort per ingredient; one failed delivery does not stop
		// the sweep.
		if err := j.notifier.NotifyLowStock(ctx, alert); err != nil {
			ingCtx := j.logg.WithIngredientID(ctx, ingredient.ID.String())
			j.logg.Error(ingCtx, "low stock alert delivery failed", err)
			continue
		}
		notified++
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"threshold":       j.threshold,
		"low_ingredients": len(low),
		"alerts_sent":     notified,
	})
	j.logg.Info(logCtx, "low stock audit complete")
	return nil
}
