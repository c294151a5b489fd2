package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/crustohq/crusto-backend/internal/alerts"
	"github.com/crustohq/crusto-backend/pkg/db/models"
)

type fakeLowStockLister struct {
	ingredients []models.Ingredient
	threshold   int
	err         error
}

func (f *fakeLowStockLister) ListLowStock(ctx context.Context, threshold int) ([]models.Ingredient, error) {
	f.threshold = threshold
	if f.err != nil {
		return nil, f.err
	}
	return f.ingredients, nil
}

type fakePizzaCounter struct {
	counts map[uuid.UUID]int64
	err    error
}

func (f *fakePizzaCounter) CountReferencing(ctx context.Context, ingredientID uuid.UUID) (int64, error) {
	if f.err != nil {
		return 0, f.err
	}
	return f.counts[ingredientID], nil
}

type capturingNotifier struct {
	alerts []alerts.LowStockAlert
	err    error
}

func (n *capturingNotifier) NotifyLowStock(ctx context.Context, alert alerts.LowStockAlert) error {
	if n.err != nil {
		return n.err
	}
	n.alerts = append(n.alerts, alert)
	return nil
}

func TestLowStockAuditNotifiesPerIngredient(t *testing.T) {
	t.Parallel()

	tomatoID := uuid.New()
	basilID := uuid.New()
	lister := &fakeLowStockLister{ingredients: []models.Ingredient{
		{ID: tomatoID, Name: "tomato", Stock: 0},
		{ID: basilID, Name: "basil", Stock: 4},
	}}
	counter := &fakePizzaCounter{counts: map[uuid.UUID]int64{tomatoID: 5, basilID: 2}}
	notifier := &capturingNotifier{}

	job, err := NewLowStockAuditJob(LowStockAuditParams{
		Logger:      testLogger(),
		Ingredients: lister,
		Pizzas:      counter,
		Notifier:    notifier,
		Threshold:   5,
	})
	if err != nil {
		t.Fatalf("NewLowStockAuditJob: %v", err)
	}

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lister.threshold != 5 {
		t.Fatalf("expected threshold 5, got %d", lister.threshold)
	}
	if len(notifier.alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(notifier.alerts))
	}
	first := notifier.alerts[0]
	if first.IngredientID != tomatoID || first.Stock != 0 || first.AffectedPizzas != 5 {
		t.Fatalf("unexpected alert: %+v", first)
	}
}

func TestLowStockAuditContinuesPastDeliveryFailures(t *testing.T) {
	t.Parallel()

	lister := &fakeLowStockLister{ingredients: []models.Ingredient{
		{ID: uuid.New(), Name: "tomato", Stock: 1},
	}}
	job, err := NewLowStockAuditJob(LowStockAuditParams{
		Logger:      testLogger(),
		Ingredients: lister,
		Pizzas:      &fakePizzaCounter{},
		Notifier:    &capturingNotifier{err: errors.New("pubsub down")},
	})
	if err != nil {
		t.Fatalf("NewLowStockAuditJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("delivery failures must not fail the sweep: %v", err)
	}
}

func TestLowStockAuditPropagatesListError(t *testing.T) {
	t.Parallel()

	job, err := NewLowStockAuditJob(LowStockAuditParams{
		Logger:      testLogger(),
		Ingredients: &fakeLowStockLister{err: errors.New("db down")},
		Pizzas:      &fakePizzaCounter{},
		Notifier:    &capturingNotifier{},
	})
	if err != nil {
		t.Fatalf("NewLowStockAuditJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestLowStockAuditDefaultsThreshold(t *testing.T) {
	t.Parallel()

	lister := &fakeLowStockLister{}
	job, err := NewLowStockAuditJob(LowStockAuditParams{
		Logger:      testLogger(),
		Ingredients: lister,
		Pizzas:      &fakePizzaCounter{},
		Notifier:    &capturingNotifier{},
	})
	if err != nil {
		t.Fatalf("NewLowStockAuditJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if lister.threshold != defaultLowStockThreshold {
		t.Fatalf("expected default threshold %d, got %d", defaultLowStockThreshold, lister.threshold)
	}
}
