package orders

import (
	"context"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/internal/invalidation"
	"github.com/crustohq/crusto-backend/internal/settlement"
	"github.com/crustohq/crusto-backend/pkg/db"
	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

type serviceFixture struct {
	db      *gorm.DB
	service Service
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()

	conn := newTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})

	queues, err := invalidation.NewQueues(invalidation.NewJobRepository(conn), logg)
	if err != nil {
		t.Fatalf("new queues: %v", err)
	}
	settler, err := settlement.NewService(db.FromGorm(conn), queues, logg)
	if err != nil {
		t.Fatalf("new settlement service: %v", err)
	}
	svc, err := NewService(NewRepository(conn), db.FromGorm(conn), settler, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &serviceFixture{db: conn, service: svc}
}

// seedDeliverableOrder creates an out-for-delivery order for one pizza
// built from two stocked ingredients.
func (f *serviceFixture) seedDeliverableOrder(t *testing.T, quantity int) (*models.Order, []uuid.UUID) {
	t.Helper()

	dough := &models.Ingredient{
		Name:     "dough",
		Category: enums.IngredientCategoryBase,
		Price:    decimal.RequireFromString("2.00"),
		Stock:    10,
	}
	tomato := &models.Ingredient{
		Name:     "tomato",
		Category: enums.IngredientCategorySauce,
		Price:    decimal.RequireFromString("1.00"),
		Stock:    10,
	}
	for _, ingredient := range []*models.Ingredient{dough, tomato} {
		if err := f.db.Create(ingredient).Error; err != nil {
			t.Fatalf("create ingredient: %v", err)
		}
	}

	pizza := &models.Pizza{
		Name:     "plain",
		Category: "classic",
		IsListed: true,
		BaseID:   dough.ID,
		SauceID:  tomato.ID,
	}
	if err := f.db.Create(pizza).Error; err != nil {
		t.Fatalf("create pizza: %v", err)
	}

	order := &models.Order{
		UserID:     uuid.New(),
		Status:     enums.OrderStatusOutForDelivery,
		OrderTotal: decimal.RequireFromString("9.00"),
	}
	if err := f.db.Create(order).Error; err != nil {
		t.Fatalf("create order: %v", err)
	}
	item := &models.OrderLineItem{
		OrderID:    order.ID,
		PizzaID:    pizza.ID,
		Name:       pizza.Name,
		Category:   pizza.Category,
		Size:       enums.PizzaSizeMedium,
		Quantity:   quantity,
		TotalPrice: decimal.RequireFromString("9.00"),
	}
	if err := f.db.Create(item).Error; err != nil {
		t.Fatalf("create line item: %v", err)
	}
	return order, []uuid.UUID{dough.ID, tomato.ID}
}

func (f *serviceFixture) orderStatus(t *testing.T, orderID uuid.UUID) enums.OrderStatus {
	t.Helper()
	var order models.Order
	if err := f.db.Where("id = ?", orderID).First(&order).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	return order.Status
}

func TestMarkDeliveredSettlesStock(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	ctx := context.Background()
	order, ingredientIDs := fix.seedDeliverableOrder(t, 2)

	result, err := fix.service.MarkDelivered(ctx, order.ID)
	if err != nil {
		t.Fatalf("mark delivered: %v", err)
	}
	if result.IngredientsProcessed != 2 || result.IngredientsUpdated != 2 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if got := fix.orderStatus(t, order.ID); got != enums.OrderStatusDelivered {
		t.Fatalf("expected delivered, got %s", got)
	}
	for _, id := range ingredientIDs {
		var ingredient models.Ingredient
		if err := fix.db.Where("id = ?", id).First(&ingredient).Error; err != nil {
			t.Fatalf("load ingredient: %v", err)
		}
		if ingredient.Stock != 8 {
			t.Fatalf("ingredient %s: expected stock 8, got %d", id, ingredient.Stock)
		}
	}
}

func TestMarkDeliveredRejectsInvalidTransition(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fix.db, uuid.New(), enums.OrderStatusPending)

	_, err := fix.service.MarkDelivered(ctx, order.ID)
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if got := fix.orderStatus(t, order.ID); got != enums.OrderStatusPending {
		t.Fatalf("status changed to %s", got)
	}
}

func TestMarkDeliveredTwiceConflicts(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	ctx := context.Background()
	order, _ := fix.seedDeliverableOrder(t, 1)

	if _, err := fix.service.MarkDelivered(ctx, order.ID); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	_, err := fix.service.MarkDelivered(ctx, order.ID)
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict on second delivery, got %v", err)
	}
}

func TestMarkDeliveredUnknownOrder(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	_, err := fix.service.MarkDelivered(context.Background(), uuid.New())
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

type failingSettler struct{}

func (failingSettler) SettleOrderStockTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*settlement.Result, error) {
	return nil, pkgerrors.New(pkgerrors.CodeDependency, "settlement unavailable")
}

func TestMarkDeliveredRollsBackStatusWhenSettlementFails(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	svc, err := NewService(NewRepository(conn), db.FromGorm(conn), failingSettler{}, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	order := seedOrder(t, conn, uuid.New(), enums.OrderStatusOutForDelivery)

	if _, err := svc.MarkDelivered(context.Background(), order.ID); err == nil {
		t.Fatal("expected settlement error")
	}

	var reloaded models.Order
	if err := conn.Where("id = ?", order.ID).First(&reloaded).Error; err != nil {
		t.Fatalf("load order: %v", err)
	}
	if reloaded.Status != enums.OrderStatusOutForDelivery {
		t.Fatalf("expected status rolled back to out_for_delivery, got %s", reloaded.Status)
	}
}

func TestUpdateStatusFollowsTransitionRules(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	ctx := context.Background()
	order := seedOrder(t, fix.db, uuid.New(), enums.OrderStatusPending)

	for _, status := range []enums.OrderStatus{
		enums.OrderStatusConfirmed,
		enums.OrderStatusPreparing,
		enums.OrderStatusOutForDelivery,
	} {
		if err := fix.service.UpdateStatus(ctx, order.ID, status); err != nil {
			t.Fatalf("transition to %s: %v", status, err)
		}
	}

	// Backwards moves are rejected.
	err := fix.service.UpdateStatus(ctx, order.ID, enums.OrderStatusPending)
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestUpdateStatusToDeliveredRunsSettlement(t *testing.T) {
	t.Parallel()

	fix := newServiceFixture(t)
	ctx := context.Background()
	order, ingredientIDs := fix.seedDeliverableOrder(t, 1)

	if err := fix.service.UpdateStatus(ctx, order.ID, enums.OrderStatusDelivered); err != nil {
		t.Fatalf("update status: %v", err)
	}

	var ingredient models.Ingredient
	if err := fix.db.Where("id = ?", ingredientIDs[0]).First(&ingredient).Error; err != nil {
		t.Fatalf("load ingredient: %v", err)
	}
	if ingredient.Stock != 9 {
		t.Fatalf("expected stock settled to 9, got %d", ingredient.Stock)
	}
}
