package cart

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/internal/catalog"
	"github.com/crustohq/crusto-backend/internal/derived"
	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

type fixture struct {
	db      *gorm.DB
	service Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	err = conn.AutoMigrate(
		&models.Ingredient{},
		&models.Pizza{},
		&models.PizzaTopping{},
		&models.Cart{},
		&models.CartItem{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	ingredients := catalog.NewIngredientRepository(conn)
	pizzas := catalog.NewPizzaRepository(conn)
	source := catalog.NewSource(ingredients, pizzas)

	cache, err := derived.NewCache(newFakeCacheStore(), source, logg)
	if err != nil {
		t.Fatalf("new cache: %v", err)
	}
	embedder, err := derived.NewEmbedder(cache, source, logg)
	if err != nil {
		t.Fatalf("new embedder: %v", err)
	}

	svc, err := NewService(NewRepository(conn), pizzas, embedder, logg)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return &fixture{db: conn, service: svc}
}

// mustPizza seeds a pizza whose ingredients sum to 5.00.
func (f *fixture) mustPizza(t *testing.T, name string) *models.Pizza {
	t.Helper()

	dough := &models.Ingredient{
		Name:     name + " dough",
		Category: enums.IngredientCategoryBase,
		Price:    decimal.RequireFromString("3.00"),
		Stock:    10,
	}
	tomato := &models.Ingredient{
		Name:     name + " tomato",
		Category: enums.IngredientCategorySauce,
		Price:    decimal.RequireFromString("2.00"),
		Stock:    10,
	}
	for _, ingredient := range []*models.Ingredient{dough, tomato} {
		if err := f.db.Create(ingredient).Error; err != nil {
			t.Fatalf("create ingredient: %v", err)
		}
	}
	pizza := &models.Pizza{
		Name:     name,
		Category: "classic",
		IsListed: true,
		BaseID:   dough.ID,
		SauceID:  tomato.ID,
	}
	if err := f.db.Create(pizza).Error; err != nil {
		t.Fatalf("create pizza: %v", err)
	}
	return pizza
}

func TestAddItemEmbedsDerivedPrices(t *testing.T) {
	t.Parallel()

	fix := newFixture(t)
	ctx := context.Background()
	pizza := fix.mustPizza(t, "margherita")
	userID := uuid.New()

	view, err := fix.service.AddItem(ctx, AddItemInput{
		UserID:   userID,
		PizzaID:  pizza.ID,
		Size:     "medium",
		Quantity: 2,
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(view.Items))
	}
	item := view.Items[0]
	// 5.00 x 1.5 medium multiplier.
	if got := item.BasePrice.StringFixed(2); got != "7.50" {
		t.Fatalf("expected base price 7.50, got %s", got)
	}
	if got := item.TotalPrice.StringFixed(2); got != "15.00" {
		t.Fatalf("expected total price 15.00, got %s", got)
	}
	if got := view.CartTotalPrice.StringFixed(2); got != "15.00" {
		t.Fatalf("expected cart total 15.00, got %s", got)
	}
	if !item.IsAvailable {
		t.Fatal("expected item to be available")
	}
}

func TestAddItemMergesSamePizzaAndSize(t *testing.T) {
	t.Parallel()

	fix := newFixture(t)
	ctx := context.Background()
	pizza := fix.mustPizza(t, "margherita")
	userID := uuid.New()

	input := AddItemInput{UserID: userID, PizzaID: pizza.ID, Size: "large", Quantity: 1}
	if _, err := fix.service.AddItem(ctx, input); err != nil {
		t.Fatalf("first add: %v", err)
	}
	view, err := fix.service.AddItem(ctx, input)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}
	if len(view.Items) != 1 {
		t.Fatalf("expected merged line, got %d items", len(view.Items))
	}
	if view.Items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d", view.Items[0].Quantity)
	}

	// A different size is a separate line.
	small := AddItemInput{UserID: userID, PizzaID: pizza.ID, Size: "small", Quantity: 1}
	view, err = fix.service.AddItem(ctx, small)
	if err != nil {
		t.Fatalf("small add: %v", err)
	}
	if len(view.Items) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(view.Items))
	}
}

func TestAddItemUnknownPizza(t *testing.T) {
	t.Parallel()

	fix := newFixture(t)
	_, err := fix.service.AddItem(context.Background(), AddItemInput{
		UserID:   uuid.New(),
		PizzaID:  uuid.New(),
		Size:     "medium",
		Quantity: 1,
	})
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddItemRejectsBadInput(t *testing.T) {
	t.Parallel()

	fix := newFixture(t)
	ctx := context.Background()
	pizza := fix.mustPizza(t, "margherita")

	cases := []AddItemInput{
		{UserID: uuid.New(), PizzaID: pizza.ID, Size: "xl", Quantity: 1},
		{UserID: uuid.New(), PizzaID: pizza.ID, Size: "medium", Quantity: 0},
		{UserID: uuid.Nil, PizzaID: pizza.ID, Size: "medium", Quantity: 1},
	}
	for _, input := range cases {
		_, err := fix.service.AddItem(ctx, input)
		pkgErr := pkgerrors.As(err)
		if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeValidation {
			t.Fatalf("input %+v: expected validation error, got %v", input, err)
		}
	}
}

func TestUpdateItemQuantityZeroRemovesLine(t *testing.T) {
	t.Parallel()

	fix := newFixture(t)
	ctx := context.Background()
	pizza := fix.mustPizza(t, "margherita")
	userID := uuid.New()

	view, err := fix.service.AddItem(ctx, AddItemInput{
		UserID: userID, PizzaID: pizza.ID, Size: "medium", Quantity: 3,
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}
	itemID := view.Items[0].ID

	view, err = fix.service.UpdateItemQuantity(ctx, userID, itemID, 1)
	if err != nil {
		t.Fatalf("update quantity: %v", err)
	}
	if view.Items[0].Quantity != 1 {
		t.Fatalf("expected quantity 1, got %d", view.Items[0].Quantity)
	}

	view, err = fix.service.UpdateItemQuantity(ctx, userID, itemID, 0)
	if err != nil {
		t.Fatalf("update to zero: %v", err)
	}
	if len(view.Items) != 0 {
		t.Fatalf("expected empty cart, got %d items", len(view.Items))
	}
}

func TestRemoveItemRequiresOwnership(t *testing.T) {
	t.Parallel()

	fix := newFixture(t)
	ctx := context.Background()
	pizza := fix.mustPizza(t, "margherita")
	owner := uuid.New()

	view, err := fix.service.AddItem(ctx, AddItemInput{
		UserID: owner, PizzaID: pizza.ID, Size: "medium", Quantity: 1,
	})
	if err != nil {
		t.Fatalf("add item: %v", err)
	}

	_, err = fix.service.RemoveItem(ctx, uuid.New(), view.Items[0].ID)
	pkgErr := pkgerrors.As(err)
	if pkgErr == nil || pkgErr.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for other user, got %v", err)
	}

	if _, err := fix.service.RemoveItem(ctx, owner, view.Items[0].ID); err != nil {
		t.Fatalf("owner remove: %v", err)
	}
}

func TestClearCart(t *testing.T) {
	t.Parallel()

	fix := newFixture(t)
	ctx := context.Background()
	pizza := fix.mustPizza(t, "margherita")
	userID := uuid.New()

	if _, err := fix.service.AddItem(ctx, AddItemInput{
		UserID: userID, PizzaID: pizza.ID, Size: "medium", Quantity: 2,
	}); err != nil {
		t.Fatalf("add item: %v", err)
	}
	if err := fix.service.ClearCart(ctx, userID); err != nil {
		t.Fatalf("clear cart: %v", err)
	}

	view, err := fix.service.GetCart(ctx, userID)
	if err != nil {
		t.Fatalf("get cart: %v", err)
	}
	if len(view.Items) != 0 || !view.CartTotalPrice.IsZero() {
		t.Fatalf("expected empty cart, got %+v", view)
	}

	// Clearing a user with no cart is a no-op.
	if err := fix.service.ClearCart(ctx, uuid.New()); err != nil {
		t.Fatalf("clear missing cart: %v", err)
	}
}

type fakeCacheStore struct {
	data map[string]string
}

func newFakeCacheStore() *fakeCacheStore {
	return &fakeCacheStore{data: make(map[string]string)}
}

func (s *fakeCacheStore) Get(ctx context.Context, key string) (string, error) {
	v, ok := s.data[key]
	if !ok {
		return "", goredis.Nil
	}
	return v, nil
}

func (s *fakeCacheStore) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	s.data[key] = value.(string)
	return nil
}

func (s *fakeCacheStore) Del(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

func (s *fakeCacheStore) PriceKey(pizzaID string) string {
	return "crusto:price:" + pizzaID
}

func (s *fakeCacheStore) AvailabilityKey(pizzaID string) string {
	return "crusto:isAvailable:" + pizzaID
}
