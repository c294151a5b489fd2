package derived

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/db/models"
	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
	"github.com/crustohq/crusto-backend/pkg/logger"
	"github.com/crustohq/crusto-backend/pkg/redis"
)

const (
	availableFlag   = "1"
	unavailableFlag = "0"
)

// Cache is the only read/write surface for derived pizza values. Callers never
// compute price or availability themselves.
type Cache interface {
	GetPrice(ctx context.Context, pizzaID uuid.UUID) (decimal.Decimal, error)
	GetAvailability(ctx context.Context, pizzaID uuid.UUID) (bool, error)
	RefreshPrice(ctx context.Context, pizzaID uuid.UUID) (decimal.Decimal, error)
	RefreshAvailability(ctx context.Context, pizzaID uuid.UUID) (bool, error)
	Invalidate(ctx context.Context, pizzaID uuid.UUID) error
}

type cache struct {
	store  Store
	source CatalogSource
	logg   *logger.Logger
}

// NewCache builds the derived-value cache accessor.
func NewCache(store Store, source CatalogSource, logg *logger.Logger) (Cache, error) {
	if store == nil {
		return nil, fmt.Errorf("store required")
	}
	if source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &cache{store: store, source: source, logg: logg}, nil
}

func (c *cache) GetPrice(ctx context.Context, pizzaID uuid.UUID) (decimal.Decimal, error) {
	key := c.store.PriceKey(pizzaID.String())
	raw, err := c.store.Get(ctx, key)
	if err == nil {
		price, parseErr := decimal.NewFromString(raw)
		if parseErr == nil {
			return price, nil
		}
		c.logg.Warn(c.logg.WithPizzaID(ctx, pizzaID.String()), "corrupt cached price, recomputing")
		return c.RefreshPrice(ctx, pizzaID)
	}
	if redis.IsNotFound(err) {
		return c.RefreshPrice(ctx, pizzaID)
	}

	// Cache outage: serve the computed value and leave the cache alone.
	c.logg.Error(c.logg.WithPizzaID(ctx, pizzaID.String()), "price cache read failed", err)
	return c.computePrice(ctx, pizzaID)
}

func (c *cache) GetAvailability(ctx context.Context, pizzaID uuid.UUID) (bool, error) {
	key := c.store.AvailabilityKey(pizzaID.String())
	raw, err := c.store.Get(ctx, key)
	if err == nil {
		return raw == availableFlag, nil
	}
	if redis.IsNotFound(err) {
		return c.RefreshAvailability(ctx, pizzaID)
	}

	c.logg.Error(c.logg.WithPizzaID(ctx, pizzaID.String()), "availability cache read failed", err)
	return c.computeAvailability(ctx, pizzaID)
}

func (c *cache) RefreshPrice(ctx context.Context, pizzaID uuid.UUID) (decimal.Decimal, error) {
	key := c.store.PriceKey(pizzaID.String())
	if err := c.store.Del(ctx, key); err != nil {
		return decimal.Zero, fmt.Errorf("dropping stale price: %w", err)
	}
	price, err := c.computePrice(ctx, pizzaID)
	if err != nil {
		return decimal.Zero, err
	}
	if err := c.store.Set(ctx, key, price.StringFixed(2), 0); err != nil {
		return decimal.Zero, fmt.Errorf("storing refreshed price: %w", err)
	}
	return price, nil
}

func (c *cache) RefreshAvailability(ctx context.Context, pizzaID uuid.UUID) (bool, error) {
	key := c.store.AvailabilityKey(pizzaID.String())
	if err := c.store.Del(ctx, key); err != nil {
		return false, fmt.Errorf("dropping stale availability: %w", err)
	}
	available, err := c.computeAvailability(ctx, pizzaID)
	if err != nil {
		return false, err
	}
	flag := unavailableFlag
	if available {
		flag = availableFlag
	}
	if err := c.store.Set(ctx, key, flag, 0); err != nil {
		return false, fmt.Errorf("storing refreshed availability: %w", err)
	}
	return available, nil
}

func (c *cache) Invalidate(ctx context.Context, pizzaID uuid.UUID) error {
	id := pizzaID.String()
	return c.store.Del(ctx, c.store.PriceKey(id), c.store.AvailabilityKey(id))
}

func (c *cache) computePrice(ctx context.Context, pizzaID uuid.UUID) (decimal.Decimal, error) {
	pizza, ingredients, err := c.load(ctx, pizzaID)
	if err != nil {
		return decimal.Zero, err
	}
	return PriceOf(pizza, ingredients), nil
}

func (c *cache) computeAvailability(ctx context.Context, pizzaID uuid.UUID) (bool, error) {
	pizza, ingredients, err := c.load(ctx, pizzaID)
	if err != nil {
		return false, err
	}
	return AvailabilityOf(pizza, ingredients), nil
}

func (c *cache) load(ctx context.Context, pizzaID uuid.UUID) (*models.Pizza, map[uuid.UUID]models.Ingredient, error) {
	pizza, err := c.source.FindPizza(ctx, pizzaID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "pizza not found")
		}
		return nil, nil, fmt.Errorf("loading pizza: %w", err)
	}
	ingredients, err := c.source.FindIngredientsByIDs(ctx, pizza.IngredientIDs())
	if err != nil {
		return nil, nil, fmt.Errorf("loading ingredients: %w", err)
	}
	return pizza, IngredientsByID(ingredients), nil
}
