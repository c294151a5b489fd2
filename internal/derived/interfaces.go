package derived

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/crustohq/crusto-backend/pkg/db/models"
)

// Store is the slice of the redis client the cache accessor needs.
type Store interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	PriceKey(pizzaID string) string
	AvailabilityKey(pizzaID string) string
}

// CatalogSource loads the authoritative rows the derived values are computed
// from.
type CatalogSource interface {
	FindPizza(ctx context.Context, id uuid.UUID) (*models.Pizza, error)
	FindIngredientsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Ingredient, error)
}
