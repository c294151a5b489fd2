package catalog

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/db/models"
)

// IngredientRepository defines persistence operations for ingredients.
type IngredientRepository interface {
	WithTx(tx *gorm.DB) IngredientRepository
	Create(ctx context.Context, ingredient *models.Ingredient) (*models.Ingredient, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ingredient, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Ingredient, error)
	List(ctx context.Context, includeDeleted bool) ([]models.Ingredient, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	SetStock(ctx context.Context, id uuid.UUID, stock int) error
	SetDeleted(ctx context.Context, id uuid.UUID, deleted bool) error
	// ListLowStock returns live ingredients at or below the stock threshold,
	// lowest stock first.
	ListLowStock(ctx context.Context, threshold int) ([]models.Ingredient, error)
}

// PizzaRepository defines persistence operations for pizzas and their
// topping links.
type PizzaRepository interface {
	WithTx(tx *gorm.DB) PizzaRepository
	Create(ctx context.Context, pizza *models.Pizza) (*models.Pizza, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Pizza, error)
	List(ctx context.Context) ([]models.Pizza, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	ReplaceToppings(ctx context.Context, pizzaID uuid.UUID, toppings []models.PizzaTopping) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindReferencing(ctx context.Context, ingredientID uuid.UUID) ([]models.Pizza, error)
	CountReferencing(ctx context.Context, ingredientID uuid.UUID) (int64, error)
}
