package catalog

import (
	"context"

	"github.com/google/uuid"

	"github.com/crustohq/crusto-backend/pkg/db/models"
)

// Source adapts the catalog repositories to the loaders the derived-value
// cache computes from.
type Source struct {
	ingredients IngredientRepository
	pizzas      PizzaRepository
}

// NewSource builds a catalog-backed derived-value source.
func NewSource(ingredients IngredientRepository, pizzas PizzaRepository) *Source {
	return &Source{ingredients: ingredients, pizzas: pizzas}
}

func (s *Source) FindPizza(ctx context.Context, id uuid.UUID) (*models.Pizza, error) {
	return s.pizzas.FindByID(ctx, id)
}

func (s *Source) FindIngredientsByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Ingredient, error) {
	return s.ingredients.FindByIDs(ctx, ids)
}
