package derived

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
)

var sizeMultipliers = map[enums.PizzaSize]decimal.Decimal{
	enums.PizzaSizeSmall:  decimal.NewFromInt(1),
	enums.PizzaSizeMedium: decimal.RequireFromString("1.5"),
	enums.PizzaSizeLarge:  decimal.NewFromInt(2),
}

// SizeMultiplier returns the price multiplier for a pizza size. Unknown sizes
// fall back to the small multiplier of 1.
func SizeMultiplier(size enums.PizzaSize) decimal.Decimal {
	if m, ok := sizeMultipliers[size]; ok {
		return m
	}
	return decimal.NewFromInt(1)
}

// PriceOf sums the prices of the distinct ingredients the pizza references,
// rounded to two decimal places. An ingredient repeated across the base,
// sauce and topping slots is priced once. A dangling reference contributes
// nothing to the sum. Soft-deleted ingredients are still priced; deletion
// only affects availability, so price caches are not invalidated for it.
func PriceOf(pizza *models.Pizza, ingredients map[uuid.UUID]models.Ingredient) decimal.Decimal {
	total := decimal.Zero
	seen := make(map[uuid.UUID]struct{})
	for _, id := range pizza.IngredientIDs() {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		ingredient, ok := ingredients[id]
		if !ok {
			continue
		}
		total = total.Add(ingredient.Price)
	}
	return total.Round(2)
}

// AvailabilityOf reports whether every ingredient occurrence the pizza
// references resolves to an available, non-deleted ingredient. A dangling
// reference makes the pizza unavailable.
func AvailabilityOf(pizza *models.Pizza, ingredients map[uuid.UUID]models.Ingredient) bool {
	for _, id := range pizza.IngredientIDs() {
		ingredient, ok := ingredients[id]
		if !ok || ingredient.IsDeleted || !ingredient.IsAvailable {
			return false
		}
	}
	return true
}

// IngredientsByID indexes ingredients for the calculator lookups.
func IngredientsByID(ingredients []models.Ingredient) map[uuid.UUID]models.Ingredient {
	byID := make(map[uuid.UUID]models.Ingredient, len(ingredients))
	for _, ingredient := range ingredients {
		byID[ingredient.ID] = ingredient
	}
	return byID
}
