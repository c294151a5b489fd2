package enums

import "fmt"

// IngredientCategory represents the role an ingredient can play on a pizza.
type IngredientCategory string

const (
	IngredientCategoryBase   IngredientCategory = "base"
	IngredientCategorySauce  IngredientCategory = "sauce"
	IngredientCategoryCheese IngredientCategory = "cheese"
	IngredientCategoryVeggie IngredientCategory = "veggie"
	IngredientCategoryExtra  IngredientCategory = "extra"
)

var validIngredientCategories = []IngredientCategory{
	IngredientCategoryBase,
	IngredientCategorySauce,
	IngredientCategoryCheese,
	IngredientCategoryVeggie,
	IngredientCategoryExtra,
}

// String implements fmt.Stringer.
func (c IngredientCategory) String() string {
	return string(c)
}

// IsValid reports whether the value is a known IngredientCategory.
func (c IngredientCategory) IsValid() bool {
	for _, candidate := range validIngredientCategories {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseIngredientCategory converts raw input into an IngredientCategory.
func ParseIngredientCategory(value string) (IngredientCategory, error) {
	for _, candidate := range validIngredientCategories {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid ingredient category %q", value)
}
