package catalog

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreateIngredientInput carries the fields required to add an ingredient.
type CreateIngredientInput struct {
	Name     string          `json:"name" validate:"required"`
	Category string          `json:"category" validate:"required"`
	Price    decimal.Decimal `json:"price"`
	Stock    int             `json:"stock" validate:"min=0"`
}

// UpdateIngredientInput carries the optional fields an ingredient update may
// change. Nil fields are left untouched.
type UpdateIngredientInput struct {
	Name  *string          `json:"name,omitempty"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Stock *int             `json:"stock,omitempty"`
}

// CreatePizzaInput carries the fields required to add a pizza.
type CreatePizzaInput struct {
	Name        string      `json:"name" validate:"required"`
	Description string      `json:"description"`
	Category    string      `json:"category"`
	Badge       *string     `json:"badge,omitempty"`
	BaseID      uuid.UUID   `json:"baseId" validate:"required"`
	SauceID     uuid.UUID   `json:"sauceId" validate:"required"`
	ToppingIDs  []uuid.UUID `json:"toppingIds"`
	CreatedBy   *uuid.UUID  `json:"createdBy,omitempty"`
}

// UpdatePizzaInput carries the optional fields a pizza update may change.
type UpdatePizzaInput struct {
	Name        *string      `json:"name,omitempty"`
	Description *string      `json:"description,omitempty"`
	Category    *string      `json:"category,omitempty"`
	Badge       *string      `json:"badge,omitempty"`
	IsListed    *bool        `json:"isListed,omitempty"`
	BaseID      *uuid.UUID   `json:"baseId,omitempty"`
	SauceID     *uuid.UUID   `json:"sauceId,omitempty"`
	ToppingIDs  *[]uuid.UUID `json:"toppingIds,omitempty"`
}

func (in CreatePizzaInput) ingredientIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2+len(in.ToppingIDs))
	ids = append(ids, in.BaseID, in.SauceID)
	ids = append(ids, in.ToppingIDs...)
	return ids
}
