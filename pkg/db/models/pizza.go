package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/enums"
)

// Pizza is a catalog entry. It never stores price or availability; both are
// derived from its ingredients and live only in the cache.
type Pizza struct {
	ID          uuid.UUID  `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string     `gorm:"column:name;not null" json:"name"`
	Description string     `gorm:"column:description;not null;default:''" json:"description"`
	Category    string     `gorm:"column:category;not null" json:"category"`
	Badge       *string    `gorm:"column:badge" json:"badge,omitempty"`
	IsListed    bool       `gorm:"column:is_listed;not null;default:true" json:"isListed"`
	CreatedBy   *uuid.UUID `gorm:"column:created_by;type:uuid" json:"createdBy,omitempty"`

	BaseID   uuid.UUID      `gorm:"column:base_id;type:uuid;not null" json:"baseId"`
	SauceID  uuid.UUID      `gorm:"column:sauce_id;type:uuid;not null" json:"sauceId"`
	Toppings []PizzaTopping `gorm:"foreignKey:PizzaID" json:"toppings"`

	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// PizzaTopping joins a pizza to a cheese/veggie/extra ingredient.
type PizzaTopping struct {
	PizzaID      uuid.UUID                `gorm:"column:pizza_id;type:uuid;primaryKey" json:"pizzaId"`
	IngredientID uuid.UUID                `gorm:"column:ingredient_id;type:uuid;primaryKey" json:"ingredientId"`
	Role         enums.IngredientCategory `gorm:"column:role;not null" json:"role"`
	Position     int                      `gorm:"column:position;not null;default:0" json:"position"`
}

func (PizzaTopping) TableName() string {
	return "pizza_toppings"
}

func (p *Pizza) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// IngredientIDs lists every referenced ingredient id: base, sauce, then
// toppings in stored order. Duplicates are preserved as occurrences.
func (p *Pizza) IngredientIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, 2+len(p.Toppings))
	ids = append(ids, p.BaseID, p.SauceID)
	for _, topping := range p.Toppings {
		ids = append(ids, topping.IngredientID)
	}
	return ids
}
