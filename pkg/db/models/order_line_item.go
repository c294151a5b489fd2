package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/crustohq/crusto-backend/pkg/db/types"
	"github.com/crustohq/crusto-backend/pkg/enums"
)

// OrderLineItem is an immutable snapshot taken at checkout. It stores display
// data only; SelectedIngredients holds resolved names, never ingredient ids.
// Settlement re-resolves the referenced pizza's current ingredient set.
type OrderLineItem struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	OrderID             uuid.UUID          `gorm:"column:order_id;type:uuid;not null" json:"orderId"`
	PizzaID             uuid.UUID          `gorm:"column:pizza_id;type:uuid;not null" json:"pizzaId"`
	Name                string             `gorm:"column:name;not null" json:"name"`
	Category            string             `gorm:"column:category;not null" json:"category"`
	SelectedIngredients dbtypes.StringList `gorm:"column:selected_ingredients" json:"selectedIngredients"`
	Size                enums.PizzaSize    `gorm:"column:size;not null" json:"size"`
	Quantity            int                `gorm:"column:quantity;not null;default:1" json:"quantity"`
	TotalPrice          decimal.Decimal    `gorm:"column:total_price;type:numeric(10,2);not null" json:"totalPrice"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
}

func (i *OrderLineItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
