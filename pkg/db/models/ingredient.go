package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/enums"
)

// Ingredient is the authoritative record for a pizza component. IsAvailable is
// derived from Stock and must never be written independently of it.
type Ingredient struct {
	ID          uuid.UUID                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name        string                   `gorm:"column:name;not null" json:"name"`
	Category    enums.IngredientCategory `gorm:"column:category;not null" json:"category"`
	Price       decimal.Decimal          `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	Stock       int                      `gorm:"column:stock;not null;default:0" json:"stock"`
	IsAvailable bool                     `gorm:"column:is_available;not null;default:false" json:"isAvailable"`
	IsDeleted   bool                     `gorm:"column:is_deleted;not null;default:false" json:"isDeleted"`
	CreatedAt   time.Time                `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time                `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate assigns an id and normalizes derived state: stock is floored at
// zero and availability always follows stock.
func (i *Ingredient) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	if i.Stock < 0 {
		i.Stock = 0
	}
	i.IsAvailable = i.Stock > 0
	return nil
}
