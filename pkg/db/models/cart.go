package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/enums"
)

// Cart holds a user's pending selections. Prices are never stored on the
// cart; every read re-embeds them from the derived-value cache.
type Cart struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	UserID    uuid.UUID  `gorm:"column:user_id;type:uuid;not null"`
	Items     []CartItem `gorm:"foreignKey:CartID"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

// CartItem references a pizza at a chosen size and quantity.
type CartItem struct {
	ID       uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	CartID   uuid.UUID       `gorm:"column:cart_id;type:uuid;not null"`
	PizzaID  uuid.UUID       `gorm:"column:pizza_id;type:uuid;not null"`
	Size     enums.PizzaSize `gorm:"column:size;not null;default:'medium'"`
	Quantity int             `gorm:"column:quantity;not null;default:1"`
}

func (c *Cart) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

func (i *CartItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
