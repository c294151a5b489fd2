package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/enums"
)

// Order is the fulfillment aggregate. SettledAt marks that the stock
// settlement for this order has run; it is set inside the settlement
// transaction so a duplicate delivery event cannot settle twice.
type Order struct {
	ID         uuid.UUID         `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID     uuid.UUID         `gorm:"column:user_id;type:uuid;not null" json:"userId"`
	Status     enums.OrderStatus `gorm:"column:status;not null;default:'pending'" json:"status"`
	OrderTotal decimal.Decimal   `gorm:"column:order_total;type:numeric(10,2);not null" json:"orderTotal"`
	Items      []OrderLineItem   `gorm:"foreignKey:OrderID" json:"items"`
	SettledAt  *time.Time        `gorm:"column:settled_at" json:"settledAt,omitempty"`
	OrderedOn  time.Time         `gorm:"column:ordered_on;autoCreateTime" json:"orderedOn"`
	UpdatedAt  time.Time         `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
