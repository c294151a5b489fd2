package cart

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
)

// Repository defines persistence operations for carts and cart items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindOrCreateByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindByUser(ctx context.Context, userID uuid.UUID) (*models.Cart, error)
	FindItem(ctx context.Context, cartID, pizzaID uuid.UUID, size enums.PizzaSize) (*models.CartItem, error)
	UpsertItem(ctx context.Context, item *models.CartItem) error
	UpdateItemQuantity(ctx context.Context, itemID uuid.UUID, quantity int) error
	RemoveItem(ctx context.Context, itemID uuid.UUID) error
	Clear(ctx context.Context, cartID uuid.UUID) error
}
