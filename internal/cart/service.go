package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/internal/derived"
	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

// pizzaFinder checks pizza references before they enter a cart.
type pizzaFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Pizza, error)
}

// AddItemInput adds a pizza at a chosen size to the user's cart. Adding the
// same pizza and size again bumps the quantity.
type AddItemInput struct {
	UserID   uuid.UUID `json:"userId"`
	PizzaID  uuid.UUID `json:"pizzaId"`
	Size     string    `json:"size"`
	Quantity int       `json:"quantity"`
}

// Service exposes cart writes and the embedded cart read.
type Service interface {
	GetCart(ctx context.Context, userID uuid.UUID) (*derived.CartView, error)
	AddItem(ctx context.Context, input AddItemInput) (*derived.CartView, error)
	UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*derived.CartView, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*derived.CartView, error)
	ClearCart(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo     Repository
	pizzas   pizzaFinder
	embedder derived.Embedder
	logg     *logger.Logger
}

// NewService builds the cart service with the required dependencies.
func NewService(repo Repository, pizzas pizzaFinder, embedder derived.Embedder, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if pizzas == nil {
		return nil, fmt.Errorf("pizza finder required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, pizzas: pizzas, embedder: embedder, logg: logg}, nil
}

func (s *service) GetCart(ctx context.Context, userID uuid.UUID) (*derived.CartView, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	cart, err := s.repo.FindOrCreateByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.embedder.EmbedCart(ctx, cart)
}

func (s *service) AddItem(ctx context.Context, input AddItemInput) (*derived.CartView, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if input.PizzaID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pizza id required")
	}
	if input.Quantity < 1 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be at least 1")
	}
	size, err := enums.ParsePizzaSize(input.Size)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, err.Error())
	}

	if _, err := s.pizzas.FindByID(ctx, input.PizzaID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "pizza not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pizza")
	}

	cart, err := s.repo.FindOrCreateByUser(ctx, input.UserID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	item := &models.CartItem{
		CartID:   cart.ID,
		PizzaID:  input.PizzaID,
		Size:     size,
		Quantity: input.Quantity,
	}
	if err := s.repo.UpsertItem(ctx, item); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
	}
	return s.reload(ctx, input.UserID)
}

func (s *service) UpdateItemQuantity(ctx context.Context, userID, itemID uuid.UUID, quantity int) (*derived.CartView, error) {
	if quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}

	// Quantity zero removes the line entirely.
	if quantity == 0 {
		err = s.repo.RemoveItem(ctx, item.ID)
	} else {
		err = s.repo.UpdateItemQuantity(ctx, item.ID, quantity)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}
	return s.reload(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*derived.CartView, error) {
	item, err := s.ownedItem(ctx, userID, itemID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.RemoveItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}
	return s.reload(ctx, userID)
}

func (s *service) ClearCart(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := s.repo.Clear(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// ownedItem resolves a cart item and verifies it belongs to the user's cart.
func (s *service) ownedItem(ctx context.Context, userID, itemID uuid.UUID) (*models.CartItem, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return &cart.Items[i], nil
		}
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
}

func (s *service) reload(ctx context.Context, userID uuid.UUID) (*derived.CartView, error) {
	cart, err := s.repo.FindByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return s.embedder.EmbedCart(ctx, cart)
}
