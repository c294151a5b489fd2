package derived

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/db/models"
	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
	"github.com/crustohq/crusto-backend/pkg/enums"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

// PizzaView is a catalog pizza with its derived values attached.
type PizzaView struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Badge       *string         `json:"badge,omitempty"`
	Price       decimal.Decimal `json:"price"`
	IsAvailable bool            `json:"isAvailable"`
}

// CartItemView is a cart line with size-adjusted pricing attached.
type CartItemView struct {
	ID          uuid.UUID       `json:"id"`
	PizzaID     uuid.UUID       `json:"pizzaId"`
	Name        string          `json:"name"`
	Size        enums.PizzaSize `json:"size"`
	Quantity    int             `json:"quantity"`
	BasePrice   decimal.Decimal `json:"basePrice"`
	TotalPrice  decimal.Decimal `json:"totalPrice"`
	IsAvailable bool            `json:"isAvailable"`
}

// CartView is a cart with every line priced and totalled.
type CartView struct {
	ID             uuid.UUID       `json:"id"`
	UserID         uuid.UUID       `json:"userId"`
	Items          []CartItemView  `json:"items"`
	CartTotalPrice decimal.Decimal `json:"cartTotalPrice"`
}

// Embedder attaches derived values to catalog and cart reads.
type Embedder interface {
	EmbedPizzas(ctx context.Context, pizzas []models.Pizza) ([]PizzaView, error)
	EmbedCart(ctx context.Context, cart *models.Cart) (*CartView, error)
}

type embedder struct {
	cache  Cache
	source CatalogSource
	logg   *logger.Logger
}

// NewEmbedder builds the read-time embedder.
func NewEmbedder(cache Cache, source CatalogSource, logg *logger.Logger) (Embedder, error) {
	if cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	if source == nil {
		return nil, fmt.Errorf("catalog source required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &embedder{cache: cache, source: source, logg: logg}, nil
}

func (e *embedder) EmbedPizzas(ctx context.Context, pizzas []models.Pizza) ([]PizzaView, error) {
	views := make([]PizzaView, 0, len(pizzas))
	for i := range pizzas {
		pizza := &pizzas[i]
		price, err := e.cache.GetPrice(ctx, pizza.ID)
		if err != nil {
			return nil, fmt.Errorf("pricing pizza %s: %w", pizza.ID, err)
		}
		available, err := e.cache.GetAvailability(ctx, pizza.ID)
		if err != nil {
			return nil, fmt.Errorf("checking pizza %s availability: %w", pizza.ID, err)
		}
		views = append(views, PizzaView{
			ID:          pizza.ID,
			Name:        pizza.Name,
			Description: pizza.Description,
			Category:    pizza.Category,
			Badge:       pizza.Badge,
			Price:       price,
			IsAvailable: available,
		})
	}
	return views, nil
}

func (e *embedder) EmbedCart(ctx context.Context, cart *models.Cart) (*CartView, error) {
	if cart == nil {
		return nil, fmt.Errorf("cart required")
	}

	view := &CartView{
		ID:             cart.ID,
		UserID:         cart.UserID,
		Items:          make([]CartItemView, 0, len(cart.Items)),
		CartTotalPrice: decimal.Zero,
	}

	for _, item := range cart.Items {
		pizza, err := e.source.FindPizza(ctx, item.PizzaID)
		if err != nil {
			// Lines pointing at removed pizzas are dropped from the view.
			if errors.Is(err, gorm.ErrRecordNotFound) {
				e.logg.Warn(e.logg.WithPizzaID(ctx, item.PizzaID.String()), "cart line references missing pizza, skipping")
				continue
			}
			return nil, fmt.Errorf("loading cart pizza %s: %w", item.PizzaID, err)
		}

		price, err := e.cache.GetPrice(ctx, item.PizzaID)
		if err != nil {
			if pkgErr := pkgerrors.As(err); pkgErr != nil && pkgErr.Code() == pkgerrors.CodeNotFound {
				e.logg.Warn(e.logg.WithPizzaID(ctx, item.PizzaID.String()), "cart line references missing pizza, skipping")
				continue
			}
			return nil, fmt.Errorf("pricing cart pizza %s: %w", item.PizzaID, err)
		}
		available, err := e.cache.GetAvailability(ctx, item.PizzaID)
		if err != nil {
			return nil, fmt.Errorf("checking cart pizza %s availability: %w", item.PizzaID, err)
		}

		basePrice := price.Mul(SizeMultiplier(item.Size)).Round(2)
		totalPrice := basePrice.Mul(decimal.NewFromInt(int64(item.Quantity))).Round(2)

		view.Items = append(view.Items, CartItemView{
			ID:          item.ID,
			PizzaID:     item.PizzaID,
			Name:        pizza.Name,
			Size:        item.Size,
			Quantity:    item.Quantity,
			BasePrice:   basePrice,
			TotalPrice:  totalPrice,
			IsAvailable: available,
		})
		view.CartTotalPrice = view.CartTotalPrice.Add(totalPrice)
	}

	return view, nil
}
