package settlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
	pkgerrors "github.com/crustohq/crusto-backend/pkg/errors"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type availabilityEnqueuer interface {
	EnqueueAvailabilityTx(ctx context.Context, tx *gorm.DB, ingredientID uuid.UUID) error
}

// Result summarizes one stock settlement.
type Result struct {
	IngredientsProcessed int `json:"ingredientsProcessed"`
	IngredientsUpdated   int `json:"ingredientsUpdated"`
	ZeroStockCount       int `json:"zeroStockCount"`
}

// Service decrements ingredient stock for a delivered order. A settlement
// runs exactly once per order and never drives stock below zero.
type Service interface {
	SettleOrderStock(ctx context.Context, orderID uuid.UUID) (*Result, error)
	// SettleOrderStockTx joins the caller's transaction so a failed
	// settlement also rolls back the caller's writes.
	SettleOrderStockTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*Result, error)
}

type service struct {
	tx     txRunner
	queues availabilityEnqueuer
	logg   *logger.Logger
}

// NewService builds the settlement service.
func NewService(tx txRunner, queues availabilityEnqueuer, logg *logger.Logger) (Service, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if queues == nil {
		return nil, fmt.Errorf("invalidation queues required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{tx: tx, queues: queues, logg: logg}, nil
}

func (s *service) SettleOrderStock(ctx context.Context, orderID uuid.UUID) (*Result, error) {
	var result *Result
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		r, err := s.SettleOrderStockTx(ctx, tx, orderID)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) SettleOrderStockTx(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (*Result, error) {
	if tx == nil {
		return nil, fmt.Errorf("transaction required")
	}
	ctx = s.logg.WithField(ctx, "order_id", orderID.String())

	// Claiming the settled marker first makes the settlement once-only even
	// under concurrent delivery callbacks. The status guard re-confirms the
	// order is actually delivered before any stock moves.
	claim := tx.Model(&models.Order{}).
		Where("id = ? AND status = ? AND settled_at IS NULL", orderID, enums.OrderStatusDelivered).
		Update("settled_at", time.Now().UTC())
	if claim.Error != nil {
		return nil, fmt.Errorf("claiming settlement: %w", claim.Error)
	}
	if claim.RowsAffected == 0 {
		var order models.Order
		err := tx.Where("id = ?", orderID).First(&order).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if err != nil {
			return nil, fmt.Errorf("loading order: %w", err)
		}
		if order.Status != enums.OrderStatusDelivered {
			return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order not delivered")
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order stock already settled")
	}

	required, err := s.requiredQuantities(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	if len(required) == 0 {
		// Nothing to attribute means the settlement cannot run; rolling back
		// also releases the settled marker.
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order has no ingredients to settle")
	}

	result := &Result{}
	ids := make([]uuid.UUID, 0, len(required))
	for id := range required {
		ids = append(ids, id)
	}
	var ingredients []models.Ingredient
	if err := tx.Where("id IN ?", ids).Find(&ingredients).Error; err != nil {
		return nil, fmt.Errorf("loading ingredients: %w", err)
	}
	result.IngredientsProcessed = len(ingredients)

	for _, ingredient := range ingredients {
		qty := required[ingredient.ID]
		if qty <= 0 {
			continue
		}

		// Both SET expressions read the pre-update stock, so availability
		// lands exactly on whether any stock remains.
		update := tx.Model(&models.Ingredient{}).
			Where("id = ? AND stock > 0", ingredient.ID).
			Updates(map[string]any{
				"stock":        gorm.Expr("CASE WHEN stock > ? THEN stock - ? ELSE 0 END", qty, qty),
				"is_available": gorm.Expr("stock > ?", qty),
			})
		if update.Error != nil {
			return nil, fmt.Errorf("settling ingredient %s: %w", ingredient.ID, update.Error)
		}
		if update.RowsAffected == 0 {
			continue
		}
		result.IngredientsUpdated++

		var after models.Ingredient
		if err := tx.Where("id = ?", ingredient.ID).First(&after).Error; err != nil {
			return nil, fmt.Errorf("reloading ingredient %s: %w", ingredient.ID, err)
		}
		if after.Stock == 0 {
			result.ZeroStockCount++
			if err := s.queues.EnqueueAvailabilityTx(ctx, tx, ingredient.ID); err != nil {
				return nil, fmt.Errorf("enqueue availability invalidation: %w", err)
			}
		}
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"ingredients_processed": result.IngredientsProcessed,
		"ingredients_updated":   result.IngredientsUpdated,
		"zero_stock_count":      result.ZeroStockCount,
	}), "order stock settled")
	return result, nil
}

// requiredQuantities aggregates how many units of each ingredient the order
// consumed: one per occurrence on the pizza, times the line quantity.
func (s *service) requiredQuantities(ctx context.Context, tx *gorm.DB, orderID uuid.UUID) (map[uuid.UUID]int, error) {
	var lines []models.OrderLineItem
	err := tx.Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&lines).Error
	if err != nil {
		return nil, fmt.Errorf("loading order lines: %w", err)
	}

	required := map[uuid.UUID]int{}
	for _, line := range lines {
		var pizza models.Pizza
		err := tx.Preload("Toppings").Where("id = ?", line.PizzaID).First(&pizza).Error
		if err != nil {
			// The pizza may have been removed since the order was placed;
			// its stock cannot be attributed, so the line is skipped.
			if errors.Is(err, gorm.ErrRecordNotFound) {
				s.logg.Warn(s.logg.WithPizzaID(ctx, line.PizzaID.String()), "order line references missing pizza, skipping")
				continue
			}
			return nil, fmt.Errorf("loading pizza %s: %w", line.PizzaID, err)
		}
		for _, ingredientID := range pizza.IngredientIDs() {
			required[ingredientID] += line.Quantity
		}
	}
	return required, nil
}
