package alerts

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/crustohq/crusto-backend/pkg/logger"
)

// LowStockAlert tells admins an ingredient is running out and how much of the
// menu it affects.
type LowStockAlert struct {
	IngredientID   uuid.UUID `json:"ingredientId"`
	Name           string    `json:"name"`
	Stock          int       `json:"stock"`
	AffectedPizzas int64     `json:"affectedPizzas"`
}

// Notifier delivers admin alerts. Delivery is best effort; callers log and
// move on when it fails.
type Notifier interface {
	NotifyLowStock(ctx context.Context, alert LowStockAlert) error
}

type logNotifier struct {
	logg *logger.Logger
}

// NewLogNotifier emits alerts to the service log. It is the fallback when no
// pubsub topic is configured.
func NewLogNotifier(logg *logger.Logger) (Notifier, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &logNotifier{logg: logg}, nil
}

func (n *logNotifier) NotifyLowStock(ctx context.Context, alert LowStockAlert) error {
	ctx = n.logg.WithFields(ctx, map[string]any{
		"ingredient_id":   alert.IngredientID.String(),
		"ingredient":      alert.Name,
		"stock":           alert.Stock,
		"affected_pizzas": alert.AffectedPizzas,
	})
	n.logg.Warn(ctx, "ingredient stock is running low")
	return nil
}
