package alerts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/crustohq/crusto-backend/pkg/logger"
)

const publishTimeout = 15 * time.Second

type publisher interface {
	Publish(ctx context.Context, msg *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(ctx context.Context) (string, error)
}

type gcpPublisher struct {
	pub *gcppubsub.Publisher
}

func (g gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return g.pub.Publish(ctx, msg)
}

type pubsubNotifier struct {
	publisher publisher
	logg      *logger.Logger
}

// NewPubSubNotifier delivers alerts to the configured admin topic.
func NewPubSubNotifier(pub *gcppubsub.Publisher, logg *logger.Logger) (Notifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	return newPubSubNotifier(gcpPublisher{pub: pub}, logg)
}

func newPubSubNotifier(pub publisher, logg *logger.Logger) (Notifier, error) {
	if pub == nil {
		return nil, fmt.Errorf("publisher required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &pubsubNotifier{publisher: pub, logg: logg}, nil
}

func (n *pubsubNotifier) NotifyLowStock(ctx context.Context, alert LowStockAlert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encoding low-stock alert: %w", err)
	}

	msg := &gcppubsub.Message{
		Data: payload,
		Attributes: map[string]string{
			"alert_type":    "low_stock",
			"ingredient_id": alert.IngredientID.String(),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := n.publisher.Publish(publishCtx, msg)
	if result == nil {
		return fmt.Errorf("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publishing low-stock alert: %w", err)
	}

	n.logg.Info(n.logg.WithIngredientID(ctx, alert.IngredientID.String()), "low-stock alert published")
	return nil
}
