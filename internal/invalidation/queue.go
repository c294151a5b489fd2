package invalidation

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/enums"
	"github.com/crustohq/crusto-backend/pkg/logger"
)

// Queues is the write surface of the invalidation engine. Every mutation of
// an ingredient funnels through one of these enqueues.
type Queues interface {
	EnqueuePrice(ctx context.Context, ingredientID uuid.UUID) error
	EnqueueAvailability(ctx context.Context, ingredientID uuid.UUID) error
	EnqueuePriceTx(ctx context.Context, tx *gorm.DB, ingredientID uuid.UUID) error
	EnqueueAvailabilityTx(ctx context.Context, tx *gorm.DB, ingredientID uuid.UUID) error
}

type queues struct {
	repo JobRepository
	logg *logger.Logger
}

// NewQueues builds the enqueue service.
func NewQueues(repo JobRepository, logg *logger.Logger) (Queues, error) {
	if repo == nil {
		return nil, fmt.Errorf("job repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &queues{repo: repo, logg: logg}, nil
}

func (q *queues) EnqueuePrice(ctx context.Context, ingredientID uuid.UUID) error {
	return q.enqueue(ctx, q.repo, enums.QueueKindPrice, ingredientID)
}

func (q *queues) EnqueueAvailability(ctx context.Context, ingredientID uuid.UUID) error {
	return q.enqueue(ctx, q.repo, enums.QueueKindAvailability, ingredientID)
}

func (q *queues) EnqueuePriceTx(ctx context.Context, tx *gorm.DB, ingredientID uuid.UUID) error {
	return q.enqueue(ctx, q.repo.WithTx(tx), enums.QueueKindPrice, ingredientID)
}

func (q *queues) EnqueueAvailabilityTx(ctx context.Context, tx *gorm.DB, ingredientID uuid.UUID) error {
	return q.enqueue(ctx, q.repo.WithTx(tx), enums.QueueKindAvailability, ingredientID)
}

func (q *queues) enqueue(ctx context.Context, repo JobRepository, queue enums.QueueKind, ingredientID uuid.UUID) error {
	created, err := repo.Enqueue(ctx, queue, ingredientID)
	if err != nil {
		return fmt.Errorf("enqueue %s invalidation: %w", queue, err)
	}

	ctx = q.logg.WithQueue(ctx, queue.String())
	ctx = q.logg.WithIngredientID(ctx, ingredientID.String())
	if !created {
		q.logg.Info(ctx, "invalidation already pending, deduplicated")
		return nil
	}
	q.logg.Info(ctx, "invalidation enqueued")
	return nil
}
