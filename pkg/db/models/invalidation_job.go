package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/crustohq/crusto-backend/pkg/enums"
)

// InvalidationJob is a durable unit of derived-value recomputation work.
// A partial unique index on (queue, ingredient_id) for pending rows makes the
// enqueue a no-op while a job for the same ingredient is already waiting.
// Successful jobs are deleted; jobs that exhaust their attempts are kept with
// status 'failed' for operator inspection.
type InvalidationJob struct {
	ID            uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Queue         enums.QueueKind `gorm:"column:queue;not null"`
	IngredientID  uuid.UUID       `gorm:"column:ingredient_id;type:uuid;not null"`
	Status        enums.JobStatus `gorm:"column:status;not null;default:'pending'"`
	AttemptCount  int             `gorm:"column:attempt_count;not null;default:0"`
	NextAttemptAt time.Time       `gorm:"column:next_attempt_at;not null"`
	LastError     *string         `gorm:"column:last_error"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (j *InvalidationJob) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.NextAttemptAt.IsZero() {
		j.NextAttemptAt = time.Now().UTC()
	}
	return nil
}

// JobKey is the deterministic deduplication key for an ingredient's pending
// job, mirrored in log output.
func (j *InvalidationJob) JobKey() string {
	return "ingredient:" + j.IngredientID.String()
}
