package invalidation

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/crustohq/crusto-backend/pkg/db/models"
	"github.com/crustohq/crusto-backend/pkg/enums"
)

// JobRepository defines persistence operations for the durable invalidation
// queues.
type JobRepository interface {
	WithTx(tx *gorm.DB) JobRepository
	// Enqueue inserts a pending job unless one already waits for the same
	// ingredient on the same queue. It reports whether a row was created.
	Enqueue(ctx context.Context, queue enums.QueueKind, ingredientID uuid.UUID) (bool, error)
	// ClaimDue moves up to limit due pending jobs to processing and bumps
	// their attempt count. Claims are ordered oldest-first.
	ClaimDue(ctx context.Context, queue enums.QueueKind, limit int, now time.Time) ([]models.InvalidationJob, error)
	CountPending(ctx context.Context, queue enums.QueueKind) (int64, error)
	// MarkDone removes a completed job; finished work is not retained.
	MarkDone(ctx context.Context, jobID uuid.UUID) error
	// MarkRetry returns the job to pending, due again at nextAttemptAt.
	MarkRetry(ctx context.Context, jobID uuid.UUID, nextAttemptAt time.Time, lastError error) error
	// MarkFailed parks the job permanently for operator inspection.
	MarkFailed(ctx context.Context, jobID uuid.UUID, lastError error) error
	ListFailed(ctx context.Context, queue enums.QueueKind) ([]models.InvalidationJob, error)
	// DeleteFailedBefore purges failed jobs last touched before the cutoff
	// and reports how many rows were removed.
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository builds a job repository bound to the provided DB.
func NewJobRepository(db *gorm.DB) JobRepository {
	return &jobRepository{db: db}
}

func (r *jobRepository) WithTx(tx *gorm.DB) JobRepository {
	if tx == nil {
		return r
	}
	return &jobRepository{db: tx}
}

func (r *jobRepository) Enqueue(ctx context.Context, queue enums.QueueKind, ingredientID uuid.UUID) (bool, error) {
	db := r.db.WithContext(ctx)

	// Cheap pre-check; the partial unique index on pending rows closes the
	// race between concurrent writers.
	var pending int64
	err := db.Model(&models.InvalidationJob{}).
		Where("queue = ? AND ingredient_id = ? AND status = ?", queue, ingredientID, enums.JobStatusPending).
		Count(&pending).Error
	if err != nil {
		return false, err
	}
	if pending > 0 {
		return false, nil
	}

	job := models.InvalidationJob{
		Queue:        queue,
		IngredientID: ingredientID,
		Status:       enums.JobStatusPending,
	}
	result := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&job)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *jobRepository) ClaimDue(ctx context.Context, queue enums.QueueKind, limit int, now time.Time) ([]models.InvalidationJob, error) {
	var claimed []models.InvalidationJob
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		query := tx.
			Where("queue = ? AND status = ? AND next_attempt_at <= ?", queue, enums.JobStatusPending, now).
			Order("next_attempt_at ASC").
			Limit(limit)
		// SKIP LOCKED keeps concurrent workers from claiming the same rows;
		// sqlite (tests) serializes writers and has no row locks.
		if tx.Dialector.Name() == "postgres" {
			query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
		}
		if err := query.Find(&claimed).Error; err != nil {
			return err
		}
		if len(claimed) == 0 {
			return nil
		}

		ids := make([]uuid.UUID, 0, len(claimed))
		for _, job := range claimed {
			ids = append(ids, job.ID)
		}
		err := tx.Model(&models.InvalidationJob{}).
			Where("id IN ?", ids).
			Updates(map[string]any{
				"status":        enums.JobStatusProcessing,
				"attempt_count": gorm.Expr("attempt_count + 1"),
			}).Error
		if err != nil {
			return err
		}
		for i := range claimed {
			claimed[i].Status = enums.JobStatusProcessing
			claimed[i].AttemptCount++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return claimed, nil
}

func (r *jobRepository) CountPending(ctx context.Context, queue enums.QueueKind) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.InvalidationJob{}).
		Where("queue = ? AND status = ?", queue, enums.JobStatusPending).
		Count(&count).Error
	return count, err
}

func (r *jobRepository) MarkDone(ctx context.Context, jobID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Where("id = ?", jobID).
		Delete(&models.InvalidationJob{}).Error
}

func (r *jobRepository) MarkRetry(ctx context.Context, jobID uuid.UUID, nextAttemptAt time.Time, lastError error) error {
	return r.db.WithContext(ctx).
		Model(&models.InvalidationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":          enums.JobStatusPending,
			"next_attempt_at": nextAttemptAt,
			"last_error":      errorMessage(lastError),
		}).Error
}

func (r *jobRepository) MarkFailed(ctx context.Context, jobID uuid.UUID, lastError error) error {
	return r.db.WithContext(ctx).
		Model(&models.InvalidationJob{}).
		Where("id = ?", jobID).
		Updates(map[string]any{
			"status":     enums.JobStatusFailed,
			"last_error": errorMessage(lastError),
		}).Error
}

func (r *jobRepository) ListFailed(ctx context.Context, queue enums.QueueKind) ([]models.InvalidationJob, error) {
	var jobs []models.InvalidationJob
	err := r.db.WithContext(ctx).
		Where("queue = ? AND status = ?", queue, enums.JobStatusFailed).
		Order("updated_at ASC").
		Find(&jobs).Error
	if err != nil {
		return nil, err
	}
	return jobs, nil
}

func (r *jobRepository) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", enums.JobStatusFailed, cutoff).
		Delete(&models.InvalidationJob{})
	return result.RowsAffected, result.Error
}

func errorMessage(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}
