package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/crustohq/crusto-backend/pkg/logger"
)

const defaultFailedJobRetentionDays = 7

// failedJobStore is the slice of the invalidation job repository the
// retention job needs.
type failedJobStore interface {
	DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// FailedJobRetentionParams configure the failed invalidation job cleanup.
type FailedJobRetentionParams struct {
	Logger        *logger.Logger
	Jobs          failedJobStore
	RetentionDays int
}

// NewFailedJobRetentionJob purges invalidation jobs that exhausted their
// attempts and have sat in the failed state past the retention window.
// Failed jobs are kept around for operator inspection, not forever.
func NewFailedJobRetentionJob(params FailedJobRetentionParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Jobs == nil {
		return nil, fmt.Errorf("job store required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultFailedJobRetentionDays
	}
	return &failedJobRetentionJob{
		logg:      params.Logger,
		jobs:      params.Jobs,
		retention: retention,
		now:       time.Now,
	}, nil
}

type failedJobRetentionJob struct {
	logg      *logger.Logger
	jobs      failedJobStore
	retention int
	now       func() time.Time
}

func (j *failedJobRetentionJob) Name() string { return "failed-job-retention" }

func (j *failedJobRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-time.Duration(j.retention) * 24 * time.Hour)
	deleted, err := j.jobs.DeleteFailedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed job retention: %w", err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "failed invalidation job cleanup complete")
	return nil
}
