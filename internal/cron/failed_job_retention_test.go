package cron

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeFailedJobStore struct {
	lastCutoff time.Time
	calls      int
	err        error
}

func (f *fakeFailedJobStore) DeleteFailedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.calls++
	f.lastCutoff = cutoff
	if f.err != nil {
		return 0, f.err
	}
	return 3, nil
}

func TestFailedJobRetentionUsesRetentionCutoff(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	store := &fakeFailedJobStore{}
	jobIface, err := NewFailedJobRetentionJob(FailedJobRetentionParams{
		Logger: testLogger(),
		Jobs:   store,
	})
	if err != nil {
		t.Fatalf("NewFailedJobRetentionJob: %v", err)
	}
	job := jobIface.(*failedJobRetentionJob)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	expected := now.Add(-defaultFailedJobRetentionDays * 24 * time.Hour)
	if !store.lastCutoff.Equal(expected) {
		t.Fatalf("expected cutoff %s, got %s", expected, store.lastCutoff)
	}
	if store.calls != 1 {
		t.Fatalf("expected one delete call, got %d", store.calls)
	}
}

func TestFailedJobRetentionPropagatesError(t *testing.T) {
	t.Parallel()

	store := &fakeFailedJobStore{err: errors.New("boom")}
	job, err := NewFailedJobRetentionJob(FailedJobRetentionParams{
		Logger: testLogger(),
		Jobs:   store,
	})
	if err != nil {
		t.Fatalf("NewFailedJobRetentionJob: %v", err)
	}
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewFailedJobRetentionJobValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewFailedJobRetentionJob(FailedJobRetentionParams{Jobs: &fakeFailedJobStore{}}); err == nil {
		t.Fatal("expected error for missing logger")
	}
	if _, err := NewFailedJobRetentionJob(FailedJobRetentionParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error for missing job store")
	}
}
