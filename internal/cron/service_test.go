package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/crustohq/crusto-backend/pkg/logger"
)

type recordingJob struct {
	name string
	runs int
	err  error
}

func (j *recordingJob) Name() string { return j.name }

func (j *recordingJob) Run(ctx context.Context) error {
	j.runs++
	return j.err
}

type fakeLock struct {
	locked   bool
	acquires int
	releases int
	err      error
}

func (l *fakeLock) Acquire(ctx context.Context) (bool, error) {
	l.acquires++
	if l.err != nil {
		return false, l.err
	}
	return !l.locked, nil
}

func (l *fakeLock) Release(ctx context.Context) error {
	l.releases++
	return nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func TestServiceRunsJobsOnce(t *testing.T) {
	t.Parallel()

	job := &recordingJob{name: "a"}
	failing := &recordingJob{name: "b", err: errors.New("boom")}
	after := &recordingJob{name: "c"}
	lock := &fakeLock{}

	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job, failing, after),
		Lock:     lock,
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 1 || failing.runs != 1 || after.runs != 1 {
		t.Fatalf("expected every job to run once, got %d/%d/%d", job.runs, failing.runs, after.runs)
	}
	if lock.releases != 1 {
		t.Fatalf("expected one lock release, got %d", lock.releases)
	}
}

func TestServiceSkipsCycleWhenLockHeld(t *testing.T) {
	t.Parallel()

	job := &recordingJob{name: "a"}
	lock := &fakeLock{locked: true}

	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     lock,
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := service.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected no runs while lock is held, got %d", job.runs)
	}
	if lock.releases != 0 {
		t.Fatalf("expected no release when lock not acquired, got %d", lock.releases)
	}
}

func TestServiceRunStopsOnContextCancel(t *testing.T) {
	t.Parallel()

	job := &recordingJob{name: "a"}
	service, err := NewService(ServiceParams{
		Logger:   testLogger(),
		Registry: NewRegistry(job),
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- service.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
	if job.runs != 1 {
		t.Fatalf("expected the initial cycle to run once, got %d", job.runs)
	}
}

func TestNewServiceValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewService(ServiceParams{Lock: &fakeLock{}}); err == nil {
		t.Fatal("expected error for missing logger")
	}
	if _, err := NewService(ServiceParams{Logger: testLogger()}); err == nil {
		t.Fatal("expected error for missing lock")
	}
	service, err := NewService(ServiceParams{Logger: testLogger(), Lock: &fakeLock{}})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	if service.interval != defaultInterval {
		t.Fatalf("expected default interval %s, got %s", defaultInterval, service.interval)
	}
}
