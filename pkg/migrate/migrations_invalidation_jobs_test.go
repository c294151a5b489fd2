package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/crustohq/crusto-backend/pkg/migrate"
)

func TestInvalidationJobsMigrationDedupesPendingJobs(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_invalidation_jobs.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no invalidation jobs migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS invalidation_jobs",
		"CREATE UNIQUE INDEX IF NOT EXISTS uq_invalidation_jobs_pending",
		"WHERE status = 'pending'",
		"CHECK (queue IN ('price', 'availability'))",
		"DROP TABLE IF EXISTS invalidation_jobs",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestMigrationDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("migrations dir failed validation: %v", err)
	}
}
