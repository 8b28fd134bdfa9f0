package main

import (
	"testing"

	"leadgen-engine/internal/config"
	"leadgen-engine/internal/domain"
)

func TestRunExitCode(t *testing.T) {
	clean := domain.NewRunStats()
	if got := runExitCode(clean); got != 0 {
		t.Errorf("clean run exit code = %d, want 0", got)
	}

	partial := domain.NewRunStats()
	partial.SourceFailures["finn"] = "403 blocked"
	if got := runExitCode(partial); got != 2 {
		t.Errorf("partial-failure exit code = %d, want 2", got)
	}

	flaky := domain.NewRunStats()
	flaky.EntityFailures = 1
	if got := runExitCode(flaky); got != 2 {
		t.Errorf("entity-failure exit code = %d, want 2", got)
	}
}

// The lock must be released when the command returns, even on a partial
// failure, so the next run isn't blocked by a finished one.
func TestRunLockReleasedOnUnlock(t *testing.T) {
	var cfg config.Config
	cfg.App.DataDir = t.TempDir()

	lock, err := acquireRunLock(cfg)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := acquireRunLock(cfg); err == nil {
		t.Fatal("second acquire succeeded while lock held")
	}

	if err := lock.Unlock(); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	again, err := acquireRunLock(cfg)
	if err != nil {
		t.Fatalf("re-acquire after unlock: %v", err)
	}
	_ = again.Unlock()
}
