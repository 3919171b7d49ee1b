package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("NATS_SUBJECT", "")
	t.Setenv("OVERDUE_SCAN_SCHEDULE", "")
	t.Setenv("API_BACKPRESSURE_WAIT", "")
	t.Setenv("HISTORY_REDRIVE_SCHEDULE", "")
	t.Setenv("HISTORY_REDRIVE_BATCH", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StorageDriver != StorageDriverPostgres {
		t.Fatalf("expected default storage driver postgres, got %q", cfg.StorageDriver)
	}
	if cfg.NATSSubject != "profiles.history" {
		t.Fatalf("expected default subject profiles.history, got %q", cfg.NATSSubject)
	}
	if cfg.OverdueScanSchedule != "@every 15m" {
		t.Fatalf("expected default overdue schedule, got %q", cfg.OverdueScanSchedule)
	}
	if cfg.HistoryRedriveSchedule != "@every 1m" || cfg.HistoryRedriveBatch != 100 {
		t.Fatalf("expected default redrive settings, got %q/%d", cfg.HistoryRedriveSchedule, cfg.HistoryRedriveBatch)
	}
	if cfg.APIBackpressureWait != 250*time.Millisecond {
		t.Fatalf("expected default backpressure wait 250ms, got %s", cfg.APIBackpressureWait)
	}
}

func TestLoadAppliesFileThenEnvironment(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := "STORAGE_DRIVER: memory\nAPI_PORT: 9000\nAPI_RATE_LIMIT_RPS: 2.5\nhistory_enabled: false\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("STORAGE_DRIVER", "")
	t.Setenv("API_RATE_LIMIT_RPS", "")
	t.Setenv("HISTORY_ENABLED", "")
	t.Setenv("API_PORT", "7000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.StorageDriver != StorageDriverMemory {
		t.Fatalf("expected storage driver from file, got %q", cfg.StorageDriver)
	}
	if cfg.APIPort != "7000" {
		t.Fatalf("expected env to override file port, got %q", cfg.APIPort)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rate limit 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.HistoryEnabled {
		t.Fatalf("expected history disabled by file")
	}
}

func TestLoadRejectsUnknownStorageDriver(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("STORAGE_DRIVER", "sqlite")

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for unknown storage driver")
	}
}

func TestLoadReportsMissingConfigFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", filepath.Join(t.TempDir(), "missing.yaml"))

	if _, err := Load(); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
