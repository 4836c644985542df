package cli

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := loadConfig("", "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.PoolMin != 2 || cfg.PoolMax != 10 {
		t.Errorf("pool bounds = %d..%d, want 2..10", cfg.PoolMin, cfg.PoolMax)
	}
	if cfg.BorrowTimeout != 30*time.Second {
		t.Errorf("borrow timeout = %s, want 30s", cfg.BorrowTimeout)
	}
	if cfg.WatcherInterval != 30*time.Minute {
		t.Errorf("watcher interval = %s, want 30m", cfg.WatcherInterval)
	}
}

func TestLoadConfigDBOverrideWins(t *testing.T) {
	t.Setenv("SHIPFLOOR_DB", "env.db")
	cfg, err := loadConfig("", "flag.db")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DBPath != "flag.db" {
		t.Errorf("db path = %q, want flag override", cfg.DBPath)
	}
}

func TestLoadConfigLegacyEnvAliases(t *testing.T) {
	t.Setenv("DB_POOL_MIN_CONNECTIONS", "3")
	t.Setenv("DB_POOL_MAX_CONNECTIONS", "6")
	t.Setenv("DB_POOL_TIMEOUT", "45")
	t.Setenv("DB_CONN_TIMEOUT", "15")

	cfg, err := loadConfig("", "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.PoolMin != 3 || cfg.PoolMax != 6 {
		t.Errorf("pool bounds = %d..%d, want 3..6", cfg.PoolMin, cfg.PoolMax)
	}
	// Legacy variables carry bare seconds, not duration strings.
	if cfg.BorrowTimeout != 45*time.Second {
		t.Errorf("borrow timeout = %s, want 45s", cfg.BorrowTimeout)
	}
	if cfg.ConnTimeout != 15*time.Second {
		t.Errorf("conn timeout = %s, want 15s", cfg.ConnTimeout)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shipfloor.yaml")
	content := "db_path: warehouse.db\npool:\n  min: 4\n  max: 8\n  borrow_timeout: 10s\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.DBPath != "warehouse.db" {
		t.Errorf("db path = %q", cfg.DBPath)
	}
	if cfg.PoolMin != 4 || cfg.PoolMax != 8 {
		t.Errorf("pool bounds = %d..%d, want 4..8", cfg.PoolMin, cfg.PoolMax)
	}
	if cfg.BorrowTimeout != 10*time.Second {
		t.Errorf("borrow timeout = %s, want 10s", cfg.BorrowTimeout)
	}
}

func TestLoadConfigSubSecondDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shipfloor.yaml")
	content := "cache:\n  ttl: 500ms\npool:\n  borrow_timeout: 250ms\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path, "")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.CacheTTL != 500*time.Millisecond {
		t.Errorf("cache ttl = %s, want 500ms", cfg.CacheTTL)
	}
	if cfg.BorrowTimeout != 250*time.Millisecond {
		t.Errorf("borrow timeout = %s, want 250ms", cfg.BorrowTimeout)
	}
}

func TestLoadConfigRejectsInvalid(t *testing.T) {
	t.Setenv("DB_POOL_MIN_CONNECTIONS", "0")
	if _, err := loadConfig("", ""); err == nil {
		t.Fatal("expected validation error for zero pool_min")
	}
}
