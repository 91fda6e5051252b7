package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Driver != "sqlite3" {
		t.Errorf("Expected default driver sqlite3, got %s", cfg.Database.Driver)
	}
	if cfg.Database.Path != "ledger.db" {
		t.Errorf("Expected default path ledger.db, got %s", cfg.Database.Path)
	}
	if !cfg.Ledger.ReconcileEpsilon.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("Expected default epsilon 0.01, got %s", cfg.Ledger.ReconcileEpsilon)
	}
	if !cfg.Ledger.VerifyAfterApprove {
		t.Error("Expected VerifyAfterApprove to default to true")
	}
	if cfg.Reconciler.Interval != 15*time.Minute {
		t.Errorf("Expected default interval 15m, got %v", cfg.Reconciler.Interval)
	}
	if cfg.Reconciler.Workers != 4 {
		t.Errorf("Expected 4 workers, got %d", cfg.Reconciler.Workers)
	}
	if cfg.Formance.Enabled() {
		t.Error("Expected Formance mirror to be disabled without a stack URL")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "pgx")
	t.Setenv("DATABASE_URL", "postgres://ledger@localhost/ledger")
	t.Setenv("RECONCILE_EPSILON", "0.0001")
	t.Setenv("VERIFY_AFTER_APPROVE", "false")
	t.Setenv("RECONCILE_WORKERS", "8")
	t.Setenv("FORMANCE_STACK_URL", "https://example.formance.cloud")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Database.Driver != "pgx" {
		t.Errorf("Expected driver pgx, got %s", cfg.Database.Driver)
	}
	if !cfg.Ledger.ReconcileEpsilon.Equal(decimal.RequireFromString("0.0001")) {
		t.Errorf("Expected epsilon 0.0001, got %s", cfg.Ledger.ReconcileEpsilon)
	}
	if cfg.Ledger.VerifyAfterApprove {
		t.Error("Expected VerifyAfterApprove false")
	}
	if cfg.Reconciler.Workers != 8 {
		t.Errorf("Expected 8 workers, got %d", cfg.Reconciler.Workers)
	}
	if !cfg.Formance.Enabled() {
		t.Error("Expected Formance mirror to be enabled")
	}
}

func TestLoad_InvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"bad duration", "RECONCILE_INTERVAL", "soon"},
		{"bad decimal", "RECONCILE_EPSILON", "one cent"},
		{"negative epsilon", "RECONCILE_EPSILON", "-0.5"},
		{"bad ping timeout", "DB_PING_TIMEOUT", "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%q", tt.key, tt.value)
			}
		})
	}
}

func TestLoad_BadIntFallsBack(t *testing.T) {
	t.Setenv("DB_MAX_OPEN_CONNS", "many")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Database.MaxOpenConns != 25 {
		t.Errorf("Expected fallback to 25, got %d", cfg.Database.MaxOpenConns)
	}
}
