package common

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"deposit-ledger-go/internal/database"
	"deposit-ledger-go/internal/models"
)

func TestResolveWallets(t *testing.T) {
	ctx := context.Background()
	db, err := database.NewService(ctx, models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "common_test.db"),
		MaxOpenConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	defer db.Close()

	php, _ := db.CreateWallet(ctx, "user-1", "PHP")
	if _, err := db.CreateWallet(ctx, "user-1", "USD"); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	if _, err := db.CreateWallet(ctx, "user-2", "PHP"); err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	tests := []struct {
		name     string
		walletId string
		userId   string
		want     int
	}{
		{"all", "", "", 3},
		{"by user", "", "user-1", 2},
		{"by wallet", php.Id, "", 1},
		{"unknown user", "", "user-9", 0},
	}
	for _, tt := range tests {
		got, err := ResolveWallets(ctx, db, tt.walletId, tt.userId)
		if err != nil {
			t.Fatalf("%s: ResolveWallets failed: %v", tt.name, err)
		}
		if len(got) != tt.want {
			t.Errorf("%s: expected %d wallets, got %d", tt.name, tt.want, len(got))
		}
	}

	if _, err := ResolveWallets(ctx, db, "missing", ""); err == nil {
		t.Error("Expected an unknown wallet id to fail")
	}
}

func TestShortId(t *testing.T) {
	if got := ShortId("abc"); got != "abc" {
		t.Errorf("ShortId(abc) = %q", got)
	}
	if got := ShortId("0123456789abcdef"); got != "01234567…" {
		t.Errorf("ShortId = %q", got)
	}
}

func TestLoadRates_MissingFile(t *testing.T) {
	table, err := loadRates(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("Expected a missing rates file to be tolerated, got %v", err)
	}
	if table != nil {
		t.Error("Expected no table for a missing file")
	}
}
