package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"deposit-ledger-go/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// setupTestDb opens a file-backed SQLite database so that several pooled
// connections see the same data.
func setupTestDb(t *testing.T) (*Service, func()) {
	t.Helper()

	cfg := models.DatabaseConfig{
		Driver:       DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "ledger_test.db"),
		MaxOpenConns: 4,
		MaxIdleConns: 2,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	}

	service, err := NewService(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	return service, service.Close
}

func newTestDeposit(wallet *models.Wallet, amount string) *models.Deposit {
	now := time.Now().UTC()
	id := uuid.New().String()
	return &models.Deposit{
		Id:              id,
		UserId:          wallet.UserId,
		WalletId:        wallet.Id,
		Amount:          decimal.RequireFromString(amount),
		Currency:        wallet.Currency,
		Method:          "bank_transfer",
		MethodDetails:   map[string]string{"bank": "BDO"},
		ReferenceNumber: "BANK_TRANSFER-" + id,
		Status:          models.StatusPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}
