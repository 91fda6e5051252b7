package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func TestInsertDeposit_RoundTrip(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	wallet, err := service.CreateWallet(ctx, "user1", "PHP")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	deposit := newTestDeposit(wallet, "500.25")
	deposit.ExternalId = "ext-1"
	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertDeposit(ctx, deposit)
	})
	if err != nil {
		t.Fatalf("InsertDeposit failed: %v", err)
	}

	got, err := service.GetDeposit(ctx, deposit.Id)
	if err != nil {
		t.Fatalf("GetDeposit failed: %v", err)
	}
	if !got.Amount.Equal(decimal.RequireFromString("500.25")) {
		t.Errorf("Expected amount 500.25, got %s", got.Amount)
	}
	if got.Status != models.StatusPending {
		t.Errorf("Expected pending, got %s", got.Status)
	}
	if got.MethodDetails["bank"] != "BDO" {
		t.Errorf("Expected method details to round trip, got %v", got.MethodDetails)
	}
	if got.ReceivedAmount.Valid {
		t.Error("Expected received_amount to be unset")
	}
	if got.ApprovedAt != nil {
		t.Error("Expected approved_at to be unset")
	}

	byExternal, err := service.GetDepositByExternalId(ctx, "ext-1")
	if err != nil {
		t.Fatalf("GetDepositByExternalId failed: %v", err)
	}
	if byExternal == nil || byExternal.Id != deposit.Id {
		t.Errorf("Expected deposit %s by external id, got %+v", deposit.Id, byExternal)
	}

	missing, err := service.GetDepositByExternalId(ctx, "ext-2")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for unknown external id, got %v, %v", missing, err)
	}
}

func TestInsertDeposit_DuplicateExternalId(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	wallet, err := service.CreateWallet(ctx, "user1", "PHP")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	insert := func(d *models.Deposit) error {
		return service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertDeposit(ctx, d)
		})
	}

	first := newTestDeposit(wallet, "10")
	first.ExternalId = "ext-dup"
	if err := insert(first); err != nil {
		t.Fatalf("First insert failed: %v", err)
	}

	second := newTestDeposit(wallet, "10")
	second.ExternalId = "ext-dup"
	if err := insert(second); !errors.Is(err, store.ErrDuplicate) {
		t.Fatalf("Expected ErrDuplicate, got %v", err)
	}

	// Deposits without an external id never collide.
	for i := 0; i < 2; i++ {
		if err := insert(newTestDeposit(wallet, "1")); err != nil {
			t.Fatalf("Insert without external id failed: %v", err)
		}
	}
}

func TestUpdateDeposit_CompareAndSet(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	wallet, err := service.CreateWallet(ctx, "user1", "PHP")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	deposit := newTestDeposit(wallet, "100")
	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.InsertDeposit(ctx, deposit)
	})
	if err != nil {
		t.Fatalf("InsertDeposit failed: %v", err)
	}

	approve := func(received string) error {
		d := *deposit
		now := time.Now().UTC()
		d.Status = models.StatusApproved
		d.ReceivedAmount = decimal.NewNullDecimal(decimal.RequireFromString(received))
		d.ExchangeRate = decimal.NewNullDecimal(decimal.NewFromInt(1))
		d.ApprovedBy = "admin"
		d.ApprovedAt = &now
		return service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.UpdateDeposit(ctx, store.DepositCAS{Deposit: &d, FromStatus: models.StatusPending, Version: deposit.Version})
		})
	}

	if err := approve("100"); err != nil {
		t.Fatalf("First approve failed: %v", err)
	}
	if err := approve("200"); !errors.Is(err, store.ErrConcurrentModification) {
		t.Fatalf("Expected ErrConcurrentModification on stale CAS, got %v", err)
	}

	got, err := service.GetDeposit(ctx, deposit.Id)
	if err != nil {
		t.Fatalf("GetDeposit failed: %v", err)
	}
	if got.Status != models.StatusApproved {
		t.Errorf("Expected approved, got %s", got.Status)
	}
	if !got.CreditedAmount().Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected received amount 100, got %s", got.CreditedAmount())
	}
	if got.ApprovedAt == nil || got.ApprovedBy != "admin" {
		t.Errorf("Expected approver metadata, got %q at %v", got.ApprovedBy, got.ApprovedAt)
	}
	if got.Version != deposit.Version+1 {
		t.Errorf("Expected version %d, got %d", deposit.Version+1, got.Version)
	}
}

func TestUpdateDeposit_ReceivedAmountSetOnce(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	wallet, err := service.CreateWallet(ctx, "user1", "PHP")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	deposit := newTestDeposit(wallet, "100")
	deposit.Status = models.StatusApproved
	deposit.ReceivedAmount = decimal.NewNullDecimal(decimal.NewFromInt(100))
	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertDeposit(ctx, deposit); err != nil {
			return err
		}
		// Insert does not write received_amount; set it through an approval CAS.
		d := *deposit
		return tx.UpdateDeposit(ctx, store.DepositCAS{Deposit: &d, FromStatus: models.StatusApproved, Version: 1})
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	reversed := *deposit
	reversed.Status = models.StatusReversed
	reversed.ReceivedAmount = decimal.NewNullDecimal(decimal.NewFromInt(1))
	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return tx.UpdateDeposit(ctx, store.DepositCAS{Deposit: &reversed, FromStatus: models.StatusApproved, Version: 2})
	})
	if err != nil {
		t.Fatalf("Reverse update failed: %v", err)
	}

	got, err := service.GetDeposit(ctx, deposit.Id)
	if err != nil {
		t.Fatalf("GetDeposit failed: %v", err)
	}
	if !got.CreditedAmount().Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected received amount to stay 100, got %s", got.CreditedAmount())
	}
}

func TestListDeposits_Filter(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	php, err := service.CreateWallet(ctx, "user1", "PHP")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	usd, err := service.CreateWallet(ctx, "user1", "USD")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		for _, d := range []*models.Deposit{newTestDeposit(php, "1"), newTestDeposit(php, "2"), newTestDeposit(usd, "3")} {
			if err := tx.InsertDeposit(ctx, d); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	all, err := service.ListDeposits(ctx, store.DepositFilter{UserId: "user1"})
	if err != nil {
		t.Fatalf("ListDeposits failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("Expected 3 deposits, got %d", len(all))
	}

	phpOnly, err := service.ListDeposits(ctx, store.DepositFilter{WalletId: php.Id, Status: models.StatusPending})
	if err != nil {
		t.Fatalf("ListDeposits failed: %v", err)
	}
	if len(phpOnly) != 2 {
		t.Errorf("Expected 2 PHP deposits, got %d", len(phpOnly))
	}

	page, err := service.ListDeposits(ctx, store.DepositFilter{Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("ListDeposits failed: %v", err)
	}
	if len(page) != 1 {
		t.Errorf("Expected 1 deposit on page, got %d", len(page))
	}

	walletDeposits, err := service.ListWalletDeposits(ctx, usd.Id)
	if err != nil {
		t.Fatalf("ListWalletDeposits failed: %v", err)
	}
	if len(walletDeposits) != 1 || !walletDeposits[0].Amount.Equal(decimal.NewFromInt(3)) {
		t.Errorf("Unexpected USD deposits: %+v", walletDeposits)
	}
}
