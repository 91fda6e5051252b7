package database

import (
	"context"
	"errors"
	"testing"
	"time"

	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
)

func newTestTransition(d *models.Deposit, from, to models.DepositStatus, key string, adj int64) *models.Transition {
	return &models.Transition{
		Id:                ulid.Make().String(),
		DepositId:         d.Id,
		UserId:            d.UserId,
		WalletId:          d.WalletId,
		PreviousState:     from,
		NewState:          to,
		Reason:            "test",
		ActorId:           "admin",
		IdempotencyKey:    key,
		BalanceBefore:     decimal.Zero,
		BalanceAfter:      decimal.NewFromInt(adj),
		BalanceAdjustment: decimal.NewFromInt(adj),
		CreatedAt:         time.Now().UTC(),
	}
}

func TestTransitions_UniquenessAndOrder(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	wallet, err := service.CreateWallet(ctx, "user1", "PHP")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	deposit := newTestDeposit(wallet, "100")

	insert := func(tr *models.Transition) error {
		return service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
			return tx.InsertTransition(ctx, tr)
		})
	}

	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertDeposit(ctx, deposit); err != nil {
			return err
		}
		return tx.InsertTransition(ctx, newTestTransition(deposit, models.StatusNone, models.StatusPending, "submit:"+deposit.Id, 0))
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	if err := insert(newTestTransition(deposit, models.StatusPending, models.StatusApproved, "approve-1", 100)); err != nil {
		t.Fatalf("Insert approve transition failed: %v", err)
	}

	// Same key, different deposit state.
	if err := insert(newTestTransition(deposit, models.StatusApproved, models.StatusReversed, "approve-1", -100)); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for reused key, got %v", err)
	}
	// Same resulting state, different key.
	if err := insert(newTestTransition(deposit, models.StatusPending, models.StatusApproved, "approve-2", 100)); !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected ErrDuplicate for second approval row, got %v", err)
	}

	history, err := service.GetDepositTransitions(ctx, deposit.Id)
	if err != nil {
		t.Fatalf("GetDepositTransitions failed: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("Expected 2 transitions, got %d", len(history))
	}
	if history[0].NewState != models.StatusPending || history[1].NewState != models.StatusApproved {
		t.Errorf("Unexpected order: %s then %s", history[0].NewState, history[1].NewState)
	}

	byKey, err := service.GetTransitionByIdempotencyKey(ctx, "approve-1")
	if err != nil {
		t.Fatalf("GetTransitionByIdempotencyKey failed: %v", err)
	}
	if byKey == nil || !byKey.BalanceAdjustment.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Unexpected transition by key: %+v", byKey)
	}

	missing, err := service.GetTransitionByIdempotencyKey(ctx, "nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil, nil for unknown key, got %v, %v", missing, err)
	}
}

func TestSumWalletAdjustments_SplitsCorrections(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	wallet, err := service.CreateWallet(ctx, "user1", "PHP")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}
	deposit := newTestDeposit(wallet, "100")

	err = service.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if err := tx.InsertDeposit(ctx, deposit); err != nil {
			return err
		}
		if err := tx.InsertTransition(ctx, newTestTransition(deposit, models.StatusPending, models.StatusApproved, "k1", 100)); err != nil {
			return err
		}
		return tx.InsertCorrection(ctx, &models.WalletCorrection{
			Id:              "corr-1",
			WalletId:        wallet.Id,
			BalanceBefore:   decimal.NewFromInt(90),
			BalanceAfter:    decimal.NewFromInt(100),
			Adjustment:      decimal.RequireFromString("-0.5"),
			ExpectedBalance: decimal.NewFromInt(100),
			Reason:          "drift",
			ActorId:         "ops",
			CreatedAt:       time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatalf("Setup failed: %v", err)
	}

	transitions, corrections, err := service.SumWalletAdjustments(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("SumWalletAdjustments failed: %v", err)
	}
	if !transitions.Equal(decimal.NewFromInt(100)) {
		t.Errorf("Expected transitions 100, got %s", transitions)
	}
	if !corrections.Equal(decimal.RequireFromString("-0.5")) {
		t.Errorf("Expected corrections -0.5, got %s", corrections)
	}
}

func TestAuditEntries(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	for i, status := range []string{"success", "failed"} {
		err := service.InsertAuditEntry(ctx, &models.AuditEntry{
			Id:        ulid.Make().String(),
			Operation: "approve",
			Status:    status,
			DepositId: "dep-1",
			CreatedAt: time.Now().UTC().Add(time.Duration(i) * time.Millisecond),
		})
		if err != nil {
			t.Fatalf("InsertAuditEntry failed: %v", err)
		}
	}

	entries, err := service.GetAuditEntries(ctx, "dep-1")
	if err != nil {
		t.Fatalf("GetAuditEntries failed: %v", err)
	}
	if len(entries) != 2 || entries[0].Status != "success" || entries[1].Status != "failed" {
		t.Errorf("Unexpected audit entries: %+v", entries)
	}
}
