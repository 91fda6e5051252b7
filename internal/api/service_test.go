package api

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"deposit-ledger-go/internal/database"
	"deposit-ledger-go/internal/ledger"
	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/reconcile"
	"deposit-ledger-go/internal/store"

	"github.com/shopspring/decimal"
)

func setupTestService(t *testing.T) (*OperatorService, *models.Wallet, func()) {
	t.Helper()

	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Driver:       database.DriverSQLite,
		Path:         filepath.Join(t.TempDir(), "api_test.db"),
		MaxOpenConns: 4,
		PingTimeout:  5 * time.Second,
		BusyTimeout:  5 * time.Second,
	})
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	wallet, err := db.CreateWallet(context.Background(), "user-1", "PHP")
	if err != nil {
		t.Fatalf("CreateWallet failed: %v", err)
	}

	auditor := reconcile.NewAuditor(db, decimal.RequireFromString("0.01"))
	engine := ledger.NewEngine(db, ledger.WithVerifier(auditor))
	return NewOperatorService(db, engine, auditor), wallet, db.Close
}

func TestOperatorService_Lifecycle(t *testing.T) {
	svc, wallet, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	if err := svc.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck failed: %v", err)
	}

	submitted, err := svc.SubmitDeposit(ctx, SubmitParams{
		UserId:   wallet.UserId,
		WalletId: wallet.Id,
		Amount:   "500",
		Method:   "gcash",
	})
	if err != nil {
		t.Fatalf("SubmitDeposit returned error: %v", err)
	}
	if !submitted.Success || submitted.Deposit == nil {
		t.Fatalf("Expected submit to succeed, got %+v", submitted)
	}
	depositId := submitted.Deposit.Id

	approved, err := svc.ApproveDeposit(ctx, ApproveParams{
		DepositId:      depositId,
		ActorId:        "admin-1",
		ReceivedAmount: "500",
		IdempotencyKey: "approve-1",
	})
	if err != nil {
		t.Fatalf("ApproveDeposit returned error: %v", err)
	}
	if !approved.Success || approved.Verification == nil || !approved.Verification.IsValid {
		t.Errorf("Expected approve to succeed and verify, got %+v", approved)
	}

	// A second approve with a new key reports the state error as data.
	again, err := svc.ApproveDeposit(ctx, ApproveParams{DepositId: depositId, ActorId: "admin-1", IdempotencyKey: "approve-2"})
	if err != nil {
		t.Fatalf("ApproveDeposit returned error: %v", err)
	}
	if again.Success || again.ErrorKind != ledger.KindInvalidStateTransition || again.Error == "" {
		t.Errorf("Expected invalid_state_transition, got %+v", again)
	}

	replay, err := svc.ApproveDeposit(ctx, ApproveParams{DepositId: depositId, ActorId: "admin-1", IdempotencyKey: "approve-1"})
	if err != nil {
		t.Fatalf("ApproveDeposit returned error: %v", err)
	}
	if !replay.Success || !replay.Replayed {
		t.Errorf("Expected a successful replay, got %+v", replay)
	}

	reversed, err := svc.ReverseDeposit(ctx, TransitionParams{DepositId: depositId, ActorId: "admin-1", Reason: "chargeback", IdempotencyKey: "reverse-1"})
	if err != nil {
		t.Fatalf("ReverseDeposit returned error: %v", err)
	}
	if !reversed.Success || reversed.Deposit.Status != models.StatusReversed {
		t.Errorf("Expected reversal to succeed, got %+v", reversed)
	}

	history, err := svc.GetDepositHistory(ctx, depositId)
	if err != nil {
		t.Fatalf("GetDepositHistory failed: %v", err)
	}
	if len(history) != 3 {
		t.Fatalf("Expected 3 history records, got %d", len(history))
	}
	if history[2].From != models.StatusApproved || history[2].To != models.StatusReversed {
		t.Errorf("Unexpected last record %+v", history[2])
	}
	if !history[2].BalanceAdjustment.Equal(decimal.NewFromInt(-500)) {
		t.Errorf("Expected -500 adjustment, got %s", history[2].BalanceAdjustment)
	}

	v, err := svc.VerifyWallet(ctx, wallet.Id)
	if err != nil {
		t.Fatalf("VerifyWallet failed: %v", err)
	}
	if !v.IsValid || !v.ActualBalance.IsZero() {
		t.Errorf("Expected balanced wallet at 0, got %+v", v)
	}
}

func TestOperatorService_InputErrors(t *testing.T) {
	svc, wallet, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	tests := []struct {
		name string
		call func() (*models.OperationResult, error)
	}{
		{"unparseable amount", func() (*models.OperationResult, error) {
			return svc.SubmitDeposit(ctx, SubmitParams{UserId: wallet.UserId, WalletId: wallet.Id, Amount: "five hundred"})
		}},
		{"missing amount", func() (*models.OperationResult, error) {
			return svc.SubmitDeposit(ctx, SubmitParams{UserId: wallet.UserId, WalletId: wallet.Id})
		}},
		{"negative amount", func() (*models.OperationResult, error) {
			return svc.SubmitDeposit(ctx, SubmitParams{UserId: wallet.UserId, WalletId: wallet.Id, Amount: "-1"})
		}},
		{"bad exchange rate", func() (*models.OperationResult, error) {
			return svc.ApproveDeposit(ctx, ApproveParams{DepositId: "d", ActorId: "a", IdempotencyKey: "k", ExchangeRate: "x"})
		}},
		{"unknown deposit", func() (*models.OperationResult, error) {
			return svc.RejectDeposit(ctx, TransitionParams{DepositId: "nope", ActorId: "admin-1"})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := tt.call()
			if err != nil {
				t.Fatalf("Expected failures as data, got error %v", err)
			}
			if res.Success || res.ErrorKind != ledger.KindInvalidInput {
				t.Errorf("Expected invalid_input, got %+v", res)
			}
		})
	}
}

func TestOperatorService_InsufficientBalance(t *testing.T) {
	svc, wallet, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	submitted, _ := svc.SubmitDeposit(ctx, SubmitParams{UserId: wallet.UserId, WalletId: wallet.Id, Amount: "100"})
	if !submitted.Success {
		t.Fatalf("Submit failed: %s", submitted.Error)
	}
	approved, _ := svc.ApproveDeposit(ctx, ApproveParams{DepositId: submitted.Deposit.Id, ActorId: "admin-1", IdempotencyKey: "a"})
	if !approved.Success {
		t.Fatalf("Approve failed: %s", approved.Error)
	}
	if err := svc.store.UpdateBalance(ctx, wallet.Id, decimal.NewFromInt(30), decimal.NewFromInt(100)); err != nil {
		t.Fatalf("UpdateBalance failed: %v", err)
	}

	res, err := svc.ReverseDeposit(ctx, TransitionParams{DepositId: submitted.Deposit.Id, ActorId: "admin-1", IdempotencyKey: "r"})
	if err != nil {
		t.Fatalf("ReverseDeposit returned error: %v", err)
	}
	if res.Success || res.ErrorKind != ledger.KindInsufficientBalance {
		t.Errorf("Expected insufficient_balance, got %+v", res)
	}
}

func TestListDeposits(t *testing.T) {
	svc, wallet, cleanup := setupTestService(t)
	defer cleanup()
	ctx := context.Background()

	for _, amount := range []string{"1", "2", "3"} {
		if res, _ := svc.SubmitDeposit(ctx, SubmitParams{UserId: wallet.UserId, WalletId: wallet.Id, Amount: amount}); !res.Success {
			t.Fatalf("Submit failed: %s", res.Error)
		}
	}

	deposits, err := svc.ListDeposits(ctx, store.DepositFilter{WalletId: wallet.Id, Status: models.StatusPending})
	if err != nil {
		t.Fatalf("ListDeposits failed: %v", err)
	}
	if len(deposits) != 3 {
		t.Errorf("Expected 3 pending deposits, got %d", len(deposits))
	}

	if _, err := svc.ListDeposits(ctx, store.DepositFilter{Status: "bogus"}); err == nil {
		t.Error("Expected an unknown status to be rejected")
	}
}
