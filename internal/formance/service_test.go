package formance

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"deposit-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestFormanceAsset(t *testing.T) {
	tests := []struct {
		currency string
		want     string
	}{
		{"PHP", "PHP/2"},
		{"USDT", "USDT/6"},
		{"BTC", "BTC/8"},
		{"XYZ", "XYZ/2"}, // default precision
	}
	for _, tt := range tests {
		if got := formanceAsset(tt.currency); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.currency, got, tt.want)
		}
	}
}

func TestSmallestUnits(t *testing.T) {
	tests := []struct {
		amount   string
		currency string
		want     string
	}{
		{"500", "PHP", "50000"},
		{"120.50", "PHP", "12050"},
		{"0.019", "PHP", "1"}, // truncated past precision
		{"1.5", "USDT", "1500000"},
	}
	for _, tt := range tests {
		if got := smallestUnits(decimal.RequireFromString(tt.amount), tt.currency); got != tt.want {
			t.Errorf("smallestUnits(%s, %s) = %s, want %s", tt.amount, tt.currency, got, tt.want)
		}
	}
}

func TestSmallestUnits_WarnsOnTruncation(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	defer restore()

	if got := smallestUnits(decimal.RequireFromString("100.005"), "PHP"); got != "10000" {
		t.Errorf("expected 10000, got %s", got)
	}
	warnings := logs.FilterMessage("Amount exceeds currency precision, mirrored value truncated").All()
	if len(warnings) != 1 {
		t.Fatalf("expected 1 truncation warning, got %d", len(warnings))
	}
	fields := warnings[0].ContextMap()
	if fields["amount"] != "100.005" || fields["mirrored"] != "100" || fields["currency"] != "PHP" {
		t.Errorf("unexpected warning fields %v", fields)
	}

	smallestUnits(decimal.RequireFromString("100.50"), "PHP")
	smallestUnits(decimal.RequireFromString("0.000001"), "USDC")
	if logs.Len() != 1 {
		t.Errorf("expected no warning for amounts within precision, got %d entries", logs.Len())
	}
}

func TestBigIntToDecimal(t *testing.T) {
	result := bigIntToDecimal(big.NewInt(12050), "PHP")
	if !result.Equal(decimal.RequireFromString("120.50")) {
		t.Errorf("expected 120.50, got %s", result.String())
	}

	if !bigIntToDecimal(nil, "PHP").IsZero() {
		t.Error("expected nil to convert to 0")
	}
}

func TestTransitionScript(t *testing.T) {
	wallet := &models.Wallet{Id: "w-1", Currency: "PHP"}
	deposit := &models.Deposit{Id: "d-1", Currency: "USD", ReferenceNumber: "GCASH-1-ABCDEF"}

	credit := &models.Transition{
		Id:                "01J0000000000000000000000",
		WalletId:          "w-1",
		ActorId:           "admin-1",
		BalanceAdjustment: decimal.RequireFromString("562.5"),
		CreatedAt:         time.Now(),
	}
	script, vars, ok := transitionScript(wallet, deposit, credit)
	if !ok {
		t.Fatal("expected a credit to be mirrored")
	}
	if !strings.Contains(script, "source = @world") {
		t.Errorf("expected credit to draw from @world")
	}
	if vars["asset"] != "PHP/2" || vars["amount"] != "56250" {
		t.Errorf("expected wallet currency amounts, got asset=%s amount=%s", vars["asset"], vars["amount"])
	}
	if vars["transition_id"] != credit.Id || vars["wallet_id"] != "w-1" {
		t.Errorf("unexpected vars %v", vars)
	}

	debit := *credit
	debit.BalanceAdjustment = decimal.NewFromInt(-100)
	script, vars, ok = transitionScript(wallet, deposit, &debit)
	if !ok || !strings.Contains(script, "allowing unbounded overdraft") {
		t.Errorf("expected reversal to debit the wallet with overdraft")
	}
	if vars["amount"] != "10000" {
		t.Errorf("expected absolute amount, got %s", vars["amount"])
	}

	none := *credit
	none.BalanceAdjustment = decimal.Zero
	if _, _, ok := transitionScript(wallet, deposit, &none); ok {
		t.Error("expected zero adjustments not to be mirrored")
	}
}

func TestIsConflictError(t *testing.T) {
	// nil error should not be a conflict
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
	if isNotFoundError(nil) {
		t.Error("nil should not be a not found error")
	}
}

func TestWalletAccount(t *testing.T) {
	if got := walletAccount("abc"); got != "wallets:abc" {
		t.Errorf("walletAccount = %q, want wallets:abc", got)
	}
}
