package formance

import (
	"context"
	"fmt"

	"deposit-ledger-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. All metadata is set inside the script via
// set_tx_meta() so each Formance transaction is self-describing.
// ---------------------------------------------------------------------------

const numscriptDepositCredited = `vars {
  asset $asset
  number $amount
  account $wallet_id
  string $deposit_id
  string $reference_number
  string $transition_id
  string $actor_id
  string $amount_human
}

send [$asset $amount] (
  source = @world
  destination = @wallets:$wallet_id
)

set_tx_meta("event_type", "deposit_approved")
set_tx_meta("deposit_id", $deposit_id)
set_tx_meta("reference_number", $reference_number)
set_tx_meta("transition_id", $transition_id)
set_tx_meta("actor_id", $actor_id)
set_tx_meta("amount_human", $amount_human)
`

// Reversals may outrun a credit the mirror never received, so the wallet
// account is allowed to go negative here; the local store enforces the real
// balance rule.
const numscriptDepositReversed = `vars {
  asset $asset
  number $amount
  account $wallet_id
  string $deposit_id
  string $reference_number
  string $transition_id
  string $actor_id
  string $amount_human
}

send [$asset $amount] (
  source = @wallets:$wallet_id allowing unbounded overdraft
  destination = @deposits:reversals
)

set_tx_meta("event_type", "deposit_reversed")
set_tx_meta("deposit_id", $deposit_id)
set_tx_meta("reference_number", $reference_number)
set_tx_meta("transition_id", $transition_id)
set_tx_meta("actor_id", $actor_id)
set_tx_meta("amount_human", $amount_human)
`

const numscriptCorrectionCredit = `vars {
  asset $asset
  number $amount
  account $wallet_id
  string $correction_id
  string $reason
  string $actor_id
  string $amount_human
}

send [$asset $amount] (
  source = @corrections allowing unbounded overdraft
  destination = @wallets:$wallet_id
)

set_tx_meta("event_type", "wallet_correction")
set_tx_meta("correction_id", $correction_id)
set_tx_meta("reason", $reason)
set_tx_meta("actor_id", $actor_id)
set_tx_meta("amount_human", $amount_human)
`

const numscriptCorrectionDebit = `vars {
  asset $asset
  number $amount
  account $wallet_id
  string $correction_id
  string $reason
  string $actor_id
  string $amount_human
}

send [$asset $amount] (
  source = @wallets:$wallet_id allowing unbounded overdraft
  destination = @corrections
)

set_tx_meta("event_type", "wallet_correction")
set_tx_meta("correction_id", $correction_id)
set_tx_meta("reason", $reason)
set_tx_meta("actor_id", $actor_id)
set_tx_meta("amount_human", $amount_human)
`

// RecordTransition posts a balance-moving deposit transition. The transition
// id is the Formance reference, so a retried post is a no-op.
func (s *Service) RecordTransition(ctx context.Context, wallet *models.Wallet, deposit *models.Deposit, t *models.Transition) error {
	script, vars, ok := transitionScript(wallet, deposit, t)
	if !ok {
		return nil
	}

	postTx := shared.V2PostTransaction{
		Reference: strPtr(t.Id),
		Timestamp: &t.CreatedAt,
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars:  vars,
		},
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Debug("Transition already mirrored", zap.String("transition_id", t.Id))
			return nil
		}
		return fmt.Errorf("error mirroring %s transition: %w", t.NewState, err)
	}

	zap.L().Info("Transition mirrored in Formance",
		zap.String("transition_id", t.Id),
		zap.String("deposit_id", deposit.Id),
		zap.String("wallet_id", t.WalletId),
		zap.String("adjustment", t.BalanceAdjustment.String()))
	return nil
}

// RecordCorrection posts an operator balance correction.
func (s *Service) RecordCorrection(ctx context.Context, wallet *models.Wallet, c *models.WalletCorrection) error {
	if c.Adjustment.IsZero() {
		return nil
	}

	script := numscriptCorrectionCredit
	if c.Adjustment.IsNegative() {
		script = numscriptCorrectionDebit
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger: s.ledger,
		V2PostTransaction: shared.V2PostTransaction{
			Reference: strPtr(c.Id),
			Timestamp: &c.CreatedAt,
			Script: &shared.V2PostTransactionScript{
				Plain: script,
				Vars: map[string]string{
					"asset":         formanceAsset(wallet.Currency),
					"amount":        smallestUnits(c.Adjustment.Abs(), wallet.Currency),
					"wallet_id":     wallet.Id,
					"correction_id": c.Id,
					"reason":        c.Reason,
					"actor_id":      c.ActorId,
					"amount_human":  c.Adjustment.String(),
				},
			},
		},
	})
	if err != nil {
		if isConflictError(err) {
			return nil
		}
		return fmt.Errorf("error mirroring wallet correction: %w", err)
	}

	zap.L().Info("Wallet correction mirrored in Formance",
		zap.String("correction_id", c.Id),
		zap.String("wallet_id", wallet.Id),
		zap.String("adjustment", c.Adjustment.String()))
	return nil
}

// transitionScript picks the Numscript template and variables for t. ok is
// false for transitions that do not move the wallet balance. Adjustments are
// denominated in the wallet currency.
func transitionScript(wallet *models.Wallet, deposit *models.Deposit, t *models.Transition) (script string, vars map[string]string, ok bool) {
	switch {
	case t.BalanceAdjustment.IsPositive():
		script = numscriptDepositCredited
	case t.BalanceAdjustment.IsNegative():
		script = numscriptDepositReversed
	default:
		return "", nil, false
	}

	currency := wallet.Currency
	amount := t.BalanceAdjustment.Abs()
	vars = map[string]string{
		"asset":            formanceAsset(currency),
		"amount":           smallestUnits(amount, currency),
		"wallet_id":        t.WalletId,
		"deposit_id":       deposit.Id,
		"reference_number": deposit.ReferenceNumber,
		"transition_id":    t.Id,
		"actor_id":         t.ActorId,
		"amount_human":     amount.String(),
	}
	return script, vars, true
}

// smallestUnits converts amount to the integer minor-unit string Numscript
// expects. Digits beyond the currency precision are truncated, and the
// truncation is logged since the mirror then drifts from the local ledger.
func smallestUnits(amount decimal.Decimal, currency string) string {
	precision := precisionFor(currency)
	shifted := amount.Shift(int32(precision))
	if !shifted.Equal(shifted.Truncate(0)) {
		zap.L().Warn("Amount exceeds currency precision, mirrored value truncated",
			zap.String("amount", amount.String()),
			zap.String("currency", currency),
			zap.Int("precision", precision),
			zap.String("mirrored", shifted.Truncate(0).Shift(-int32(precision)).String()))
	}
	return shifted.BigInt().String()
}
