/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"deposit-ledger-go/internal/ledger"
	"deposit-ledger-go/internal/metrics"
	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// highSeverityThreshold is the absolute discrepancy above which a balance
// mismatch is reported as high severity.
var highSeverityThreshold = decimal.NewFromInt(100)

// Auditor recomputes wallet balances from deposits. It reads through the
// store and only writes on an operator-invoked Correct.
type Auditor struct {
	store   store.LedgerStore
	epsilon decimal.Decimal
	workers int
	mirror  store.Mirror
	now     func() time.Time
}

type Option func(*Auditor)

// WithWorkers bounds how many wallets ReconcileAll verifies at once.
func WithWorkers(n int) Option {
	return func(a *Auditor) {
		if n > 0 {
			a.workers = n
		}
	}
}

func WithMirror(m store.Mirror) Option {
	return func(a *Auditor) { a.mirror = m }
}

func WithClock(now func() time.Time) Option {
	return func(a *Auditor) { a.now = now }
}

func NewAuditor(s store.LedgerStore, epsilon decimal.Decimal, opts ...Option) *Auditor {
	a := &Auditor{
		store:   s,
		epsilon: epsilon,
		workers: 4,
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ExpectedBalance derives a wallet balance from its deposits: received
// amounts of every deposit that reached approval, minus those that were
// later reversed.
func ExpectedBalance(deposits []models.Deposit) (decimal.Decimal, models.DepositSummary) {
	credits, debits := decimal.Zero, decimal.Zero
	var summary models.DepositSummary

	for _, d := range deposits {
		summary.Total++
		switch d.Status {
		case models.StatusPending:
			summary.Pending++
		case models.StatusApproved:
			summary.Approved++
			credits = credits.Add(d.CreditedAmount())
		case models.StatusRejected:
			summary.Rejected++
		case models.StatusReversed:
			summary.Reversed++
			credits = credits.Add(d.CreditedAmount())
			debits = debits.Add(d.CreditedAmount())
		}
	}
	return credits.Sub(debits), summary
}

// VerifyWallet compares the stored balance with the deposit-derived one.
// Mismatches are returned as data. A deposit read failure yields status
// unknown instead of an assertion either way; only a missing wallet is an
// error.
func (a *Auditor) VerifyWallet(ctx context.Context, walletId string) (*models.WalletVerification, error) {
	result := &models.WalletVerification{
		WalletId:  walletId,
		Status:    models.VerificationUnknown,
		CheckedAt: a.now(),
	}

	// One snapshot, so a deposit committed between the reads cannot show up
	// as a mismatch.
	var (
		wallet                   *models.Wallet
		deposits                 []models.Deposit
		transitions, corrections decimal.Decimal
		sumErr                   error
	)
	err := a.store.ReadSnapshot(ctx, func(ctx context.Context, r store.Reader) error {
		var err error
		if wallet, err = r.GetWallet(ctx, walletId); err != nil {
			return err
		}
		if deposits, err = r.ListWalletDeposits(ctx, walletId); err != nil {
			return err
		}
		transitions, corrections, sumErr = r.SumWalletAdjustments(ctx, walletId)
		return nil
	})
	if wallet == nil && errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("%w: wallet %s not found", ledger.ErrInvalidInput, walletId)
	}
	if wallet != nil {
		result.Currency = wallet.Currency
		result.ActualBalance = wallet.Balance
	}
	if err != nil {
		return a.unknown(result, err), nil
	}

	expected, summary := ExpectedBalance(deposits)
	result.ExpectedBalance = expected
	result.Summary = summary
	result.Discrepancy = wallet.Balance.Sub(expected)
	result.IsValid = a.withinEpsilon(result.Discrepancy)

	if result.IsValid {
		result.Status = models.VerificationBalanced
	} else {
		result.Status = models.VerificationMismatch
		severity := models.SeverityMedium
		if result.Discrepancy.Abs().GreaterThan(highSeverityThreshold) {
			severity = models.SeverityHigh
		}
		result.Issues = append(result.Issues, models.ReconciliationIssue{
			Type:     models.IssueBalanceMismatch,
			Severity: severity,
			Amount:   result.Discrepancy,
			Message: fmt.Sprintf("Balance mismatch: actual %s, expected %s",
				wallet.Balance.String(), expected.String()),
		})
	}

	if sumErr != nil {
		zap.L().Warn("Unable to read transition log for wallet", zap.String("wallet_id", walletId), zap.Error(sumErr))
	} else {
		result.LedgerBalance = transitions.Add(corrections)
		if drift := transitions.Sub(expected); !a.withinEpsilon(drift) {
			result.Issues = append(result.Issues, models.ReconciliationIssue{
				Type:     models.IssueLedgerDrift,
				Severity: models.SeverityHigh,
				Amount:   drift,
				Message: fmt.Sprintf("Transition log nets to %s but deposits imply %s",
					transitions.String(), expected.String()),
			})
		}
	}

	if summary.Pending > 0 {
		result.Issues = append(result.Issues, models.ReconciliationIssue{
			Type:     models.IssuePendingDeposits,
			Severity: models.SeverityLow,
			Count:    summary.Pending,
			Message:  fmt.Sprintf("%d deposits pending approval", summary.Pending),
		})
	}

	if result.IsValid {
		zap.L().Debug("Wallet balanced",
			zap.String("wallet_id", walletId),
			zap.String("balance", wallet.Balance.String()))
	} else {
		zap.L().Error("Wallet balance mismatch",
			zap.String("wallet_id", walletId),
			zap.String("actual", wallet.Balance.String()),
			zap.String("expected", expected.String()),
			zap.String("discrepancy", result.Discrepancy.String()))
	}
	return result, nil
}

func (a *Auditor) unknown(result *models.WalletVerification, err error) *models.WalletVerification {
	zap.L().Error("Unable to verify wallet, reporting unknown",
		zap.String("wallet_id", result.WalletId),
		zap.Error(err))

	result.Status = models.VerificationUnknown
	result.IsValid = false
	result.Error = err.Error()
	result.Issues = append(result.Issues, models.ReconciliationIssue{
		Type:     models.IssueReconcileFailure,
		Severity: models.SeverityCritical,
		Message:  "Reconciliation failed: " + err.Error(),
	})
	return result
}

func (a *Auditor) withinEpsilon(d decimal.Decimal) bool {
	return d.IsZero() || d.Abs().LessThan(a.epsilon)
}

// ReconcileAll verifies every wallet and reports counts and the wallets that
// need attention. It never changes a balance.
func (a *Auditor) ReconcileAll(ctx context.Context) (*models.ReconciliationReport, error) {
	report := &models.ReconciliationReport{
		StartedAt:        a.now(),
		TotalDiscrepancy: decimal.Zero,
	}

	walletIds, err := a.store.ListWalletIds(ctx)
	if err != nil {
		metrics.ReconcileRuns.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("%w: unable to list wallets: %w", ledger.ErrPersistence, err)
	}

	results := make([]*models.WalletVerification, len(walletIds))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.workers)
	for i, walletId := range walletIds {
		g.Go(func() error {
			v, err := a.VerifyWallet(gctx, walletId)
			if err != nil {
				// Deleted between listing and verifying.
				v = a.unknown(&models.WalletVerification{WalletId: walletId, CheckedAt: a.now()}, err)
			}
			results[i] = v
			return nil
		})
	}
	_ = g.Wait()

	for _, v := range results {
		report.TotalWallets++
		switch v.Status {
		case models.VerificationBalanced:
			report.Balanced++
		case models.VerificationMismatch:
			report.Mismatched++
			report.TotalDiscrepancy = report.TotalDiscrepancy.Add(v.Discrepancy.Abs())
			report.Mismatches = append(report.Mismatches, *v)
		default:
			report.Unknown++
			report.Unverified = append(report.Unverified, *v)
		}
	}
	report.CompletedAt = a.now()

	metrics.ObserveReconcile(report.Balanced, report.Mismatched, report.Unknown, report.TotalDiscrepancy.InexactFloat64())
	zap.L().Info("Reconciliation complete",
		zap.Int("wallets", report.TotalWallets),
		zap.Int("balanced", report.Balanced),
		zap.Int("mismatched", report.Mismatched),
		zap.Int("unknown", report.Unknown),
		zap.String("total_discrepancy", report.TotalDiscrepancy.String()))
	return report, nil
}

// Correct sets a drifted wallet's balance to its deposit-derived value and
// records the change as a wallet correction. It is an operator action only;
// the ledger engine never calls it.
func (a *Auditor) Correct(ctx context.Context, walletId, reason, actorId string) (*models.CorrectionResult, error) {
	if walletId == "" {
		return nil, fmt.Errorf("%w: wallet id is required", ledger.ErrInvalidInput)
	}
	if reason == "" {
		return nil, fmt.Errorf("%w: a correction reason is required", ledger.ErrInvalidInput)
	}
	if actorId == "" {
		return nil, fmt.Errorf("%w: actor id is required", ledger.ErrInvalidInput)
	}

	var correction *models.WalletCorrection
	var wallet *models.Wallet
	err := a.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		wallet, err = tx.LockWallet(ctx, walletId)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("%w: wallet %s not found", ledger.ErrInvalidInput, walletId)
		}
		if err != nil {
			return err
		}

		deposits, err := tx.ListWalletDeposits(ctx, walletId)
		if err != nil {
			return err
		}
		expected, _ := ExpectedBalance(deposits)

		before := wallet.Balance
		adjustment := expected.Sub(before)
		if a.withinEpsilon(adjustment) {
			return nil
		}

		now := a.now()
		wallet.Balance = expected
		if err := tx.UpdateWalletBalance(ctx, wallet); err != nil {
			return err
		}

		correction = &models.WalletCorrection{
			Id:              uuid.New().String(),
			WalletId:        walletId,
			BalanceBefore:   before,
			BalanceAfter:    expected,
			Adjustment:      adjustment,
			ExpectedBalance: expected,
			Reason:          reason,
			ActorId:         actorId,
			CreatedAt:       now,
		}
		if err := tx.InsertCorrection(ctx, correction); err != nil {
			return err
		}

		return tx.InsertAuditEntry(ctx, &models.AuditEntry{
			Id:            uuid.New().String(),
			Operation:     "wallet_correction",
			Status:        "success",
			WalletId:      walletId,
			ActorId:       actorId,
			PreviousState: fmt.Sprintf(`{"wallet_balance":%q}`, before.String()),
			NewState:      fmt.Sprintf(`{"wallet_balance":%q}`, expected.String()),
			CreatedAt:     now,
		})
	})
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidInput) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ledger.ErrPersistence, err)
	}

	result := &models.CorrectionResult{Applied: correction != nil, Correction: correction}
	if correction != nil {
		metrics.CorrectionsTotal.Inc()
		zap.L().Warn("Wallet balance corrected",
			zap.String("wallet_id", walletId),
			zap.String("actor_id", actorId),
			zap.String("before", correction.BalanceBefore.String()),
			zap.String("after", correction.BalanceAfter.String()),
			zap.String("reason", reason))

		if a.mirror != nil {
			if err := a.mirror.RecordCorrection(ctx, wallet, correction); err != nil {
				metrics.MirrorFailures.WithLabelValues("correction").Inc()
				zap.L().Warn("Failed to mirror correction to external ledger",
					zap.String("correction_id", correction.Id),
					zap.Error(err))
			}
		}
	} else {
		zap.L().Info("Wallet already balanced, no correction applied", zap.String("wallet_id", walletId))
	}

	verification, err := a.VerifyWallet(ctx, walletId)
	if err != nil {
		return nil, err
	}
	result.Verification = verification
	return result, nil
}
