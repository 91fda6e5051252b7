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

package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// VerificationStatus is the outcome of checking one wallet against its deposits.
type VerificationStatus string

const (
	VerificationBalanced VerificationStatus = "balanced"
	VerificationMismatch VerificationStatus = "mismatch"
	// VerificationUnknown means the deposit ledger could not be read, so
	// nothing is asserted about the balance.
	VerificationUnknown VerificationStatus = "unknown"
)

// IssueSeverity mirrors how loudly an operator should be told about an issue
type IssueSeverity string

const (
	SeverityLow      IssueSeverity = "low"
	SeverityMedium   IssueSeverity = "medium"
	SeverityHigh     IssueSeverity = "high"
	SeverityCritical IssueSeverity = "critical"
)

const (
	IssueBalanceMismatch  = "balance_mismatch"
	IssueLedgerDrift      = "ledger_drift"
	IssuePendingDeposits  = "pending_deposits"
	IssueReconcileFailure = "reconciliation_error"
)

// ReconciliationIssue is a single finding attached to a wallet verification
type ReconciliationIssue struct {
	Type     string          `json:"type"`
	Severity IssueSeverity   `json:"severity"`
	Amount   decimal.Decimal `json:"amount,omitempty"`
	Count    int             `json:"count,omitempty"`
	Message  string          `json:"message"`
}

// DepositSummary counts a wallet's deposits by status
type DepositSummary struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
	Reversed int `json:"reversed"`
}

// WalletVerification is the reported (never thrown) result of comparing a
// wallet's stored balance with the balance its deposits imply.
type WalletVerification struct {
	WalletId        string                `json:"wallet_id"`
	Currency        string                `json:"currency"`
	IsValid         bool                  `json:"is_valid"`
	Status          VerificationStatus    `json:"status"`
	ActualBalance   decimal.Decimal       `json:"actual_balance"`
	ExpectedBalance decimal.Decimal       `json:"expected_balance"`
	Discrepancy     decimal.Decimal       `json:"discrepancy"`
	LedgerBalance   decimal.Decimal       `json:"ledger_balance"`
	Summary         DepositSummary        `json:"summary"`
	Issues          []ReconciliationIssue `json:"issues,omitempty"`
	Error           string                `json:"error,omitempty"`
	CheckedAt       time.Time             `json:"checked_at"`
}

// ReconciliationReport is the diagnostic produced by a full pass over all wallets
type ReconciliationReport struct {
	TotalWallets     int                  `json:"total_wallets"`
	Balanced         int                  `json:"balanced"`
	Mismatched       int                  `json:"mismatched"`
	Unknown          int                  `json:"unknown"`
	TotalDiscrepancy decimal.Decimal      `json:"total_discrepancy"`
	Mismatches       []WalletVerification `json:"mismatches,omitempty"`
	Unverified       []WalletVerification `json:"unverified,omitempty"`
	StartedAt        time.Time            `json:"started_at"`
	CompletedAt      time.Time            `json:"completed_at"`
}

// CorrectionResult reports what an operator correction did
type CorrectionResult struct {
	Applied      bool                `json:"applied"`
	Correction   *WalletCorrection   `json:"correction,omitempty"`
	Verification *WalletVerification `json:"verification,omitempty"`
}
