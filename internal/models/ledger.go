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

// DepositStatus is the lifecycle state of a deposit.
type DepositStatus string

const (
	// StatusNone is the pseudo state a deposit is in before it is submitted.
	StatusNone     DepositStatus = "none"
	StatusPending  DepositStatus = "pending"
	StatusApproved DepositStatus = "approved"
	StatusRejected DepositStatus = "rejected"
	StatusReversed DepositStatus = "reversed"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s DepositStatus) IsTerminal() bool {
	return s == StatusRejected || s == StatusReversed
}

// Valid reports whether s is one of the persisted deposit states.
func (s DepositStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusReversed:
		return true
	}
	return false
}

// Deposit is a request to credit a wallet
type Deposit struct {
	Id              string              `db:"id"`
	ExternalId      string              `db:"external_id"`
	UserId          string              `db:"user_id"`
	WalletId        string              `db:"wallet_id"`
	Amount          decimal.Decimal     `db:"amount"`
	Currency        string              `db:"currency"`
	Method          string              `db:"method"`
	MethodDetails   map[string]string   `db:"method_details"`
	ReferenceNumber string              `db:"reference_number"`
	Status          DepositStatus       `db:"status"`
	ReceivedAmount  decimal.NullDecimal `db:"received_amount"`
	ExchangeRate    decimal.NullDecimal `db:"exchange_rate"`
	ApprovedBy      string              `db:"approved_by"`
	ApprovedAt      *time.Time          `db:"approved_at"`
	RejectedBy      string              `db:"rejected_by"`
	RejectedAt      *time.Time          `db:"rejected_at"`
	RejectionReason string              `db:"rejection_reason"`
	ReversedBy      string              `db:"reversed_by"`
	ReversedAt      *time.Time          `db:"reversed_at"`
	ReversalReason  string              `db:"reversal_reason"`
	Version         int64               `db:"version"`
	CreatedAt       time.Time           `db:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at"`
}

// CreditedAmount is the amount the deposit moved into its wallet on approval,
// or zero if it was never approved.
func (d *Deposit) CreditedAmount() decimal.Decimal {
	if d.ReceivedAmount.Valid {
		return d.ReceivedAmount.Decimal
	}
	return decimal.Zero
}

// Wallet is one balance per (owner, currency). The ledger only reads it and
// moves balance and total_deposited.
type Wallet struct {
	Id             string          `db:"id"`
	UserId         string          `db:"user_id"`
	Currency       string          `db:"currency"`
	Balance        decimal.Decimal `db:"balance"`
	TotalDeposited decimal.Decimal `db:"total_deposited"`
	Version        int64           `db:"version"`
	CreatedAt      time.Time       `db:"created_at"`
	UpdatedAt      time.Time       `db:"updated_at"`
}

// Transition is the immutable record of one deposit status change
type Transition struct {
	Id                string          `db:"id"`
	DepositId         string          `db:"deposit_id"`
	UserId            string          `db:"user_id"`
	WalletId          string          `db:"wallet_id"`
	PreviousState     DepositStatus   `db:"previous_state"`
	NewState          DepositStatus   `db:"new_state"`
	Reason            string          `db:"reason"`
	ActorId           string          `db:"actor_id"`
	ActorEmail        string          `db:"actor_email"`
	IdempotencyKey    string          `db:"idempotency_key"`
	BalanceBefore     decimal.Decimal `db:"balance_before"`
	BalanceAfter      decimal.Decimal `db:"balance_after"`
	BalanceAdjustment decimal.Decimal `db:"balance_adjustment"`
	CreatedAt         time.Time       `db:"created_at"`
}

// WalletCorrection is an operator-invoked balance repair. It is kept apart
// from deposit transitions so audits show it as a manual correction.
type WalletCorrection struct {
	Id              string          `db:"id"`
	WalletId        string          `db:"wallet_id"`
	BalanceBefore   decimal.Decimal `db:"balance_before"`
	BalanceAfter    decimal.Decimal `db:"balance_after"`
	Adjustment      decimal.Decimal `db:"adjustment"`
	ExpectedBalance decimal.Decimal `db:"expected_balance"`
	Reason          string          `db:"reason"`
	ActorId         string          `db:"actor_id"`
	CreatedAt       time.Time       `db:"created_at"`
}

// AuditEntry is a denormalized, human-facing log row. Nothing reads it back
// to decide correctness.
type AuditEntry struct {
	Id             string    `db:"id"`
	Operation      string    `db:"operation"`
	Status         string    `db:"status"` // "success", "failed"
	DepositId      string    `db:"deposit_id"`
	WalletId       string    `db:"wallet_id"`
	ActorId        string    `db:"actor_id"`
	IdempotencyKey string    `db:"idempotency_key"`
	PreviousState  string    `db:"previous_state"` // JSON snapshot
	NewState       string    `db:"new_state"`      // JSON snapshot
	ErrorMessage   string    `db:"error_message"`
	CreatedAt      time.Time `db:"created_at"`
}
