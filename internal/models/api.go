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

// OperationResult is what the operator facade hands back for every mutating
// call. ErrorKind is one of the ledger error kinds so a UI can say
// "deposit already processed" instead of a generic failure.
type OperationResult struct {
	Success      bool                `json:"success"`
	Replayed     bool                `json:"replayed,omitempty"`
	Deposit      *Deposit            `json:"deposit,omitempty"`
	Transition   *Transition         `json:"transition,omitempty"`
	Verification *WalletVerification `json:"verification,omitempty"`
	ErrorKind    string              `json:"error_kind,omitempty"`
	Error        string              `json:"error,omitempty"`
}

// HistoryRecord is one line of a deposit's audit display
type HistoryRecord struct {
	Id                string          `json:"id"`
	From              DepositStatus   `json:"from"`
	To                DepositStatus   `json:"to"`
	Reason            string          `json:"reason"`
	ActorId           string          `json:"actor_id,omitempty"`
	BalanceBefore     decimal.Decimal `json:"balance_before"`
	BalanceAfter      decimal.Decimal `json:"balance_after"`
	BalanceAdjustment decimal.Decimal `json:"balance_adjustment"`
	CreatedAt         time.Time       `json:"created_at"`
}
