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

package database

// Queries are written with ? placeholders and rebound per dialect.
const (
	// Wallet queries
	walletColumns = `id, user_id, currency, balance, total_deposited, version, created_at, updated_at`

	queryInsertWallet = `
		INSERT INTO wallets (id, user_id, currency, balance, total_deposited, version, created_at, updated_at)
		VALUES (?, ?, ?, '0', '0', 1, ?, ?)`

	queryGetWallet = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE id = ?`

	queryGetWalletByUserCurrency = `
		SELECT ` + walletColumns + `
		FROM wallets
		WHERE user_id = ? AND currency = ?`

	queryListWallets = `
		SELECT ` + walletColumns + `
		FROM wallets
		ORDER BY user_id, currency`

	queryListWalletIds = `
		SELECT id FROM wallets ORDER BY id`

	queryUpdateWalletBalance = `
		UPDATE wallets
		SET balance = ?, total_deposited = ?, version = version + 1, updated_at = ?
		WHERE id = ? AND version = ?`

	queryOverwriteWalletBalance = `
		UPDATE wallets
		SET balance = ?, total_deposited = ?, version = version + 1, updated_at = ?
		WHERE id = ?`

	// Deposit queries
	depositColumns = `id, external_id, user_id, wallet_id, amount, currency, method, method_details,
		reference_number, status, received_amount, exchange_rate,
		approved_by, approved_at, rejected_by, rejected_at, rejection_reason,
		reversed_by, reversed_at, reversal_reason, version, created_at, updated_at`

	queryInsertDeposit = `
		INSERT INTO deposits (
			id, external_id, user_id, wallet_id, amount, currency, method, method_details,
			reference_number, status, version, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetDeposit = `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE id = ?`

	queryGetDepositByExternalId = `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE external_id = ?`

	queryListWalletDeposits = `
		SELECT ` + depositColumns + `
		FROM deposits
		WHERE wallet_id = ?
		ORDER BY created_at, id`

	queryListDepositsBase = `
		SELECT ` + depositColumns + `
		FROM deposits`

	// received_amount and exchange_rate are set once; COALESCE keeps the first value.
	queryUpdateDeposit = `
		UPDATE deposits
		SET status = ?,
		    received_amount = COALESCE(received_amount, ?),
		    exchange_rate = COALESCE(exchange_rate, ?),
		    approved_by = ?, approved_at = ?,
		    rejected_by = ?, rejected_at = ?, rejection_reason = ?,
		    reversed_by = ?, reversed_at = ?, reversal_reason = ?,
		    version = version + 1, updated_at = ?
		WHERE id = ? AND status = ? AND version = ?`

	// Transition queries
	transitionColumns = `id, deposit_id, user_id, wallet_id, previous_state, new_state, reason,
		actor_id, actor_email, idempotency_key, balance_before, balance_after, balance_adjustment, created_at`

	queryInsertTransition = `
		INSERT INTO deposit_transitions (` + transitionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetTransitionByIdempotencyKey = `
		SELECT ` + transitionColumns + `
		FROM deposit_transitions
		WHERE idempotency_key = ?`

	queryGetDepositTransitions = `
		SELECT ` + transitionColumns + `
		FROM deposit_transitions
		WHERE deposit_id = ?
		ORDER BY created_at, id`

	queryWalletAdjustments = `
		SELECT 'transition', balance_adjustment FROM deposit_transitions WHERE wallet_id = ?
		UNION ALL
		SELECT 'correction', adjustment FROM wallet_corrections WHERE wallet_id = ?`

	// Correction and audit queries
	queryInsertCorrection = `
		INSERT INTO wallet_corrections (
			id, wallet_id, balance_before, balance_after, adjustment, expected_balance, reason, actor_id, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryInsertAuditEntry = `
		INSERT INTO deposit_audit_log (
			id, operation, status, deposit_id, wallet_id, actor_id, idempotency_key,
			previous_state, new_state, error_message, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	queryGetAuditEntries = `
		SELECT id, operation, status, deposit_id, wallet_id, actor_id, idempotency_key,
		       previous_state, new_state, error_message, created_at
		FROM deposit_audit_log
		WHERE deposit_id = ?
		ORDER BY created_at, id`
)
