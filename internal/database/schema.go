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

import "fmt"

// schemaStatements returns the DDL for the given dialect, one statement per
// entry so it can run through drivers that reject multi-statement Exec.
func schemaStatements(d dialect) []string {
	ts := d.timestampType()
	return []string{
		// Wallets are owned by the surrounding application; the ledger moves balance and total_deposited.
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS wallets (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			currency TEXT NOT NULL,
			balance TEXT NOT NULL DEFAULT '0',
			total_deposited TEXT NOT NULL DEFAULT '0',
			version INTEGER NOT NULL DEFAULT 1,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL,
			UNIQUE(user_id, currency)
		)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_wallets_user_id ON wallets(user_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS deposits (
			id TEXT PRIMARY KEY,
			external_id TEXT,
			user_id TEXT NOT NULL,
			wallet_id TEXT NOT NULL REFERENCES wallets(id),
			amount TEXT NOT NULL,
			currency TEXT NOT NULL,
			method TEXT NOT NULL DEFAULT '',
			method_details TEXT NOT NULL DEFAULT '{}',
			reference_number TEXT NOT NULL,
			status TEXT NOT NULL,
			received_amount TEXT,
			exchange_rate TEXT,
			approved_by TEXT NOT NULL DEFAULT '',
			approved_at %[1]s,
			rejected_by TEXT NOT NULL DEFAULT '',
			rejected_at %[1]s,
			rejection_reason TEXT NOT NULL DEFAULT '',
			reversed_by TEXT NOT NULL DEFAULT '',
			reversed_at %[1]s,
			reversal_reason TEXT NOT NULL DEFAULT '',
			version INTEGER NOT NULL DEFAULT 1,
			created_at %[1]s NOT NULL,
			updated_at %[1]s NOT NULL
		)`, ts),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_deposits_external_id ON deposits(external_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_deposits_reference_number ON deposits(reference_number)`,
		`CREATE INDEX IF NOT EXISTS idx_deposits_wallet_status ON deposits(wallet_id, status)`,
		`CREATE INDEX IF NOT EXISTS idx_deposits_user_id ON deposits(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_deposits_created_at ON deposits(created_at)`,

		// Append-only. One row per (deposit, resulting state).
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS deposit_transitions (
			id TEXT PRIMARY KEY,
			deposit_id TEXT NOT NULL REFERENCES deposits(id),
			user_id TEXT NOT NULL,
			wallet_id TEXT NOT NULL,
			previous_state TEXT NOT NULL,
			new_state TEXT NOT NULL,
			reason TEXT NOT NULL DEFAULT '',
			actor_id TEXT NOT NULL DEFAULT '',
			actor_email TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL,
			balance_before TEXT NOT NULL,
			balance_after TEXT NOT NULL,
			balance_adjustment TEXT NOT NULL,
			created_at %[1]s NOT NULL
		)`, ts),
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transitions_idempotency_key ON deposit_transitions(idempotency_key)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_transitions_deposit_state ON deposit_transitions(deposit_id, new_state)`,
		`CREATE INDEX IF NOT EXISTS idx_transitions_wallet_id ON deposit_transitions(wallet_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS wallet_corrections (
			id TEXT PRIMARY KEY,
			wallet_id TEXT NOT NULL REFERENCES wallets(id),
			balance_before TEXT NOT NULL,
			balance_after TEXT NOT NULL,
			adjustment TEXT NOT NULL,
			expected_balance TEXT NOT NULL,
			reason TEXT NOT NULL,
			actor_id TEXT NOT NULL,
			created_at %[1]s NOT NULL
		)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_wallet_corrections_wallet_id ON wallet_corrections(wallet_id)`,

		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS deposit_audit_log (
			id TEXT PRIMARY KEY,
			operation TEXT NOT NULL,
			status TEXT NOT NULL,
			deposit_id TEXT NOT NULL DEFAULT '',
			wallet_id TEXT NOT NULL DEFAULT '',
			actor_id TEXT NOT NULL DEFAULT '',
			idempotency_key TEXT NOT NULL DEFAULT '',
			previous_state TEXT NOT NULL DEFAULT '',
			new_state TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			created_at %[1]s NOT NULL
		)`, ts),
		`CREATE INDEX IF NOT EXISTS idx_audit_log_deposit_id ON deposit_audit_log(deposit_id)`,
		`CREATE INDEX IF NOT EXISTS idx_audit_log_created_at ON deposit_audit_log(created_at)`,
	}
}
