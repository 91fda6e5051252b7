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

import (
	"context"
	"fmt"

	"deposit-ledger-go/internal/models"
)

func (r *repository) InsertCorrection(ctx context.Context, c *models.WalletCorrection) error {
	_, err := r.exec(ctx, queryInsertCorrection,
		c.Id, c.WalletId, c.BalanceBefore.String(), c.BalanceAfter.String(), c.Adjustment.String(),
		c.ExpectedBalance.String(), c.Reason, c.ActorId, c.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert wallet correction: %w", err)
	}
	return nil
}

func (r *repository) InsertAuditEntry(ctx context.Context, e *models.AuditEntry) error {
	_, err := r.exec(ctx, queryInsertAuditEntry,
		e.Id, e.Operation, e.Status, e.DepositId, e.WalletId, e.ActorId, e.IdempotencyKey,
		e.PreviousState, e.NewState, e.ErrorMessage, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert audit entry: %w", err)
	}
	return nil
}

// GetAuditEntries returns the audit log for one deposit, oldest first.
func (r *repository) GetAuditEntries(ctx context.Context, depositId string) ([]models.AuditEntry, error) {
	rows, err := r.query(ctx, queryGetAuditEntries, depositId)
	if err != nil {
		return nil, fmt.Errorf("failed to get audit entries: %w", err)
	}
	defer closeRows(rows)

	var entries []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		err := rows.Scan(&e.Id, &e.Operation, &e.Status, &e.DepositId, &e.WalletId, &e.ActorId,
			&e.IdempotencyKey, &e.PreviousState, &e.NewState, &e.ErrorMessage, &e.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}
	return entries, nil
}
