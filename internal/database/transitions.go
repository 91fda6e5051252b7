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
	"database/sql"
	"errors"
	"fmt"

	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// InsertTransition appends to the transition log. A second row for the same
// idempotency key or (deposit, new state) returns store.ErrDuplicate.
func (r *repository) InsertTransition(ctx context.Context, t *models.Transition) error {
	_, err := r.exec(ctx, queryInsertTransition,
		t.Id, t.DepositId, t.UserId, t.WalletId, string(t.PreviousState), string(t.NewState), t.Reason,
		t.ActorId, t.ActorEmail, t.IdempotencyKey,
		t.BalanceBefore.String(), t.BalanceAfter.String(), t.BalanceAdjustment.String(), t.CreatedAt)
	if err != nil {
		if r.d.isUniqueViolation(err) {
			return fmt.Errorf("%w: transition %s -> %s for deposit %s (key %q)",
				store.ErrDuplicate, t.PreviousState, t.NewState, t.DepositId, t.IdempotencyKey)
		}
		return fmt.Errorf("failed to insert transition: %w", err)
	}
	return nil
}

// GetTransitionByIdempotencyKey returns nil, nil when the key has not been used.
func (r *repository) GetTransitionByIdempotencyKey(ctx context.Context, key string) (*models.Transition, error) {
	if key == "" {
		return nil, nil
	}

	t, err := scanTransition(r.queryRow(ctx, queryGetTransitionByIdempotencyKey, key))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get transition by idempotency key: %w", err)
	}
	return t, nil
}

// GetDepositTransitions returns a deposit's transitions oldest first.
func (r *repository) GetDepositTransitions(ctx context.Context, depositId string) ([]models.Transition, error) {
	zap.L().Debug("Getting deposit transitions", zap.String("deposit_id", depositId))

	rows, err := r.query(ctx, queryGetDepositTransitions, depositId)
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit transitions: %w", err)
	}
	defer closeRows(rows)

	var transitions []models.Transition
	for rows.Next() {
		t, err := scanTransition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transition: %w", err)
		}
		transitions = append(transitions, *t)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transition row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transition rows: %w", err)
	}
	return transitions, nil
}

// SumWalletAdjustments adds the wallet's transition adjustments and its
// corrections. Amounts are stored as text, so the sums are done in decimal
// rather than by the database.
func (r *repository) SumWalletAdjustments(ctx context.Context, walletId string) (decimal.Decimal, decimal.Decimal, error) {
	rows, err := r.query(ctx, queryWalletAdjustments, walletId, walletId)
	if err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("failed to read wallet adjustments: %w", err)
	}
	defer closeRows(rows)

	transitions, corrections := decimal.Zero, decimal.Zero
	for rows.Next() {
		var (
			source string
			adj    decimal.Decimal
		)
		if err := rows.Scan(&source, &adj); err != nil {
			return decimal.Zero, decimal.Zero, fmt.Errorf("failed to scan adjustment: %w", err)
		}
		if source == "correction" {
			corrections = corrections.Add(adj)
		} else {
			transitions = transitions.Add(adj)
		}
	}

	if err := rows.Err(); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("error iterating adjustment rows: %w", err)
	}
	return transitions, corrections, nil
}

func scanTransition(row rowScanner) (*models.Transition, error) {
	var (
		t              models.Transition
		previous, next string
	)
	err := row.Scan(&t.Id, &t.DepositId, &t.UserId, &t.WalletId, &previous, &next, &t.Reason,
		&t.ActorId, &t.ActorEmail, &t.IdempotencyKey,
		&t.BalanceBefore, &t.BalanceAfter, &t.BalanceAdjustment, &t.CreatedAt)
	if err != nil {
		return nil, err
	}
	t.PreviousState = models.DepositStatus(previous)
	t.NewState = models.DepositStatus(next)
	return &t, nil
}
