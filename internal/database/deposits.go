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
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"go.uber.org/zap"
)

func (r *repository) InsertDeposit(ctx context.Context, deposit *models.Deposit) error {
	details := deposit.MethodDetails
	if details == nil {
		details = map[string]string{}
	}
	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return fmt.Errorf("failed to encode method details: %w", err)
	}

	_, err = r.exec(ctx, queryInsertDeposit,
		deposit.Id, nullString(deposit.ExternalId), deposit.UserId, deposit.WalletId,
		deposit.Amount.String(), deposit.Currency, deposit.Method, string(detailsJSON),
		deposit.ReferenceNumber, string(deposit.Status), deposit.Version,
		deposit.CreatedAt, deposit.UpdatedAt)
	if err != nil {
		if r.d.isUniqueViolation(err) {
			return fmt.Errorf("%w: deposit %s (external_id %q)", store.ErrDuplicate, deposit.Id, deposit.ExternalId)
		}
		return fmt.Errorf("failed to insert deposit: %w", err)
	}
	return nil
}

func (r *repository) GetDeposit(ctx context.Context, depositId string) (*models.Deposit, error) {
	return r.getDeposit(ctx, queryGetDeposit, depositId)
}

// LockDeposit reads the deposit and holds its row lock until the transaction ends.
func (r *repository) LockDeposit(ctx context.Context, depositId string) (*models.Deposit, error) {
	return r.getDeposit(ctx, queryGetDeposit+r.d.forUpdate(), depositId)
}

func (r *repository) getDeposit(ctx context.Context, query, depositId string) (*models.Deposit, error) {
	deposit, err := scanDeposit(r.queryRow(ctx, query, depositId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: deposit %s", store.ErrNotFound, depositId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit %s: %w", depositId, err)
	}
	return deposit, nil
}

// GetDepositByExternalId returns nil, nil when no deposit carries the id.
func (r *repository) GetDepositByExternalId(ctx context.Context, externalId string) (*models.Deposit, error) {
	if externalId == "" {
		return nil, nil
	}

	deposit, err := scanDeposit(r.queryRow(ctx, queryGetDepositByExternalId, externalId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get deposit by external id: %w", err)
	}
	return deposit, nil
}

func (r *repository) ListWalletDeposits(ctx context.Context, walletId string) ([]models.Deposit, error) {
	rows, err := r.query(ctx, queryListWalletDeposits, walletId)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet deposits: %w", err)
	}
	defer closeRows(rows)

	return scanDeposits(rows)
}

// ListDeposits returns deposits matching the filter, newest first.
func (r *repository) ListDeposits(ctx context.Context, filter store.DepositFilter) ([]models.Deposit, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.WalletId != "" {
		clauses = append(clauses, "wallet_id = ?")
		args = append(args, filter.WalletId)
	}
	if filter.UserId != "" {
		clauses = append(clauses, "user_id = ?")
		args = append(args, filter.UserId)
	}
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}

	query := queryListDepositsBase
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += " LIMIT ? OFFSET ?"
	args = append(args, limit, filter.Offset)

	zap.L().Debug("Listing deposits",
		zap.String("wallet_id", filter.WalletId),
		zap.String("user_id", filter.UserId),
		zap.String("status", string(filter.Status)),
		zap.Int("limit", limit),
		zap.Int("offset", filter.Offset))

	rows, err := r.query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list deposits: %w", err)
	}
	defer closeRows(rows)

	return scanDeposits(rows)
}

// UpdateDeposit writes the deposit's transition fields if the stored row is
// still at cas.FromStatus and cas.Version. A lost race returns
// store.ErrConcurrentModification and changes nothing.
func (r *repository) UpdateDeposit(ctx context.Context, cas store.DepositCAS) error {
	d := cas.Deposit
	now := time.Now().UTC()

	result, err := r.exec(ctx, queryUpdateDeposit,
		string(d.Status), d.ReceivedAmount, d.ExchangeRate,
		d.ApprovedBy, d.ApprovedAt,
		d.RejectedBy, d.RejectedAt, d.RejectionReason,
		d.ReversedBy, d.ReversedAt, d.ReversalReason,
		now,
		d.Id, string(cas.FromStatus), cas.Version)
	if err != nil {
		return fmt.Errorf("failed to update deposit: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("deposit %s update failed - %w", d.Id, store.ErrConcurrentModification)
	}

	d.Version = cas.Version + 1
	d.UpdatedAt = now
	return nil
}

func scanDeposits(rows *sql.Rows) ([]models.Deposit, error) {
	var deposits []models.Deposit
	for rows.Next() {
		deposit, err := scanDeposit(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan deposit: %w", err)
		}
		deposits = append(deposits, *deposit)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during deposit row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating deposit rows: %w", err)
	}
	return deposits, nil
}

func scanDeposit(row rowScanner) (*models.Deposit, error) {
	var (
		d                                  models.Deposit
		externalId                         sql.NullString
		details, status                    string
		approvedAt, rejectedAt, reversedAt sql.NullTime
	)

	err := row.Scan(&d.Id, &externalId, &d.UserId, &d.WalletId, &d.Amount, &d.Currency, &d.Method, &details,
		&d.ReferenceNumber, &status, &d.ReceivedAmount, &d.ExchangeRate,
		&d.ApprovedBy, &approvedAt, &d.RejectedBy, &rejectedAt, &d.RejectionReason,
		&d.ReversedBy, &reversedAt, &d.ReversalReason, &d.Version, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return nil, err
	}

	d.ExternalId = externalId.String
	d.Status = models.DepositStatus(status)
	d.ApprovedAt = timePtr(approvedAt)
	d.RejectedAt = timePtr(rejectedAt)
	d.ReversedAt = timePtr(reversedAt)

	if details != "" {
		if err := json.Unmarshal([]byte(details), &d.MethodDetails); err != nil {
			return nil, fmt.Errorf("failed to decode method details for deposit %s: %w", d.Id, err)
		}
	}
	return &d, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
