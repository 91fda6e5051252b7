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
	"time"

	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// CreateWallet creates a zero-balance wallet, or returns the existing one for
// the same (user, currency).
func (s *Service) CreateWallet(ctx context.Context, userId, currency string) (*models.Wallet, error) {
	if userId == "" || currency == "" {
		return nil, fmt.Errorf("user id and currency are required")
	}

	now := time.Now().UTC()
	walletId := uuid.New().String()
	_, err := s.exec(ctx, queryInsertWallet, walletId, userId, currency, now, now)
	if err != nil && !s.d.isUniqueViolation(err) {
		return nil, fmt.Errorf("failed to create wallet: %w", err)
	}
	if err != nil {
		zap.L().Info("Wallet already exists", zap.String("user_id", userId), zap.String("currency", currency))
	} else {
		zap.L().Info("Wallet created",
			zap.String("wallet_id", walletId),
			zap.String("user_id", userId),
			zap.String("currency", currency))
	}

	wallet, err := scanWallet(s.queryRow(ctx, queryGetWalletByUserCurrency, userId, currency))
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	return wallet, nil
}

func (s *Service) ListWallets(ctx context.Context) ([]models.Wallet, error) {
	rows, err := s.query(ctx, queryListWallets)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.Wallet
	for rows.Next() {
		wallet, err := scanWallet(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wallet: %w", err)
		}
		wallets = append(wallets, *wallet)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return wallets, nil
}

// UpdateBalance overwrites a wallet balance outside of the ledger engine, the
// way the owning application moves money for spends and withdrawals.
func (s *Service) UpdateBalance(ctx context.Context, walletId string, newBalance, newTotalDeposited decimal.Decimal) error {
	result, err := s.exec(ctx, queryOverwriteWalletBalance,
		newBalance.String(), newTotalDeposited.String(), time.Now().UTC(), walletId)
	if err != nil {
		return fmt.Errorf("failed to update wallet balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("%w: wallet %s", store.ErrNotFound, walletId)
	}

	zap.L().Info("Wallet balance overwritten",
		zap.String("wallet_id", walletId),
		zap.String("balance", newBalance.String()),
		zap.String("total_deposited", newTotalDeposited.String()))
	return nil
}

func (r *repository) GetWallet(ctx context.Context, walletId string) (*models.Wallet, error) {
	return r.getWallet(ctx, queryGetWallet, walletId)
}

// LockWallet reads the wallet and holds its row lock until the transaction ends.
func (r *repository) LockWallet(ctx context.Context, walletId string) (*models.Wallet, error) {
	return r.getWallet(ctx, queryGetWallet+r.d.forUpdate(), walletId)
}

func (r *repository) getWallet(ctx context.Context, query, walletId string) (*models.Wallet, error) {
	wallet, err := scanWallet(r.queryRow(ctx, query, walletId))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: wallet %s", store.ErrNotFound, walletId)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet %s: %w", walletId, err)
	}
	return wallet, nil
}

func (r *repository) ListWalletIds(ctx context.Context) ([]string, error) {
	rows, err := r.query(ctx, queryListWalletIds)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallet ids: %w", err)
	}
	defer closeRows(rows)

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan wallet id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet rows: %w", err)
	}
	return ids, nil
}

// UpdateWalletBalance writes balance and total_deposited with optimistic
// locking on wallet.Version, then bumps the in-memory version.
func (r *repository) UpdateWalletBalance(ctx context.Context, wallet *models.Wallet) error {
	now := time.Now().UTC()
	result, err := r.exec(ctx, queryUpdateWalletBalance,
		wallet.Balance.String(), wallet.TotalDeposited.String(), now, wallet.Id, wallet.Version)
	if err != nil {
		return fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	wallet.Version++
	wallet.UpdatedAt = now
	return nil
}

func scanWallet(row rowScanner) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.Id, &w.UserId, &w.Currency, &w.Balance, &w.TotalDeposited, &w.Version, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &w, nil
}
