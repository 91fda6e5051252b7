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

package common

import (
	"context"
	"fmt"

	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"go.uber.org/zap"
)

// ResolveWallets returns the wallets a command should act on: one wallet by
// id, every wallet of a user, or all wallets when both filters are empty.
func ResolveWallets(ctx context.Context, s store.LedgerStore, walletId, userId string) ([]models.Wallet, error) {
	if walletId != "" {
		w, err := s.GetWallet(ctx, walletId)
		if err != nil {
			return nil, fmt.Errorf("wallet not found: %w", err)
		}
		return []models.Wallet{*w}, nil
	}

	all, err := s.ListWallets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallets: %w", err)
	}

	if userId == "" {
		zap.L().Info("Retrieved wallets", zap.Int("count", len(all)))
		return all, nil
	}

	var wallets []models.Wallet
	for _, w := range all {
		if w.UserId == userId {
			wallets = append(wallets, w)
		}
	}
	zap.L().Info("Retrieved wallets for user", zap.String("user_id", userId), zap.Int("count", len(wallets)))
	return wallets, nil
}
