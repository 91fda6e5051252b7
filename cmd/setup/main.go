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

package main

import (
	"context"
	"flag"
	"fmt"
	"strings"

	"deposit-ledger-go/internal/common"
	"deposit-ledger-go/internal/config"
	"deposit-ledger-go/internal/database"

	"go.uber.org/zap"
)

// createWallets creates one wallet per currency for the user. Existing
// wallets are returned unchanged.
func createWallets(ctx context.Context, dbService *database.Service, userId string, currencies []string) {
	var created, failed int
	for _, currency := range currencies {
		currency = strings.ToUpper(strings.TrimSpace(currency))
		if currency == "" {
			continue
		}

		wallet, err := dbService.CreateWallet(ctx, userId, currency)
		if err != nil {
			failed++
			zap.L().Error("Error creating wallet",
				zap.String("user_id", userId),
				zap.String("currency", currency),
				zap.Error(err))
			continue
		}
		created++

		fmt.Printf("✓ Wallet %s  user=%s  currency=%s  balance=%s\n",
			wallet.Id, wallet.UserId, wallet.Currency, wallet.Balance.String())
	}

	if failed > 0 {
		zap.L().Warn("Wallet setup completed with some failures",
			zap.Int("wallets_ready", created),
			zap.Int("failed", failed))
	} else {
		zap.L().Info("Wallet setup completed successfully", zap.Int("wallets_ready", created))
	}
}

func main() {
	ctx := context.Background()

	_, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Create wallets for this user id (optional)")
	currenciesFlag := flag.String("currencies", "PHP", "Comma-separated wallet currencies to create for -user")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		zap.L().Fatal("Failed to load config", zap.Error(err))
	}

	// Opening the database creates the schema.
	zap.L().Info("Initializing database", zap.String("driver", cfg.Database.Driver))
	dbService, err := common.InitializeDatabaseOnly(ctx, cfg)
	if err != nil {
		zap.L().Fatal("Failed to initialize database", zap.Error(err))
	}
	defer dbService.Close()

	if *userFlag == "" {
		zap.L().Info("Initialization complete")
		return
	}

	createWallets(ctx, dbService, *userFlag, strings.Split(*currenciesFlag, ","))
}
