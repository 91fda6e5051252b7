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

	"deposit-ledger-go/internal/common"
	"deposit-ledger-go/internal/config"
	"deposit-ledger-go/internal/models"

	"go.uber.org/zap"
)

type walletStats struct {
	totalWallets int
	verified     int
	mismatched   int
	unknown      int
}

func printWallet(ctx context.Context, services *common.Services, wallet models.Wallet, verify bool, stats *walletStats) {
	fmt.Printf("\n┌─ Wallet: %s\n", wallet.Id)
	fmt.Printf("│  User: %s   Currency: %s\n", wallet.UserId, wallet.Currency)
	common.PrintBoxSeparator(78)

	fmt.Printf("%s %-16s: %20s\n", common.BoxPrefix(false), "Balance", wallet.Balance.String())
	fmt.Printf("%s %-16s: %20s\n", common.BoxPrefix(false), "Total deposited", wallet.TotalDeposited.String())

	if services.Mirror != nil {
		mirrored, err := services.Mirror.WalletBalance(ctx, &wallet)
		if err != nil {
			zap.L().Warn("Failed to read mirrored balance", zap.String("wallet_id", wallet.Id), zap.Error(err))
			fmt.Printf("%s %-16s: %20s\n", common.BoxPrefix(false), "Mirrored", "unavailable")
		} else {
			fmt.Printf("%s %-16s: %20s\n", common.BoxPrefix(false), "Mirrored", mirrored.String())
		}
	}

	fmt.Printf("%s %-16s: v%d, updated %s\n", common.BoxPrefix(!verify), "Version",
		wallet.Version, wallet.UpdatedAt.Format("2006-01-02 15:04:05"))

	if !verify {
		return
	}

	v, err := services.Auditor.VerifyWallet(ctx, wallet.Id)
	if err != nil {
		stats.unknown++
		fmt.Printf("%s %-16s: %s\n", common.BoxPrefix(true), "Verification", err)
		return
	}
	switch v.Status {
	case models.VerificationBalanced:
		stats.verified++
	case models.VerificationMismatch:
		stats.mismatched++
	default:
		stats.unknown++
	}
	fmt.Printf("%s %-16s: %s (expected %s, %d pending)\n", common.BoxPrefix(true), "Verification",
		common.VerificationLabel(v), v.ExpectedBalance.String(), v.Summary.Pending)
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	userFlag := flag.String("user", "", "Filter by user id (optional)")
	walletFlag := flag.String("wallet", "", "Show a single wallet (optional)")
	verifyFlag := flag.Bool("verify", true, "Verify each wallet against its deposits")
	flag.Parse()

	logger.Info("Starting wallet query")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	wallets, err := common.ResolveWallets(ctx, services.DbService, *walletFlag, *userFlag)
	if err != nil {
		logger.Fatal("Failed to resolve wallets", zap.Error(err))
	}

	common.PrintHeader("WALLET REPORT", common.DefaultWidth)

	stats := walletStats{}
	for _, w := range wallets {
		stats.totalWallets++
		printWallet(ctx, services, w, *verifyFlag, &stats)
	}

	summary := fmt.Sprintf("SUMMARY: %d wallets", stats.totalWallets)
	if *verifyFlag {
		summary += fmt.Sprintf(" (%d balanced, %d mismatched, %d unknown)", stats.verified, stats.mismatched, stats.unknown)
	}
	common.PrintFooter(summary, common.DefaultWidth)

	logger.Info("Wallet query completed",
		zap.Int("wallets", stats.totalWallets),
		zap.Int("mismatched", stats.mismatched))
}
