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

func printHistory(records []models.HistoryRecord) {
	for i, r := range records {
		isLast := i == len(records)-1
		actor := r.ActorId
		if actor == "" {
			actor = "system"
		}
		fmt.Printf("%s%s  %s -> %s  by %s\n", common.BoxPrefix(isLast),
			r.CreatedAt.Format("2006-01-02 15:04:05"), r.From, common.StatusLabel(r.To), actor)
		fmt.Printf("%s  balance %s -> %s (%s)  %s\n", common.BoxDetailPrefix(isLast),
			r.BalanceBefore.String(), r.BalanceAfter.String(), r.BalanceAdjustment.String(), r.Reason)
	}
}

func printAudit(entries []models.AuditEntry) {
	for i, e := range entries {
		isLast := i == len(entries)-1
		fmt.Printf("%s%s  %-8s %-8s actor=%s key=%s\n", common.BoxPrefix(isLast),
			e.CreatedAt.Format("2006-01-02 15:04:05"), e.Operation, e.Status, e.ActorId, e.IdempotencyKey)
		if e.ErrorMessage != "" {
			fmt.Printf("%s  error: %s\n", common.BoxDetailPrefix(isLast), e.ErrorMessage)
		}
	}
}

func main() {
	ctx := context.Background()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	depositFlag := flag.String("deposit", "", "Deposit id (required)")
	auditFlag := flag.Bool("audit", false, "Also print the audit log, including failed attempts")
	flag.Parse()

	if *depositFlag == "" {
		flag.Usage()
		logger.Fatal("Missing -deposit")
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	deposit, err := services.Operator.GetDeposit(ctx, *depositFlag)
	if err != nil {
		logger.Fatal("Failed to get deposit", zap.Error(err))
	}

	history, err := services.Operator.GetDepositHistory(ctx, deposit.Id)
	if err != nil {
		logger.Fatal("Failed to get deposit history", zap.Error(err))
	}

	common.PrintHeader(fmt.Sprintf("DEPOSIT %s  %s %s  %s",
		deposit.ReferenceNumber, deposit.Amount.String(), deposit.Currency, deposit.Status), common.WideWidth)
	fmt.Printf("\n┌─ Transitions (%d)\n", len(history))
	printHistory(history)

	if *auditFlag {
		entries, err := services.DbService.GetAuditEntries(ctx, deposit.Id)
		if err != nil {
			logger.Fatal("Failed to get audit entries", zap.Error(err))
		}
		fmt.Printf("\n┌─ Audit log (%d)\n", len(entries))
		printAudit(entries)
	}

	common.PrintFooter(fmt.Sprintf("Wallet %s  user %s", deposit.WalletId, deposit.UserId), common.WideWidth)
}
