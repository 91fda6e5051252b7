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

package api

import (
	"context"
	"fmt"

	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"go.uber.org/zap"
)

// GetDeposit returns the current state of one deposit.
func (s *OperatorService) GetDeposit(ctx context.Context, depositId string) (*models.Deposit, error) {
	return s.engine.GetDeposit(ctx, depositId)
}

// GetDepositHistory returns the transitions of a deposit in the order they
// happened.
func (s *OperatorService) GetDepositHistory(ctx context.Context, depositId string) ([]models.HistoryRecord, error) {
	transitions, err := s.engine.GetHistory(ctx, depositId)
	if err != nil {
		zap.L().Error("Failed to get deposit history", zap.String("deposit_id", depositId), zap.Error(err))
		return nil, err
	}

	result := make([]models.HistoryRecord, len(transitions))
	for i, t := range transitions {
		result[i] = models.HistoryRecord{
			Id:                t.Id,
			From:              t.PreviousState,
			To:                t.NewState,
			Reason:            t.Reason,
			ActorId:           t.ActorId,
			BalanceBefore:     t.BalanceBefore,
			BalanceAfter:      t.BalanceAfter,
			BalanceAdjustment: t.BalanceAdjustment,
			CreatedAt:         t.CreatedAt,
		}
	}
	return result, nil
}

// ListDeposits returns deposits for the operator queue, newest first.
func (s *OperatorService) ListDeposits(ctx context.Context, filter store.DepositFilter) ([]models.Deposit, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, fmt.Errorf("unknown deposit status %q", filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > 500 {
		filter.Limit = 50
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.engine.ListDeposits(ctx, filter)
}

func (s *OperatorService) VerifyWallet(ctx context.Context, walletId string) (*models.WalletVerification, error) {
	return s.auditor.VerifyWallet(ctx, walletId)
}

func (s *OperatorService) ReconcileAll(ctx context.Context) (*models.ReconciliationReport, error) {
	return s.auditor.ReconcileAll(ctx)
}

func (s *OperatorService) CorrectWallet(ctx context.Context, walletId, reason, actorId string) (*models.CorrectionResult, error) {
	return s.auditor.Correct(ctx, walletId, reason, actorId)
}
