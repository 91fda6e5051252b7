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

	"deposit-ledger-go/internal/ledger"
	"deposit-ledger-go/internal/models"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubmitParams carries operator input as entered; amounts are decimal strings.
type SubmitParams struct {
	UserId        string
	WalletId      string
	Amount        string
	Currency      string
	Method        string
	MethodDetails map[string]string
	ExternalId    string
	ActorId       string
}

type ApproveParams struct {
	DepositId      string
	ActorId        string
	Reason         string
	ReceivedAmount string // optional
	ExchangeRate   string // optional
	IdempotencyKey string
}

// TransitionParams covers reject and reverse.
type TransitionParams struct {
	DepositId      string
	ActorId        string
	Reason         string
	IdempotencyKey string
}

func (s *OperatorService) SubmitDeposit(ctx context.Context, p SubmitParams) (*models.OperationResult, error) {
	amount, err := parseAmount("amount", p.Amount)
	if err != nil {
		return failed("submit", err), nil
	}

	res, err := s.engine.Submit(ctx, ledger.SubmitRequest{
		UserId:        p.UserId,
		WalletId:      p.WalletId,
		Amount:        amount,
		Currency:      p.Currency,
		Method:        p.Method,
		MethodDetails: p.MethodDetails,
		ExternalId:    p.ExternalId,
		ActorId:       p.ActorId,
	})
	if err != nil {
		return failed("submit", err), nil
	}
	return succeeded(res), nil
}

func (s *OperatorService) ApproveDeposit(ctx context.Context, p ApproveParams) (*models.OperationResult, error) {
	received, err := parseOptional("received amount", p.ReceivedAmount)
	if err != nil {
		return failed("approve", err), nil
	}
	rate, err := parseOptional("exchange rate", p.ExchangeRate)
	if err != nil {
		return failed("approve", err), nil
	}

	res, err := s.engine.Approve(ctx, ledger.ApproveRequest{
		DepositId:      p.DepositId,
		ActorId:        p.ActorId,
		Reason:         p.Reason,
		ReceivedAmount: received,
		ExchangeRate:   rate,
		IdempotencyKey: p.IdempotencyKey,
	})
	if err != nil {
		return failed("approve", err), nil
	}
	return succeeded(res), nil
}

func (s *OperatorService) RejectDeposit(ctx context.Context, p TransitionParams) (*models.OperationResult, error) {
	res, err := s.engine.Reject(ctx, ledger.RejectRequest{
		DepositId:      p.DepositId,
		ActorId:        p.ActorId,
		Reason:         p.Reason,
		IdempotencyKey: p.IdempotencyKey,
	})
	if err != nil {
		return failed("reject", err), nil
	}
	return succeeded(res), nil
}

func (s *OperatorService) ReverseDeposit(ctx context.Context, p TransitionParams) (*models.OperationResult, error) {
	res, err := s.engine.Reverse(ctx, ledger.ReverseRequest{
		DepositId:      p.DepositId,
		ActorId:        p.ActorId,
		Reason:         p.Reason,
		IdempotencyKey: p.IdempotencyKey,
	})
	if err != nil {
		return failed("reverse", err), nil
	}
	return succeeded(res), nil
}

func succeeded(res *ledger.Result) *models.OperationResult {
	return &models.OperationResult{
		Success:      true,
		Replayed:     res.Replayed,
		Deposit:      res.Deposit,
		Transition:   res.Transition,
		Verification: res.Verification,
	}
}

func failed(operation string, err error) *models.OperationResult {
	kind := ledger.KindOf(err)
	zap.L().Debug("Operator request failed",
		zap.String("operation", operation),
		zap.String("kind", kind),
		zap.Error(err))
	return &models.OperationResult{
		Success:   false,
		ErrorKind: kind,
		Error:     err.Error(),
	}
}

func parseAmount(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, ledger.InvalidInput("%s is required", field)
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, ledger.InvalidInput("%s %q is not a number", field, raw)
	}
	return d, nil
}

func parseOptional(field, raw string) (decimal.NullDecimal, error) {
	if raw == "" {
		return decimal.NullDecimal{}, nil
	}
	d, err := parseAmount(field, raw)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
