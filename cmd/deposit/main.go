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
	"os"
	"strings"

	"deposit-ledger-go/internal/api"
	"deposit-ledger-go/internal/common"
	"deposit-ledger-go/internal/config"
	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"go.uber.org/zap"
)

type options struct {
	action         string
	userId         string
	walletId       string
	amount         string
	currency       string
	method         string
	details        string
	externalId     string
	depositId      string
	actorId        string
	operatorEmail  string
	reason         string
	received       string
	rate           string
	idempotencyKey string
	status         string
	limit          int
}

func parseFlags() options {
	var o options
	flag.StringVar(&o.action, "action", "", "submit | approve | reject | reverse | show | list")
	flag.StringVar(&o.userId, "user", "", "Owner of the wallet (submit, list)")
	flag.StringVar(&o.walletId, "wallet", "", "Wallet to credit (submit, list)")
	flag.StringVar(&o.amount, "amount", "", "Requested amount (submit)")
	flag.StringVar(&o.currency, "currency", "", "Deposit currency, defaults to the wallet currency (submit)")
	flag.StringVar(&o.method, "method", "", "Payment method, e.g. gcash or bank_transfer (submit)")
	flag.StringVar(&o.details, "details", "", "Method details as key=value,key=value (submit)")
	flag.StringVar(&o.externalId, "external-id", "", "Caller id that makes resubmission idempotent (submit)")
	flag.StringVar(&o.depositId, "deposit", "", "Deposit id (approve, reject, reverse, show)")
	flag.StringVar(&o.actorId, "actor", "", "Operator id performing the action")
	flag.StringVar(&o.operatorEmail, "operator-email", os.Getenv("OPERATOR_EMAIL"), "Operator email recorded on transitions")
	flag.StringVar(&o.reason, "reason", "", "Reason recorded on the transition")
	flag.StringVar(&o.received, "received", "", "Amount actually received (approve, optional)")
	flag.StringVar(&o.rate, "rate", "", "Exchange rate override (approve, optional)")
	flag.StringVar(&o.idempotencyKey, "key", "", "Idempotency key; resending the same key replays the result")
	flag.StringVar(&o.status, "status", "", "Status filter (list)")
	flag.IntVar(&o.limit, "limit", 20, "Maximum deposits to list (list)")
	flag.Parse()
	return o
}

// parseDetails turns "k=v,k2=v2" into a map. Pairs without '=' are ignored.
func parseDetails(raw string) map[string]string {
	if raw == "" {
		return nil
	}
	details := make(map[string]string)
	for _, pair := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(pair, "=")
		if !ok || strings.TrimSpace(k) == "" {
			continue
		}
		details[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return details
}

func listDeposits(ctx context.Context, operator *api.OperatorService, o options) error {
	deposits, err := operator.ListDeposits(ctx, store.DepositFilter{
		WalletId: o.walletId,
		UserId:   o.userId,
		Status:   models.DepositStatus(o.status),
		Limit:    o.limit,
	})
	if err != nil {
		return err
	}

	common.PrintHeader("DEPOSITS", common.WideWidth)
	fmt.Printf("%-36s  %-28s  %-10s  %14s %-4s  %s\n", "ID", "REFERENCE", "STATUS", "AMOUNT", "", "CREATED")
	for _, d := range deposits {
		fmt.Printf("%-36s  %-28s  %-19s  %14s %-4s  %s\n",
			d.Id, d.ReferenceNumber, common.StatusLabel(d.Status), d.Amount.String(), d.Currency,
			d.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	common.PrintFooter(fmt.Sprintf("%d deposits", len(deposits)), common.WideWidth)
	return nil
}

func showDeposit(ctx context.Context, operator *api.OperatorService, depositId string) error {
	d, err := operator.GetDeposit(ctx, depositId)
	if err != nil {
		return err
	}
	common.PrintResult("show", &models.OperationResult{Success: true, Deposit: d})
	if d.ApprovedAt != nil {
		fmt.Printf("  Approved:  %s by %s\n", d.ApprovedAt.Format("2006-01-02 15:04:05"), d.ApprovedBy)
	}
	if d.RejectedAt != nil {
		fmt.Printf("  Rejected:  %s by %s (%s)\n", d.RejectedAt.Format("2006-01-02 15:04:05"), d.RejectedBy, d.RejectionReason)
	}
	if d.ReversedAt != nil {
		fmt.Printf("  Reversed:  %s by %s (%s)\n", d.ReversedAt.Format("2006-01-02 15:04:05"), d.ReversedBy, d.ReversalReason)
	}
	return nil
}

func run(ctx context.Context, operator *api.OperatorService, o options) (*models.OperationResult, error) {
	transition := api.TransitionParams{
		DepositId:      o.depositId,
		ActorId:        o.actorId,
		Reason:         o.reason,
		IdempotencyKey: o.idempotencyKey,
	}

	switch o.action {
	case "submit":
		return operator.SubmitDeposit(ctx, api.SubmitParams{
			UserId:        o.userId,
			WalletId:      o.walletId,
			Amount:        o.amount,
			Currency:      o.currency,
			Method:        o.method,
			MethodDetails: parseDetails(o.details),
			ExternalId:    o.externalId,
			ActorId:       o.actorId,
		})
	case "approve":
		return operator.ApproveDeposit(ctx, api.ApproveParams{
			DepositId:      o.depositId,
			ActorId:        o.actorId,
			Reason:         o.reason,
			ReceivedAmount: o.received,
			ExchangeRate:   o.rate,
			IdempotencyKey: o.idempotencyKey,
		})
	case "reject":
		return operator.RejectDeposit(ctx, transition)
	case "reverse":
		return operator.ReverseDeposit(ctx, transition)
	default:
		return nil, fmt.Errorf("unknown action %q", o.action)
	}
}

func main() {
	o := parseFlags()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx := context.Background()
	if o.operatorEmail != "" {
		ctx = models.WithOperator(ctx, &models.Operator{Email: o.operatorEmail, Source: "cli"})
	}

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	switch o.action {
	case "list":
		if err := listDeposits(ctx, services.Operator, o); err != nil {
			logger.Fatal("Failed to list deposits", zap.Error(err))
		}
		return
	case "show":
		if err := showDeposit(ctx, services.Operator, o.depositId); err != nil {
			logger.Fatal("Failed to show deposit", zap.Error(err))
		}
		return
	}

	res, err := run(ctx, services.Operator, o)
	if err != nil {
		flag.Usage()
		logger.Fatal("Invalid command", zap.Error(err))
	}

	common.PrintResult(o.action, res)
	if !res.Success {
		services.Close()
		loggerCleanup()
		os.Exit(1)
	}
}
