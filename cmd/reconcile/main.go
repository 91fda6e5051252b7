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
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"deposit-ledger-go/internal/common"
	"deposit-ledger-go/internal/config"
	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/schedule"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

func printJSON(v any) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		zap.L().Error("Error marshaling output", zap.Error(err))
		return
	}
	fmt.Println(string(out))
}

func printVerification(v *models.WalletVerification) {
	fmt.Printf("\n┌─ Wallet: %s (%s)\n", v.WalletId, v.Currency)
	fmt.Printf("│  Status:      %s\n", common.VerificationLabel(v))
	fmt.Printf("│  Actual:      %s\n", v.ActualBalance.String())
	fmt.Printf("│  Expected:    %s\n", v.ExpectedBalance.String())
	fmt.Printf("│  Ledger:      %s\n", v.LedgerBalance.String())
	fmt.Printf("│  Deposits:    %d total, %d pending, %d approved, %d rejected, %d reversed\n",
		v.Summary.Total, v.Summary.Pending, v.Summary.Approved, v.Summary.Rejected, v.Summary.Reversed)
	for i, issue := range v.Issues {
		fmt.Printf("%s[%s] %s: %s\n", common.BoxPrefix(i == len(v.Issues)-1), issue.Severity, issue.Type, issue.Message)
	}
}

func printReport(report *models.ReconciliationReport) {
	common.PrintHeader("RECONCILIATION REPORT", common.DefaultWidth)
	for i := range report.Mismatches {
		printVerification(&report.Mismatches[i])
	}
	for i := range report.Unverified {
		printVerification(&report.Unverified[i])
	}
	common.PrintFooter(fmt.Sprintf("SUMMARY: %d wallets, %d balanced, %d mismatched, %d unknown, total discrepancy %s (%s)",
		report.TotalWallets, report.Balanced, report.Mismatched, report.Unknown,
		report.TotalDiscrepancy.String(), report.CompletedAt.Sub(report.StartedAt).Round(time.Millisecond)), common.DefaultWidth)
}

func newRouter(services *common.Services, runner *schedule.Runner) *mux.Router {
	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		status := map[string]any{"status": "ok"}
		code := http.StatusOK

		if err := services.Operator.HealthCheck(req.Context()); err != nil {
			status["status"] = "unhealthy"
			status["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}

		report, lastRun, lastErr := runner.LastReport()
		if !lastRun.IsZero() {
			status["last_run"] = lastRun
		}
		if lastErr != nil {
			status["last_error"] = lastErr.Error()
		}
		if report != nil {
			status["mismatched"] = report.Mismatched
			status["unknown"] = report.Unknown
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		_ = json.NewEncoder(w).Encode(status)
	}).Methods(http.MethodGet)
	return r
}

func watch(ctx context.Context, cfg *models.Config, services *common.Services) {
	var locker schedule.Locker
	if cfg.Reconciler.RedisAddr != "" {
		redisLocker, err := schedule.NewRedisLocker(ctx, cfg.Reconciler.RedisAddr, cfg.Reconciler.RedisPassword, cfg.Reconciler.RedisDB)
		if err != nil {
			zap.L().Fatal("Failed to initialize redis locker", zap.Error(err))
		}
		defer redisLocker.Close()
		locker = redisLocker
	}

	runner := schedule.NewRunner(schedule.RunnerConfig{
		Reconciler: services.Auditor,
		Locker:     locker,
		Interval:   cfg.Reconciler.Interval,
		LockTTL:    cfg.Reconciler.LockTTL,
	})

	server := &http.Server{
		Addr:              cfg.Reconciler.MetricsAddr,
		Handler:           newRouter(services, runner),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zap.L().Info("Serving metrics", zap.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zap.L().Error("Metrics server failed", zap.Error(err))
		}
	}()

	if err := runner.Start(ctx); err != nil {
		zap.L().Fatal("Failed to start reconciliation runner", zap.Error(err))
	}
	zap.L().Info("Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zap.L().Info("Shutdown signal received, stopping reconciler...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	done := make(chan struct{})
	go func() {
		runner.Stop()
		close(done)
	}()

	select {
	case <-done:
		zap.L().Info("Reconciler stopped gracefully")
	case <-shutdownCtx.Done():
		zap.L().Warn("Forced shutdown after timeout")
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zap.L().Warn("Metrics server shutdown failed", zap.Error(err))
	}
}

func main() {
	walletFlag := flag.String("wallet", "", "Verify a single wallet instead of all wallets")
	correctFlag := flag.Bool("correct", false, "Set -wallet's balance to its deposit-derived value")
	reasonFlag := flag.String("reason", "", "Reason recorded with a correction (required with -correct)")
	actorFlag := flag.String("actor", "", "Operator id recorded with a correction (required with -correct)")
	watchFlag := flag.Bool("watch", false, "Run reconciliation every RECONCILE_INTERVAL and serve /metrics and /health")
	jsonFlag := flag.Bool("json", false, "Print results as JSON")
	flag.Parse()

	logger, loggerCleanup := common.InitializeLogger()
	defer loggerCleanup()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	services, err := common.InitializeServices(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize services", zap.Error(err))
	}
	defer services.Close()

	switch {
	case *watchFlag:
		watch(ctx, cfg, services)

	case *correctFlag:
		if *walletFlag == "" {
			logger.Fatal("-correct requires -wallet")
		}
		res, err := services.Operator.CorrectWallet(ctx, *walletFlag, *reasonFlag, *actorFlag)
		if err != nil {
			logger.Fatal("Correction failed", zap.Error(err))
		}
		if *jsonFlag {
			printJSON(res)
			return
		}
		if res.Applied {
			fmt.Printf("✓ Corrected wallet %s: %s -> %s (%s)\n", *walletFlag,
				res.Correction.BalanceBefore.String(), res.Correction.BalanceAfter.String(), res.Correction.Adjustment.String())
		} else {
			fmt.Printf("Wallet %s is already balanced, nothing to correct\n", *walletFlag)
		}
		printVerification(res.Verification)

	case *walletFlag != "":
		v, err := services.Operator.VerifyWallet(ctx, *walletFlag)
		if err != nil {
			logger.Fatal("Verification failed", zap.Error(err))
		}
		if *jsonFlag {
			printJSON(v)
			return
		}
		printVerification(v)

	default:
		report, err := services.Operator.ReconcileAll(ctx)
		if err != nil {
			logger.Fatal("Reconciliation failed", zap.Error(err))
		}
		if *jsonFlag {
			printJSON(report)
			return
		}
		printReport(report)
	}
}
