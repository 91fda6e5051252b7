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
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"deposit-ledger-go/internal/api"
	"deposit-ledger-go/internal/database"
	"deposit-ledger-go/internal/formance"
	"deposit-ledger-go/internal/ledger"
	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/rates"
	"deposit-ledger-go/internal/reconcile"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// init loads environment variables from .env file if it exists
func init() {
	// Environment variables can also be set via shell export, docker, etc.
	if err := godotenv.Load(); err != nil {
		log.Printf("Note: No .env file found or unable to load it: %v\n", err)
		log.Println("Make sure to set environment variables via export or other means")
	} else {
		log.Println("✓ Loaded environment variables from .env file")
	}
}

// Services is everything a command needs, wired from config.
type Services struct {
	DbService *database.Service
	Engine    *ledger.Engine
	Auditor   *reconcile.Auditor
	Operator  *api.OperatorService
	Mirror    *formance.Service // nil when FORMANCE_STACK_URL is unset
}

func InitializeLogger() (*zap.Logger, func()) {
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	zap.ReplaceGlobals(logger)

	cleanup := func() {
		if err := logger.Sync(); err != nil {
			if !isIgnorableSyncError(err) {
				log.Printf("Failed to sync logger: %v\n", err)
			}
		}
	}

	return logger, cleanup
}

func InitializeServices(ctx context.Context, cfg *models.Config) (*Services, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	rateTable, err := loadRates(cfg.Ledger.RatesFile)
	if err != nil {
		dbService.Close()
		return nil, err
	}

	var mirror *formance.Service
	if cfg.Formance.Enabled() {
		zap.L().Info("Initializing Formance mirror")
		mirror, err = formance.NewService(ctx, cfg.Formance)
		if err != nil {
			dbService.Close()
			return nil, err
		}
	}

	auditorOpts := []reconcile.Option{reconcile.WithWorkers(cfg.Reconciler.Workers)}
	engineOpts := []ledger.Option{ledger.WithRates(rateTable)}
	if mirror != nil {
		auditorOpts = append(auditorOpts, reconcile.WithMirror(mirror))
		engineOpts = append(engineOpts, ledger.WithMirror(mirror))
	}

	auditor := reconcile.NewAuditor(dbService, cfg.Ledger.ReconcileEpsilon, auditorOpts...)
	if cfg.Ledger.VerifyAfterApprove {
		engineOpts = append(engineOpts, ledger.WithVerifier(auditor))
	}
	engine := ledger.NewEngine(dbService, engineOpts...)

	return &Services{
		DbService: dbService,
		Engine:    engine,
		Auditor:   auditor,
		Operator:  api.NewOperatorService(dbService, engine, auditor),
		Mirror:    mirror,
	}, nil
}

// InitializeDatabaseOnly initializes just the database service.
// Useful for schema setup and wallet administration.
func InitializeDatabaseOnly(ctx context.Context, cfg *models.Config) (*database.Service, error) {
	dbService, err := database.NewService(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	return dbService, nil
}

func (cs *Services) Close() {
	if cs.DbService != nil {
		cs.DbService.Close()
	}
}

// loadRates reads the exchange-rate table. A missing file leaves the engine
// stamping a rate of 1 on cross-currency deposits.
func loadRates(ratesFile string) (*rates.Table, error) {
	if ratesFile == "" {
		return nil, nil
	}

	table, err := rates.LoadTable(ratesFile)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			zap.L().Warn("Rates file not found, cross-currency deposits will use a rate of 1",
				zap.String("file", ratesFile))
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load rates: %w", err)
	}

	zap.L().Info("Loaded exchange rates", zap.String("file", ratesFile))
	return table, nil
}

func isIgnorableSyncError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "sync /dev/stderr: inappropriate ioctl for device") ||
		strings.Contains(msg, "sync /dev/stdout: inappropriate ioctl for device")
}
