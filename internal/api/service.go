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

	"deposit-ledger-go/internal/ledger"
	"deposit-ledger-go/internal/reconcile"
	"deposit-ledger-go/internal/store"
)

// OperatorService is the facade operator tooling talks to. Failures of
// mutating calls come back as data in models.OperationResult with the ledger
// error kind, so a UI can tell "already processed" from "try again".
type OperatorService struct {
	store   store.LedgerStore
	engine  *ledger.Engine
	auditor *reconcile.Auditor
}

func NewOperatorService(s store.LedgerStore, engine *ledger.Engine, auditor *reconcile.Auditor) *OperatorService {
	return &OperatorService{
		store:   s,
		engine:  engine,
		auditor: auditor,
	}
}

func (s *OperatorService) HealthCheck(ctx context.Context) error {
	_, err := s.store.ListWalletIds(ctx)
	if err != nil {
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
