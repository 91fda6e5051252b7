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

package ledger

import (
	"context"
	"errors"
	"fmt"

	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"go.uber.org/zap"
)

// errReplayRace marks a unit of work that lost a unique-constraint race to an
// identical operation. The caller looks the winner up and replays it.
var errReplayRace = errors.New("operation committed concurrently")

func submitKey(externalId, depositId string) string {
	if externalId != "" {
		return "submit:" + externalId
	}
	return "submit:" + depositId
}

// findSubmitted returns the deposit already created for req.ExternalId, or
// nil when there is none. A hit owned by another user or wallet is a key
// conflict rather than a replay.
func findSubmitted(ctx context.Context, r store.Reader, req SubmitRequest) (*models.Deposit, error) {
	if req.ExternalId == "" {
		return nil, nil
	}

	existing, err := r.GetDepositByExternalId(ctx, req.ExternalId)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	if existing.UserId != req.UserId || existing.WalletId != req.WalletId {
		return nil, fmt.Errorf("%w: external id %s belongs to deposit %s", ErrIdempotencyKeyConflict, req.ExternalId, existing.Id)
	}

	zap.L().Warn("Duplicate deposit submission, returning existing deposit",
		zap.String("external_id", req.ExternalId),
		zap.String("deposit_id", existing.Id))
	return existing, nil
}

// findReplay returns the transition already recorded under key, or nil when
// the key is unused. A key recorded for another deposit or another target
// state is a conflict.
func findReplay(ctx context.Context, r store.Reader, key, depositId string, to models.DepositStatus) (*models.Transition, error) {
	if key == "" {
		return nil, nil
	}

	prior, err := r.GetTransitionByIdempotencyKey(ctx, key)
	if err != nil {
		return nil, err
	}
	if prior == nil {
		return nil, nil
	}

	if prior.DepositId != depositId || prior.NewState != to {
		return nil, fmt.Errorf("%w: key %q was used for %s -> %s on deposit %s",
			ErrIdempotencyKeyConflict, key, prior.PreviousState, prior.NewState, prior.DepositId)
	}

	zap.L().Warn("Idempotent replay, returning prior transition",
		zap.String("idempotency_key", key),
		zap.String("deposit_id", depositId),
		zap.String("transition_id", prior.Id))
	return prior, nil
}
