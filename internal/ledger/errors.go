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
	"errors"
	"fmt"
)

// Error taxonomy surfaced to callers untranslated. Duplicate operations are
// not errors; results carry Replayed instead.
var (
	ErrInvalidInput           = errors.New("invalid input")
	ErrInvalidStateTransition = errors.New("invalid state transition")
	ErrInsufficientBalance    = errors.New("insufficient balance")
	ErrPersistence            = errors.New("persistence failure")

	// ErrIdempotencyKeyConflict is an ErrInvalidInput: the key was already
	// used for another deposit or another kind of operation.
	ErrIdempotencyKeyConflict = fmt.Errorf("%w: idempotency key already used for a different operation", ErrInvalidInput)
)

// Error kinds reported to operator tooling.
const (
	KindInvalidInput           = "invalid_input"
	KindInvalidStateTransition = "invalid_state_transition"
	KindInsufficientBalance    = "insufficient_balance"
	KindPersistenceFailure     = "persistence_failure"
)

// KindOf maps err to its taxonomy kind. Anything unclassified is reported as
// a persistence failure since it can only have come from the store.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidInput):
		return KindInvalidInput
	case errors.Is(err, ErrInvalidStateTransition):
		return KindInvalidStateTransition
	case errors.Is(err, ErrInsufficientBalance):
		return KindInsufficientBalance
	default:
		return KindPersistenceFailure
	}
}

// IsRetryable reports whether the caller may resend the same request.
func IsRetryable(err error) bool {
	return err != nil && KindOf(err) == KindPersistenceFailure
}

// InvalidInput builds an ErrInvalidInput with a formatted detail.
func InvalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}
