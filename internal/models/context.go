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

package models

import "context"

type operatorContextKey struct{}

// Operator identifies who is driving a ledger operation. It travels through
// context so the human-facing email can be stamped on transitions and audit
// rows without widening every operation signature.
type Operator struct {
	Email  string // operator email, empty for automated callers
	Source string // originating tool, e.g. "cli", "scheduler"
}

// WithOperator attaches operator details to a context.
func WithOperator(ctx context.Context, op *Operator) context.Context {
	return context.WithValue(ctx, operatorContextKey{}, op)
}

// GetOperator retrieves operator details from context, or nil if absent.
func GetOperator(ctx context.Context) *Operator {
	op, _ := ctx.Value(operatorContextKey{}).(*Operator)
	return op
}
