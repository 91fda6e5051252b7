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
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"deposit-ledger-go/internal/metrics"
	"deposit-ledger-go/internal/models"
	"deposit-ledger-go/internal/store"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type operation string

const (
	opSubmit  operation = "submit"
	opApprove operation = "approve"
	opReject  operation = "reject"
	opReverse operation = "reverse"
)

// RateProvider returns the rate to convert one unit of from into to.
type RateProvider interface {
	Rate(from, to string) (decimal.Decimal, bool)
}

// Verifier checks a wallet against its deposits after an approval commits.
type Verifier interface {
	VerifyWallet(ctx context.Context, walletId string) (*models.WalletVerification, error)
}

// Engine is the deposit state machine. Every mutating call is one store
// transaction covering the deposit row, the wallet row, the transition log
// and the audit entry.
type Engine struct {
	store    store.LedgerStore
	rates    RateProvider
	mirror   store.Mirror
	verifier Verifier
	now      func() time.Time
}

type Option func(*Engine)

func WithRates(r RateProvider) Option {
	return func(e *Engine) { e.rates = r }
}

// WithMirror replicates committed balance movements after each operation.
func WithMirror(m store.Mirror) Option {
	return func(e *Engine) { e.mirror = m }
}

// WithVerifier runs a wallet verification after every committed approval.
func WithVerifier(v Verifier) Option {
	return func(e *Engine) { e.verifier = v }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(s store.LedgerStore, opts ...Option) *Engine {
	e := &Engine{
		store: s,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type SubmitRequest struct {
	UserId        string
	WalletId      string
	Amount        decimal.Decimal
	Currency      string // defaults to the wallet currency
	Method        string
	MethodDetails map[string]string
	ExternalId    string
	ActorId       string
}

type ApproveRequest struct {
	DepositId      string
	ActorId        string
	Reason         string
	ReceivedAmount decimal.NullDecimal // defaults to the requested amount
	ExchangeRate   decimal.NullDecimal // defaults to the rate provider, then 1
	IdempotencyKey string
}

type RejectRequest struct {
	DepositId      string
	ActorId        string
	Reason         string
	IdempotencyKey string // optional
}

type ReverseRequest struct {
	DepositId      string
	ActorId        string
	Reason         string
	IdempotencyKey string
}

// Result is returned by every mutating operation. Replayed is set when the
// call matched an operation that had already committed; Deposit then holds
// the deposit's current state and Transition the original record.
type Result struct {
	Deposit      *models.Deposit
	Transition   *models.Transition
	Replayed     bool
	Verification *models.WalletVerification

	wallet *models.Wallet
}

// Submit records a new pending deposit. A repeated ExternalId returns the
// deposit created the first time.
func (e *Engine) Submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	started := time.Now()
	res, err := e.submit(ctx, req)

	depositId := ""
	if res != nil {
		depositId = res.Deposit.Id
	}
	e.finish(ctx, opSubmit, started, models.AuditEntry{
		DepositId:      depositId,
		WalletId:       req.WalletId,
		ActorId:        req.ActorId,
		IdempotencyKey: req.ExternalId,
	}, res, err)
	return res, err
}

func (e *Engine) submit(ctx context.Context, req SubmitRequest) (*Result, error) {
	if req.UserId == "" {
		return nil, InvalidInput("user id is required")
	}
	if req.WalletId == "" {
		return nil, InvalidInput("wallet id is required")
	}
	if !req.Amount.IsPositive() {
		return nil, InvalidInput("amount must be positive, got %s", req.Amount.String())
	}

	var res *Result
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		existing, err := findSubmitted(ctx, tx, req)
		if err != nil {
			return err
		}
		if existing != nil {
			prior, err := tx.GetTransitionByIdempotencyKey(ctx, submitKey(existing.ExternalId, existing.Id))
			if err != nil {
				return err
			}
			res = &Result{Deposit: existing, Transition: prior, Replayed: true}
			return nil
		}

		wallet, err := tx.GetWallet(ctx, req.WalletId)
		if errors.Is(err, store.ErrNotFound) {
			return InvalidInput("wallet %s not found", req.WalletId)
		}
		if err != nil {
			return err
		}
		if wallet.UserId != req.UserId {
			return InvalidInput("wallet %s does not belong to user %s", req.WalletId, req.UserId)
		}

		currency := req.Currency
		if currency == "" {
			currency = wallet.Currency
		}

		now := e.now()
		deposit := &models.Deposit{
			Id:              uuid.New().String(),
			ExternalId:      req.ExternalId,
			UserId:          req.UserId,
			WalletId:        req.WalletId,
			Amount:          req.Amount,
			Currency:        currency,
			Method:          req.Method,
			MethodDetails:   req.MethodDetails,
			ReferenceNumber: NewReferenceNumber(req.Method, now),
			Status:          models.StatusPending,
			Version:         1,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := tx.InsertDeposit(ctx, deposit); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("%w: %w", errReplayRace, err)
			}
			return err
		}

		transition := &models.Transition{
			Id:                ulid.Make().String(),
			DepositId:         deposit.Id,
			UserId:            deposit.UserId,
			WalletId:          deposit.WalletId,
			PreviousState:     models.StatusNone,
			NewState:          models.StatusPending,
			Reason:            "Deposit submitted",
			ActorId:           req.ActorId,
			ActorEmail:        operatorEmail(ctx),
			IdempotencyKey:    submitKey(req.ExternalId, deposit.Id),
			BalanceBefore:     wallet.Balance,
			BalanceAfter:      wallet.Balance,
			BalanceAdjustment: decimal.Zero,
			CreatedAt:         now,
		}
		if err := tx.InsertTransition(ctx, transition); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("%w: %w", errReplayRace, err)
			}
			return err
		}

		err = tx.InsertAuditEntry(ctx, &models.AuditEntry{
			Id:             uuid.New().String(),
			Operation:      string(opSubmit),
			Status:         "success",
			DepositId:      deposit.Id,
			WalletId:       deposit.WalletId,
			ActorId:        req.ActorId,
			IdempotencyKey: transition.IdempotencyKey,
			PreviousState:  `{"status":"none"}`,
			NewState:       snapshot(deposit, wallet.Balance),
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}

		res = &Result{Deposit: deposit, Transition: transition}
		return nil
	})
	if err != nil {
		if errors.Is(err, errReplayRace) {
			// Lost to a concurrent submission of the same external id.
			existing, lookupErr := findSubmitted(ctx, e.store, req)
			if lookupErr != nil {
				return nil, classify(lookupErr)
			}
			if existing != nil {
				prior, _ := e.store.GetTransitionByIdempotencyKey(ctx, submitKey(existing.ExternalId, existing.Id))
				return &Result{Deposit: existing, Transition: prior, Replayed: true}, nil
			}
		}
		return nil, classify(err)
	}

	if !res.Replayed {
		zap.L().Info("Deposit submitted",
			zap.String("deposit_id", res.Deposit.Id),
			zap.String("reference", res.Deposit.ReferenceNumber),
			zap.String("wallet_id", res.Deposit.WalletId),
			zap.String("amount", res.Deposit.Amount.String()),
			zap.String("currency", res.Deposit.Currency))
	}
	return res, nil
}

// Approve credits the wallet with the received amount and moves the deposit
// from pending to approved.
func (e *Engine) Approve(ctx context.Context, req ApproveRequest) (*Result, error) {
	started := time.Now()
	res, err := e.approve(ctx, req)
	e.finish(ctx, opApprove, started, models.AuditEntry{
		DepositId:      req.DepositId,
		ActorId:        req.ActorId,
		IdempotencyKey: req.IdempotencyKey,
	}, res, err)
	return res, err
}

func (e *Engine) approve(ctx context.Context, req ApproveRequest) (*Result, error) {
	if err := requireCommon(req.DepositId, req.ActorId); err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		return nil, InvalidInput("idempotency key is required")
	}
	if req.ReceivedAmount.Valid && !req.ReceivedAmount.Decimal.IsPositive() {
		return nil, InvalidInput("received amount must be positive, got %s", req.ReceivedAmount.Decimal.String())
	}
	if req.ExchangeRate.Valid && !req.ExchangeRate.Decimal.IsPositive() {
		return nil, InvalidInput("exchange rate must be positive, got %s", req.ExchangeRate.Decimal.String())
	}

	reason := req.Reason
	if reason == "" {
		reason = "Deposit approved"
	}

	res, err := e.transition(ctx, transitionPlan{
		op:        opApprove,
		depositId: req.DepositId,
		actorId:   req.ActorId,
		reason:    reason,
		key:       req.IdempotencyKey,
		replay:    true,
		from:      models.StatusPending,
		to:        models.StatusApproved,
		apply: func(d *models.Deposit, w *models.Wallet, now time.Time) (decimal.Decimal, error) {
			credit := d.Amount
			if req.ReceivedAmount.Valid {
				credit = req.ReceivedAmount.Decimal
			}
			d.ReceivedAmount = decimal.NewNullDecimal(credit)
			d.ExchangeRate = decimal.NewNullDecimal(e.exchangeRate(req.ExchangeRate, d.Currency, w.Currency))
			d.ApprovedBy = req.ActorId
			d.ApprovedAt = &now
			w.TotalDeposited = w.TotalDeposited.Add(credit)
			return credit, nil
		},
	})
	if err != nil {
		return nil, err
	}

	if !res.Replayed && e.verifier != nil {
		verification, err := e.verifier.VerifyWallet(ctx, res.Deposit.WalletId)
		if err != nil {
			zap.L().Warn("Post-approval verification failed",
				zap.String("wallet_id", res.Deposit.WalletId),
				zap.Error(err))
		} else {
			res.Verification = verification
		}
	}
	return res, nil
}

// Reject closes a pending deposit without touching the wallet.
func (e *Engine) Reject(ctx context.Context, req RejectRequest) (*Result, error) {
	started := time.Now()
	res, err := e.reject(ctx, req)
	e.finish(ctx, opReject, started, models.AuditEntry{
		DepositId:      req.DepositId,
		ActorId:        req.ActorId,
		IdempotencyKey: req.IdempotencyKey,
	}, res, err)
	return res, err
}

func (e *Engine) reject(ctx context.Context, req RejectRequest) (*Result, error) {
	if err := requireCommon(req.DepositId, req.ActorId); err != nil {
		return nil, err
	}

	reason := req.Reason
	if reason == "" {
		reason = "Deposit rejected"
	}

	// Without a caller key the transition still needs a unique one; it is
	// never looked up, so a retry reports the state error instead.
	key, replay := req.IdempotencyKey, true
	if key == "" {
		key, replay = "reject:"+req.DepositId, false
	}

	return e.transition(ctx, transitionPlan{
		op:        opReject,
		depositId: req.DepositId,
		actorId:   req.ActorId,
		reason:    reason,
		key:       key,
		replay:    replay,
		from:      models.StatusPending,
		to:        models.StatusRejected,
		apply: func(d *models.Deposit, _ *models.Wallet, now time.Time) (decimal.Decimal, error) {
			d.RejectedBy = req.ActorId
			d.RejectedAt = &now
			d.RejectionReason = reason
			return decimal.Zero, nil
		},
	})
}

// Reverse debits the amount credited at approval. It fails with
// ErrInsufficientBalance rather than drive the wallet negative.
func (e *Engine) Reverse(ctx context.Context, req ReverseRequest) (*Result, error) {
	started := time.Now()
	res, err := e.reverse(ctx, req)
	e.finish(ctx, opReverse, started, models.AuditEntry{
		DepositId:      req.DepositId,
		ActorId:        req.ActorId,
		IdempotencyKey: req.IdempotencyKey,
	}, res, err)
	return res, err
}

func (e *Engine) reverse(ctx context.Context, req ReverseRequest) (*Result, error) {
	if err := requireCommon(req.DepositId, req.ActorId); err != nil {
		return nil, err
	}
	if req.IdempotencyKey == "" {
		return nil, InvalidInput("idempotency key is required")
	}

	reason := req.Reason
	if reason == "" {
		reason = "Deposit reversed"
	}

	return e.transition(ctx, transitionPlan{
		op:        opReverse,
		depositId: req.DepositId,
		actorId:   req.ActorId,
		reason:    reason,
		key:       req.IdempotencyKey,
		replay:    true,
		from:      models.StatusApproved,
		to:        models.StatusReversed,
		apply: func(d *models.Deposit, _ *models.Wallet, now time.Time) (decimal.Decimal, error) {
			if !d.ReceivedAmount.Valid {
				return decimal.Zero, fmt.Errorf("approved deposit %s has no received amount", d.Id)
			}
			d.ReversedBy = req.ActorId
			d.ReversedAt = &now
			d.ReversalReason = reason
			return d.ReceivedAmount.Decimal.Neg(), nil
		},
	})
}

// GetDeposit returns one deposit by id.
func (e *Engine) GetDeposit(ctx context.Context, depositId string) (*models.Deposit, error) {
	deposit, err := e.store.GetDeposit(ctx, depositId)
	if errors.Is(err, store.ErrNotFound) {
		return nil, InvalidInput("deposit %s not found", depositId)
	}
	if err != nil {
		return nil, classify(err)
	}
	return deposit, nil
}

// GetHistory returns a deposit's transitions, oldest first.
func (e *Engine) GetHistory(ctx context.Context, depositId string) ([]models.Transition, error) {
	if _, err := e.GetDeposit(ctx, depositId); err != nil {
		return nil, err
	}

	transitions, err := e.store.GetDepositTransitions(ctx, depositId)
	if err != nil {
		return nil, classify(err)
	}
	return transitions, nil
}

// ListDeposits returns deposits matching filter, newest first.
func (e *Engine) ListDeposits(ctx context.Context, filter store.DepositFilter) ([]models.Deposit, error) {
	deposits, err := e.store.ListDeposits(ctx, filter)
	if err != nil {
		return nil, classify(err)
	}
	return deposits, nil
}

type transitionPlan struct {
	op        operation
	depositId string
	actorId   string
	reason    string
	key       string
	replay    bool // key is caller supplied and may be replayed
	from, to  models.DepositStatus

	// apply sets the deposit's transition fields and returns the signed
	// balance adjustment. It may also move wallet counters other than balance.
	apply func(d *models.Deposit, w *models.Wallet, now time.Time) (decimal.Decimal, error)
}

func (e *Engine) transition(ctx context.Context, p transitionPlan) (*Result, error) {
	var res *Result
	err := e.store.RunInTx(ctx, func(ctx context.Context, tx store.Tx) error {
		deposit, err := tx.LockDeposit(ctx, p.depositId)
		if errors.Is(err, store.ErrNotFound) {
			return InvalidInput("deposit %s not found", p.depositId)
		}
		if err != nil {
			return err
		}

		if p.replay {
			prior, err := findReplay(ctx, tx, p.key, deposit.Id, p.to)
			if err != nil {
				return err
			}
			if prior != nil {
				res = &Result{Deposit: deposit, Transition: prior, Replayed: true}
				return nil
			}
		}

		if deposit.Status != p.from {
			return fmt.Errorf("%w: cannot %s deposit %s in state %s", ErrInvalidStateTransition, p.op, deposit.Id, deposit.Status)
		}

		wallet, err := tx.LockWallet(ctx, deposit.WalletId)
		if errors.Is(err, store.ErrNotFound) {
			return InvalidInput("wallet %s not found", deposit.WalletId)
		}
		if err != nil {
			return err
		}

		now := e.now()
		balanceBefore := wallet.Balance
		updated := *deposit
		updated.Status = p.to
		adjustment, err := p.apply(&updated, wallet, now)
		if err != nil {
			return err
		}

		balanceAfter := balanceBefore.Add(adjustment)
		if balanceAfter.IsNegative() {
			return fmt.Errorf("%w: %s of deposit %s needs %s but wallet %s holds %s",
				ErrInsufficientBalance, p.op, deposit.Id, adjustment.Abs().String(), wallet.Id, balanceBefore.String())
		}

		err = tx.UpdateDeposit(ctx, store.DepositCAS{Deposit: &updated, FromStatus: p.from, Version: deposit.Version})
		if errors.Is(err, store.ErrConcurrentModification) {
			return fmt.Errorf("%w: deposit %s changed concurrently", ErrInvalidStateTransition, deposit.Id)
		}
		if err != nil {
			return err
		}

		if !adjustment.IsZero() {
			wallet.Balance = balanceAfter
			if err := tx.UpdateWalletBalance(ctx, wallet); err != nil {
				return fmt.Errorf("%w: %w", ErrPersistence, err)
			}
		}

		transition := &models.Transition{
			Id:                ulid.Make().String(),
			DepositId:         deposit.Id,
			UserId:            deposit.UserId,
			WalletId:          deposit.WalletId,
			PreviousState:     p.from,
			NewState:          p.to,
			Reason:            p.reason,
			ActorId:           p.actorId,
			ActorEmail:        operatorEmail(ctx),
			IdempotencyKey:    p.key,
			BalanceBefore:     balanceBefore,
			BalanceAfter:      balanceAfter,
			BalanceAdjustment: adjustment,
			CreatedAt:         now,
		}
		if err := tx.InsertTransition(ctx, transition); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return fmt.Errorf("%w: %w", errReplayRace, err)
			}
			return err
		}

		err = tx.InsertAuditEntry(ctx, &models.AuditEntry{
			Id:             uuid.New().String(),
			Operation:      string(p.op),
			Status:         "success",
			DepositId:      deposit.Id,
			WalletId:       deposit.WalletId,
			ActorId:        p.actorId,
			IdempotencyKey: p.key,
			PreviousState:  snapshot(deposit, balanceBefore),
			NewState:       snapshot(&updated, balanceAfter),
			CreatedAt:      now,
		})
		if err != nil {
			return err
		}

		res = &Result{Deposit: &updated, Transition: transition, wallet: wallet}
		return nil
	})
	if err != nil {
		if errors.Is(err, errReplayRace) {
			return e.recoverRace(ctx, p, err)
		}
		return nil, classify(err)
	}

	if res.Replayed {
		return res, nil
	}

	zap.L().Info("Deposit transition committed",
		zap.String("operation", string(p.op)),
		zap.String("deposit_id", res.Deposit.Id),
		zap.String("wallet_id", res.Deposit.WalletId),
		zap.String("from", string(p.from)),
		zap.String("to", string(p.to)),
		zap.String("adjustment", res.Transition.BalanceAdjustment.String()),
		zap.String("balance_after", res.Transition.BalanceAfter.String()))

	e.mirrorTransition(ctx, res)
	return res, nil
}

// recoverRace resolves a unit of work that hit a unique constraint on the
// transition log: either the same key committed first, which is a replay, or
// another operation moved the deposit first.
func (e *Engine) recoverRace(ctx context.Context, p transitionPlan, cause error) (*Result, error) {
	if p.replay {
		prior, err := findReplay(ctx, e.store, p.key, p.depositId, p.to)
		if err != nil {
			return nil, classify(err)
		}
		if prior != nil {
			deposit, err := e.store.GetDeposit(ctx, p.depositId)
			if err != nil {
				return nil, classify(err)
			}
			return &Result{Deposit: deposit, Transition: prior, Replayed: true}, nil
		}
	}
	return nil, fmt.Errorf("%w: deposit %s already moved to %s (%v)", ErrInvalidStateTransition, p.depositId, p.to, cause)
}

func (e *Engine) mirrorTransition(ctx context.Context, res *Result) {
	if e.mirror == nil || res.Transition.BalanceAdjustment.IsZero() {
		return
	}
	if err := e.mirror.RecordTransition(ctx, res.wallet, res.Deposit, res.Transition); err != nil {
		metrics.MirrorFailures.WithLabelValues("transition").Inc()
		zap.L().Warn("Failed to mirror transition to external ledger",
			zap.String("transition_id", res.Transition.Id),
			zap.String("deposit_id", res.Deposit.Id),
			zap.Error(err))
	}
}

func (e *Engine) exchangeRate(requested decimal.NullDecimal, from, to string) decimal.Decimal {
	if requested.Valid && requested.Decimal.IsPositive() {
		return requested.Decimal
	}
	if e.rates != nil {
		if rate, ok := e.rates.Rate(from, to); ok && rate.IsPositive() {
			return rate
		}
		zap.L().Debug("No exchange rate, using 1", zap.String("from", from), zap.String("to", to))
	}
	return decimal.NewFromInt(1)
}

// finish records metrics for every call and a best-effort audit entry for
// failures, which cannot be written inside the rolled back transaction.
func (e *Engine) finish(ctx context.Context, op operation, started time.Time, entry models.AuditEntry, res *Result, err error) {
	if err == nil {
		outcome := metrics.OutcomeSuccess
		if res.Replayed {
			outcome = metrics.OutcomeReplayed
		}
		metrics.ObserveOperation(string(op), outcome, started)
		return
	}

	kind := KindOf(err)
	metrics.ObserveOperation(string(op), kind, started)

	logFn := zap.L().Warn
	if kind == KindPersistenceFailure {
		logFn = zap.L().Error
	}
	logFn("Deposit operation failed",
		zap.String("operation", string(op)),
		zap.String("deposit_id", entry.DepositId),
		zap.String("kind", kind),
		zap.Error(err))

	entry.Id = uuid.New().String()
	entry.Operation = string(op)
	entry.Status = "failed"
	entry.ErrorMessage = err.Error()
	entry.CreatedAt = e.now()
	if auditErr := e.store.InsertAuditEntry(ctx, &entry); auditErr != nil {
		zap.L().Warn("Failed to write failure audit entry",
			zap.String("operation", string(op)),
			zap.Error(auditErr))
	}
}

// classify passes taxonomy errors through and wraps everything else as a
// retryable persistence failure.
func classify(err error) error {
	if errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrInvalidStateTransition) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrPersistence) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

func requireCommon(depositId, actorId string) error {
	if depositId == "" {
		return InvalidInput("deposit id is required")
	}
	if actorId == "" {
		return InvalidInput("actor id is required")
	}
	return nil
}

func operatorEmail(ctx context.Context) string {
	if op := models.GetOperator(ctx); op != nil {
		return op.Email
	}
	return ""
}

type depositSnapshot struct {
	Status         models.DepositStatus `json:"status"`
	ReceivedAmount string               `json:"received_amount,omitempty"`
	WalletBalance  string               `json:"wallet_balance"`
	Version        int64                `json:"version"`
}

func snapshot(d *models.Deposit, walletBalance decimal.Decimal) string {
	s := depositSnapshot{
		Status:        d.Status,
		WalletBalance: walletBalance.String(),
		Version:       d.Version,
	}
	if d.ReceivedAmount.Valid {
		s.ReceivedAmount = d.ReceivedAmount.Decimal.String()
	}
	b, err := json.Marshal(s)
	if err != nil {
		return ""
	}
	return string(b)
}
