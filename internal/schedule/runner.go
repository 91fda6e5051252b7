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

package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"deposit-ledger-go/internal/models"

	"go.uber.org/zap"
)

const defaultLockKey = "deposit-ledger:reconcile"

// Reconciler runs one full reconciliation pass.
type Reconciler interface {
	ReconcileAll(ctx context.Context) (*models.ReconciliationReport, error)
}

// Locker guards a pass so that only one instance runs it at a time.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

type RunnerConfig struct {
	Reconciler Reconciler
	Locker     Locker // optional
	Interval   time.Duration
	LockTTL    time.Duration
	LockKey    string
}

// Runner invokes ReconcileAll on a fixed interval. It is the only caller of
// the auditor outside of operator tools and never touches the write path.
type Runner struct {
	reconciler Reconciler
	locker     Locker
	interval   time.Duration
	lockTTL    time.Duration
	lockKey    string

	stopChan chan struct{}
	doneChan chan struct{}
	stopOnce sync.Once

	mu         sync.RWMutex
	lastReport *models.ReconciliationReport
	lastRunAt  time.Time
	lastErr    error
	started    bool
}

func NewRunner(cfg RunnerConfig) *Runner {
	lockKey := cfg.LockKey
	if lockKey == "" {
		lockKey = defaultLockKey
	}
	lockTTL := cfg.LockTTL
	if lockTTL <= 0 {
		lockTTL = cfg.Interval
	}

	return &Runner{
		reconciler: cfg.Reconciler,
		locker:     cfg.Locker,
		interval:   cfg.Interval,
		lockTTL:    lockTTL,
		lockKey:    lockKey,
		stopChan:   make(chan struct{}),
		doneChan:   make(chan struct{}),
	}
}

// Start runs a pass immediately and then once per interval until Stop is
// called or ctx is cancelled.
func (r *Runner) Start(ctx context.Context) error {
	if r.interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", r.interval)
	}

	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return fmt.Errorf("reconciliation runner already started")
	}
	r.started = true
	r.mu.Unlock()

	go r.loop(ctx)

	zap.L().Info("Reconciliation runner started",
		zap.Duration("interval", r.interval),
		zap.Bool("distributed_lock", r.locker != nil))
	return nil
}

// Stop waits for an in-flight pass to finish. It is safe to call more than
// once and on a runner that never started.
func (r *Runner) Stop() {
	r.stopOnce.Do(func() {
		r.mu.RLock()
		started := r.started
		r.mu.RUnlock()

		close(r.stopChan)
		if !started {
			return
		}

		zap.L().Info("Stopping reconciliation runner")
		<-r.doneChan
		zap.L().Info("Reconciliation runner stopped")
	})
}

func (r *Runner) loop(ctx context.Context) {
	defer close(r.doneChan)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.tick(ctx)

	for {
		select {
		case <-ticker.C:
			r.tick(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Runner) tick(ctx context.Context) {
	if _, _, err := r.RunOnce(ctx); err != nil {
		zap.L().Error("Scheduled reconciliation failed", zap.Error(err))
	}
}

// RunOnce runs a single pass. ran is false when another instance holds the
// lock.
func (r *Runner) RunOnce(ctx context.Context) (report *models.ReconciliationReport, ran bool, err error) {
	if r.locker != nil {
		acquired, err := r.locker.TryLock(ctx, r.lockKey, r.lockTTL)
		if err != nil {
			return nil, false, fmt.Errorf("failed to acquire reconcile lock: %w", err)
		}
		if !acquired {
			zap.L().Debug("Reconcile lock held elsewhere, skipping pass", zap.String("key", r.lockKey))
			return nil, false, nil
		}
		defer func() {
			if unlockErr := r.locker.Unlock(context.WithoutCancel(ctx), r.lockKey); unlockErr != nil {
				zap.L().Warn("Failed to release reconcile lock", zap.String("key", r.lockKey), zap.Error(unlockErr))
			}
		}()
	}

	report, err = r.reconciler.ReconcileAll(ctx)

	r.mu.Lock()
	r.lastRunAt = time.Now().UTC()
	r.lastErr = err
	if err == nil {
		r.lastReport = report
	}
	r.mu.Unlock()

	if err != nil {
		return nil, true, err
	}
	return report, true, nil
}

// LastReport returns the most recent successful report, the time of the
// most recent attempt and its error.
func (r *Runner) LastReport() (*models.ReconciliationReport, time.Time, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastReport, r.lastRunAt, r.lastErr
}
