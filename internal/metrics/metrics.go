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

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for OperationsTotal.
const (
	OutcomeSuccess  = "success"
	OutcomeReplayed = "replayed"
)

var (
	OperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposit_ledger_operations_total",
		Help: "Ledger operations processed, labeled by operation and outcome (success, replayed or error kind)",
	}, []string{"operation", "outcome"})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deposit_ledger_operation_duration_seconds",
		Help:    "Latency distribution of ledger operations",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"operation"})

	ReconcileWallets = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "deposit_ledger_reconcile_wallets",
		Help: "Wallets in the last reconciliation pass, labeled by verification status",
	}, []string{"status"})

	ReconcileDiscrepancy = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "deposit_ledger_reconcile_discrepancy_total",
		Help: "Sum of absolute discrepancies found in the last reconciliation pass",
	})

	ReconcileRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposit_ledger_reconcile_runs_total",
		Help: "Reconciliation passes, labeled by result (completed, skipped, failed)",
	}, []string{"result"})

	CorrectionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "deposit_ledger_corrections_total",
		Help: "Operator wallet corrections applied",
	})

	MirrorFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deposit_ledger_mirror_failures_total",
		Help: "Transitions or corrections that could not be replicated to the external ledger",
	}, []string{"kind"})
)

// ObserveOperation records the outcome and latency of one ledger operation.
func ObserveOperation(operation, outcome string, started time.Time) {
	OperationsTotal.WithLabelValues(operation, outcome).Inc()
	OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveReconcile publishes the counts from a reconciliation pass.
func ObserveReconcile(balanced, mismatched, unknown int, discrepancy float64) {
	ReconcileWallets.WithLabelValues("balanced").Set(float64(balanced))
	ReconcileWallets.WithLabelValues("mismatch").Set(float64(mismatched))
	ReconcileWallets.WithLabelValues("unknown").Set(float64(unknown))
	ReconcileDiscrepancy.Set(discrepancy)
	ReconcileRuns.WithLabelValues("completed").Inc()
}
