package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperation(t *testing.T) {
	before := testutil.ToFloat64(OperationsTotal.WithLabelValues("approve", OutcomeSuccess))

	ObserveOperation("approve", OutcomeSuccess, time.Now())

	after := testutil.ToFloat64(OperationsTotal.WithLabelValues("approve", OutcomeSuccess))
	if after != before+1 {
		t.Errorf("Expected counter to increase by 1, got %v -> %v", before, after)
	}
}

func TestObserveReconcile(t *testing.T) {
	ObserveReconcile(3, 1, 2, 12.5)

	if got := testutil.ToFloat64(ReconcileWallets.WithLabelValues("balanced")); got != 3 {
		t.Errorf("Expected 3 balanced, got %v", got)
	}
	if got := testutil.ToFloat64(ReconcileWallets.WithLabelValues("unknown")); got != 2 {
		t.Errorf("Expected 2 unknown, got %v", got)
	}
	if got := testutil.ToFloat64(ReconcileDiscrepancy); got != 12.5 {
		t.Errorf("Expected discrepancy 12.5, got %v", got)
	}
}
