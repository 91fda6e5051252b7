package ledger

import (
	"errors"
	"fmt"
	"testing"

	"deposit-ledger-go/internal/store"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, ""},
		{InvalidInput("amount must be positive"), KindInvalidInput},
		{ErrIdempotencyKeyConflict, KindInvalidInput},
		{fmt.Errorf("%w: deposit is approved", ErrInvalidStateTransition), KindInvalidStateTransition},
		{fmt.Errorf("%w: wallet holds 30", ErrInsufficientBalance), KindInsufficientBalance},
		{classify(errors.New("disk I/O error")), KindPersistenceFailure},
	}

	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	wrapped := classify(fmt.Errorf("update: %w", store.ErrConcurrentModification))
	if !errors.Is(wrapped, ErrPersistence) || !errors.Is(wrapped, store.ErrConcurrentModification) {
		t.Errorf("Expected persistence wrapping to keep the cause, got %v", wrapped)
	}
	if !IsRetryable(wrapped) {
		t.Error("Expected persistence failures to be retryable")
	}

	stateErr := fmt.Errorf("%w: x", ErrInvalidStateTransition)
	if classify(stateErr) != stateErr {
		t.Error("Expected taxonomy errors to pass through unchanged")
	}
	if IsRetryable(stateErr) {
		t.Error("Expected state errors not to be retryable")
	}
}
