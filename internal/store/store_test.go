package store

import (
	"errors"
	"fmt"
	"testing"
)

// Compile-time checks that the interfaces are importable and usable.
func TestLedgerStoreInterfaceExists(t *testing.T) {
	_ = DepositFilter{}
	_ = DepositCAS{}

	var _ LedgerStore
	var _ Tx
	var _ Mirror
}

func TestSentinelsSurviveWrapping(t *testing.T) {
	for _, sentinel := range []error{ErrNotFound, ErrDuplicate, ErrConcurrentModification} {
		wrapped := fmt.Errorf("update wallet w-1: %w", sentinel)
		if !errors.Is(wrapped, sentinel) {
			t.Errorf("Expected wrapped error to match %v", sentinel)
		}
	}

	if errors.Is(ErrNotFound, ErrDuplicate) {
		t.Error("Sentinels must be distinct")
	}
}
