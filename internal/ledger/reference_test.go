package ledger

import (
	"regexp"
	"testing"
	"time"
)

func TestNewReferenceNumber(t *testing.T) {
	now := time.UnixMilli(1700000000123)

	tests := []struct {
		method string
		prefix string
	}{
		{"gcash", "GCASH"},
		{"bank transfer", "BANK_TRANSFER"},
		{"", "DEP"},
		{"  ", "DEP"},
	}

	for _, tt := range tests {
		ref := NewReferenceNumber(tt.method, now)
		pattern := regexp.MustCompile("^" + tt.prefix + `-1700000000123-[A-Z0-9]{6}$`)
		if !pattern.MatchString(ref) {
			t.Errorf("method %q: reference %q does not match %s", tt.method, ref, pattern)
		}
	}
}

func TestNewReferenceNumber_Unique(t *testing.T) {
	now := time.Now()
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		ref := NewReferenceNumber("dep", now)
		if seen[ref] {
			t.Fatalf("Duplicate reference %s", ref)
		}
		seen[ref] = true
	}
}
