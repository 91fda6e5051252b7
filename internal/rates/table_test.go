package rates

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
)

func TestTable_Rate(t *testing.T) {
	table, err := NewTable([]RateConfig{
		{From: "USD", To: "PHP", Rate: "56.25"},
		{From: "EUR", To: "USD", Rate: "1.08"},
	})
	if err != nil {
		t.Fatalf("NewTable failed: %v", err)
	}

	tests := []struct {
		name     string
		from, to string
		want     string
		found    bool
	}{
		{"direct", "USD", "PHP", "56.25", true},
		{"case insensitive", "usd", "php", "56.25", true},
		{"same currency", "PHP", "php", "1", true},
		{"inverse", "PHP", "USD", "0.01777778", true},
		{"missing", "JPY", "PHP", "0", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.Rate(tt.from, tt.to)
			if ok != tt.found {
				t.Fatalf("Expected found=%v, got %v", tt.found, ok)
			}
			if ok && !got.Equal(decimal.RequireFromString(tt.want)) {
				t.Errorf("Expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNewTable_Invalid(t *testing.T) {
	cases := [][]RateConfig{
		{{From: "", To: "PHP", Rate: "1"}},
		{{From: "USD", To: "PHP", Rate: "abc"}},
		{{From: "USD", To: "PHP", Rate: "0"}},
	}
	for i, entries := range cases {
		if _, err := NewTable(entries); err == nil {
			t.Errorf("case %d: expected error", i)
		}
	}
}

func TestLoadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rates.yaml")
	content := "rates:\n  - from: USD\n    to: PHP\n    rate: \"56.25\"\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("Failed to write rates file: %v", err)
	}

	table, err := LoadTable(path)
	if err != nil {
		t.Fatalf("LoadTable failed: %v", err)
	}
	if rate, ok := table.Rate("USD", "PHP"); !ok || !rate.Equal(decimal.RequireFromString("56.25")) {
		t.Errorf("Unexpected rate %s (found=%v)", rate, ok)
	}

	if _, err := LoadTable(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}
