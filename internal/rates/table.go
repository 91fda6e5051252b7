package rates

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v2"
)

type RateConfig struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
	Rate string `yaml:"rate"`
}

type RatesConfig struct {
	Rates []RateConfig `yaml:"rates"`
}

// Table is a static exchange-rate provider. Lookups are case-insensitive,
// a currency converts to itself at 1, and a missing pair falls back to the
// inverse of its reverse pair.
type Table struct {
	rates map[string]decimal.Decimal
}

func NewTable(entries []RateConfig) (*Table, error) {
	t := &Table{rates: make(map[string]decimal.Decimal, len(entries))}
	for i, entry := range entries {
		if entry.From == "" || entry.To == "" {
			return nil, fmt.Errorf("rate at index %d missing currency", i)
		}
		rate, err := decimal.NewFromString(entry.Rate)
		if err != nil {
			return nil, fmt.Errorf("rate at index %d (%s/%s) invalid: %w", i, entry.From, entry.To, err)
		}
		if !rate.IsPositive() {
			return nil, fmt.Errorf("rate at index %d (%s/%s) must be positive", i, entry.From, entry.To)
		}
		t.rates[pairKey(entry.From, entry.To)] = rate
	}
	return t, nil
}

func LoadTable(ratesFile string) (*Table, error) {
	var ratesPath string
	if filepath.IsAbs(ratesFile) {
		ratesPath = ratesFile
	} else {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		ratesPath = filepath.Join(wd, ratesFile)
	}

	data, err := os.ReadFile(ratesPath)
	if err != nil {
		return nil, fmt.Errorf("unable to read %s: %w", ratesFile, err)
	}

	var config RatesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", ratesFile, err)
	}

	return NewTable(config.Rates)
}

// Rate returns how many units of to one unit of from is worth.
func (t *Table) Rate(from, to string) (decimal.Decimal, bool) {
	if strings.EqualFold(from, to) {
		return decimal.NewFromInt(1), true
	}
	if t == nil {
		return decimal.Zero, false
	}
	if rate, ok := t.rates[pairKey(from, to)]; ok {
		return rate, true
	}
	if inverse, ok := t.rates[pairKey(to, from)]; ok {
		return decimal.NewFromInt(1).DivRound(inverse, 8), true
	}
	return decimal.Zero, false
}

func pairKey(from, to string) string {
	return strings.ToUpper(from) + "/" + strings.ToUpper(to)
}
