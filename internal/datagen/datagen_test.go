package datagen

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"recon-risk-engine/internal/ledger"
)

func smallConfig() *Config {
	config := DefaultConfig()
	config.Transactions = 500
	return config
}

func TestMarketRatesCoverEveryDayAndPair(t *testing.T) {
	generator, err := NewGenerator(smallConfig())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	rates := generator.MarketRates()

	// 31 days in January for 3 pairs
	if len(rates) != 31*3 {
		t.Fatalf("expected 93 quotes, got %d", len(rates))
	}
	for _, rate := range rates {
		if err := rate.Validate(); err != nil {
			t.Fatalf("generated quote failed validation: %v", err)
		}
	}
}

func TestLedgerAExcludesBaseCurrency(t *testing.T) {
	generator, err := NewGenerator(smallConfig())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	transactions := generator.LedgerA()
	if len(transactions) == 0 {
		t.Fatal("expected generated transactions")
	}
	// Base draws are skipped, so the output is smaller than the attempt count
	if len(transactions) >= 500 {
		t.Errorf("expected fewer rows than attempts, got %d", len(transactions))
	}

	seen := make(map[string]bool)
	for _, tx := range transactions {
		if tx.Currency == "EUR" {
			t.Fatalf("base currency row leaked into ledger A: %s", tx.ID)
		}
		if seen[tx.ID] {
			t.Fatalf("duplicate identifier generated: %s", tx.ID)
		}
		seen[tx.ID] = true
		if err := tx.Validate(); err != nil {
			t.Fatalf("generated transaction failed validation: %v", err)
		}
	}
}

func TestLedgerBInjectsErrors(t *testing.T) {
	generator, err := NewGenerator(smallConfig())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	ledgerA := generator.LedgerA()
	ledgerB := generator.LedgerB(ledgerA)

	wantDropped := int(float64(len(ledgerA)) * 0.02)
	if got := len(ledgerA) - len(ledgerB); got != wantDropped {
		t.Errorf("expected %d dropped rows, got %d", wantDropped, got)
	}

	byID := make(map[string]int, len(ledgerA))
	for i, tx := range ledgerA {
		byID[tx.ID] = i
	}

	var amountErrors, statusErrors int
	for _, tx := range ledgerB {
		original := ledgerA[byID[tx.ID]]
		if tx.Source != sourceProvider {
			t.Fatalf("ledger B row kept source %q", tx.Source)
		}
		if !tx.Amount.Equal(original.Amount) {
			amountErrors++
			if tx.Amount.GreaterThanOrEqual(original.Amount) {
				t.Errorf("shaved amount should shrink: %s -> %s", original.Amount, tx.Amount)
			}
		}
		if tx.Status == statusPending {
			statusErrors++
		}
	}
	if amountErrors == 0 {
		t.Error("expected at least one shaved amount")
	}
	if statusErrors == 0 {
		t.Error("expected at least one flipped status")
	}

	// The originals must not be mutated through the clones
	for _, tx := range ledgerA {
		if tx.Source != sourceInternal || tx.Status != statusCompleted {
			t.Fatalf("ledger A mutated by ledger B generation: %+v", tx)
		}
	}
}

func TestGenerationIsReproducible(t *testing.T) {
	first, err := NewGenerator(smallConfig())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}
	second, err := NewGenerator(smallConfig())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	a1 := first.LedgerA()
	a2 := second.LedgerA()
	if len(a1) != len(a2) {
		t.Fatalf("row counts differ across runs: %d vs %d", len(a1), len(a2))
	}
	for i := range a1 {
		if a1[i].ID != a2[i].ID || !a1[i].Amount.Equal(a2[i].Amount) {
			t.Fatalf("row %d differs across runs with the same seed", i)
		}
	}
}

func TestGeneratedCSVRoundTripsThroughIngestion(t *testing.T) {
	generator, err := NewGenerator(smallConfig())
	if err != nil {
		t.Fatalf("NewGenerator failed: %v", err)
	}

	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "ledger_a.csv")
	ratesPath := filepath.Join(dir, "rates.csv")

	var buf bytes.Buffer
	transactions := generator.LedgerA()
	if err := WriteTransactionsCSV(&buf, transactions); err != nil {
		t.Fatalf("WriteTransactionsCSV failed: %v", err)
	}
	if err := os.WriteFile(ledgerPath, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write ledger file: %v", err)
	}

	buf.Reset()
	if err := WriteRatesCSV(&buf, generator.MarketRates()); err != nil {
		t.Fatalf("WriteRatesCSV failed: %v", err)
	}
	if err := os.WriteFile(ratesPath, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write rates file: %v", err)
	}

	loader, err := ledger.NewLoader(ledger.DefaultConfig())
	if err != nil {
		t.Fatalf("NewLoader failed: %v", err)
	}
	loaded, stats, rowErrors, err := loader.LoadTransactions(ledgerPath)
	if err != nil {
		t.Fatalf("LoadTransactions failed: %v", err)
	}
	if len(rowErrors) != 0 {
		t.Fatalf("generated ledger produced %d row errors", len(rowErrors))
	}
	if len(loaded) != len(transactions) || stats.RowsParsed != len(transactions) {
		t.Errorf("expected %d loaded rows, got %d", len(transactions), len(loaded))
	}

	rateLoader, err := ledger.NewRateLoader(ledger.DefaultRateConfig())
	if err != nil {
		t.Fatalf("NewRateLoader failed: %v", err)
	}
	rates, _, rateErrors, err := rateLoader.LoadRates(ratesPath)
	if err != nil {
		t.Fatalf("LoadRates failed: %v", err)
	}
	if len(rateErrors) != 0 {
		t.Fatalf("generated rates produced %d row errors", len(rateErrors))
	}
	if len(rates) != 93 {
		t.Errorf("expected 93 loaded quotes, got %d", len(rates))
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero transactions", func(c *Config) { c.Transactions = 0 }},
		{"inverted dates", func(c *Config) { c.StartDate, c.EndDate = c.EndDate, c.StartDate }},
		{"no currencies", func(c *Config) { c.Currencies = nil }},
		{"zero volatility", func(c *Config) { c.RateVolatility = 0 }},
		{"drop fraction above one", func(c *Config) { c.DropFraction = 1.5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := DefaultConfig()
			tt.mutate(config)
			if _, err := NewGenerator(config); err == nil {
				t.Error("expected a configuration error")
			}
		})
	}
}
