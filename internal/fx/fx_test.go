package fx

import (
	"testing"
	"time"

	"recon-risk-engine/internal/models"
	"recon-risk-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

var testDay = time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)

func rateRow(day time.Time, pair string, rate float64) *models.MarketRate {
	return &models.MarketRate{Date: day, Pair: pair, Rate: decimal.NewFromFloat(rate)}
}

func reconciledRow(id string, amount float64, currency string, diff float64) *models.ReconciledRecord {
	tx := models.NewTransaction(id, testDay, currency, decimal.NewFromFloat(amount), "COMPLETED", "test")
	return &models.ReconciledRecord{
		MatchedRecord: models.MatchedRecord{ID: id, A: tx, Indicator: models.MergeLeftOnly},
		Status:        models.StatusMissingInB,
		AmountDiff:    decimal.NewFromFloat(diff),
	}
}

func TestRateTableLookup(t *testing.T) {
	table, err := NewRateTable([]*models.MarketRate{
		rateRow(testDay, "EURUSD", 1.08),
		rateRow(testDay, "EURGBP", 0.85),
		rateRow(testDay.AddDate(0, 0, 1), "EURUSD", 1.09),
	})
	if err != nil {
		t.Fatalf("NewRateTable failed: %v", err)
	}

	if table.Len() != 3 {
		t.Errorf("Len = %d, want 3", table.Len())
	}

	rate, ok := table.Lookup(testDay, "EURUSD")
	if !ok || !rate.Equal(decimal.NewFromFloat(1.08)) {
		t.Errorf("Lookup(day1, EURUSD) = %s, %v; want 1.08, true", rate, ok)
	}

	// Lookup normalizes timestamps to calendar day
	noon := testDay.Add(12 * time.Hour)
	if _, ok := table.Lookup(noon, "EURUSD"); !ok {
		t.Error("Lookup should match on calendar day, ignoring time of day")
	}

	if _, ok := table.Lookup(testDay, "EURJPY"); ok {
		t.Error("Lookup for unknown pair should report missing")
	}
}

func TestRateTableRejectsDuplicates(t *testing.T) {
	_, err := NewRateTable([]*models.MarketRate{
		rateRow(testDay, "EURUSD", 1.08),
		rateRow(testDay, "EURUSD", 1.09),
	})
	if err == nil {
		t.Fatal("expected duplicate rate error")
	}
	if !errors.IsCategory(err, errors.CategoryMarketData) {
		t.Errorf("expected market data category, got %v", err)
	}
}

func TestConvertDividesByRate(t *testing.T) {
	table, _ := NewRateTable([]*models.MarketRate{rateRow(testDay, "EURUSD", 1.08)})
	converter, err := NewConverter(nil, table)
	if err != nil {
		t.Fatalf("NewConverter failed: %v", err)
	}

	enriched, stats := converter.Convert([]*models.ReconciledRecord{
		reconciledRow("T1", 1080, "USD", 10.80),
	})

	if stats.Converted != 1 {
		t.Fatalf("stats.Converted = %d, want 1", stats.Converted)
	}

	row := enriched[0]
	if !row.RateResolved {
		t.Fatal("rate should be resolved")
	}
	// Rate convention: 1 EUR = 1.08 USD, so 1080 USD / 1.08 = 1000 EUR
	if !row.AmountBase.Decimal.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("amount_eur = %s, want 1000", row.AmountBase.Decimal)
	}
	if !row.PnLImpact.Decimal.Equal(decimal.NewFromInt(10)) {
		t.Errorf("pnl_impact_eur = %s, want 10", row.PnLImpact.Decimal)
	}
}

func TestConvertBaseCurrencyBypass(t *testing.T) {
	// Empty rate table: the bypass must not need a EUREUR row
	table, _ := NewRateTable(nil)
	converter, _ := NewConverter(nil, table)

	enriched, stats := converter.Convert([]*models.ReconciledRecord{
		reconciledRow("T1", 500.25, "EUR", 3.50),
	})

	row := enriched[0]
	if stats.BaseBypassed != 1 {
		t.Fatalf("stats.BaseBypassed = %d, want 1", stats.BaseBypassed)
	}
	if !row.AmountBase.Valid || !row.AmountBase.Decimal.Equal(decimal.NewFromFloat(500.25)) {
		t.Errorf("amount_eur = %v, want exactly 500.25", row.AmountBase)
	}
	if !row.PnLImpact.Valid || !row.PnLImpact.Decimal.Equal(decimal.NewFromFloat(3.50)) {
		t.Errorf("pnl_impact_eur = %v, want exactly 3.50", row.PnLImpact)
	}
	if !row.MarketRate.Decimal.Equal(decimal.NewFromInt(1)) {
		t.Errorf("market_rate = %v, want 1", row.MarketRate)
	}
}

func TestConvertMissingRateIsSurfacedNotZeroed(t *testing.T) {
	table, _ := NewRateTable([]*models.MarketRate{rateRow(testDay, "EURGBP", 0.85)})
	converter, _ := NewConverter(nil, table)

	enriched, stats := converter.Convert([]*models.ReconciledRecord{
		reconciledRow("T1", 1000, "CHF", 0), // no EURCHF rate loaded
	})

	if stats.MissingRates != 1 {
		t.Fatalf("stats.MissingRates = %d, want 1", stats.MissingRates)
	}
	if len(enriched) != 1 {
		t.Fatal("record with missing rate must be kept, not dropped")
	}

	row := enriched[0]
	if row.RateResolved {
		t.Error("rate should not be resolved")
	}
	if row.AmountBase.Valid || row.PnLImpact.Valid || row.MarketRate.Valid {
		t.Errorf("converted values must stay explicitly null, got %+v", row)
	}
}

func TestConvertRecordWithoutSideA(t *testing.T) {
	table, _ := NewRateTable([]*models.MarketRate{rateRow(testDay, "EURUSD", 1.08)})
	converter, _ := NewConverter(nil, table)

	txB := models.NewTransaction("T9", testDay, "USD", decimal.NewFromInt(700), "COMPLETED", "bank")
	records := []*models.ReconciledRecord{{
		MatchedRecord: models.MatchedRecord{ID: "T9", B: txB, Indicator: models.MergeRightOnly},
		Status:        models.StatusMissingInA,
		AmountDiff:    decimal.NewFromInt(-700),
	}}

	enriched, stats := converter.Convert(records)
	if stats.MissingSideA != 1 {
		t.Errorf("stats.MissingSideA = %d, want 1", stats.MissingSideA)
	}
	if enriched[0].AmountBase.Valid {
		t.Error("no ledger-A amount to convert, amount_eur must stay null")
	}
}

func TestExposures(t *testing.T) {
	table, _ := NewRateTable([]*models.MarketRate{
		rateRow(testDay, "EURUSD", 1.08),
		rateRow(testDay, "EURGBP", 0.85),
	})
	converter, _ := NewConverter(nil, table)

	enriched, _ := converter.Convert([]*models.ReconciledRecord{
		reconciledRow("T1", 1080, "USD", 0),
		reconciledRow("T2", 540, "USD", 0),
		reconciledRow("T3", 850, "GBP", 0),
		reconciledRow("T4", 200, "EUR", 0),  // base currency, excluded
		reconciledRow("T5", 9999, "CHF", 0), // no rate, cannot contribute
	})

	vector := Exposures(enriched, "EUR")

	if len(vector) != 2 {
		t.Fatalf("expected exposures for USD and GBP only, got %v", vector.Currencies())
	}
	if !vector["USD"].Equal(decimal.NewFromInt(1500)) {
		t.Errorf("USD exposure = %s, want 1500", vector["USD"])
	}
	if !vector["GBP"].Equal(decimal.NewFromInt(1000)) {
		t.Errorf("GBP exposure = %s, want 1000", vector["GBP"])
	}
	if _, ok := vector["EUR"]; ok {
		t.Error("base currency must be excluded from the exposure vector")
	}
}

func TestExposuresNetsSignedAmounts(t *testing.T) {
	table, _ := NewRateTable([]*models.MarketRate{rateRow(testDay, "EURUSD", 1.0)})
	converter, _ := NewConverter(nil, table)

	enriched, _ := converter.Convert([]*models.ReconciledRecord{
		reconciledRow("T1", 1000, "USD", 0),
		reconciledRow("T2", -400, "USD", 0),
	})

	vector := Exposures(enriched, "EUR")
	if !vector["USD"].Equal(decimal.NewFromInt(600)) {
		t.Errorf("net USD exposure = %s, want 600", vector["USD"])
	}
}
