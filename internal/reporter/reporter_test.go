package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"recon-risk-engine/internal/fx"
	"recon-risk-engine/internal/models"
	"recon-risk-engine/internal/pipeline"
	"recon-risk-engine/internal/recon"
	"recon-risk-engine/internal/risk"

	"github.com/shopspring/decimal"
)

func sampleReport() *pipeline.RunReport {
	return &pipeline.RunReport{
		ReconSummary: &recon.Summary{
			TotalRecords: 5,
			CountByStatus: map[models.ReconStatus]int{
				models.StatusMatch:          3,
				models.StatusMissingInB:     1,
				models.StatusAmountMismatch: 1,
			},
			DiscrepancyCount: 2,
			TotalAbsDiff:     decimal.NewFromInt(110),
		},
		ConversionStats: &fx.ConversionStats{TotalRecords: 5, Converted: 4, MissingRates: 1},
		Exposures: fx.ExposureVector{
			"GBP": decimal.NewFromInt(50000),
			"USD": decimal.NewFromInt(100000),
		},
		VaR: &risk.Result{
			Confidence:  0.95,
			HorizonDays: 30,
			Simulations: 1000,
			ByCurrency: map[string]risk.CurrencyVaR{
				"USD": {Currency: "USD", Exposure: 100000, VaR: -4200.50},
				"GBP": {Currency: "GBP", Exposure: 50000, VaR: -2100.25},
			},
			AggregateVaR: -6300.75,
		},
		TotalVolumeBase: decimal.NewFromInt(150000),
		TotalImpactBase: decimal.NewFromFloat(-95.40),
	}
}

func TestWriteConsole(t *testing.T) {
	reporter, err := NewReporter(nil)
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}

	var buf bytes.Buffer
	if err := reporter.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	out := buf.String()
	for _, want := range []string{
		"RECONCILIATION SUMMARY",
		"MISSING_IN_B",
		"AMOUNT_MISMATCH",
		"FINANCIAL IMPACT",
		"records without market rate",
		"VALUE AT RISK",
		"USD",
		"aggregate (uncorrelated sum)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("console output missing %q:\n%s", want, out)
		}
	}
}

func TestWriteJSON(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatJSON
	reporter, err := NewReporter(config)
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}

	var buf bytes.Buffer
	if err := reporter.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if _, ok := decoded["recon_summary"]; !ok {
		t.Error("JSON output missing recon_summary")
	}
	if _, ok := decoded["var"]; !ok {
		t.Error("JSON output missing var")
	}
}

func TestWriteCSV(t *testing.T) {
	config := DefaultReportConfig()
	config.Format = FormatCSV
	reporter, err := NewReporter(config)
	if err != nil {
		t.Fatalf("NewReporter failed: %v", err)
	}

	var buf bytes.Buffer
	if err := reporter.Write(&buf, sampleReport()); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header plus 2 currency rows, got %d lines", len(lines))
	}
	if lines[0] != "currency,exposure_base,var_base" {
		t.Errorf("unexpected header: %s", lines[0])
	}
	if !strings.HasPrefix(lines[1], "GBP,") || !strings.HasPrefix(lines[2], "USD,") {
		t.Errorf("currency rows not sorted: %v", lines[1:])
	}
}

func TestInvalidFormatRejected(t *testing.T) {
	config := &ReportConfig{Format: "xml", CSVDelimiter: ','}
	if _, err := NewReporter(config); err == nil {
		t.Error("unsupported format should be rejected")
	}
}

func TestWriteReconciledCSV(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	txA := models.NewTransaction("T1", day, "USD", decimal.NewFromInt(1000), "COMPLETED", "internal")

	records := []*models.ReconciledRecord{{
		MatchedRecord: models.MatchedRecord{ID: "T1", A: txA, Indicator: models.MergeLeftOnly},
		Status:        models.StatusMissingInB,
		AmountDiff:    decimal.NewFromInt(1000),
	}}

	var buf bytes.Buffer
	if err := WriteReconciledCSV(&buf, records); err != nil {
		t.Fatalf("WriteReconciledCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header plus 1 record, got %d lines", len(lines))
	}
	if !strings.Contains(lines[1], "T1,MISSING_IN_B,1000.00,1000.00,") {
		t.Errorf("unexpected record line: %s", lines[1])
	}
	fields := strings.Split(lines[1], ",")
	if len(fields) != len(strings.Split(lines[0], ",")) {
		t.Fatalf("field count does not match header: %s", lines[1])
	}
	// amount_b and the other B-side columns stay empty for a missing side
	if fields[4] != "" || fields[6] != "" {
		t.Errorf("absent side should render as empty fields: %s", lines[1])
	}
}

func TestWriteEnrichedCSVMissingRate(t *testing.T) {
	day := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	txA := models.NewTransaction("T2", day, "CHF", decimal.NewFromInt(500), "COMPLETED", "internal")

	records := []*models.EnrichedRecord{{
		ReconciledRecord: models.ReconciledRecord{
			MatchedRecord: models.MatchedRecord{ID: "T2", A: txA, Indicator: models.MergeLeftOnly},
			Status:        models.StatusMissingInB,
			AmountDiff:    decimal.NewFromInt(500),
		},
	}}

	var buf bytes.Buffer
	if err := WriteEnrichedCSV(&buf, records); err != nil {
		t.Fatalf("WriteEnrichedCSV failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if !strings.HasSuffix(lines[1], ",,") {
		t.Errorf("unresolved conversion should render as empty trailing fields: %s", lines[1])
	}
}
