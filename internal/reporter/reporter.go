// Package reporter renders pipeline run reports for human and machine
// consumers.
//
// Three formats are supported: console (tabular analyst view), JSON
// (structured, for programmatic consumption) and CSV (the per-currency
// exposure and VaR table). Record-level exports for downstream consumers
// live in export.go.
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"recon-risk-engine/internal/models"
	"recon-risk-engine/internal/pipeline"
	"recon-risk-engine/pkg/errors"
	"recon-risk-engine/pkg/logger"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatConsole OutputFormat = "console"
	FormatJSON    OutputFormat = "json"
	FormatCSV     OutputFormat = "csv"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatConsole, FormatJSON, FormatCSV:
		return true
	default:
		return false
	}
}

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format       OutputFormat `json:"format"`
	CSVDelimiter rune         `json:"csv_delimiter"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:       FormatConsole,
		CSVDelimiter: ',',
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}
	if c.CSVDelimiter == 0 {
		return fmt.Errorf("csv delimiter cannot be zero")
	}
	return nil
}

// statusOrder fixes the display order of reconciliation categories
var statusOrder = []models.ReconStatus{
	models.StatusMissingInB,
	models.StatusMissingInA,
	models.StatusAmountMismatch,
	models.StatusStatusMismatch,
	models.StatusMatch,
}

// Reporter renders RunReports in the configured format
type Reporter struct {
	config *ReportConfig
	log    logger.Logger
}

// NewReporter creates a reporter with the given configuration
func NewReporter(config *ReportConfig) (*Reporter, error) {
	if config == nil {
		config = DefaultReportConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "reporter", config, err)
	}

	return &Reporter{
		config: config,
		log:    logger.GetGlobalLogger().WithComponent("reporter"),
	}, nil
}

// Write renders the run report to the writer
func (r *Reporter) Write(w io.Writer, report *pipeline.RunReport) error {
	switch r.config.Format {
	case FormatJSON:
		return r.writeJSON(w, report)
	case FormatCSV:
		return r.writeCSV(w, report)
	default:
		return r.writeConsole(w, report)
	}
}

func (r *Reporter) writeConsole(w io.Writer, report *pipeline.RunReport) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)

	fmt.Fprintln(tw, "RECONCILIATION SUMMARY")
	fmt.Fprintln(tw, "status\tcount")
	for _, status := range statusOrder {
		if count, ok := report.ReconSummary.CountByStatus[status]; ok {
			fmt.Fprintf(tw, "%s\t%d\n", status, count)
		}
	}
	fmt.Fprintf(tw, "total records\t%d\n", report.ReconSummary.TotalRecords)
	fmt.Fprintf(tw, "discrepancies\t%d\n", report.ReconSummary.DiscrepancyCount)
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "FINANCIAL IMPACT")
	fmt.Fprintf(tw, "total volume (base)\t%s\n", report.TotalVolumeBase.StringFixed(2))
	fmt.Fprintf(tw, "discrepancy impact (base)\t%s\n", report.TotalImpactBase.StringFixed(2))
	if report.ConversionStats != nil && report.ConversionStats.MissingRates > 0 {
		fmt.Fprintf(tw, "records without market rate\t%d\n", report.ConversionStats.MissingRates)
	}
	fmt.Fprintln(tw)

	if report.VaR != nil {
		fmt.Fprintf(tw, "VALUE AT RISK (%.0f%% confidence, %d days, %d scenarios)\n",
			report.VaR.Confidence*100, report.VaR.HorizonDays, report.VaR.Simulations)
		fmt.Fprintln(tw, "currency\texposure (base)\tVaR (base)")
		for _, currency := range report.Exposures.Currencies() {
			entry := report.VaR.ByCurrency[currency]
			fmt.Fprintf(tw, "%s\t%.2f\t%.2f\n", currency, entry.Exposure, entry.VaR)
		}
		fmt.Fprintf(tw, "aggregate (uncorrelated sum)\t\t%.2f\n", report.VaR.AggregateVaR)
	}

	return tw.Flush()
}

func (r *Reporter) writeJSON(w io.Writer, report *pipeline.RunReport) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}

// writeCSV renders the per-currency exposure and VaR table
func (r *Reporter) writeCSV(w io.Writer, report *pipeline.RunReport) error {
	writer := csv.NewWriter(w)
	writer.Comma = r.config.CSVDelimiter

	if err := writer.Write([]string{"currency", "exposure_base", "var_base"}); err != nil {
		return err
	}

	for _, currency := range report.Exposures.Currencies() {
		entry := report.VaR.ByCurrency[currency]
		record := []string{
			currency,
			strconv.FormatFloat(entry.Exposure, 'f', 2, 64),
			strconv.FormatFloat(entry.VaR, 'f', 2, 64),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}
