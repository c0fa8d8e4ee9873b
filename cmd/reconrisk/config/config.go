package config

import (
	"fmt"
	"time"

	"recon-risk-engine/internal/datagen"
	"recon-risk-engine/internal/fx"
	"recon-risk-engine/internal/pipeline"
	"recon-risk-engine/internal/recon"
	"recon-risk-engine/internal/reporter"
	"recon-risk-engine/internal/risk"

	"github.com/shopspring/decimal"
)

// RunOptions carries the flag values for a pipeline run
type RunOptions struct {
	LedgerAPath string
	LedgerBPath string
	RatesPath   string

	AmountTolerance float64
	BaseCurrency    string

	Confidence      float64
	Simulations     int
	HorizonDays     int
	DailyVolatility float64
	Seed            uint64

	LenientRows bool
}

// CreatePipelineConfig builds a pipeline configuration from CLI options
func CreatePipelineConfig(opts *RunOptions) (*pipeline.Config, error) {
	classifier := recon.DefaultClassifierConfig()
	classifier.AmountTolerance = decimal.NewFromFloat(opts.AmountTolerance)

	converter := fx.DefaultConverterConfig()
	if opts.BaseCurrency != "" {
		converter.BaseCurrency = opts.BaseCurrency
	}

	simulation := &risk.Config{
		Confidence:      opts.Confidence,
		Simulations:     opts.Simulations,
		HorizonDays:     opts.HorizonDays,
		DailyVolatility: opts.DailyVolatility,
		Seed:            opts.Seed,
	}

	config := pipeline.DefaultConfig()
	config.LedgerAPath = opts.LedgerAPath
	config.LedgerBPath = opts.LedgerBPath
	config.RatesPath = opts.RatesPath
	config.Classifier = classifier
	config.Converter = converter
	config.Simulation = simulation
	config.StrictRows = !opts.LenientRows

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// CreateReportConfig creates a report configuration for the output format
func CreateReportConfig(format string) (*reporter.ReportConfig, error) {
	config := reporter.DefaultReportConfig()

	switch reporter.OutputFormat(format) {
	case reporter.FormatConsole:
		config.Format = reporter.FormatConsole
	case reporter.FormatJSON:
		config.Format = reporter.FormatJSON
	case reporter.FormatCSV:
		config.Format = reporter.FormatCSV
		config.CSVDelimiter = ','
	default:
		return nil, fmt.Errorf("invalid output format %q, valid formats: console, json, csv", format)
	}

	return config, nil
}

// GenerateOptions carries the flag values for dataset generation
type GenerateOptions struct {
	StartDate    string
	EndDate      string
	Transactions int
	Seed         uint64
}

// CreateGeneratorConfig builds a generator configuration from CLI options
func CreateGeneratorConfig(opts *GenerateOptions) (*datagen.Config, error) {
	config := datagen.DefaultConfig()

	if opts.StartDate != "" {
		start, err := time.Parse("2006-01-02", opts.StartDate)
		if err != nil {
			return nil, fmt.Errorf("invalid start date, use YYYY-MM-DD: %w", err)
		}
		config.StartDate = start
	}
	if opts.EndDate != "" {
		end, err := time.Parse("2006-01-02", opts.EndDate)
		if err != nil {
			return nil, fmt.Errorf("invalid end date, use YYYY-MM-DD: %w", err)
		}
		config.EndDate = end
	}
	if opts.Transactions > 0 {
		config.Transactions = opts.Transactions
	}
	config.Seed = opts.Seed

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
