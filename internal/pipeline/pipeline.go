// Package pipeline orchestrates the full reconciliation and FX-risk run:
// load ledgers and rates, join, classify, convert, aggregate exposures
// and simulate VaR.
//
// Stages run strictly in sequence; each consumes the immutable output of
// its predecessor. Structural problems with the inputs are fatal and
// reported with a specific cause. Row-level data-quality signals never
// abort the run; they are counted and surfaced in the RunReport, so a
// clean run with zero discrepancies is clearly distinct from a run that
// could not execute.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"recon-risk-engine/internal/fx"
	"recon-risk-engine/internal/ledger"
	"recon-risk-engine/internal/models"
	"recon-risk-engine/internal/recon"
	"recon-risk-engine/internal/risk"
	"recon-risk-engine/pkg/errors"
	"recon-risk-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// Config assembles the per-stage configurations and input paths for one
// pipeline run
type Config struct {
	LedgerAPath string `json:"ledger_a_path"`
	LedgerBPath string `json:"ledger_b_path"`
	RatesPath   string `json:"rates_path"`

	Classifier *recon.ClassifierConfig `json:"classifier"`
	Converter  *fx.ConverterConfig     `json:"converter"`
	Simulation *risk.Config            `json:"simulation"`

	// StrictRows makes any malformed input row fatal. When false,
	// malformed rows are skipped and reported in the RunReport.
	StrictRows bool `json:"strict_rows"`
}

// DefaultConfig returns a pipeline configuration with per-stage defaults
func DefaultConfig() *Config {
	return &Config{
		Classifier: recon.DefaultClassifierConfig(),
		Converter:  fx.DefaultConverterConfig(),
		Simulation: risk.DefaultConfig(),
		StrictRows: true,
	}
}

// Validate validates the pipeline configuration
func (c *Config) Validate() error {
	if c.LedgerAPath == "" {
		return fmt.Errorf("ledger A path is required")
	}
	if c.LedgerBPath == "" {
		return fmt.Errorf("ledger B path is required")
	}
	if c.RatesPath == "" {
		return fmt.Errorf("rates path is required")
	}
	if c.Classifier != nil {
		if err := c.Classifier.Validate(); err != nil {
			return err
		}
	}
	if c.Converter != nil {
		if err := c.Converter.Validate(); err != nil {
			return err
		}
	}
	if c.Simulation != nil {
		if err := c.Simulation.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// RunReport is the consolidated output of a pipeline run
type RunReport struct {
	LedgerAStats *ledger.ParseStats `json:"ledger_a_stats"`
	LedgerBStats *ledger.ParseStats `json:"ledger_b_stats"`
	RateStats    *ledger.ParseStats `json:"rate_stats"`

	Reconciled []*models.ReconciledRecord `json:"-"`
	Enriched   []*models.EnrichedRecord   `json:"-"`

	ReconSummary    *recon.Summary      `json:"recon_summary"`
	ConversionStats *fx.ConversionStats `json:"conversion_stats"`
	Exposures       fx.ExposureVector   `json:"exposures"`
	VaR             *risk.Result        `json:"var"`

	// TotalVolumeBase sums every resolvable amount_eur; TotalImpactBase
	// sums every resolvable pnl_impact_eur (the financial weight of the
	// discrepancies)
	TotalVolumeBase decimal.Decimal `json:"total_volume_base"`
	TotalImpactBase decimal.Decimal `json:"total_impact_base"`

	StageTimings map[string]time.Duration `json:"-"`
}

// Engine runs the reconciliation and FX-risk pipeline
type Engine struct {
	config *Config
	log    logger.Logger
}

// NewEngine creates a pipeline engine with the given configuration
func NewEngine(config *Config) (*Engine, error) {
	if config == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "pipeline", nil, nil)
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "pipeline", config, err)
	}

	return &Engine{
		config: config,
		log:    logger.GetGlobalLogger().WithComponent("pipeline"),
	}, nil
}

// Run executes the full pipeline
func (e *Engine) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{
		StageTimings:    make(map[string]time.Duration),
		TotalVolumeBase: decimal.Zero,
		TotalImpactBase: decimal.Zero,
	}

	e.log.WithFields(logger.Fields{
		"ledger_a": e.config.LedgerAPath,
		"ledger_b": e.config.LedgerBPath,
		"rates":    e.config.RatesPath,
	}).Info("pipeline run starting")

	ledgerA, ledgerB, rates, err := e.loadInputs(report)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CategoryInternal, errors.CodeUnexpectedError, "pipeline cancelled")
	}

	// Match
	stageStart := time.Now()
	matcher := recon.NewMatcher()
	matched, err := matcher.Match(ledgerA, ledgerB)
	if err != nil {
		return nil, err
	}
	report.StageTimings["match"] = time.Since(stageStart)

	// Classify
	stageStart = time.Now()
	reconciler, err := recon.NewReconciler(e.config.Classifier)
	if err != nil {
		return nil, err
	}
	report.Reconciled, report.ReconSummary = reconciler.Reconcile(matched)
	report.StageTimings["classify"] = time.Since(stageStart)

	// Convert
	stageStart = time.Now()
	rateTable, err := fx.NewRateTable(rates)
	if err != nil {
		return nil, err
	}
	converter, err := fx.NewConverter(e.config.Converter, rateTable)
	if err != nil {
		return nil, err
	}
	report.Enriched, report.ConversionStats = converter.Convert(report.Reconciled)
	report.StageTimings["convert"] = time.Since(stageStart)

	for _, row := range report.Enriched {
		if row.AmountBase.Valid {
			report.TotalVolumeBase = report.TotalVolumeBase.Add(row.AmountBase.Decimal)
		}
		if row.PnLImpact.Valid {
			report.TotalImpactBase = report.TotalImpactBase.Add(row.PnLImpact.Decimal)
		}
	}

	// Aggregate
	stageStart = time.Now()
	baseCurrency := fx.DefaultConverterConfig().BaseCurrency
	if e.config.Converter != nil {
		baseCurrency = e.config.Converter.BaseCurrency
	}
	report.Exposures = fx.Exposures(report.Enriched, baseCurrency)
	report.StageTimings["aggregate"] = time.Since(stageStart)

	// Simulate
	stageStart = time.Now()
	simulator, err := risk.NewSimulator(e.config.Simulation)
	if err != nil {
		return nil, err
	}
	report.VaR, err = simulator.Run(ctx, report.Exposures)
	if err != nil {
		return nil, err
	}
	report.StageTimings["simulate"] = time.Since(stageStart)

	e.log.WithFields(logger.Fields{
		"records":       report.ReconSummary.TotalRecords,
		"discrepancies": report.ReconSummary.DiscrepancyCount,
		"currencies":    len(report.Exposures),
		"aggregate_var": report.VaR.AggregateVaR,
	}).Info("pipeline run complete")

	return report, nil
}

// loadInputs reads the two ledgers and the rate table, applying the
// strict-row policy
func (e *Engine) loadInputs(report *RunReport) ([]*models.Transaction, []*models.Transaction, []*models.MarketRate, error) {
	stageStart := time.Now()

	loader, err := ledger.NewLoader(nil)
	if err != nil {
		return nil, nil, nil, err
	}

	ledgerA, statsA, errsA, err := loader.LoadTransactions(e.config.LedgerAPath)
	if err != nil {
		return nil, nil, nil, err
	}
	report.LedgerAStats = statsA
	if err := e.checkRows(e.config.LedgerAPath, errsA); err != nil {
		return nil, nil, nil, err
	}
	if len(ledgerA) == 0 {
		return nil, nil, nil, errors.ValidationError(errors.CodeEmptyLedger, "ledger A", e.config.LedgerAPath, nil)
	}

	ledgerB, statsB, errsB, err := loader.LoadTransactions(e.config.LedgerBPath)
	if err != nil {
		return nil, nil, nil, err
	}
	report.LedgerBStats = statsB
	if err := e.checkRows(e.config.LedgerBPath, errsB); err != nil {
		return nil, nil, nil, err
	}
	if len(ledgerB) == 0 {
		return nil, nil, nil, errors.ValidationError(errors.CodeEmptyLedger, "ledger B", e.config.LedgerBPath, nil)
	}

	rateLoader, err := ledger.NewRateLoader(nil)
	if err != nil {
		return nil, nil, nil, err
	}
	rates, rateStats, rateErrs, err := rateLoader.LoadRates(e.config.RatesPath)
	if err != nil {
		return nil, nil, nil, err
	}
	report.RateStats = rateStats
	if err := e.checkRows(e.config.RatesPath, rateErrs); err != nil {
		return nil, nil, nil, err
	}

	report.StageTimings["load"] = time.Since(stageStart)
	return ledgerA, ledgerB, rates, nil
}

func (e *Engine) checkRows(path string, rowErrors []*ledger.RowError) error {
	if len(rowErrors) == 0 {
		return nil
	}

	for _, rowErr := range rowErrors {
		e.log.WithField("file", path).Warnf("malformed row: %v", rowErr)
	}

	if e.config.StrictRows {
		first := rowErrors[0]
		return errors.ParseError(errors.CodeInvalidData, path, first.Line, first.Field, first.Value, first.Err).
			WithContext("malformed_rows", len(rowErrors))
	}
	return nil
}
