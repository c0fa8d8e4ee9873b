package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"recon-risk-engine/cmd/reconrisk/config"
	"recon-risk-engine/internal/pipeline"
	"recon-risk-engine/internal/reporter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Flags for the run command
var (
	ledgerAFile string
	ledgerBFile string
	ratesFile   string

	amountTolerance float64
	baseCurrency    string

	confidence  float64
	simulations int
	horizonDays int
	volatility  float64
	seed        uint64

	outputFormat string
	outputFile   string

	exportReconciled string
	exportEnriched   string

	lenientRows bool
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Reconcile two ledgers and estimate FX risk",
	Long: `Run executes the full pipeline: load both ledgers and the market
rates, full-outer-join the ledgers on transaction identifier, classify
every record, convert amounts to the base currency, aggregate open
exposures per currency, and simulate Value at Risk for each exposure.

This command requires:
- An internal ledger file (CSV format)
- A provider ledger file (CSV format)
- A daily market rate file (CSV format)

Examples:
  # Basic run
  reconrisk run --ledger-a internal.csv --ledger-b provider.csv --rates rates.csv

  # Custom tolerance and simulation parameters
  reconrisk run -a internal.csv -b provider.csv -r rates.csv \
    --tolerance 0.05 --confidence 0.99 --simulations 10000

  # JSON report plus record-level exports
  reconrisk run -a internal.csv -b provider.csv -r rates.csv \
    --output-format json --output-file report.json \
    --export-reconciled reconciled.csv --export-enriched enriched.csv

  # Skip malformed rows instead of aborting
  reconrisk run -a internal.csv -b provider.csv -r rates.csv --lenient-rows`,

	PreRunE: validateRunFlags,
	RunE:    runPipeline,
}

func init() {
	rootCmd.AddCommand(runCmd)

	// Required flags
	runCmd.Flags().StringVarP(&ledgerAFile, "ledger-a", "a", "", "path to the internal ledger CSV file (required)")
	runCmd.Flags().StringVarP(&ledgerBFile, "ledger-b", "b", "", "path to the provider ledger CSV file (required)")
	runCmd.Flags().StringVarP(&ratesFile, "rates", "r", "", "path to the market rate CSV file (required)")

	// Reconciliation flags
	runCmd.Flags().Float64VarP(&amountTolerance, "tolerance", "t", 0.01, "amount tolerance in ledger currency units")
	runCmd.Flags().StringVar(&baseCurrency, "base-currency", "EUR", "base currency for conversion and exposure")
	runCmd.Flags().BoolVar(&lenientRows, "lenient-rows", false, "skip malformed input rows instead of aborting")

	// Simulation flags
	runCmd.Flags().Float64Var(&confidence, "confidence", 0.95, "VaR confidence level (0-1)")
	runCmd.Flags().IntVar(&simulations, "simulations", 1000, "Monte Carlo scenarios per currency")
	runCmd.Flags().IntVar(&horizonDays, "horizon", 30, "simulation horizon in days")
	runCmd.Flags().Float64Var(&volatility, "volatility", 0.005, "daily FX volatility")
	runCmd.Flags().Uint64Var(&seed, "seed", 42, "random seed for reproducible simulations")

	// Output flags
	runCmd.Flags().StringVarP(&outputFormat, "output-format", "f", "console", "output format: console, json, csv")
	runCmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "output file path (default: stdout)")
	runCmd.Flags().StringVar(&exportReconciled, "export-reconciled", "", "write the reconciled record set to this CSV file")
	runCmd.Flags().StringVar(&exportEnriched, "export-enriched", "", "write the enriched record set to this CSV file")

	// Mark required flags
	runCmd.MarkFlagRequired("ledger-a")
	runCmd.MarkFlagRequired("ledger-b")
	runCmd.MarkFlagRequired("rates")

	// Bind flags to viper
	viper.BindPFlag("ledger-a", runCmd.Flags().Lookup("ledger-a"))
	viper.BindPFlag("ledger-b", runCmd.Flags().Lookup("ledger-b"))
	viper.BindPFlag("rates", runCmd.Flags().Lookup("rates"))
	viper.BindPFlag("tolerance", runCmd.Flags().Lookup("tolerance"))
	viper.BindPFlag("base-currency", runCmd.Flags().Lookup("base-currency"))
	viper.BindPFlag("lenient-rows", runCmd.Flags().Lookup("lenient-rows"))
	viper.BindPFlag("confidence", runCmd.Flags().Lookup("confidence"))
	viper.BindPFlag("simulations", runCmd.Flags().Lookup("simulations"))
	viper.BindPFlag("horizon", runCmd.Flags().Lookup("horizon"))
	viper.BindPFlag("volatility", runCmd.Flags().Lookup("volatility"))
	viper.BindPFlag("seed", runCmd.Flags().Lookup("seed"))
	viper.BindPFlag("output-format", runCmd.Flags().Lookup("output-format"))
	viper.BindPFlag("output-file", runCmd.Flags().Lookup("output-file"))
	viper.BindPFlag("export-reconciled", runCmd.Flags().Lookup("export-reconciled"))
	viper.BindPFlag("export-enriched", runCmd.Flags().Lookup("export-enriched"))
}

func validateRunFlags(cmd *cobra.Command, args []string) error {
	// Get values from viper (allows override from config file)
	ledgerAFile = viper.GetString("ledger-a")
	ledgerBFile = viper.GetString("ledger-b")
	ratesFile = viper.GetString("rates")
	amountTolerance = viper.GetFloat64("tolerance")
	baseCurrency = viper.GetString("base-currency")
	lenientRows = viper.GetBool("lenient-rows")
	confidence = viper.GetFloat64("confidence")
	simulations = viper.GetInt("simulations")
	horizonDays = viper.GetInt("horizon")
	volatility = viper.GetFloat64("volatility")
	seed = viper.GetUint64("seed")
	outputFormat = viper.GetString("output-format")
	outputFile = viper.GetString("output-file")
	exportReconciled = viper.GetString("export-reconciled")
	exportEnriched = viper.GetString("export-enriched")

	// Validate required flags
	if ledgerAFile == "" {
		return fmt.Errorf("ledger-a is required")
	}
	if ledgerBFile == "" {
		return fmt.Errorf("ledger-b is required")
	}
	if ratesFile == "" {
		return fmt.Errorf("rates is required")
	}

	// Validate file existence
	if err := validateFileExists(ledgerAFile, "internal ledger file"); err != nil {
		return err
	}
	if err := validateFileExists(ledgerBFile, "provider ledger file"); err != nil {
		return err
	}
	if err := validateFileExists(ratesFile, "market rate file"); err != nil {
		return err
	}

	// Validate output format
	if !reporter.OutputFormat(outputFormat).IsValid() {
		return fmt.Errorf("invalid output format '%s'. Valid formats: console, json, csv", outputFormat)
	}

	// Validate tolerances and simulation parameters
	if amountTolerance < 0 {
		return fmt.Errorf("tolerance cannot be negative")
	}
	if confidence <= 0 || confidence >= 1 {
		return fmt.Errorf("confidence must be strictly between 0 and 1")
	}
	if simulations <= 0 {
		return fmt.Errorf("simulations must be positive")
	}
	if horizonDays <= 0 {
		return fmt.Errorf("horizon must be positive")
	}
	if volatility <= 0 {
		return fmt.Errorf("volatility must be positive")
	}

	// Validate output file directories exist if specified
	for _, path := range []string{outputFile, exportReconciled, exportEnriched} {
		if path == "" {
			continue
		}
		dir := filepath.Dir(path)
		if dir != "." {
			if _, err := os.Stat(dir); os.IsNotExist(err) {
				return fmt.Errorf("output directory does not exist: %s", dir)
			}
		}
	}

	return nil
}

func validateFileExists(filePath, description string) error {
	if filePath == "" {
		return fmt.Errorf("%s path cannot be empty", description)
	}

	info, err := os.Stat(filePath)
	if os.IsNotExist(err) {
		return fmt.Errorf("%s does not exist: %s", description, filePath)
	}
	if err != nil {
		return fmt.Errorf("error accessing %s: %w", description, err)
	}

	if info.IsDir() {
		return fmt.Errorf("%s is a directory, expected a file: %s", description, filePath)
	}

	// Check if file is readable
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("%s is not readable: %w", description, err)
	}
	file.Close()

	return nil
}

func runPipeline(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "Starting reconciliation and risk run...\n")
		fmt.Fprintf(os.Stderr, "Internal ledger: %s\n", ledgerAFile)
		fmt.Fprintf(os.Stderr, "Provider ledger: %s\n", ledgerBFile)
		fmt.Fprintf(os.Stderr, "Market rates: %s\n", ratesFile)
		fmt.Fprintf(os.Stderr, "Output format: %s\n", outputFormat)
		if outputFile != "" {
			fmt.Fprintf(os.Stderr, "Output file: %s\n", outputFile)
		}
	}

	pipelineConfig, err := config.CreatePipelineConfig(&config.RunOptions{
		LedgerAPath:     ledgerAFile,
		LedgerBPath:     ledgerBFile,
		RatesPath:       ratesFile,
		AmountTolerance: amountTolerance,
		BaseCurrency:    baseCurrency,
		Confidence:      confidence,
		Simulations:     simulations,
		HorizonDays:     horizonDays,
		DailyVolatility: volatility,
		Seed:            seed,
		LenientRows:     lenientRows,
	})
	if err != nil {
		return fmt.Errorf("failed to create pipeline config: %w", err)
	}

	engine, err := pipeline.NewEngine(pipelineConfig)
	if err != nil {
		return fmt.Errorf("failed to create pipeline engine: %w", err)
	}

	report, err := engine.Run(ctx)
	if err != nil {
		return err
	}

	// Generate report
	reportConfig, err := config.CreateReportConfig(outputFormat)
	if err != nil {
		return err
	}
	reportWriter, err := reporter.NewReporter(reportConfig)
	if err != nil {
		return fmt.Errorf("failed to create reporter: %w", err)
	}

	// Determine output destination
	var output *os.File
	if outputFile != "" {
		output, err = os.Create(outputFile)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer output.Close()
	} else {
		output = os.Stdout
	}

	if err := reportWriter.Write(output, report); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}

	// Record-level exports
	if exportReconciled != "" {
		if err := writeExport(exportReconciled, func(f *os.File) error {
			return reporter.WriteReconciledCSV(f, report.Reconciled)
		}); err != nil {
			return fmt.Errorf("failed to export reconciled records: %w", err)
		}
	}
	if exportEnriched != "" {
		if err := writeExport(exportEnriched, func(f *os.File) error {
			return reporter.WriteEnrichedCSV(f, report.Enriched)
		}); err != nil {
			return fmt.Errorf("failed to export enriched records: %w", err)
		}
	}

	// Show completion message
	if viper.GetBool("verbose") {
		fmt.Fprintf(os.Stderr, "\nRun completed successfully.\n")
		fmt.Fprintf(os.Stderr, "Reconciled %d records with %d discrepancies.\n",
			report.ReconSummary.TotalRecords, report.ReconSummary.DiscrepancyCount)
		fmt.Fprintf(os.Stderr, "Open exposure in %d currencies, aggregate VaR %.2f %s.\n",
			len(report.Exposures), report.VaR.AggregateVaR, baseCurrency)
		for stage, elapsed := range report.StageTimings {
			fmt.Fprintf(os.Stderr, "  %s: %v\n", stage, elapsed)
		}
	}

	return nil
}

func writeExport(path string, write func(*os.File) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return write(file)
}
