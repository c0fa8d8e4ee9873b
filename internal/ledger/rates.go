package ledger

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"recon-risk-engine/internal/models"
	"recon-risk-engine/pkg/errors"
	"recon-risk-engine/pkg/logger"
)

// RateConfig holds the column mapping for the market-rate CSV file
type RateConfig struct {
	DateColumn string `json:"date_column"`
	PairColumn string `json:"pair_column"`
	RateColumn string `json:"rate_column"`
	Delimiter  rune   `json:"delimiter"`
}

// DefaultRateConfig returns the column mapping used by the standard
// market-rate export format
func DefaultRateConfig() *RateConfig {
	return &RateConfig{
		DateColumn: "date",
		PairColumn: "currency_pair",
		RateColumn: "market_rate",
		Delimiter:  ',',
	}
}

// Validate validates the rate loader configuration
func (c *RateConfig) Validate() error {
	for name, col := range map[string]string{
		"date": c.DateColumn,
		"pair": c.PairColumn,
		"rate": c.RateColumn,
	} {
		if strings.TrimSpace(col) == "" {
			return fmt.Errorf("%s column name cannot be empty", name)
		}
	}
	if c.Delimiter == 0 {
		return fmt.Errorf("delimiter cannot be zero")
	}
	return nil
}

// RateLoader reads market-rate tables
type RateLoader struct {
	config *RateConfig
	log    logger.Logger
}

// NewRateLoader creates a rate loader with the given configuration
func NewRateLoader(config *RateConfig) (*RateLoader, error) {
	if config == nil {
		config = DefaultRateConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "rate_loader", config, err)
	}

	return &RateLoader{
		config: config,
		log:    logger.GetGlobalLogger().WithComponent("rate_loader"),
	}, nil
}

// LoadRates reads the market-rate CSV file. As with ledgers, malformed
// rows are collected rather than silently dropped.
func (l *RateLoader) LoadRates(path string) ([]*models.MarketRate, *ParseStats, []*RowError, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, nil, errors.FileError(errors.CodeFileNotFound, path, err)
		}
		return nil, nil, nil, errors.FileError(errors.CodeFilePermission, path, err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.Comma = l.config.Delimiter
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, nil, errors.ParseError(errors.CodeInvalidFormat, path, 1, "", "", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.ToLower(strings.TrimSpace(name))] = i
	}

	dateIdx, ok := index[strings.ToLower(l.config.DateColumn)]
	if !ok {
		return nil, nil, nil, errors.ParseError(errors.CodeMissingColumn, path, 1, l.config.DateColumn, "", nil)
	}
	pairIdx, ok := index[strings.ToLower(l.config.PairColumn)]
	if !ok {
		return nil, nil, nil, errors.ParseError(errors.CodeMissingColumn, path, 1, l.config.PairColumn, "", nil)
	}
	rateIdx, ok := index[strings.ToLower(l.config.RateColumn)]
	if !ok {
		return nil, nil, nil, errors.ParseError(errors.CodeMissingColumn, path, 1, l.config.RateColumn, "", nil)
	}

	var rates []*models.MarketRate
	var rowErrors []*RowError
	stats := &ParseStats{}

	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			stats.RowsRead++
			stats.RowsFailed++
			rowErrors = append(rowErrors, &RowError{Line: line, Err: err})
			continue
		}
		stats.RowsRead++

		field := func(i int) string {
			if i >= len(record) {
				return ""
			}
			return strings.TrimSpace(record[i])
		}

		date, err := models.ParseDateFromString(field(dateIdx))
		if err != nil {
			stats.RowsFailed++
			rowErrors = append(rowErrors, &RowError{Line: line, Field: l.config.DateColumn, Value: field(dateIdx), Err: err})
			continue
		}

		rate, err := models.ParseDecimalFromString(field(rateIdx))
		if err != nil {
			stats.RowsFailed++
			rowErrors = append(rowErrors, &RowError{Line: line, Field: l.config.RateColumn, Value: field(rateIdx), Err: err})
			continue
		}

		row := &models.MarketRate{
			Date: models.NormalizeDate(date),
			Pair: strings.ToUpper(field(pairIdx)),
			Rate: rate,
		}
		if err := row.Validate(); err != nil {
			stats.RowsFailed++
			rowErrors = append(rowErrors, &RowError{Line: line, Field: l.config.PairColumn, Value: row.Pair, Err: err})
			continue
		}

		stats.RowsParsed++
		rates = append(rates, row)
	}

	l.log.WithFields(logger.Fields{
		"file":        path,
		"rows_read":   stats.RowsRead,
		"rows_parsed": stats.RowsParsed,
		"rows_failed": stats.RowsFailed,
	}).Info("market rates loaded")

	return rates, stats, rowErrors, nil
}
