// Package ledger loads transaction ledgers and the market-rate table from
// CSV files.
//
// Loading is tolerant at the row level: malformed rows are collected as
// RowErrors with line, field and value context so an operator can correct
// them, while well-formed rows are still returned. Structural problems
// (unreadable file, missing required columns) abort the load with a fatal
// error. The caller decides whether any row errors make the run fatal.
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

// Config holds the column mapping for a transaction ledger CSV file
type Config struct {
	IDColumn       string `json:"id_column"`
	DateColumn     string `json:"date_column"`
	CurrencyColumn string `json:"currency_column"`
	AmountColumn   string `json:"amount_column"`
	StatusColumn   string `json:"status_column"`
	SourceColumn   string `json:"source_column"`

	// DefaultSource tags rows when the file carries no source column
	DefaultSource string `json:"default_source"`

	// ColumnAliases maps alternate header names to canonical column
	// names, so exports from different systems load without remapping
	// the whole config
	ColumnAliases map[string]string `json:"column_aliases,omitempty"`

	HasHeader bool `json:"has_header"`
	Delimiter rune `json:"delimiter"`
}

// DefaultConfig returns the column mapping used by the standard ledger
// export format
func DefaultConfig() *Config {
	return &Config{
		IDColumn:       "transaction_id",
		DateColumn:     "date",
		CurrencyColumn: "currency",
		AmountColumn:   "amount",
		StatusColumn:   "status",
		SourceColumn:   "source",
		ColumnAliases: map[string]string{
			"id":        "transaction_id",
			"tx_id":     "transaction_id",
			"txn_id":    "transaction_id",
			"trade_dt":  "date",
			"value_dt":  "date",
			"ccy":       "currency",
			"amt":       "amount",
			"value":     "amount",
			"state":     "status",
			"provider":  "source",
			"origin":    "source",
		},
		HasHeader: true,
		Delimiter: ',',
	}
}

// Validate validates the loader configuration
func (c *Config) Validate() error {
	if !c.HasHeader {
		return fmt.Errorf("headerless ledger files are not supported")
	}
	for name, col := range map[string]string{
		"id":       c.IDColumn,
		"date":     c.DateColumn,
		"currency": c.CurrencyColumn,
		"amount":   c.AmountColumn,
		"status":   c.StatusColumn,
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

// RowError describes a single malformed row that was skipped during
// loading
type RowError struct {
	Line  int    `json:"line"`
	Field string `json:"field"`
	Value string `json:"value"`
	Err   error  `json:"-"`
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d, field '%s' (value '%s'): %v", e.Line, e.Field, e.Value, e.Err)
}

// ParseStats summarizes a load operation
type ParseStats struct {
	RowsRead   int `json:"rows_read"`
	RowsParsed int `json:"rows_parsed"`
	RowsFailed int `json:"rows_failed"`
}

// Loader reads transaction ledgers using a configured column mapping
type Loader struct {
	config *Config
	log    logger.Logger
}

// NewLoader creates a loader with the given configuration
func NewLoader(config *Config) (*Loader, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "ledger_loader", config, err)
	}

	return &Loader{
		config: config,
		log:    logger.GetGlobalLogger().WithComponent("ledger_loader"),
	}, nil
}

// LoadTransactions reads a ledger CSV file into transaction records.
// Malformed rows are returned as RowErrors, not silently dropped.
func (l *Loader) LoadTransactions(path string) ([]*models.Transaction, *ParseStats, []*RowError, error) {
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

	columns, err := l.mapColumns(path, header)
	if err != nil {
		return nil, nil, nil, err
	}

	var transactions []*models.Transaction
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

		tx, rowErr := l.parseRow(record, columns, line)
		if rowErr != nil {
			stats.RowsFailed++
			rowErrors = append(rowErrors, rowErr)
			l.log.WithFields(logger.Fields{
				"file": path,
				"line": rowErr.Line,
			}).Debugf("skipping malformed row: %v", rowErr.Err)
			continue
		}

		stats.RowsParsed++
		transactions = append(transactions, tx)
	}

	l.log.WithFields(logger.Fields{
		"file":        path,
		"rows_read":   stats.RowsRead,
		"rows_parsed": stats.RowsParsed,
		"rows_failed": stats.RowsFailed,
	}).Info("ledger loaded")

	return transactions, stats, rowErrors, nil
}

// columnIndexes holds resolved field positions for one file
type columnIndexes struct {
	id       int
	date     int
	currency int
	amount   int
	status   int
	source   int // -1 when absent
}

func (l *Loader) mapColumns(path string, header []string) (*columnIndexes, error) {
	index := make(map[string]int, len(header))
	for i, name := range header {
		cell := strings.ToLower(strings.TrimSpace(name))
		if canonical, ok := l.config.ColumnAliases[cell]; ok {
			cell = strings.ToLower(canonical)
		}
		if _, taken := index[cell]; !taken {
			index[cell] = i
		}
	}

	lookup := func(column string) (int, bool) {
		i, ok := index[strings.ToLower(column)]
		return i, ok
	}

	cols := &columnIndexes{source: -1}
	required := []struct {
		name   string
		target *int
	}{
		{l.config.IDColumn, &cols.id},
		{l.config.DateColumn, &cols.date},
		{l.config.CurrencyColumn, &cols.currency},
		{l.config.AmountColumn, &cols.amount},
		{l.config.StatusColumn, &cols.status},
	}

	for _, req := range required {
		i, ok := lookup(req.name)
		if !ok {
			return nil, errors.ParseError(errors.CodeMissingColumn, path, 1, req.name, "", nil)
		}
		*req.target = i
	}

	if l.config.SourceColumn != "" {
		if i, ok := lookup(l.config.SourceColumn); ok {
			cols.source = i
		}
	}

	return cols, nil
}

func (l *Loader) parseRow(record []string, cols *columnIndexes, line int) (*models.Transaction, *RowError) {
	field := func(i int) string {
		if i < 0 || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	id := field(cols.id)
	if id == "" {
		return nil, &RowError{Line: line, Field: l.config.IDColumn, Err: fmt.Errorf("identifier is empty")}
	}

	date, err := models.ParseDateFromString(field(cols.date))
	if err != nil {
		return nil, &RowError{Line: line, Field: l.config.DateColumn, Value: field(cols.date), Err: err}
	}

	amount, err := models.ParseDecimalFromString(field(cols.amount))
	if err != nil {
		return nil, &RowError{Line: line, Field: l.config.AmountColumn, Value: field(cols.amount), Err: err}
	}
	// Ledger amounts carry two fraction digits; round away ingestion noise
	amount = amount.Round(2)

	source := l.config.DefaultSource
	if cols.source >= 0 {
		if s := field(cols.source); s != "" {
			source = s
		}
	}

	tx := models.NewTransaction(id, models.NormalizeDate(date), field(cols.currency), amount, field(cols.status), source)
	if err := tx.Validate(); err != nil {
		return nil, &RowError{Line: line, Field: l.config.IDColumn, Value: id, Err: err}
	}

	return tx, nil
}
