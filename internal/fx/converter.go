package fx

import (
	"fmt"
	"strings"

	"recon-risk-engine/internal/models"
	"recon-risk-engine/pkg/errors"
	"recon-risk-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// ConverterConfig holds the currency conversion parameters
type ConverterConfig struct {
	// BaseCurrency is the currency all monetary values are normalized
	// to. Transactions already in the base currency bypass the rate
	// lookup entirely (rate defined as 1).
	BaseCurrency string `json:"base_currency"`
}

// DefaultConverterConfig returns the default conversion parameters
func DefaultConverterConfig() *ConverterConfig {
	return &ConverterConfig{
		BaseCurrency: "EUR",
	}
}

// Validate validates the converter configuration
func (c *ConverterConfig) Validate() error {
	if len(strings.TrimSpace(c.BaseCurrency)) != 3 {
		return fmt.Errorf("base currency must be a three-letter code, got %q", c.BaseCurrency)
	}
	return nil
}

// ConversionStats summarizes a conversion pass
type ConversionStats struct {
	TotalRecords int `json:"total_records"`
	Converted    int `json:"converted"`
	BaseBypassed int `json:"base_bypassed"`
	MissingRates int `json:"missing_rates"`
	MissingSideA int `json:"missing_side_a"`
}

// Converter derives base-currency equivalents for reconciled records
type Converter struct {
	config *ConverterConfig
	rates  *RateTable
	log    logger.Logger
}

// NewConverter creates a converter over the given rate table
func NewConverter(config *ConverterConfig, rates *RateTable) (*Converter, error) {
	if config == nil {
		config = DefaultConverterConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "converter", config, err)
	}
	if rates == nil {
		return nil, errors.ConfigurationError(errors.CodeMissingConfig, "rate_table", nil, nil)
	}

	return &Converter{
		config: config,
		rates:  rates,
		log:    logger.GetGlobalLogger().WithComponent("converter"),
	}, nil
}

// Convert enriches every reconciled record with its market rate and
// base-currency equivalents.
//
// Rates are quoted as "1 unit of base currency equals rate units of quote
// currency", so conversion is division. A missing rate for a non-base
// currency is a data-quality signal: the converted values stay explicitly
// null and the record is kept, never dropped or zeroed. Records with no
// ledger-A side have no reporting currency or amount to convert, so they
// stay null as well.
func (c *Converter) Convert(records []*models.ReconciledRecord) ([]*models.EnrichedRecord, *ConversionStats) {
	base := strings.ToUpper(strings.TrimSpace(c.config.BaseCurrency))
	enriched := make([]*models.EnrichedRecord, 0, len(records))
	stats := &ConversionStats{TotalRecords: len(records)}

	for _, record := range records {
		row := &models.EnrichedRecord{ReconciledRecord: *record}

		switch {
		case record.A == nil:
			stats.MissingSideA++

		case strings.ToUpper(record.A.Currency) == base:
			// Rate for base-to-base is 1 by definition; no lookup, so a
			// missing base-base rate row is not an error
			row.MarketRate = decimal.NewNullDecimal(decimal.NewFromInt(1))
			row.AmountBase = decimal.NewNullDecimal(record.A.Amount)
			row.PnLImpact = decimal.NewNullDecimal(record.AmountDiff)
			row.RateResolved = true
			stats.BaseBypassed++

		default:
			pair := models.PairFor(base, record.A.Currency)
			rate, ok := c.rates.Lookup(record.A.Date, pair)
			if !ok {
				stats.MissingRates++
				c.log.WithFields(logger.Fields{
					"transaction_id": record.ID,
					"currency_pair":  pair,
					"date":           record.A.Date.Format(models.DateFormat),
				}).Warn("no market rate for transaction date, conversion unavailable")
				break
			}

			row.MarketRate = decimal.NewNullDecimal(rate)
			row.AmountBase = decimal.NewNullDecimal(record.A.Amount.Div(rate))
			row.PnLImpact = decimal.NewNullDecimal(record.AmountDiff.Div(rate))
			row.RateResolved = true
			stats.Converted++
		}

		enriched = append(enriched, row)
	}

	c.log.WithFields(logger.Fields{
		"records":       stats.TotalRecords,
		"converted":     stats.Converted,
		"base_bypassed": stats.BaseBypassed,
		"missing_rates": stats.MissingRates,
	}).Info("currency conversion complete")

	return enriched, stats
}
