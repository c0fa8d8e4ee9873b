// Package fx converts reconciled transactions into base-currency
// equivalents using a time-indexed market rate table, and reduces the
// enriched records to a net open position per foreign currency.
package fx

import (
	"time"

	"recon-risk-engine/internal/models"
	"recon-risk-engine/pkg/errors"

	"github.com/shopspring/decimal"
)

// RateTable is an immutable in-memory index of market rates keyed by
// calendar day and currency pair. It is read-only for the life of a
// pipeline run.
type RateTable struct {
	rates map[rateKey]decimal.Decimal
}

type rateKey struct {
	day  string
	pair string
}

// NewRateTable indexes market rate rows. A duplicate (date, pair)
// combination is a structural defect in the reference data and is
// rejected.
func NewRateTable(rows []*models.MarketRate) (*RateTable, error) {
	table := &RateTable{
		rates: make(map[rateKey]decimal.Decimal, len(rows)),
	}

	for _, row := range rows {
		if err := row.Validate(); err != nil {
			return nil, errors.MarketDataError(errors.CodeInvalidRate, row.Pair, err).
				WithContext("date", row.Date.Format(models.DateFormat))
		}

		key := rateKey{
			day:  models.NormalizeDate(row.Date).Format(models.DateFormat),
			pair: row.Pair,
		}
		if _, exists := table.rates[key]; exists {
			return nil, errors.MarketDataError(errors.CodeDuplicateRate, row.Pair, nil).
				WithContext("date", key.day)
		}
		table.rates[key] = row.Rate
	}

	return table, nil
}

// Lookup returns the market rate for a date and currency pair, and
// whether one exists
func (t *RateTable) Lookup(date time.Time, pair string) (decimal.Decimal, bool) {
	rate, ok := t.rates[rateKey{
		day:  models.NormalizeDate(date).Format(models.DateFormat),
		pair: pair,
	}]
	return rate, ok
}

// Len returns the number of indexed rates
func (t *RateTable) Len() int {
	return len(t.rates)
}
