package fx

import (
	"sort"
	"strings"

	"recon-risk-engine/internal/models"

	"github.com/shopspring/decimal"
)

// ExposureVector maps a foreign currency code to its net open position
// expressed in the base currency. The base currency itself is never a
// key; it carries no FX risk by definition.
type ExposureVector map[string]decimal.Decimal

// Currencies returns the currency codes in sorted order
func (v ExposureVector) Currencies() []string {
	codes := make([]string, 0, len(v))
	for code := range v {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Exposures reduces enriched records to the net open position per quote
// currency, summing amount_eur over records grouped by currency.
//
// Decimal addition is exact, so the reduction is independent of record
// order. Records whose conversion is unavailable (missing rate or missing
// ledger-A side) have no base-currency amount and cannot contribute; the
// converter has already counted and surfaced them.
func Exposures(records []*models.EnrichedRecord, baseCurrency string) ExposureVector {
	base := strings.ToUpper(strings.TrimSpace(baseCurrency))
	vector := make(ExposureVector)

	for _, record := range records {
		currency := strings.ToUpper(record.Currency())
		if currency == "" || currency == base {
			continue
		}
		if !record.AmountBase.Valid {
			continue
		}

		vector[currency] = vector[currency].Add(record.AmountBase.Decimal)
	}

	return vector
}
