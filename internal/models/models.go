// Package models defines the record types flowing through the
// reconciliation and FX-risk pipeline.
//
// Records are immutable once created: each pipeline stage consumes the
// output of its predecessor and produces a new, augmented record type.
// The progression is Transaction -> MatchedRecord -> ReconciledRecord ->
// EnrichedRecord, plus the MarketRate reference rows consumed by the
// currency converter.
package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DateFormat is the canonical date layout for ledger and rate rows
const DateFormat = "2006-01-02"

// MergeIndicator records which sources contributed to a matched record
type MergeIndicator string

const (
	// MergeBoth means the identifier was found in both ledgers
	MergeBoth MergeIndicator = "both"
	// MergeLeftOnly means the identifier was found only in ledger A
	MergeLeftOnly MergeIndicator = "left_only"
	// MergeRightOnly means the identifier was found only in ledger B
	MergeRightOnly MergeIndicator = "right_only"
)

// String returns the string representation of MergeIndicator
func (m MergeIndicator) String() string {
	return string(m)
}

// IsValid checks if the merge indicator is valid
func (m MergeIndicator) IsValid() bool {
	return m == MergeBoth || m == MergeLeftOnly || m == MergeRightOnly
}

// ReconStatus is the discrepancy category assigned to a matched record
type ReconStatus string

const (
	// StatusMissingInB marks transactions present only in ledger A
	StatusMissingInB ReconStatus = "MISSING_IN_B"
	// StatusMissingInA marks transactions present only in ledger B
	StatusMissingInA ReconStatus = "MISSING_IN_A"
	// StatusAmountMismatch marks amount differences above tolerance
	StatusAmountMismatch ReconStatus = "AMOUNT_MISMATCH"
	// StatusStatusMismatch marks differing lifecycle statuses
	StatusStatusMismatch ReconStatus = "STATUS_MISMATCH"
	// StatusMatch marks transactions identical within tolerance
	StatusMatch ReconStatus = "MATCH"
)

// String returns the string representation of ReconStatus
func (s ReconStatus) String() string {
	return string(s)
}

// IsValid checks if the reconciliation status is valid
func (s ReconStatus) IsValid() bool {
	switch s {
	case StatusMissingInB, StatusMissingInA, StatusAmountMismatch, StatusStatusMismatch, StatusMatch:
		return true
	default:
		return false
	}
}

// IsDiscrepancy reports whether the status represents a break that needs
// investigation (anything other than a clean match)
func (s ReconStatus) IsDiscrepancy() bool {
	return s != StatusMatch
}

// Transaction represents a single transaction record from one reporting
// source. Identifiers must be unique within a source.
type Transaction struct {
	ID       string          `json:"transaction_id" csv:"transaction_id"`
	Date     time.Time       `json:"date" csv:"date"`
	Currency string          `json:"currency" csv:"currency"`
	Amount   decimal.Decimal `json:"amount" csv:"amount"`
	Status   string          `json:"status" csv:"status"`
	Source   string          `json:"source" csv:"source"`
}

// NewTransaction creates a new Transaction instance
func NewTransaction(id string, date time.Time, currency string, amount decimal.Decimal, status, source string) *Transaction {
	return &Transaction{
		ID:       strings.TrimSpace(id),
		Date:     date,
		Currency: strings.TrimSpace(currency),
		Amount:   amount,
		Status:   strings.TrimSpace(status),
		Source:   strings.TrimSpace(source),
	}
}

// Validate performs basic validation on the Transaction
func (t *Transaction) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return fmt.Errorf("transaction identifier cannot be empty")
	}

	if t.Date.IsZero() {
		return fmt.Errorf("transaction date cannot be zero")
	}

	if strings.TrimSpace(t.Currency) == "" {
		return fmt.Errorf("transaction currency cannot be empty")
	}

	return nil
}

// String returns a string representation of the Transaction
func (t *Transaction) String() string {
	return fmt.Sprintf("Transaction{ID: %s, Date: %s, Currency: %s, Amount: %s, Status: %s}",
		t.ID, t.Date.Format(DateFormat), t.Currency, t.Amount.String(), t.Status)
}

// MatchedRecord is the outer-joined union of two transactions sharing an
// identifier. The side missing from the join is nil.
type MatchedRecord struct {
	ID        string         `json:"transaction_id"`
	A         *Transaction   `json:"a,omitempty"`
	B         *Transaction   `json:"b,omitempty"`
	Indicator MergeIndicator `json:"merge_indicator"`
}

// HasBoth reports whether both sides are present
func (m *MatchedRecord) HasBoth() bool {
	return m.Indicator == MergeBoth
}

// AmountA returns ledger A's amount, defaulting to zero when the side is
// absent. The zero default applies to diff arithmetic only; classification
// never consults it.
func (m *MatchedRecord) AmountA() decimal.Decimal {
	if m.A == nil {
		return decimal.Zero
	}
	return m.A.Amount
}

// AmountB returns ledger B's amount, defaulting to zero when the side is
// absent.
func (m *MatchedRecord) AmountB() decimal.Decimal {
	if m.B == nil {
		return decimal.Zero
	}
	return m.B.Amount
}

// ReconciledRecord augments a MatchedRecord with its discrepancy category
// and the signed amount difference (amount_A - amount_B, absent sides
// treated as zero for the subtraction only).
type ReconciledRecord struct {
	MatchedRecord
	Status     ReconStatus     `json:"recon_status"`
	AmountDiff decimal.Decimal `json:"amount_diff"`
}

// EnrichedRecord augments a ReconciledRecord with market-rate data and
// base-currency equivalents. The NullDecimal fields are invalid when no
// market rate could be resolved for the transaction's date and currency;
// a missing rate is surfaced, never coerced to zero.
type EnrichedRecord struct {
	ReconciledRecord
	MarketRate   decimal.NullDecimal `json:"market_rate"`
	AmountBase   decimal.NullDecimal `json:"amount_eur"`
	PnLImpact    decimal.NullDecimal `json:"pnl_impact_eur"`
	RateResolved bool                `json:"rate_resolved"`
}

// Currency returns the quote currency of the enriched record, taken from
// side A when present, otherwise side B.
func (e *EnrichedRecord) Currency() string {
	if e.A != nil {
		return e.A.Currency
	}
	if e.B != nil {
		return e.B.Currency
	}
	return ""
}

// MarketRate is one reference row of the market rate table: the price of
// one unit of base currency expressed in quote-currency units on a date.
type MarketRate struct {
	Date time.Time       `json:"date" csv:"date"`
	Pair string          `json:"currency_pair" csv:"currency_pair"`
	Rate decimal.Decimal `json:"market_rate" csv:"market_rate"`
}

// Validate performs basic validation on the MarketRate
func (r *MarketRate) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("market rate date cannot be zero")
	}

	if len(strings.TrimSpace(r.Pair)) != 6 {
		return fmt.Errorf("currency pair must be a six-letter code, got %q", r.Pair)
	}

	if !r.Rate.IsPositive() {
		return fmt.Errorf("market rate must be positive, got %s", r.Rate.String())
	}

	return nil
}

// PairFor builds the currency-pair key for a base and quote currency,
// e.g. base "EUR" and quote "USD" form "EURUSD".
func PairFor(base, quote string) string {
	return strings.ToUpper(strings.TrimSpace(base)) + strings.ToUpper(strings.TrimSpace(quote))
}

// Utility functions for type conversion used by the CSV loaders

// ParseDecimalFromString parses a decimal value from string with cleanup
// of common currency formatting
func ParseDecimalFromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	s = strings.ReplaceAll(s, "€", "")
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.TrimSpace(s)

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid decimal format '%s': %w", s, err)
	}

	return d, nil
}

// ParseDateFromString attempts to parse a date using the formats commonly
// seen in ledger exports
func ParseDateFromString(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("date string cannot be empty")
	}

	formats := []string{
		DateFormat,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006/01/02",
		"01/02/2006",
	}

	var lastErr error
	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}

	return time.Time{}, fmt.Errorf("unable to parse date '%s': %w", s, lastErr)
}

// NormalizeDate truncates a timestamp to its calendar day in UTC, the
// granularity at which market rates are keyed
func NormalizeDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
