package reporter

import (
	"encoding/csv"
	"io"

	"recon-risk-engine/internal/models"
)

// Record-level CSV exports consumed by downstream systems (reporting and
// the anomaly-detection feature builder). Absent sides and unresolved
// conversions are written as empty fields, never as zeros.

var reconciledHeader = []string{
	"transaction_id", "recon_status", "amount_diff",
	"amount_a", "amount_b", "currency_a", "currency_b",
	"date_a", "date_b", "status_a", "status_b",
}

var enrichedHeader = append(append([]string{}, reconciledHeader...),
	"market_rate", "amount_eur", "pnl_impact_eur")

// WriteReconciledCSV exports the reconciled record collection
func WriteReconciledCSV(w io.Writer, records []*models.ReconciledRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(reconciledHeader); err != nil {
		return err
	}

	for _, record := range records {
		if err := writer.Write(reconciledFields(record)); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteEnrichedCSV exports the enriched record collection
func WriteEnrichedCSV(w io.Writer, records []*models.EnrichedRecord) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(enrichedHeader); err != nil {
		return err
	}

	for _, record := range records {
		fields := reconciledFields(&record.ReconciledRecord)
		fields = append(fields,
			nullDecimalField(record.MarketRate.Valid, func() string { return record.MarketRate.Decimal.String() }),
			nullDecimalField(record.AmountBase.Valid, func() string { return record.AmountBase.Decimal.StringFixed(2) }),
			nullDecimalField(record.PnLImpact.Valid, func() string { return record.PnLImpact.Decimal.StringFixed(2) }),
		)
		if err := writer.Write(fields); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func reconciledFields(record *models.ReconciledRecord) []string {
	var amountA, currencyA, dateA, statusA string
	if record.A != nil {
		amountA = record.A.Amount.StringFixed(2)
		currencyA = record.A.Currency
		dateA = record.A.Date.Format(models.DateFormat)
		statusA = record.A.Status
	}

	var amountB, currencyB, dateB, statusB string
	if record.B != nil {
		amountB = record.B.Amount.StringFixed(2)
		currencyB = record.B.Currency
		dateB = record.B.Date.Format(models.DateFormat)
		statusB = record.B.Status
	}

	return []string{
		record.ID,
		record.Status.String(),
		record.AmountDiff.StringFixed(2),
		amountA, amountB,
		currencyA, currencyB,
		dateA, dateB,
		statusA, statusB,
	}
}

func nullDecimalField(valid bool, render func() string) string {
	if !valid {
		return ""
	}
	return render()
}
