package recon

import (
	"fmt"
	"strings"

	"recon-risk-engine/internal/models"
	"recon-risk-engine/pkg/errors"
	"recon-risk-engine/pkg/logger"

	"github.com/shopspring/decimal"
)

// ClassifierConfig holds the tunable parameters of discrepancy
// classification
type ClassifierConfig struct {
	// AmountTolerance is the maximum absolute amount difference still
	// considered a match. A difference strictly greater than the
	// tolerance is an AMOUNT_MISMATCH.
	AmountTolerance decimal.Decimal `json:"amount_tolerance"`
}

// DefaultClassifierConfig returns the default classification parameters
func DefaultClassifierConfig() *ClassifierConfig {
	return &ClassifierConfig{
		AmountTolerance: decimal.NewFromFloat(0.01),
	}
}

// Validate validates the classifier configuration
func (c *ClassifierConfig) Validate() error {
	if c.AmountTolerance.IsNegative() {
		return fmt.Errorf("amount tolerance cannot be negative, got %s", c.AmountTolerance)
	}
	return nil
}

// Classify assigns exactly one reconciliation status to a matched record.
//
// The rules form an ordered decision list evaluated top to bottom, and
// the ordering is part of the contract: presence mismatches dominate
// amount mismatches, which dominate status mismatches. The amount
// comparison only runs on records present in both ledgers, so it never
// needs to re-check presence.
func Classify(record *models.MatchedRecord, tolerance decimal.Decimal) models.ReconStatus {
	switch record.Indicator {
	case models.MergeLeftOnly:
		return models.StatusMissingInB
	case models.MergeRightOnly:
		return models.StatusMissingInA
	}

	if record.A.Amount.Sub(record.B.Amount).Abs().GreaterThan(tolerance) {
		return models.StatusAmountMismatch
	}

	if strings.TrimSpace(record.A.Status) != strings.TrimSpace(record.B.Status) {
		return models.StatusStatusMismatch
	}

	return models.StatusMatch
}

// Summary aggregates the outcome of a reconciliation run
type Summary struct {
	TotalRecords     int                        `json:"total_records"`
	CountByStatus    map[models.ReconStatus]int `json:"count_by_status"`
	TotalAbsDiff     decimal.Decimal            `json:"total_abs_diff"`
	DiscrepancyCount int                        `json:"discrepancy_count"`
}

// Reconciler classifies matched records and computes signed amount
// differences
type Reconciler struct {
	config *ClassifierConfig
	log    logger.Logger
}

// NewReconciler creates a reconciler with the given configuration
func NewReconciler(config *ClassifierConfig) (*Reconciler, error) {
	if config == nil {
		config = DefaultClassifierConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "classifier", config, err)
	}

	return &Reconciler{
		config: config,
		log:    logger.GetGlobalLogger().WithComponent("classifier"),
	}, nil
}

// Reconcile classifies every matched record. Classification is a pure
// per-row function: no row's status depends on any other row.
//
// The amount diff is computed with absent sides defaulted to zero. That
// default applies to the diff only; classification relies on rule order,
// not on the zero default, so a genuinely zero amount and an absent
// amount produce the same diff by construction.
func (r *Reconciler) Reconcile(matched []*models.MatchedRecord) ([]*models.ReconciledRecord, *Summary) {
	reconciled := make([]*models.ReconciledRecord, 0, len(matched))
	summary := &Summary{
		TotalRecords:  len(matched),
		CountByStatus: make(map[models.ReconStatus]int),
		TotalAbsDiff:  decimal.Zero,
	}

	for _, record := range matched {
		status := Classify(record, r.config.AmountTolerance)
		diff := record.AmountA().Sub(record.AmountB())

		reconciled = append(reconciled, &models.ReconciledRecord{
			MatchedRecord: *record,
			Status:        status,
			AmountDiff:    diff,
		})

		summary.CountByStatus[status]++
		if status.IsDiscrepancy() {
			summary.DiscrepancyCount++
			summary.TotalAbsDiff = summary.TotalAbsDiff.Add(diff.Abs())
		}
	}

	r.log.WithFields(logger.Fields{
		"records":       summary.TotalRecords,
		"discrepancies": summary.DiscrepancyCount,
	}).Info("classification complete")

	return reconciled, summary
}
