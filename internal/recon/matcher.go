// Package recon implements the reconciliation core: the structural full
// outer join of two transaction ledgers and the ordered discrepancy
// classification of every joined row.
package recon

import (
	"sort"

	"recon-risk-engine/internal/models"
	"recon-risk-engine/pkg/errors"
	"recon-risk-engine/pkg/logger"
)

// Matcher performs the full outer join of two ledgers on the transaction
// identifier. The matcher is purely structural; it never compares amounts
// or statuses.
type Matcher struct {
	log logger.Logger
}

// NewMatcher creates a new ledger matcher
func NewMatcher() *Matcher {
	return &Matcher{
		log: logger.GetGlobalLogger().WithComponent("matcher"),
	}
}

// Match joins ledgers A and B on transaction identifier.
//
// Every identifier present in either ledger appears in exactly one record
// of the result. Output order is deterministic: ledger A's rows in their
// input order, followed by B-only rows in B's input order. Duplicate
// identifiers within a single ledger violate the matcher's precondition
// and are rejected with a reconciliation error naming the offenders.
func (m *Matcher) Match(ledgerA, ledgerB []*models.Transaction) ([]*models.MatchedRecord, error) {
	indexA, err := buildIndex(ledgerA, "A")
	if err != nil {
		return nil, err
	}
	indexB, err := buildIndex(ledgerB, "B")
	if err != nil {
		return nil, err
	}

	records := make([]*models.MatchedRecord, 0, len(ledgerA)+len(ledgerB))

	for _, txA := range ledgerA {
		record := &models.MatchedRecord{ID: txA.ID, A: txA}
		if txB, ok := indexB[txA.ID]; ok {
			record.B = txB
			record.Indicator = models.MergeBoth
		} else {
			record.Indicator = models.MergeLeftOnly
		}
		records = append(records, record)
	}

	for _, txB := range ledgerB {
		if _, ok := indexA[txB.ID]; ok {
			continue // already emitted with side A
		}
		records = append(records, &models.MatchedRecord{
			ID:        txB.ID,
			B:         txB,
			Indicator: models.MergeRightOnly,
		})
	}

	m.log.WithFields(logger.Fields{
		"ledger_a": len(ledgerA),
		"ledger_b": len(ledgerB),
		"joined":   len(records),
	}).Info("ledgers joined")

	return records, nil
}

// buildIndex keys transactions by identifier and rejects duplicates
// within the source.
func buildIndex(transactions []*models.Transaction, source string) (map[string]*models.Transaction, error) {
	index := make(map[string]*models.Transaction, len(transactions))
	duplicates := make(map[string]struct{})

	for _, tx := range transactions {
		if _, seen := index[tx.ID]; seen {
			duplicates[tx.ID] = struct{}{}
			continue
		}
		index[tx.ID] = tx
	}

	if len(duplicates) > 0 {
		ids := make([]string, 0, len(duplicates))
		for id := range duplicates {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		return nil, errors.ReconciliationError(errors.CodeDuplicateIdentifier, "ledger matching", nil).
			WithContext("source", source).
			WithContext("identifiers", ids)
	}

	return index, nil
}
