// Package datagen produces synthetic ledger and market-rate datasets for
// demos and load testing. Ledger A is the clean internal view; ledger B is
// a clone of A with operational errors injected at configurable rates so a
// reconciliation run over the pair has a known discrepancy profile.
package datagen

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"sort"
	"time"

	"recon-risk-engine/internal/models"
	"recon-risk-engine/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"
)

// Config controls dataset shape and error injection rates
type Config struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`

	// Transactions is the number of generation attempts for ledger A.
	// Base-currency draws are skipped, so the output carries fewer rows.
	Transactions int `json:"transactions"`

	Currencies   []string `json:"currencies"`
	BaseCurrency string   `json:"base_currency"`

	// BaseRates maps a currency pair to its starting quote. The daily
	// series is a driftless random walk around it.
	BaseRates      map[string]float64 `json:"base_rates"`
	RateVolatility float64            `json:"rate_volatility"`

	// Error injection fractions for ledger B
	DropFraction   float64 `json:"drop_fraction"`
	AmountFraction float64 `json:"amount_fraction"`
	StatusFraction float64 `json:"status_fraction"`

	Seed uint64 `json:"seed"`
}

// DefaultConfig returns the standard demo dataset configuration
func DefaultConfig() *Config {
	return &Config{
		StartDate:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		EndDate:      time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		Transactions: 5000,
		Currencies:   []string{"EUR", "USD", "GBP", "CHF"},
		BaseCurrency: "EUR",
		BaseRates: map[string]float64{
			"EURUSD": 1.08,
			"EURGBP": 0.85,
			"EURCHF": 0.95,
		},
		RateVolatility: 0.002,
		DropFraction:   0.02,
		AmountFraction: 0.01,
		StatusFraction: 0.03,
		Seed:           42,
	}
}

// Validate validates the generation configuration
func (c *Config) Validate() error {
	if c.Transactions <= 0 {
		return fmt.Errorf("transactions must be positive, got %d", c.Transactions)
	}
	if c.EndDate.Before(c.StartDate) {
		return fmt.Errorf("end date %s precedes start date %s",
			c.EndDate.Format(models.DateFormat), c.StartDate.Format(models.DateFormat))
	}
	if len(c.Currencies) == 0 {
		return fmt.Errorf("at least one currency is required")
	}
	if c.RateVolatility <= 0 {
		return fmt.Errorf("rate volatility must be positive, got %f", c.RateVolatility)
	}
	for _, fraction := range []struct {
		name  string
		value float64
	}{
		{"drop", c.DropFraction},
		{"amount", c.AmountFraction},
		{"status", c.StatusFraction},
	} {
		if fraction.value < 0 || fraction.value > 1 {
			return fmt.Errorf("%s fraction must be in [0, 1], got %f", fraction.name, fraction.value)
		}
	}
	return nil
}

const (
	sourceInternal = "Internal_System"
	sourceProvider = "Bank_Provider_B"

	statusCompleted = "COMPLETED"
	statusPending   = "PENDING"
)

// Generator produces seeded, reproducible datasets
type Generator struct {
	config *Config
	rng    *rand.Rand
}

// NewGenerator creates a generator seeded from the configuration
func NewGenerator(config *Config) (*Generator, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, errors.ConfigurationError(errors.CodeInvalidConfig, "datagen", config, err)
	}

	return &Generator{
		config: config,
		rng:    rand.New(rand.NewSource(config.Seed)),
	}, nil
}

func (g *Generator) days() []time.Time {
	var days []time.Time
	for d := g.config.StartDate; !d.After(g.config.EndDate); d = d.AddDate(0, 0, 1) {
		days = append(days, models.NormalizeDate(d))
	}
	return days
}

// MarketRates generates a daily quote series for every configured pair.
// Each series is a driftless geometric random walk from the pair's base
// rate, quoted to four decimal places.
func (g *Generator) MarketRates() []*models.MarketRate {
	days := g.days()

	pairs := make([]string, 0, len(g.config.BaseRates))
	for pair := range g.config.BaseRates {
		pairs = append(pairs, pair)
	}
	sort.Strings(pairs)

	normal := distuv.Normal{Mu: 0, Sigma: g.config.RateVolatility, Src: g.rng}

	var rates []*models.MarketRate
	for _, pair := range pairs {
		logPrice := math.Log(g.config.BaseRates[pair])
		for _, day := range days {
			logPrice += normal.Rand()
			rates = append(rates, &models.MarketRate{
				Date: day,
				Pair: pair,
				Rate: decimal.NewFromFloat(math.Exp(logPrice)).Round(4),
			})
		}
	}
	return rates
}

// LedgerA generates the clean internal ledger. Base-currency draws are
// skipped to keep the dataset focused on cross-currency flows, matching
// how the exposure stages treat the base.
func (g *Generator) LedgerA() []*models.Transaction {
	days := g.days()

	var transactions []*models.Transaction
	for i := 0; i < g.config.Transactions; i++ {
		day := days[g.rng.Intn(len(days))]
		currency := g.config.Currencies[g.rng.Intn(len(g.config.Currencies))]
		if currency == g.config.BaseCurrency {
			continue
		}

		amount := decimal.NewFromFloat(100 + g.rng.Float64()*9900).Round(2)
		id := uuid.Must(uuid.NewRandomFromReader(g.rng)).String()

		transactions = append(transactions,
			models.NewTransaction(id, day, currency, amount, statusCompleted, sourceInternal))
	}
	return transactions
}

// LedgerB clones ledger A and injects three error classes: dropped rows,
// shaved amounts, and flipped statuses. The fractions are applied in that
// order, each over the surviving rows.
func (g *Generator) LedgerB(ledgerA []*models.Transaction) []*models.Transaction {
	survivors := make([]*models.Transaction, 0, len(ledgerA))
	for _, tx := range ledgerA {
		clone := *tx
		clone.Source = sourceProvider
		survivors = append(survivors, &clone)
	}

	dropCount := int(float64(len(survivors)) * g.config.DropFraction)
	for _, i := range g.rng.Perm(len(survivors))[:dropCount] {
		survivors[i] = nil
	}
	kept := survivors[:0]
	for _, tx := range survivors {
		if tx != nil {
			kept = append(kept, tx)
		}
	}

	// Hidden fees: shave the amount by 0.5% to 2%
	amountCount := int(float64(len(kept)) * g.config.AmountFraction)
	for _, i := range g.rng.Perm(len(kept))[:amountCount] {
		factor := decimal.NewFromFloat(0.98 + g.rng.Float64()*0.015)
		kept[i].Amount = kept[i].Amount.Mul(factor).Round(2)
	}

	statusCount := int(float64(len(kept)) * g.config.StatusFraction)
	for _, i := range g.rng.Perm(len(kept))[:statusCount] {
		kept[i].Status = statusPending
	}

	return kept
}

// WriteTransactionsCSV writes transactions in the ledger ingestion layout
func WriteTransactionsCSV(w io.Writer, transactions []*models.Transaction) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"transaction_id", "date", "currency", "amount", "status", "source"}); err != nil {
		return err
	}
	for _, tx := range transactions {
		record := []string{
			tx.ID,
			tx.Date.Format(models.DateFormat),
			tx.Currency,
			tx.Amount.StringFixed(2),
			tx.Status,
			tx.Source,
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// WriteRatesCSV writes market rates in the rate ingestion layout
func WriteRatesCSV(w io.Writer, rates []*models.MarketRate) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"date", "currency_pair", "market_rate"}); err != nil {
		return err
	}
	for _, rate := range rates {
		record := []string{
			rate.Date.Format(models.DateFormat),
			rate.Pair,
			rate.Rate.String(),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
