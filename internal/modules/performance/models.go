// Package performance reconstructs the daily value of a portfolio from its
// transaction ledger and resolved price history, and summarizes per-holding
// gains over the reconstructed window.
package performance

import (
	"errors"

	"github.com/jayana-cpc/wealthwise/internal/modules/marketdata"
)

// ErrNoTransactions is returned when no ledger rows could be parsed into
// transactions; without a ledger there is nothing to reconstruct.
var ErrNoTransactions = errors.New("no transactions could be parsed")

// PortfolioPoint is the portfolio's value at the end of one day, split into
// priced equity and the running cash balance.
type PortfolioPoint struct {
	Date   string  `json:"date"`
	Value  float64 `json:"value"`
	Equity float64 `json:"equity"`
	Cash   float64 `json:"cash"`
}

// PositionPoint is the share-count state at the end of one day.
type PositionPoint struct {
	Date   string             `json:"date"`
	Shares map[string]float64 `json:"shares"`
	Cash   float64            `json:"cash"`
}

// HoldingSummary compares one holding's value at the window edges.
// GainPct is nil when the start value is zero.
type HoldingSummary struct {
	Symbol       string   `json:"symbol"`
	Description  string   `json:"description"`
	Shares       float64  `json:"shares"`
	CurrentValue float64  `json:"current_value"`
	CostBasis    *float64 `json:"cost_basis"`
	GainAbs      float64  `json:"gain_abs"`
	GainPct      *float64 `json:"gain_pct"`
}

// Response is the full performance payload for one portfolio.
type Response struct {
	StartDate       string                             `json:"start_date"`
	EndDate         string                             `json:"end_date"`
	Symbols         []string                           `json:"symbols"`
	Benchmarks      []string                           `json:"benchmarks"`
	Portfolio       []PortfolioPoint                   `json:"portfolio"`
	BenchmarkSeries map[string][]marketdata.PricePoint `json:"benchmark_series"`
	PriceSeries     map[string][]marketdata.PricePoint `json:"price_series"`
	Positions       []PositionPoint                    `json:"positions"`
	Holdings        []HoldingSummary                   `json:"holdings"`
	Warnings        []string                           `json:"warnings"`
}
