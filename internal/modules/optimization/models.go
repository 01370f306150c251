// Package optimization recommends target portfolio weights from historical
// prices, applies position and turnover constraints, derives trade
// suggestions, and backtests the recommendation against the current and
// equal-weight allocations.
package optimization

import (
	"errors"
	"fmt"
	"time"
)

// Covariance model keys.
const (
	CovSample    = "sample"
	CovShrinkage = "shrinkage"
	CovEWMA      = "ewma"
)

// Expected-return model keys.
const (
	ReturnHistoricalMean = "historical_mean"
	ReturnShrunkMean     = "shrunk_mean"
	ReturnMomentum       = "momentum"
)

// Lookback window keys.
const (
	Lookback1Y  = "1Y"
	Lookback3Y  = "3Y"
	Lookback5Y  = "5Y"
	LookbackMax = "MAX"
)

// Constraints carries the optional guardrails applied after the allocator
// runs. All percentages are fractions in the 0-1 range.
type Constraints struct {
	MaxPositionPct  *float64 `json:"max_position_pct,omitempty"`
	MinPositionPct  *float64 `json:"min_position_pct,omitempty"`
	NoShort         bool     `json:"no_short"`
	MaxTurnover     *float64 `json:"max_turnover,omitempty"`
	RebalanceBudget *float64 `json:"rebalance_budget,omitempty"`
}

// Request describes one optimization run.
type Request struct {
	Method      string       `json:"method"`
	Lookback    string       `json:"lookback"`
	Benchmark   string       `json:"benchmark"`
	CovModel    string       `json:"cov_model"`
	ReturnModel string       `json:"return_model"`
	Constraints *Constraints `json:"constraints,omitempty"`
	Universe    []string     `json:"universe,omitempty"`
}

// ApplyDefaults fills the zero-valued request fields with their defaults.
func (r *Request) ApplyDefaults() {
	if r.Method == "" {
		r.Method = "hrp"
	}
	if r.Lookback == "" {
		r.Lookback = Lookback1Y
	}
	if r.Benchmark == "" {
		r.Benchmark = "SPY"
	}
	if r.CovModel == "" {
		r.CovModel = CovShrinkage
	}
	if r.ReturnModel == "" {
		r.ReturnModel = ReturnShrunkMean
	}
}

// Method describes one allocation method for discovery endpoints.
type Method struct {
	Key             string `json:"key"`
	Goal            string `json:"goal"`
	Label           string `json:"label"`
	Description     string `json:"description"`
	Tier            string `json:"tier"`
	UsesReturnModel bool   `json:"uses_return_model"`
	UsesCovariance  bool   `json:"uses_covariance"`
}

// AvailableMethods is the allocation method registry, in presentation order.
var AvailableMethods = []Method{
	{
		Key:         "equal_weight",
		Goal:        "Simplify",
		Label:       "Equal Weight",
		Description: "Baseline: each holding carries the same weight.",
		Tier:        "A",
	},
	{
		Key:            "inverse_vol",
		Goal:           "Simplify",
		Label:          "Inverse Volatility",
		Description:    "Risk-balanced sizing proportional to 1/volatility.",
		Tier:           "A",
		UsesCovariance: true,
	},
	{
		Key:            "gmv",
		Goal:           "Lower volatility",
		Label:          "Global Minimum Variance",
		Description:    "Minimize total portfolio variance with long-only guardrails.",
		Tier:           "A",
		UsesCovariance: true,
	},
	{
		Key:            "risk_parity",
		Goal:           "Balanced risk",
		Label:          "Equal Risk Contribution",
		Description:    "Each holding contributes evenly to portfolio risk.",
		Tier:           "A",
		UsesCovariance: true,
	},
	{
		Key:            "hrp",
		Goal:           "Balanced risk",
		Label:          "Hierarchical Risk Parity",
		Description:    "Cluster-aware allocation that reduces concentration from unstable covariances.",
		Tier:           "A",
		UsesCovariance: true,
	},
	{
		Key:            "max_diversification",
		Goal:           "More diversified",
		Label:          "Maximum Diversification",
		Description:    "Maximize diversification ratio using vol + correlations only.",
		Tier:           "A",
		UsesCovariance: true,
	},
}

// MethodGoal returns the goal label for a method key, "Custom" for unknown
// keys.
func MethodGoal(key string) string {
	for _, m := range AvailableMethods {
		if m.Key == key {
			return m.Goal
		}
	}
	return "Custom"
}

// InputError marks a request that cannot produce a result: bad parameters or
// insufficient usable data. Callers should surface it as a client error.
type InputError struct {
	msg string
}

func (e *InputError) Error() string { return e.msg }

// NewInputError creates an InputError with a formatted message.
func NewInputError(format string, args ...any) *InputError {
	return &InputError{msg: fmt.Sprintf(format, args...)}
}

// IsInputError reports whether err is an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}

// TradeSuggestion is one suggested order sized from the weight delta.
type TradeSuggestion struct {
	Symbol   string  `json:"symbol"`
	Action   string  `json:"action"` // buy, sell, hold
	Shares   float64 `json:"shares"`
	Notional float64 `json:"notional"`
}

// Metrics summarizes a backtest curve. Pointer fields are nil when the
// underlying statistic is undefined for the series.
type Metrics struct {
	TotalReturn   *float64 `json:"total_return"`
	CAGR          *float64 `json:"cagr"`
	Volatility    *float64 `json:"volatility"`
	MaxDrawdown   *float64 `json:"max_drawdown"`
	Sharpe        *float64 `json:"sharpe"`
	TrackingError *float64 `json:"tracking_error,omitempty"`
}

// BacktestPoint is one dated sample of the compared growth curves.
type BacktestPoint struct {
	Date        string   `json:"date"`
	Recommended float64  `json:"recommended"`
	Current     float64  `json:"current"`
	EqualWeight float64  `json:"equal_weight"`
	Benchmark   *float64 `json:"benchmark,omitempty"`
}

// Weights groups the three compared allocations, keyed by symbol.
type Weights struct {
	Recommended map[string]float64 `json:"recommended"`
	Current     map[string]float64 `json:"current"`
	EqualWeight map[string]float64 `json:"equal_weight"`
}

// Response is the full result of one optimization run.
type Response struct {
	Method       string             `json:"method"`
	Goal         string             `json:"goal"`
	Universe     []string           `json:"universe"`
	LookbackDays int                `json:"lookback_days"`
	Benchmark    string             `json:"benchmark"`
	Weights      Weights            `json:"weights"`
	Trades       []TradeSuggestion  `json:"trades"`
	Metrics      map[string]Metrics `json:"metrics"`
	Backtest     []BacktestPoint    `json:"backtest"`
	Explain      Explain            `json:"explain"`
	Warnings     []string           `json:"warnings"`
}

// Explain records the model inputs behind a recommendation.
type Explain struct {
	CovarianceModel           string             `json:"covariance_model"`
	ReturnModel               string             `json:"return_model"`
	ExpectedReturnsAnnualized map[string]float64 `json:"expected_returns_annualized"`
	Constraints               Constraints        `json:"constraints"`
	Notes                     []string           `json:"notes"`
}

// LookbackWindow resolves a lookback key to a [start, end] date window,
// clipped so start never precedes the earliest available date. Unknown keys
// fall back to one year.
func LookbackWindow(end time.Time, lookback string, earliest *time.Time) (time.Time, time.Time) {
	days := 365
	switch lookback {
	case Lookback1Y:
		days = 365
	case Lookback3Y:
		days = 365 * 3
	case Lookback5Y:
		days = 365 * 5
	case LookbackMax:
		days = 365 * 25
	}
	start := end.AddDate(0, 0, -days)
	if earliest != nil && start.Before(*earliest) {
		start = *earliest
	}
	return start, end
}
