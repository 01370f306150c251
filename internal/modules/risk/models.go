// Package risk computes a deterministic risk snapshot of a holdings
// snapshot: concentration, scenario shocks, and when market data allows,
// volatility, drawdown, beta and average pairwise correlation.
package risk

// Analysis modes.
const (
	ModeBasic    = "basic"
	ModeEnriched = "enriched"
)

// Snapshot statuses.
const (
	StatusCompleted = "completed"
	StatusDegraded  = "degraded"
)

// Market-data statuses recorded on the snapshot.
const (
	MarketDataOK           = "ok"
	MarketDataSkipped      = "skipped"
	MarketDataInsufficient = "insufficient_data"
)

// ScenarioShocks are the uniform market moves applied to the portfolio.
var ScenarioShocks = []float64{-0.10, -0.20, -0.30}

// TopPosition is one of the largest weights in the portfolio.
type TopPosition struct {
	Symbol string  `json:"symbol"`
	Weight float64 `json:"weight"`
}

// Concentration summarizes how concentrated the portfolio is.
// HHI is the Herfindahl-Hirschman index, nil when there are no weights.
type Concentration struct {
	HHI          *float64      `json:"hhi"`
	TopPositions []TopPosition `json:"top_positions"`
}

// ShockImpact is the effect of one uniform market shock.
type ShockImpact struct {
	PortfolioChange float64            `json:"portfolio_change"`
	HoldingChanges  map[string]float64 `json:"holding_changes"`
}

// Scenarios holds the shock grid keyed by shock size (e.g. "-0.1").
type Scenarios struct {
	PortfolioValue float64                `json:"portfolio_value"`
	Shocks         map[string]ShockImpact `json:"shocks"`
}

// MarketMetrics are the history-based statistics of the enriched mode.
// Pointer fields are nil when the underlying statistic is undefined.
type MarketMetrics struct {
	LookbackDays   int      `json:"lookback_days"`
	Benchmark      string   `json:"benchmark"`
	SymbolsUsed    []string `json:"symbols_used"`
	CoverageDays   int      `json:"coverage_days"`
	Volatility     *float64 `json:"volatility"`
	MaxDrawdown    *float64 `json:"max_drawdown"`
	Beta           *float64 `json:"beta"`
	AvgCorrelation *float64 `json:"avg_correlation"`
}

// Snapshot is one completed risk analysis.
type Snapshot struct {
	ID               string             `json:"id"`
	Mode             string             `json:"mode"`
	Status           string             `json:"status"`
	PortfolioValue   float64            `json:"portfolio_value"`
	Weights          map[string]float64 `json:"weights"`
	Concentration    Concentration      `json:"concentration"`
	Scenarios        Scenarios          `json:"scenarios"`
	MarketMetrics    *MarketMetrics     `json:"market_metrics,omitempty"`
	MarketDataStatus string             `json:"market_data_status"`
	Error            string             `json:"error,omitempty"`
}
