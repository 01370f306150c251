package optimization

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func floatPtr(v float64) *float64 { return &v }

func TestApplyWeightLimits_MaxClamp(t *testing.T) {
	w := ApplyWeightLimits([]float64{0.8, 0.15, 0.05}, nil, floatPtr(0.5))
	assertValidWeights(t, w)
	// 0.8 was clamped to 0.5 before renormalization, so the spread narrows.
	assert.Less(t, w[0], 0.8)
	assert.Greater(t, w[1], 0.15)
}

func TestApplyWeightLimits_MinLiftsSmallPositions(t *testing.T) {
	w := ApplyWeightLimits([]float64{0.98, 0.01, 0.01}, floatPtr(0.05), nil)
	assertValidWeights(t, w)
	assert.Greater(t, w[1], 0.01)
	assert.Greater(t, w[2], 0.01)
}

func TestApplyWeightLimits_NoBoundsIsProjectionOnly(t *testing.T) {
	w := ApplyWeightLimits([]float64{0.5, 0.5}, nil, nil)
	assert.InDeltaSlice(t, []float64{0.5, 0.5}, w, 1e-12)
}

func TestEnforceTurnover_UnderCapUnchanged(t *testing.T) {
	target := []float64{0.55, 0.45}
	current := []float64{0.5, 0.5}
	got := EnforceTurnover(target, current, floatPtr(0.2))
	assert.InDeltaSlice(t, target, got, 1e-12)
}

func TestEnforceTurnover_NilCapUnchanged(t *testing.T) {
	target := []float64{1, 0}
	got := EnforceTurnover(target, []float64{0, 1}, nil)
	assert.InDeltaSlice(t, target, got, 1e-12)
}

func TestEnforceTurnover_BlendsTowardCurrent(t *testing.T) {
	// Full swap has turnover 2.0; a 5% cap keeps the result near current.
	target := []float64{1, 0}
	current := []float64{0, 1}
	got := EnforceTurnover(target, current, floatPtr(0.05))
	assertValidWeights(t, got)

	var turnover float64
	for i := range got {
		turnover += math.Abs(got[i] - current[i])
	}
	assert.LessOrEqual(t, turnover, 0.05+1e-8)
}

func TestEnforceTurnover_ConcentratedPortfolio(t *testing.T) {
	// Current is a single concentrated position; the target spreads out.
	target := []float64{0.25, 0.25, 0.25, 0.25}
	current := []float64{1, 0, 0, 0}
	got := EnforceTurnover(target, current, floatPtr(0.05))
	assertValidWeights(t, got)
	// The cap keeps the portfolio close to the concentrated start.
	assert.Greater(t, got[0], 0.9)

	var turnover float64
	for i := range got {
		turnover += math.Abs(got[i] - current[i])
	}
	assert.LessOrEqual(t, turnover, 0.05+1e-8)
}

func TestTradeSuggestions_ActionsAndSizing(t *testing.T) {
	symbols := []string{"AAPL", "MSFT", "CASHY"}
	target := map[string]float64{"AAPL": 0.5, "MSFT": 0.3, "CASHY": 0.2}
	current := map[string]float64{"AAPL": 0.2, "MSFT": 0.6, "CASHY": 0.2}
	prices := map[string]float64{"AAPL": 100, "MSFT": 200, "CASHY": 50}

	trades := TradeSuggestions(symbols, target, current, prices, 900, 100, nil)
	require.Len(t, trades, 3)

	bySymbol := map[string]TradeSuggestion{}
	for _, tr := range trades {
		bySymbol[tr.Symbol] = tr
	}
	// Total capital 1000: +0.3 of it into AAPL, -0.3 out of MSFT.
	assert.Equal(t, "buy", bySym(t, bySymbol, "AAPL").Action)
	assert.InDelta(t, 300.0, bySym(t, bySymbol, "AAPL").Notional, 1e-9)
	assert.InDelta(t, 3.0, bySym(t, bySymbol, "AAPL").Shares, 1e-9)

	assert.Equal(t, "sell", bySym(t, bySymbol, "MSFT").Action)
	assert.InDelta(t, -300.0, bySym(t, bySymbol, "MSFT").Notional, 1e-9)

	assert.Equal(t, "hold", bySym(t, bySymbol, "CASHY").Action)
}

func bySym(t *testing.T, m map[string]TradeSuggestion, sym string) TradeSuggestion {
	t.Helper()
	tr, ok := m[sym]
	require.True(t, ok, "missing trade for %s", sym)
	return tr
}

func TestTradeSuggestions_BudgetScalesBuysOnly(t *testing.T) {
	symbols := []string{"AAPL", "MSFT"}
	target := map[string]float64{"AAPL": 0.8, "MSFT": 0.2}
	current := map[string]float64{"AAPL": 0.2, "MSFT": 0.8}
	prices := map[string]float64{"AAPL": 100, "MSFT": 100}

	// Capital 1000, buy notional 600, budget 300: buys halve, sells do not.
	trades := TradeSuggestions(symbols, target, current, prices, 1000, 0, floatPtr(300))
	var buy, sell TradeSuggestion
	for _, tr := range trades {
		if tr.Symbol == "AAPL" {
			buy = tr
		} else {
			sell = tr
		}
	}
	assert.Equal(t, "buy", buy.Action)
	assert.InDelta(t, 300.0, buy.Notional, 1e-9)
	assert.Equal(t, "sell", sell.Action)
	assert.InDelta(t, -600.0, sell.Notional, 1e-9)
}

func TestTradeSuggestions_NegativeCashExcludedFromCapital(t *testing.T) {
	symbols := []string{"AAPL"}
	target := map[string]float64{"AAPL": 1.0}
	current := map[string]float64{"AAPL": 0.5}
	prices := map[string]float64{"AAPL": 100}

	trades := TradeSuggestions(symbols, target, current, prices, 1000, -200, nil)
	require.Len(t, trades, 1)
	// Capital stays 1000: margin debt does not add buying power here.
	assert.InDelta(t, 500.0, trades[0].Notional, 1e-9)
}

func TestTradeSuggestions_MissingPriceYieldsHold(t *testing.T) {
	symbols := []string{"XYZ"}
	target := map[string]float64{"XYZ": 1.0}
	current := map[string]float64{"XYZ": 0.0}
	trades := TradeSuggestions(symbols, target, current, map[string]float64{}, 1000, 0, nil)
	require.Len(t, trades, 1)
	assert.Equal(t, "hold", trades[0].Action)
	assert.Equal(t, 0.0, trades[0].Shares)
}
