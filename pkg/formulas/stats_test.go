package formulas

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPopStdDev_MatchesHandComputation(t *testing.T) {
	// Population std of {1,2,3,4} is sqrt(1.25).
	got := PopStdDev([]float64{1, 2, 3, 4})
	assert.InDelta(t, math.Sqrt(1.25), got, 1e-12)
}

func TestPopStdDev_EmptyAndSingle(t *testing.T) {
	assert.Equal(t, 0.0, PopStdDev(nil))
	assert.Equal(t, 0.0, PopStdDev([]float64{5}))
}

func TestSimpleReturns_GuardsNonPositivePrices(t *testing.T) {
	returns := SimpleReturns([]float64{100, 110, 0, 50})
	require.Len(t, returns, 3)
	assert.InDelta(t, 0.10, returns[0], 1e-12)
	assert.InDelta(t, -1.0, returns[1], 1e-12)
	// Previous price was zero, so the step contributes a zero return.
	assert.Equal(t, 0.0, returns[2])
}

func TestSimpleReturns_TooShort(t *testing.T) {
	assert.Empty(t, SimpleReturns([]float64{100}))
}

func TestSharpe_FlatSeriesIsNil(t *testing.T) {
	assert.Nil(t, Sharpe([]float64{0, 0, 0}))
	assert.Nil(t, Sharpe(nil))
}

func TestSharpe_PositiveDrift(t *testing.T) {
	s := Sharpe([]float64{0.01, 0.02, 0.01, 0.02})
	require.NotNil(t, s)
	assert.Greater(t, *s, 0.0)
}

func TestMaxDrawdown_KnownCurve(t *testing.T) {
	// Peak 120, trough 90: drawdown 25%.
	dd := MaxDrawdown([]float64{100, 120, 90, 110})
	require.NotNil(t, dd)
	assert.InDelta(t, 0.25, *dd, 1e-12)
}

func TestMaxDrawdown_MonotonicCurveIsZero(t *testing.T) {
	dd := MaxDrawdown([]float64{1, 2, 3})
	require.NotNil(t, dd)
	assert.Equal(t, 0.0, *dd)
}

func TestMaxDrawdown_EmptyIsNil(t *testing.T) {
	assert.Nil(t, MaxDrawdown(nil))
}

func TestTrackingError_IdenticalSeriesIsZero(t *testing.T) {
	returns := []float64{0.01, -0.02, 0.005}
	te := TrackingError(returns, returns)
	require.NotNil(t, te)
	assert.InDelta(t, 0.0, *te, 1e-12)
}

func TestTrackingError_NoOverlapIsNil(t *testing.T) {
	assert.Nil(t, TrackingError(nil, []float64{0.01}))
}

func TestBeta_BenchmarkItselfIsOne(t *testing.T) {
	bench := []float64{0.01, -0.02, 0.015, 0.002}
	b := Beta(bench, bench)
	require.NotNil(t, b)
	assert.InDelta(t, 1.0, *b, 1e-12)
}

func TestBeta_FlatBenchmarkIsNil(t *testing.T) {
	assert.Nil(t, Beta([]float64{0.01, 0.02}, []float64{0.01, 0.01}))
}

func TestAnnualizedVolatility_ScalesBySqrt252(t *testing.T) {
	returns := []float64{0.01, -0.01, 0.01, -0.01}
	expected := PopStdDev(returns) * math.Sqrt(252)
	assert.InDelta(t, expected, AnnualizedVolatility(returns), 1e-12)
}
