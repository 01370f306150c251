package optimization

import (
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/jayana-cpc/wealthwise/internal/modules/marketdata"
	"github.com/jayana-cpc/wealthwise/pkg/formulas"
)

// ComputeMetrics summarizes a growth curve. CAGR is only reported for
// windows longer than about a year; Sharpe is nil for flat curves. When a
// benchmark curve of equal length is given, tracking error is included.
func ComputeMetrics(curve []float64, dates []time.Time, benchmarkCurve []float64) Metrics {
	if len(curve) == 0 {
		return Metrics{}
	}
	start := curve[0]
	end := curve[len(curve)-1]

	var m Metrics
	if start > 0 {
		tr := end/start - 1
		m.TotalReturn = &tr
	}
	days := 1
	if len(dates) > 0 {
		if d := int(dates[len(dates)-1].Sub(dates[0]).Hours() / 24); d > days {
			days = d
		}
	}
	if start > 0 && days > 250 {
		cagr := math.Pow(end/start, 365.0/float64(days)) - 1
		m.CAGR = &cagr
	}

	returns := formulas.SimpleReturns(curve)
	if len(returns) > 0 {
		vol := formulas.AnnualizedVolatility(returns)
		m.Volatility = &vol
	}
	m.Sharpe = formulas.Sharpe(returns)
	m.MaxDrawdown = formulas.MaxDrawdown(curve)

	if benchmarkCurve != nil && len(benchmarkCurve) == len(curve) {
		benchReturns := formulas.SimpleReturns(benchmarkCurve)
		m.TrackingError = formulas.TrackingError(returns, benchReturns)
	}
	return m
}

// BacktestCurves replays the aligned price matrix under each fixed-weight
// allocation, producing growth curves normalized to 1.0 at the window start
// plus per-curve metrics. The benchmark overlay is included only when its
// series covers every aligned date.
func BacktestCurves(dates []time.Time, prices *mat.Dense, recommended, current, equalWeight []float64, benchmarkSeries []marketdata.PricePoint) ([]BacktestPoint, map[string]Metrics) {
	returns := ReturnsMatrix(prices)
	metrics := make(map[string]Metrics)

	curves := map[string][]float64{
		"recommended":  growthCurve(returns, recommended),
		"current":      growthCurve(returns, current),
		"equal_weight": growthCurve(returns, equalWeight),
	}

	var benchCurve []float64
	if len(benchmarkSeries) > 0 {
		benchMap := make(map[time.Time]float64, len(benchmarkSeries))
		for _, p := range benchmarkSeries {
			benchMap[marketdata.Day(p.Date)] = p.Value
		}
		covered := true
		benchPrices := make([]float64, len(dates))
		for i, d := range dates {
			v, ok := benchMap[marketdata.Day(d)]
			if !ok {
				covered = false
				break
			}
			benchPrices[i] = v
		}
		if covered {
			benchReturns := formulas.SimpleReturns(benchPrices)
			benchCurve = compound(benchReturns)
			metrics["benchmark"] = ComputeMetrics(benchCurve, dates, nil)
		}
	}

	series := make([]BacktestPoint, len(dates))
	for i, d := range dates {
		point := BacktestPoint{
			Date:        d.Format("2006-01-02"),
			Recommended: curves["recommended"][i],
			Current:     curves["current"][i],
			EqualWeight: curves["equal_weight"][i],
		}
		if benchCurve != nil {
			point.Benchmark = &benchCurve[i]
		}
		series[i] = point
	}

	for name, curve := range curves {
		metrics[name] = ComputeMetrics(curve, dates, benchCurve)
	}
	return series, metrics
}

// growthCurve compounds the weighted per-period returns into a value curve
// starting at 1.0; the curve has one more point than the returns matrix has
// rows.
func growthCurve(returns *mat.Dense, weights []float64) []float64 {
	t, n := returns.Dims()
	portReturns := make([]float64, t)
	for i := 0; i < t; i++ {
		var r float64
		for j := 0; j < n; j++ {
			r += returns.At(i, j) * weights[j]
		}
		portReturns[i] = r
	}
	return compound(portReturns)
}

func compound(returns []float64) []float64 {
	values := make([]float64, 0, len(returns)+1)
	values = append(values, 1.0)
	for _, r := range returns {
		values = append(values, values[len(values)-1]*(1.0+r))
	}
	return values
}
