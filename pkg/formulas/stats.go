package formulas

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// TradingDaysPerYear is the annualization base for daily return series.
const TradingDaysPerYear = 252.0

// Mean calculates the arithmetic mean of a slice of float64 values
func Mean(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	return stat.Mean(data, nil)
}

// PopStdDev calculates the population standard deviation (no Bessel
// correction). Valuation curves are complete series, not samples, so the
// performance metrics use the population estimator.
func PopStdDev(data []float64) float64 {
	if len(data) == 0 {
		return 0
	}
	mean := stat.Mean(data, nil)
	var ss float64
	for _, v := range data {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(data)))
}

// Variance calculates the unbiased sample variance of a slice of float64 values
func Variance(data []float64) float64 {
	if len(data) < 2 {
		return 0
	}
	return stat.Variance(data, nil)
}

// AnnualizedVolatility calculates annualized volatility from daily returns:
// population std dev of daily returns × sqrt(252 trading days).
func AnnualizedVolatility(dailyReturns []float64) float64 {
	if len(dailyReturns) == 0 {
		return 0
	}
	return PopStdDev(dailyReturns) * math.Sqrt(TradingDaysPerYear)
}

// SimpleReturns converts a price series to daily simple returns
// r[i] = p[i+1]/p[i] - 1, substituting 0 whenever the previous price is
// nonpositive (guards against bad data propagating NaN/Inf).
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return []float64{}
	}
	returns := make([]float64, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] > 0 {
			returns[i-1] = prices[i]/prices[i-1] - 1.0
		}
	}
	return returns
}

// Sharpe returns the annualized Sharpe ratio of a daily return series with a
// zero risk-free rate, or nil when the volatility is effectively zero (a flat
// curve has no defined Sharpe).
func Sharpe(dailyReturns []float64) *float64 {
	if len(dailyReturns) == 0 {
		return nil
	}
	sd := PopStdDev(dailyReturns)
	if sd <= 0 {
		return nil
	}
	s := Mean(dailyReturns) * TradingDaysPerYear / (sd + 1e-12)
	return &s
}

// MaxDrawdown returns the magnitude of the deepest peak-to-trough decline of a
// value curve, as a positive fraction. Nil for an empty curve.
func MaxDrawdown(curve []float64) *float64 {
	if len(curve) == 0 {
		return nil
	}
	peak := curve[0]
	maxDD := 0.0
	for _, v := range curve {
		if v > peak {
			peak = v
		}
		dd := 0.0
		if peak != 0 {
			dd = (v - peak) / peak
		}
		if dd < maxDD {
			maxDD = dd
		}
	}
	abs := math.Abs(maxDD)
	return &abs
}

// TrackingError annualizes the dispersion between two daily return series.
// Returns nil when the series do not overlap.
func TrackingError(returns, benchmark []float64) *float64 {
	n := len(returns)
	if len(benchmark) < n {
		n = len(benchmark)
	}
	if n == 0 {
		return nil
	}
	diff := make([]float64, n)
	for i := 0; i < n; i++ {
		diff[i] = returns[i] - benchmark[i]
	}
	te := PopStdDev(diff) * math.Sqrt(TradingDaysPerYear)
	return &te
}

// Correlation calculates the Pearson correlation coefficient between two datasets
func Correlation(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Correlation(x, y, nil)
}

// Covariance calculates the unbiased covariance between two datasets
func Covariance(x, y []float64) float64 {
	if len(x) == 0 || len(y) == 0 || len(x) != len(y) {
		return 0
	}
	return stat.Covariance(x, y, nil)
}

// Beta regresses a portfolio return series against a benchmark series.
// Returns nil when the benchmark variance is zero or the series are empty.
func Beta(portfolio, benchmark []float64) *float64 {
	if len(portfolio) == 0 || len(benchmark) == 0 || len(portfolio) != len(benchmark) {
		return nil
	}
	varB := 0.0
	meanB := Mean(benchmark)
	for _, v := range benchmark {
		d := v - meanB
		varB += d * d
	}
	varB /= float64(len(benchmark))
	if varB == 0 {
		return nil
	}
	meanP := Mean(portfolio)
	cov := 0.0
	for i := range portfolio {
		cov += (portfolio[i] - meanP) * (benchmark[i] - meanB)
	}
	cov /= float64(len(portfolio))
	b := cov / varB
	return &b
}
