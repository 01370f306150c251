package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/jayana-cpc/wealthwise/pkg/formulas"
)

const ewmaDecay = 0.94

// ReturnsMatrix computes simple daily returns column-wise from a t x n price
// matrix, yielding a (t-1) x n matrix. A non-positive previous price yields
// a zero return for that step. With fewer than two rows the result is an
// empty matrix with zero dimensions.
func ReturnsMatrix(prices *mat.Dense) *mat.Dense {
	t, n := prices.Dims()
	if t < 2 {
		return &mat.Dense{}
	}
	returns := mat.NewDense(t-1, n, nil)
	for j := 0; j < n; j++ {
		for i := 1; i < t; i++ {
			prev := prices.At(i-1, j)
			if prev > 0 {
				returns.Set(i-1, j, prices.At(i, j)/prev-1.0)
			}
		}
	}
	return returns
}

// SampleCov is the unbiased sample covariance of a t x n returns matrix.
// With fewer than two observations it degrades to the identity.
func SampleCov(returns *mat.Dense) *mat.Dense {
	t, n := returns.Dims()
	if t < 2 {
		return identity(n)
	}
	return covariance(returns, false)
}

// ShrinkageCov is a lightweight Ledoit-Wolf style estimator shrinking the
// biased sample covariance toward an identity prior scaled by the average
// variance. With fewer than two observations it degrades to the identity.
func ShrinkageCov(returns *mat.Dense) *mat.Dense {
	t, n := returns.Dims()
	if t < 2 {
		return identity(n)
	}
	x := demean(returns)
	sample := covariance(returns, true)

	var trace float64
	for i := 0; i < n; i++ {
		trace += sample.At(i, i)
	}
	mu := trace / float64(n)

	// phi estimates the variance of the sample covariance entries:
	// (X^2)'(X^2)/t - 2 (X'X) o sample / t + sample^2, summed.
	tf := float64(t)
	var phi float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			var sqCross, cross float64
			for k := 0; k < t; k++ {
				xi := x.At(k, i)
				xj := x.At(k, j)
				sqCross += xi * xi * xj * xj
				cross += xi * xj
			}
			s := sample.At(i, j)
			phi += sqCross/tf - 2*cross*s/tf + s*s
		}
	}

	var gamma float64
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			d := sample.At(i, j)
			if i == j {
				d -= mu
			}
			gamma += d * d
		}
	}

	kappa := 0.0
	if gamma > 0 {
		kappa = phi / gamma
	}
	shrink := math.Max(0, math.Min(1, kappa/tf))

	out := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			prior := 0.0
			if i == j {
				prior = mu
			}
			out.Set(i, j, shrink*prior+(1-shrink)*sample.At(i, j))
		}
	}
	return out
}

// EWMACov is an exponentially weighted covariance of demeaned returns with
// the RiskMetrics decay factor, weights normalized so they sum to one. With
// fewer than two observations it degrades to the identity.
func EWMACov(returns *mat.Dense) *mat.Dense {
	t, n := returns.Dims()
	if t < 2 {
		return identity(n)
	}
	weights := make([]float64, t)
	var sum float64
	for i := 0; i < t; i++ {
		// Oldest observation carries the largest exponent.
		weights[i] = (1 - ewmaDecay) * math.Pow(ewmaDecay, float64(t-1-i))
		sum += weights[i]
	}
	for i := range weights {
		weights[i] /= sum
	}

	x := demean(returns)
	cov := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var v float64
			for k := 0; k < t; k++ {
				v += weights[k] * x.At(k, i) * x.At(k, j)
			}
			cov.Set(i, j, v)
			cov.Set(j, i, v)
		}
	}
	return cov
}

// CovarianceFor dispatches the covariance model key. Unknown keys use the
// shrinkage estimator, matching the request default.
func CovarianceFor(model string, returns *mat.Dense) *mat.Dense {
	switch model {
	case CovSample:
		return SampleCov(returns)
	case CovEWMA:
		return EWMACov(returns)
	default:
		return ShrinkageCov(returns)
	}
}

// ExpectedReturns computes annualized expected returns per asset under the
// given model. Momentum with 21 or fewer usable days falls back to the
// historical mean.
func ExpectedReturns(prices, returns *mat.Dense, model string) []float64 {
	_, n := prices.Dims()
	t, _ := returns.Dims()
	out := make([]float64, n)
	if t == 0 {
		return out
	}

	dailyMean := make([]float64, n)
	for j := 0; j < n; j++ {
		dailyMean[j] = formulas.Mean(mat.Col(nil, j, returns))
	}

	switch model {
	case ReturnHistoricalMean:
		for j := range out {
			out[j] = dailyMean[j] * formulas.TradingDaysPerYear
		}
		return out
	case ReturnShrunkMean:
		for j := range out {
			out[j] = dailyMean[j] * formulas.TradingDaysPerYear * 0.5
		}
		return out
	}

	// Momentum: 12-1 month proxy, skipping the most recent month.
	rows, _ := prices.Dims()
	lookback := rows - 1
	if lookback > formulas.TradingDaysPerYear {
		lookback = formulas.TradingDaysPerYear
	}
	if lookback <= 21 {
		for j := range out {
			out[j] = dailyMean[j] * formulas.TradingDaysPerYear
		}
		return out
	}
	startIdx := rows - lookback
	if startIdx < 0 {
		startIdx = 0
	}
	endIdx := rows - 21
	for j := 0; j < n; j++ {
		first := prices.At(startIdx, j)
		latest := prices.At(endIdx-1, j)
		if first > 0 {
			out[j] = latest/first - 1.0
		}
	}
	return out
}

func identity(n int) *mat.Dense {
	if n == 0 {
		return &mat.Dense{}
	}
	eye := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		eye.Set(i, i, 1.0)
	}
	return eye
}

func demean(m *mat.Dense) *mat.Dense {
	t, n := m.Dims()
	out := mat.NewDense(t, n, nil)
	for j := 0; j < n; j++ {
		mean := formulas.Mean(mat.Col(nil, j, m))
		for i := 0; i < t; i++ {
			out.Set(i, j, m.At(i, j)-mean)
		}
	}
	return out
}

// covariance computes the column covariance of a t x n matrix, biased
// (divide by t) or unbiased (divide by t-1).
func covariance(returns *mat.Dense, biased bool) *mat.Dense {
	t, n := returns.Dims()
	x := demean(returns)
	denom := float64(t - 1)
	if biased {
		denom = float64(t)
	}
	cov := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			var v float64
			for k := 0; k < t; k++ {
				v += x.At(k, i) * x.At(k, j)
			}
			v /= denom
			cov.Set(i, j, v)
			cov.Set(j, i, v)
		}
	}
	return cov
}
