package optimization

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

const (
	riskParityIterations = 500
	riskParityStep       = 0.05
	riskParityTolerance  = 1e-6
	maxDivIterations     = 400
	maxDivStep           = 0.1
	gmvRidge             = 1e-8
	varianceFloor        = 1e-12
)

// ProjectSimplex maps weights onto the long-only simplex: negatives are
// clipped to zero and the rest renormalized to sum to one. An all-zero
// vector projects to equal weights.
func ProjectSimplex(weights []float64) []float64 {
	if len(weights) == 0 {
		return weights
	}
	out := make([]float64, len(weights))
	var total float64
	for i, w := range weights {
		if w > 0 {
			out[i] = w
			total += w
		}
	}
	if total == 0 {
		equal := 1.0 / float64(len(out))
		for i := range out {
			out[i] = equal
		}
		return out
	}
	for i := range out {
		out[i] /= total
	}
	return out
}

// EqualWeights assigns every asset the same weight.
func EqualWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

// InverseVolWeights sizes each asset proportional to the inverse of its
// volatility.
func InverseVolWeights(cov *mat.Dense) []float64 {
	n, _ := cov.Dims()
	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		raw[i] = 1.0 / math.Sqrt(math.Max(cov.At(i, i), varianceFloor))
	}
	return ProjectSimplex(raw)
}

// GMVWeights computes global-minimum-variance weights via the
// pseudo-inverse of a ridge-regularized covariance, projected long-only.
func GMVWeights(cov *mat.Dense) []float64 {
	n, _ := cov.Dims()
	ridged := mat.NewDense(n, n, nil)
	ridged.Copy(cov)
	for i := 0; i < n; i++ {
		ridged.Set(i, i, ridged.At(i, i)+gmvRidge)
	}
	inv := pseudoInverse(ridged)

	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		var rowSum float64
		for j := 0; j < n; j++ {
			rowSum += inv.At(i, j)
		}
		raw[i] = rowSum
	}
	return ProjectSimplex(raw)
}

// RiskParityWeights iterates toward equal risk contributions: each step
// moves weights against the gap between an asset's risk contribution and
// the equal share, then re-projects onto the simplex.
func RiskParityWeights(cov *mat.Dense) []float64 {
	n, _ := cov.Dims()
	w := EqualWeights(n)
	for iter := 0; iter < riskParityIterations; iter++ {
		mrc := matVec(cov, w)
		var portVar float64
		for i := range w {
			portVar += w[i] * mrc[i]
		}
		target := portVar / float64(n)

		maxGap := 0.0
		gradient := make([]float64, n)
		for i := range w {
			gradient[i] = w[i]*mrc[i] - target
			if g := math.Abs(gradient[i]); g > maxGap {
				maxGap = g
			}
		}
		if maxGap < riskParityTolerance {
			break
		}
		for i := range w {
			w[i] -= riskParityStep * gradient[i] / (mrc[i] + 1e-12)
			if w[i] < 0 {
				w[i] = 0
			}
		}
		w = ProjectSimplex(w)
	}
	return w
}

// MaxDiversificationWeights gradient-ascends the diversification ratio
// (weighted average vol over portfolio vol), projecting long-only each
// step.
func MaxDiversificationWeights(cov *mat.Dense) []float64 {
	n, _ := cov.Dims()
	vol := make([]float64, n)
	for i := 0; i < n; i++ {
		vol[i] = math.Sqrt(math.Max(cov.At(i, i), varianceFloor))
	}
	w := EqualWeights(n)
	for iter := 0; iter < maxDivIterations; iter++ {
		covW := matVec(cov, w)
		portVar := 1e-12
		for i := range w {
			portVar += w[i] * covW[i]
		}
		portVol := math.Sqrt(portVar)
		ratio := 0.0
		if portVol > 0 {
			var avgVol float64
			for i := range w {
				avgVol += vol[i] * w[i]
			}
			ratio = avgVol / portVol
		}
		for i := range w {
			grad := vol[i]/portVol - (ratio/portVar)*covW[i]
			w[i] += maxDivStep * grad
			if w[i] < 0 {
				w[i] = 0
			}
		}
		w = ProjectSimplex(w)
	}
	return w
}

// OptimizeWeights dispatches an allocation method key over a covariance
// matrix. Unknown keys return an InputError.
func OptimizeWeights(method string, cov *mat.Dense) ([]float64, error) {
	n, _ := cov.Dims()
	switch method {
	case "equal_weight":
		return EqualWeights(n), nil
	case "inverse_vol":
		return InverseVolWeights(cov), nil
	case "gmv":
		return GMVWeights(cov), nil
	case "risk_parity":
		return RiskParityWeights(cov), nil
	case "hrp":
		return HRPWeights(cov), nil
	case "max_diversification":
		return MaxDiversificationWeights(cov), nil
	default:
		return nil, NewInputError("Unknown optimization method '%s'.", method)
	}
}

// pseudoInverse computes the Moore-Penrose pseudo-inverse via SVD,
// discarding singular values below a relative tolerance.
func pseudoInverse(m *mat.Dense) *mat.Dense {
	n, _ := m.Dims()
	var svd mat.SVD
	if ok := svd.Factorize(m, mat.SVDThin); !ok {
		// Factorization failing on a finite matrix is not expected;
		// fall back to the identity so the caller still gets weights.
		return identity(n)
	}
	values := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)

	maxSV := 0.0
	for _, s := range values {
		if s > maxSV {
			maxSV = s
		}
	}
	tol := float64(n) * maxSV * 1e-15

	invS := mat.NewDense(len(values), len(values), nil)
	for i, s := range values {
		if s > tol {
			invS.Set(i, i, 1.0/s)
		}
	}

	var tmp, out mat.Dense
	tmp.Mul(&v, invS)
	out.Mul(&tmp, u.T())
	return &out
}

func matVec(m *mat.Dense, v []float64) []float64 {
	n, _ := m.Dims()
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for j := 0; j < len(v); j++ {
			sum += m.At(i, j) * v[j]
		}
		out[i] = sum
	}
	return out
}
