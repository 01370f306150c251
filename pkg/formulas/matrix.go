package formulas

import (
	"fmt"
	"math"
)

// CorrelationMatrixFromCovariance calculates the correlation matrix from a
// covariance matrix.
//
// Formula: corr(i,j) = cov(i,j) / sqrt(cov(i,i) * cov(j,j))
//
// Nonpositive variances are floored at a small epsilon instead of failing so
// that degenerate (flat-price) assets still produce a usable matrix.
func CorrelationMatrixFromCovariance(cov [][]float64) ([][]float64, error) {
	n := len(cov)
	if n == 0 {
		return nil, fmt.Errorf("empty covariance matrix")
	}
	for i := 0; i < n; i++ {
		if len(cov[i]) != n {
			return nil, fmt.Errorf("covariance matrix is not square")
		}
	}

	std := make([]float64, n)
	for i := 0; i < n; i++ {
		std[i] = math.Sqrt(math.Max(cov[i][i], 1e-12))
	}

	corr := make([][]float64, n)
	for i := 0; i < n; i++ {
		corr[i] = make([]float64, n)
	}

	for i := 0; i < n; i++ {
		corr[i][i] = 1.0
		for j := i + 1; j < n; j++ {
			den := std[i] * std[j]
			val := 0.0
			if den > 0 {
				val = cov[i][j] / den
			}
			// Clamp to valid range.
			val = math.Max(-1.0, math.Min(1.0, val))
			corr[i][j] = val
			corr[j][i] = val
		}
	}

	return corr, nil
}

// CorrelationToDistance converts a correlation matrix to a distance matrix
// using d_ij = sqrt(0.5 * (1 - ρ_ij)). Perfectly correlated assets sit at
// distance 0, perfectly anti-correlated ones at 1. Used by the hierarchical
// clustering step of HRP.
func CorrelationToDistance(corrMatrix [][]float64) [][]float64 {
	n := len(corrMatrix)
	distMatrix := make([][]float64, n)

	for i := 0; i < n; i++ {
		distMatrix[i] = make([]float64, n)
		for j := 0; j < n; j++ {
			corr := math.Max(-1.0, math.Min(1.0, corrMatrix[i][j]))
			distMatrix[i][j] = math.Sqrt(0.5 * (1.0 - corr))
		}
	}

	return distMatrix
}

// InverseVarianceWeights calculates weights proportional to 1/variance.
//
// Formula: w_i = (1/v_i) / Σ(1/v_j)
//
// All-zero or invalid variances degrade to equal weights.
func InverseVarianceWeights(variances []float64) []float64 {
	n := len(variances)
	weights := make([]float64, n)

	var totalInv float64
	for _, v := range variances {
		if v > 0 {
			totalInv += 1.0 / v
		}
	}

	if totalInv == 0 {
		for i := range weights {
			weights[i] = 1.0 / float64(n)
		}
		return weights
	}

	for i, v := range variances {
		if v > 0 {
			weights[i] = (1.0 / v) / totalInv
		}
	}

	return weights
}
