package formulas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrelationMatrixFromCovariance(t *testing.T) {
	cov := [][]float64{
		{0.04, 0.02},
		{0.02, 0.04},
	}
	corr, err := CorrelationMatrixFromCovariance(cov)
	require.NoError(t, err)
	assert.Equal(t, 1.0, corr[0][0])
	assert.Equal(t, 1.0, corr[1][1])
	assert.InDelta(t, 0.5, corr[0][1], 1e-12)
	assert.InDelta(t, 0.5, corr[1][0], 1e-12)
}

func TestCorrelationMatrixFromCovariance_Degenerate(t *testing.T) {
	_, err := CorrelationMatrixFromCovariance(nil)
	assert.Error(t, err)

	_, err = CorrelationMatrixFromCovariance([][]float64{{1, 2}})
	assert.Error(t, err)

	// A flat asset (zero variance) still produces finite correlations.
	corr, err := CorrelationMatrixFromCovariance([][]float64{
		{0, 0},
		{0, 0.04},
	})
	require.NoError(t, err)
	assert.False(t, corr[0][1] != corr[0][1], "correlation must not be NaN")
}

func TestCorrelationToDistance(t *testing.T) {
	dist := CorrelationToDistance([][]float64{
		{1, -1},
		{-1, 1},
	})
	assert.Equal(t, 0.0, dist[0][0])
	assert.InDelta(t, 1.0, dist[0][1], 1e-12)
}

func TestInverseVarianceWeights(t *testing.T) {
	w := InverseVarianceWeights([]float64{0.01, 0.04})
	assert.InDelta(t, 0.8, w[0], 1e-12)
	assert.InDelta(t, 0.2, w[1], 1e-12)

	// Invalid variances degrade to equal weights.
	w = InverseVarianceWeights([]float64{0, 0})
	assert.Equal(t, []float64{0.5, 0.5}, w)
}
