package causal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitOLSRobust_RecoversSlope(t *testing.T) {
	// y = 2x with small alternating noise so residuals are nonzero.
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	y := make([]float64, len(x))
	for i := range x {
		noise := 0.1
		if i%2 == 1 {
			noise = -0.1
		}
		y[i] = 2*x[i] + noise
	}

	fit, err := fitOLSRobust(x, y, 0.05)
	require.NoError(t, err)

	assert.InDelta(t, 2.0, fit.Coefficient, 0.02)
	assert.Less(t, fit.PValue, 0.001)
	assert.Greater(t, fit.RSquared, 0.99)
	assert.Equal(t, 10, fit.N)
	assert.Positive(t, fit.StdError)
	assert.Less(t, fit.CILower, fit.Coefficient)
	assert.Greater(t, fit.CIUpper, fit.Coefficient)
}

func TestFitOLSRobust_NoRelationship(t *testing.T) {
	x := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	y := []float64{0.1, -0.1, 0.05, -0.05, 0.2, -0.2, 0.15, -0.15, 0.1, -0.1}

	fit, err := fitOLSRobust(x, y, 0.05)
	require.NoError(t, err)

	assert.Greater(t, fit.PValue, 0.10)
	assert.InDelta(t, 0.0, fit.Coefficient, 0.05)
}

func TestFitOLSRobust_Errors(t *testing.T) {
	t.Run("too few observations", func(t *testing.T) {
		_, err := fitOLSRobust([]float64{1, 2}, []float64{1, 2}, 0.05)
		require.Error(t, err)
	})

	t.Run("mismatched lengths", func(t *testing.T) {
		_, err := fitOLSRobust([]float64{1, 2, 3}, []float64{1, 2}, 0.05)
		require.Error(t, err)
	})

	t.Run("zero variance regressor", func(t *testing.T) {
		_, err := fitOLSRobust([]float64{2, 2, 2, 2}, []float64{1, 2, 3, 4}, 0.05)
		require.Error(t, err)
	})

	t.Run("perfect fit has zero robust error", func(t *testing.T) {
		_, err := fitOLSRobust([]float64{1, 2, 3, 4}, []float64{2, 4, 6, 8}, 0.05)
		require.Error(t, err)
	})
}

func TestMeanZeroTest(t *testing.T) {
	t.Run("clearly nonzero mean", func(t *testing.T) {
		mean, p, ok := meanZeroTest([]float64{0.48, 0.52, 0.49, 0.51, 0.5})
		require.True(t, ok)
		assert.InDelta(t, 0.5, mean, 1e-9)
		assert.Less(t, p, 0.001)
	})

	t.Run("mean near zero", func(t *testing.T) {
		_, p, ok := meanZeroTest([]float64{0.1, -0.1, 0.05, -0.05, 0.02, -0.02})
		require.True(t, ok)
		assert.Greater(t, p, 0.5)
	})

	t.Run("degenerate samples", func(t *testing.T) {
		_, _, ok := meanZeroTest([]float64{0.5})
		assert.False(t, ok)

		_, _, ok = meanZeroTest([]float64{0.5, 0.5, 0.5})
		assert.False(t, ok)

		_, _, ok = meanZeroTest(nil)
		assert.False(t, ok)
	})
}
