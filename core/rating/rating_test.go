package rating

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeightedSumPicksMaximum(t *testing.T) {
	alts := [][]float64{
		{0, 1, 0.5},
		{1, 0, 0.5},
		{1, 1, 1},
	}
	res, err := WeightedSum(alts, []float64{0.2, 0.3, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 2, res.BestIndex)
	assert.InDelta(t, 1.0, res.BestValue, 1e-9)
	assert.InDelta(t, 0.55, res.Sums[0], 1e-9)
	assert.InDelta(t, 0.45, res.Sums[1], 1e-9)
}

func TestWeightedSumTiesFirstWins(t *testing.T) {
	alts := [][]float64{{0.5, 0.5}, {1, 0}, {0, 1}}
	res, err := WeightedSum(alts, []float64{0.5, 0.5})
	require.NoError(t, err)
	assert.Equal(t, 0, res.BestIndex)
}

func TestWeightedSumErrors(t *testing.T) {
	_, err := WeightedSum(nil, ParkWeights)
	assert.Error(t, err)

	_, err = WeightedSum([][]float64{{1, 2}}, []float64{1})
	assert.Error(t, err)
}

func TestWeightVectorsNormalized(t *testing.T) {
	sum := 0.0
	for _, w := range ParkWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)

	sum = 0.0
	for _, w := range DispatchWeights {
		sum += w
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestRfdDiffParkValue(t *testing.T) {
	assert.InDelta(t, -1, RfdDiffParkValue(-1201), 1e-9)
	assert.InDelta(t, -1, RfdDiffParkValue(-1200), 1e-9)
	assert.InDelta(t, -0.5, RfdDiffParkValue(-600), 1e-9)
	assert.InDelta(t, 1, RfdDiffParkValue(0), 1e-9)
	assert.InDelta(t, 0, RfdDiffParkValue(3600), 1e-9)
	assert.InDelta(t, -1, RfdDiffParkValue(7200), 1e-9)
}

func TestSplitParkDiff(t *testing.T) {
	pos, neg := SplitParkDiff(1800, true)
	assert.InDelta(t, 0.5, pos, 1e-9)
	assert.Zero(t, neg)

	pos, neg = SplitParkDiff(-600, true)
	assert.Zero(t, pos)
	assert.InDelta(t, -0.5, neg, 1e-9)

	pos, neg = SplitParkDiff(1800, false)
	assert.Zero(t, pos)
	assert.Zero(t, neg)
}

func TestRfdDiffDispatchValue(t *testing.T) {
	assert.InDelta(t, 1, RfdDiffDispatchValue(-1), 1e-9)
	assert.InDelta(t, 1, RfdDiffDispatchValue(0), 1e-9)
	assert.InDelta(t, 0.5, RfdDiffDispatchValue(5400), 1e-9)
	assert.InDelta(t, 0, RfdDiffDispatchValue(10800), 1e-9)
	assert.InDelta(t, 0, RfdDiffDispatchValue(99999), 1e-9)
}
