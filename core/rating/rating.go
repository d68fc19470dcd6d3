// Package rating solves the multi criteria decision problems behind the
// smart parking and dispatch strategies. It is pure: callers build
// numeric feature vectors, this package weighs and compares them.
package rating

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
)

// Weight vectors for the two decision problems. The order matches the
// corresponding Alternative value slices.
var (
	// ParkWeights weighs [buffer, typestack, rfd_diff_pos, rfd_diff_neg,
	// available_power, empty_slots_exit].
	ParkWeights = []float64{22.0 / 72, 13.0 / 72, 8.0 / 72, 29.0 / 144, 2.0 / 72, 25.0 / 144}

	// DispatchWeights weighs [buffer, typestack, rfd_diff,
	// available_power, empty_slots_exit].
	DispatchWeights = []float64{10.0 / 50, 16.0 / 50, 25.0 / 100, 3.0 / 50, 17.0 / 100}
)

// Bounds for mapping readiness time differences onto criterion values.
const (
	RfdDiffParkLowerBound     = -1200 // s
	RfdDiffParkUpperBound     = 7200  // s
	RfdDiffDispatchUpperBound = 10800 // s
)

// Result holds the outcome of a weighted sum comparison.
type Result struct {
	// Sums holds the weighted sum per alternative.
	Sums []float64
	// BestValue is the maximum of Sums.
	BestValue float64
	// BestIndex is the first alternative reaching BestValue.
	BestIndex int
}

// WeightedSum scores each alternative with the given weights and locates
// the maximum. All alternatives must have the same length as weights.
func WeightedSum(alternatives [][]float64, weights []float64) (Result, error) {
	if len(alternatives) == 0 {
		return Result{}, fmt.Errorf("rating: no alternatives")
	}
	sums := make([]float64, len(alternatives))
	for i, alt := range alternatives {
		if len(alt) != len(weights) {
			return Result{}, fmt.Errorf("rating: alternative %d has %d values, want %d", i, len(alt), len(weights))
		}
		weighted := make([]float64, len(alt))
		floats.MulTo(weighted, weights, alt)
		sums[i] = floats.Sum(weighted)
	}
	best := floats.MaxIdx(sums)
	return Result{Sums: sums, BestValue: sums[best], BestIndex: best}, nil
}

// RfdDiffParkValue maps a readiness time difference in seconds to the
// parking criterion value. Positive differences (the newcomer finishes
// after its blocker) decay linearly from 1; negative ones are penalized
// down to the lower bound.
func RfdDiffParkValue(diff float64) float64 {
	switch {
	case diff < RfdDiffParkLowerBound:
		return -1
	case diff < 0:
		return diff / 1200
	case diff < RfdDiffParkUpperBound:
		return -diff/3600 + 1
	default:
		return -1
	}
}

// SplitParkDiff separates the park criterion value into its positive and
// negative components, matching the two weight slots.
func SplitParkDiff(diff float64, hasBlocker bool) (pos, neg float64) {
	if !hasBlocker {
		return 0, 0
	}
	v := RfdDiffParkValue(diff)
	if diff >= 0 {
		return v, 0
	}
	return 0, v
}

// RfdDiffDispatchValue maps the maximum readiness time difference of an
// area's vehicles to the dispatch criterion value. A negative diff cannot
// occur for a vehicle that is ready for departure; it still maps to 1 so
// not-yet-ready vehicles can be considered.
func RfdDiffDispatchValue(maxDiff float64) float64 {
	switch {
	case maxDiff < 0:
		return 1
	case maxDiff < RfdDiffDispatchUpperBound:
		return -maxDiff/10800 + 1
	default:
		return 0
	}
}
