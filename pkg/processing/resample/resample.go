package resample

import (
	"gonum.org/v1/gonum/interp"

	"github.com/mpapenbr/racereplay/pkg/model"
)

// Series projects a vehicle's raw samples onto the timeline.
// Continuous channels are linearly interpolated, discrete channels keep the
// last known value. Queries outside the recorded range clamp to the boundary
// samples. s must not be empty.
func Series(s *model.VehicleTimeSeries, tl *model.Timeline) *model.ResampledVehicleSeries {
	query := make([]float64, tl.Len())
	for i := range query {
		query[i] = tl.Abs(i)
	}
	keep := lastOfEqualTimes(s.Time)
	xs := pick(s.Time, keep)

	return &model.ResampledVehicleSeries{
		Vehicle:  s.Vehicle,
		X:        Linear(xs, pick(s.X, keep), query),
		Y:        Linear(xs, pick(s.Y, keep), query),
		Distance: Linear(xs, pick(s.Distance, keep), query),
		Speed:    Linear(xs, pick(s.Speed, keep), query),
		Throttle: Linear(xs, pick(s.Throttle, keep), query),
		Brake:    Linear(xs, pick(s.Brake, keep), query),
		Gear:     Step(s.Time, s.Gear, query),
		DRS:      Step(s.Time, s.DRS, query),
		Lap:      Step(s.Time, s.Lap, query),
	}
}

// Linear interpolates ys at the query points. xs must be strictly increasing.
func Linear(xs, ys, query []float64) []float64 {
	ret := make([]float64, len(query))
	switch len(xs) {
	case 0:
		return ret
	case 1:
		for i := range ret {
			ret[i] = ys[0]
		}
		return ret
	}
	var pl interp.PiecewiseLinear
	// Fit panics on invalid input, xs is deduplicated by the caller
	_ = pl.Fit(xs, ys)
	for i, q := range query {
		ret[i] = pl.Predict(q)
	}
	return ret
}

// Step returns the value at the greatest raw timestamp <= query.
// Queries before the first sample return the first sample.
// Both xs and query must be sorted ascending.
func Step[T any](xs []float64, values []T, query []float64) []T {
	ret := make([]T, len(query))
	if len(xs) == 0 {
		return ret
	}
	j := 0
	for i, q := range query {
		for j+1 < len(xs) && xs[j+1] <= q {
			j++
		}
		ret[i] = values[j]
	}
	return ret
}

// lastOfEqualTimes returns the indexes of the last sample of each distinct timestamp
func lastOfEqualTimes(times []float64) []int {
	ret := make([]int, 0, len(times))
	for i := range times {
		if i+1 < len(times) && times[i+1] == times[i] {
			continue
		}
		ret = append(ret, i)
	}
	return ret
}

func pick(data []float64, idx []int) []float64 {
	ret := make([]float64, len(idx))
	for i, j := range idx {
		ret[i] = data[j]
	}
	return ret
}
