//nolint:funlen // ok for tests
package resample

import (
	"math"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"github.com/mpapenbr/racereplay/pkg/model"
)

func TestStep(t *testing.T) {
	xs := []float64{0, 1, 2}
	gear := []int{3, 4, 5}
	tests := []struct {
		name  string
		query []float64
		want  []int
	}{
		{name: "between samples", query: []float64{0.5}, want: []int{3}},
		{name: "after last sample", query: []float64{2.5}, want: []int{5}},
		{name: "before first sample", query: []float64{-1}, want: []int{3}},
		{name: "exact hits", query: []float64{0, 1, 2}, want: []int{3, 4, 5}},
		{name: "sequence", query: []float64{-1, 0.5, 1.5, 2.5}, want: []int{3, 3, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Step(xs, gear, tt.query)); diff != "" {
				t.Errorf("Step() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStepDuplicateTimes(t *testing.T) {
	got := Step([]float64{0, 1, 1, 2}, []int{1, 2, 3, 4}, []float64{1, 1.5})
	assert.Equal(t, []int{3, 3}, got)
}

func TestLinear(t *testing.T) {
	xs := []float64{0, 1, 2}
	ys := []float64{0, 10, 30}
	got := Linear(xs, ys, []float64{-1, 0, 0.5, 1.5, 2, 3})
	want := []float64{0, 0, 5, 20, 30, 30}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Linear() mismatch (-want +got):\n%s", diff)
	}

	assert.Equal(t, []float64{7, 7}, Linear([]float64{1}, []float64{7}, []float64{0, 2}))
	assert.Equal(t, []float64{0}, Linear(nil, nil, []float64{1}))
}

func TestLastOfEqualTimes(t *testing.T) {
	assert.Equal(t, []int{0, 2, 3}, lastOfEqualTimes([]float64{0, 1, 1, 2}))
	assert.Equal(t, []int{1}, lastOfEqualTimes([]float64{5, 5}))
	assert.Empty(t, lastOfEqualTimes(nil))
}

func randomSeries(r *rand.Rand, n int) *model.VehicleTimeSeries {
	s := &model.VehicleTimeSeries{Vehicle: "HAM"}
	t := 100.0
	for i := range n {
		// some duplicate timestamps on purpose
		if i%7 != 3 {
			t += r.Float64() * 0.3
		}
		s.Time = append(s.Time, t)
		s.X = append(s.X, r.Float64()*1000-500)
		s.Y = append(s.Y, r.Float64()*1000-500)
		s.Distance = append(s.Distance, float64(i)*12)
		s.Speed = append(s.Speed, r.Float64()*340)
		s.Throttle = append(s.Throttle, r.Float64()*100)
		s.Brake = append(s.Brake, float64(r.IntN(2)))
		s.Gear = append(s.Gear, 1+r.IntN(8))
		s.DRS = append(s.DRS, []int{0, 8, 10, 12}[r.IntN(4)])
		s.Lap = append(s.Lap, 1+i/50)
	}
	return s
}

func TestSeriesProperties(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	s := randomSeries(r, 400)
	start, end := s.Range()
	// timeline starts before and ends after the vehicle's samples
	fps := 10
	n := int((end-start+4)*float64(fps)) + 1
	tl := &model.Timeline{FPS: fps, T0: start - 2, Times: make([]float64, n)}
	for i := range tl.Times {
		tl.Times[i] = float64(i) / float64(fps)
	}

	got := Series(s, tl)
	require.Equal(t, tl.Len(), got.Len())

	for name, pair := range map[string][2][]float64{
		"x":        {s.X, got.X},
		"y":        {s.Y, got.Y},
		"distance": {s.Distance, got.Distance},
		"speed":    {s.Speed, got.Speed},
		"throttle": {s.Throttle, got.Throttle},
		"brake":    {s.Brake, got.Brake},
	} {
		lo, hi := floats.Min(pair[0]), floats.Max(pair[0])
		for i, v := range pair[1] {
			require.False(t, math.IsNaN(v), "%s[%d] is NaN", name, i)
			require.GreaterOrEqual(t, v, lo, "%s[%d]", name, i)
			require.LessOrEqual(t, v, hi, "%s[%d]", name, i)
		}
	}
	for name, pair := range map[string][2][]int{
		"gear": {s.Gear, got.Gear},
		"drs":  {s.DRS, got.DRS},
		"lap":  {s.Lap, got.Lap},
	} {
		for i, v := range pair[1] {
			require.True(t, slices.Contains(pair[0], v), "%s[%d]=%d not in raw set", name, i, v)
		}
	}
	// distance is monotone in the raw data, so it must be monotone after resampling
	for i := 1; i < got.Len(); i++ {
		require.GreaterOrEqual(t, got.Distance[i], got.Distance[i-1])
	}
	// clamped boundaries
	assert.InDelta(t, s.X[0], got.X[0], 1e-9)
	assert.Equal(t, s.Gear[0], got.Gear[0])
	assert.Equal(t, s.Lap[len(s.Lap)-1], got.Lap[got.Len()-1])
}
