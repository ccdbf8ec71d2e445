package timeline

import (
	"fmt"
	"math"

	"github.com/mpapenbr/racereplay/pkg/model"
)

// tolerance for floating point noise when computing the number of steps
const stepEpsilon = 1e-9

// Window returns the union of the time ranges of all usable series.
// Series without a finite range with end > start are reported in unusable.
func Window(series []*model.VehicleTimeSeries) (
	t0, t1 float64, usable, unusable []string,
) {
	t0, t1 = math.Inf(1), math.Inf(-1)
	for _, s := range series {
		if s == nil || s.Len() == 0 {
			continue
		}
		start, end := s.Range()
		if !finite(start) || !finite(end) || end <= start {
			unusable = append(unusable, s.Vehicle)
			continue
		}
		usable = append(usable, s.Vehicle)
		t0 = math.Min(t0, start)
		t1 = math.Max(t1, end)
	}
	return t0, t1, usable, unusable
}

// Build computes the shared fixed step timeline spanning all vehicles.
// It returns model.ErrEmptyTimeline if no series has a usable range.
func Build(series []*model.VehicleTimeSeries, fps int) (*model.Timeline, error) {
	if fps <= 0 {
		return nil, fmt.Errorf("fps must be positive, got %d", fps)
	}
	t0, t1, usable, _ := Window(series)
	if len(usable) == 0 {
		return nil, model.ErrEmptyTimeline
	}
	n := int(math.Floor((t1-t0)*float64(fps)+stepEpsilon)) + 1
	times := make([]float64, n)
	for i := range times {
		times[i] = float64(i) / float64(fps)
	}
	return &model.Timeline{FPS: fps, T0: t0, Times: times}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
