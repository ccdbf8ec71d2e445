// Package verify checks a processed replay for structural consistency.
package verify

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/mpapenbr/racereplay/pkg/model"
)

const stepTolerance = 1e-6

var (
	ErrStep         = errors.New("timeline step is not constant")
	ErrFrameCount   = errors.New("frame count differs from timeline length")
	ErrRanks        = errors.New("ranks are no permutation")
	ErrNonFinite    = errors.New("non-finite value")
	ErrFrameIndex   = errors.New("frame index mismatch")
	ErrVehicleCount = errors.New("vehicle count mismatch")
)

// Issue describes a single violation
type Issue struct {
	Frame int // -1 for timeline issues
	Err   error
}

func (i Issue) Error() string {
	if i.Frame < 0 {
		return i.Err.Error()
	}
	return fmt.Sprintf("frame %d: %v", i.Frame, i.Err)
}

func (i Issue) Unwrap() error {
	return i.Err
}

// Replay checks the replay and returns at most limit issues (0 = no limit)
func Replay(r *model.Replay, limit int) []Issue {
	ret := []Issue{}
	add := func(frame int, err error) bool {
		ret = append(ret, Issue{Frame: frame, Err: err})
		return limit > 0 && len(ret) >= limit
	}
	if err := Timeline(&r.Timeline); err != nil {
		if add(-1, err) {
			return ret
		}
	}
	if len(r.Frames) != r.Timeline.Len() {
		if add(-1, fmt.Errorf("%w: %d frames, %d timestamps",
			ErrFrameCount, len(r.Frames), r.Timeline.Len())) {
			return ret
		}
	}
	vehicles := len(r.Meta.Vehicles)
	for i := range r.Frames {
		for _, err := range Frame(&r.Frames[i], i, vehicles) {
			if add(i, err) {
				return ret
			}
		}
	}
	return ret
}

// Timeline checks for constant step 1/fps
func Timeline(tl *model.Timeline) error {
	if tl.FPS <= 0 {
		return fmt.Errorf("%w: fps %d", ErrStep, tl.FPS)
	}
	if tl.Len() == 0 {
		return fmt.Errorf("%w: empty timeline", ErrStep)
	}
	if tl.Len() < 2 {
		return nil
	}
	diffs := make([]float64, tl.Len()-1)
	floats.SubTo(diffs, tl.Times[1:], tl.Times[:tl.Len()-1])
	step := tl.Step()
	lo, hi := floats.Min(diffs), floats.Max(diffs)
	if math.Abs(lo-step) > stepTolerance || math.Abs(hi-step) > stepTolerance {
		return fmt.Errorf("%w: step range [%g, %g], want %g", ErrStep, lo, hi, step)
	}
	return nil
}

// Frame checks a single frame. vehicles is the expected vehicle count.
func Frame(f *model.Frame, idx, vehicles int) []error {
	var ret []error
	if f.Index != idx {
		ret = append(ret, fmt.Errorf("%w: got %d", ErrFrameIndex, f.Index))
	}
	if len(f.Vehicles) != vehicles {
		ret = append(ret, fmt.Errorf("%w: got %d, want %d",
			ErrVehicleCount, len(f.Vehicles), vehicles))
	}
	seen := make([]bool, len(f.Vehicles)+1)
	for id, v := range f.Vehicles {
		if v.Rank < 1 || v.Rank > len(f.Vehicles) || seen[v.Rank] {
			ret = append(ret, fmt.Errorf("%w: %s has rank %d", ErrRanks, id, v.Rank))
		} else {
			seen[v.Rank] = true
		}
		for _, val := range []float64{
			v.X, v.Y, v.Speed, v.Distance, v.Throttle, v.Brake, v.Progress,
		} {
			if math.IsNaN(val) || math.IsInf(val, 0) {
				ret = append(ret, fmt.Errorf("%w: vehicle %s", ErrNonFinite, id))
				break
			}
		}
	}
	return ret
}
