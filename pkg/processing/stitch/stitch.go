package stitch

import (
	"cmp"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/model"
)

var (
	errEmptyLap       = errors.New("no samples")
	errChannelLength  = errors.New("channel length mismatch")
	errNonFiniteValue = errors.New("non-finite value")
)

type Stitcher struct {
	l *log.Logger
}

type StitcherOption func(s *Stitcher)

func WithLogger(l *log.Logger) StitcherOption {
	return func(s *Stitcher) {
		s.l = l
	}
}

func NewStitcher(opts ...StitcherOption) *Stitcher {
	ret := &Stitcher{l: log.Default().Named("stitch")}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Stitch concatenates the laps of a vehicle into one series ordered by time.
// Laps that can't be extracted are skipped. The returned error is either a
// *model.TimeOrderingError or a *model.InsufficientSamplesError.
func (s *Stitcher) Stitch(
	vehicle string,
	laps []model.RawLapTelemetry,
) (*model.VehicleTimeSeries, error) {
	total := 0
	valid := make([]*model.RawLapTelemetry, 0, len(laps))
	for i := range laps {
		if err := checkLap(&laps[i]); err != nil {
			s.l.Debug("skipping lap",
				log.String("vehicle", vehicle),
				log.Int("lap", laps[i].Lap),
				log.ErrorField(err))
			continue
		}
		valid = append(valid, &laps[i])
		total += laps[i].Samples()
	}
	if total < 2 {
		return nil, &model.InsufficientSamplesError{Vehicle: vehicle, Samples: total}
	}

	raw := concat(vehicle, valid, total)
	ret := sortByTime(raw)
	for i := 1; i < ret.Len(); i++ {
		if ret.Time[i] < ret.Time[i-1] {
			return nil, &model.TimeOrderingError{
				Vehicle: vehicle,
				Index:   i,
				Prev:    ret.Time[i-1],
				Next:    ret.Time[i],
			}
		}
	}
	return ret, nil
}

func checkLap(lap *model.RawLapTelemetry) error {
	n := lap.Samples()
	if n == 0 {
		return errEmptyLap
	}
	for _, c := range [][]float64{lap.X, lap.Y, lap.Distance, lap.Speed} {
		if len(c) != n {
			return errChannelLength
		}
	}
	if len(lap.Gear) != n || len(lap.DRS) != n {
		return errChannelLength
	}
	// throttle and brake are optional
	for _, c := range [][]float64{lap.Throttle, lap.Brake} {
		if len(c) != 0 && len(c) != n {
			return errChannelLength
		}
	}
	for _, c := range [][]float64{lap.Time, lap.X, lap.Y, lap.Distance, lap.Speed,
		lap.Throttle, lap.Brake} {
		if idx := slices.IndexFunc(c, notFinite); idx >= 0 {
			return fmt.Errorf("%w at index %d", errNonFiniteValue, idx)
		}
	}
	return nil
}

func notFinite(v float64) bool {
	return math.IsNaN(v) || math.IsInf(v, 0)
}

func concat(
	vehicle string,
	laps []*model.RawLapTelemetry,
	total int,
) *model.VehicleTimeSeries {
	ret := &model.VehicleTimeSeries{
		Vehicle:  vehicle,
		Time:     make([]float64, 0, total),
		X:        make([]float64, 0, total),
		Y:        make([]float64, 0, total),
		Distance: make([]float64, 0, total),
		Speed:    make([]float64, 0, total),
		Throttle: make([]float64, 0, total),
		Brake:    make([]float64, 0, total),
		Gear:     make([]int, 0, total),
		DRS:      make([]int, 0, total),
		Lap:      make([]int, 0, total),
	}
	for _, lap := range laps {
		n := lap.Samples()
		ret.Time = append(ret.Time, lap.Time...)
		ret.X = append(ret.X, lap.X...)
		ret.Y = append(ret.Y, lap.Y...)
		ret.Distance = append(ret.Distance, lap.Distance...)
		ret.Speed = append(ret.Speed, lap.Speed...)
		ret.Throttle = append(ret.Throttle, orZeros(lap.Throttle, n)...)
		ret.Brake = append(ret.Brake, orZeros(lap.Brake, n)...)
		ret.Gear = append(ret.Gear, lap.Gear...)
		ret.DRS = append(ret.DRS, lap.DRS...)
		for range n {
			ret.Lap = append(ret.Lap, lap.Lap)
		}
	}
	return ret
}

func orZeros(c []float64, n int) []float64 {
	if len(c) == n {
		return c
	}
	return make([]float64, n)
}

// sortByTime returns a copy of s with all channels permuted by ascending time.
// Samples with equal time keep their input order.
func sortByTime(s *model.VehicleTimeSeries) *model.VehicleTimeSeries {
	idx := make([]int, s.Len())
	for i := range idx {
		idx[i] = i
	}
	slices.SortStableFunc(idx, func(a, b int) int {
		return cmp.Compare(s.Time[a], s.Time[b])
	})
	return &model.VehicleTimeSeries{
		Vehicle:  s.Vehicle,
		Time:     permute(s.Time, idx),
		X:        permute(s.X, idx),
		Y:        permute(s.Y, idx),
		Distance: permute(s.Distance, idx),
		Speed:    permute(s.Speed, idx),
		Throttle: permute(s.Throttle, idx),
		Brake:    permute(s.Brake, idx),
		Gear:     permute(s.Gear, idx),
		DRS:      permute(s.DRS, idx),
		Lap:      permute(s.Lap, idx),
	}
}

func permute[T any](data []T, idx []int) []T {
	ret := make([]T, len(idx))
	for i, j := range idx {
		ret[i] = data[j]
	}
	return ret
}
