package frames

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/model"
	"github.com/mpapenbr/racereplay/pkg/processing/lapdata"
)

const (
	DefaultMessageWindow    = 10.0 // seconds
	DefaultMaxMessages      = 5
	DefaultFastestLapWindow = 5.0 // seconds
)

// Synthesizer produces frames from resampled vehicle series.
// It is immutable after creation, each call to Frames starts a new pass.
type Synthesizer struct {
	l           *log.Logger
	timeline    *model.Timeline
	series      map[string]*model.ResampledVehicleSeries
	vehicles    []string // sorted ids
	lapLength   float64
	tables      *lapdata.Tables
	fastest     []lapdata.FastestLapEvent
	status      []model.TrackStatusEvent
	messages    messageLog
	weather     weatherLog
	fastestNew  float64
	warnLapOnce sync.Once
}

type SynthesizerOption func(s *Synthesizer)

func WithLogger(l *log.Logger) SynthesizerOption {
	return func(s *Synthesizer) {
		s.l = l
	}
}

// WithLapTables provides per lap context (compound, sectors, stints, fastest laps)
func WithLapTables(t *lapdata.Tables) SynthesizerOption {
	return func(s *Synthesizer) {
		s.tables = t
	}
}

func WithTrackStatus(events []model.TrackStatusEvent) SynthesizerOption {
	return func(s *Synthesizer) {
		s.status = slices.Clone(events)
	}
}

func WithRaceControl(msgs []model.RaceControlMessage) SynthesizerOption {
	return func(s *Synthesizer) {
		s.messages.msgs = slices.Clone(msgs)
	}
}

func WithWeather(samples []model.WeatherSample) SynthesizerOption {
	return func(s *Synthesizer) {
		s.weather.samples = slices.Clone(samples)
	}
}

// WithMessageWindow sets the time a race control message stays active and
// the max number of active messages per frame
func WithMessageWindow(seconds float64, limit int) SynthesizerOption {
	return func(s *Synthesizer) {
		s.messages.window = seconds
		s.messages.limit = limit
	}
}

// WithFastestLapWindow sets the time a new fastest lap is flagged as new
func WithFastestLapWindow(seconds float64) SynthesizerOption {
	return func(s *Synthesizer) {
		s.fastestNew = seconds
	}
}

//nolint:whitespace // can't make both editor and linter happy
func NewSynthesizer(
	timeline *model.Timeline,
	series map[string]*model.ResampledVehicleSeries,
	lapLength float64,
	opts ...SynthesizerOption,
) *Synthesizer {
	ret := &Synthesizer{
		l:          log.Default().Named("frames"),
		timeline:   timeline,
		series:     series,
		lapLength:  lapLength,
		messages:   messageLog{window: DefaultMessageWindow, limit: DefaultMaxMessages},
		fastestNew: DefaultFastestLapWindow,
	}
	for _, opt := range opts {
		opt(ret)
	}
	for id := range series {
		ret.vehicles = append(ret.vehicles, id)
	}
	slices.Sort(ret.vehicles)

	slices.SortStableFunc(ret.status, func(a, b model.TrackStatusEvent) int {
		return cmp.Compare(a.Time, b.Time)
	})
	slices.SortStableFunc(ret.messages.msgs, func(a, b model.RaceControlMessage) int {
		return cmp.Compare(a.Time, b.Time)
	})
	slices.SortStableFunc(ret.weather.samples, func(a, b model.WeatherSample) int {
		return cmp.Compare(a.Time, b.Time)
	})
	if ret.tables == nil {
		ret.tables = lapdata.Build(nil)
	}
	ret.fastest = ret.tables.FastestLapEvents()
	return ret
}

// Len returns the number of frames a full pass produces
func (s *Synthesizer) Len() int {
	return s.timeline.Len()
}

// Frames returns a new iterator positioned before the first frame
func (s *Synthesizer) Frames() *Iterator {
	if !ValidLapLength(s.lapLength) {
		s.warnLapOnce.Do(func() {
			s.l.Warn("ranking by raw distance",
				log.Float64("lapLength", s.lapLength),
				log.ErrorField(model.ErrInvalidLapLength))
		})
	}
	return &Iterator{
		s:       s,
		order:   slices.Clone(s.vehicles),
		fastest: lapdata.NewFastestLapCursor(s.fastest),
		status:  &statusCursor{events: s.status},
	}
}

// All produces all frames. The context is checked between frames.
func (s *Synthesizer) All(ctx context.Context) ([]model.Frame, error) {
	ret := make([]model.Frame, 0, s.Len())
	it := s.Frames()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		f, ok := it.Next()
		if !ok {
			return ret, nil
		}
		ret = append(ret, f)
	}
}

// Iterator carries the state of one forward pass over the timeline
type Iterator struct {
	s       *Synthesizer
	idx     int
	order   []string       // order of the previous frame
	ranks   map[string]int // ranks of the previous frame, nil before the first frame
	fastest *lapdata.FastestLapCursor
	status  *statusCursor
}

// Next returns the next frame. The second value is false when all frames
// have been produced.
func (it *Iterator) Next() (model.Frame, bool) {
	s := it.s
	if it.idx >= s.timeline.Len() {
		return model.Frame{}, false
	}
	i := it.idx
	t := s.timeline.Times[i]
	abs := s.timeline.Abs(i)

	progress := make(map[string]float64, len(s.vehicles))
	for _, v := range s.vehicles {
		r := s.series[v]
		progress[v] = Progress(r.Lap[i], r.Distance[i], s.lapLength)
	}
	order, ranks := rankByProgress(it.order, progress)

	frame := model.Frame{
		Index:           i,
		T:               t,
		SessionTime:     abs,
		Vehicles:        make(map[string]model.VehicleState, len(s.vehicles)),
		TrackStatus:     it.status.at(abs),
		Messages:        s.messages.active(abs),
		Weather:         s.weather.nearest(abs),
		PositionChanges: detectOvertakes(s.vehicles, order, it.ranks, ranks, t),
	}
	for _, v := range s.vehicles {
		frame.Vehicles[v] = s.vehicleState(v, i, progress[v], ranks[v])
	}
	if ev, ok := it.fastest.Advance(abs); ok {
		age := abs - ev.Time
		frame.FastestLap = null.From(model.FastestLap{
			Vehicle: ev.Vehicle,
			LapTime: ev.LapTime,
			Lap:     ev.Lap,
			SetAt:   ev.Time,
			IsNew:   age >= 0 && age <= s.fastestNew,
		})
	}

	it.order = order
	it.ranks = ranks
	it.idx++
	return frame, true
}

//nolint:whitespace // can't make both editor and linter happy
func (s *Synthesizer) vehicleState(
	v string,
	i int,
	progress float64,
	rank int,
) model.VehicleState {
	r := s.series[v]
	lap := r.Lap[i]
	stint, tyreAge := s.tables.StintAt(v, lap)
	ret := model.VehicleState{
		X:        r.X[i],
		Y:        r.Y[i],
		Speed:    r.Speed[i],
		Distance: r.Distance[i],
		Throttle: r.Throttle[i],
		Brake:    r.Brake[i],
		Gear:     r.Gear[i],
		DRS:      r.DRS[i],
		Lap:      lap,
		Progress: progress,
		Rank:     rank,
		Compound: s.tables.Compound(v, lap),
		Stint:    stint,
		TyreAge:  tyreAge,
		PitCount: max(0, stint-1),
	}
	if rec, ok := s.tables.Lap(v, lap); ok {
		ret.Sectors = model.SectorTimes{S1: rec.Sector1, S2: rec.Sector2, S3: rec.Sector3}
		ret.LapTime = rec.LapTime
	}
	return ret
}
