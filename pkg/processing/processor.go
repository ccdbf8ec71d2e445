package processing

import (
	"cmp"
	"context"
	"fmt"
	"runtime"
	"slices"

	"github.com/go-playground/validator/v10"
	"github.com/gofrs/uuid/v5"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/model"
	"github.com/mpapenbr/racereplay/pkg/processing/frames"
	"github.com/mpapenbr/racereplay/pkg/processing/lapdata"
	"github.com/mpapenbr/racereplay/pkg/processing/resample"
	"github.com/mpapenbr/racereplay/pkg/processing/stitch"
	"github.com/mpapenbr/racereplay/pkg/processing/timeline"
)

var meter = otel.Meter("racereplay-processing")

// Options controls a pipeline run
type Options struct {
	FPS     int `validate:"gt=0,lte=1000"`
	Workers int `validate:"gte=0"` // 0 means number of CPUs
	// seconds a race control message stays active
	MessageWindow float64 `validate:"gte=0"`
	MaxMessages   int     `validate:"gte=0"`
	// seconds a new fastest lap is flagged as new
	FastestLapWindow float64 `validate:"gte=0"`
}

func DefaultOptions() Options {
	return Options{
		FPS:              25,
		MessageWindow:    frames.DefaultMessageWindow,
		MaxMessages:      frames.DefaultMaxMessages,
		FastestLapWindow: frames.DefaultFastestLapWindow,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the options before the pipeline starts
func (o *Options) Validate() error {
	return validate.Struct(o)
}

// Result is the output of a pipeline run
type Result struct {
	RunID  uuid.UUID
	Replay model.Replay
	// vehicles removed from the run with the reason
	Dropped map[string]error
	Tables  *lapdata.Tables
}

type Processor struct {
	l       *log.Logger
	opts    Options
	tracer  trace.Tracer
	dropped metric.Int64Counter
	framesC metric.Int64Counter
}
type ProcessorOption func(proc *Processor)

func WithLogger(l *log.Logger) ProcessorOption {
	return func(proc *Processor) {
		proc.l = l
	}
}

func WithOptions(opts Options) ProcessorOption {
	return func(proc *Processor) {
		proc.opts = opts
	}
}

func WithTracer(tracer trace.Tracer) ProcessorOption {
	return func(proc *Processor) {
		proc.tracer = tracer
	}
}

func NewProcessor(opts ...ProcessorOption) (*Processor, error) {
	ret := &Processor{
		l:    log.Default().Named("processing"),
		opts: DefaultOptions(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	if err := ret.opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid processing options: %w", err)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("racereplay")
	}
	ret.dropped, _ = meter.Int64Counter("vehicles_dropped",
		metric.WithDescription("vehicles removed from a run"))
	ret.framesC, _ = meter.Int64Counter("frames_synthesized",
		metric.WithDescription("number of produced frames"))
	return ret, nil
}

func (p *Processor) workers() int {
	if p.opts.Workers > 0 {
		return p.opts.Workers
	}
	return runtime.NumCPU()
}

// Run processes a complete session. Per vehicle failures are collected in
// Result.Dropped, only model.ErrEmptyTimeline and context errors abort.
//
//nolint:funlen // long function
func (p *Processor) Run(ctx context.Context, session *model.SessionData) (*Result, error) {
	ctx, span := p.tracer.Start(ctx, "processing.Run",
		trace.WithAttributes(
			attribute.Int("season", session.Info.Season),
			attribute.Int("round", session.Info.Round),
			attribute.String("session", session.Info.Session),
			attribute.Int("fps", p.opts.FPS)))
	defer span.End()

	runID, err := uuid.NewV4()
	if err != nil {
		return nil, err
	}
	ret := &Result{RunID: runID, Dropped: map[string]error{}}

	vehicles := slices.Clone(session.Vehicles)
	slices.SortStableFunc(vehicles, func(a, b model.VehicleData) int {
		return cmp.Compare(a.ID, b.ID)
	})

	stitched, err := p.stitchAll(ctx, vehicles, ret.Dropped)
	if err != nil {
		return nil, err
	}

	tl, err := timeline.Build(stitched, p.opts.FPS)
	if err != nil {
		return nil, err
	}
	_, _, _, unusable := timeline.Window(stitched)
	for _, id := range unusable {
		s, _ := lo.Find(stitched, func(s *model.VehicleTimeSeries) bool {
			return s.Vehicle == id
		})
		start, end := s.Range()
		ret.Dropped[id] = &model.UnusableRangeError{Vehicle: id, Start: start, End: end}
	}
	usable := lo.Filter(stitched, func(s *model.VehicleTimeSeries, _ int) bool {
		_, isDropped := ret.Dropped[s.Vehicle]
		return !isDropped
	})

	resampled, err := p.resampleAll(ctx, usable, tl)
	if err != nil {
		return nil, err
	}

	lapLength := session.Info.LapLength
	if !frames.ValidLapLength(lapLength) {
		lapLength = lapdata.EstimateLapLength(vehicles)
		p.l.Info("estimated lap length",
			log.Float64("given", session.Info.LapLength),
			log.Float64("estimated", lapLength))
	}
	tables := lapdata.Build(vehicles)
	synth := frames.NewSynthesizer(tl, resampled, lapLength,
		frames.WithLogger(p.l.Named("frames")),
		frames.WithLapTables(tables),
		frames.WithTrackStatus(session.TrackStatus),
		frames.WithRaceControl(session.RaceControl),
		frames.WithWeather(session.Weather),
		frames.WithMessageWindow(p.opts.MessageWindow, p.opts.MaxMessages),
		frames.WithFastestLapWindow(p.opts.FastestLapWindow),
	)
	_, fspan := p.tracer.Start(ctx, "processing.frames")
	all, err := synth.All(ctx)
	fspan.End()
	if err != nil {
		return nil, err
	}
	p.framesC.Add(ctx, int64(len(all)))

	droppedIDs := lo.Keys(ret.Dropped)
	slices.Sort(droppedIDs)
	for _, id := range droppedIDs {
		p.l.Warn("vehicle has no usable telemetry",
			log.String("vehicle", id), log.ErrorField(ret.Dropped[id]))
		p.dropped.Add(ctx, 1)
	}

	ret.Tables = tables
	ret.Replay = model.Replay{
		Meta: model.ReplayMeta{
			Info: session.Info,
			Vehicles: lo.FilterMap(vehicles, func(v model.VehicleData, _ int) (
				model.VehicleInfo, bool,
			) {
				_, ok := resampled[v.ID]
				return model.VehicleInfo{
					ID:     v.ID,
					Number: v.Number,
					Team:   v.Team,
					Color:  v.Color,
				}, ok
			}),
			LapLength:      lapLength,
			LapLengthValid: frames.ValidLapLength(lapLength),
			OverallBests:   tables.OverallBests(),
			Track:          referenceOutline(vehicles, tables),
			Dropped:        droppedReasons(ret.Dropped),
		},
		Timeline: *tl,
		Frames:   all,
	}
	p.l.Info("session processed",
		log.String("runID", runID.String()),
		log.Int("vehicles", len(resampled)),
		log.Int("dropped", len(ret.Dropped)),
		log.Int("frames", len(all)),
		log.Float64("duration", tl.Duration()))
	return ret, nil
}

// stitchAll runs the stitcher for each vehicle on the worker pool.
// The result is ordered like vehicles, failed vehicles are recorded in dropped.
//
//nolint:whitespace // can't make both editor and linter happy
func (p *Processor) stitchAll(
	ctx context.Context,
	vehicles []model.VehicleData,
	dropped map[string]error,
) ([]*model.VehicleTimeSeries, error) {
	ctx, span := p.tracer.Start(ctx, "processing.stitch")
	defer span.End()

	stitcher := stitch.NewStitcher(stitch.WithLogger(p.l.Named("stitch")))
	series := make([]*model.VehicleTimeSeries, len(vehicles))
	errs := make([]error, len(vehicles))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i := range vehicles {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			series[i], errs[i] = stitcher.Stitch(vehicles[i].ID, vehicles[i].Telemetry)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	ret := make([]*model.VehicleTimeSeries, 0, len(vehicles))
	for i := range vehicles {
		if errs[i] != nil {
			dropped[vehicles[i].ID] = errs[i]
			continue
		}
		ret = append(ret, series[i])
	}
	return ret, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (p *Processor) resampleAll(
	ctx context.Context,
	series []*model.VehicleTimeSeries,
	tl *model.Timeline,
) (map[string]*model.ResampledVehicleSeries, error) {
	ctx, span := p.tracer.Start(ctx, "processing.resample")
	defer span.End()

	results := make([]*model.ResampledVehicleSeries, len(series))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers())
	for i := range series {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = resample.Series(series[i], tl)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return lo.SliceToMap(results, func(r *model.ResampledVehicleSeries) (
		string, *model.ResampledVehicleSeries,
	) {
		return r.Vehicle, r
	}), nil
}

// referenceOutline uses the raw telemetry of the session best lap.
// If no lap time is known the lap with the most samples is used.
//
//nolint:whitespace // can't make both editor and linter happy
func referenceOutline(
	vehicles []model.VehicleData,
	tables *lapdata.Tables,
) model.TrackOutline {
	var best *model.RawLapTelemetry
	if ref, ok := tables.OverallBests().Lap.Get(); ok {
		for i := range vehicles {
			if vehicles[i].ID != ref.Vehicle {
				continue
			}
			for j := range vehicles[i].Telemetry {
				if vehicles[i].Telemetry[j].Lap == ref.Lap {
					best = &vehicles[i].Telemetry[j]
				}
			}
		}
	}
	if best == nil {
		for i := range vehicles {
			for j := range vehicles[i].Telemetry {
				l := &vehicles[i].Telemetry[j]
				if len(l.X) == len(l.Y) && (best == nil || len(l.X) > len(best.X)) {
					best = l
				}
			}
		}
	}
	if best == nil || len(best.X) != len(best.Y) {
		return model.TrackOutline{}
	}
	return model.TrackOutline{X: slices.Clone(best.X), Y: slices.Clone(best.Y)}
}

func droppedReasons(dropped map[string]error) map[string]string {
	if len(dropped) == 0 {
		return nil
	}
	return lo.MapValues(dropped, func(err error, _ string) string {
		return err.Error()
	})
}
