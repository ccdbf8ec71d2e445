// Package export writes processed replays as chunked json files for web clients.
//
// Layout:
//
//	<out>/sessions.json                  index of all exported sessions
//	<out>/<season>_R<round>_<session>/
//	    manifest.json                    session metadata
//	    track.json                       reference polyline with bounds
//	    chunk_000.json ... chunk_NNN.json  compact frames
//	    features.json                    per lap features (optional)
package export

import (
	"cmp"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"

	"github.com/aarondl/opt/null"
	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/mpapenbr/racereplay/log"
	"github.com/mpapenbr/racereplay/pkg/model"
	"github.com/mpapenbr/racereplay/pkg/processing/features"
)

const (
	DefaultChunkSize = 1000
	trackPadding     = 50.0
	topSpeedEntries  = 10
)

type Options struct {
	OutputDir string `validate:"required"`
	ChunkSize int    `validate:"gt=0"`
	// compress all session files except the manifest
	Gzip bool
}

var validate = validator.New(validator.WithRequiredStructEnabled())

type Bounds struct {
	XMin float64 `json:"xmin"`
	XMax float64 `json:"xmax"`
	YMin float64 `json:"ymin"`
	YMax float64 `json:"ymax"`
}

type Track struct {
	X      []float64 `json:"x"`
	Y      []float64 `json:"y"`
	Bounds Bounds    `json:"bounds"`
}

type TopSpeed struct {
	Vehicle string  `json:"vehicle"`
	Speed   float64 `json:"speed"`
}

type Best struct {
	Vehicle string            `json:"dr"`
	Lap     int               `json:"ln"`
	Time    null.Val[float64] `json:"tm"`
}

type Bests struct {
	S1  *Best `json:"s1"`
	S2  *Best `json:"s2"`
	S3  *Best `json:"s3"`
	Lap *Best `json:"lp"`
}

type Manifest struct {
	Season       int                 `json:"season"`
	Round        int                 `json:"round"`
	Session      string              `json:"session"`
	SessionName  string              `json:"sessionName"`
	EventName    string              `json:"eventName"`
	CircuitName  string              `json:"circuitName"`
	Vehicles     []model.VehicleInfo `json:"vehicles"`
	TotalLaps    int                 `json:"totalLaps"`
	LapLength    float64             `json:"lapLength"`
	FPS          int                 `json:"fps"`
	T0           float64             `json:"t0"`
	TotalFrames  int                 `json:"totalFrames"`
	ChunkSize    int                 `json:"chunkSize"`
	ChunkCount   int                 `json:"chunkCount"`
	Compressed   bool                `json:"compressed"`
	Duration     float64             `json:"duration"`
	TopSpeeds    []TopSpeed          `json:"topSpeeds"`
	OverallBests Bests               `json:"overallBests"`
	HasFeatures  bool                `json:"hasFeatures"`
}

// Features is the content of features.json
type Features struct {
	Laps   []features.LapFeature   `json:"laps"`
	Stints []features.StintSummary `json:"stints"`
}

type Exporter struct {
	l    *log.Logger
	opts Options
}

type ExporterOption func(e *Exporter)

func WithLogger(l *log.Logger) ExporterOption {
	return func(e *Exporter) {
		e.l = l
	}
}

func WithOptions(opts Options) ExporterOption {
	return func(e *Exporter) {
		e.opts = opts
	}
}

func NewExporter(opts ...ExporterOption) (*Exporter, error) {
	ret := &Exporter{
		l:    log.Default().Named("export"),
		opts: Options{OutputDir: "web/data", ChunkSize: DefaultChunkSize},
	}
	for _, opt := range opts {
		opt(ret)
	}
	if err := validate.Struct(ret.opts); err != nil {
		return nil, fmt.Errorf("invalid export options: %w", err)
	}
	return ret, nil
}

// SessionDir returns the directory name used for the session
func SessionDir(info *model.SessionInfo) string {
	return fmt.Sprintf("%d_R%02d_%s", info.Season, info.Round, info.Session)
}

// Export writes all files of the replay and updates the sessions index.
// It returns the session directory.
//
//nolint:whitespace // can't make both editor and linter happy
func (e *Exporter) Export(
	ctx context.Context,
	r *model.Replay,
	feat *Features,
) (string, error) {
	if len(r.Frames) == 0 {
		return "", model.ErrEmptyTimeline
	}
	dirName := SessionDir(&r.Meta.Info)
	dir := filepath.Join(e.opts.OutputDir, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	if err := removeStale(dir); err != nil {
		return "", err
	}

	if err := writeJSON(dir, "track", buildTrack(r.Meta.Track), e.opts.Gzip); err != nil {
		return "", err
	}
	chunks, err := e.writeChunks(ctx, dir, r.Frames)
	if err != nil {
		return "", err
	}
	if feat != nil {
		if err := writeJSON(dir, "features", feat, e.opts.Gzip); err != nil {
			return "", err
		}
	}
	m := NewManifest(r, e.opts.ChunkSize, e.opts.Gzip, feat != nil)
	if err := writeJSON(dir, "manifest", m, false); err != nil {
		return "", err
	}
	if err := UpdateIndex(e.opts.OutputDir, dirName, m); err != nil {
		return "", err
	}
	e.l.Info("export done",
		log.String("dir", dir),
		log.Int("frames", len(r.Frames)),
		log.Int("chunks", chunks))
	return dir, nil
}

//nolint:whitespace // can't make both editor and linter happy
func (e *Exporter) writeChunks(
	ctx context.Context,
	dir string,
	frames []model.Frame,
) (int, error) {
	enc := NewEncoder()
	chunks := lo.Chunk(frames, e.opts.ChunkSize)
	for idx, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		enc.Reset()
		data := make([]Frame, len(chunk))
		for i := range chunk {
			data[i] = enc.Encode(&chunk[i])
		}
		if err := writeJSON(dir, ChunkName(idx), data, e.opts.Gzip); err != nil {
			return 0, err
		}
		e.l.Debug("chunk written",
			log.Int("chunk", idx),
			log.Int("first", chunk[0].Index),
			log.Int("last", chunk[len(chunk)-1].Index))
	}
	return len(chunks), nil
}

// ChunkName returns the base name (without extension) of chunk idx
func ChunkName(idx int) string {
	return fmt.Sprintf("chunk_%03d", idx)
}

func buildTrack(t model.TrackOutline) Track {
	ret := Track{
		X: lo.Map(t.X, func(v float64, _ int) float64 { return round(v, 1).GetOrZero() }),
		Y: lo.Map(t.Y, func(v float64, _ int) float64 { return round(v, 1).GetOrZero() }),
	}
	if len(t.X) > 0 && len(t.Y) > 0 {
		ret.Bounds = Bounds{
			XMin: round(lo.Min(t.X)-trackPadding, 1).GetOrZero(),
			XMax: round(lo.Max(t.X)+trackPadding, 1).GetOrZero(),
			YMin: round(lo.Min(t.Y)-trackPadding, 1).GetOrZero(),
			YMax: round(lo.Max(t.Y)+trackPadding, 1).GetOrZero(),
		}
	}
	return ret
}

// NewManifest describes r split into chunks of chunkSize frames.
// r must contain at least one frame.
//
//nolint:whitespace // can't make both editor and linter happy
func NewManifest(
	r *model.Replay,
	chunkSize int,
	compressed, hasFeatures bool,
) *Manifest {
	info := &r.Meta.Info
	vehicles := slices.Clone(r.Meta.Vehicles)
	slices.SortFunc(vehicles, func(a, b model.VehicleInfo) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return &Manifest{
		Season:       info.Season,
		Round:        info.Round,
		Session:      info.Session,
		SessionName:  info.SessionName,
		EventName:    info.EventName,
		CircuitName:  info.CircuitName,
		Vehicles:     vehicles,
		TotalLaps:    info.TotalLaps,
		LapLength:    round(r.Meta.LapLength, 1).GetOrZero(),
		FPS:          r.Timeline.FPS,
		T0:           r.Timeline.T0,
		TotalFrames:  len(r.Frames),
		ChunkSize:    chunkSize,
		ChunkCount:   (len(r.Frames) + chunkSize - 1) / chunkSize,
		Compressed:   compressed,
		Duration:     round(r.Frames[len(r.Frames)-1].T, 2).GetOrZero(),
		TopSpeeds:    topSpeeds(r.Frames),
		OverallBests: compactBests(&r.Meta.OverallBests),
		HasFeatures:  hasFeatures,
	}
}

// topSpeeds returns the highest speed of each vehicle, fastest first
func topSpeeds(frames []model.Frame) []TopSpeed {
	best := map[string]float64{}
	for i := range frames {
		for id, s := range frames[i].Vehicles {
			if s.Speed > best[id] {
				best[id] = s.Speed
			}
		}
	}
	ret := lo.MapToSlice(best, func(id string, speed float64) TopSpeed {
		return TopSpeed{Vehicle: id, Speed: round(speed, 1).GetOrZero()}
	})
	slices.SortFunc(ret, func(a, b TopSpeed) int {
		if c := cmp.Compare(b.Speed, a.Speed); c != 0 {
			return c
		}
		return cmp.Compare(a.Vehicle, b.Vehicle)
	})
	if len(ret) > topSpeedEntries {
		ret = ret[:topSpeedEntries]
	}
	return ret
}

func compactBests(b *model.OverallBests) Bests {
	conv := func(v null.Val[model.LapReference]) *Best {
		ref, ok := v.Get()
		if !ok {
			return nil
		}
		return &Best{Vehicle: ref.Vehicle, Lap: ref.Lap, Time: round(ref.Time, 3)}
	}
	return Bests{S1: conv(b.S1), S2: conv(b.S2), S3: conv(b.S3), Lap: conv(b.Lap)}
}
