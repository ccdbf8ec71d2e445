//nolint:thelper,funlen,lll // ok for tests
package export

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/aarondl/opt/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racereplay/pkg/model"
	"github.com/mpapenbr/racereplay/pkg/processing"
	"github.com/mpapenbr/racereplay/pkg/processing/features"
	"github.com/mpapenbr/racereplay/testsupport/sessiondata"
)

func buildResult(t *testing.T) (*processing.Result, *model.SessionData) {
	opts := processing.DefaultOptions()
	opts.FPS = 5
	p, err := processing.NewProcessor(processing.WithOptions(opts))
	require.NoError(t, err)
	session := sessiondata.Session(sessiondata.WithLaps(2))
	res, err := p.Run(context.Background(), session)
	require.NoError(t, err)
	return res, session
}

func newExporter(t *testing.T, opts Options) *Exporter {
	e, err := NewExporter(WithOptions(opts))
	require.NoError(t, err)
	return e
}

// expand applies the delta encoded values of a chunk
func expand(chunk []Frame) (status []model.TrackStatus, weather []*Weather) {
	var (
		curStatus  model.TrackStatus
		curWeather *Weather
	)
	for i := range chunk {
		if chunk[i].TrackStatus != nil {
			curStatus = *chunk[i].TrackStatus
		}
		if chunk[i].Weather != nil {
			curWeather = chunk[i].Weather
		}
		status = append(status, curStatus)
		weather = append(weather, curWeather)
	}
	return status, weather
}

func TestExport(t *testing.T) {
	res, _ := buildResult(t)
	out := t.TempDir()
	e := newExporter(t, Options{OutputDir: out, ChunkSize: 50})

	dir, err := e.Export(context.Background(), &res.Replay, nil)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(out, "2024_R05_R"), dir)

	n := len(res.Replay.Frames)
	wantChunks := (n + 49) / 50

	var m Manifest
	require.NoError(t, ReadJSON(dir, "manifest", &m))
	assert.Equal(t, n, m.TotalFrames)
	assert.Equal(t, wantChunks, m.ChunkCount)
	assert.Equal(t, 50, m.ChunkSize)
	assert.Equal(t, 5, m.FPS)
	assert.False(t, m.HasFeatures)
	assert.Len(t, m.Vehicles, 3)
	assert.Equal(t, "V1", m.TopSpeeds[0].Vehicle)
	require.NotNil(t, m.OverallBests.Lap)
	assert.Equal(t, "V1", m.OverallBests.Lap.Vehicle)

	var track Track
	require.NoError(t, ReadJSON(dir, "track", &track))
	require.NotEmpty(t, track.X)
	radius := sessiondata.DefaultLapLength / (2 * math.Pi)
	assert.InDelta(t, -radius-trackPadding, track.Bounds.XMin, 0.2)
	assert.InDelta(t, radius+trackPadding, track.Bounds.XMax, 0.2)

	frameIdx := 0
	for c := range wantChunks {
		var chunk []Frame
		require.NoError(t, ReadJSON(dir, ChunkName(c), &chunk))
		require.NotNil(t, chunk[0].TrackStatus, "chunk %d starts without track status", c)
		require.NotNil(t, chunk[0].Weather, "chunk %d starts without weather", c)

		status, weather := expand(chunk)
		for i := range chunk {
			f := &res.Replay.Frames[frameIdx]
			assert.Equal(t, f.TrackStatus, status[i])
			assert.Equal(t, compactWeather(f.Weather), weather[i])
			assert.Len(t, chunk[i].Vehicles, len(f.Vehicles))
			frameIdx++
		}
	}
	assert.Equal(t, n, frameIdx)

	_, err = os.Stat(filepath.Join(dir, ChunkName(wantChunks)+extJSON))
	assert.ErrorIs(t, err, os.ErrNotExist)

	idx := ReadIndex(out)
	require.Len(t, idx, 1)
	assert.Equal(t, "2024_R05_R", idx[0].Dir)
	assert.Equal(t, n, idx[0].TotalFrames)
}

func TestExportGzipAndStale(t *testing.T) {
	res, session := buildResult(t)
	out := t.TempDir()

	_, err := newExporter(t, Options{OutputDir: out, ChunkSize: 20}).
		Export(context.Background(), &res.Replay, nil)
	require.NoError(t, err)

	rows := features.Extract(session, res.Tables)
	feat := &Features{Laps: rows, Stints: features.Stints(rows)}
	dir, err := newExporter(t, Options{OutputDir: out, ChunkSize: 1000, Gzip: true}).
		Export(context.Background(), &res.Replay, feat)
	require.NoError(t, err)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t,
		[]string{"manifest.json", "track.json.gz", "chunk_000.json.gz", "features.json.gz"},
		names)

	var m Manifest
	require.NoError(t, ReadJSON(dir, "manifest", &m))
	assert.True(t, m.Compressed)
	assert.True(t, m.HasFeatures)

	var got Features
	require.NoError(t, ReadJSON(dir, "features", &got))
	assert.Len(t, got.Laps, len(rows))

	var chunk []Frame
	require.NoError(t, ReadJSON(dir, ChunkName(0), &chunk))
	assert.Len(t, chunk, len(res.Replay.Frames))

	assert.Len(t, ReadIndex(out), 1)
}

func TestEncoderDelta(t *testing.T) {
	weather := null.From(model.WeatherSample{AirTemp: 21.04, TrackTemp: 35, Humidity: 50.4})
	fl := null.From(model.FastestLap{Vehicle: "A", LapTime: 90.12345, Lap: 3, IsNew: true})
	frames := []model.Frame{
		{T: 0, TrackStatus: model.TrackGreen, Weather: weather},
		{T: 0.2, TrackStatus: model.TrackGreen, Weather: weather},
		{T: 0.4, TrackStatus: model.TrackYellow, Weather: weather, FastestLap: fl},
		{T: 0.6, TrackStatus: model.TrackYellow, Weather: weather, FastestLap: fl},
	}
	enc := NewEncoder()
	got := make([]Frame, len(frames))
	for i := range frames {
		got[i] = enc.Encode(&frames[i])
	}
	green, yellow := model.TrackGreen, model.TrackYellow
	wantWeather := &Weather{AirTemp: null.From(21.0), TrackTemp: null.From(35.0), Humidity: null.From(50.0), WindSpeed: null.From(0.0)}
	want := []Frame{
		{T: 0, Vehicles: map[string]Vehicle{}, TrackStatus: &green, Weather: wantWeather},
		{T: 0.2, Vehicles: map[string]Vehicle{}},
		{T: 0.4, Vehicles: map[string]Vehicle{}, TrackStatus: &yellow, FastestLap: &FastestLap{Vehicle: "A", LapTime: null.From(90.123), Lap: 3, IsNew: true}},
		{T: 0.6, Vehicles: map[string]Vehicle{}},
	}
	assert.Equal(t, want, got)

	enc.Reset()
	again := enc.Encode(&frames[3])
	assert.NotNil(t, again.TrackStatus)
	assert.NotNil(t, again.Weather)
	assert.NotNil(t, again.FastestLap)
}

func TestRound(t *testing.T) {
	tests := []struct {
		name   string
		v      float64
		places int32
		want   null.Val[float64]
	}{
		{name: "half up", v: 1.25, places: 1, want: null.From(1.3)},
		{name: "negative", v: -3.14159, places: 3, want: null.From(-3.142)},
		{name: "integer", v: 49.6, places: 0, want: null.From(50.0)},
		{name: "nan", v: math.NaN(), places: 1},
		{name: "inf", v: math.Inf(1), places: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, round(tt.v, tt.places))
		})
	}
	assert.Equal(t, 180, roundInt(179.5))
	assert.Equal(t, 0, roundInt(math.NaN()))
}

func TestSortIndex(t *testing.T) {
	entries := []IndexEntry{
		{Dir: "a", Season: 2023, Round: 10, Session: "R"},
		{Dir: "b", Season: 2024, Round: 3, Session: "FP1"},
		{Dir: "c", Season: 2024, Round: 3, Session: "Q"},
		{Dir: "d", Season: 2024, Round: 3, Session: "R"},
		{Dir: "e", Season: 2024, Round: 5, Session: "SQ"},
		{Dir: "f", Season: 2024, Round: 3, Session: "XX"},
	}
	SortIndex(entries)
	got := make([]string, len(entries))
	for i := range entries {
		got[i] = entries[i].Dir
	}
	assert.Equal(t, []string{"e", "d", "c", "b", "f", "a"}, got)
}

func TestReadIndexBroken(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, indexFile), []byte("{not json"), 0o600))
	assert.Empty(t, ReadIndex(dir))
	assert.Empty(t, ReadIndex(filepath.Join(dir, "missing")))
}

func TestOptionsValidation(t *testing.T) {
	_, err := NewExporter(WithOptions(Options{OutputDir: "x", ChunkSize: 0}))
	assert.Error(t, err)
	_, err = NewExporter(WithOptions(Options{ChunkSize: 10}))
	assert.Error(t, err)
}
