//nolint:funlen,lll // ok for tests
package lapdata

import (
	"testing"

	"github.com/aarondl/opt/null"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/mpapenbr/racereplay/pkg/model"
)

func completed(lap int, lapTime, at float64) model.LapRecord {
	return model.LapRecord{
		Lap:         lap,
		LapTime:     null.From(lapTime),
		CompletedAt: null.From(at),
	}
}

func TestFastestLapCursor(t *testing.T) {
	// completion events (10, X, 90) and (40, Y, 88)
	tables := Build([]model.VehicleData{
		{ID: "X", Laps: []model.LapRecord{completed(1, 90, 10), completed(2, 95, 105)}},
		{ID: "Y", Laps: []model.LapRecord{completed(1, 100, 12), completed(2, 88, 40)}},
	})
	events := tables.FastestLapEvents()
	want := []FastestLapEvent{
		{Time: 10, Vehicle: "X", Lap: 1, LapTime: 90},
		{Time: 40, Vehicle: "Y", Lap: 2, LapTime: 88},
	}
	if diff := cmp.Diff(want, events); diff != "" {
		t.Fatalf("FastestLapEvents() mismatch (-want +got):\n%s", diff)
	}

	c := NewFastestLapCursor(events)
	_, ok := c.Advance(5)
	assert.False(t, ok)

	ev, ok := c.Advance(20)
	assert.True(t, ok)
	assert.Equal(t, "X", ev.Vehicle)

	ev, ok = c.Advance(41)
	assert.True(t, ok)
	assert.Equal(t, "Y", ev.Vehicle)

	ev, ok = c.Advance(50)
	assert.True(t, ok)
	assert.Equal(t, "Y", ev.Vehicle)
}

func TestFastestLapEventsIgnoresIncomplete(t *testing.T) {
	tables := Build([]model.VehicleData{
		{ID: "A", Laps: []model.LapRecord{
			{Lap: 1, LapTime: null.From(80.0)},      // no completion time
			{Lap: 2, CompletedAt: null.From(100.0)}, // no lap time
			completed(3, 0, 200),                    // invalid lap time
			completed(4, 91, 300),
		}},
	})
	events := tables.FastestLapEvents()
	assert.Len(t, events, 1)
	assert.Equal(t, 4, events[0].Lap)
}

func TestStintAt(t *testing.T) {
	tables := Build([]model.VehicleData{
		{ID: "A", Stints: []model.Stint{
			{Stint: 2, Compound: "hard", StartLap: 21, EndLap: 50},
			{Stint: 1, Compound: "medium", StartLap: 1, EndLap: 18},
		}},
	})
	tests := []struct {
		lap         int
		wantStint   int
		wantTyreAge int
	}{
		{lap: 1, wantStint: 1, wantTyreAge: 1},
		{lap: 18, wantStint: 1, wantTyreAge: 18},
		{lap: 19, wantStint: 1, wantTyreAge: 0},
		{lap: 21, wantStint: 2, wantTyreAge: 1},
		{lap: 30, wantStint: 2, wantTyreAge: 10},
		{lap: 51, wantStint: 1, wantTyreAge: 0},
	}
	for _, tt := range tests {
		stint, age := tables.StintAt("A", tt.lap)
		assert.Equal(t, tt.wantStint, stint, "lap %d", tt.lap)
		assert.Equal(t, tt.wantTyreAge, age, "lap %d", tt.lap)
	}
	stint, age := tables.StintAt("unknown", 3)
	assert.Equal(t, 1, stint)
	assert.Equal(t, 0, age)

	assert.Equal(t, null.From("HARD"), tables.Compound("A", 22))
	assert.False(t, tables.Compound("A", 19).IsValue())
}

func TestCompoundFromLapRecord(t *testing.T) {
	tables := Build([]model.VehicleData{
		{ID: "A", Laps: []model.LapRecord{
			{Lap: 1, Stint: 1, Compound: null.From("soft")},
			{Lap: 2, Stint: 1},
		}},
	})
	assert.Equal(t, null.From("SOFT"), tables.Compound("A", 1))
	// derived stint provides the compound for lap 2
	assert.Equal(t, null.From("SOFT"), tables.Compound("A", 2))
	assert.False(t, tables.Compound("A", 3).IsValue())
}

func TestDeriveStints(t *testing.T) {
	laps := []model.LapRecord{
		{Lap: 3, Stint: 1, Compound: null.From("soft")},
		{Lap: 1, Stint: 1, Compound: null.From("soft")},
		{Lap: 2, Stint: 1},
		{Lap: 4, Stint: 2, Compound: null.From("hard")},
		{Lap: 5, Stint: 2},
		{Lap: 6},
	}
	want := []model.Stint{
		{Stint: 1, Compound: "SOFT", StartLap: 1, EndLap: 3},
		{Stint: 2, Compound: "HARD", StartLap: 4, EndLap: 5},
		{Stint: 1, Compound: "", StartLap: 6, EndLap: 6},
	}
	if diff := cmp.Diff(want, DeriveStints(laps)); diff != "" {
		t.Errorf("DeriveStints() mismatch (-want +got):\n%s", diff)
	}
	assert.Empty(t, DeriveStints(nil))
}

func TestOverallBests(t *testing.T) {
	tables := Build([]model.VehicleData{
		{ID: "A", Laps: []model.LapRecord{
			{Lap: 1, Sector1: null.From(30.1), Sector2: null.From(40.0), LapTime: null.From(100.0)},
			{Lap: 2, Sector1: null.From(29.9), Sector3: null.From(0.0)},
		}},
		{ID: "B", Laps: []model.LapRecord{
			{Lap: 1, Sector1: null.From(29.9), Sector2: null.From(39.5), Sector3: null.From(25.0), LapTime: null.From(99.0)},
		}},
	})
	got := tables.OverallBests()
	assert.Equal(t, null.From(model.LapReference{Vehicle: "A", Lap: 2, Time: 29.9}), got.S1)
	assert.Equal(t, null.From(model.LapReference{Vehicle: "B", Lap: 1, Time: 39.5}), got.S2)
	assert.Equal(t, null.From(model.LapReference{Vehicle: "B", Lap: 1, Time: 25.0}), got.S3)
	assert.Equal(t, null.From(model.LapReference{Vehicle: "B", Lap: 1, Time: 99.0}), got.Lap)
}

func TestEstimateLapLength(t *testing.T) {
	vehicles := []model.VehicleData{
		{ID: "A", Telemetry: []model.RawLapTelemetry{
			{Distance: []float64{0, 2000, 5000}},
			{Distance: []float64{3, 5100}},
		}},
		{ID: "B", Telemetry: []model.RawLapTelemetry{
			{Distance: []float64{10, 5010}},
			{Distance: []float64{1}},
		}},
	}
	assert.InDelta(t, 5000, EstimateLapLength(vehicles), 1e-9)
	assert.InDelta(t, 0, EstimateLapLength(nil), 0)
}
