//nolint:funlen,lll // ok for tests
package features

import (
	"testing"

	"github.com/aarondl/opt/null"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/racereplay/pkg/model"
	"github.com/mpapenbr/racereplay/pkg/processing/lapdata"
	"github.com/mpapenbr/racereplay/testsupport/sessiondata"
)

func lapRec(lap, stint int, lapTime, completedAt float64) model.LapRecord {
	return model.LapRecord{
		Lap:         lap,
		Stint:       stint,
		Compound:    null.From("MEDIUM"),
		LapTime:     null.From(lapTime),
		CompletedAt: null.From(completedAt),
	}
}

func TestExtract(t *testing.T) {
	pitIn := lapRec(3, 1, 95, 290)
	pitIn.PitInTime = null.From(288.0)
	session := &model.SessionData{
		Info: model.SessionInfo{TotalLaps: 10},
		Vehicles: []model.VehicleData{{
			ID: "A",
			Laps: []model.LapRecord{
				lapRec(1, 1, 92, 100),
				lapRec(2, 1, 90, 190),
				pitIn,
				lapRec(4, 2, 91, 400), // yellow during this lap
				lapRec(5, 2, 89, 489),
				{Lap: 6, Stint: 2}, // no lap time
			},
		}},
		TrackStatus: []model.TrackStatusEvent{
			{Time: 0, Status: model.TrackGreen},
			{Time: 350, Status: model.TrackYellow},
			{Time: 380, Status: model.TrackGreen},
		},
		Weather: []model.WeatherSample{
			{Time: 0, TrackTemp: 30, AirTemp: 20, Humidity: 40},
			{Time: 300, TrackTemp: 34, AirTemp: 22, Humidity: 44, Rainfall: true},
		},
	}
	rows := Extract(session, lapdata.Build(session.Vehicles))
	require.Len(t, rows, 5)

	assert.True(t, rows[0].IsValid)
	assert.True(t, rows[1].IsValid)
	assert.False(t, rows[2].IsValid, "pit lap")
	assert.False(t, rows[3].IsValid, "yellow lap")
	assert.True(t, rows[4].IsValid)

	assert.InDelta(t, 2, rows[0].LapTimeDelta, 1e-9)
	assert.InDelta(t, 0, rows[1].LapTimeDelta, 1e-9)
	assert.InDelta(t, 5, rows[2].LapTimeDelta, 1e-9)
	// stint 2 best is lap 5
	assert.InDelta(t, 2, rows[3].LapTimeDelta, 1e-9)
	assert.InDelta(t, 0, rows[4].LapTimeDelta, 1e-9)

	assert.Equal(t, 2, rows[3].Stint)
	assert.Equal(t, 1, rows[3].TyreAge)
	assert.InDelta(t, 0.9, rows[0].FuelLoad, 1e-9)
	assert.Equal(t, null.From("MEDIUM"), rows[0].Compound)

	// lap 1 starts at 8 -> first sample, lap 5 starts at 400 -> second sample
	assert.Equal(t, null.From(30.0), rows[0].TrackTemp)
	assert.Equal(t, null.From(34.0), rows[4].TrackTemp)
	assert.True(t, rows[4].Rainfall)
}

func TestExtractFillsMissingWeather(t *testing.T) {
	rows := []LapFeature{
		{TrackTemp: null.From(30.0)},
		{TrackTemp: null.From(34.0)},
		{},
	}
	fillWeather(rows)
	assert.Equal(t, null.From(32.0), rows[2].TrackTemp)
	assert.False(t, rows[2].AirTemp.IsValue())
}

func TestStints(t *testing.T) {
	rows := []LapFeature{
		{Vehicle: "A", Lap: 1, Stint: 1, TyreAge: 1, LapTime: 90, LapTimeDelta: 0, IsValid: true, Compound: null.From("SOFT")},
		{Vehicle: "A", Lap: 2, Stint: 1, TyreAge: 2, LapTime: 90.2, LapTimeDelta: 0.2, IsValid: true, Compound: null.From("SOFT")},
		{Vehicle: "A", Lap: 3, Stint: 1, TyreAge: 3, LapTime: 90.4, LapTimeDelta: 0.4, IsValid: true, Compound: null.From("SOFT")},
		{Vehicle: "A", Lap: 4, Stint: 1, TyreAge: 4, LapTime: 110, LapTimeDelta: 20, IsValid: false, Compound: null.From("SOFT")},
		{Vehicle: "A", Lap: 5, Stint: 2, TyreAge: 1, LapTime: 91, IsValid: false},
		{Vehicle: "B", Lap: 1, Stint: 1, TyreAge: 1, LapTime: 93, IsValid: true, Compound: null.From("HARD")},
	}
	got := Stints(rows)
	require.Len(t, got, 2)

	a := got[0]
	assert.Equal(t, "A", a.Vehicle)
	assert.Equal(t, "SOFT", a.Compound)
	assert.Equal(t, 1, a.StartLap)
	assert.Equal(t, 4, a.EndLap)
	assert.Equal(t, 4, a.Laps)
	assert.InDelta(t, 0.2, a.DegRate, 1e-9)
	assert.InDelta(t, 90, a.Best, 1e-9)
	assert.InDelta(t, 90.4, a.Worst, 1e-9)

	b := got[1]
	assert.Equal(t, "B", b.Vehicle)
	assert.InDelta(t, 0, b.DegRate, 0)
}

func TestExtractSyntheticSession(t *testing.T) {
	session := sessiondata.Session(sessiondata.WithVehicles(2), sessiondata.WithLaps(6))
	rows := Extract(session, lapdata.Build(session.Vehicles))
	assert.Len(t, rows, 12)
	for _, r := range rows {
		assert.True(t, r.Compound.IsValue())
		assert.True(t, r.TrackTemp.IsValue())
	}
	summary := Stints(rows)
	assert.NotEmpty(t, summary)
}
