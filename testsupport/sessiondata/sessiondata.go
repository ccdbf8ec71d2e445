// Package sessiondata creates synthetic sessions for tests.
package sessiondata

import (
	"fmt"
	"math"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/racereplay/pkg/model"
)

const (
	DefaultLapLength = 1000.0
	radius           = DefaultLapLength / (2 * math.Pi)
)

type config struct {
	vehicles  int
	laps      int
	hz        float64
	lapLength float64
	startTime float64
}

type Option func(c *config)

func WithVehicles(n int) Option {
	return func(c *config) { c.vehicles = n }
}

func WithLaps(n int) Option {
	return func(c *config) { c.laps = n }
}

// WithSampleRate sets the raw samples per second
func WithSampleRate(hz float64) Option {
	return func(c *config) { c.hz = hz }
}

// WithLapLength sets the value stored in the session info, the simulated
// circuit always has DefaultLapLength
func WithLapLength(l float64) Option {
	return func(c *config) { c.lapLength = l }
}

func WithStartTime(t float64) Option {
	return func(c *config) { c.startTime = t }
}

// Session simulates vehicles driving on a circular track with constant speed.
// Vehicle i (0-based) is named "V<i+1>", starts i seconds later than the first
// vehicle and is slightly slower. Every vehicle changes tyres after half of
// the laps.
func Session(opts ...Option) *model.SessionData {
	c := &config{vehicles: 3, laps: 4, hz: 4, lapLength: DefaultLapLength, startTime: 1000}
	for _, opt := range opts {
		opt(c)
	}
	ret := &model.SessionData{
		Info: model.SessionInfo{
			Season:      2024,
			Round:       5,
			Session:     "R",
			SessionName: "Race",
			EventName:   "Test Grand Prix",
			CircuitName: "Ring",
			LapLength:   c.lapLength,
			TotalLaps:   c.laps,
		},
		TrackStatus: []model.TrackStatusEvent{
			{Time: c.startTime, Status: model.TrackGreen},
			{Time: c.startTime + 30, Status: model.TrackYellow},
			{Time: c.startTime + 40, Status: model.TrackGreen},
		},
		RaceControl: []model.RaceControlMessage{
			{Time: c.startTime + 12, Category: model.MsgTrackLimit, Vehicle: "V2", Message: "TRACK LIMITS"},
			{Time: c.startTime + 31, Category: model.MsgFlag, Message: "YELLOW IN SECTOR 2"},
		},
	}
	for i := 0; i*60 < int(float64(c.laps)*120); i++ {
		ret.Weather = append(ret.Weather, model.WeatherSample{
			Time:      c.startTime + float64(i*60),
			AirTemp:   21 + float64(i)*0.1,
			TrackTemp: 35,
			Humidity:  50,
			WindSpeed: 1.5,
		})
	}
	for v := range c.vehicles {
		ret.Vehicles = append(ret.Vehicles, vehicle(c, v))
	}
	return ret
}

func vehicle(c *config, idx int) model.VehicleData {
	speed := 50.0 - float64(idx)*0.5 // m/s
	lapTime := DefaultLapLength / speed
	start := c.startTime + float64(idx)
	ret := model.VehicleData{
		ID:     fmt.Sprintf("V%d", idx+1),
		Number: fmt.Sprintf("%d", idx+1),
		Team:   fmt.Sprintf("Team %d", idx%2+1),
		Color:  "#ff0000",
	}
	pitLap := max(c.laps/2, 1)
	for lap := 1; lap <= c.laps; lap++ {
		lapStart := start + float64(lap-1)*lapTime
		raw := model.RawLapTelemetry{Lap: lap}
		n := int(lapTime * c.hz)
		for s := range n {
			dt := float64(s) / c.hz
			d := dt * speed
			angle := d / radius
			raw.Time = append(raw.Time, lapStart+dt)
			raw.X = append(raw.X, radius*math.Cos(angle))
			raw.Y = append(raw.Y, radius*math.Sin(angle))
			raw.Distance = append(raw.Distance, d)
			raw.Speed = append(raw.Speed, speed*3.6)
			raw.Gear = append(raw.Gear, 3+s%3)
			raw.DRS = append(raw.DRS, 0)
			raw.Throttle = append(raw.Throttle, 100)
			raw.Brake = append(raw.Brake, 0)
		}
		ret.Telemetry = append(ret.Telemetry, raw)

		stint, compound := 1, "SOFT"
		if lap > pitLap {
			stint, compound = 2, "HARD"
		}
		rec := model.LapRecord{
			Lap:         lap,
			Stint:       stint,
			Compound:    null.From(compound),
			LapTime:     null.From(lapTime),
			Sector1:     null.From(lapTime * 0.3),
			Sector2:     null.From(lapTime * 0.4),
			Sector3:     null.From(lapTime * 0.3),
			CompletedAt: null.From(lapStart + lapTime),
		}
		if lap == pitLap {
			rec.PitInTime = null.From(lapStart + lapTime - 2)
		}
		if lap == pitLap+1 {
			rec.PitOutTime = null.From(lapStart + 2)
		}
		ret.Laps = append(ret.Laps, rec)
	}
	return ret
}
