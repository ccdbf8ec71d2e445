package model

import "github.com/aarondl/opt/null"

// SessionInfo identifies a session and carries static session values
type SessionInfo struct {
	Season      int     `json:"season" validate:"gte=1950"`
	Round       int     `json:"round" validate:"gte=0"`
	Session     string  `json:"session" validate:"required"`
	SessionName string  `json:"sessionName"`
	EventName   string  `json:"eventName"`
	CircuitName string  `json:"circuitName"`
	LapLength   float64 `json:"lapLength"` // meters, <= 0 if unknown
	TotalLaps   int     `json:"totalLaps"`
}

// LapRecord contains the timing data of one lap of a vehicle.
// All session times are in seconds relative to the session start.
type LapRecord struct {
	Lap         int               `json:"lap"`
	Stint       int               `json:"stint"`
	Compound    null.Val[string]  `json:"compound"`
	LapTime     null.Val[float64] `json:"lapTime"`
	Sector1     null.Val[float64] `json:"sector1"`
	Sector2     null.Val[float64] `json:"sector2"`
	Sector3     null.Val[float64] `json:"sector3"`
	CompletedAt null.Val[float64] `json:"completedAt"` // session time at the end of sector 3
	PitInTime   null.Val[float64] `json:"pitInTime"`
	PitOutTime  null.Val[float64] `json:"pitOutTime"`
}

// IsPitLap reports whether the vehicle entered or left the pits on this lap
func (l *LapRecord) IsPitLap() bool {
	return l.PitInTime.IsValue() || l.PitOutTime.IsValue()
}

// Stint describes a range of laps on one set of tyres. EndLap is inclusive.
type Stint struct {
	Stint    int    `json:"stint"`
	Compound string `json:"compound"`
	StartLap int    `json:"startLap"`
	EndLap   int    `json:"endLap"`
}

type VehicleData struct {
	ID        string            `json:"id"`
	Number    string            `json:"number"`
	Team      string            `json:"team"`
	Color     string            `json:"color"`
	Telemetry []RawLapTelemetry `json:"telemetry"`
	Laps      []LapRecord       `json:"laps"`
	Stints    []Stint           `json:"stints"`
}

type TrackStatusEvent struct {
	Time   float64     `json:"time"`
	Status TrackStatus `json:"status"`
}

type RaceControlMessage struct {
	Time     float64         `json:"time"`
	Category MessageCategory `json:"category"`
	Vehicle  string          `json:"vehicle"`
	Message  string          `json:"message"`
}

type WeatherSample struct {
	Time      float64 `json:"time"`
	AirTemp   float64 `json:"airTemp"`
	TrackTemp float64 `json:"trackTemp"`
	Humidity  float64 `json:"humidity"`
	Rainfall  bool    `json:"rainfall"`
	WindSpeed float64 `json:"windSpeed"`
}

// SessionData is the complete, already loaded input of one session
type SessionData struct {
	Info        SessionInfo          `json:"info"`
	Vehicles    []VehicleData        `json:"vehicles"`
	TrackStatus []TrackStatusEvent   `json:"trackStatus"`
	RaceControl []RaceControlMessage `json:"raceControl"`
	Weather     []WeatherSample      `json:"weather"`
}
