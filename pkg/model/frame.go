package model

import "github.com/aarondl/opt/null"

type SectorTimes struct {
	S1 null.Val[float64] `json:"s1"`
	S2 null.Val[float64] `json:"s2"`
	S3 null.Val[float64] `json:"s3"`
}

// VehicleState is the state of a single vehicle within a frame
type VehicleState struct {
	X        float64           `json:"x"`
	Y        float64           `json:"y"`
	Speed    float64           `json:"speed"`
	Distance float64           `json:"distance"`
	Throttle float64           `json:"throttle"`
	Brake    float64           `json:"brake"`
	Gear     int               `json:"gear"`
	DRS      int               `json:"drs"`
	Lap      int               `json:"lap"`
	Progress float64           `json:"progress"`
	Rank     int               `json:"rank"`
	Compound null.Val[string]  `json:"compound"`
	Sectors  SectorTimes       `json:"sectors"`
	LapTime  null.Val[float64] `json:"lapTime"`
	Stint    int               `json:"stint"`
	TyreAge  int               `json:"tyreAge"`
	PitCount int               `json:"pitCount"`
}

type ActiveMessage struct {
	Category MessageCategory `json:"category"`
	Vehicle  string          `json:"vehicle"`
	Message  string          `json:"message"`
	Age      float64         `json:"age"` // seconds since the message was issued
}

type FastestLap struct {
	Vehicle string  `json:"vehicle"`
	LapTime float64 `json:"lapTime"`
	Lap     int     `json:"lap"`
	SetAt   float64 `json:"setAt"` // session time of lap completion
	IsNew   bool    `json:"isNew"`
}

// PositionChange records an improved rank. Passed may be null if no vehicle
// could be attributed.
type PositionChange struct {
	Vehicle string           `json:"vehicle"`
	From    int              `json:"from"`
	To      int              `json:"to"`
	Passed  null.Val[string] `json:"passed"`
	T       float64          `json:"t"`
}

// Frame is a synchronized snapshot of the session at one timeline index
type Frame struct {
	Index           int                     `json:"index"`
	T               float64                 `json:"t"`
	SessionTime     float64                 `json:"sessionTime"`
	Vehicles        map[string]VehicleState `json:"vehicles"`
	TrackStatus     TrackStatus             `json:"trackStatus"`
	Messages        []ActiveMessage         `json:"messages"`
	Weather         null.Val[WeatherSample] `json:"weather"`
	FastestLap      null.Val[FastestLap]    `json:"fastestLap"`
	PositionChanges []PositionChange        `json:"positionChanges"`
}

// Order returns the vehicles sorted by rank
func (f *Frame) Order() []string {
	ret := make([]string, len(f.Vehicles))
	for id, v := range f.Vehicles {
		if v.Rank >= 1 && v.Rank <= len(ret) {
			ret[v.Rank-1] = id
		}
	}
	return ret
}
