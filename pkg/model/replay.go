package model

import "github.com/aarondl/opt/null"

type LapReference struct {
	Vehicle string  `json:"vehicle"`
	Lap     int     `json:"lap"`
	Time    float64 `json:"time"`
}

// OverallBests holds the session best sectors and lap
type OverallBests struct {
	S1  null.Val[LapReference] `json:"s1"`
	S2  null.Val[LapReference] `json:"s2"`
	S3  null.Val[LapReference] `json:"s3"`
	Lap null.Val[LapReference] `json:"lap"`
}

// TrackOutline is a reference polyline of the circuit
type TrackOutline struct {
	X []float64 `json:"x"`
	Y []float64 `json:"y"`
}

type VehicleInfo struct {
	ID     string `json:"id"`
	Number string `json:"number"`
	Team   string `json:"team"`
	Color  string `json:"color"`
}

// ReplayMeta describes a processed session
type ReplayMeta struct {
	Info           SessionInfo       `json:"info"`
	Vehicles       []VehicleInfo     `json:"vehicles"`
	LapLength      float64           `json:"lapLength"`
	LapLengthValid bool              `json:"lapLengthValid"`
	OverallBests   OverallBests      `json:"overallBests"`
	Track          TrackOutline      `json:"track"`
	Dropped        map[string]string `json:"dropped,omitempty"` // vehicle -> reason
}

// Replay is the downstream view of a processed session
type Replay struct {
	Meta     ReplayMeta `json:"meta"`
	Timeline Timeline   `json:"timeline"`
	Frames   []Frame    `json:"frames"`
}

// VehicleIDs returns the ids of all vehicles in the replay
func (r *Replay) VehicleIDs() []string {
	ret := make([]string, 0, len(r.Meta.Vehicles))
	for i := range r.Meta.Vehicles {
		ret = append(ret, r.Meta.Vehicles[i].ID)
	}
	return ret
}
