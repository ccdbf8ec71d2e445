package model

// RawLapTelemetry holds the samples of one lap as delivered by the data provider.
// Throttle and Brake may be missing, all other channels must have the length of Time.
type RawLapTelemetry struct {
	Lap      int       `json:"lap"`
	Time     []float64 `json:"time"`
	X        []float64 `json:"x"`
	Y        []float64 `json:"y"`
	Distance []float64 `json:"distance"`
	Speed    []float64 `json:"speed"`
	Gear     []int     `json:"gear"`
	DRS      []int     `json:"drs"`
	Throttle []float64 `json:"throttle,omitempty"`
	Brake    []float64 `json:"brake,omitempty"`
}

// Samples returns the number of samples in this lap
func (r *RawLapTelemetry) Samples() int {
	return len(r.Time)
}
