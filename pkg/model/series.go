package model

// VehicleTimeSeries contains all samples of a vehicle ordered by session time.
// All channel slices have the same length. Treat as read-only once created.
type VehicleTimeSeries struct {
	Vehicle  string    `json:"vehicle"`
	Time     []float64 `json:"time"`
	X        []float64 `json:"x"`
	Y        []float64 `json:"y"`
	Distance []float64 `json:"distance"`
	Speed    []float64 `json:"speed"`
	Throttle []float64 `json:"throttle"`
	Brake    []float64 `json:"brake"`
	Gear     []int     `json:"gear"`
	DRS      []int     `json:"drs"`
	Lap      []int     `json:"lap"`
}

func (s *VehicleTimeSeries) Len() int {
	return len(s.Time)
}

// Range returns the first and last timestamp. Callers must ensure Len() > 0.
func (s *VehicleTimeSeries) Range() (start, end float64) {
	return s.Time[0], s.Time[len(s.Time)-1]
}

// Timeline is the shared fixed step time axis.
// Times are relative to T0 which holds the absolute session time of index 0.
type Timeline struct {
	FPS   int       `json:"fps"`
	T0    float64   `json:"t0"`
	Times []float64 `json:"times"`
}

func (t *Timeline) Len() int {
	return len(t.Times)
}

func (t *Timeline) Step() float64 {
	return 1 / float64(t.FPS)
}

// Abs returns the absolute session time of index i
func (t *Timeline) Abs(i int) float64 {
	return t.T0 + t.Times[i]
}

// Duration is the replay time of the last frame
func (t *Timeline) Duration() float64 {
	if len(t.Times) == 0 {
		return 0
	}
	return t.Times[len(t.Times)-1]
}

// ResampledVehicleSeries holds the channels of a vehicle aligned 1:1 with a Timeline
type ResampledVehicleSeries struct {
	Vehicle  string    `json:"vehicle"`
	X        []float64 `json:"x"`
	Y        []float64 `json:"y"`
	Distance []float64 `json:"distance"`
	Speed    []float64 `json:"speed"`
	Throttle []float64 `json:"throttle"`
	Brake    []float64 `json:"brake"`
	Gear     []int     `json:"gear"`
	DRS      []int     `json:"drs"`
	Lap      []int     `json:"lap"`
}

func (r *ResampledVehicleSeries) Len() int {
	return len(r.X)
}
