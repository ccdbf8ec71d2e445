package export

import (
	"math"

	"github.com/aarondl/opt/null"
	"github.com/shopspring/decimal"

	"github.com/mpapenbr/racereplay/pkg/model"
)

// Vehicle is the compact per vehicle state of a frame
type Vehicle struct {
	X        null.Val[float64] `json:"x"`
	Y        null.Val[float64] `json:"y"`
	Speed    int               `json:"s"`
	Gear     int               `json:"g"`
	DRS      int               `json:"d"`
	Throttle int               `json:"t"`
	Brake    int               `json:"b"`
	Lap      int               `json:"l"`
	Rank     int               `json:"p"`
	Progress null.Val[float64] `json:"pr"`
	Distance null.Val[float64] `json:"di"`
	Compound null.Val[string]  `json:"cp"`
	Stint    int               `json:"st"`
	TyreAge  int               `json:"tl"`
	PitCount int               `json:"pc"`
	S1       null.Val[float64] `json:"s1"`
	S2       null.Val[float64] `json:"s2"`
	S3       null.Val[float64] `json:"s3"`
	LapTime  null.Val[float64] `json:"lt"`
}

type Weather struct {
	AirTemp   null.Val[float64] `json:"at"`
	TrackTemp null.Val[float64] `json:"tt"`
	Humidity  null.Val[float64] `json:"hu"`
	Rainfall  bool              `json:"rf"`
	WindSpeed null.Val[float64] `json:"ws"`
}

type FastestLap struct {
	Vehicle string            `json:"dr"`
	LapTime null.Val[float64] `json:"tm"`
	Lap     int               `json:"ln"`
	IsNew   bool              `json:"nw"`
}

type PositionChange struct {
	Vehicle string            `json:"dr"`
	From    int               `json:"fp"`
	To      int               `json:"tp"`
	Passed  null.Val[string]  `json:"pa"`
	T       null.Val[float64] `json:"t"`
}

type Message struct {
	Category model.MessageCategory `json:"ty"`
	Vehicle  string                `json:"dr"`
	Message  string                `json:"mg"`
	Age      null.Val[float64]     `json:"ag"`
}

// Frame is the compact frame format. Weather, TrackStatus and FastestLap are
// only present if they differ from the previous frame of the same chunk.
// Once set these values never return to null, so an omitted field always
// means "unchanged".
type Frame struct {
	T               float64            `json:"t"`
	Vehicles        map[string]Vehicle `json:"dr"`
	Weather         *Weather           `json:"w,omitempty"`
	TrackStatus     *model.TrackStatus `json:"ts,omitempty"`
	FastestLap      *FastestLap        `json:"fl,omitempty"`
	PositionChanges []PositionChange   `json:"pc,omitempty"`
	Messages        []Message          `json:"rm,omitempty"`
}

// round returns v with the given number of decimal places, null for non finite values
func round(v float64, places int32) null.Val[float64] {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return null.Val[float64]{}
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return null.From(f)
}

func roundInt(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return int(decimal.NewFromFloat(v).Round(0).IntPart())
}

func roundOpt(v null.Val[float64], places int32) null.Val[float64] {
	if x, ok := v.Get(); ok {
		return round(x, places)
	}
	return null.Val[float64]{}
}

func compactVehicle(s *model.VehicleState) Vehicle {
	return Vehicle{
		X:        round(s.X, 1),
		Y:        round(s.Y, 1),
		Speed:    roundInt(s.Speed),
		Gear:     s.Gear,
		DRS:      s.DRS,
		Throttle: roundInt(s.Throttle),
		Brake:    roundInt(s.Brake),
		Lap:      s.Lap,
		Rank:     s.Rank,
		Progress: round(s.Progress, 1),
		Distance: round(s.Distance, 1),
		Compound: s.Compound,
		Stint:    s.Stint,
		TyreAge:  s.TyreAge,
		PitCount: s.PitCount,
		S1:       roundOpt(s.Sectors.S1, 3),
		S2:       roundOpt(s.Sectors.S2, 3),
		S3:       roundOpt(s.Sectors.S3, 3),
		LapTime:  roundOpt(s.LapTime, 3),
	}
}

func compactWeather(w null.Val[model.WeatherSample]) *Weather {
	v, ok := w.Get()
	if !ok {
		return nil
	}
	return &Weather{
		AirTemp:   round(v.AirTemp, 1),
		TrackTemp: round(v.TrackTemp, 1),
		Humidity:  round(v.Humidity, 0),
		Rainfall:  v.Rainfall,
		WindSpeed: round(v.WindSpeed, 1),
	}
}

func compactFastestLap(fl null.Val[model.FastestLap]) *FastestLap {
	v, ok := fl.Get()
	if !ok || v.Vehicle == "" {
		return nil
	}
	return &FastestLap{
		Vehicle: v.Vehicle,
		LapTime: round(v.LapTime, 3),
		Lap:     v.Lap,
		IsNew:   v.IsNew,
	}
}

// Encoder converts frames into the compact format and keeps the state
// needed for delta encoding.
type Encoder struct {
	weather     *Weather
	trackStatus *model.TrackStatus
	fastestLap  *FastestLap
}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// Reset forgets the delta state, the next frame carries all values
func (e *Encoder) Reset() {
	*e = Encoder{}
}

func (e *Encoder) Encode(f *model.Frame) Frame {
	ret := Frame{
		T:        round(f.T, 2).GetOrZero(),
		Vehicles: make(map[string]Vehicle, len(f.Vehicles)),
	}
	for id := range f.Vehicles {
		s := f.Vehicles[id]
		ret.Vehicles[id] = compactVehicle(&s)
	}

	if w := compactWeather(f.Weather); !equalPtr(w, e.weather) {
		ret.Weather = w
		if w != nil {
			e.weather = w
		}
	}
	if f.TrackStatus != "" && (e.trackStatus == nil || *e.trackStatus != f.TrackStatus) {
		ts := f.TrackStatus
		ret.TrackStatus = &ts
		e.trackStatus = &ts
	}
	if fl := compactFastestLap(f.FastestLap); !equalPtr(fl, e.fastestLap) {
		ret.FastestLap = fl
		if fl != nil {
			e.fastestLap = fl
		}
	}

	for _, c := range f.PositionChanges {
		ret.PositionChanges = append(ret.PositionChanges, PositionChange{
			Vehicle: c.Vehicle,
			From:    c.From,
			To:      c.To,
			Passed:  c.Passed,
			T:       round(c.T, 2),
		})
	}
	for _, m := range f.Messages {
		ret.Messages = append(ret.Messages, Message{
			Category: m.Category,
			Vehicle:  m.Vehicle,
			Message:  m.Message,
			Age:      round(m.Age, 1),
		})
	}
	return ret
}

func equalPtr[T comparable](a, b *T) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
