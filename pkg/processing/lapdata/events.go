package lapdata

import (
	"cmp"
	"math"
	"slices"

	"github.com/aarondl/opt/null"
	"gonum.org/v1/gonum/stat"

	"github.com/mpapenbr/racereplay/pkg/model"
)

// FastestLapEvent marks the moment a new session best lap was completed
type FastestLapEvent struct {
	Time    float64 // session time of lap completion
	Vehicle string
	Lap     int
	LapTime float64
}

// FastestLapEvents returns the strict improvements of the session best lap
// ordered by completion time. Laps without positive lap time or without
// completion time are ignored.
func (t *Tables) FastestLapEvents() []FastestLapEvent {
	candidates := []FastestLapEvent{}
	for _, e := range t.Records() {
		lt, ok := e.Record.LapTime.Get()
		at, atOk := e.Record.CompletedAt.Get()
		if !ok || !atOk || !(lt > 0) || math.IsInf(lt, 0) || math.IsNaN(at) {
			continue
		}
		candidates = append(candidates, FastestLapEvent{
			Time:    at,
			Vehicle: e.Vehicle,
			Lap:     e.Record.Lap,
			LapTime: lt,
		})
	}
	slices.SortStableFunc(candidates, func(a, b FastestLapEvent) int {
		return cmp.Compare(a.Time, b.Time)
	})
	ret := []FastestLapEvent{}
	best := math.Inf(1)
	for _, c := range candidates {
		if c.LapTime < best {
			best = c.LapTime
			ret = append(ret, c)
		}
	}
	return ret
}

// FastestLapCursor walks through the fastest lap events with monotonic time
type FastestLapCursor struct {
	events []FastestLapEvent
	next   int
}

func NewFastestLapCursor(events []FastestLapEvent) *FastestLapCursor {
	return &FastestLapCursor{events: events}
}

// Advance moves the cursor to the last event at or before t.
// Calls must use non-decreasing t.
func (c *FastestLapCursor) Advance(t float64) (FastestLapEvent, bool) {
	for c.next < len(c.events) && c.events[c.next].Time <= t {
		c.next++
	}
	if c.next == 0 {
		return FastestLapEvent{}, false
	}
	return c.events[c.next-1], true
}

// OverallBests computes the session best sectors and lap.
// Ties are resolved in favor of the earlier vehicle/lap in Records order.
func (t *Tables) OverallBests() model.OverallBests {
	ret := model.OverallBests{}
	update := func(dst *null.Val[model.LapReference], vehicle string, rec *model.LapRecord,
		v null.Val[float64],
	) {
		val, ok := v.Get()
		if !ok || !(val > 0) {
			return
		}
		if cur, has := dst.Get(); has && cur.Time <= val {
			return
		}
		*dst = null.From(model.LapReference{Vehicle: vehicle, Lap: rec.Lap, Time: val})
	}
	for _, e := range t.Records() {
		update(&ret.S1, e.Vehicle, &e.Record, e.Record.Sector1)
		update(&ret.S2, e.Vehicle, &e.Record, e.Record.Sector2)
		update(&ret.S3, e.Vehicle, &e.Record, e.Record.Sector3)
		update(&ret.Lap, e.Vehicle, &e.Record, e.Record.LapTime)
	}
	return ret
}

// EstimateLapLength returns the median distance covered within a lap over all
// raw laps. Laps with less than 2 samples are ignored. Returns 0 if no lap
// can be used.
func EstimateLapLength(vehicles []model.VehicleData) float64 {
	spans := []float64{}
	for i := range vehicles {
		for _, l := range vehicles[i].Telemetry {
			if len(l.Distance) < 2 {
				continue
			}
			lo, hi := math.Inf(1), math.Inf(-1)
			for _, d := range l.Distance {
				if math.IsNaN(d) || math.IsInf(d, 0) {
					continue
				}
				lo, hi = math.Min(lo, d), math.Max(hi, d)
			}
			if hi > lo {
				spans = append(spans, hi-lo)
			}
		}
	}
	if len(spans) == 0 {
		return 0
	}
	slices.Sort(spans)
	return stat.Quantile(0.5, stat.Empirical, spans, nil)
}
