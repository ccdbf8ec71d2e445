package lapdata

import (
	"cmp"
	"slices"
	"strings"

	"github.com/aarondl/opt/null"
	"github.com/samber/lo"

	"github.com/mpapenbr/racereplay/pkg/model"
)

type key struct {
	vehicle string
	lap     int
}

// Tables holds per lap side data of all vehicles. Read-only after Build.
type Tables struct {
	laps   map[key]model.LapRecord
	stints map[string][]model.Stint
}

// Build creates the lookup tables from the vehicle data.
// Vehicles without explicit stints get stints derived from their lap records.
func Build(vehicles []model.VehicleData) *Tables {
	ret := &Tables{
		laps:   make(map[key]model.LapRecord),
		stints: make(map[string][]model.Stint),
	}
	for i := range vehicles {
		v := &vehicles[i]
		for _, l := range v.Laps {
			if c, ok := l.Compound.Get(); ok {
				l.Compound = null.From(strings.ToUpper(c))
			}
			ret.laps[key{v.ID, l.Lap}] = l
		}
		stints := slices.Clone(v.Stints)
		if len(stints) == 0 {
			stints = DeriveStints(v.Laps)
		}
		slices.SortStableFunc(stints, func(a, b model.Stint) int {
			return cmp.Compare(a.StartLap, b.StartLap)
		})
		ret.stints[v.ID] = stints
	}
	return ret
}

// Lap returns the lap record of a vehicle
func (t *Tables) Lap(vehicle string, lap int) (model.LapRecord, bool) {
	ret, ok := t.laps[key{vehicle, lap}]
	return ret, ok
}

// Compound returns the tyre compound used on the lap. If the lap record
// doesn't know it, the compound of the covering stint is used.
func (t *Tables) Compound(vehicle string, lap int) null.Val[string] {
	if rec, ok := t.laps[key{vehicle, lap}]; ok && rec.Compound.IsValue() {
		return rec.Compound
	}
	if s, ok := t.stintFor(vehicle, lap); ok && s.Compound != "" {
		return null.From(strings.ToUpper(s.Compound))
	}
	return null.Val[string]{}
}

// StintAt returns the stint number and the tyre age on the given lap.
// If no stint covers the lap, stint 1 and tyre age 0 are returned.
func (t *Tables) StintAt(vehicle string, lap int) (stint, tyreAge int) {
	if s, ok := t.stintFor(vehicle, lap); ok {
		return s.Stint, lap - s.StartLap + 1
	}
	return 1, 0
}

func (t *Tables) Stints(vehicle string) []model.Stint {
	return t.stints[vehicle]
}

func (t *Tables) stintFor(vehicle string, lap int) (model.Stint, bool) {
	for _, s := range t.stints[vehicle] {
		if s.StartLap > lap {
			break
		}
		if lap <= s.EndLap {
			return s, true
		}
	}
	return model.Stint{}, false
}

// Records returns all lap records ordered by vehicle and lap
func (t *Tables) Records() []LapEntry {
	ret := lo.MapToSlice(t.laps, func(k key, v model.LapRecord) LapEntry {
		return LapEntry{Vehicle: k.vehicle, Record: v}
	})
	slices.SortFunc(ret, func(a, b LapEntry) int {
		return cmp.Or(
			cmp.Compare(a.Vehicle, b.Vehicle),
			cmp.Compare(a.Record.Lap, b.Record.Lap))
	})
	return ret
}

type LapEntry struct {
	Vehicle string
	Record  model.LapRecord
}

// DeriveStints groups consecutive laps with the same stint number.
// Laps without stint number are assigned to stint 1.
func DeriveStints(laps []model.LapRecord) []model.Stint {
	sorted := slices.Clone(laps)
	slices.SortStableFunc(sorted, func(a, b model.LapRecord) int {
		return cmp.Compare(a.Lap, b.Lap)
	})
	ret := []model.Stint{}
	for _, l := range sorted {
		num := max(l.Stint, 1)
		if n := len(ret); n > 0 && ret[n-1].Stint == num {
			ret[n-1].EndLap = l.Lap
			if ret[n-1].Compound == "" {
				ret[n-1].Compound = strings.ToUpper(l.Compound.GetOrZero())
			}
			continue
		}
		ret = append(ret, model.Stint{
			Stint:    num,
			Compound: strings.ToUpper(l.Compound.GetOrZero()),
			StartLap: l.Lap,
			EndLap:   l.Lap,
		})
	}
	return ret
}
