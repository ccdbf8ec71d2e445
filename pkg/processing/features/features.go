// Package features extracts per lap rows used by tyre degradation models.
package features

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/aarondl/opt/null"
	"github.com/samber/lo"
	"gonum.org/v1/gonum/stat"

	"github.com/mpapenbr/racereplay/pkg/model"
	"github.com/mpapenbr/racereplay/pkg/processing/lapdata"
)

// minStintLaps is the number of valid laps needed for a degradation rate
const minStintLaps = 3

type LapFeature struct {
	Vehicle      string            `json:"vehicle"`
	Lap          int               `json:"lap"`
	Stint        int               `json:"stint"`
	TyreAge      int               `json:"tyreAge"`
	Compound     null.Val[string]  `json:"compound"`
	LapTime      float64           `json:"lapTime"`
	S1           null.Val[float64] `json:"s1"`
	S2           null.Val[float64] `json:"s2"`
	S3           null.Val[float64] `json:"s3"`
	TrackTemp    null.Val[float64] `json:"trackTemp"`
	AirTemp      null.Val[float64] `json:"airTemp"`
	Humidity     null.Val[float64] `json:"humidity"`
	Rainfall     bool              `json:"rainfall"`
	IsValid      bool              `json:"isValid"`
	FuelLoad     float64           `json:"fuelLoad"` // 1 at start, 0 at the end of the race
	LapTimeDelta float64           `json:"lapTimeDelta"`
}

type StintSummary struct {
	Vehicle  string  `json:"vehicle"`
	Stint    int     `json:"stint"`
	Compound string  `json:"compound"`
	StartLap int     `json:"startLap"`
	EndLap   int     `json:"endLap"`
	Laps     int     `json:"laps"`
	DegRate  float64 `json:"degRate"` // seconds per lap of tyre age
	Best     float64 `json:"best"`
	Worst    float64 `json:"worst"`
}

type stintKey struct {
	vehicle string
	stint   int
}

// Extract computes one row per completed lap. A lap is valid if it is no pit
// lap and the track was green from lap start to lap end.
func Extract(session *model.SessionData, tables *lapdata.Tables) []LapFeature {
	status := slices.Clone(session.TrackStatus)
	slices.SortStableFunc(status, func(a, b model.TrackStatusEvent) int {
		return cmp.Compare(a.Time, b.Time)
	})
	weather := slices.Clone(session.Weather)
	slices.SortStableFunc(weather, func(a, b model.WeatherSample) int {
		return cmp.Compare(a.Time, b.Time)
	})

	ret := []LapFeature{}
	bests := map[stintKey]float64{}
	for _, e := range tables.Records() {
		rec := e.Record
		lapTime, ok := rec.LapTime.Get()
		if !ok || !(lapTime > 0) || math.IsInf(lapTime, 0) {
			continue
		}
		stint, age := tables.StintAt(e.Vehicle, rec.Lap)
		f := LapFeature{
			Vehicle:  e.Vehicle,
			Lap:      rec.Lap,
			Stint:    stint,
			TyreAge:  age,
			Compound: tables.Compound(e.Vehicle, rec.Lap),
			LapTime:  lapTime,
			S1:       rec.Sector1,
			S2:       rec.Sector2,
			S3:       rec.Sector3,
			FuelLoad: 0.5,
		}
		if session.Info.TotalLaps > 0 {
			f.FuelLoad = math.Max(0, 1-float64(rec.Lap)/float64(session.Info.TotalLaps))
		}
		f.IsValid = !rec.IsPitLap()
		if end, ok := rec.CompletedAt.Get(); ok {
			start := end - lapTime
			f.IsValid = f.IsValid && greenBetween(status, start, end)
			if w, ok := nearestWeather(weather, start); ok {
				f.TrackTemp = null.From(w.TrackTemp)
				f.AirTemp = null.From(w.AirTemp)
				f.Humidity = null.From(w.Humidity)
				f.Rainfall = w.Rainfall
			}
		}
		if f.IsValid {
			k := stintKey{e.Vehicle, stint}
			if b, has := bests[k]; !has || lapTime < b {
				bests[k] = lapTime
			}
		}
		ret = append(ret, f)
	}
	for i := range ret {
		if b, ok := bests[stintKey{ret[i].Vehicle, ret[i].Stint}]; ok {
			ret[i].LapTimeDelta = ret[i].LapTime - b
		}
	}
	fillWeather(ret)
	return ret
}

// Stints summarizes the valid laps per vehicle and stint. The degradation
// rate is the slope of the lap time delta over tyre age.
func Stints(rows []LapFeature) []StintSummary {
	groups := lo.GroupBy(rows, func(f LapFeature) stintKey {
		return stintKey{f.Vehicle, f.Stint}
	})
	ret := []StintSummary{}
	for k, all := range groups {
		valid := lo.Filter(all, func(f LapFeature, _ int) bool { return f.IsValid })
		if len(valid) == 0 {
			continue
		}
		s := StintSummary{
			Vehicle:  k.vehicle,
			Stint:    k.stint,
			Compound: valid[0].Compound.GetOrZero(),
			StartLap: lo.MinBy(all, func(a, b LapFeature) bool { return a.Lap < b.Lap }).Lap,
			EndLap:   lo.MaxBy(all, func(a, b LapFeature) bool { return a.Lap > b.Lap }).Lap,
			Best:     lo.Min(lo.Map(valid, func(f LapFeature, _ int) float64 { return f.LapTime })),
			Worst:    lo.Max(lo.Map(valid, func(f LapFeature, _ int) float64 { return f.LapTime })),
		}
		s.Laps = s.EndLap - s.StartLap + 1
		if len(valid) >= minStintLaps {
			xs := lo.Map(valid, func(f LapFeature, _ int) float64 { return float64(f.TyreAge) })
			ys := lo.Map(valid, func(f LapFeature, _ int) float64 { return f.LapTimeDelta })
			if lo.Max(xs) > lo.Min(xs) {
				_, s.DegRate = stat.LinearRegression(xs, ys, nil, false)
			}
		}
		ret = append(ret, s)
	}
	slices.SortFunc(ret, func(a, b StintSummary) int {
		return cmp.Or(cmp.Compare(a.Vehicle, b.Vehicle), cmp.Compare(a.Stint, b.Stint))
	})
	return ret
}

func greenBetween(status []model.TrackStatusEvent, start, end float64) bool {
	// status at lap start
	i := sort.Search(len(status), func(i int) bool { return status[i].Time > start })
	if i > 0 && !status[i-1].Status.IsGreen() {
		return false
	}
	for ; i < len(status) && status[i].Time <= end; i++ {
		if !status[i].Status.IsGreen() {
			return false
		}
	}
	return true
}

func nearestWeather(samples []model.WeatherSample, t float64) (model.WeatherSample, bool) {
	if len(samples) == 0 {
		return model.WeatherSample{}, false
	}
	i := sort.Search(len(samples), func(i int) bool { return samples[i].Time >= t })
	switch {
	case i == 0:
		return samples[0], true
	case i == len(samples):
		return samples[i-1], true
	}
	if samples[i].Time-t < t-samples[i-1].Time {
		return samples[i], true
	}
	return samples[i-1], true
}

// fillWeather replaces missing weather values with the mean of the known ones
func fillWeather(rows []LapFeature) {
	fill := func(get func(f *LapFeature) *null.Val[float64]) {
		known := []float64{}
		for i := range rows {
			if v, ok := get(&rows[i]).Get(); ok {
				known = append(known, v)
			}
		}
		if len(known) == 0 {
			return
		}
		mean := stat.Mean(known, nil)
		for i := range rows {
			if p := get(&rows[i]); !p.IsValue() {
				*p = null.From(mean)
			}
		}
	}
	fill(func(f *LapFeature) *null.Val[float64] { return &f.TrackTemp })
	fill(func(f *LapFeature) *null.Val[float64] { return &f.AirTemp })
	fill(func(f *LapFeature) *null.Val[float64] { return &f.Humidity })
}
