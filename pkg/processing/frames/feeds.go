package frames

import (
	"cmp"
	"math"
	"slices"
	"sort"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/racereplay/pkg/model"
)

// statusCursor returns the latest track status at or before t.
// Queries must use non-decreasing t.
type statusCursor struct {
	events []model.TrackStatusEvent
	next   int
}

func (c *statusCursor) at(t float64) model.TrackStatus {
	for c.next < len(c.events) && c.events[c.next].Time <= t {
		c.next++
	}
	if c.next == 0 {
		return model.TrackGreen
	}
	if s := c.events[c.next-1].Status; s != model.TrackStatusNone {
		return s
	}
	return model.TrackGreen
}

type messageLog struct {
	msgs   []model.RaceControlMessage // ordered by time
	window float64
	limit  int
}

// active returns the messages issued within the window before t,
// most recent first.
func (m *messageLog) active(t float64) []model.ActiveMessage {
	lo := sort.Search(len(m.msgs), func(i int) bool {
		return m.msgs[i].Time >= t-m.window
	})
	hi := sort.Search(len(m.msgs), func(i int) bool {
		return m.msgs[i].Time > t
	})
	if lo >= hi {
		return nil
	}
	ret := make([]model.ActiveMessage, 0, hi-lo)
	for _, msg := range m.msgs[lo:hi] {
		ret = append(ret, model.ActiveMessage{
			Category: msg.Category,
			Vehicle:  msg.Vehicle,
			Message:  msg.Message,
			Age:      t - msg.Time,
		})
	}
	slices.SortStableFunc(ret, func(a, b model.ActiveMessage) int {
		return cmp.Compare(a.Age, b.Age)
	})
	if len(ret) > m.limit {
		ret = ret[:m.limit]
	}
	return ret
}

type weatherLog struct {
	samples []model.WeatherSample // ordered by time
}

// nearest returns the sample closest to t. On equal distance the earlier
// sample wins.
func (w *weatherLog) nearest(t float64) null.Val[model.WeatherSample] {
	if len(w.samples) == 0 {
		return null.Val[model.WeatherSample]{}
	}
	i := sort.Search(len(w.samples), func(i int) bool {
		return w.samples[i].Time >= t
	})
	switch {
	case i == 0:
		return null.From(w.samples[0])
	case i == len(w.samples):
		return null.From(w.samples[i-1])
	}
	before, after := w.samples[i-1], w.samples[i]
	if math.Abs(after.Time-t) < math.Abs(t-before.Time) {
		return null.From(after)
	}
	return null.From(before)
}
