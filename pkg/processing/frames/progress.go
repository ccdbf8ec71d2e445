package frames

import (
	"cmp"
	"math"
	"slices"

	"github.com/aarondl/opt/null"

	"github.com/mpapenbr/racereplay/pkg/model"
)

// ValidLapLength reports whether lapLength can be used for progress computation
func ValidLapLength(lapLength float64) bool {
	return lapLength > 0 && !math.IsInf(lapLength, 0)
}

// Progress computes the overall race distance used for ranking.
// The lap number is clamped to >= 1. With an invalid lap length the raw
// distance is returned.
func Progress(lap int, distance, lapLength float64) float64 {
	if !ValidLapLength(lapLength) {
		return distance
	}
	inLap := math.Mod(distance, lapLength)
	if inLap < 0 {
		inLap += lapLength
	}
	return float64(max(lap, 1)-1)*lapLength + inLap
}

// rankByProgress orders the vehicles by descending progress. The sort is
// stable, so equal progress keeps the order of prevOrder.
func rankByProgress(
	prevOrder []string,
	progress map[string]float64,
) (order []string, ranks map[string]int) {
	order = slices.Clone(prevOrder)
	slices.SortStableFunc(order, func(a, b string) int {
		return cmp.Compare(progress[b], progress[a])
	})
	ranks = make(map[string]int, len(order))
	for i, v := range order {
		ranks[v] = i + 1
	}
	return order, ranks
}

// detectOvertakes compares the ranks of two consecutive frames.
// vehicles determines the order of the reported changes.
// The passed vehicle is the one now directly behind whose previous rank
// was better than the previous rank of the improving vehicle.
//
//nolint:whitespace // can't make both editor and linter happy
func detectOvertakes(
	vehicles []string,
	order []string,
	prev, curr map[string]int,
	t float64,
) []model.PositionChange {
	var ret []model.PositionChange
	if prev == nil {
		return ret
	}
	for _, v := range vehicles {
		now, ok := curr[v]
		if !ok {
			continue
		}
		before, ok := prev[v]
		if !ok || now >= before {
			continue
		}
		change := model.PositionChange{Vehicle: v, From: before, To: now, T: t}
		if now < len(order) {
			other := order[now] // rank now+1
			if p, ok := prev[other]; ok && p < before {
				change.Passed = null.From(other)
			}
		}
		ret = append(ret, change)
	}
	return ret
}
