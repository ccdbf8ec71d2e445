package export

import (
	"cmp"
	"os"
	"path/filepath"
	"slices"

	"github.com/ohler55/ojg/oj"
	"github.com/samber/lo"
)

const indexFile = "sessions.json"

// IndexEntry describes one exported session in sessions.json
type IndexEntry struct {
	Dir         string  `json:"dir"`
	Season      int     `json:"season"`
	Round       int     `json:"round"`
	Session     string  `json:"session"`
	SessionName string  `json:"sessionName"`
	EventName   string  `json:"eventName"`
	CircuitName string  `json:"circuitName"`
	TotalFrames int     `json:"totalFrames"`
	Duration    float64 `json:"duration"`
	FPS         int     `json:"fps"`
}

var sessionOrder = map[string]int{"R": 0, "S": 1, "SQ": 2, "Q": 3, "FP3": 4, "FP2": 5, "FP1": 6}

func sessionRank(s string) int {
	if r, ok := sessionOrder[s]; ok {
		return r
	}
	return len(sessionOrder)
}

// SortIndex orders by season desc, round desc and session type
func SortIndex(entries []IndexEntry) {
	slices.SortStableFunc(entries, func(a, b IndexEntry) int {
		if c := cmp.Compare(b.Season, a.Season); c != 0 {
			return c
		}
		if c := cmp.Compare(b.Round, a.Round); c != 0 {
			return c
		}
		return cmp.Compare(sessionRank(a.Session), sessionRank(b.Session))
	})
}

// ReadIndex returns the entries of outDir/sessions.json.
// A missing or unreadable index yields an empty list.
func ReadIndex(outDir string) []IndexEntry {
	data, err := os.ReadFile(filepath.Join(outDir, indexFile))
	if err != nil {
		return []IndexEntry{}
	}
	var entries []IndexEntry
	if err := oj.Unmarshal(data, &entries); err != nil {
		return []IndexEntry{}
	}
	return entries
}

// UpdateIndex replaces the entry for dir with the values of m
func UpdateIndex(outDir, dir string, m *Manifest) error {
	entries := lo.Filter(ReadIndex(outDir), func(e IndexEntry, _ int) bool {
		return e.Dir != dir
	})
	entries = append(entries, IndexEntry{
		Dir:         dir,
		Season:      m.Season,
		Round:       m.Round,
		Session:     m.Session,
		SessionName: m.SessionName,
		EventName:   m.EventName,
		CircuitName: m.CircuitName,
		TotalFrames: m.TotalFrames,
		Duration:    m.Duration,
		FPS:         m.FPS,
	})
	SortIndex(entries)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	return writeJSON(outDir, "sessions", entries, false)
}
