package model

import (
	"encoding/json"
	"strings"
)

// TrackStatus describes the flag situation of the whole track
type TrackStatus string

const (
	TrackGreen      TrackStatus = "GREEN"
	TrackYellow     TrackStatus = "YELLOW"
	TrackSC         TrackStatus = "SC"
	TrackVSC        TrackStatus = "VSC"
	TrackVSCEnding  TrackStatus = "VSC_ENDING"
	TrackRed        TrackStatus = "RED"
	TrackChequered  TrackStatus = "CHEQUERED"
	TrackStatusNone TrackStatus = ""
)

// numeric codes used by the upstream timing feed
var trackStatusCodes = map[string]TrackStatus{
	"1": TrackGreen,
	"2": TrackYellow,
	"4": TrackSC,
	"5": TrackRed,
	"6": TrackVSC,
	"7": TrackVSCEnding,
}

// ParseTrackStatus accepts either the upstream numeric code or a status name.
// Unknown values are returned as given (upper cased).
func ParseTrackStatus(s string) TrackStatus {
	s = strings.TrimSpace(s)
	if ts, ok := trackStatusCodes[s]; ok {
		return ts
	}
	return TrackStatus(strings.ToUpper(s))
}

// UnmarshalJSON accepts status names and numeric codes
func (t *TrackStatus) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = ParseTrackStatus(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*t = ParseTrackStatus(n.String())
	return nil
}

// IsGreen reports whether racing conditions are normal
func (t TrackStatus) IsGreen() bool {
	return t == TrackGreen || t == TrackStatusNone
}

type MessageCategory string

const (
	MsgBlueFlag   MessageCategory = "blue_flag"
	MsgPenalty    MessageCategory = "penalty"
	MsgTrackLimit MessageCategory = "track_limit"
	MsgFlag       MessageCategory = "flag"
	MsgOther      MessageCategory = "other"
)
