package model

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyTimeline    = errors.New("no vehicle has a usable time range")
	ErrInvalidLapLength = errors.New("invalid lap length")
)

// TimeOrderingError is reported if the stitched time channel of a vehicle decreases
type TimeOrderingError struct {
	Vehicle string
	Index   int
	Prev    float64
	Next    float64
}

func (e *TimeOrderingError) Error() string {
	return fmt.Sprintf("vehicle %s: time decreases at index %d (%f > %f)",
		e.Vehicle, e.Index, e.Prev, e.Next)
}

// InsufficientSamplesError is reported if a vehicle has less than 2 valid samples
type InsufficientSamplesError struct {
	Vehicle string
	Samples int
}

func (e *InsufficientSamplesError) Error() string {
	return fmt.Sprintf("vehicle %s: insufficient samples (%d)", e.Vehicle, e.Samples)
}

// UnusableRangeError is reported if a vehicle's samples don't span a time range
type UnusableRangeError struct {
	Vehicle string
	Start   float64
	End     float64
}

func (e *UnusableRangeError) Error() string {
	return fmt.Sprintf("vehicle %s: unusable time range [%f, %f]",
		e.Vehicle, e.Start, e.End)
}
