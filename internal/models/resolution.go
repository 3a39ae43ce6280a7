package models

import "time"

// Resolution is the bar interval requested from a provider and encoded
// into the archive.
type Resolution string

const (
	ResolutionTick   Resolution = "tick"
	ResolutionSecond Resolution = "second"
	ResolutionMinute Resolution = "minute"
	ResolutionHour   Resolution = "hour"
	ResolutionDaily  Resolution = "daily"
)

// Duration returns the nominal length of one bar. Tick has no fixed
// duration and returns 0.
func (r Resolution) Duration() time.Duration {
	switch r {
	case ResolutionSecond:
		return time.Second
	case ResolutionMinute:
		return time.Minute
	case ResolutionHour:
		return time.Hour
	case ResolutionDaily:
		return 24 * time.Hour
	default:
		return 0
	}
}

// SubDaily reports whether the resolution is archived one file per
// symbol per trading day. Daily and hourly data go into a single
// whole-range file per symbol instead.
func (r Resolution) SubDaily() bool {
	switch r {
	case ResolutionTick, ResolutionSecond, ResolutionMinute:
		return true
	default:
		return false
	}
}

// Valid reports whether the resolution is one of the known values.
func (r Resolution) Valid() bool {
	switch r {
	case ResolutionTick, ResolutionSecond, ResolutionMinute, ResolutionHour, ResolutionDaily:
		return true
	default:
		return false
	}
}
