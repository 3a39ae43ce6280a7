// Package calendar partitions fetch ranges into provider-safe windows
// and enumerates candidate session days for an asset class.
package calendar

import (
	"fmt"
	"time"

	apperrors "github.com/FranklineMisango/AlgoForge/internal/errors"
	"github.com/FranklineMisango/AlgoForge/internal/models"
)

// Window is one bounded sub-range of a fetch request, sized to respect
// the upstream provider's history-depth limit.
type Window struct {
	Start time.Time
	End   time.Time
}

func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.Start.Format("2006-01-02"), w.End.Format("2006-01-02"))
}

// Windows partitions [start, end) into contiguous, non-overlapping
// windows each at most max long. The union of the returned windows
// exactly equals the input range: no gap, no overlap.
func Windows(start, end time.Time, max time.Duration) []Window {
	if !end.After(start) {
		return nil
	}

	if max <= 0 || end.Sub(start) <= max {
		return []Window{{Start: start, End: end}}
	}

	var windows []Window
	for current := start; current.Before(end); {
		next := current.Add(max)
		if next.After(end) {
			next = end
		}
		windows = append(windows, Window{Start: current, End: next})
		current = next
	}

	return windows
}

// ChunkRequest splits a symbol request into provider-safe fetch windows.
// Sub-daily resolutions are bounded by max; daily and hourly history is
// fetched as one contiguous call. Tick and second resolutions have no
// downloader and are rejected up front.
func ChunkRequest(req models.SymbolRequest, max time.Duration) ([]Window, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	switch req.Resolution {
	case models.ResolutionTick, models.ResolutionSecond:
		return nil, &apperrors.DataError{
			Message: fmt.Sprintf("resolution %s is not supported by any provider", req.Resolution),
		}
	case models.ResolutionMinute:
		return Windows(req.Start, req.End, max), nil
	default:
		return []Window{{Start: req.Start, End: req.End}}, nil
	}
}

// SessionDays enumerates the candidate trading dates in [start, end) for
// an asset class: weekdays for exchange-traded classes, every calendar
// day for crypto. Exchange holidays are not modelled; a holiday fetch
// returns zero bars and produces no output.
func SessionDays(start, end time.Time, class models.AssetClass) []time.Time {
	loc := class.SessionLocation()
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, loc)

	var days []time.Time
	for day.Before(end) {
		if class == models.AssetCrypto || isWeekday(day) {
			days = append(days, day)
		}
		day = day.AddDate(0, 0, 1)
	}

	return days
}

func isWeekday(t time.Time) bool {
	wd := t.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}
