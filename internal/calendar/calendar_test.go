package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/FranklineMisango/AlgoForge/internal/errors"
	"github.com/FranklineMisango/AlgoForge/internal/models"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestWindowsCoversRangeExactly(t *testing.T) {
	tests := []struct {
		name  string
		start time.Time
		end   time.Time
		max   time.Duration
		count int
	}{
		{
			name:  "range_shorter_than_max",
			start: day(2024, 1, 1),
			end:   day(2024, 1, 5),
			max:   7 * 24 * time.Hour,
			count: 1,
		},
		{
			name:  "range_equal_to_max",
			start: day(2024, 1, 1),
			end:   day(2024, 1, 8),
			max:   7 * 24 * time.Hour,
			count: 1,
		},
		{
			name:  "range_one_day_over_max",
			start: day(2024, 1, 1),
			end:   day(2024, 1, 9),
			max:   7 * 24 * time.Hour,
			count: 2,
		},
		{
			name:  "four_hundred_days_in_weekly_chunks",
			start: day(2024, 1, 1),
			end:   day(2024, 1, 1).AddDate(0, 0, 400),
			max:   7 * 24 * time.Hour,
			count: 58,
		},
		{
			name:  "zero_max_means_unbounded",
			start: day(2024, 1, 1),
			end:   day(2025, 1, 1),
			max:   0,
			count: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			windows := Windows(tt.start, tt.end, tt.max)
			require.Len(t, windows, tt.count)

			// Contiguous cover: first window starts at start, each
			// window begins where the previous one ended, last window
			// ends at end.
			assert.Equal(t, tt.start, windows[0].Start)
			assert.Equal(t, tt.end, windows[len(windows)-1].End)
			for i := 1; i < len(windows); i++ {
				assert.Equal(t, windows[i-1].End, windows[i].Start)
			}
			if tt.max > 0 {
				for _, w := range windows {
					assert.True(t, w.End.Sub(w.Start) <= tt.max, "window %s exceeds max", w)
				}
			}
		})
	}
}

func TestWindowsEmptyRange(t *testing.T) {
	assert.Nil(t, Windows(day(2024, 1, 5), day(2024, 1, 5), time.Hour))
	assert.Nil(t, Windows(day(2024, 1, 5), day(2024, 1, 1), time.Hour))
}

func TestChunkRequest(t *testing.T) {
	base := models.SymbolRequest{
		Symbol:     "AAPL",
		AssetClass: models.AssetEquity,
		Resolution: models.ResolutionMinute,
		Start:      day(2024, 1, 1),
		End:        day(2024, 1, 31),
	}

	t.Run("minute_is_windowed", func(t *testing.T) {
		windows, err := ChunkRequest(base, 7*24*time.Hour)
		require.NoError(t, err)
		assert.Len(t, windows, 5)
	})

	t.Run("daily_is_single_window", func(t *testing.T) {
		req := base
		req.Resolution = models.ResolutionDaily
		windows, err := ChunkRequest(req, 7*24*time.Hour)
		require.NoError(t, err)
		require.Len(t, windows, 1)
		assert.Equal(t, req.Start, windows[0].Start)
		assert.Equal(t, req.End, windows[0].End)
	})

	t.Run("hour_is_single_window", func(t *testing.T) {
		req := base
		req.Resolution = models.ResolutionHour
		windows, err := ChunkRequest(req, 7*24*time.Hour)
		require.NoError(t, err)
		assert.Len(t, windows, 1)
	})

	t.Run("tick_is_rejected", func(t *testing.T) {
		req := base
		req.Resolution = models.ResolutionTick
		_, err := ChunkRequest(req, 7*24*time.Hour)
		var dataErr *apperrors.DataError
		require.ErrorAs(t, err, &dataErr)
	})

	t.Run("second_is_rejected", func(t *testing.T) {
		req := base
		req.Resolution = models.ResolutionSecond
		_, err := ChunkRequest(req, 7*24*time.Hour)
		var dataErr *apperrors.DataError
		require.ErrorAs(t, err, &dataErr)
	})

	t.Run("invalid_request_is_rejected", func(t *testing.T) {
		req := base
		req.Symbol = ""
		_, err := ChunkRequest(req, 7*24*time.Hour)
		require.Error(t, err)
	})
}

func TestSessionDays(t *testing.T) {
	// 2024-01-01 is a Monday; the two-week range spans ten weekdays.
	start := day(2024, 1, 1)
	end := day(2024, 1, 15)

	t.Run("equity_skips_weekends", func(t *testing.T) {
		days := SessionDays(start, end, models.AssetEquity)
		require.Len(t, days, 10)
		for _, d := range days {
			wd := d.Weekday()
			assert.NotEqual(t, time.Saturday, wd)
			assert.NotEqual(t, time.Sunday, wd)
		}
	})

	t.Run("crypto_trades_every_day", func(t *testing.T) {
		days := SessionDays(start, end, models.AssetCrypto)
		assert.Len(t, days, 14)
	})

	t.Run("empty_range", func(t *testing.T) {
		assert.Empty(t, SessionDays(start, start, models.AssetEquity))
	})
}
