// Package models provides the core market-data types shared across the
// pipeline: OHLCV bars, symbol requests, asset classes and resolutions.
package models

import (
	"fmt"
	"math"
	"time"
)

// Bar is one OHLCV sample for a fixed time interval. It is produced by a
// provider adapter from a raw payload record and exists only transiently
// in memory; validated bars are encoded and written, nothing is cached
// past the chunk being processed.
//
// The Timestamp carries the session location of the bar's asset class
// (America/New_York for equities and futures, UTC for crypto); adapters
// normalize to that location before returning.
type Bar struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    float64
}

// ValidationError reports which bar field violated the OHLCV invariant.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field %s: %s", e.Field, e.Message)
}

// Validate checks the bar invariant: all fields present and finite,
// low <= open <= high, low <= close <= high, volume >= 0.
// Returns a ValidationError naming the first violated field.
func (b *Bar) Validate() error {
	if b.Timestamp.IsZero() {
		return &ValidationError{Field: "timestamp", Message: "timestamp cannot be zero"}
	}

	for _, f := range []struct {
		name  string
		value float64
	}{
		{"open", b.Open},
		{"high", b.High},
		{"low", b.Low},
		{"close", b.Close},
		{"volume", b.Volume},
	} {
		if math.IsNaN(f.value) || math.IsInf(f.value, 0) {
			return &ValidationError{Field: f.name, Message: "value is not a finite number"}
		}
	}

	if b.Open <= 0 || b.High <= 0 || b.Low <= 0 || b.Close <= 0 {
		return &ValidationError{Field: "price", Message: "prices must be greater than 0"}
	}

	if b.Open < b.Low || b.Open > b.High {
		return &ValidationError{
			Field:   "open",
			Message: fmt.Sprintf("open (%v) outside low/high range [%v, %v]", b.Open, b.Low, b.High),
		}
	}

	if b.Close < b.Low || b.Close > b.High {
		return &ValidationError{
			Field:   "close",
			Message: fmt.Sprintf("close (%v) outside low/high range [%v, %v]", b.Close, b.Low, b.High),
		}
	}

	if b.Volume < 0 {
		return &ValidationError{Field: "volume", Message: "volume must be greater than or equal to 0"}
	}

	return nil
}

// SessionDate returns the bar's calendar date at midnight in the bar's
// own location. Sub-daily archive files are keyed by this date.
func (b *Bar) SessionDate() time.Time {
	ts := b.Timestamp
	return time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
}

// String returns a human-readable representation of the bar.
func (b *Bar) String() string {
	return fmt.Sprintf("Bar{Timestamp: %s, O: %v, H: %v, L: %v, C: %v, V: %v}",
		b.Timestamp.Format(time.RFC3339), b.Open, b.High, b.Low, b.Close, b.Volume)
}
