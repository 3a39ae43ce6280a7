// Package validator enforces the OHLCV bar invariant before encoding.
//
// Validation is a pure filter: invalid bars are dropped, never repaired,
// and the surviving sequence preserves the input order. Dropping happens
// silently at the pipeline level; each drop is still visible at debug
// log level for diagnosis.
package validator

import (
	"log/slog"

	"github.com/FranklineMisango/AlgoForge/internal/models"
)

// BarValidator checks bars against the OHLCV invariant:
// low <= open <= high, low <= close <= high, volume >= 0, all fields
// present and finite.
type BarValidator struct {
	logger *slog.Logger
}

// New creates a bar validator. A nil logger falls back to slog.Default.
func New(logger *slog.Logger) *BarValidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &BarValidator{logger: logger.With("component", "validator")}
}

// Validate returns nil iff the bar satisfies the OHLCV invariant.
func (v *BarValidator) Validate(bar models.Bar) error {
	return bar.Validate()
}

// Clean filters the invalid bars out of a sequence. The result is an
// order-preserving subsequence of the input; no bar is modified.
func (v *BarValidator) Clean(bars []models.Bar) []models.Bar {
	cleaned := make([]models.Bar, 0, len(bars))

	for i := range bars {
		if err := bars[i].Validate(); err != nil {
			v.logger.Debug("dropping invalid bar",
				"timestamp", bars[i].Timestamp,
				"reason", err)
			continue
		}
		cleaned = append(cleaned, bars[i])
	}

	return cleaned
}
