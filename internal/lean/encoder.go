// Package lean renders validated bars into the historical-data archive
// format consumed by the downstream backtesting engine: scaled-integer
// CSV rows grouped into per-key csv or zip files.
//
// The format is byte-sensitive. Row field order is fixed (time, open,
// high, low, close, volume), prices are integers scaled by the asset
// class multiplier, and the time field switches representation by
// resolution: daily rows carry "YYYYMMDD HH:MM" in session time, all
// other rows carry milliseconds elapsed since local midnight.
package lean

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/FranklineMisango/AlgoForge/internal/models"
)

const (
	dailyTimeLayout = "20060102 15:04"

	// DateLayout names archive files and members for sub-daily data.
	DateLayout = "20060102"
)

// Row is one encoded archive record. Immutable once produced.
type Row struct {
	Time   string
	Open   int64
	High   int64
	Low    int64
	Close  int64
	Volume int64
}

// CSV renders the row in the fixed archive field order.
func (r Row) CSV() string {
	return fmt.Sprintf("%s,%d,%d,%d,%d,%d", r.Time, r.Open, r.High, r.Low, r.Close, r.Volume)
}

// Encoder converts validated bars into archive rows.
type Encoder struct{}

// NewEncoder returns a stateless format encoder.
func NewEncoder() *Encoder {
	return &Encoder{}
}

// Encode converts bars into rows for the given resolution and asset
// class, preserving input order. Bars must already be validated and
// normalized to session time by the provider adapter.
func (e *Encoder) Encode(bars []models.Bar, res models.Resolution, class models.AssetClass) []Row {
	multiplier := class.PriceMultiplier()
	rows := make([]Row, 0, len(bars))

	for i := range bars {
		bar := &bars[i]
		rows = append(rows, Row{
			Time:   encodeTime(bar.Timestamp, res),
			Open:   ScalePrice(bar.Open, multiplier),
			High:   ScalePrice(bar.High, multiplier),
			Low:    ScalePrice(bar.Low, multiplier),
			Close:  ScalePrice(bar.Close, multiplier),
			Volume: int64(bar.Volume),
		})
	}

	return rows
}

// ScalePrice converts a price to its scaled-integer representation,
// round(price * multiplier). Scaling goes through decimal arithmetic so
// a float like 382.65 scales to exactly 3826500 rather than 3826499.
func ScalePrice(price float64, multiplier int64) int64 {
	return decimal.NewFromFloat(price).Mul(decimal.NewFromInt(multiplier)).Round(0).IntPart()
}

// UnscalePrice is the inverse of ScalePrice up to rounding: the result
// is within 1/(2*multiplier) of the original price.
func UnscalePrice(scaled, multiplier int64) float64 {
	f, _ := decimal.NewFromInt(scaled).Div(decimal.NewFromInt(multiplier)).Float64()
	return f
}

func encodeTime(ts time.Time, res models.Resolution) string {
	if res == models.ResolutionDaily {
		return ts.Format(dailyTimeLayout)
	}

	midnight := time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, ts.Location())
	return strconv.FormatInt(ts.Sub(midnight).Milliseconds(), 10)
}
