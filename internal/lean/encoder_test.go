package lean

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FranklineMisango/AlgoForge/internal/models"
)

func TestEncodeMinuteEquityBar(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	bars := []models.Bar{{
		Timestamp: time.Date(2024, 1, 15, 9, 31, 0, 0, ny),
		Open:      382.50,
		High:      382.65,
		Low:       382.40,
		Close:     382.55,
		Volume:    1050000,
	}}

	rows := NewEncoder().Encode(bars, models.ResolutionMinute, models.AssetEquity)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "34260000", row.Time) // 9h31m after midnight, in ms
	assert.Equal(t, int64(3825000), row.Open)
	assert.Equal(t, int64(3826500), row.High)
	assert.Equal(t, int64(3824000), row.Low)
	assert.Equal(t, int64(3825500), row.Close)
	assert.Equal(t, int64(1050000), row.Volume)

	assert.Equal(t, "34260000,3825000,3826500,3824000,3825500,1050000", row.CSV())
}

func TestEncodeDailyBar(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	bars := []models.Bar{{
		Timestamp: time.Date(2024, 1, 15, 0, 0, 0, 0, ny),
		Open:      100.25,
		High:      101.00,
		Low:       99.75,
		Close:     100.50,
		Volume:    5000,
	}}

	rows := NewEncoder().Encode(bars, models.ResolutionDaily, models.AssetEquity)
	require.Len(t, rows, 1)
	assert.Equal(t, "20240115 00:00", rows[0].Time)
	assert.Equal(t, int64(1002500), rows[0].Open)
}

func TestEncodeCryptoKeepsRawPrices(t *testing.T) {
	bars := []models.Bar{{
		Timestamp: time.Date(2024, 1, 15, 0, 1, 0, 0, time.UTC),
		Open:      42150,
		High:      42200,
		Low:       42100,
		Close:     42175,
		Volume:    12.5,
	}}

	rows := NewEncoder().Encode(bars, models.ResolutionMinute, models.AssetCrypto)
	require.Len(t, rows, 1)
	assert.Equal(t, "60000", rows[0].Time)
	assert.Equal(t, int64(42150), rows[0].Open)
	assert.Equal(t, int64(42200), rows[0].High)
}

func TestEncodePreservesOrder(t *testing.T) {
	base := time.Date(2024, 1, 15, 9, 30, 0, 0, time.UTC)
	var bars []models.Bar
	for i := 0; i < 5; i++ {
		bars = append(bars, models.Bar{
			Timestamp: base.Add(time.Duration(i) * time.Minute),
			Open:      100, High: 101, Low: 99, Close: 100, Volume: float64(i),
		})
	}

	rows := NewEncoder().Encode(bars, models.ResolutionMinute, models.AssetEquity)
	require.Len(t, rows, 5)
	for i, row := range rows {
		assert.Equal(t, int64(i), row.Volume)
	}
}

func TestScalePriceExactness(t *testing.T) {
	tests := []struct {
		price      float64
		multiplier int64
		want       int64
	}{
		{382.65, 10000, 3826500},
		{382.50, 10000, 3825000},
		{0.0001, 10000, 1},
		{123.45675, 10000, 1234568}, // rounds half away from zero
		{42150.0, 1, 42150},
		{42150.7, 1, 42151},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ScalePrice(tt.price, tt.multiplier), "price %v x%d", tt.price, tt.multiplier)
	}
}

func TestScaleUnscaleRoundTrip(t *testing.T) {
	prices := []float64{0.0001, 1.2345, 99.99, 382.65, 10500.50}
	for _, price := range prices {
		scaled := ScalePrice(price, 10000)
		back := UnscalePrice(scaled, 10000)
		assert.True(t, math.Abs(back-price) < 1e-4, "price %v round-tripped to %v", price, back)
	}
}
