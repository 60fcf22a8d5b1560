package indicators

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxpilot/internal/domain"
)

func candlesFromCloses(closes []float64) []domain.Candle {
	candles := make([]domain.Candle, len(closes))
	for i, c := range closes {
		candles[i] = domain.Candle{
			Time: time.Date(2024, 6, 3, 0, i, 0, 0, time.UTC),
			Open: c, High: c + 0.0005, Low: c - 0.0005, Close: c,
		}
	}
	return candles
}

func TestTrend(t *testing.T) {
	up := candlesFromCloses([]float64{1.10, 1.11, 1.12, 1.13, 1.14})
	down := candlesFromCloses([]float64{1.14, 1.13, 1.12, 1.11, 1.10})
	flat := candlesFromCloses([]float64{1.10, 1.12, 1.08, 1.11, 1.10})

	assert.Equal(t, TrendBullish, Trend(up, 5))
	assert.Equal(t, TrendBearish, Trend(down, 5))
	assert.Equal(t, TrendNeutral, Trend(flat, 5))

	// A window larger than the data uses what there is.
	assert.Equal(t, TrendBullish, Trend(up, 50))
	assert.Equal(t, TrendNeutral, Trend(up[:1], 5))
	assert.Equal(t, TrendNeutral, Trend(nil, 5))
}

func TestRSIInsufficientData(t *testing.T) {
	candles := candlesFromCloses([]float64{1.10, 1.11, 1.12})
	_, err := RSI(candles, 14)
	assert.Error(t, err)
}

func TestRSIAllGains(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 1.10 + float64(i)*0.001
	}
	rsi, err := RSI(candlesFromCloses(closes), 14)
	require.NoError(t, err)
	assert.Equal(t, 100.0, rsi)
}

func TestRSIAllLosses(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 1.20 - float64(i)*0.001
	}
	rsi, err := RSI(candlesFromCloses(closes), 14)
	require.NoError(t, err)
	assert.InDelta(t, 0, rsi, 1e-9)
}

func TestRSIFlatIsNeutral(t *testing.T) {
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 1.10
	}
	rsi, err := RSI(candlesFromCloses(closes), 14)
	require.NoError(t, err)
	assert.Equal(t, 50.0, rsi)
}

func TestRSIStaysInRange(t *testing.T) {
	closes := []float64{1.10, 1.12, 1.09, 1.13, 1.08, 1.14, 1.11, 1.10, 1.15, 1.07,
		1.12, 1.13, 1.09, 1.11, 1.14, 1.10, 1.12, 1.08, 1.13, 1.11}
	rsi, err := RSI(candlesFromCloses(closes), 14)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, rsi, 0.0)
	assert.LessOrEqual(t, rsi, 100.0)
}

func TestATRInsufficientData(t *testing.T) {
	candles := candlesFromCloses([]float64{1.10, 1.11})
	_, err := ATR(candles, 14)
	assert.Error(t, err)
}

func TestATRConstantRange(t *testing.T) {
	// Identical candles: true range equals high minus low throughout.
	closes := make([]float64, 20)
	for i := range closes {
		closes[i] = 1.10
	}
	atr, err := ATR(candlesFromCloses(closes), 14)
	require.NoError(t, err)
	assert.InDelta(t, 0.001, atr, 1e-9)
}

func TestATRPositiveOnMovingMarket(t *testing.T) {
	closes := []float64{1.10, 1.12, 1.09, 1.13, 1.08, 1.14, 1.11, 1.10, 1.15, 1.07,
		1.12, 1.13, 1.09, 1.11, 1.14, 1.10}
	atr, err := ATR(candlesFromCloses(closes), 14)
	require.NoError(t, err)
	assert.Greater(t, atr, 0.0)
}

func TestKeyLevels(t *testing.T) {
	candles := candlesFromCloses([]float64{1.10, 1.15, 1.05, 1.12, 1.08})

	support, resistance := KeyLevels(candles, 5)
	assert.InDelta(t, 1.05-0.0005, support, 1e-9)
	assert.InDelta(t, 1.15+0.0005, resistance, 1e-9)

	// A narrower window ignores the older extremes.
	support, resistance = KeyLevels(candles, 2)
	assert.InDelta(t, 1.08-0.0005, support, 1e-9)
	assert.InDelta(t, 1.12+0.0005, resistance, 1e-9)

	support, resistance = KeyLevels(nil, 5)
	assert.Zero(t, support)
	assert.Zero(t, resistance)
}
