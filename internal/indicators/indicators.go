// Package indicators provides the small set of technical calculations used
// to build market snapshots and to drive the mechanical fallback advisors.
package indicators

import (
	"fmt"
	"math"

	"fxpilot/internal/domain"
)

// Trend direction labels.
const (
	TrendBullish = "BULLISH"
	TrendBearish = "BEARISH"
	TrendNeutral = "NEUTRAL"
)

// Trend classifies the direction over the last window closes: bullish if the
// latest close is above the first of the window, bearish if below.
func Trend(candles []domain.Candle, window int) string {
	if len(candles) < 2 {
		return TrendNeutral
	}
	if window > len(candles) {
		window = len(candles)
	}
	first := candles[len(candles)-window].Close
	last := candles[len(candles)-1].Close
	switch {
	case last > first:
		return TrendBullish
	case last < first:
		return TrendBearish
	default:
		return TrendNeutral
	}
}

// RSI computes the Relative Strength Index using Wilder's smoothing method.
func RSI(candles []domain.Candle, period int) (float64, error) {
	if len(candles) <= period {
		return 0, fmt.Errorf("not enough data (%d) to calculate RSI for period %d", len(candles), period)
	}

	changes := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		changes = append(changes, candles[i].Close-candles[i-1].Close)
	}

	var avgGain, avgLoss float64
	for i := 0; i < period; i++ {
		if changes[i] > 0 {
			avgGain += changes[i]
		} else {
			avgLoss -= changes[i]
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	for i := period; i < len(changes); i++ {
		if changes[i] > 0 {
			avgGain = (avgGain*float64(period-1) + changes[i]) / float64(period)
			avgLoss = (avgLoss * float64(period-1)) / float64(period)
		} else {
			avgGain = (avgGain * float64(period-1)) / float64(period)
			avgLoss = (avgLoss*float64(period-1) - changes[i]) / float64(period)
		}
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil // Neutral if no change
		}
		return 100, nil
	}

	rs := avgGain / avgLoss
	rsi := 100 - (100 / (1 + rs))
	return math.Max(0, math.Min(100, rsi)), nil
}

// ATR computes the Average True Range using Wilder's smoothing method.
func ATR(candles []domain.Candle, period int) (float64, error) {
	if len(candles) < period+1 {
		return 0, fmt.Errorf("not enough data points for ATR: need %d, got %d", period+1, len(candles))
	}

	trueRanges := make([]float64, len(candles))
	trueRanges[0] = candles[0].High - candles[0].Low
	for i := 1; i < len(candles); i++ {
		high, low, prevClose := candles[i].High, candles[i].Low, candles[i-1].Close
		tr := math.Max(high-low, math.Max(math.Abs(high-prevClose), math.Abs(low-prevClose)))
		trueRanges[i] = tr
	}

	atr := 0.0
	for i := 0; i < period; i++ {
		atr += trueRanges[i]
	}
	atr /= float64(period)

	for i := period; i < len(candles); i++ {
		atr = (atr*float64(period-1) + trueRanges[i]) / float64(period)
	}
	return atr, nil
}

// KeyLevels returns the lowest low and highest high over the last window
// candles, used as rough support and resistance.
func KeyLevels(candles []domain.Candle, window int) (support, resistance float64) {
	if len(candles) == 0 {
		return 0, 0
	}
	if window > len(candles) {
		window = len(candles)
	}
	support, resistance = math.Inf(1), math.Inf(-1)
	for _, c := range candles[len(candles)-window:] {
		support = math.Min(support, c.Low)
		resistance = math.Max(resistance, c.High)
	}
	return support, resistance
}
