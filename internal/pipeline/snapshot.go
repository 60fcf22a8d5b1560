package pipeline

import (
	"context"
	"fmt"
	"time"

	"fxpilot/internal/domain"
	"fxpilot/internal/indicators"
	"fxpilot/internal/ports"
)

const (
	h1CandleCount  = 20
	m15CandleCount = 20
	m5CandleCount  = 10
	rsiPeriod      = 14
	atrPeriod      = 14
	trendWindow    = 5
	levelWindow    = 10
)

// BuildSnapshot assembles the per-cycle market view: live price plus candle
// windows at three granularities with derived technicals. Indicator
// calculation failures degrade to neutral values rather than aborting the
// cycle; only transport failures propagate.
func BuildSnapshot(ctx context.Context, market ports.MarketDataProvider, pair string) (domain.MarketSnapshot, error) {
	price, err := market.GetCurrentPrice(ctx, pair)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("current price: %w", err)
	}
	h1, err := market.GetCandles(ctx, pair, "H1", h1CandleCount)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("H1 candles: %w", err)
	}
	m15, err := market.GetCandles(ctx, pair, "M15", m15CandleCount)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("M15 candles: %w", err)
	}
	m5, err := market.GetCandles(ctx, pair, "M5", m5CandleCount)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("M5 candles: %w", err)
	}

	rsi, err := indicators.RSI(h1, rsiPeriod)
	if err != nil {
		rsi = 50 // Neutral when the window is too short
	}
	atr, err := indicators.ATR(h1, atrPeriod)
	if err != nil {
		atr = 0
	}
	support, resistance := indicators.KeyLevels(h1, levelWindow)

	structure := "Lower Lows"
	if indicators.Trend(m15, trendWindow) == indicators.TrendBullish {
		structure = "Higher Highs"
	}

	return domain.MarketSnapshot{
		Pair:         pair,
		Price:        price,
		Timestamp:    time.Now().UTC(),
		H1Trend:      indicators.Trend(h1, trendWindow),
		H1RSI:        rsi,
		ATR:          atr,
		Support:      support,
		Resistance:   resistance,
		M15Structure: structure,
		M15Candles:   m15,
		M5Candles:    m5,
	}, nil
}
