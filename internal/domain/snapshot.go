package domain

import "time"

// Price is a bid/ask quote for a single instrument.
type Price struct {
	Bid float64
	Ask float64
}

// Spread returns the bid/ask spread in price terms.
func (p Price) Spread() float64 {
	s := p.Ask - p.Bid
	if s < 0 {
		return -s
	}
	return s
}

// Candle is a single OHLC data point.
type Candle struct {
	Time   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// MarketSnapshot is the per-cycle view of the market handed to the advisory
// chain. It is assembled once at cycle start and never mutated by stages.
type MarketSnapshot struct {
	Pair      string
	Price     Price
	Timestamp time.Time

	// Derived technicals over the fetched candle windows.
	H1Trend    string // "BULLISH", "BEARISH" or "NEUTRAL"
	H1RSI      float64
	ATR        float64
	Resistance float64
	Support    float64

	M15Structure string // "Higher Highs" / "Lower Lows"
	M15Candles   []Candle
	M5Candles    []Candle
}
