package ports

import (
	"context"

	"fxpilot/internal/domain"
)

// AccountSummary holds the broker-reported account state used for sizing.
type AccountSummary struct {
	Balance float64
}

// MarketDataProvider defines the read-only market data surface. Errors
// surface as tagged ports errors, never raw transport failures.
type MarketDataProvider interface {
	// GetCurrentPrice retrieves the latest bid/ask for an instrument.
	GetCurrentPrice(ctx context.Context, pair string) (domain.Price, error)
	// GetCandles retrieves up to count most recent OHLC candles at the
	// given granularity (e.g., "H1", "M15", "M5").
	GetCandles(ctx context.Context, pair, granularity string, count int) ([]domain.Candle, error)
	// GetAccountSummary retrieves the current account balance.
	GetAccountSummary(ctx context.Context) (AccountSummary, error)
}
