package ports

import (
	"context"
	"time"

	"fxpilot/internal/domain"
)

// TradeRepository defines the interface for the durable trade ledger.
type TradeRepository interface {
	// CreateTrade saves a new trade record and returns its assigned ID.
	CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error)
	// FindOpenTrades retrieves all trades with status OPEN, oldest first.
	FindOpenTrades(ctx context.Context) ([]*domain.Trade, error)
	// CountOpenTrades counts trades currently marked OPEN.
	CountOpenTrades(ctx context.Context) (int, error)
	// FindClosedSince retrieves trades created at or after the given time
	// whose PNL has been realized (pnl is non-null).
	FindClosedSince(ctx context.Context, since time.Time) ([]*domain.Trade, error)
	// CloseTrade transitions a trade from OPEN to CLOSED, setting exit price
	// and realized PnL. The update is guarded by status = OPEN; if no open
	// row matches the ID it returns ErrNotFound, which makes repeated
	// reconciler runs idempotent.
	CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64) error
}

// HeartbeatRepository records append-only liveness entries.
type HeartbeatRepository interface {
	AppendHeartbeat(ctx context.Context, status, message string) error
}
