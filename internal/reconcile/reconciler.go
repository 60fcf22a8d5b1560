// Package reconcile keeps the trade ledger consistent with the broker's
// view of truth: trades the ledger believes are OPEN but the broker no
// longer holds are closed out with a computed exit price and realized PnL.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"fxpilot/internal/domain"
	"fxpilot/internal/ports"
)

// Config holds reconciler tuning.
type Config struct {
	Interval time.Duration
	// PipValue returns the pip value for a pair at the given lot size.
	PipValue func(pair string, lotSize float64) float64
}

// Reconciler is an independent periodic loop, decoupled from the
// orchestrator's cadence. Both touch the ledger concurrently; safety comes
// from the status-guarded close in the repository, not from locking here.
type Reconciler struct {
	cfg        Config
	logger     ports.Logger
	trades     ports.TradeRepository
	exec       ports.ExecutionClient
	market     ports.MarketDataProvider
	heartbeats ports.HeartbeatRepository
}

// NewReconciler wires the reconciler dependencies.
func NewReconciler(
	cfg Config,
	logger ports.Logger,
	trades ports.TradeRepository,
	exec ports.ExecutionClient,
	market ports.MarketDataProvider,
	heartbeats ports.HeartbeatRepository,
) (*Reconciler, error) {
	if logger == nil || trades == nil || exec == nil || market == nil || heartbeats == nil {
		return nil, fmt.Errorf("missing required dependencies for reconciler")
	}
	if cfg.PipValue == nil {
		return nil, fmt.Errorf("reconciler requires a pip value table: %w", ports.ErrConfigurationError)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 2 * time.Minute
	}
	return &Reconciler{
		cfg:        cfg,
		logger:     logger,
		trades:     trades,
		exec:       exec,
		market:     market,
		heartbeats: heartbeats,
	}, nil
}

// Run sweeps on the configured interval until the context ends. Sweep
// failures are logged and the next tick proceeds.
func (r *Reconciler) Run(ctx context.Context) error {
	r.logger.Info(ctx, "Reconciler started", map[string]interface{}{"interval": r.cfg.Interval.String()})
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		if err := r.Sweep(ctx); err != nil && !errors.Is(err, context.Canceled) {
			r.logger.Error(ctx, err, "Reconcile sweep failed")
		}
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "Reconciler stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Sweep runs one reconciliation pass: every ledger-OPEN trade whose
// instrument the broker no longer holds is treated as externally closed.
// The status-guarded update makes repeated sweeps idempotent; with no
// upstream change a second pass is a no-op.
func (r *Reconciler) Sweep(ctx context.Context) error {
	openTrades, err := r.trades.FindOpenTrades(ctx)
	if err != nil {
		return fmt.Errorf("listing open trades: %w", err)
	}
	if len(openTrades) == 0 {
		r.logger.Debug(ctx, "No open trades to reconcile")
		return nil
	}

	positions, err := r.exec.ListOpenPositions(ctx)
	if err != nil {
		return fmt.Errorf("listing broker positions: %w", err)
	}

	closed := 0
	for _, trade := range openTrades {
		if _, held := positions[trade.Pair]; held {
			continue
		}

		exitPrice := r.resolveExitPrice(ctx, trade)
		pnl := realizedPnL(trade, exitPrice, r.cfg.PipValue)

		err := r.trades.CloseTrade(ctx, trade.ID, exitPrice, pnl)
		switch {
		case errors.Is(err, ports.ErrNotFound):
			// Raced with another close of the same trade; nothing to do.
			continue
		case err != nil:
			r.logger.Error(ctx, err, "Failed to close reconciled trade", map[string]interface{}{"tradeID": trade.ID})
			continue
		}
		closed++
		r.logger.Info(ctx, "Trade closed by reconciler", map[string]interface{}{
			"tradeID": trade.ID, "pair": trade.Pair, "exitPrice": exitPrice, "pnl": pnl,
		})
	}

	msg := fmt.Sprintf("checked %d open trades, closed %d", len(openTrades), closed)
	if err := r.heartbeats.AppendHeartbeat(ctx, "RECONCILE", msg); err != nil {
		r.logger.Warn(ctx, "Reconcile heartbeat write failed", map[string]interface{}{"error": err.Error()})
	}
	return nil
}

// resolveExitPrice prefers the latest market bid for the instrument. When
// the price fetch fails it falls back to the trade's own stop-loss price, a
// deliberately conservative approximation of where the broker closed it out,
// not a precise settlement price.
func (r *Reconciler) resolveExitPrice(ctx context.Context, trade *domain.Trade) float64 {
	price, err := r.market.GetCurrentPrice(ctx, trade.Pair)
	if err != nil {
		r.logger.Warn(ctx, "No live price for reconciled trade, assuming stop loss exit", map[string]interface{}{
			"tradeID": trade.ID, "pair": trade.Pair, "error": err.Error(),
		})
		return trade.StopLoss
	}
	return price.Bid
}

// realizedPnL computes the signed PnL of a closed trade: pip distance
// between entry and exit times the pip value at the trade's lot size,
// positive when the exit favored the action direction.
func realizedPnL(trade *domain.Trade, exitPrice float64, pipValue func(pair string, lotSize float64) float64) float64 {
	pipDistance := math.Abs(exitPrice-trade.EntryPrice) * 10000
	value := pipDistance * pipValue(trade.Pair, trade.LotSize)

	favorable := exitPrice > trade.EntryPrice
	if trade.Action == domain.ActionSell {
		favorable = exitPrice < trade.EntryPrice
	}
	if favorable {
		return value
	}
	return -value
}
