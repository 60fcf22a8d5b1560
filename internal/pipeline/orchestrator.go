// Package pipeline sequences the advisory chain, risk gate and execution
// into one deciding cycle, run on a fixed interval by a single writer.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jpillora/backoff"

	"fxpilot/internal/domain"
	"fxpilot/internal/ports"
	"fxpilot/internal/risk"
	"fxpilot/internal/safety"
)

// Stage pairs a provider-backed advisor with its deterministic fallback.
type Stage struct {
	Primary  ports.Advisor
	Fallback ports.Advisor
}

// Config holds orchestrator tuning.
type Config struct {
	Pair        string
	RunInterval time.Duration
	MaxRetries  int
}

// Orchestrator drives one decision cycle at a time:
//
//	Start -> Strategist -> {End | Architect} -> Tactical -> RiskGate -> Execution -> End
//
// The strategist edge is conditional: a RISK_OFF bias ends the cycle before
// any downstream stage runs. All later edges are unconditional. Cycles are
// strictly sequential; a new one never starts before the previous one,
// including its retries and sleeps, has finished.
type Orchestrator struct {
	cfg        Config
	logger     ports.Logger
	market     ports.MarketDataProvider
	exec       ports.ExecutionClient
	trades     ports.TradeRepository
	heartbeats ports.HeartbeatRepository
	gate       *risk.Gate
	breaker    *safety.CircuitBreaker
	kill       safety.KillSwitch

	strategist Stage
	architect  Stage
	tactical   Stage
}

// NewOrchestrator wires the cycle dependencies. All are required.
func NewOrchestrator(
	cfg Config,
	logger ports.Logger,
	market ports.MarketDataProvider,
	exec ports.ExecutionClient,
	trades ports.TradeRepository,
	heartbeats ports.HeartbeatRepository,
	gate *risk.Gate,
	breaker *safety.CircuitBreaker,
	kill safety.KillSwitch,
	strategist, architect, tactical Stage,
) (*Orchestrator, error) {
	if logger == nil || market == nil || exec == nil || trades == nil || heartbeats == nil ||
		gate == nil || breaker == nil || kill == nil {
		return nil, fmt.Errorf("missing required dependencies for orchestrator")
	}
	if strategist.Primary == nil || strategist.Fallback == nil ||
		architect.Primary == nil || architect.Fallback == nil ||
		tactical.Primary == nil || tactical.Fallback == nil {
		return nil, fmt.Errorf("every stage needs a primary and a fallback advisor")
	}
	if cfg.Pair == "" {
		return nil, fmt.Errorf("orchestrator requires an instrument: %w", ports.ErrConfigurationError)
	}
	if cfg.RunInterval <= 0 {
		cfg.RunInterval = 15 * time.Minute
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	return &Orchestrator{
		cfg:        cfg,
		logger:     logger,
		market:     market,
		exec:       exec,
		trades:     trades,
		heartbeats: heartbeats,
		gate:       gate,
		breaker:    breaker,
		kill:       kill,
		strategist: strategist,
		architect:  architect,
		tactical:   tactical,
	}, nil
}

// Run executes cycles on the configured interval until the context ends.
// Nothing that happens inside a cycle stops the loop: errors and panics are
// logged, a crash heartbeat is emitted, and the next tick proceeds.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info(ctx, "Orchestrator started", map[string]interface{}{
		"pair": o.cfg.Pair, "interval": o.cfg.RunInterval.String(),
	})
	ticker := time.NewTicker(o.cfg.RunInterval)
	defer ticker.Stop()

	for {
		o.safeCycle(ctx)
		select {
		case <-ctx.Done():
			o.logger.Info(ctx, "Orchestrator stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (o *Orchestrator) safeCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error(ctx, fmt.Errorf("panic: %v", r), "Cycle panicked")
			o.crashHeartbeat(ctx, fmt.Sprintf("panic: %v", r))
		}
	}()

	err := o.RunCycle(ctx)
	switch {
	case err == nil:
	case errors.Is(err, ports.ErrTradingDisabled):
		o.logger.Info(ctx, "Cycle skipped: trading disabled by kill switch")
	case errors.Is(err, ports.ErrCircuitOpen):
		o.logger.Warn(ctx, "Cycle skipped: circuit breaker open", map[string]interface{}{
			"failures": o.breaker.Status().FailureCount,
		})
	case errors.Is(err, context.Canceled):
	default:
		o.logger.Error(ctx, err, "Cycle failed")
		o.crashHeartbeat(ctx, err.Error())
	}
}

// RunCycle executes one pass of the state machine. The interlocks run
// before any external call is made.
func (o *Orchestrator) RunCycle(ctx context.Context) error {
	if !o.kill.IsEnabled() {
		return ports.ErrTradingDisabled
	}
	if !o.breaker.CanAttempt() {
		return ports.ErrCircuitOpen
	}

	if err := o.heartbeats.AppendHeartbeat(ctx, "ALIVE", "cycle start"); err != nil {
		o.logger.Warn(ctx, "Heartbeat write failed", map[string]interface{}{"error": err.Error()})
	}

	var snap domain.MarketSnapshot
	err := o.withRetry(ctx, "market snapshot", func() error {
		var err error
		snap, err = BuildSnapshot(ctx, o.market, o.cfg.Pair)
		return err
	})
	if err != nil {
		o.breaker.RecordFailure()
		return fmt.Errorf("market snapshot: %w", err)
	}

	sc := &domain.StageContext{Snapshot: snap}

	o.runStage(ctx, o.strategist, sc)
	if sc.Bias == domain.BiasRiskOff {
		o.logger.Info(ctx, "Risk-averse bias, ending cycle early", map[string]interface{}{"bias": sc.Bias})
		o.breaker.RecordSuccess()
		return nil
	}

	o.runStage(ctx, o.architect, sc)
	o.runStage(ctx, o.tactical, sc)

	assessment := o.gate.Evaluate(ctx, sc.Decision, sc.Order, o.cfg.Pair)
	sc.ReasoningTrace = append(sc.ReasoningTrace, assessment.TraceLine())
	if !assessment.Approved {
		o.logger.Info(ctx, "No trade this cycle", map[string]interface{}{"reason": assessment.RejectionReason})
		o.breaker.RecordSuccess()
		return nil
	}

	if err := o.execute(ctx, sc, assessment); err != nil {
		o.breaker.RecordFailure()
		return err
	}
	o.breaker.RecordSuccess()
	return nil
}

// runStage invokes the primary advisor with bounded retries on transient
// failures. If the primary still fails, or fails with a non-transient error
// such as a schema violation, the breaker records a failure and the
// deterministic fallback is substituted so the pipeline always terminates
// with a decision.
func (o *Orchestrator) runStage(ctx context.Context, stage Stage, sc *domain.StageContext) {
	var upd domain.StageUpdate
	err := o.withRetry(ctx, stage.Primary.Name(), func() error {
		var err error
		upd, err = stage.Primary.Invoke(ctx, *sc)
		return err
	})
	if err != nil {
		o.logger.Warn(ctx, "Advisory stage failed, substituting fallback", map[string]interface{}{
			"stage": stage.Primary.Name(), "error": err.Error(),
		})
		o.breaker.RecordFailure()

		upd, err = stage.Fallback.Invoke(ctx, *sc)
		if err != nil {
			o.logger.Error(ctx, err, "Fallback advisor failed", map[string]interface{}{"stage": stage.Fallback.Name()})
			upd = domain.StageUpdate{Reasoning: []string{
				fmt.Sprintf("[%s]: fallback failed: %v", stage.Fallback.Name(), err),
			}}
		}
	}
	merge(sc, upd)
}

// execute places the approved, sized order and records it in the ledger.
// A ledger write failure after a successful fill is logged and the cycle
// continues degraded; the execution must not be retried at that point.
func (o *Orchestrator) execute(ctx context.Context, sc *domain.StageContext, assessment risk.Assessment) error {
	units := lotsToUnits(assessment.LotSize, sc.Order.Action)

	var result *ports.OrderResult
	err := o.withRetry(ctx, "place order", func() error {
		var err error
		result, err = o.exec.PlaceMarketOrder(ctx, o.cfg.Pair, units, sc.Order.StopLoss, sc.Order.TakeProfit)
		return err
	})
	if err != nil {
		return fmt.Errorf("order execution: %w", err)
	}

	sc.ReasoningTrace = append(sc.ReasoningTrace, fmt.Sprintf(
		"[Executor]: TRADE EXECUTED - Order ID: %s, %s %v lots %s @ %v",
		result.OrderID, sc.Order.Action, assessment.LotSize, o.cfg.Pair, result.FillPrice))

	trade := &domain.Trade{
		Pair:           o.cfg.Pair,
		Action:         sc.Order.Action,
		EntryPrice:     result.FillPrice,
		StopLoss:       sc.Order.StopLoss,
		TakeProfit:     sc.Order.TakeProfit,
		LotSize:        assessment.LotSize,
		Status:         domain.StatusOpen,
		ReasoningTrace: sc.ReasoningTrace,
		Timestamp:      time.Now().UTC(),
	}
	if _, err := o.trades.CreateTrade(ctx, trade); err != nil {
		// Known degraded mode: the position exists at the broker without a
		// durable record. Surface loudly, do not fail the cycle.
		o.logger.Error(ctx, err, "Trade executed but ledger write failed", map[string]interface{}{
			"orderID": result.OrderID, "pair": o.cfg.Pair, "units": units,
		})
		return nil
	}

	o.logger.Info(ctx, "Trade recorded", map[string]interface{}{
		"tradeID": trade.ID, "orderID": result.OrderID, "action": sc.Order.Action,
		"lotSize": assessment.LotSize, "entryPrice": result.FillPrice,
	})
	return nil
}

// withRetry runs fn with exponentially increasing delays between attempts.
// Only transient errors are retried; anything else terminates immediately.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func() error) error {
	b := &backoff.Backoff{Min: time.Second, Max: time.Minute, Factor: 2, Jitter: true}
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !ports.IsTransient(err) || attempt >= o.cfg.MaxRetries {
			return err
		}
		delay := b.Duration()
		o.logger.Warn(ctx, "Transient failure, retrying", map[string]interface{}{
			"operation": op, "attempt": attempt + 1, "delay": delay.String(), "error": err.Error(),
		})
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (o *Orchestrator) crashHeartbeat(ctx context.Context, msg string) {
	if len(msg) > 200 {
		msg = msg[:200]
	}
	if err := o.heartbeats.AppendHeartbeat(ctx, "CRASH", msg); err != nil {
		o.logger.Warn(ctx, "Crash heartbeat write failed", map[string]interface{}{"error": err.Error()})
	}
}

// lotsToUnits converts a lot size to signed broker units; 1 lot = 100,000
// units, SELL is negative.
func lotsToUnits(lotSize float64, action domain.Action) int {
	units := int(lotSize * 100000)
	if action == domain.ActionSell {
		return -units
	}
	return units
}
