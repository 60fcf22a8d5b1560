// Package risk implements the deterministic gate between a proposed order
// and an approved, sized position. Evaluation is pure apart from read-only
// ledger queries; every rejection carries a reason naming the failed check.
package risk

import (
	"context"
	"fmt"
	"math"
	"time"

	"fxpilot/internal/domain"
	"fxpilot/internal/ports"
)

// Config holds the capital-safety parameters the gate enforces.
type Config struct {
	AccountBalance     float64
	MaxRiskPerTrade    float64
	MinRiskRewardRatio float64
	MaxDailyDrawdown   float64
	MaxOpenPositions   int
	MinLotSize         float64
	MaxLotSize         float64
	LotSizeStep        float64

	// Stop distance sanity bounds in pips; zero disables the bound.
	MinSLDistancePips float64
	MaxSLDistancePips float64

	// PipValue returns the pip value for a pair at the given lot size.
	PipValue func(pair string, lotSize float64) float64
}

// Assessment is the ephemeral outcome of a gate evaluation. It is never
// persisted; the approved fields feed execution, the rejection reason feeds
// the reasoning trace.
type Assessment struct {
	Approved        bool
	LotSize         float64
	RiskAmount      float64
	RiskPercentage  float64
	RewardRiskRatio float64
	RejectionReason string
}

// Gate validates proposed orders against ledger state and configuration.
type Gate struct {
	cfg    Config
	trades ports.TradeRepository
	logger ports.Logger
	now    func() time.Time
}

// NewGate creates a risk gate. The repository is used for read-only queries
// only (open-position count, today's realized PnL).
func NewGate(cfg Config, trades ports.TradeRepository, logger ports.Logger) (*Gate, error) {
	if trades == nil || logger == nil {
		return nil, fmt.Errorf("missing required dependencies for risk gate")
	}
	if cfg.AccountBalance <= 0 || cfg.MaxRiskPerTrade <= 0 || cfg.LotSizeStep <= 0 {
		return nil, fmt.Errorf("risk gate configuration invalid: %w", ports.ErrConfigurationError)
	}
	if cfg.PipValue == nil {
		return nil, fmt.Errorf("risk gate requires a pip value table: %w", ports.ErrConfigurationError)
	}
	return &Gate{cfg: cfg, trades: trades, logger: logger, now: time.Now}, nil
}

// Evaluate runs the gate checks in order, short-circuiting at the first
// rejection: decision pass-through, open-position cap, daily drawdown, order
// validity (including stop distance bounds), reward/risk ratio, then
// position sizing.
func (g *Gate) Evaluate(ctx context.Context, decision domain.Decision, order domain.OrderProposal, pair string) Assessment {
	if decision != domain.DecisionExecute {
		return Assessment{
			Approved:        false,
			RejectionReason: fmt.Sprintf("Tactical decision: %s", decision),
		}
	}

	// Open-position cap. A ledger failure here is logged and the check
	// skipped rather than blocking the cycle.
	if openCount, err := g.trades.CountOpenTrades(ctx); err != nil {
		g.logger.Warn(ctx, "Risk gate could not check open positions", map[string]interface{}{"error": err.Error()})
	} else if openCount >= g.cfg.MaxOpenPositions {
		return Assessment{
			Approved:        false,
			RejectionReason: fmt.Sprintf("Max open positions reached (%d/%d)", openCount, g.cfg.MaxOpenPositions),
		}
	}

	// Daily drawdown limit over today's realized PnL.
	maxLoss := g.cfg.AccountBalance * g.cfg.MaxDailyDrawdown
	if todayPnL, err := g.dailyRealizedPnL(ctx); err != nil {
		g.logger.Warn(ctx, "Risk gate could not check daily drawdown", map[string]interface{}{"error": err.Error()})
	} else if todayPnL <= -maxLoss {
		return Assessment{
			Approved:        false,
			RejectionReason: fmt.Sprintf("Daily drawdown limit hit: $%.2f (max: $%.2f)", todayPnL, -maxLoss),
		}
	}

	if !order.Action.IsReal() || order.EntryPrice == 0 {
		return Assessment{
			Approved:        false,
			RejectionReason: "Invalid order details from tactical stage",
		}
	}

	slDistancePips := math.Abs(order.EntryPrice-order.StopLoss) * 10000
	if g.cfg.MinSLDistancePips > 0 && slDistancePips < g.cfg.MinSLDistancePips {
		return Assessment{
			Approved:        false,
			RejectionReason: fmt.Sprintf("Stop distance %.1f pips below minimum %.1f", slDistancePips, g.cfg.MinSLDistancePips),
		}
	}
	if g.cfg.MaxSLDistancePips > 0 && slDistancePips > g.cfg.MaxSLDistancePips {
		return Assessment{
			Approved:        false,
			RejectionReason: fmt.Sprintf("Stop distance %.1f pips above maximum %.1f", slDistancePips, g.cfg.MaxSLDistancePips),
		}
	}

	rrRatio := RewardRiskRatio(order.EntryPrice, order.StopLoss, order.TakeProfit, order.Action)
	if rrRatio < g.cfg.MinRiskRewardRatio {
		return Assessment{
			Approved:        false,
			RewardRiskRatio: rrRatio,
			RejectionReason: fmt.Sprintf("R/R ratio %.2f below minimum %.2f", rrRatio, g.cfg.MinRiskRewardRatio),
		}
	}

	lotSize := PositionSize(g.cfg, order.EntryPrice, order.StopLoss, pair)
	riskAmount := slDistancePips * g.cfg.PipValue(pair, lotSize)
	riskPct := riskAmount / g.cfg.AccountBalance * 100

	return Assessment{
		Approved:        true,
		LotSize:         lotSize,
		RiskAmount:      riskAmount,
		RiskPercentage:  riskPct,
		RewardRiskRatio: rrRatio,
	}
}

// TraceLine renders the assessment as a reasoning-trace entry.
func (a Assessment) TraceLine() string {
	if a.Approved {
		return fmt.Sprintf("[Risk Gate]: APPROVED - Lot Size: %v, Risk: $%.2f (%.2f%%), R/R: %.2f",
			a.LotSize, a.RiskAmount, a.RiskPercentage, a.RewardRiskRatio)
	}
	return fmt.Sprintf("[Risk Gate]: REJECTED - %s", a.RejectionReason)
}

// dailyRealizedPnL sums PnL over trades closed out of today's activity.
func (g *Gate) dailyRealizedPnL(ctx context.Context) (float64, error) {
	now := g.now().UTC()
	dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	closed, err := g.trades.FindClosedSince(ctx, dayStart)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, t := range closed {
		if t.PNL != nil {
			total += *t.PNL
		}
	}
	return total, nil
}

// RewardRiskRatio computes the reward-to-risk ratio of a proposal, oriented
// by the action direction. Non-positive risk yields 0.
func RewardRiskRatio(entry, stopLoss, takeProfit float64, action domain.Action) float64 {
	var risk, reward float64
	if action == domain.ActionBuy {
		risk = entry - stopLoss
		reward = takeProfit - entry
	} else {
		risk = stopLoss - entry
		reward = entry - takeProfit
	}
	if risk <= 0 {
		return 0
	}
	return reward / risk
}

// PositionSize computes the lot size that risks cfg.MaxRiskPerTrade of the
// balance given the stop distance:
//
//	lot = (balance * riskFraction) / (slDistancePips * pipValuePerLot)
//
// rounded to the nearest LotSizeStep and clamped to [MinLotSize, MaxLotSize].
func PositionSize(cfg Config, entryPrice, stopLoss float64, pair string) float64 {
	riskAmount := cfg.AccountBalance * cfg.MaxRiskPerTrade
	slDistancePips := math.Abs(entryPrice-stopLoss) * 10000
	pipValuePerLot := cfg.PipValue(pair, 1.0)

	lotSize := riskAmount / (slDistancePips * pipValuePerLot)
	lotSize = math.Round(lotSize/cfg.LotSizeStep) * cfg.LotSizeStep
	return math.Max(cfg.MinLotSize, math.Min(lotSize, cfg.MaxLotSize))
}
