package advisors

import (
	"context"
	"fmt"

	"fxpilot/internal/domain"
	"fxpilot/internal/indicators"
)

// The fallback advisors produce a deterministic, conservative stand-in for
// each stage so the pipeline always terminates with a decision when a
// provider call fails. Each one documents the substitution in the reasoning
// trace.

// FallbackStrategist derives a mechanical bias from the H1 trend.
type FallbackStrategist struct{}

func (FallbackStrategist) Name() string { return "strategist-fallback" }

func (FallbackStrategist) Invoke(ctx context.Context, sc domain.StageContext) (domain.StageUpdate, error) {
	bias := domain.BiasRiskOff
	switch sc.Snapshot.H1Trend {
	case indicators.TrendBullish:
		bias = domain.BiasLong
	case indicators.TrendBearish:
		bias = domain.BiasShort
	}
	return domain.StageUpdate{
		Bias: &bias,
		Reasoning: []string{
			fmt.Sprintf("[Strategist (Fallback)]: Advisory unavailable. Mechanical bias: %s", bias),
		},
	}, nil
}

// FallbackArchitect treats the market as ranging, the safe default.
type FallbackArchitect struct{}

func (FallbackArchitect) Name() string { return "architect-fallback" }

func (FallbackArchitect) Invoke(ctx context.Context, sc domain.StageContext) (domain.StageUpdate, error) {
	structure := domain.StructureRanging
	return domain.StageUpdate{
		Structure: &structure,
		Reasoning: []string{
			"[Architect (Fallback)]: Advisory unavailable. Treating structure as RANGING.",
		},
	}, nil
}

// FallbackTactical always waits: no provider confirmation, no trigger.
type FallbackTactical struct{}

func (FallbackTactical) Name() string { return "tactical-fallback" }

func (FallbackTactical) Invoke(ctx context.Context, sc domain.StageContext) (domain.StageUpdate, error) {
	decision := domain.DecisionWait
	price := sc.Snapshot.Price.Bid
	order := domain.OrderProposal{
		Action:     domain.ActionWait,
		EntryPrice: price,
		StopLoss:   price,
		TakeProfit: price,
	}
	return domain.StageUpdate{
		Decision: &decision,
		Order:    &order,
		Reasoning: []string{
			"[Tactical (Fallback)]: Advisory unavailable. Decision: WAIT.",
		},
	}, nil
}
