package advisors

import (
	"context"
	"fmt"

	"fxpilot/internal/domain"
	"fxpilot/internal/ports"
)

const strategistPrompt = `### ROLE
You are the senior macro strategist for an algorithmic FX desk. Determine the
directional bias for the instrument from the supplied technicals.

### PROTOCOL
1. If the H1 trend and momentum align, favor that direction.
2. If structure is unclear or the spread is elevated, force RISK_OFF.
3. Excessive recent volatility also forces RISK_OFF.

### OUTPUT
Respond ONLY with JSON:
{"state": "BIAS_LONG" | "BIAS_SHORT" | "RISK_OFF",
 "confidence_score": 0.0 to 1.0,
 "reasoning": "two-sentence technical justification"}`

type strategistOutput struct {
	State           string  `json:"state"`
	ConfidenceScore float64 `json:"confidence_score"`
	Reasoning       string  `json:"reasoning"`
}

// Strategist is the first advisory stage: it sets the directional bias from
// the market snapshot. A RISK_OFF bias short-circuits the rest of the chain.
type Strategist struct {
	chat ChatClient
}

// NewStrategist creates the provider-backed strategist stage.
func NewStrategist(chat ChatClient) *Strategist {
	return &Strategist{chat: chat}
}

func (s *Strategist) Name() string { return "strategist" }

// Invoke asks the model for a bias and validates it against the stage schema.
func (s *Strategist) Invoke(ctx context.Context, sc domain.StageContext) (domain.StageUpdate, error) {
	raw, err := s.chat.Complete(ctx, strategistPrompt, snapshotPrompt(sc.Snapshot))
	if err != nil {
		return domain.StageUpdate{}, err
	}

	var out strategistOutput
	if err := decodeStageOutput(raw, &out); err != nil {
		return domain.StageUpdate{}, err
	}

	bias := domain.Bias(out.State)
	switch bias {
	case domain.BiasLong, domain.BiasShort, domain.BiasRiskOff:
	default:
		return domain.StageUpdate{}, fmt.Errorf("strategist state %q: %w", out.State, ports.ErrSchemaViolation)
	}

	return domain.StageUpdate{
		Bias: &bias,
		Reasoning: []string{
			fmt.Sprintf("[Strategist]: %s (Conf: %.2f)", out.Reasoning, out.ConfidenceScore),
		},
	}, nil
}

// snapshotPrompt renders the snapshot fields the stages consume.
func snapshotPrompt(snap domain.MarketSnapshot) string {
	return fmt.Sprintf(
		"Instrument: %s\nBid/Ask: %.5f/%.5f (spread %.5f)\nH1 Trend: %s\nH1 RSI: %.1f\nATR: %.5f\nSupport: %.5f Resistance: %.5f\n15M Structure: %s",
		snap.Pair, snap.Price.Bid, snap.Price.Ask, snap.Price.Spread(),
		snap.H1Trend, snap.H1RSI, snap.ATR, snap.Support, snap.Resistance, snap.M15Structure,
	)
}
