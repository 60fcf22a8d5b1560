package advisors

import (
	"context"
	"fmt"

	"fxpilot/internal/domain"
	"fxpilot/internal/ports"
)

const architectPrompt = `### ROLE
You are the 15-minute market structure analyst. The strategist has already
set the bias; your job is to classify the structure in which that bias will
be executed.

### OUTPUT STATES
- TRENDING: clear break of structure in the direction of the bias.
- RANGING: price contained between swing high/low.
- CHOPPY: no clear structure, recommend caution.

### OUTPUT
Respond ONLY with JSON:
{"structure": "TRENDING" | "RANGING" | "CHOPPY",
 "key_zone": {"price": 0.0, "type": "ORDER_BLOCK"},
 "action_plan": "instructions for the entry layer",
 "reasoning": "brief structural analysis"}`

type architectOutput struct {
	Structure string `json:"structure"`
	KeyZone   struct {
		Price float64 `json:"price"`
		Type  string  `json:"type"`
	} `json:"key_zone"`
	ActionPlan string `json:"action_plan"`
	Reasoning  string `json:"reasoning"`
}

// Architect is the second advisory stage: it classifies the market regime
// the bias will be executed in.
type Architect struct {
	chat ChatClient
}

// NewArchitect creates the provider-backed architect stage.
func NewArchitect(chat ChatClient) *Architect {
	return &Architect{chat: chat}
}

func (a *Architect) Name() string { return "architect" }

// Invoke asks the model for a structure classification.
func (a *Architect) Invoke(ctx context.Context, sc domain.StageContext) (domain.StageUpdate, error) {
	user := fmt.Sprintf("Bias: %s\n%s", sc.Bias, snapshotPrompt(sc.Snapshot))
	raw, err := a.chat.Complete(ctx, architectPrompt, user)
	if err != nil {
		return domain.StageUpdate{}, err
	}

	var out architectOutput
	if err := decodeStageOutput(raw, &out); err != nil {
		return domain.StageUpdate{}, err
	}

	structure := domain.MarketStructure(out.Structure)
	switch structure {
	case domain.StructureTrending, domain.StructureRanging, domain.StructureChoppy:
	default:
		return domain.StageUpdate{}, fmt.Errorf("architect structure %q: %w", out.Structure, ports.ErrSchemaViolation)
	}

	return domain.StageUpdate{
		Structure: &structure,
		Reasoning: []string{
			fmt.Sprintf("[Architect]: %s (Plan: %s)", out.Reasoning, out.ActionPlan),
		},
	}, nil
}
