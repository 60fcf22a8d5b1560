package advisors

import (
	"context"
	"fmt"

	"fxpilot/internal/domain"
	"fxpilot/internal/ports"
)

const tacticalPrompt = `### ROLE
You are the tactical entry layer. The strategist set the bias and the
architect classified the structure; you decide whether to pull the trigger
now and at what levels.

### RULES
1. Only EXECUTE when momentum confirms the bias at a meaningful level.
2. The proposal must offer at least 1:2 reward-to-risk.
3. WAIT when the setup is forming but unconfirmed; CANCEL when invalidated.

### OUTPUT
Respond ONLY with JSON:
{"decision": "EXECUTE" | "WAIT" | "CANCEL",
 "order_details": {"action": "BUY" | "SELL" | "WAIT",
                   "entry_price": 0.0, "stop_loss": 0.0, "take_profit": 0.0},
 "reasoning": "entry trigger confirmation notes"}`

type tacticalOutput struct {
	Decision     string `json:"decision"`
	OrderDetails struct {
		Action     string  `json:"action"`
		EntryPrice float64 `json:"entry_price"`
		StopLoss   float64 `json:"stop_loss"`
		TakeProfit float64 `json:"take_profit"`
	} `json:"order_details"`
	Reasoning string `json:"reasoning"`
}

// Tactical is the final advisory stage: it turns bias and structure into a
// concrete decision and candidate order levels.
type Tactical struct {
	chat ChatClient
}

// NewTactical creates the provider-backed tactical stage.
func NewTactical(chat ChatClient) *Tactical {
	return &Tactical{chat: chat}
}

func (t *Tactical) Name() string { return "tactical" }

// Invoke asks the model for a decision and order proposal.
func (t *Tactical) Invoke(ctx context.Context, sc domain.StageContext) (domain.StageUpdate, error) {
	user := fmt.Sprintf("Bias: %s\nStructure: %s\n%s", sc.Bias, sc.Structure, snapshotPrompt(sc.Snapshot))
	raw, err := t.chat.Complete(ctx, tacticalPrompt, user)
	if err != nil {
		return domain.StageUpdate{}, err
	}

	var out tacticalOutput
	if err := decodeStageOutput(raw, &out); err != nil {
		return domain.StageUpdate{}, err
	}

	decision := domain.Decision(out.Decision)
	switch decision {
	case domain.DecisionExecute, domain.DecisionWait, domain.DecisionCancel:
	default:
		return domain.StageUpdate{}, fmt.Errorf("tactical decision %q: %w", out.Decision, ports.ErrSchemaViolation)
	}
	action := domain.Action(out.OrderDetails.Action)
	switch action {
	case domain.ActionBuy, domain.ActionSell, domain.ActionWait:
	default:
		return domain.StageUpdate{}, fmt.Errorf("tactical action %q: %w", out.OrderDetails.Action, ports.ErrSchemaViolation)
	}

	order := domain.OrderProposal{
		Action:     action,
		EntryPrice: out.OrderDetails.EntryPrice,
		StopLoss:   out.OrderDetails.StopLoss,
		TakeProfit: out.OrderDetails.TakeProfit,
	}

	trace := fmt.Sprintf("[Tactical]: %s - %s", decision, out.Reasoning)
	if decision == domain.DecisionExecute {
		trace += fmt.Sprintf(" (Entry: %v, SL: %v)", order.EntryPrice, order.StopLoss)
	}

	return domain.StageUpdate{
		Decision:  &decision,
		Order:     &order,
		Reasoning: []string{trace},
	}, nil
}
