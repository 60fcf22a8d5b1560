package pipeline

import "fxpilot/internal/domain"

// merge applies a stage update to the accumulated context. The rule is
// declared per field, not inferred: scalar fields are last-write-wins,
// ReasoningTrace is an accumulator that is only ever appended to. The same
// reducer runs for every stage, real or fallback.
func merge(sc *domain.StageContext, upd domain.StageUpdate) {
	if upd.Bias != nil {
		sc.Bias = *upd.Bias
	}
	if upd.Structure != nil {
		sc.Structure = *upd.Structure
	}
	if upd.Decision != nil {
		sc.Decision = *upd.Decision
	}
	if upd.Order != nil {
		sc.Order = *upd.Order
	}
	sc.ReasoningTrace = append(sc.ReasoningTrace, upd.Reasoning...)
}
