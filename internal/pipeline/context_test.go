package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"fxpilot/internal/domain"
)

func TestMergeScalarsLastWriteWins(t *testing.T) {
	sc := &domain.StageContext{Bias: domain.BiasLong, Decision: domain.DecisionWait}

	bias := domain.BiasShort
	structure := domain.StructureTrending
	merge(sc, domain.StageUpdate{Bias: &bias, Structure: &structure})

	assert.Equal(t, domain.BiasShort, sc.Bias)
	assert.Equal(t, domain.StructureTrending, sc.Structure)
	// Fields absent from the update keep their value.
	assert.Equal(t, domain.DecisionWait, sc.Decision)

	decision := domain.DecisionExecute
	order := domain.OrderProposal{Action: domain.ActionBuy, EntryPrice: 1.1}
	merge(sc, domain.StageUpdate{Decision: &decision, Order: &order})

	assert.Equal(t, domain.BiasShort, sc.Bias, "later updates must not clear earlier fields")
	assert.Equal(t, domain.DecisionExecute, sc.Decision)
	assert.Equal(t, order, sc.Order)
}

func TestMergeTraceIsAppendOnly(t *testing.T) {
	sc := &domain.StageContext{}

	merge(sc, domain.StageUpdate{Reasoning: []string{"[Strategist]: first"}})
	merge(sc, domain.StageUpdate{Reasoning: []string{"[Architect]: second", "[Architect]: third"}})
	merge(sc, domain.StageUpdate{}) // An empty update leaves the trace alone

	assert.Equal(t, []string{
		"[Strategist]: first",
		"[Architect]: second",
		"[Architect]: third",
	}, sc.ReasoningTrace)
}
