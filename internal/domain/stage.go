package domain

// OrderProposal is a candidate order produced by the tactical stage. It is a
// proposal only; the risk gate decides whether it becomes a position.
type OrderProposal struct {
	Action     Action
	EntryPrice float64
	StopLoss   float64
	TakeProfit float64
}

// StageContext is the typed state accumulated across the advisory chain.
// Stages never write to it directly; they return a StageUpdate which the
// orchestrator merges via an explicit reducer.
type StageContext struct {
	Snapshot  MarketSnapshot
	Bias      Bias
	Structure MarketStructure
	Decision  Decision
	Order     OrderProposal

	// ReasoningTrace is append-only: every stage, real or fallback,
	// contributes lines and nothing ever replaces earlier entries.
	ReasoningTrace []string
}

// StageUpdate is a partial update returned by a single advisory stage.
// Nil pointer fields mean "no change"; Reasoning lines are always appended.
type StageUpdate struct {
	Bias      *Bias
	Structure *MarketStructure
	Decision  *Decision
	Order     *OrderProposal
	Reasoning []string
}
