package domain

// Action represents the direction of a proposed or executed order.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionWait Action = "WAIT"
)

// IsReal reports whether the action places an actual position.
func (a Action) IsReal() bool {
	return a == ActionBuy || a == ActionSell
}

// TradeStatus represents the lifecycle state of a ledger trade.
type TradeStatus string

const (
	StatusOpen   TradeStatus = "OPEN"
	StatusClosed TradeStatus = "CLOSED"
	StatusNone   TradeStatus = "NONE"
)

// Bias is the directional lean produced by the strategist stage.
type Bias string

const (
	BiasLong    Bias = "BIAS_LONG"
	BiasShort   Bias = "BIAS_SHORT"
	BiasRiskOff Bias = "RISK_OFF"
)

// MarketStructure is the regime classification produced by the architect stage.
type MarketStructure string

const (
	StructureTrending MarketStructure = "TRENDING"
	StructureRanging  MarketStructure = "RANGING"
	StructureChoppy   MarketStructure = "CHOPPY"
)

// Decision is the verdict produced by the tactical stage.
type Decision string

const (
	DecisionExecute Decision = "EXECUTE"
	DecisionWait    Decision = "WAIT"
	DecisionCancel  Decision = "CANCEL"
)
