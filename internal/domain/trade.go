package domain

import "time"

// Trade is a persisted trading record. It is created once when an approved
// order fills and is mutated exactly once afterwards, when the reconciler
// transitions it from OPEN to CLOSED. ExitPrice and PNL stay nil until then.
type Trade struct {
	ID             int64       // Unique identifier assigned by the store
	Pair           string      // Instrument in broker notation (e.g., "EUR_USD")
	Action         Action      // BUY or SELL
	EntryPrice     float64     // Fill price at creation, immutable
	StopLoss       float64     // Stop level fixed at creation
	TakeProfit     float64     // Target level fixed at creation
	LotSize        float64     // Position size in lots
	Status         TradeStatus // OPEN until reconciled, then CLOSED
	ExitPrice      *float64    // Set on close only
	PNL            *float64    // Realized PnL in account currency, set on close only
	ReasoningTrace []string    // Full advisory chain trace recorded at creation
	Timestamp      time.Time   // Creation time
}

// IsOpen reports whether the trade is still held according to the ledger.
func (t *Trade) IsOpen() bool {
	return t.Status == StatusOpen
}

// Heartbeat is an append-only liveness record written at cycle boundaries
// and by the reconciler. Rows are never updated or deleted.
type Heartbeat struct {
	ID        int64
	Timestamp time.Time
	Status    string // e.g., "ALIVE", "CRASH", "RECONCILE"
	Message   string
}
