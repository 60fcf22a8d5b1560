package ports

import "context"

// OrderResult holds the essential details of a filled market order.
type OrderResult struct {
	OrderID   string  // Broker's transaction ID
	FillPrice float64 // Actual fill price
}

// BrokerPosition is one broker-side open position, keyed by instrument in
// the map returned by ListOpenPositions.
type BrokerPosition struct {
	Side     string  // "LONG" or "SHORT"
	Units    int     // Absolute unit count
	AvgPrice float64 // Average entry price, 0 if not reported
}

// ExecutionClient defines the order-placement surface of the broker.
type ExecutionClient interface {
	// PlaceMarketOrder submits a market order with attached stop loss and
	// take profit. Units are signed: positive buys, negative sells.
	PlaceMarketOrder(ctx context.Context, pair string, units int, stopLoss, takeProfit float64) (*OrderResult, error)
	// ListOpenPositions retrieves the broker's current open positions,
	// keyed by instrument. An instrument absent from the map is flat.
	ListOpenPositions(ctx context.Context) (map[string]BrokerPosition, error)
}
