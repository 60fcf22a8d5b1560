package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxpilot/internal/domain"
	"fxpilot/internal/ports"
)

// Mock implementations

type mockLogger struct{}

func (mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type closedTrade struct {
	id        int64
	exitPrice float64
	pnl       float64
}

type mockLedger struct {
	open       []*domain.Trade
	closed     []closedTrade
	heartbeats []string
}

func (m *mockLedger) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	return 0, nil
}

func (m *mockLedger) FindOpenTrades(ctx context.Context) ([]*domain.Trade, error) {
	return m.open, nil
}

func (m *mockLedger) CountOpenTrades(ctx context.Context) (int, error) {
	return len(m.open), nil
}

func (m *mockLedger) FindClosedSince(ctx context.Context, since time.Time) ([]*domain.Trade, error) {
	return nil, nil
}

func (m *mockLedger) CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64) error {
	for _, c := range m.closed {
		if c.id == id {
			return ports.ErrNotFound // Guarded update: already closed
		}
	}
	m.closed = append(m.closed, closedTrade{id, exitPrice, pnl})
	return nil
}

func (m *mockLedger) AppendHeartbeat(ctx context.Context, status, message string) error {
	m.heartbeats = append(m.heartbeats, status+": "+message)
	return nil
}

type mockBroker struct {
	positions map[string]ports.BrokerPosition
	price     domain.Price
	priceErr  error
}

func (m *mockBroker) PlaceMarketOrder(ctx context.Context, pair string, units int, stopLoss, takeProfit float64) (*ports.OrderResult, error) {
	return nil, nil
}

func (m *mockBroker) ListOpenPositions(ctx context.Context) (map[string]ports.BrokerPosition, error) {
	return m.positions, nil
}

func (m *mockBroker) GetCurrentPrice(ctx context.Context, pair string) (domain.Price, error) {
	if m.priceErr != nil {
		return domain.Price{}, m.priceErr
	}
	return m.price, nil
}

func (m *mockBroker) GetCandles(ctx context.Context, pair, granularity string, count int) ([]domain.Candle, error) {
	return nil, nil
}

func (m *mockBroker) GetAccountSummary(ctx context.Context) (ports.AccountSummary, error) {
	return ports.AccountSummary{}, nil
}

func pipValue(pair string, lotSize float64) float64 { return 10 * lotSize }

func newTestReconciler(t *testing.T, ledger *mockLedger, broker *mockBroker) *Reconciler {
	t.Helper()
	rec, err := NewReconciler(Config{Interval: time.Minute, PipValue: pipValue},
		mockLogger{}, ledger, broker, broker, ledger)
	require.NoError(t, err)
	return rec
}

func openTrade(id int64, action domain.Action) *domain.Trade {
	return &domain.Trade{
		ID:         id,
		Pair:       "EUR_USD",
		Action:     action,
		EntryPrice: 1.1000,
		StopLoss:   1.0980,
		TakeProfit: 1.1040,
		LotSize:    0.5,
		Status:     domain.StatusOpen,
	}
}

func TestSweepClosesTradesAbsentFromBroker(t *testing.T) {
	ledger := &mockLedger{open: []*domain.Trade{openTrade(1, domain.ActionBuy)}}
	broker := &mockBroker{price: domain.Price{Bid: 1.1050, Ask: 1.1052}}
	rec := newTestReconciler(t, ledger, broker)

	require.NoError(t, rec.Sweep(context.Background()))

	require.Len(t, ledger.closed, 1)
	closed := ledger.closed[0]
	assert.Equal(t, int64(1), closed.id)
	assert.Equal(t, 1.1050, closed.exitPrice)
	// 50 pips in favor of a BUY at 0.5 lots, $10/pip per lot.
	assert.InDelta(t, 250, closed.pnl, 0.01)
}

func TestSweepLeavesHeldPositionsAlone(t *testing.T) {
	ledger := &mockLedger{open: []*domain.Trade{openTrade(1, domain.ActionBuy)}}
	broker := &mockBroker{
		positions: map[string]ports.BrokerPosition{
			"EUR_USD": {Side: "LONG", Units: 50000, AvgPrice: 1.1000},
		},
		price: domain.Price{Bid: 1.1050, Ask: 1.1052},
	}
	rec := newTestReconciler(t, ledger, broker)

	require.NoError(t, rec.Sweep(context.Background()))
	assert.Empty(t, ledger.closed)
	assert.Len(t, ledger.open, 1)
}

func TestSweepFallsBackToStopLossExit(t *testing.T) {
	ledger := &mockLedger{open: []*domain.Trade{openTrade(1, domain.ActionBuy)}}
	broker := &mockBroker{priceErr: ports.ErrProviderUnavailable}
	rec := newTestReconciler(t, ledger, broker)

	require.NoError(t, rec.Sweep(context.Background()))

	require.Len(t, ledger.closed, 1)
	closed := ledger.closed[0]
	assert.Equal(t, 1.0980, closed.exitPrice, "unpriceable exits settle at the stop loss")
	// 20 pips against a BUY at 0.5 lots.
	assert.InDelta(t, -100, closed.pnl, 0.01)
}

func TestSweepIsIdempotent(t *testing.T) {
	ledger := &mockLedger{open: []*domain.Trade{openTrade(1, domain.ActionBuy)}}
	broker := &mockBroker{price: domain.Price{Bid: 1.1050, Ask: 1.1052}}
	rec := newTestReconciler(t, ledger, broker)

	require.NoError(t, rec.Sweep(context.Background()))
	require.NoError(t, rec.Sweep(context.Background()))
	assert.Len(t, ledger.closed, 1, "a second sweep with no upstream change is a no-op")
}

func TestSweepShortPnLOrientation(t *testing.T) {
	ledger := &mockLedger{open: []*domain.Trade{openTrade(7, domain.ActionSell)}}
	broker := &mockBroker{price: domain.Price{Bid: 1.0950, Ask: 1.0952}}
	rec := newTestReconciler(t, ledger, broker)

	require.NoError(t, rec.Sweep(context.Background()))

	require.Len(t, ledger.closed, 1)
	// 50 pips below entry favors a SELL.
	assert.InDelta(t, 250, ledger.closed[0].pnl, 0.01)
}

func TestSweepRecordsHeartbeat(t *testing.T) {
	ledger := &mockLedger{open: []*domain.Trade{
		openTrade(1, domain.ActionBuy),
		openTrade(2, domain.ActionSell),
	}}
	broker := &mockBroker{price: domain.Price{Bid: 1.1050, Ask: 1.1052}}
	rec := newTestReconciler(t, ledger, broker)

	require.NoError(t, rec.Sweep(context.Background()))

	require.Len(t, ledger.heartbeats, 1)
	assert.Equal(t, "RECONCILE: checked 2 open trades, closed 2", ledger.heartbeats[0])
}

func TestSweepEmptyLedgerSkipsBrokerCall(t *testing.T) {
	ledger := &mockLedger{}
	broker := &mockBroker{}
	rec := newTestReconciler(t, ledger, broker)

	require.NoError(t, rec.Sweep(context.Background()))
	assert.Empty(t, ledger.heartbeats, "the fast path writes no heartbeat")
}
