package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fxpilot/internal/domain"
)

// Mock implementations

type mockLogger struct{}

func (mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

type mockTradeRepo struct {
	openCount int
	openErr   error
	closed    []*domain.Trade
	closedErr error
}

func (m *mockTradeRepo) CreateTrade(ctx context.Context, trade *domain.Trade) (int64, error) {
	return 1, nil
}
func (m *mockTradeRepo) FindOpenTrades(ctx context.Context) ([]*domain.Trade, error) {
	return nil, nil
}
func (m *mockTradeRepo) CountOpenTrades(ctx context.Context) (int, error) {
	return m.openCount, m.openErr
}
func (m *mockTradeRepo) FindClosedSince(ctx context.Context, since time.Time) ([]*domain.Trade, error) {
	return m.closed, m.closedErr
}
func (m *mockTradeRepo) CloseTrade(ctx context.Context, id int64, exitPrice, pnl float64) error {
	return nil
}

func testConfig() Config {
	return Config{
		AccountBalance:     10000,
		MaxRiskPerTrade:    0.01,
		MinRiskRewardRatio: 2.0,
		MaxDailyDrawdown:   0.03,
		MaxOpenPositions:   3,
		MinLotSize:         0.01,
		MaxLotSize:         1.0,
		LotSizeStep:        0.01,
		PipValue: func(pair string, lotSize float64) float64 {
			return 10 * lotSize
		},
	}
}

func newTestGate(t *testing.T, repo *mockTradeRepo) *Gate {
	t.Helper()
	gate, err := NewGate(testConfig(), repo, mockLogger{})
	require.NoError(t, err)
	return gate
}

func executeOrder() domain.OrderProposal {
	return domain.OrderProposal{
		Action:     domain.ActionBuy,
		EntryPrice: 1.1000,
		StopLoss:   1.0980,
		TakeProfit: 1.1040,
	}
}

func TestRewardRiskRatio(t *testing.T) {
	assert.InDelta(t, 2.0, RewardRiskRatio(1.1000, 1.0980, 1.1040, domain.ActionBuy), 1e-9)
	assert.InDelta(t, 2.0, RewardRiskRatio(1.1000, 1.1020, 1.0960, domain.ActionSell), 1e-9)

	// Inverted stop means non-positive risk.
	assert.Zero(t, RewardRiskRatio(1.1000, 1.1020, 1.1040, domain.ActionBuy))
	assert.Zero(t, RewardRiskRatio(1.1000, 1.1000, 1.1040, domain.ActionBuy))
}

func TestPositionSizeScenario(t *testing.T) {
	// $10,000 balance, 1% risk, 20 pip stop, $10/pip per lot.
	lot := PositionSize(testConfig(), 1.1000, 1.0980, "EUR_USD")
	assert.InDelta(t, 0.5, lot, 1e-9)
	assert.GreaterOrEqual(t, lot, 0.4)
	assert.LessOrEqual(t, lot, 0.6)
}

func TestPositionSizeBoundsAndStep(t *testing.T) {
	cfg := testConfig()
	stops := []float64{1.0999, 1.0995, 1.0990, 1.0980, 1.0950, 1.0900, 1.0800}
	for _, stop := range stops {
		lot := PositionSize(cfg, 1.1000, stop, "EUR_USD")
		assert.GreaterOrEqual(t, lot, cfg.MinLotSize)
		assert.LessOrEqual(t, lot, cfg.MaxLotSize)

		steps := lot / cfg.LotSizeStep
		assert.InDelta(t, math.Round(steps), steps, 1e-9,
			"lot %v must be a multiple of step %v", lot, cfg.LotSizeStep)
	}
}

func TestGatePassThroughWhenNotExecuting(t *testing.T) {
	gate := newTestGate(t, &mockTradeRepo{})

	for _, decision := range []domain.Decision{domain.DecisionWait, domain.DecisionCancel} {
		a := gate.Evaluate(context.Background(), decision, executeOrder(), "EUR_USD")
		assert.False(t, a.Approved)
		assert.Contains(t, a.RejectionReason, string(decision))
	}
}

func TestGateRejectsAtOpenPositionCap(t *testing.T) {
	gate := newTestGate(t, &mockTradeRepo{openCount: 3})

	// Even a pristine 1:2 setup is rejected at the cap.
	a := gate.Evaluate(context.Background(), domain.DecisionExecute, executeOrder(), "EUR_USD")
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReason, "Max open positions")
}

func TestGateRejectsOnDailyDrawdown(t *testing.T) {
	pnl := -300.0 // Exactly at -(10000 * 0.03)
	repo := &mockTradeRepo{closed: []*domain.Trade{
		{Status: domain.StatusClosed, PNL: &pnl},
	}}
	gate := newTestGate(t, repo)

	a := gate.Evaluate(context.Background(), domain.DecisionExecute, executeOrder(), "EUR_USD")
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReason, "drawdown")
}

func TestGateRejectsInvalidOrder(t *testing.T) {
	gate := newTestGate(t, &mockTradeRepo{})

	order := executeOrder()
	order.Action = domain.ActionWait
	a := gate.Evaluate(context.Background(), domain.DecisionExecute, order, "EUR_USD")
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReason, "Invalid order details")

	order = executeOrder()
	order.EntryPrice = 0
	a = gate.Evaluate(context.Background(), domain.DecisionExecute, order, "EUR_USD")
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReason, "Invalid order details")
}

func TestGateRejectsOutOfBoundsStopDistance(t *testing.T) {
	cfg := testConfig()
	cfg.MinSLDistancePips = 10
	cfg.MaxSLDistancePips = 100
	gate, err := NewGate(cfg, &mockTradeRepo{}, mockLogger{})
	require.NoError(t, err)

	// 5 pip stop, below the minimum.
	tight := domain.OrderProposal{
		Action:     domain.ActionBuy,
		EntryPrice: 1.1000,
		StopLoss:   1.0995,
		TakeProfit: 1.1010,
	}
	a := gate.Evaluate(context.Background(), domain.DecisionExecute, tight, "EUR_USD")
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReason, "below minimum")

	// 200 pip stop, above the maximum.
	wide := domain.OrderProposal{
		Action:     domain.ActionBuy,
		EntryPrice: 1.1000,
		StopLoss:   1.0800,
		TakeProfit: 1.1400,
	}
	a = gate.Evaluate(context.Background(), domain.DecisionExecute, wide, "EUR_USD")
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReason, "above maximum")

	// In-bounds stop is unaffected.
	a = gate.Evaluate(context.Background(), domain.DecisionExecute, executeOrder(), "EUR_USD")
	assert.True(t, a.Approved)
}

func TestGateRejectsLowRewardRisk(t *testing.T) {
	gate := newTestGate(t, &mockTradeRepo{})

	// 20 pips of risk for 20 pips of reward: 1:1.
	order := domain.OrderProposal{
		Action:     domain.ActionBuy,
		EntryPrice: 1.1000,
		StopLoss:   1.0980,
		TakeProfit: 1.1020,
	}
	a := gate.Evaluate(context.Background(), domain.DecisionExecute, order, "EUR_USD")
	assert.False(t, a.Approved)
	assert.Contains(t, a.RejectionReason, "R/R")
}

func TestGateApprovesAndSizes(t *testing.T) {
	gate := newTestGate(t, &mockTradeRepo{openCount: 2})

	a := gate.Evaluate(context.Background(), domain.DecisionExecute, executeOrder(), "EUR_USD")
	require.True(t, a.Approved, "rejected: %s", a.RejectionReason)
	assert.Empty(t, a.RejectionReason)
	assert.InDelta(t, 0.5, a.LotSize, 1e-9)
	assert.InDelta(t, 100, a.RiskAmount, 1e-6)
	assert.InDelta(t, 1.0, a.RiskPercentage, 1e-6)
	assert.InDelta(t, 2.0, a.RewardRiskRatio, 1e-9)
	assert.Contains(t, a.TraceLine(), "APPROVED")
}

func TestGateSkipsLedgerChecksOnQueryFailure(t *testing.T) {
	repo := &mockTradeRepo{
		openErr:   assert.AnError,
		closedErr: assert.AnError,
	}
	gate := newTestGate(t, repo)

	// Ledger being unreadable must not block an otherwise valid order.
	a := gate.Evaluate(context.Background(), domain.DecisionExecute, executeOrder(), "EUR_USD")
	assert.True(t, a.Approved)
}
