// Package safety holds the process-wide trading interlocks: the circuit
// breaker that halts external calls after repeated failures, and the kill
// switch operators use to stop trading outright.
package safety

import (
	"context"
	"sync"
	"time"

	"fxpilot/internal/ports"
)

// CircuitBreaker tracks consecutive external-call failures and opens once a
// threshold is reached, refusing attempts until a cooldown window elapses.
// A single instance is constructed at process start and injected wherever
// it is needed; state mutation is mutex-guarded so callers from any
// goroutine are safe even though the orchestrator is single-writer today.
type CircuitBreaker struct {
	mu sync.Mutex

	maxFailures int
	resetWindow time.Duration

	failureCount int
	lastFailure  time.Time
	open         bool

	now    func() time.Time
	logger ports.Logger
}

// BreakerStatus is a read-only snapshot of the breaker state.
type BreakerStatus struct {
	IsOpen       bool
	FailureCount int
	MaxFailures  int
	LastFailure  time.Time
}

// NewCircuitBreaker creates a circuit breaker with the given threshold and
// cooldown window.
func NewCircuitBreaker(maxFailures int, resetWindow time.Duration, logger ports.Logger) *CircuitBreaker {
	if maxFailures <= 0 {
		maxFailures = 5
	}
	if resetWindow <= 0 {
		resetWindow = 60 * time.Minute
	}
	return &CircuitBreaker{
		maxFailures: maxFailures,
		resetWindow: resetWindow,
		now:         time.Now,
		logger:      logger,
	}
}

// RecordSuccess resets the failure streak and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.failureCount = 0
	cb.open = false
	cb.lastFailure = time.Time{}
}

// RecordFailure records one failure. If the gap since the previous failure
// exceeds the reset window the streak starts over at 1; otherwise the count
// increments. The circuit opens when the count reaches the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	current := cb.now()
	if !cb.lastFailure.IsZero() && current.Sub(cb.lastFailure) > cb.resetWindow {
		cb.failureCount = 0
	}
	cb.failureCount++
	cb.lastFailure = current

	if cb.failureCount >= cb.maxFailures {
		cb.open = true
		if cb.logger != nil {
			cb.logger.Warn(context.Background(), "Circuit breaker opened", map[string]interface{}{
				"failureCount": cb.failureCount,
				"maxFailures":  cb.maxFailures,
			})
		}
	}
}

// CanAttempt reports whether an external operation may be attempted. When
// the circuit is open and the cooldown since the last failure has elapsed,
// it auto-resets (count to 0, circuit closed) as a side effect rather than
// requiring an explicit external reset.
func (cb *CircuitBreaker) CanAttempt() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return true
	}
	if !cb.lastFailure.IsZero() && cb.now().Sub(cb.lastFailure) > cb.resetWindow {
		cb.failureCount = 0
		cb.open = false
		if cb.logger != nil {
			cb.logger.Info(context.Background(), "Circuit breaker auto-reset after cooldown", map[string]interface{}{
				"resetWindow": cb.resetWindow.String(),
			})
		}
		return true
	}
	return false
}

// Status returns a snapshot of the breaker state.
func (cb *CircuitBreaker) Status() BreakerStatus {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return BreakerStatus{
		IsOpen:       cb.open,
		FailureCount: cb.failureCount,
		MaxFailures:  cb.maxFailures,
		LastFailure:  cb.lastFailure,
	}
}
