package ports

import "errors"

// Standard application-level errors. Adapters wrap underlying infrastructure
// errors with these so core packages can branch on error class without
// knowing transport details.
var (
	// General
	ErrNotFound           = errors.New("resource not found")
	ErrTimeout            = errors.New("operation timed out")
	ErrConfigurationError = errors.New("invalid or missing configuration")

	// Safety interlocks
	ErrCircuitOpen     = errors.New("circuit breaker is open")
	ErrTradingDisabled = errors.New("trading disabled by kill switch")

	// Provider / broker (transient unless noted)
	ErrRateLimited          = errors.New("API rate limit exceeded")
	ErrConnectionFailed     = errors.New("failed to connect to provider")
	ErrProviderUnavailable  = errors.New("provider API is unavailable")
	ErrAuthenticationFailed = errors.New("provider authentication failed")
	ErrOrderPlacementFailed = errors.New("failed to place order")

	// Advisory output that parsed as transport-OK but violates the stage
	// schema. Never retried against the same provider.
	ErrSchemaViolation = errors.New("advisory output violates stage schema")

	// Persistence
	ErrQueryFailed  = errors.New("ledger query failed")
	ErrUpdateFailed = errors.New("ledger update failed")
)

// IsTransient reports whether an error is worth retrying with backoff.
// Schema violations and validation failures are deliberately excluded.
func IsTransient(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrConnectionFailed) ||
		errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrTimeout)
}
