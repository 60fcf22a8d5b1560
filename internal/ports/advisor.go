package ports

import (
	"context"

	"fxpilot/internal/domain"
)

// Advisor is a single advisory stage: it reads the accumulated stage context
// and returns a partial update. Implementations come in pairs — a real
// provider-backed advisor and a deterministic fallback — sharing this one
// contract so the orchestrator can substitute one for the other.
//
// Malformed provider output must surface as ErrSchemaViolation, a distinct
// class from transport failures (ErrRateLimited, ErrConnectionFailed, ...).
type Advisor interface {
	// Name identifies the stage in logs and reasoning traces.
	Name() string
	// Invoke runs the stage against the accumulated context.
	Invoke(ctx context.Context, sc domain.StageContext) (domain.StageUpdate, error)
}
