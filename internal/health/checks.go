package health

import (
	"context"
	"fmt"
)

// Pinger is anything that can check its own connectivity, such as a zone provider.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports the component unhealthy while Ping fails.
func PingChecker(p Pinger) HealthChecker {
	return func(ctx context.Context) error {
		if err := p.Ping(ctx); err != nil {
			return fmt.Errorf("ping failed: %w", err)
		}
		return nil
	}
}

// CycleStatus exposes the outcome of the last reconciliation cycle.
type CycleStatus interface {
	LastCycleFailed() bool
}

// CycleChecker reports degraded while the last cycle was aborted or had
// failed actions.
func CycleChecker(s CycleStatus) DegradedChecker {
	return func(context.Context) (bool, string) {
		if s.LastCycleFailed() {
			return true, "last reconciliation cycle failed"
		}
		return false, ""
	}
}
