package domain

import (
	"context"
	"time"
)

// CooldownStore enforces the per-user reaction cooldown.
type CooldownStore interface {
	// Acquire starts a cooldown window for userID unless one is already
	// running. It returns zero on success, or the time left in the running window.
	Acquire(ctx context.Context, userID string, window time.Duration) (time.Duration, error)

	// Release ends userID's running window, if any.
	Release(ctx context.Context, userID string) error
}
