// Package mutex provides per-key exclusive locking for party state.
// The Redis implementation serializes writers across server instances;
// the local one covers single-instance deployments with the same
// interface so the session manager never knows the difference.
package mutex

import (
	"context"
	"errors"
)

// ErrLockTimeout is returned when a lock could not be acquired within
// the acquire budget. Callers must not have mutated any state before
// acquiring, so the condition is always retryable.
var ErrLockTimeout = errors.New("mutex: timed out waiting for lock")

// Locker is an exclusive, time-bounded lock per key. Acquire returns a
// token that must be presented back to Release; releasing with a stale
// token (lease expired, lock re-acquired elsewhere) is a no-op.
type Locker interface {
	Acquire(ctx context.Context, key string) (string, error)
	Release(ctx context.Context, key string, token string) error
}
