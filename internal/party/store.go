package party

import (
	"context"
)

// Store defines how party state is persisted. The blob and its two
// counters are the only shared mutable resources in the system; every
// write refreshes the retention TTL. Implementations must keep the
// counter increments independently atomic — they are the id source for
// concurrent creators and are deliberately not covered by the party
// lock.
type Store interface {
	// Create persists a new blob and seeds both counters.
	Create(ctx context.Context, p *Party) error
	// Get returns the current blob, or ErrNoParty.
	Get(ctx context.Context, partyID string) (*Party, error)
	// Save overwrites the blob and refreshes its TTL.
	Save(ctx context.Context, p *Party) error
	// IncrNodeID / IncrEdgeID atomically mint the next entity id.
	IncrNodeID(ctx context.Context, partyID string) (int, error)
	IncrEdgeID(ctx context.Context, partyID string) (int, error)
}
