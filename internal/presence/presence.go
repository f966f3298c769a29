// Package presence tracks how many open connections each principal has
// across every server instance. Online status is derived from that count:
// a principal is online iff at least one instance holds an open connection.
//
// The count lives in a shared store so that the online→offline transition is
// emitted exactly once, when the last connection anywhere closes, rather than
// on every intermediate disconnect.
package presence

import "context"

// Store is the shared connection counter. Increment and decrement must be
// atomic at the store level; callers act on the returned count (1 after
// Connect means first connection anywhere, 0 after Disconnect means last one
// closed).
type Store interface {
	// Connect records a new open connection and returns the new total.
	Connect(ctx context.Context, principalID string) (int64, error)
	// Disconnect records a closed connection and returns the new total.
	// The count never goes below zero.
	Disconnect(ctx context.Context, principalID string) (int64, error)
	// Count returns the current total for a principal.
	Count(ctx context.Context, principalID string) (int64, error)
	// Online reports each requested principal's derived online status.
	Online(ctx context.Context, principalIDs []string) (map[string]bool, error)
}
