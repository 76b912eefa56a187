package cache

import "context"

// Tier is one cache level consulted in priority order.
//
// Implementations must be safe for concurrent use. Get reports a miss for
// any failure; Set swallows (and logs) its own failures. Neither operation
// surfaces an error because every failure degrades to "not cached".
type Tier interface {
	// Name identifies the tier in logs and metrics.
	Name() string

	// Get returns the bytes stored under key, or false if absent.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores data under key. Writing the same bytes twice is equivalent
	// to writing once.
	Set(ctx context.Context, key string, data []byte)
}
