// Package genstore keeps a monotonically increasing generation per cache key.
//
// The cache bumps a key's generation every time it starts a fetch for it and
// applies a fetch result only while the generation it started under is still
// current. Results of superseded fetches are thereby dropped.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live. The cache calls Snapshot and
// Bump while holding its store lock; implementations must not block on I/O.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes generations not bumped within retention.
	Cleanup(retention time.Duration)
	// Close releases resources (no-op ok).
	Close(context.Context) error
}
