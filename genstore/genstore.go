// Package genstore keeps the generation counters behind the order list cache.
// A list fill records the generation before it reads the record store, and
// the cached copy is only written if no order write bumped it meanwhile.
package genstore

import "context"

// GenStore holds one counter per list storage key. A missing counter reads
// as 0. Local suits a single process; Redis is needed once several API
// replicas share the cache.
type GenStore interface {
	Snapshot(ctx context.Context, storageKey string) (uint64, error)
	// Bump increments the counter and returns the new value.
	Bump(ctx context.Context, storageKey string) (uint64, error)
	Close(context.Context) error
}
