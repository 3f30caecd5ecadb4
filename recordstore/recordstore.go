// Package recordstore defines the system-of-record contract the cache layer
// sits in front of. Implementations are authoritative: reads and writes here
// are durable and linearizable per record; nothing is transactional across
// records.
package recordstore

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("recordstore: not found")

// Entity is a record with a store-assigned primary key.
type Entity interface {
	GetID() string
	SetID(id string)
}

// Stamper is implemented by entities carrying created/updated timestamps.
type Stamper interface {
	Stamp(now time.Time)
}

// Filter matches records whose top-level field (by JSON name) renders to the
// given text. Strings compare unquoted; numbers and booleans by their JSON text.
type Filter map[string]string

type Repository[V Entity] interface {
	// FindByID returns ErrNotFound when no record has id.
	FindByID(ctx context.Context, id string) (V, error)
	// Save inserts or fully replaces v. An empty id is assigned on insert.
	Save(ctx context.Context, v V) (V, error)
	// DeleteByID returns ErrNotFound when no record has id.
	DeleteByID(ctx context.Context, id string) error
	// Find returns matching records in insertion order. An empty filter matches all.
	Find(ctx context.Context, f Filter) ([]V, error)
}
