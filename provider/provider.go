// Package provider defines the shared cache abstraction used by shopcache.
//
// A Provider is shared by every process instance of the service. Single-key
// operations must be atomic; in particular SetNX is the only primitive the
// distributed lock relies on and must be a single check-and-set.
//
// Key spaces owned by shopcache:
//
//	<kind>:<id>                  entity hashes (product, order, user)
//	locks:<kind>:<id>            lock tokens
//	productsSortedByRating[...]  ranked index (zset, :members hash, :seq counter)
//	emails                       registered email set
//	single:orders:<key>          framed collection entries
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrClosed is returned by in-process providers after Close.
	ErrClosed = errors.New("provider: closed")
	// ErrWrongType mirrors Redis WRONGTYPE: the key holds another structure.
	ErrWrongType = errors.New("provider: operation against a key holding the wrong kind of value")
)

// Provider is the shared cache contract. Misses are not errors: lookups
// report them with ok=false or an empty result.
type Provider interface {
	// HGetAll returns every field of a hash; an absent key yields an empty map.
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	// HReplace atomically drops key and writes fields as a new hash.
	// ttl <= 0 means no expiry.
	HReplace(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	HGet(ctx context.Context, key, field string) (value string, ok bool, err error)
	// HSetNX sets field only if absent and reports whether it did.
	HSetNX(ctx context.Context, key, field, value string) (bool, error)
	HDel(ctx context.Context, key string, fields ...string) error

	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Set stores value; ttl <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX atomically creates key with value and ttl iff it does not exist.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Incr(ctx context.Context, key string) (int64, error)
	Del(ctx context.Context, keys ...string) error

	SAdd(ctx context.Context, key string, members ...string) error
	SRem(ctx context.Context, key string, members ...string) error
	SIsMember(ctx context.Context, key, member string) (bool, error)

	// ZAdd inserts member or updates its score.
	ZAdd(ctx context.Context, key string, score float64, member string) error
	ZRem(ctx context.Context, key string, members ...string) error
	// ZRange returns members by rank, ascending score then member, with
	// inclusive Redis-style indexes (negative counts from the end).
	ZRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	ZCard(ctx context.Context, key string) (int64, error)

	// Close releases resources.
	Close(ctx context.Context) error
}
