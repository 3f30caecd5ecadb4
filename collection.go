package shopcache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/shopcache/codec"
	gen "github.com/unkn0wn-root/shopcache/genstore"
	"github.com/unkn0wn-root/shopcache/internal/keys"
	"github.com/unkn0wn-root/shopcache/internal/wire"
	pr "github.com/unkn0wn-root/shopcache/provider"
)

const defaultListTTL = 10 * time.Minute

// collection caches whole values (order lists) under single:<ns>:<key>.
// Writes are compare-and-swap against a per-key generation: a value read
// from the store is cached only if no invalidation happened since the
// generation snapshot taken before that read.
type collection[V any] struct {
	ns    string
	p     pr.Provider
	codec c.Codec[V]
	gen   gen.GenStore
	ttl   time.Duration
	log   Logger
	hooks Hooks
}

func (c *collection[V]) storageKey(key string) string { return keys.Single(c.ns, key) }

// Get returns a cached value whose generation is still current. Corrupt or
// stale entries are deleted.
func (c *collection[V]) Get(ctx context.Context, key string) (V, bool) {
	var zero V
	k := c.storageKey(key)
	raw, ok, err := c.p.Get(ctx, k)
	if err != nil {
		c.log.Warn("collection read failed", Fields{"key": k, "err": err})
		c.hooks.CacheFallback(k, err)
		return zero, false
	}
	if !ok {
		return zero, false
	}
	g, payload, err := wire.Decode(raw)
	if err != nil {
		c.selfHeal(ctx, k, "corrupt")
		return zero, false
	}
	cur, err := c.gen.Snapshot(ctx, k)
	if err != nil || g != cur {
		c.selfHeal(ctx, k, "gen_mismatch")
		return zero, false
	}
	v, err := c.codec.Decode(payload)
	if err != nil {
		c.selfHeal(ctx, k, "value_decode")
		return zero, false
	}
	return v, true
}

func (c *collection[V]) selfHeal(ctx context.Context, storageKey, reason string) {
	_ = c.p.Del(ctx, storageKey)
	c.hooks.CollectionSelfHeal(storageKey, reason)
}

// SnapshotGen returns the generation to pass to SetWithGen.
func (c *collection[V]) SnapshotGen(ctx context.Context, key string) (uint64, error) {
	return c.gen.Snapshot(ctx, c.storageKey(key))
}

// SetWithGen writes value iff the generation is still observedGen.
func (c *collection[V]) SetWithGen(ctx context.Context, key string, value V, observedGen uint64) error {
	k := c.storageKey(key)
	cur, err := c.gen.Snapshot(ctx, k)
	if err != nil {
		return err
	}
	if cur != observedGen {
		// generation moved; skip stale write
		c.log.Debug("SetWithGen skipped (gen mismatch)", Fields{"key": k, "obs": observedGen, "cur": cur})
		return nil
	}
	payload, err := c.codec.Encode(value)
	if err != nil {
		return err
	}
	return c.p.Set(ctx, k, wire.Encode(observedGen, payload), c.ttl)
}

// Invalidate bumps the generation, so in-flight fills are dropped, and
// deletes the entry.
func (c *collection[V]) Invalidate(ctx context.Context, key string) error {
	k := c.storageKey(key)
	newGen, bumpErr := c.gen.Bump(ctx, k)
	delErr := c.p.Del(ctx, k)
	if bumpErr != nil || delErr != nil {
		c.log.Error("collection invalidate failed", Fields{"key": k, "bumpErr": bumpErr, "delErr": delErr})
		return &InvalidateError{Key: k, BumpErr: bumpErr, DelErr: delErr}
	}
	c.log.Debug("invalidated collection (bumped gen + cleared entry)", Fields{"key": k, "newGen": newGen})
	return nil
}

// Load serves key from the cache or calls fetch and caches its result with
// CAS protection. Cache problems never fail Load.
func (c *collection[V]) Load(ctx context.Context, key string, fetch func(context.Context) (V, error)) (V, error) {
	if v, ok := c.Get(ctx, key); ok {
		return v, nil
	}
	obs, genErr := c.SnapshotGen(ctx, key)
	v, err := fetch(ctx)
	if err != nil {
		return v, err
	}
	if genErr != nil {
		c.log.Warn("gen snapshot error; not caching", Fields{"key": key, "err": genErr})
		return v, nil
	}
	if err := c.SetWithGen(ctx, key, v, obs); err != nil {
		c.log.Warn("collection write failed", Fields{"key": key, "err": err})
		c.hooks.MirrorFailed(c.storageKey(key), err)
	}
	return v, nil
}
