package shopcache

import (
	"context"
	"errors"
	"fmt"
	"time"

	c "github.com/unkn0wn-root/shopcache/codec"
	"github.com/unkn0wn-root/shopcache/internal/keys"
	pr "github.com/unkn0wn-root/shopcache/provider"
	"github.com/unkn0wn-root/shopcache/recordstore"
)

const defaultRecordTTL = 24 * time.Hour

// RecordOptions configure a RecordCache.
// Kind, Repo and Provider are required.
type RecordOptions[V recordstore.Entity] struct {
	Kind     string // cache namespace, e.g. model.KindProduct
	Repo     recordstore.Repository[V]
	Provider pr.Provider

	TTL    time.Duration // 0 => 24h; negative => no expiry
	Logger Logger        // nil => NopLogger
	Hooks  Hooks         // nil => NopHooks
}

// RecordCache fronts a record store with per-entity cache hashes at
// <kind>:<id>. Reads go through the cache, writes go to the store first and
// are then mirrored as a full overwrite.
type RecordCache[V recordstore.Entity] struct {
	kind  string
	repo  recordstore.Repository[V]
	cache pr.Provider
	codec *c.Record[V]
	ttl   time.Duration
	log   Logger
	hooks Hooks
}

func NewRecordCache[V recordstore.Entity](opts RecordOptions[V]) (*RecordCache[V], error) {
	if opts.Kind == "" {
		return nil, errors.New("shopcache: record kind is required")
	}
	if opts.Repo == nil {
		return nil, fmt.Errorf("shopcache: %s repository is required", opts.Kind)
	}
	if opts.Provider == nil {
		return nil, errors.New("shopcache: provider is required")
	}
	rc, err := c.NewRecord[V]()
	if err != nil {
		return nil, err
	}
	ttl := coalesce(opts.TTL, defaultRecordTTL)
	if ttl < 0 {
		ttl = 0
	}
	return &RecordCache[V]{
		kind:  opts.Kind,
		repo:  opts.Repo,
		cache: opts.Provider,
		codec: rc,
		ttl:   ttl,
		log:   coalesce[Logger](opts.Logger, NopLogger{}),
		hooks: coalesce[Hooks](opts.Hooks, NopHooks{}),
	}, nil
}

// Key returns the cache key of id.
func (r *RecordCache[V]) Key(id string) string { return keys.Entity(r.kind, id) }

// GetByID serves id from the cache, or loads it from the record store and
// writes it through on a miss. A cache fault falls back to the store.
func (r *RecordCache[V]) GetByID(ctx context.Context, id string) (V, error) {
	key := r.Key(id)
	m, err := r.cache.HGetAll(ctx, key)
	switch {
	case err != nil:
		r.log.Warn("cache read failed; falling back to record store", Fields{"key": key, "err": err})
		r.hooks.CacheFallback(key, err)
	case len(m) > 0:
		v, faults := r.codec.Decode(m)
		r.reportFaults(key, faults)
		return v, nil
	}

	v, err := r.repo.FindByID(ctx, id)
	if err != nil {
		var zero V
		return zero, err
	}
	r.Mirror(ctx, v)
	return v, nil
}

// Load reads id from the record store only.
func (r *RecordCache[V]) Load(ctx context.Context, id string) (V, error) {
	return r.repo.FindByID(ctx, id)
}

// Find passes f through to the record store.
func (r *RecordCache[V]) Find(ctx context.Context, f recordstore.Filter) ([]V, error) {
	return r.repo.Find(ctx, f)
}

// Persist writes v to the record store without touching the cache.
func (r *RecordCache[V]) Persist(ctx context.Context, v V) (V, error) {
	return r.repo.Save(ctx, v)
}

// Save persists v and mirrors the stored record.
func (r *RecordCache[V]) Save(ctx context.Context, v V) (V, error) {
	saved, err := r.repo.Save(ctx, v)
	if err != nil {
		return saved, err
	}
	r.Mirror(ctx, saved)
	return saved, nil
}

// Create is Save for a new record; the store assigns an empty id.
func (r *RecordCache[V]) Create(ctx context.Context, v V) (V, error) { return r.Save(ctx, v) }

// Delete removes id from the record store and then from the cache.
func (r *RecordCache[V]) Delete(ctx context.Context, id string) error {
	if err := r.repo.DeleteByID(ctx, id); err != nil {
		return err
	}
	r.Invalidate(ctx, id)
	return nil
}

// Mirror overwrites the cache entry with the full encoded record. Failures
// are logged and reported, never returned.
func (r *RecordCache[V]) Mirror(ctx context.Context, v V) {
	key := r.Key(v.GetID())
	fields, err := r.codec.Encode(v)
	if err != nil {
		r.log.Error("mirror encode failed", Fields{"key": key, "err": err})
		r.hooks.MirrorFailed(key, err)
		return
	}
	if err := r.cache.HReplace(ctx, key, fields, r.ttl); err != nil {
		r.log.Warn("mirror write failed; cache entry may be stale", Fields{"key": key, "err": err})
		r.hooks.MirrorFailed(key, err)
	}
}

// Invalidate deletes the cache entry for id. Failures are logged and reported.
func (r *RecordCache[V]) Invalidate(ctx context.Context, id string) {
	key := r.Key(id)
	if err := r.cache.Del(ctx, key); err != nil {
		r.log.Warn("cache invalidate failed", Fields{"key": key, "err": err})
		r.hooks.MirrorFailed(key, err)
	}
}

func (r *RecordCache[V]) reportFaults(key string, faults []*c.FieldError) {
	for _, f := range faults {
		r.log.Warn("cached field failed to decode", Fields{"key": key, "field": f.Field, "raw": f.Raw, "err": f.Err})
		r.hooks.DecodeFault(key, f.Field, f)
	}
}
