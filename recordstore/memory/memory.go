// Package memory is an in-process recordstore.Repository. Records are kept as
// JSON documents so callers never share memory with the store.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/unkn0wn-root/shopcache/recordstore"
)

type entry struct {
	doc []byte
	seq uint64
}

type Repository[V recordstore.Entity] struct {
	m   *xsync.MapOf[string, entry]
	seq atomic.Uint64
	now func() time.Time
}

var _ recordstore.Repository[recordstore.Entity] = (*Repository[recordstore.Entity])(nil)

func New[V recordstore.Entity]() *Repository[V] {
	return &Repository[V]{m: xsync.NewMapOf[string, entry](), now: time.Now}
}

func (r *Repository[V]) FindByID(ctx context.Context, id string) (V, error) {
	var zero V
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	e, ok := r.m.Load(id)
	if !ok {
		return zero, recordstore.ErrNotFound
	}
	return decode[V](e.doc)
}

func (r *Repository[V]) Save(ctx context.Context, v V) (V, error) {
	if err := ctx.Err(); err != nil {
		return v, err
	}
	if v.GetID() == "" {
		v.SetID(uuid.NewString())
	}
	if s, ok := any(v).(recordstore.Stamper); ok {
		s.Stamp(r.now())
	}
	doc, err := json.Marshal(v)
	if err != nil {
		return v, fmt.Errorf("recordstore/memory: encode: %w", err)
	}
	r.m.Compute(v.GetID(), func(old entry, loaded bool) (entry, bool) {
		if loaded {
			old.doc = doc
			return old, false
		}
		return entry{doc: doc, seq: r.seq.Add(1)}, false
	})
	return v, nil
}

func (r *Repository[V]) DeleteByID(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := r.m.LoadAndDelete(id); !ok {
		return recordstore.ErrNotFound
	}
	return nil
}

func (r *Repository[V]) Find(ctx context.Context, f recordstore.Filter) ([]V, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var hits []entry
	r.m.Range(func(_ string, e entry) bool {
		if recordstore.Matches(e.doc, f) {
			hits = append(hits, e)
		}
		return true
	})
	sort.Slice(hits, func(i, j int) bool { return hits[i].seq < hits[j].seq })

	out := make([]V, 0, len(hits))
	for _, e := range hits {
		v, err := decode[V](e.doc)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// Len reports the number of stored records.
func (r *Repository[V]) Len() int { return r.m.Size() }

func decode[V any](doc []byte) (V, error) {
	var v V
	if err := json.Unmarshal(doc, &v); err != nil {
		return v, fmt.Errorf("recordstore/memory: decode: %w", err)
	}
	return v, nil
}
