package shopcache

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	pr "github.com/unkn0wn-root/shopcache/provider"
)

const defaultLockTTL = 10 * time.Second

// Locker takes resource locks in the shared cache with a single SET NX PX.
// Locks are never renewed: a holder that outlives its TTL may overlap with
// the next holder.
type Locker struct {
	p     pr.Provider
	ttl   time.Duration
	log   Logger
	hooks Hooks
}

func NewLocker(p pr.Provider, ttl time.Duration, log Logger, hooks Hooks) *Locker {
	return &Locker{
		p:     p,
		ttl:   coalesce(ttl, defaultLockTTL),
		log:   coalesce[Logger](log, NopLogger{}),
		hooks: coalesce[Hooks](hooks, NopHooks{}),
	}
}

// Acquire creates the lock token at resource iff it does not exist.
// A store error is reported as not acquired together with the error.
// ttl <= 0 uses the locker default.
func (l *Locker) Acquire(ctx context.Context, resource string, ttl time.Duration) (bool, error) {
	if ttl <= 0 {
		ttl = l.ttl
	}
	ok, err := l.p.SetNX(ctx, resource, []byte(uuid.NewString()), ttl)
	if err != nil {
		return false, err
	}
	return ok, nil
}

// Release deletes the lock token unconditionally. Releasing an expired or
// never-held lock is a no-op.
func (l *Locker) Release(ctx context.Context, resource string) error {
	return l.p.Del(ctx, resource)
}

// Held is a set of acquired locks.
type Held struct {
	l         *Locker
	resources []string
}

// Resources lists the held resources in acquisition order.
func (h *Held) Resources() []string { return h.resources }

// Release frees every held lock, even if ctx is already cancelled.
func (h *Held) Release(ctx context.Context) error {
	if h == nil || len(h.resources) == 0 {
		return nil
	}
	ctx = context.WithoutCancel(ctx)
	var errs []error
	for i := len(h.resources) - 1; i >= 0; i-- {
		if err := h.l.Release(ctx, h.resources[i]); err != nil {
			h.l.log.Error("lock release failed; token expires with ttl", Fields{"resource": h.resources[i], "err": err})
			errs = append(errs, err)
		}
	}
	h.resources = nil
	return errors.Join(errs...)
}

// AcquireAll takes every resource in ascending order. If any one cannot be
// taken, the locks already held are released and the error matches
// ErrLockContention.
func (l *Locker) AcquireAll(ctx context.Context, resources []string, ttl time.Duration) (*Held, error) {
	sorted := dedupSorted(resources)
	held := &Held{l: l, resources: make([]string, 0, len(sorted))}
	for _, r := range sorted {
		ok, err := l.Acquire(ctx, r, ttl)
		if err == nil && ok {
			held.resources = append(held.resources, r)
			continue
		}
		l.hooks.LockContended(r, err)
		_ = held.Release(ctx)
		if err != nil {
			l.log.Warn("lock store unreachable", Fields{"resource": r, "err": err})
			return nil, fmt.Errorf("%w: %s: %w", ErrLockContention, r, err)
		}
		l.log.Debug("lock held elsewhere", Fields{"resource": r})
		return nil, fmt.Errorf("%w: %s", ErrLockContention, r)
	}
	return held, nil
}

func dedupSorted(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	sort.Strings(out)
	n := 0
	for i, s := range out {
		if i > 0 && s == out[n-1] {
			continue
		}
		out[n] = s
		n++
	}
	return out[:n]
}
