// Package asynchook moves shopcache hook calls off the request path onto a
// bounded queue drained by worker goroutines. When the queue is full events
// are dropped and counted.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{FallbackEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	shop, _ := shopcache.New(shopcache.Options{..., Hooks: hooks})
package asynchook

import (
	"sync"
	"sync/atomic"

	"github.com/unkn0wn-root/shopcache"
)

type Hooks struct {
	inner   shopcache.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.RWMutex // guards q against send-after-close
	closed  bool
	dropped atomic.Uint64
}

var _ shopcache.Hooks = (*Hooks)(nil)

func New(inner shopcache.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Later events are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		h.mu.Lock()
		h.closed = true
		close(h.q)
		h.mu.Unlock()
		h.wg.Wait()
	})
}

// Dropped reports events discarded because the queue was full or closed.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		h.dropped.Add(1)
		return
	}
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) CacheFallback(k string, err error) { h.try(func() { h.inner.CacheFallback(k, err) }) }
func (h *Hooks) MirrorFailed(k string, err error)  { h.try(func() { h.inner.MirrorFailed(k, err) }) }
func (h *Hooks) LockContended(r string, err error) { h.try(func() { h.inner.LockContended(r, err) }) }
func (h *Hooks) DecodeFault(k, field string, err error) {
	h.try(func() { h.inner.DecodeFault(k, field, err) })
}
func (h *Hooks) IndexUpdateFailed(id string, err error) {
	h.try(func() { h.inner.IndexUpdateFailed(id, err) })
}
func (h *Hooks) CollectionSelfHeal(k, reason string) {
	h.try(func() { h.inner.CollectionSelfHeal(k, reason) })
}
