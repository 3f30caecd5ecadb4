// Package sloghooks reports shopcache hooks through log/slog with sampling
// for the noisy events and key redaction.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/unkn0wn-root/shopcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	FallbackEvery    uint64
	DecodeFaultEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	fallbackCtr atomic.Uint64
	decodeCtr   atomic.Uint64
}

var _ shopcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) CacheFallback(key string, err error) {
	if h.l == nil || !sample(h.opts.FallbackEvery, &h.fallbackCtr) {
		return
	}
	h.l.Warn("shopcache.cache_fallback", "key", h.redact(key), "err", err)
}

func (h *Hooks) MirrorFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("shopcache.mirror_failed", "key", h.redact(key), "err", err)
}

func (h *Hooks) DecodeFault(key, field string, err error) {
	if h.l == nil || !sample(h.opts.DecodeFaultEvery, &h.decodeCtr) {
		return
	}
	h.l.Warn("shopcache.decode_fault", "key", h.redact(key), "field", field, "err", err)
}

func (h *Hooks) LockContended(resource string, err error) {
	if h.l == nil {
		return
	}
	if err != nil {
		h.l.Error("shopcache.lock_store_error", "resource", h.redact(resource), "err", err)
		return
	}
	h.l.Info("shopcache.lock_contended", "resource", h.redact(resource))
}

func (h *Hooks) IndexUpdateFailed(productID string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("shopcache.index_update_failed", "product", productID, "err", err)
}

func (h *Hooks) CollectionSelfHeal(storageKey, reason string) {
	if h.l == nil {
		return
	}
	h.l.Debug("shopcache.collection_self_heal", "key", h.redact(storageKey), "reason", reason)
}
