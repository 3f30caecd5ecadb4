// Package memory is an in-process Provider on puzpuzpuz/xsync. It offers the
// same atomicity as Redis for single-key operations, which makes it suitable
// for single-instance deployments and tests. It is not shared across
// processes, so locks taken on it only exclude goroutines of one process.
package memory

import (
	"context"
	"math"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"

	pr "github.com/unkn0wn-root/shopcache/provider"
)

type kind uint8

const (
	kindString kind = iota + 1
	kindHash
	kindSet
	kindZSet
)

// entry values are never mutated once stored; writers build a new entry.
type entry struct {
	kind kind
	str  []byte
	hash map[string]string
	set  map[string]struct{}
	zset map[string]float64
	exp  time.Time // zero => no TTL
}

func (e entry) expired(now time.Time) bool { return !e.exp.IsZero() && !now.Before(e.exp) }

type Memory struct {
	m      *xsync.MapOf[string, entry]
	now    func() time.Time
	closed atomic.Bool
}

var _ pr.Provider = (*Memory)(nil)

func New() *Memory {
	return &Memory{m: xsync.NewMapOf[string, entry](), now: time.Now}
}

// load returns a live entry; expired entries are dropped on the way.
func (p *Memory) load(key string) (entry, bool) {
	e, ok := p.m.Load(key)
	if !ok {
		return entry{}, false
	}
	if e.expired(p.now()) {
		p.m.Compute(key, func(cur entry, loaded bool) (entry, bool) {
			return cur, loaded && cur.expired(p.now())
		})
		return entry{}, false
	}
	return e, true
}

func (p *Memory) check(ctx context.Context) error {
	if p.closed.Load() {
		return pr.ErrClosed
	}
	return ctx.Err()
}

// update applies fn to the live entry at key atomically. fn returns the new
// entry and whether the key should be deleted.
func (p *Memory) update(key string, fn func(cur entry, live bool) (entry, bool, error)) error {
	var ferr error
	now := p.now()
	p.m.Compute(key, func(cur entry, loaded bool) (entry, bool) {
		live := loaded && !cur.expired(now)
		if !live {
			cur = entry{}
		}
		next, del, err := fn(cur, live)
		if err != nil {
			ferr = err
			return cur, !live
		}
		return next, del
	})
	return ferr
}

func (p *Memory) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	e, ok := p.load(key)
	if !ok {
		return map[string]string{}, nil
	}
	if e.kind != kindHash {
		return nil, pr.ErrWrongType
	}
	out := make(map[string]string, len(e.hash))
	for k, v := range e.hash {
		out[k] = v
	}
	return out, nil
}

func (p *Memory) HReplace(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	if len(fields) == 0 {
		p.m.Delete(key)
		return nil
	}
	h := make(map[string]string, len(fields))
	for k, v := range fields {
		h[k] = v
	}
	p.m.Store(key, entry{kind: kindHash, hash: h, exp: p.expiry(ttl)})
	return nil
}

func (p *Memory) HGet(ctx context.Context, key, field string) (string, bool, error) {
	if err := p.check(ctx); err != nil {
		return "", false, err
	}
	e, ok := p.load(key)
	if !ok {
		return "", false, nil
	}
	if e.kind != kindHash {
		return "", false, pr.ErrWrongType
	}
	v, ok := e.hash[field]
	return v, ok, nil
}

func (p *Memory) HSetNX(ctx context.Context, key, field, value string) (bool, error) {
	if err := p.check(ctx); err != nil {
		return false, err
	}
	var set bool
	err := p.update(key, func(cur entry, live bool) (entry, bool, error) {
		if live && cur.kind != kindHash {
			return cur, false, pr.ErrWrongType
		}
		if _, exists := cur.hash[field]; exists {
			return cur, false, nil
		}
		h := make(map[string]string, len(cur.hash)+1)
		for k, v := range cur.hash {
			h[k] = v
		}
		h[field] = value
		set = true
		return entry{kind: kindHash, hash: h, exp: cur.exp}, false, nil
	})
	return set, err
}

func (p *Memory) HDel(ctx context.Context, key string, fields ...string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.update(key, func(cur entry, live bool) (entry, bool, error) {
		if !live {
			return cur, true, nil
		}
		if cur.kind != kindHash {
			return cur, false, pr.ErrWrongType
		}
		h := make(map[string]string, len(cur.hash))
		for k, v := range cur.hash {
			h[k] = v
		}
		for _, f := range fields {
			delete(h, f)
		}
		return entry{kind: kindHash, hash: h, exp: cur.exp}, len(h) == 0, nil
	})
}

func (p *Memory) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if err := p.check(ctx); err != nil {
		return nil, false, err
	}
	e, ok := p.load(key)
	if !ok {
		return nil, false, nil
	}
	if e.kind != kindString {
		return nil, false, pr.ErrWrongType
	}
	return append([]byte(nil), e.str...), true, nil
}

func (p *Memory) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	p.m.Store(key, entry{kind: kindString, str: append([]byte(nil), value...), exp: p.expiry(ttl)})
	return nil
}

func (p *Memory) SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	if err := p.check(ctx); err != nil {
		return false, err
	}
	var created bool
	err := p.update(key, func(cur entry, live bool) (entry, bool, error) {
		if live {
			return cur, false, nil
		}
		created = true
		return entry{kind: kindString, str: append([]byte(nil), value...), exp: p.expiry(ttl)}, false, nil
	})
	return created, err
}

func (p *Memory) Incr(ctx context.Context, key string) (int64, error) {
	if err := p.check(ctx); err != nil {
		return 0, err
	}
	var n int64
	err := p.update(key, func(cur entry, live bool) (entry, bool, error) {
		if live {
			if cur.kind != kindString {
				return cur, false, pr.ErrWrongType
			}
			v, err := strconv.ParseInt(string(cur.str), 10, 64)
			if err != nil {
				return cur, false, err
			}
			n = v
		}
		if n == math.MaxInt64 {
			return cur, false, strconv.ErrRange
		}
		n++
		return entry{kind: kindString, str: []byte(strconv.FormatInt(n, 10)), exp: cur.exp}, false, nil
	})
	return n, err
}

func (p *Memory) Del(ctx context.Context, keys ...string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	for _, k := range keys {
		p.m.Delete(k)
	}
	return nil
}

func (p *Memory) SAdd(ctx context.Context, key string, members ...string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.update(key, func(cur entry, live bool) (entry, bool, error) {
		if live && cur.kind != kindSet {
			return cur, false, pr.ErrWrongType
		}
		s := make(map[string]struct{}, len(cur.set)+len(members))
		for m := range cur.set {
			s[m] = struct{}{}
		}
		for _, m := range members {
			s[m] = struct{}{}
		}
		return entry{kind: kindSet, set: s, exp: cur.exp}, len(s) == 0, nil
	})
}

func (p *Memory) SRem(ctx context.Context, key string, members ...string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.update(key, func(cur entry, live bool) (entry, bool, error) {
		if !live {
			return cur, true, nil
		}
		if cur.kind != kindSet {
			return cur, false, pr.ErrWrongType
		}
		s := make(map[string]struct{}, len(cur.set))
		for m := range cur.set {
			s[m] = struct{}{}
		}
		for _, m := range members {
			delete(s, m)
		}
		return entry{kind: kindSet, set: s, exp: cur.exp}, len(s) == 0, nil
	})
}

func (p *Memory) SIsMember(ctx context.Context, key, member string) (bool, error) {
	if err := p.check(ctx); err != nil {
		return false, err
	}
	e, ok := p.load(key)
	if !ok {
		return false, nil
	}
	if e.kind != kindSet {
		return false, pr.ErrWrongType
	}
	_, ok = e.set[member]
	return ok, nil
}

func (p *Memory) ZAdd(ctx context.Context, key string, score float64, member string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.update(key, func(cur entry, live bool) (entry, bool, error) {
		if live && cur.kind != kindZSet {
			return cur, false, pr.ErrWrongType
		}
		z := make(map[string]float64, len(cur.zset)+1)
		for m, s := range cur.zset {
			z[m] = s
		}
		z[member] = score
		return entry{kind: kindZSet, zset: z, exp: cur.exp}, false, nil
	})
}

func (p *Memory) ZRem(ctx context.Context, key string, members ...string) error {
	if err := p.check(ctx); err != nil {
		return err
	}
	return p.update(key, func(cur entry, live bool) (entry, bool, error) {
		if !live {
			return cur, true, nil
		}
		if cur.kind != kindZSet {
			return cur, false, pr.ErrWrongType
		}
		z := make(map[string]float64, len(cur.zset))
		for m, s := range cur.zset {
			z[m] = s
		}
		for _, m := range members {
			delete(z, m)
		}
		return entry{kind: kindZSet, zset: z, exp: cur.exp}, len(z) == 0, nil
	})
}

func (p *Memory) ZRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	if err := p.check(ctx); err != nil {
		return nil, err
	}
	e, ok := p.load(key)
	if !ok {
		return []string{}, nil
	}
	if e.kind != kindZSet {
		return nil, pr.ErrWrongType
	}
	members := make([]string, 0, len(e.zset))
	for m := range e.zset {
		members = append(members, m)
	}
	sort.Slice(members, func(i, j int) bool {
		si, sj := e.zset[members[i]], e.zset[members[j]]
		if si != sj {
			return si < sj
		}
		return members[i] < members[j]
	})

	n := int64(len(members))
	if start < 0 {
		start += n
	}
	if stop < 0 {
		stop += n
	}
	if start < 0 {
		start = 0
	}
	if stop >= n {
		stop = n - 1
	}
	if start > stop || start >= n {
		return []string{}, nil
	}
	return members[start : stop+1], nil
}

func (p *Memory) ZCard(ctx context.Context, key string) (int64, error) {
	if err := p.check(ctx); err != nil {
		return 0, err
	}
	e, ok := p.load(key)
	if !ok {
		return 0, nil
	}
	if e.kind != kindZSet {
		return 0, pr.ErrWrongType
	}
	return int64(len(e.zset)), nil
}

// Len reports the number of stored keys, including expired ones not yet dropped.
func (p *Memory) Len() int { return p.m.Size() }

func (p *Memory) Close(context.Context) error {
	if p.closed.CompareAndSwap(false, true) {
		p.m.Clear()
	}
	return nil
}

func (p *Memory) expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return p.now().Add(ttl)
}
