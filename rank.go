package shopcache

import (
	"context"
	"fmt"
	"strings"

	"github.com/unkn0wn-root/shopcache/internal/keys"
	pr "github.com/unkn0wn-root/shopcache/provider"
)

// RankIndex orders product ids by rating in a sorted set.
//
// Members are "<20-digit sequence>:<id>" so equal scores fall back to first
// insertion order; the <index>:members hash remembers each id's member so a
// re-score keeps its sequence. By default the score is the negated rating and
// ascending range reads return highest first. Ascending stores the raw rating.
type RankIndex struct {
	p         pr.Provider
	name      string
	ascending bool
}

func NewRankIndex(p pr.Provider, name string, ascending bool) *RankIndex {
	return &RankIndex{p: p, name: coalesce(name, keys.RankIndex), ascending: ascending}
}

func (r *RankIndex) score(rating float64) float64 {
	if r.ascending {
		return rating
	}
	return -rating
}

// Add inserts id or updates its rating.
func (r *RankIndex) Add(ctx context.Context, id string, rating float64) error {
	member, err := r.member(ctx, id)
	if err != nil {
		return err
	}
	return r.p.ZAdd(ctx, r.name, r.score(rating), member)
}

func (r *RankIndex) member(ctx context.Context, id string) (string, error) {
	mk := keys.Members(r.name)
	m, ok, err := r.p.HGet(ctx, mk, id)
	if err != nil {
		return "", err
	}
	if ok {
		return m, nil
	}
	seq, err := r.p.Incr(ctx, keys.Seq(r.name))
	if err != nil {
		return "", err
	}
	m = fmt.Sprintf("%020d:%s", seq, id)
	set, err := r.p.HSetNX(ctx, mk, id, m)
	if err != nil {
		return "", err
	}
	if set {
		return m, nil
	}
	// lost the race to another writer; use its member
	m, _, err = r.p.HGet(ctx, mk, id)
	return m, err
}

// Remove drops id; absent ids are ignored.
func (r *RankIndex) Remove(ctx context.Context, id string) error {
	mk := keys.Members(r.name)
	m, ok, err := r.p.HGet(ctx, mk, id)
	if err != nil || !ok {
		return err
	}
	if err := r.p.ZRem(ctx, r.name, m); err != nil {
		return err
	}
	return r.p.HDel(ctx, mk, id)
}

// Top returns up to limit ids starting at offset, best rated first
// (lowest first when ascending).
func (r *RankIndex) Top(ctx context.Context, offset, limit int) ([]string, error) {
	if offset < 0 || limit <= 0 {
		return nil, nil
	}
	members, err := r.p.ZRange(ctx, r.name, int64(offset), int64(offset+limit-1))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(members))
	for _, m := range members {
		if _, id, ok := strings.Cut(m, ":"); ok {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *RankIndex) Size(ctx context.Context) (int64, error) {
	return r.p.ZCard(ctx, r.name)
}

// Pages is ceil(Size / pageSize).
func (r *RankIndex) Pages(ctx context.Context, pageSize int) (int, error) {
	if pageSize <= 0 {
		return 0, invalid("page size %d", pageSize)
	}
	n, err := r.Size(ctx)
	if err != nil {
		return 0, err
	}
	return pages(int(n), pageSize), nil
}

// Reset deletes the index with its member map and sequence.
func (r *RankIndex) Reset(ctx context.Context) error {
	return r.p.Del(ctx, r.name, keys.Members(r.name), keys.Seq(r.name))
}

func pages(n, size int) int { return (n + size - 1) / size }
