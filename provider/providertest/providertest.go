// Package providertest is a conformance suite every Provider must pass.
package providertest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pr "github.com/unkn0wn-root/shopcache/provider"
)

// Run exercises p. Each subtest uses its own keys, so p may be shared.
func Run(t *testing.T, p pr.Provider) {
	t.Helper()
	ctx := context.Background()

	t.Run("hash replace is a full overwrite", func(t *testing.T) {
		k := "pt:hash:1"
		require.NoError(t, p.HReplace(ctx, k, map[string]string{"a": "1", "b": "2"}, time.Minute))
		require.NoError(t, p.HReplace(ctx, k, map[string]string{"a": "3"}, time.Minute))

		got, err := p.HGetAll(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"a": "3"}, got)

		v, ok, err := p.HGet(ctx, k, "b")
		require.NoError(t, err)
		assert.False(t, ok, "stale field lingered: %q", v)
	})

	t.Run("hash miss is empty", func(t *testing.T) {
		got, err := p.HGetAll(ctx, "pt:hash:missing")
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("hash field ops", func(t *testing.T) {
		k := "pt:hash:2"
		set, err := p.HSetNX(ctx, k, "x", "1")
		require.NoError(t, err)
		assert.True(t, set)

		set, err = p.HSetNX(ctx, k, "x", "2")
		require.NoError(t, err)
		assert.False(t, set)

		v, ok, err := p.HGet(ctx, k, "x")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "1", v)

		require.NoError(t, p.HDel(ctx, k, "x"))
		_, ok, err = p.HGet(ctx, k, "x")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("value set get del", func(t *testing.T) {
		k := "pt:val:1"
		require.NoError(t, p.Set(ctx, k, []byte("hello"), 0))
		b, ok, err := p.Get(ctx, k)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, []byte("hello"), b)

		require.NoError(t, p.Del(ctx, k))
		_, ok, err = p.Get(ctx, k)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("setnx creates once", func(t *testing.T) {
		k := "pt:nx:1"
		ok, err := p.SetNX(ctx, k, []byte("a"), time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = p.SetNX(ctx, k, []byte("b"), time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		b, _, _ := p.Get(ctx, k)
		assert.Equal(t, []byte("a"), b)
	})

	t.Run("setnx is exclusive under contention", func(t *testing.T) {
		k := "pt:nx:race"
		var (
			wg   sync.WaitGroup
			wins atomic.Int32
		)
		for i := 0; i < 16; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				ok, err := p.SetNX(ctx, k, []byte(fmt.Sprint(i)), time.Minute)
				if err == nil && ok {
					wins.Add(1)
				}
			}(i)
		}
		wg.Wait()
		assert.Equal(t, int32(1), wins.Load())
	})

	t.Run("incr counts from zero", func(t *testing.T) {
		k := "pt:incr:1"
		for want := int64(1); want <= 3; want++ {
			n, err := p.Incr(ctx, k)
			require.NoError(t, err)
			assert.Equal(t, want, n)
		}
	})

	t.Run("sets", func(t *testing.T) {
		k := "pt:set:1"
		require.NoError(t, p.SAdd(ctx, k, "a@x.io", "b@x.io"))
		in, err := p.SIsMember(ctx, k, "a@x.io")
		require.NoError(t, err)
		assert.True(t, in)

		require.NoError(t, p.SRem(ctx, k, "a@x.io"))
		in, err = p.SIsMember(ctx, k, "a@x.io")
		require.NoError(t, err)
		assert.False(t, in)

		in, err = p.SIsMember(ctx, "pt:set:missing", "a@x.io")
		require.NoError(t, err)
		assert.False(t, in)
	})

	t.Run("zset orders by score then member", func(t *testing.T) {
		k := "pt:z:1"
		require.NoError(t, p.ZAdd(ctx, k, -5, "b"))
		require.NoError(t, p.ZAdd(ctx, k, -3, "c"))
		require.NoError(t, p.ZAdd(ctx, k, -5, "a"))
		require.NoError(t, p.ZAdd(ctx, k, -1, "d"))

		all, err := p.ZRange(ctx, k, 0, -1)
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d"}, all)

		page, err := p.ZRange(ctx, k, 1, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "c"}, page)

		past, err := p.ZRange(ctx, k, 10, 20)
		require.NoError(t, err)
		assert.Empty(t, past)

		n, err := p.ZCard(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, int64(4), n)

		// update moves the member
		require.NoError(t, p.ZAdd(ctx, k, -9, "d"))
		first, err := p.ZRange(ctx, k, 0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{"d"}, first)

		require.NoError(t, p.ZRem(ctx, k, "d", "a"))
		n, err = p.ZCard(ctx, k)
		require.NoError(t, err)
		assert.Equal(t, int64(2), n)
	})

	t.Run("zset miss", func(t *testing.T) {
		n, err := p.ZCard(ctx, "pt:z:missing")
		require.NoError(t, err)
		assert.Zero(t, n)
		got, err := p.ZRange(ctx, "pt:z:missing", 0, -1)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("wrong type", func(t *testing.T) {
		k := "pt:wrong:1"
		require.NoError(t, p.Set(ctx, k, []byte("x"), 0))
		_, err := p.HGetAll(ctx, k)
		assert.Error(t, err)
		_, err = p.ZCard(ctx, k)
		assert.Error(t, err)
	})
}
