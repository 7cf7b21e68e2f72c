// SPDX-License-Identifier: MIT

package cache

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMemoryCache_GetSet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	c.Set(ctx, "node:1:r1", []byte("<div>1</div>"), time.Minute)

	val, ok := c.Get(ctx, "node:1:r1")
	require.True(t, ok)
	assert.Equal(t, "<div>1</div>", string(val))

	_, ok = c.Get(ctx, "node:2:r1")
	assert.False(t, ok)
}

func TestMemoryCache_ValuesAreCopied(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	in := []byte("abc")
	c.Set(ctx, "k", in, time.Minute)
	in[0] = 'X'

	out, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, "abc", string(out))
	out[0] = 'Y'

	again, _ := c.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
}

func TestMemoryCache_Expiration(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	c.Set(ctx, "short", []byte("v"), time.Second)
	c.Set(ctx, "forever", []byte("v"), 0)

	_, ok := c.Get(ctx, "short")
	require.True(t, ok)

	now = now.Add(2 * time.Second)
	_, ok = c.Get(ctx, "short")
	assert.False(t, ok, "expected short-lived key to expire")
	_, ok = c.Get(ctx, "forever")
	assert.True(t, ok, "zero ttl must not expire")

	assert.Equal(t, 1, c.deleteExpired())
	assert.Equal(t, int64(1), c.Stats().Evictions)
	assert.Equal(t, 1, c.Stats().CurrentSize)
}

func TestMemoryCache_DeleteAndPrefix(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	c.Set(ctx, "node:1:a", []byte("1"), time.Minute)
	c.Set(ctx, "node:1:b", []byte("2"), time.Minute)
	c.Set(ctx, "node:2:a", []byte("3"), time.Minute)

	c.Delete(ctx, "node:2:a")
	_, ok := c.Get(ctx, "node:2:a")
	assert.False(t, ok)

	assert.Equal(t, 2, c.DeletePrefix(ctx, "node:1:"))
	assert.Equal(t, 0, c.Stats().CurrentSize)

	c.Set(ctx, "x", []byte("1"), time.Minute)
	c.Clear(ctx)
	assert.Equal(t, 0, c.Stats().CurrentSize)
}

func TestMemoryCache_Stats(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)

	c.Set(ctx, "a", []byte("1"), time.Minute)
	c.Get(ctx, "a")
	c.Get(ctx, "a")
	c.Get(ctx, "missing")

	stats := c.Stats()
	assert.Equal(t, int64(2), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Sets)
	assert.Equal(t, 1, stats.CurrentSize)
}

func TestMemoryCache_JanitorStopsOnClose(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())
	ctx := context.Background()
	c := NewMemoryCache(10 * time.Millisecond)

	c.Set(ctx, "gone", []byte("v"), time.Millisecond)
	require.Eventually(t, func() bool {
		return c.Stats().Evictions == 1
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestMemoryCache_Concurrent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Millisecond)
	defer c.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				key := string(rune('a' + n))
				c.Set(ctx, key, []byte{byte(j)}, time.Millisecond)
				c.Get(ctx, key)
				if j%10 == 0 {
					c.DeletePrefix(ctx, key)
				}
			}
		}(i)
	}
	wg.Wait()
}

func TestNoopCache(t *testing.T) {
	ctx := context.Background()
	c := NewNoopCache()

	c.Set(ctx, "k", []byte("v"), time.Minute)
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.DeletePrefix(ctx, ""))
	assert.Equal(t, Stats{}, c.Stats())
	assert.NoError(t, c.Close())
}
