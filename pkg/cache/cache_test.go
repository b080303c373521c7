package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
}

func TestMemoryCacheRoundTripsJSON(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", payload{Name: "a", Value: 1.5}, 0))
	var got payload
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, payload{Name: "a", Value: 1.5}, got)

	err := c.Get(ctx, "missing", &got)
	assert.True(t, errors.Is(err, ErrCacheMiss))
}

func TestMemoryCacheExpires(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	require.NoError(t, c.Set(ctx, "k", 1, time.Millisecond))
	time.Sleep(5 * time.Millisecond)
	var v int
	assert.ErrorIs(t, c.Get(ctx, "k", &v), ErrCacheMiss)
}

func TestMemoryCacheDeleteByPattern(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	for _, k := range []string{"forecast:a:30", "forecast:a:7", "forecast:b:30"} {
		require.NoError(t, c.Set(ctx, k, k, 0))
	}
	require.NoError(t, c.DeleteByPattern(ctx, PrefixPattern(Key("forecast", "a")+":")))

	ok, _ := c.Exists(ctx, "forecast:a:30", "forecast:a:7")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "forecast:b:30")
	assert.True(t, ok)
}

func TestMemoryCacheEvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithMemoryMaxSize(2))
	defer c.Close()

	require.NoError(t, c.Set(ctx, "a", 1, 0))
	require.NoError(t, c.Set(ctx, "b", 2, 0))
	var v int
	require.NoError(t, c.Get(ctx, "a", &v))
	require.NoError(t, c.Set(ctx, "c", 3, 0))

	assert.Equal(t, 2, c.Len())
	assert.ErrorIs(t, c.Get(ctx, "b", &v), ErrCacheMiss)
}

func TestLockSerializesHolders(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	defer c.Close()

	var inside, maxInside int32
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := Lock(ctx, c, "lock:x", time.Second, time.Millisecond)
			if !assert.NoError(t, err) {
				return
			}
			n := atomic.AddInt32(&inside, 1)
			for {
				m := atomic.LoadInt32(&maxInside)
				if n <= m || atomic.CompareAndSwapInt32(&maxInside, m, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&inside, -1)
			release()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside)
}

func TestLockHonoursContext(t *testing.T) {
	c := NewMemoryCache()
	defer c.Close()
	ok, err := c.TryLock(context.Background(), "lock:y", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err = Lock(ctx, c, "lock:y", time.Minute, time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestLayeredCacheReadsThrough(t *testing.T) {
	ctx := context.Background()
	shared := NewMemoryCache()
	lc := NewLayeredCache(shared, time.Minute)
	defer lc.Close()

	require.NoError(t, shared.Set(ctx, "k", payload{Name: "shared"}, 0))
	var got payload
	require.NoError(t, lc.Get(ctx, "k", &got))
	assert.Equal(t, "shared", got.Name)

	require.NoError(t, lc.Delete(ctx, "k"))
	assert.ErrorIs(t, lc.Get(ctx, "k", &got), ErrCacheMiss)
}

func TestKeyHelpers(t *testing.T) {
	assert.Equal(t, "forecast:sku-1:30:2024-01-01", Key("forecast", "sku-1", 30, "2024-01-01"))
	assert.Equal(t, "artifact:a", Key("artifact", "a"))
	assert.Equal(t, `forecast:a\*b:*`, PrefixPattern("forecast:a*b:"))
}

func TestPrefixPatternMatchesLiterally(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithMemoryCleanup(time.Hour))
	defer c.Close()

	require.NoError(t, c.Set(ctx, "forecast:a*:1", 1, 0))
	require.NoError(t, c.Set(ctx, "forecast:ab:1", 1, 0))
	require.NoError(t, c.DeleteByPattern(ctx, PrefixPattern("forecast:a*:")))

	ok, _ := c.Exists(ctx, "forecast:a*:1")
	assert.False(t, ok)
	ok, _ = c.Exists(ctx, "forecast:ab:1")
	assert.True(t, ok)
}

func TestMemoryCacheExpiresEntries(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(WithMemoryCleanup(time.Hour))
	defer c.Close()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "forecast:a:7", 1, time.Minute))
	ok, _ := c.Exists(ctx, "forecast:a:7")
	assert.True(t, ok)

	now = now.Add(2 * time.Minute)
	var v int
	assert.ErrorIs(t, c.Get(ctx, "forecast:a:7", &v), ErrCacheMiss)
	assert.Equal(t, 0, c.Len())

	held, err := c.TryLock(ctx, "lock:a", time.Second)
	require.NoError(t, err)
	assert.True(t, held)
	held, _ = c.TryLock(ctx, "lock:a", time.Second)
	assert.False(t, held)
	now = now.Add(2 * time.Second)
	held, _ = c.TryLock(ctx, "lock:a", time.Second)
	assert.True(t, held)
}
