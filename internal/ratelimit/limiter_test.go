package ratelimit

import (
	"context"
	"sync"
	"testing"
	"time"

	"storefront/internal/redisclient"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func TestMemoryLimiter_RollingWindow(t *testing.T) {
	clock := &fakeClock{t: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	l := NewMemoryLimiter(2, time.Minute)
	l.now = clock.now
	ctx := context.Background()

	ok, _ := l.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)
	clock.t = clock.t.Add(20 * time.Second)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)

	ok, _ = l.Allow(ctx, "5.6.7.8")
	assert.True(t, ok, "keys are independent")

	// first hit leaves the window
	clock.t = clock.t.Add(41 * time.Second)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.True(t, ok)
	ok, _ = l.Allow(ctx, "1.2.3.4")
	assert.False(t, ok)
}

func TestMemoryLimiter_SweepsIdleKeys(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	l := NewMemoryLimiter(1, time.Minute)
	l.now = clock.now

	_, _ = l.Allow(context.Background(), "a")
	clock.t = clock.t.Add(2 * time.Minute)
	_, _ = l.Allow(context.Background(), "b")

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.NotContains(t, l.hits, "a")
	assert.Contains(t, l.hits, "b")
}

func TestMemoryLimiter_Concurrent(t *testing.T) {
	l := NewMemoryLimiter(10, time.Minute)

	var wg sync.WaitGroup
	var mu sync.Mutex
	allowed := 0
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := l.Allow(context.Background(), "ip")
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, allowed)
}

func TestRedisLimiter_SharedAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	newLimiter := func() *RedisLimiter {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })
		return NewRedisLimiter(redisclient.NewFromRedis(rdb), "payment_intents", 2, time.Minute)
	}
	a, b := newLimiter(), newLimiter()
	ctx := context.Background()

	ok, err := a.Allow(ctx, "9.9.9.9")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = b.Allow(ctx, "9.9.9.9")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = a.Allow(ctx, "9.9.9.9")
	require.NoError(t, err)
	assert.False(t, ok, "second instance sees the first instance's hits")
}
