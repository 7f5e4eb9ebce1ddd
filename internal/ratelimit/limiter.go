// Package ratelimit bounds how often a client may perform an action within a
// rolling window.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"storefront/internal/redisclient"
)

// Limiter checks and records one attempt for key.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// MemoryLimiter is a process-local sliding window. It does not coordinate
// across instances; use RedisLimiter when more than one instance serves.
type MemoryLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
	now    func() time.Time
}

// NewMemoryLimiter allows limit attempts per key within window
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
		now:    time.Now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)

	recent := l.hits[key][:0]
	for _, t := range l.hits[key] {
		if t.After(cutoff) {
			recent = append(recent, t)
		}
	}

	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false, nil
	}

	l.hits[key] = append(recent, now)
	l.sweep(cutoff)
	return true, nil
}

// sweep drops keys whose newest hit fell out of the window.
func (l *MemoryLimiter) sweep(cutoff time.Time) {
	for k, times := range l.hits {
		if len(times) == 0 || !times[len(times)-1].After(cutoff) {
			delete(l.hits, k)
		}
	}
}

// RedisLimiter keeps the window in Redis so every instance shares it.
type RedisLimiter struct {
	client *redisclient.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter allows limit attempts per key within window, namespaced by
// prefix.
func NewRedisLimiter(client *redisclient.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{
		client: client,
		prefix: prefix,
		limit:  limit,
		window: window,
		now:    time.Now,
	}
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (bool, error) {
	return l.client.AllowInWindow(ctx, l.prefix+":"+key, l.limit, l.window, l.now())
}
