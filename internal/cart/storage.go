package cart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Storage keys
const (
	KeyCart         = "storefront-cart"
	KeyBackup       = "storefront-cart-backup"
	KeyPendingOrder = "storefront-pending-order"
)

// ErrNotFound is returned by Storage.Load for a missing key
var ErrNotFound = errors.New("storage key not found")

// Storage is a small key/value store for cart state
type Storage interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
}

// Notifier is implemented by storages that report changes made through them.
// The callback runs after each Save or Remove.
type Notifier interface {
	Watch(fn func(key string)) (stop func())
}

// MemoryStorage is an in-process storage. Stores sharing one MemoryStorage
// see each other's writes, like browser tabs sharing local storage.
type MemoryStorage struct {
	mu       sync.RWMutex
	data     map[string][]byte
	watchers map[int]func(string)
	nextID   int
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		data:     make(map[string][]byte),
		watchers: make(map[int]func(string)),
	}
}

func (m *MemoryStorage) Load(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (m *MemoryStorage) Save(_ context.Context, key string, value []byte) error {
	v := make([]byte, len(value))
	copy(v, value)

	m.mu.Lock()
	m.data[key] = v
	m.mu.Unlock()

	m.notify(key)
	return nil
}

func (m *MemoryStorage) Remove(_ context.Context, key string) error {
	m.mu.Lock()
	_, existed := m.data[key]
	delete(m.data, key)
	m.mu.Unlock()

	if existed {
		m.notify(key)
	}
	return nil
}

// Has reports whether key is present
func (m *MemoryStorage) Has(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.data[key]
	return ok
}

func (m *MemoryStorage) Watch(fn func(key string)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.watchers[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.watchers, id)
		m.mu.Unlock()
	}
}

func (m *MemoryStorage) notify(key string) {
	m.mu.RLock()
	fns := make([]func(string), 0, len(m.watchers))
	for _, fn := range m.watchers {
		fns = append(fns, fn)
	}
	m.mu.RUnlock()

	for _, fn := range fns {
		fn(key)
	}
}

// RedisStorage keeps cart state in Redis under a per-session prefix
type RedisStorage struct {
	rdb       *redis.Client
	sessionID string
	ttl       time.Duration
}

// NewRedisStorage creates a storage for one session. A zero ttl keeps keys
// forever.
func NewRedisStorage(rdb *redis.Client, sessionID string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{rdb: rdb, sessionID: sessionID, ttl: ttl}
}

func (r *RedisStorage) key(key string) string {
	return fmt.Sprintf("session:%s:%s", r.sessionID, key)
}

func (r *RedisStorage) Load(ctx context.Context, key string) ([]byte, error) {
	v, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return v, nil
}

func (r *RedisStorage) Save(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}
	return nil
}

func (r *RedisStorage) Remove(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.key(key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}
