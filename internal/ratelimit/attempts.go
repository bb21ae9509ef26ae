package ratelimit

import (
	"context"
	"errors"
	"sync"
	"time"

	redis "github.com/redis/go-redis/v9"

	"fuel-reconciliation-service/internal/clock"
)

// AttemptCounter counts failed attempts per key inside a fixed window that
// starts at the first failure.
type AttemptCounter interface {
	Attempts(ctx context.Context, key string) (int, error)
	Increment(ctx context.Context, key string) (int, error)
	Reset(ctx context.Context, key string) error
}

type memoryEntry struct {
	count   int
	expires time.Time
}

// MemoryAttempts keeps counters in process memory.
type MemoryAttempts struct {
	mu      sync.Mutex
	window  time.Duration
	clock   clock.Clock
	entries map[string]memoryEntry
}

func NewMemoryAttempts(window time.Duration, clk clock.Clock) *MemoryAttempts {
	if clk == nil {
		clk = clock.New()
	}
	return &MemoryAttempts{
		window:  window,
		clock:   clk,
		entries: make(map[string]memoryEntry),
	}
}

func (m *MemoryAttempts) live(key string) (memoryEntry, bool) {
	e, ok := m.entries[key]
	if !ok {
		return memoryEntry{}, false
	}
	if !m.clock.Now().Before(e.expires) {
		delete(m.entries, key)
		return memoryEntry{}, false
	}
	return e, true
}

func (m *MemoryAttempts) Attempts(ctx context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, _ := m.live(key)
	return e.count, nil
}

func (m *MemoryAttempts) Increment(ctx context.Context, key string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.live(key)
	if !ok {
		e = memoryEntry{expires: m.clock.Now().Add(m.window)}
	}
	e.count++
	m.entries[key] = e
	return e.count, nil
}

func (m *MemoryAttempts) Reset(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

// RedisAttempts shares counters across instances.
type RedisAttempts struct {
	client *redis.Client
	window time.Duration
	prefix string
}

func NewRedisAttempts(client *redis.Client, window time.Duration) *RedisAttempts {
	if client == nil {
		return nil
	}
	return &RedisAttempts{client: client, window: window, prefix: "share_link:attempts:"}
}

func (r *RedisAttempts) Attempts(ctx context.Context, key string) (int, error) {
	if r == nil || r.client == nil {
		return 0, errors.New("attempt counter not configured")
	}
	n, err := r.client.Get(ctx, r.prefix+key).Int()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return n, err
}

func (r *RedisAttempts) Increment(ctx context.Context, key string) (int, error) {
	if r == nil || r.client == nil {
		return 0, errors.New("attempt counter not configured")
	}
	k := r.prefix + key
	n, err := r.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, err
	}
	if n == 1 {
		if err := r.client.Expire(ctx, k, r.window).Err(); err != nil {
			return int(n), err
		}
	}
	return int(n), nil
}

func (r *RedisAttempts) Reset(ctx context.Context, key string) error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Del(ctx, r.prefix+key).Err()
}
