package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter decides whether a key may perform another request in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

var errInvalidLimit = errors.New("rate limiter requires a positive limit and a window of at least 1ms")

// Memory is a fixed-window limiter for a single instance.
type Memory struct {
	limit  int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	slot    int64
	counter map[string]int
}

func NewMemory(limit int, window time.Duration) (*Memory, error) {
	if limit <= 0 || window < time.Millisecond {
		return nil, errInvalidLimit
	}
	return &Memory{
		limit:   limit,
		window:  window,
		now:     time.Now,
		counter: make(map[string]int),
	}, nil
}

func (m *Memory) Allow(_ context.Context, key string) (bool, error) {
	slot := m.now().UnixMilli() / m.window.Milliseconds()
	m.mu.Lock()
	defer m.mu.Unlock()
	if slot != m.slot {
		m.slot = slot
		clear(m.counter)
	}
	m.counter[normalizeKey(key)]++
	return m.counter[normalizeKey(key)] <= m.limit, nil
}

var fixedWindowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Redis is a fixed-window limiter shared by every instance pointed at the same server.
type Redis struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration) (*Redis, error) {
	if limit <= 0 || window < time.Millisecond {
		return nil, errInvalidLimit
	}
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = "studynotes:ratelimit"
	}
	return &Redis{client: client, prefix: prefix, limit: limit, window: window}, nil
}

// Allow fails closed: a Redis error returns false together with the error.
func (l *Redis) Allow(ctx context.Context, key string) (bool, error) {
	windowMs := l.window.Milliseconds()
	slot := time.Now().UTC().UnixMilli() / windowMs
	redisKey := fmt.Sprintf("%s:%s:%d", l.prefix, normalizeKey(key), slot)

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	count, err := fixedWindowScript.Run(ctx, l.client, []string{redisKey}, windowMs).Int64()
	if err != nil {
		return false, fmt.Errorf("rate limit: %w", err)
	}
	return count <= int64(l.limit), nil
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "unknown"
	}
	return key
}
