package mocks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MockRedisClient implements repository.RedisClient over a map with TTLs.
type MockRedisClient struct {
	mu      sync.RWMutex
	entries map[string]time.Time // key -> expiry, zero means no expiry

	SetError    error
	ExistsError error
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{entries: make(map[string]time.Time)}
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx, "set", key, fmt.Sprint(value))
	if m.SetError != nil {
		cmd.SetErr(m.SetError)
		return cmd
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	var expiresAt time.Time
	if expiration > 0 {
		expiresAt = time.Now().Add(expiration)
	}
	m.entries[key] = expiresAt
	cmd.SetVal("OK")
	return cmd
}

func (m *MockRedisClient) Exists(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx, "exists")
	if m.ExistsError != nil {
		cmd.SetErr(m.ExistsError)
		return cmd
	}

	var n int64
	for _, key := range keys {
		if m.HasKey(key) {
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

// HasKey reports whether key is stored and not expired.
func (m *MockRedisClient) HasKey(key string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	expiresAt, ok := m.entries[key]
	return ok && (expiresAt.IsZero() || time.Now().Before(expiresAt))
}
