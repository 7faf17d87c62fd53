package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/parksys/parking-service/internal/config"
	"github.com/parksys/parking-service/internal/core/ports"
)

const blacklistKeyPrefix = "auth:revoked:"

// RedisClient is the subset of *redis.Client the blacklist needs.
type RedisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Exists(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisTokenBlacklist stores revoked token ids with a TTL matching the
// token's remaining lifetime.
type RedisTokenBlacklist struct {
	client RedisClient
	cb     *gobreaker.CircuitBreaker
}

var _ ports.TokenBlacklist = (*RedisTokenBlacklist)(nil)

func NewRedisTokenBlacklist(client RedisClient) *RedisTokenBlacklist {
	return &RedisTokenBlacklist{
		client: client,
		cb:     config.NewCircuitBreaker(config.BreakerRedis),
	}
}

func (b *RedisTokenBlacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		return nil, b.client.Set(ctx, blacklistKeyPrefix+tokenID, "1", ttl).Err()
	})
	if err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

func (b *RedisTokenBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := b.cb.Execute(func() (interface{}, error) {
		return b.client.Exists(ctx, blacklistKeyPrefix+tokenID).Result()
	})
	if err != nil {
		return false, fmt.Errorf("check token: %w", err)
	}
	return n.(int64) > 0, nil
}

// MemoryTokenBlacklist is used when no redis address is configured.
type MemoryTokenBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

var _ ports.TokenBlacklist = (*MemoryTokenBlacklist)(nil)

func NewMemoryTokenBlacklist() *MemoryTokenBlacklist {
	return &MemoryTokenBlacklist{revoked: make(map[string]time.Time), now: time.Now}
}

func (b *MemoryTokenBlacklist) Revoke(ctx context.Context, tokenID string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[tokenID] = b.now().Add(ttl)
	return nil
}

func (b *MemoryTokenBlacklist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	expiresAt, ok := b.revoked[tokenID]
	if !ok {
		return false, nil
	}
	if b.now().After(expiresAt) {
		delete(b.revoked, tokenID)
		return false, nil
	}
	return true, nil
}
