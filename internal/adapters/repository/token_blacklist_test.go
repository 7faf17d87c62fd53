package repository_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parksys/parking-service/internal/adapters/repository"
	"github.com/parksys/parking-service/test/mocks"
)

func TestRedisTokenBlacklist(t *testing.T) {
	client := mocks.NewMockRedisClient()
	blacklist := repository.NewRedisTokenBlacklist(client)
	ctx := context.Background()

	revoked, err := blacklist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, blacklist.Revoke(ctx, "jti-1", time.Hour))
	assert.True(t, client.HasKey("auth:revoked:jti-1"))

	revoked, err = blacklist.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
}

func TestRedisTokenBlacklist_Errors(t *testing.T) {
	client := mocks.NewMockRedisClient()
	blacklist := repository.NewRedisTokenBlacklist(client)
	ctx := context.Background()

	client.SetError = errors.New("connection refused")
	assert.Error(t, blacklist.Revoke(ctx, "jti-1", time.Hour))

	client.ExistsError = errors.New("connection refused")
	_, err := blacklist.IsRevoked(ctx, "jti-1")
	assert.Error(t, err)
}

func TestMemoryTokenBlacklist(t *testing.T) {
	blacklist := repository.NewMemoryTokenBlacklist()
	ctx := context.Background()

	require.NoError(t, blacklist.Revoke(ctx, "live", time.Hour))
	require.NoError(t, blacklist.Revoke(ctx, "expired", -time.Second))

	revoked, err := blacklist.IsRevoked(ctx, "live")
	require.NoError(t, err)
	assert.True(t, revoked)

	revoked, err = blacklist.IsRevoked(ctx, "expired")
	require.NoError(t, err)
	assert.False(t, revoked)

	revoked, err = blacklist.IsRevoked(ctx, "unknown")
	require.NoError(t, err)
	assert.False(t, revoked)
}
