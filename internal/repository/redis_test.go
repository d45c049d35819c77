package repository

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *RedisRepository {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisRepository(client, time.Hour)
}

func TestSuppressAddressRoundTrip(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	suppressed, err := repo.IsAddressSuppressed(ctx, "jo@x.com")
	require.NoError(t, err)
	assert.False(t, suppressed)

	require.NoError(t, repo.SuppressAddress(ctx, "jo@x.com", 0))

	suppressed, err = repo.IsAddressSuppressed(ctx, "jo@x.com")
	require.NoError(t, err)
	assert.True(t, suppressed)
}

func TestSuppressionIsCaseInsensitive(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	require.NoError(t, repo.SuppressAddress(ctx, "Jo@X.com", 0))

	suppressed, err := repo.IsAddressSuppressed(ctx, "jo@x.com")
	require.NoError(t, err)
	assert.True(t, suppressed)
}
