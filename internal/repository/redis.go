package repository

import (
	"context"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const suppressedKeyPrefix = "comms:address:suppressed:"

// RedisRepository caches recipient addresses the email provider has rejected
// as invalid, so a bad address does not fail every subsequent event that
// fans out to it. Entries expire; a corrected address starts working again
// without operator intervention.
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisRepository(client *redis.Client, ttl time.Duration) *RedisRepository {
	return &RedisRepository{
		client: client,
		ttl:    ttl,
	}
}

func (r *RedisRepository) Close() error {
	return r.client.Close()
}

// IsAddressSuppressed returns true if the address is currently marked invalid.
func (r *RedisRepository) IsAddressSuppressed(ctx context.Context, address string) (bool, error) {
	exists, err := r.client.Exists(ctx, suppressedKey(address)).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}

// SuppressAddress marks an address invalid for the given TTL (repository
// default when ttl <= 0).
func (r *RedisRepository) SuppressAddress(ctx context.Context, address string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = r.ttl
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return r.client.SetEX(ctx, suppressedKey(address), "1", ttl).Err()
}

func suppressedKey(address string) string {
	return suppressedKeyPrefix + strings.ToLower(address)
}
