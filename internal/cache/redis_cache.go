package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redis "github.com/redis/go-redis/v9"

	"zenith/backoffice/internal/domain"
)

// keyPrefix namespaces back office entries in a shared redis database.
const keyPrefix = "zenith:"

// RedisQuoteCache stores quote snapshots as JSON under keyPrefix+key.
type RedisQuoteCache struct {
	client *redis.Client
}

func NewRedisQuoteCache(addr string, password string, db int) *RedisQuoteCache {
	return &RedisQuoteCache{client: redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})}
}

func (c *RedisQuoteCache) Ping(ctx context.Context) error {
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache: ping redis: %w", err)
	}
	return nil
}

func (c *RedisQuoteCache) Close() error {
	return c.client.Close()
}

// Get returns the snapshot under key. A malformed or non-positive entry is
// removed and reported as a miss; the decode error is still returned.
func (c *RedisQuoteCache) Get(ctx context.Context, key string) (*domain.QuoteSnapshot, bool, error) {
	raw, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("cache: get %s: %w", key, err)
	}

	snap, err := decodeSnapshot(key, raw)
	if err != nil {
		_ = c.client.Del(ctx, keyPrefix+key).Err()
		return nil, false, err
	}
	if snap == nil {
		return nil, false, nil
	}
	return snap, true, nil
}

// Set stores value for ttl. Nothing is written for a nil value or a
// non-positive ttl.
func (c *RedisQuoteCache) Set(ctx context.Context, key string, value *domain.QuoteSnapshot, ttl time.Duration) error {
	if value == nil || ttl <= 0 {
		return nil
	}
	payload, err := encodeSnapshot(key, value)
	if err != nil {
		return err
	}
	if err := c.client.Set(ctx, keyPrefix+key, payload, ttl).Err(); err != nil {
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

func encodeSnapshot(key string, snap *domain.QuoteSnapshot) ([]byte, error) {
	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("cache: encode quote snapshot %s: %w", key, err)
	}
	return payload, nil
}

// decodeSnapshot returns nil without error for an entry whose value is not
// positive.
func decodeSnapshot(key string, raw []byte) (*domain.QuoteSnapshot, error) {
	var snap domain.QuoteSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, fmt.Errorf("cache: decode quote snapshot %s: %w", key, err)
	}
	if !snap.Value.IsPositive() {
		return nil, nil
	}
	return &snap, nil
}
