package transparency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pbaille/notemarket/internal/domain"
)

// RedisConfig configures the shared transparency cache
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	TTL       time.Duration
}

// RedisCache keeps transparency results in Redis so every API process sees
// the same entries. Redis failures fall back to a direct lookup.
type RedisCache struct {
	client *redis.Client
	lookup Lookup
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection
func NewRedisCache(ctx context.Context, cfg RedisConfig, lookup Lookup) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}
	return newRedisCache(client, cfg, lookup), nil
}

func newRedisCache(client *redis.Client, cfg RedisConfig, lookup Lookup) *RedisCache {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{client: client, lookup: lookup, prefix: cfg.KeyPrefix, ttl: ttl}
}

func (r *RedisCache) key(noteID int64) string {
	return fmt.Sprintf("%stransparency:%d", r.prefix, noteID)
}

// Get reads through Redis. Expiry is delegated to the key TTL.
func (r *RedisCache) Get(ctx context.Context, noteID int64) (*domain.TransparencyResult, error) {
	raw, err := r.client.Get(ctx, r.key(noteID)).Bytes()
	switch {
	case err == nil:
		var data domain.TransparencyResult
		if err := json.Unmarshal(raw, &data); err == nil {
			return &data, nil
		}
		slog.Warn("discarding undecodable transparency entry", "note_id", noteID)
	case !errors.Is(err, redis.Nil):
		slog.Warn("redis read failed, using direct lookup", "note_id", noteID, "error", err)
	}

	data, err := r.lookup.LookupTransparency(ctx, noteID)
	if err != nil {
		return nil, err
	}

	if encoded, err := json.Marshal(data); err == nil {
		if err := r.client.Set(ctx, r.key(noteID), encoded, r.ttl).Err(); err != nil {
			slog.Warn("redis write failed", "note_id", noteID, "error", err)
		}
	}
	return data, nil
}

// Clear deletes every transparency key under the configured prefix
func (r *RedisCache) Clear(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, r.prefix+"transparency:*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan transparency keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete transparency keys: %w", err)
	}
	return nil
}

// Close closes the Redis client
func (r *RedisCache) Close() error {
	return r.client.Close()
}
