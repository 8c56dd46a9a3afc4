// Package cache provides a Redis-backed store for model responses.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the lifetime of a cached response.
const DefaultTTL = 7 * 24 * time.Hour

// Config holds Redis connection configuration.
type Config struct {
	URL      string
	Password string
	Prefix   string
	TTL      time.Duration
}

// Redis stores raw model responses keyed by request fingerprint.
type Redis struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedis connects to Redis and verifies the connection.
func NewRedis(ctx context.Context, cfg Config) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return newRedis(rdb, cfg), nil
}

func newRedis(rdb *redis.Client, cfg Config) *Redis {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "ocr-review"
	}
	return &Redis{rdb: rdb, prefix: prefix, ttl: ttl}
}

func (r *Redis) key(k string) string {
	return r.prefix + ":" + k
}

// Get returns the stored value and whether it was present.
func (r *Redis) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := r.rdb.Get(ctx, r.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get failed: %w", err)
	}
	return data, true, nil
}

// Set stores value with the configured TTL.
func (r *Redis) Set(ctx context.Context, key string, value []byte) error {
	if err := r.rdb.Set(ctx, r.key(key), value, r.ttl).Err(); err != nil {
		return fmt.Errorf("set failed: %w", err)
	}
	return nil
}

// Delete removes a stored value.
func (r *Redis) Delete(ctx context.Context, key string) error {
	return r.rdb.Del(ctx, r.key(key)).Err()
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.rdb.Close()
}
