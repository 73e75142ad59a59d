// Package rediscache provides a Redis-backed directions cache so several API
// instances share provider responses.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/waypointroute/waypointroute/internal/routing"
)

// DefaultKeyPrefix namespaces cache keys in a shared Redis database.
const DefaultKeyPrefix = "waypointroute:directions:"

// Config holds configuration for the Redis cache.
type Config struct {
	// Client is the Redis client (required).
	Client redis.UniversalClient

	// KeyPrefix is prepended to every key (default: DefaultKeyPrefix).
	KeyPrefix string
}

// Cache is a routing.Cache stored in Redis. Entries are JSON encoded and expire
// through Redis TTLs once their retention has passed.
type Cache struct {
	client redis.UniversalClient
	prefix string
}

// New creates a Redis cache.
func New(cfg Config) *Cache {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Cache{
		client: cfg.Client,
		prefix: prefix,
	}
}

// Connect builds a client for addr and verifies it answers PING.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis at %s: %w", addr, err)
	}
	return client, nil
}

// Get returns the entry stored under key.
func (c *Cache) Get(ctx context.Context, key string) (*routing.CachedDirections, bool, error) {
	data, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}

	var entry routing.CachedDirections
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, false, fmt.Errorf("decoding cached directions: %w", err)
	}
	return &entry, true, nil
}

// Set stores entry under key until retention has passed.
func (c *Cache) Set(ctx context.Context, key string, entry *routing.CachedDirections, retention time.Duration) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cached directions: %w", err)
	}
	if err := c.client.Set(ctx, c.prefix+key, data, retention).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

var _ routing.Cache = (*Cache)(nil)
