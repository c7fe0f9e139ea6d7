// Package redis stores cached completions in Redis so several hosts can
// share one cache namespace.
package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/redis/go-redis/v9"

	"github.com/jxzhangjhu/guidance/pkg/models"
)

// DefaultPrefix is prepended to every key.
const DefaultPrefix = "guidance"

// Config describes the Redis connection.
type Config struct {
	Address   string
	Password  string
	DB        int
	Prefix    string
	Namespace string
}

// Cache is a Redis backed response cache. Entries are written without an
// expiry.
type Cache struct {
	client *redis.Client
	prefix string
	hits   atomic.Int64
	misses atomic.Int64
}

// New connects to Redis and verifies the connection.
func New(ctx context.Context, cfg Config) (*Cache, error) {
	if cfg.Address == "" {
		return nil, errors.New("redis address must not be empty")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return NewWithClient(client, cfg.Prefix, cfg.Namespace), nil
}

// NewWithClient wraps an existing client. Close closes the client.
func NewWithClient(client *redis.Client, prefix, namespace string) *Cache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Cache{client: client, prefix: prefix + ":" + namespace + ":"}
}

func (c *Cache) key(fingerprint string) string {
	return c.prefix + fingerprint
}

// Get retrieves a cached response.
func (c *Cache) Get(ctx context.Context, fingerprint string) ([]byte, bool, error) {
	data, err := c.client.Get(ctx, c.key(fingerprint)).Bytes()
	if errors.Is(err, redis.Nil) {
		c.misses.Add(1)
		return nil, false, nil
	}
	if err != nil {
		c.misses.Add(1)
		return nil, false, fmt.Errorf("cache get: %w", err)
	}
	c.hits.Add(1)
	return data, true, nil
}

// Put stores a response.
func (c *Cache) Put(ctx context.Context, fingerprint string, response []byte) error {
	if err := c.client.Set(ctx, c.key(fingerprint), response, 0).Err(); err != nil {
		return fmt.Errorf("cache put: %w", err)
	}
	return nil
}

// Stats counts the keys in the namespace with SCAN.
func (c *Cache) Stats(ctx context.Context) (models.CacheStats, error) {
	var count int64
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		count++
	}
	if err := iter.Err(); err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	return models.CacheStats{
		Entries: count,
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}, nil
}

// Clear deletes every key in the namespace. Keys are collected before any
// is deleted so the SCAN cursor never walks a shrinking keyspace.
func (c *Cache) Clear(ctx context.Context) error {
	var keys []string
	iter := c.client.Scan(ctx, 0, c.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("cache clear: %w", err)
	}
	for start := 0; start < len(keys); start += 100 {
		end := min(start+100, len(keys))
		if err := c.client.Del(ctx, keys[start:end]...).Err(); err != nil {
			return fmt.Errorf("cache clear: %w", err)
		}
	}
	return nil
}

// Close closes the Redis client.
func (c *Cache) Close() error {
	return c.client.Close()
}
