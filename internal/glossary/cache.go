// Package glossary serves per-work glossary terms, optionally through a
// Redis read-through cache.
package glossary

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultCacheTTL = 10 * time.Minute

// Term is the cached form of one glossary entry.
type Term struct {
	Original   string `json:"original"`
	Translated string `json:"translated"`
	Note       string `json:"note,omitempty"`
}

// RedisCache stores the full term list of a work under one key.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisCache connects to redisURL and verifies the connection.
func NewRedisCache(redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisCacheWithClient(client, ttl), nil
}

func NewRedisCacheWithClient(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	return &RedisCache{
		client: client,
		prefix: "glossary:",
		ttl:    ttl,
	}
}

func (c *RedisCache) key(workID string) string {
	return c.prefix + workID
}

// Get returns the cached terms and whether the key was present.
func (c *RedisCache) Get(ctx context.Context, workID string) ([]Term, bool, error) {
	raw, err := c.client.Get(ctx, c.key(workID)).Result()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("lookup glossary cache: %w", err)
	}

	var terms []Term
	if err := json.Unmarshal([]byte(raw), &terms); err != nil {
		return nil, false, fmt.Errorf("unmarshal glossary cache: %w", err)
	}
	return terms, true, nil
}

func (c *RedisCache) Set(ctx context.Context, workID string, terms []Term) error {
	if terms == nil {
		terms = []Term{}
	}
	payload, err := json.Marshal(terms)
	if err != nil {
		return fmt.Errorf("marshal glossary cache: %w", err)
	}
	if err := c.client.Set(ctx, c.key(workID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("save glossary cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Invalidate(ctx context.Context, workID string) error {
	if err := c.client.Del(ctx, c.key(workID)).Err(); err != nil {
		return fmt.Errorf("invalidate glossary cache: %w", err)
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}
