package redisx

import (
	"context"
	"errors"
	"github.com/redis/go-redis/v9"
	"time"
)

// Cache stores resource entries under Prefix+key.
type Cache struct {
	RDB    redis.UniversalClient
	Prefix string
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.RDB.Get(ctx, c.Prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *Cache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	return c.RDB.Set(ctx, c.Prefix+key, val, ttl).Err()
}

func (c *Cache) Delete(ctx context.Context, key string) error {
	return c.RDB.Del(ctx, c.Prefix+key).Err()
}

// DeletePrefix walks the keyspace with SCAN and deletes in batches.
func (c *Cache) DeletePrefix(ctx context.Context, prefix string) error {
	iter := c.RDB.Scan(ctx, 0, Pattern(c.Prefix+prefix), scanCount).Iterator()
	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.RDB.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.RDB.Del(ctx, batch...).Err()
	}
	return nil
}

// Pattern escapes glob characters in prefix and appends '*'.
func Pattern(prefix string) string {
	out := make([]byte, 0, len(prefix)+1)
	for i := 0; i < len(prefix); i++ {
		switch prefix[i] {
		case '*', '?', '[', ']', '\\':
			out = append(out, '\\')
		}
		out = append(out, prefix[i])
	}
	return string(append(out, '*'))
}
