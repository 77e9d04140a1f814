// Package cache keeps hot key-value entries in Redis in front of a slower
// store.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	redisv9 "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"docchat/internal/kv"
)

const (
	foundMarker  = "1"
	absentMarker = "0"
)

// StoreCache is a read-through cache over a kv.Store. Writes mark the key
// dirty for a short while so that a concurrent reader cannot repopulate the
// cache with a value read before the write.
type StoreCache struct {
	inner          kv.Store
	client         *redisv9.Client
	prefix         string
	entryTTL       time.Duration
	dirtyMarkerTTL time.Duration
	log            zerolog.Logger
}

func NewStoreCache(inner kv.Store, client *redisv9.Client, prefix string, entryTTL, dirtyMarkerTTL time.Duration, log zerolog.Logger) *StoreCache {
	if entryTTL <= 0 {
		entryTTL = 60 * time.Second
	}
	if dirtyMarkerTTL <= 0 {
		dirtyMarkerTTL = 5 * time.Second
	}
	return &StoreCache{
		inner:          inner,
		client:         client,
		prefix:         prefix,
		entryTTL:       entryTTL,
		dirtyMarkerTTL: dirtyMarkerTTL,
		log:            log,
	}
}

func (c *StoreCache) Get(ctx context.Context, key string) (string, bool, error) {
	dirty, err := c.isDirty(ctx, key)
	if err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("cache unavailable, reading store")
		return c.inner.Get(ctx, key)
	}
	if !dirty {
		if value, found, hit := c.lookup(ctx, key); hit {
			return value, found, nil
		}
	}

	value, found, err := c.inner.Get(ctx, key)
	if err != nil {
		return "", false, err
	}
	if !dirty {
		c.fill(ctx, key, value, found)
	}
	return value, found, nil
}

func (c *StoreCache) Set(ctx context.Context, key, value string) error {
	return c.write(ctx, key, func() error { return c.inner.Set(ctx, key, value) })
}

func (c *StoreCache) Delete(ctx context.Context, key string) error {
	return c.write(ctx, key, func() error { return c.inner.Delete(ctx, key) })
}

func (c *StoreCache) Update(ctx context.Context, key string, fn kv.UpdateFunc) error {
	return c.write(ctx, key, func() error { return c.inner.Update(ctx, key, fn) })
}

func (c *StoreCache) write(ctx context.Context, key string, op func() error) error {
	if err := c.markDirty(ctx, key); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("mark cache entry dirty failed")
	}
	c.invalidate(ctx, key)
	if err := op(); err != nil {
		return err
	}
	c.invalidate(ctx, key)
	return nil
}

func (c *StoreCache) lookup(ctx context.Context, key string) (value string, found, hit bool) {
	raw, err := c.client.Get(ctx, c.entryKey(key)).Result()
	if errors.Is(err, redisv9.Nil) {
		return "", false, false
	}
	if err != nil || raw == "" {
		if err != nil {
			c.log.Warn().Err(err).Str("key", key).Msg("redis get cache entry failed")
		}
		return "", false, false
	}
	switch raw[:1] {
	case foundMarker:
		return raw[1:], true, true
	case absentMarker:
		return "", false, true
	}
	return "", false, false
}

var errSkipFill = errors.New("cache entry is dirty")

// fill stores a value read from the inner store unless a write marked the key
// dirty since the caller's check. WATCH on the marker covers a write that
// lands between the check and the SET.
func (c *StoreCache) fill(ctx context.Context, key, value string, found bool) {
	payload := absentMarker
	if found {
		payload = foundMarker + value
	}
	dirtyKey := c.dirtyKey(key)
	err := c.client.Watch(ctx, func(tx *redisv9.Tx) error {
		dirty, err := tx.Exists(ctx, dirtyKey).Result()
		if err != nil {
			return err
		}
		if dirty > 0 {
			return errSkipFill
		}
		_, err = tx.TxPipelined(ctx, func(pipe redisv9.Pipeliner) error {
			pipe.Set(ctx, c.entryKey(key), payload, c.entryTTL)
			return nil
		})
		return err
	}, dirtyKey)
	switch {
	case err == nil, errors.Is(err, errSkipFill), errors.Is(err, redisv9.TxFailedErr):
	default:
		c.log.Warn().Err(err).Str("key", key).Msg("redis set cache entry failed")
	}
}

func (c *StoreCache) invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, c.entryKey(key)).Err(); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("redis delete cache entry failed")
	}
}

func (c *StoreCache) markDirty(ctx context.Context, key string) error {
	if err := c.client.Set(ctx, c.dirtyKey(key), "1", c.dirtyMarkerTTL).Err(); err != nil {
		return fmt.Errorf("redis set dirty marker failed: %w", err)
	}
	return nil
}

func (c *StoreCache) isDirty(ctx context.Context, key string) (bool, error) {
	exists, err := c.client.Exists(ctx, c.dirtyKey(key)).Result()
	if err != nil {
		return false, fmt.Errorf("redis check dirty marker failed: %w", err)
	}
	return exists > 0, nil
}

func (c *StoreCache) entryKey(key string) string {
	return c.prefix + ":cache:" + key
}

func (c *StoreCache) dirtyKey(key string) string {
	return c.prefix + ":cache:dirty:" + key
}
