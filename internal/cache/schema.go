// Package cache provides an optional Redis-backed cache for remote table
// schemas. Schemas change rarely while validation and auto-matching hit
// them often, so a short TTL removes most repeat round trips without
// risking long-lived staleness.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/syncforge/syncforge/internal/mapping"
)

// FieldCache stores table schemas by key.
type FieldCache interface {
	GetFields(ctx context.Context, key string) ([]mapping.TableField, bool)
	SetFields(ctx context.Context, key string, fields []mapping.TableField)
}

// RedisFieldCache implements FieldCache on a Redis instance.
type RedisFieldCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisFieldCache builds a cache over an existing Redis client.
func NewRedisFieldCache(client *redis.Client, ttl time.Duration) *RedisFieldCache {
	if ttl <= 0 {
		ttl = time.Minute
	}
	return &RedisFieldCache{client: client, ttl: ttl}
}

// GetFields returns the cached schema for key, when present and decodable.
func (c *RedisFieldCache) GetFields(ctx context.Context, key string) ([]mapping.TableField, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Debug("schema cache read failed")
		}
		return nil, false
	}
	var fields []mapping.TableField
	if errDecode := json.Unmarshal(data, &fields); errDecode != nil {
		return nil, false
	}
	return fields, true
}

// SetFields stores a schema under key. Write failures are logged and
// ignored; the cache is an optimization, not a source of truth.
func (c *RedisFieldCache) SetFields(ctx context.Context, key string, fields []mapping.TableField) {
	data, errEncode := json.Marshal(fields)
	if errEncode != nil {
		return
	}
	if errSet := c.client.Set(ctx, key, data, c.ttl).Err(); errSet != nil {
		log.WithError(errSet).Debug("schema cache write failed")
	}
}

// CachingTableFieldFetcher decorates a table field fetcher with a
// read-through cache.
type CachingTableFieldFetcher struct {
	next  mapping.TableFieldFetcher
	cache FieldCache
}

// NewCachingTableFieldFetcher wraps next with cache.
func NewCachingTableFieldFetcher(next mapping.TableFieldFetcher, cache FieldCache) *CachingTableFieldFetcher {
	return &CachingTableFieldFetcher{next: next, cache: cache}
}

// FetchTableFields serves from the cache when possible and falls through to
// the live fetcher otherwise.
func (f *CachingTableFieldFetcher) FetchTableFields(ctx context.Context, creds mapping.TableCredentials, table string) ([]mapping.TableField, error) {
	key := schemaKey(creds, table)
	if fields, ok := f.cache.GetFields(ctx, key); ok {
		return fields, nil
	}
	fields, err := f.next.FetchTableFields(ctx, creds, table)
	if err != nil {
		return nil, err
	}
	f.cache.SetFields(ctx, key, fields)
	return fields, nil
}

// schemaKey derives a cache key from the instance, user and table. The
// username is hashed in so two accounts with different visibility never
// share an entry; the password never participates.
func schemaKey(creds mapping.TableCredentials, table string) string {
	sum := sha256.Sum256([]byte(creds.InstanceURL + "\x00" + creds.Username))
	return fmt.Sprintf("syncforge:schema:%s:%s", hex.EncodeToString(sum[:8]), table)
}
