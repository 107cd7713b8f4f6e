package kv

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore implements Store on a Redis database. Keys are laid out as
// "<namespace>:<key>"; metadata, when present, lives alongside the value
// under "<namespace>:<key>:meta" with the same TTL.
type RedisStore struct {
	client *redis.Client
}

// NewRedis dials a Redis server and verifies connectivity.
func NewRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func redisKey(ns Namespace, key string) string {
	return string(ns) + ":" + key
}

func redisMetaKey(ns Namespace, key string) string {
	return redisKey(ns, key) + ":meta"
}

// Get returns the value stored at key, or ErrNotFound.
func (s *RedisStore) Get(ctx context.Context, ns Namespace, key string) (string, error) {
	val, err := s.client.Get(ctx, redisKey(ns, key)).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("redis get %s: %w", key, err)
	}
	return val, nil
}

// Put stores value at key, applying TTL and metadata when provided.
func (s *RedisStore) Put(ctx context.Context, ns Namespace, key, value string, opts *PutOptions) error {
	var ttl time.Duration
	if opts != nil {
		ttl = opts.ExpirationTTL
	}

	if err := s.client.Set(ctx, redisKey(ns, key), value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", key, err)
	}

	if opts != nil && len(opts.Metadata) > 0 {
		meta, err := json.Marshal(opts.Metadata)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", key, err)
		}
		if err := s.client.Set(ctx, redisMetaKey(ns, key), string(meta), ttl).Err(); err != nil {
			return fmt.Errorf("redis set meta %s: %w", key, err)
		}
	}
	return nil
}

// Delete removes a key. Deleting a missing key is not an error.
func (s *RedisStore) Delete(ctx context.Context, ns Namespace, key string) error {
	if err := s.client.Del(ctx, redisKey(ns, key), redisMetaKey(ns, key)).Err(); err != nil {
		return fmt.Errorf("redis del %s: %w", key, err)
	}
	return nil
}

// escapeMatchPrefix escapes SCAN glob metacharacters so a
// caller-derived prefix matches literally.
func escapeMatchPrefix(prefix string) string {
	return strings.NewReplacer(`\`, `\\`, `*`, `\*`, `?`, `\?`, `[`, `\[`, `]`, `\]`).Replace(prefix)
}

// List scans keys under the namespace matching the prefix and returns
// them with their values, sorted by key.
func (s *RedisStore) List(ctx context.Context, ns Namespace, opts ListOptions) ([]Entry, error) {
	match := escapeMatchPrefix(redisKey(ns, opts.Prefix)) + "*"

	var keys []string
	iter := s.client.Scan(ctx, 0, match, 0).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if strings.HasSuffix(k, ":meta") {
			continue
		}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis scan %s: %w", match, err)
	}

	sort.Strings(keys)
	if opts.Limit > 0 && len(keys) > opts.Limit {
		keys = keys[:opts.Limit]
	}
	if len(keys) == 0 {
		return nil, nil
	}

	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("redis mget: %w", err)
	}

	nsPrefix := string(ns) + ":"
	entries := make([]Entry, 0, len(keys))
	for i, k := range keys {
		val, ok := values[i].(string)
		if !ok {
			// Key expired between scan and fetch.
			continue
		}
		entries = append(entries, Entry{
			Key:   strings.TrimPrefix(k, nsPrefix),
			Value: val,
		})
	}
	return entries, nil
}
