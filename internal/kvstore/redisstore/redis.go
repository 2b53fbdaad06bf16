// Package redisstore implements kvstore.Store on Redis.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/and161185/civictrack/internal/kvstore"
)

// DefaultPrefix namespaces keys so several clients can share one Redis.
const DefaultPrefix = "civictrack:"

type redisKV interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	MSet(ctx context.Context, values ...interface{}) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Store is a Redis-backed kvstore.Store. SetMany uses MSET, which Redis applies atomically.
type Store struct {
	client  redisKV
	prefix  string
	timeout time.Duration
}

var (
	_ kvstore.Store        = (*Store)(nil)
	_ kvstore.BatchSetter  = (*Store)(nil)
	_ kvstore.BatchDeleter = (*Store)(nil)
)

// New wraps a go-redis client. prefix defaults to DefaultPrefix.
func New(client *redis.Client, prefix string) *Store {
	return newStore(client, prefix)
}

func newStore(client redisKV, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Store{client: client, prefix: prefix, timeout: 2 * time.Second}
}

func (s *Store) ctx(parent context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(parent, s.timeout)
}

// Get returns the value for key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	v, err := s.client.Get(ctx, s.prefix+key).Result()
	if errors.Is(err, redis.Nil) {
		return "", kvstore.ErrNotFound
	}
	return v, err
}

// Set stores value under key without expiry.
func (s *Store) Set(ctx context.Context, key, value string) error {
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.client.Set(ctx, s.prefix+key, value, 0).Err()
}

// SetMany stores all pairs with a single MSET.
func (s *Store) SetMany(ctx context.Context, kv map[string]string) error {
	if len(kv) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(kv)*2)
	for k, v := range kv {
		args = append(args, s.prefix+k, v)
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.client.MSet(ctx, args...).Err()
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	return s.DeleteMany(ctx, key)
}

// DeleteMany removes keys with a single DEL.
func (s *Store) DeleteMany(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = s.prefix + k
	}
	ctx, cancel := s.ctx(ctx)
	defer cancel()
	return s.client.Del(ctx, full...).Err()
}
