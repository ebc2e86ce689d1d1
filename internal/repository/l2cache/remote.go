// Package l2cache is the network tier of the result cache, stored as plain
// string keys with expiry in Redis.
package l2cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kailas-cloud/cinerank/internal/cache"
	"github.com/kailas-cloud/cinerank/internal/db"
	"github.com/kailas-cloud/cinerank/internal/domain"
)

// KeyPrefix namespaces L2 entries in the shared store.
var KeyPrefix = domain.KeyPrefix + "cache:"

// Compile-time check: Remote implements cache.Remote.
var _ cache.Remote = (*Remote)(nil)

// store is the consumer interface for the L2 tier (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// Remote adapts the key-value store to cache.Remote.
type Remote struct {
	store store
}

// New creates the Redis-backed L2 tier.
func New(s store) *Remote {
	return &Remote{store: s}
}

// Get returns the stored value or cache.ErrMiss.
func (r *Remote) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.store.Get(ctx, KeyPrefix+key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("l2 get: %w", err)
	}
	return data, nil
}

// Set stores value with ttl. Redis expiry has second granularity, so sub-second
// TTLs are rounded up to one second.
func (r *Remote) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < time.Second {
		ttl = time.Second
	}
	if err := r.store.SetWithTTL(ctx, KeyPrefix+key, value, ttl); err != nil {
		return fmt.Errorf("l2 set: %w", err)
	}
	return nil
}

// Delete removes key.
func (r *Remote) Delete(ctx context.Context, key string) error {
	if err := r.store.Del(ctx, KeyPrefix+key); err != nil {
		return fmt.Errorf("l2 delete: %w", err)
	}
	return nil
}

// deleteBatch bounds the DEL argument list during Clear.
const deleteBatch = 500

// Clear removes every L2 entry under the cache prefix.
func (r *Remote) Clear(ctx context.Context) error {
	keys, err := r.store.Scan(ctx, KeyPrefix+"*")
	if err != nil {
		return fmt.Errorf("l2 clear scan: %w", err)
	}
	for start := 0; start < len(keys); start += deleteBatch {
		end := min(start+deleteBatch, len(keys))
		if err := r.store.Del(ctx, keys[start:end]...); err != nil {
			return fmt.Errorf("l2 clear: %w", err)
		}
	}
	return nil
}
