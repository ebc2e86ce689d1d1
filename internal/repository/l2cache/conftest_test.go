package l2cache

import (
	"context"
	"time"

	"github.com/kailas-cloud/cinerank/internal/db"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	getFn  func(ctx context.Context, key string) ([]byte, error)
	setFn  func(ctx context.Context, key string, value []byte, ttl time.Duration) error
	delFn  func(ctx context.Context, keys ...string) error
	scanFn func(ctx context.Context, pattern string) ([]string, error)
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value, ttl)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, keys ...string) error {
	if m.delFn != nil {
		return m.delFn(ctx, keys...)
	}
	return nil
}

func (m *mockStore) Scan(ctx context.Context, pattern string) ([]string, error) {
	if m.scanFn != nil {
		return m.scanFn(ctx, pattern)
	}
	return nil, nil
}
