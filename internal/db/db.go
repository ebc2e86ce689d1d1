package db

import (
	"context"
	"time"
)

// Store is the main database facade combining all sub-interfaces.
//
//nolint:interfacebloat // consumers depend on the narrow sub-interfaces
type Store interface {
	Pinger
	HashStore
	KVStore
	CounterStore
	IndexManager
	Searcher
	Close()
	WaitForReady(ctx context.Context, timeout time.Duration) error
}

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HashSetItem holds a single key+fields pair for pipelined HSET.
type HashSetItem struct {
	Key    string
	Fields map[string]string
}

// HashStore provides hash-based record operations. The movie catalog lives here.
type HashStore interface {
	HSetMulti(ctx context.Context, items []HashSetItem) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HGetAllMulti(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error)
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// KVStore provides simple key-value operations with expiry.
type KVStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Scan(ctx context.Context, pattern string) ([]string, error)
}

// CounterStore provides atomic counters with expiry. Token budgets live here.
type CounterStore interface {
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// IndexManager provides FT index lifecycle operations.
type IndexManager interface {
	CreateIndex(ctx context.Context, def *IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Searcher provides vector search over FT indexes.
type Searcher interface {
	SearchKNN(ctx context.Context, q *KNNQuery) (*SearchResult, error)
}
