package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by a Remote when the key is absent.
var ErrMiss = errors.New("cache: miss")

// Remote is the L2 tier contract. Implementations must be safe for concurrent use.
type Remote interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
}

// Nop is the absent L2 tier: every read misses, every write succeeds.
type Nop struct{}

var _ Remote = Nop{}

// Get always misses.
func (Nop) Get(context.Context, string) ([]byte, error) { return nil, ErrMiss }

// Set discards the value.
func (Nop) Set(context.Context, string, []byte, time.Duration) error { return nil }

// Delete is a no-op.
func (Nop) Delete(context.Context, string) error { return nil }

// Clear is a no-op.
func (Nop) Clear(context.Context) error { return nil }
