// Package budget persists embedding token counters so a restart does not
// reset the spend already recorded for the current day and month.
package budget

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/kailas-cloud/cinerank/internal/db"
)

// store is the consumer interface for budget counters (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	IncrBy(ctx context.Context, key string, delta int64) (int64, error)
	Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error
}

// Store keeps counters under INCRBY with an expiry set once per key.
type Store struct {
	store    store
	dailyTTL time.Duration
	monthTTL time.Duration
}

// New creates a budget store. Daily keys should outlive their day (48h is
// plenty) and monthly keys their month (62 days).
func New(s store, dailyTTL, monthTTL time.Duration) *Store {
	return &Store{store: s, dailyTTL: dailyTTL, monthTTL: monthTTL}
}

// IncrBy adds tokens to key. The TTL is only set on the first increment so
// repeated writes do not extend the key's life.
func (s *Store) IncrBy(ctx context.Context, key string, tokens int64) error {
	if _, err := s.store.IncrBy(ctx, key, tokens); err != nil {
		return fmt.Errorf("budget incr %s: %w", key, err)
	}
	if err := s.store.Expire(ctx, key, s.ttlFor(key), true); err != nil {
		return fmt.Errorf("budget expire %s: %w", key, err)
	}
	return nil
}

// Get returns the counter at key, 0 when it does not exist.
func (s *Store) Get(ctx context.Context, key string) (int64, error) {
	data, err := s.store.Get(ctx, key)
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return 0, nil
		}
		return 0, fmt.Errorf("budget get %s: %w", key, err)
	}

	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("budget get %s: parse %q: %w", key, data, err)
	}
	return n, nil
}

func (s *Store) ttlFor(key string) time.Duration {
	if strings.Contains(key, ":daily:") {
		return s.dailyTTL
	}
	return s.monthTTL
}
