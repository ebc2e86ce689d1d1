package redis

import (
	"context"
	"time"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cinerank/internal/db"
)

// Get retrieves a value by key.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	cmd := s.b().Get().Key(key).Build()
	data, err := s.do(ctx, cmd).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// SetWithTTL stores a value with an expiration (SET EX).
func (s *Store) SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	cmd := s.b().Set().Key(key).Value(rueidis.BinaryString(value)).Ex(ttl).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}

// Del deletes keys. No keys is a no-op.
func (s *Store) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	cmd := s.b().Del().Key(keys...).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// IncrBy atomically adds delta to a counter and returns the new value.
func (s *Store) IncrBy(ctx context.Context, key string, delta int64) (int64, error) {
	cmd := s.b().Incrby().Key(key).Increment(delta).Build()
	n, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpIncrBy, Err: err}
	}
	return n, nil
}

// Expire sets a key's TTL in whole seconds. With nx the TTL is only set when
// the key has none yet (EXPIRE NX).
func (s *Store) Expire(ctx context.Context, key string, ttl time.Duration, nx bool) error {
	secs := max(int64(ttl/time.Second), 1)
	var cmd rueidis.Completed
	if nx {
		cmd = s.b().Expire().Key(key).Seconds(secs).Nx().Build()
	} else {
		cmd = s.b().Expire().Key(key).Seconds(secs).Build()
	}
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpExpire, Err: err}
	}
	return nil
}
