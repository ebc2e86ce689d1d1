package redis

import (
	"context"
	"fmt"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/cinerank/internal/db"
)

// HSetMulti stores multiple hashes in a single DoMulti round-trip.
func (s *Store) HSetMulti(ctx context.Context, items []db.HashSetItem) error {
	if len(items) == 0 {
		return nil
	}

	cmds := make([]rueidis.Completed, len(items))
	for i, item := range items {
		cmd := s.b().Hset().Key(item.Key).FieldValue()
		for k, v := range item.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmds[i] = cmd.Build()
	}

	results := s.client.DoMulti(ctx, cmds...)
	for i, res := range results {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpHSet, Err: fmt.Errorf("key %s: %w", items[i].Key, err)}
		}
	}
	return nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// HGetAllMulti fetches several hashes in one DoMulti round-trip. With fields
// set it issues HMGET for just those fields, which keeps large vector blobs off
// the wire. Missing keys and fields are absent from the returned maps.
func (s *Store) HGetAllMulti(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error) {
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make([]rueidis.Completed, len(keys))
	for i, key := range keys {
		if len(fields) > 0 {
			cmds[i] = s.b().Hmget().Key(key).Field(fields...).Build()
		} else {
			cmds[i] = s.b().Hgetall().Key(key).Build()
		}
	}

	results := s.client.DoMulti(ctx, cmds...)
	out := make([]map[string]string, len(results))

	for i, res := range results {
		var (
			m   map[string]string
			err error
		)
		if len(fields) > 0 {
			m, err = hmgetMap(res, fields)
		} else {
			m, err = res.AsStrMap()
		}
		if err != nil {
			op := db.OpHGetAll
			if len(fields) > 0 {
				op = db.OpHMGet
			}
			return nil, &db.Error{Op: op, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		out[i] = m
	}

	return out, nil
}

func hmgetMap(res rueidis.RedisResult, fields []string) (map[string]string, error) {
	values, err := res.ToArray()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, len(fields))
	for j, v := range values {
		if j >= len(fields) {
			break
		}
		str, err := v.ToString()
		if err != nil {
			// nil reply: field not set
			continue
		}
		m[fields[j]] = str
	}
	return m, nil
}

// Scan iterates keys matching a pattern.
func (s *Store) Scan(ctx context.Context, pattern string) ([]string, error) {
	var keys []string
	var cursor uint64

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(100).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpScan, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}

	return keys, nil
}
