// Package catalog reads and writes movie records stored as Redis hashes.
package catalog

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/cache"
	"github.com/kailas-cloud/cinerank/internal/db"
	"github.com/kailas-cloud/cinerank/internal/domain/movie"
	"github.com/kailas-cloud/cinerank/internal/repository/ann"
)

// detailFields are fetched with HMGET so the embedding blob stays on the server.
var detailFields = []string{
	movie.FieldTitle, movie.FieldOverview, movie.FieldGenres, movie.FieldYear, movie.FieldReleaseDate,
	movie.FieldPopularity, movie.FieldRating, movie.FieldVoteCount,
	"original_language", "director", "cast", "tagline",
}

// store is the consumer interface for the catalog (ISP).
type store interface {
	HGetAllMulti(ctx context.Context, keys []string, fields ...string) ([]map[string]string, error)
	HSetMulti(ctx context.Context, items []db.HashSetItem) error
}

// tier is the md: details cache.
type tier interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) bool
}

// Record is a movie with its embedding, as written by Upsert.
type Record struct {
	Movie  movie.Movie
	Vector []float32
}

// Repo serves movie details, cached in the tier under md: keys.
type Repo struct {
	store  store
	tier   tier
	ttl    time.Duration
	logger *zap.Logger
}

// New creates a catalog repository. ttl is the details cache TTL.
func New(s store, t tier, ttl time.Duration, logger *zap.Logger) *Repo {
	return &Repo{store: s, tier: t, ttl: ttl, logger: logger}
}

// Movies returns the records for ids. Unknown ids are absent from the map.
func (r *Repo) Movies(ctx context.Context, ids []string) (map[string]movie.Movie, error) {
	out := make(map[string]movie.Movie, len(ids))
	var missing []string

	for _, id := range ids {
		if m, ok := r.cached(ctx, id); ok {
			out[id] = m
			continue
		}
		missing = append(missing, id)
	}
	if len(missing) == 0 {
		return out, nil
	}

	keys := make([]string, len(missing))
	for i, id := range missing {
		keys[i] = ann.DocumentPrefix + id
	}

	rows, err := r.store.HGetAllMulti(ctx, keys, detailFields...)
	if err != nil {
		return nil, fmt.Errorf("get movies: %w", err)
	}

	for i, fields := range rows {
		if len(fields) == 0 {
			continue
		}
		m := movie.FromFields(missing[i], fields)
		out[m.ID] = m
		r.putCache(ctx, m)
	}
	return out, nil
}

// Upsert writes records as hashes with their embeddings so the ANN index picks them up.
func (r *Repo) Upsert(ctx context.Context, records []Record) error {
	items := make([]db.HashSetItem, len(records))
	for i, rec := range records {
		if rec.Movie.ID == "" {
			return fmt.Errorf("record %d: id is required", i)
		}
		fields := rec.Movie.Fields()
		fields[ann.VectorField] = vectorToBytes(rec.Vector)
		items[i] = db.HashSetItem{Key: ann.DocumentPrefix + rec.Movie.ID, Fields: fields}
	}
	if err := r.store.HSetMulti(ctx, items); err != nil {
		return fmt.Errorf("upsert movies: %w", err)
	}
	return nil
}

func (r *Repo) cached(ctx context.Context, id string) (movie.Movie, bool) {
	data, ok := r.tier.Get(ctx, cache.MovieKey(id))
	if !ok {
		return movie.Movie{}, false
	}
	var fields map[string]string
	if err := json.Unmarshal(data, &fields); err != nil {
		r.logger.Warn("Failed to decode cached movie", zap.String("id", id), zap.Error(err))
		return movie.Movie{}, false
	}
	return movie.FromFields(id, fields), true
}

func (r *Repo) putCache(ctx context.Context, m movie.Movie) {
	data, err := json.Marshal(m.Fields())
	if err != nil {
		return
	}
	r.tier.Put(ctx, cache.MovieKey(m.ID), data, r.ttl)
}

// vectorToBytes serializes []float32 to a binary string (4 bytes per float, little-endian).
func vectorToBytes(v []float32) string {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return string(buf)
}
