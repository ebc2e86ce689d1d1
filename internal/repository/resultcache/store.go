// Package resultcache stores ranked result lists in the cache tier.
package resultcache

import (
	"context"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
)

// tier is the consumer interface for the result cache (ISP).
type tier interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) bool
}

// Entry is one cached search outcome: the full ranked pool plus the rewrite
// that produced it. Callers truncate Candidates to their limit.
type Entry struct {
	RewrittenQuery      string
	Strategy            string
	OptimizationApplied bool
	TotalFound          int
	Candidates          []candidate.Candidate
}

// Store encodes entries with go-json and keeps them in the tier.
type Store struct {
	tier   tier
	logger *zap.Logger
}

// New creates a result cache over t.
func New(t tier, logger *zap.Logger) *Store {
	return &Store{tier: t, logger: logger}
}

// Get returns the entry cached under key. Undecodable or stale-format entries are misses.
func (s *Store) Get(ctx context.Context, key string) (Entry, bool) {
	data, ok := s.tier.Get(ctx, key)
	if !ok {
		return Entry{}, false
	}

	var dto entryDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		s.logger.Warn("Failed to decode cached results", zap.String("key", key), zap.Error(err))
		return Entry{}, false
	}
	if dto.Version != entryVersion {
		return Entry{}, false
	}
	return fromDTO(&dto), true
}

// Put stores e under key. Returns false when encoding fails or the tier rejects it.
func (s *Store) Put(ctx context.Context, key string, e *Entry, ttl time.Duration) bool {
	data, err := json.Marshal(toDTO(e))
	if err != nil {
		s.logger.Warn("Failed to encode results for cache", zap.String("key", key), zap.Error(err))
		return false
	}
	return s.tier.Put(ctx, key, data, ttl)
}
