// Package retrieval is the boundary to the external ANN provider: it embeds
// the query, runs KNN behind a circuit breaker and hydrates hits from the catalog.
package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
	"github.com/kailas-cloud/cinerank/internal/domain/search/result"
)

// Dependency names reported in upstream errors.
const (
	DepEmbedding = "embedding"
	DepANN       = "ann"
)

// Config tunes timeouts and the ANN circuit breaker.
type Config struct {
	EmbedTimeout    time.Duration
	ANNTimeout      time.Duration
	CatalogTimeout  time.Duration
	BreakerFailures uint32
	BreakerOpenFor  time.Duration
}

func (c *Config) applyDefaults() {
	if c.EmbedTimeout <= 0 {
		c.EmbedTimeout = 2 * time.Second
	}
	if c.ANNTimeout <= 0 {
		c.ANNTimeout = time.Second
	}
	if c.CatalogTimeout <= 0 {
		c.CatalogTimeout = 500 * time.Millisecond
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = 5
	}
	if c.BreakerOpenFor <= 0 {
		c.BreakerOpenFor = 30 * time.Second
	}
}

// Service retrieves raw candidates for a query.
type Service struct {
	embed   Embedder
	index   Index
	catalog Catalog
	cfg     Config
	breaker *gobreaker.CircuitBreaker[[]result.Result]
	logger  *zap.Logger
}

// New creates a retrieval service. catalog may be nil, in which case hits
// carry only the fields returned by the index.
func New(embed Embedder, index Index, catalog Catalog, cfg Config, logger *zap.Logger) *Service {
	cfg.applyDefaults()
	s := &Service{embed: embed, index: index, catalog: catalog, cfg: cfg, logger: logger}

	s.breaker = gobreaker.NewCircuitBreaker[[]result.Result](gobreaker.Settings{
		Name:    DepANN,
		Timeout: cfg.BreakerOpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// a caller hanging up says nothing about the index
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return s
}

// Retrieve returns up to k hits for query in descending similarity.
// Embedding and ANN failures are *domain.UpstreamError; a failed catalog
// lookup only degrades hydration.
func (s *Service) Retrieve(ctx context.Context, query string, filters filter.Expression, k int) ([]result.Result, error) {
	vector, err := s.vectorize(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.breaker.Execute(func() ([]result.Result, error) {
		annCtx, cancel := context.WithTimeout(ctx, s.cfg.ANNTimeout)
		defer cancel()
		return s.index.Search(annCtx, vector, filters, k)
	})
	if err != nil {
		return nil, domain.NewUpstreamError(DepANN, err)
	}

	return s.hydrate(ctx, hits), nil
}

// State reports the ANN circuit breaker state.
func (s *Service) State() string { return s.breaker.State().String() }

func (s *Service) vectorize(ctx context.Context, query string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.EmbedTimeout)
	defer cancel()

	res, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, domain.NewUpstreamError(DepEmbedding, err)
	}
	if len(res.Embedding) == 0 {
		return nil, domain.NewUpstreamError(DepEmbedding, fmt.Errorf("empty embedding"))
	}
	return res.Embedding, nil
}

func (s *Service) hydrate(ctx context.Context, hits []result.Result) []result.Result {
	if s.catalog == nil || len(hits) == 0 {
		return hits
	}

	ids := make([]string, len(hits))
	for i := range hits {
		ids[i] = hits[i].ID()
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.CatalogTimeout)
	defer cancel()

	movies, err := s.catalog.Movies(ctx, ids)
	if err != nil {
		s.logger.Warn("Catalog lookup failed, using index fields", zap.Int("hits", len(hits)), zap.Error(err))
		return hits
	}

	out := make([]result.Result, len(hits))
	for i, h := range hits {
		if m, ok := movies[h.ID()]; ok {
			out[i] = h.WithMovie(h.Movie().Merge(m))
			continue
		}
		out[i] = h
	}
	return out
}
