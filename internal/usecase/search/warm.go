package search

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cinerank/internal/cache"
)

// WarmResult reports a cache warming run.
type WarmResult struct {
	Queries  int           `json:"queries"`
	Warmed   int           `json:"warmed"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
	Cache    cache.Stats   `json:"cache"`
}

// WarmCache runs the given queries (the configured popular queries when
// empty) through the pipeline so their results land in the cache. Warming
// does not create sessions.
func (s *Service) WarmCache(ctx context.Context, queries []string) WarmResult {
	if len(queries) == 0 {
		queries = s.cfg.WarmQueries
	}
	start := time.Now()

	var warmed, failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.WarmConcurrency)
	for _, q := range queries {
		g.Go(func() error {
			resp := s.search(gctx, Query{Text: q}, false)
			if resp.Error != nil {
				failed.Add(1)
				s.logger.Warn("Cache warming query failed",
					zap.String("query", q), zap.String("error", resp.Error.Message))
				return nil
			}
			warmed.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	res := WarmResult{
		Queries:  len(queries),
		Warmed:   int(warmed.Load()),
		Failed:   int(failed.Load()),
		Duration: time.Since(start),
		Cache:    s.deps.Cache.Stats(),
	}
	s.logger.Info("Cache warmed",
		zap.Int("queries", res.Queries),
		zap.Int("warmed", res.Warmed),
		zap.Int("failed", res.Failed),
		zap.Duration("duration", res.Duration),
	)
	return res
}

// ClearCaches empties both cache tiers and drops all sessions.
func (s *Service) ClearCaches(ctx context.Context) error {
	s.sessions.purge()
	if err := s.deps.Cache.Clear(ctx); err != nil {
		return fmt.Errorf("clear cache: %w", err)
	}
	s.logger.Info("Caches cleared")
	return nil
}
