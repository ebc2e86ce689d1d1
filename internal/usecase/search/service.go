// Package search orchestrates one search request end to end: cache lookup,
// query rewrite, ANN retrieval, scoring, ranking, cache store and session
// bookkeeping.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kailas-cloud/cinerank/internal/cache"
	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/search/request"
	"github.com/kailas-cloud/cinerank/internal/domain/search/result"
	"github.com/kailas-cloud/cinerank/internal/repository/resultcache"
	"github.com/kailas-cloud/cinerank/internal/usecase/ranking"
	"github.com/kailas-cloud/cinerank/internal/usecase/rewrite"
	"github.com/kailas-cloud/cinerank/internal/usecase/scoring"
)

// Request outcomes, used as the metrics label.
const (
	OutcomeHit      = "hit"
	OutcomeMiss     = "miss"
	OutcomeFallback = "fallback"
	OutcomeError    = "error"
	OutcomeInvalid  = "invalid"
)

// Config tunes the orchestrator.
type Config struct {
	// CandidatePoolSize is the k requested from the ANN provider. The whole
	// ranked pool is cached; responses are truncated to the request limit.
	CandidatePoolSize int
	ResultTTL         time.Duration
	RewriteEnabled    bool
	SessionCapacity   int
	WarmConcurrency   int
	WarmQueries       []string
}

// DefaultWarmQueries are searched by WarmCache when no queries are given.
var DefaultWarmQueries = []string{
	"action movies",
	"comedy films",
	"horror movies",
	"romantic comedies",
	"sci-fi adventure",
	"animated movies",
	"thriller films",
	"drama movies",
}

func (c *Config) applyDefaults() {
	if c.CandidatePoolSize <= 0 {
		c.CandidatePoolSize = 50
	}
	if c.SessionCapacity <= 0 {
		c.SessionCapacity = 1000
	}
	if c.WarmConcurrency <= 0 {
		c.WarmConcurrency = 4
	}
	if len(c.WarmQueries) == 0 {
		c.WarmQueries = DefaultWarmQueries
	}
}

// Deps are the collaborators of the orchestrator. Budget, Requests and
// Duration may be nil.
type Deps struct {
	Retriever Retriever
	Scorer    Scorer
	Ranker    Ranker
	Rewriter  Rewriter
	Learner   Learner
	Results   ResultCache
	Cache     CacheAdmin
	Budget    BudgetReporter
	Requests  *prometheus.CounterVec
	Duration  *prometheus.HistogramVec
	Logger    *zap.Logger
}

// Query is a raw search request.
type Query struct {
	Text    string
	Filters map[string]string
	Limit   int
	User    *request.UserContext
	// Ranking overrides the configured ranking strategy.
	Ranking string
	Explain bool
}

// Response is the outcome of Search. Error is set when the request was
// rejected or served by the fallback path.
type Response struct {
	Results             []candidate.Candidate
	Explanations        []ranking.Explanation
	TotalFound          int
	SearchTime          time.Duration
	CacheHit            bool
	OptimizationApplied bool
	OriginalQuery       string
	RewrittenQuery      string
	Strategy            string
	RankingStrategy     string
	SessionID           string
	Error               *domain.Failure
}

// Service is the optimization orchestrator.
type Service struct {
	deps     Deps
	cfg      Config
	sessions *sessionStore
	flight   singleflight.Group
	now      func() time.Time
	logger   *zap.Logger
}

// New creates the orchestrator. now may be nil.
func New(deps Deps, cfg Config, now func() time.Time) (*Service, error) {
	cfg.applyDefaults()
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	sessions, err := newSessionStore(cfg.SessionCapacity)
	if err != nil {
		return nil, fmt.Errorf("session store: %w", err)
	}

	return &Service{
		deps:     deps,
		cfg:      cfg,
		sessions: sessions,
		now:      now,
		logger:   logger,
	}, nil
}

// outcome is one computed (uncached) search.
type outcome struct {
	entry            resultcache.Entry
	retrievalLatency time.Duration
}

// Search runs the full pipeline. It never panics and never returns an error:
// failures are reported in Response.Error.
func (s *Service) Search(ctx context.Context, q Query) Response {
	return s.search(ctx, q, true)
}

func (s *Service) search(ctx context.Context, q Query, record bool) Response {
	start := time.Now()

	req, strategy, err := s.validate(q)
	if err != nil {
		resp := Response{OriginalQuery: q.Text, Error: domain.FailureFrom(err), SearchTime: time.Since(start)}
		s.observe(OutcomeInvalid, resp.SearchTime)
		return resp
	}

	var resp Response
	var label string
	if cached, ok := s.lookup(ctx, &req, strategy); ok {
		resp, label = s.respond(&req, strategy, cached), OutcomeHit
		resp.CacheHit = true
	} else {
		resp, label = s.miss(ctx, &req, strategy)
	}

	if q.Explain && resp.Error == nil {
		resp.Explanations = s.explain(resp.RewrittenQuery, resp.Results, req.User())
	}
	resp.SearchTime = time.Since(start)
	if record {
		resp.SessionID = s.sessions.add(s.sessionOf(&resp))
	}
	s.observe(label, resp.SearchTime)
	return resp
}

func (s *Service) validate(q Query) (request.Request, ranking.Strategy, error) {
	req, err := request.New(q.Text, q.Filters, q.Limit, q.User)
	if err != nil {
		return request.Request{}, "", err
	}

	strategy := s.deps.Ranker.Strategy()
	if q.Ranking != "" {
		strategy = ranking.Strategy(q.Ranking)
		if !strategy.IsValid() {
			return request.Request{}, "", domain.NewInputError("ranking",
				fmt.Sprintf("unknown ranking strategy %q", q.Ranking),
				"use one of: hybrid, semantic, popularity, temporal, diversity")
		}
	}
	return req, strategy, nil
}

// cacheable reports whether results for req may be shared between callers.
// Personalized rankings and non-default strategies are computed per request.
func (s *Service) cacheable(req *request.Request, strategy ranking.Strategy) bool {
	return req.User().IsEmpty() && strategy == s.deps.Ranker.Strategy()
}

func (s *Service) lookup(ctx context.Context, req *request.Request, strategy ranking.Strategy) (resultcache.Entry, bool) {
	if !s.cacheable(req, strategy) {
		return resultcache.Entry{}, false
	}
	return s.deps.Results.Get(ctx, cache.SearchKey(req.Query(), req.Filters()))
}

func (s *Service) miss(ctx context.Context, req *request.Request, strategy ranking.Strategy) (Response, string) {
	var (
		out outcome
		err error
	)
	if s.cacheable(req, strategy) {
		key := cache.SearchKey(req.Query(), req.Filters())
		var v any
		// shared by collapsed callers; each external call carries its own timeout
		v, err, _ = s.flight.Do(key, func() (any, error) {
			shared := context.WithoutCancel(ctx)
			o, err := s.compute(shared, req, strategy)
			if err != nil {
				return nil, err
			}
			s.store(shared, key, &o.entry)
			s.recordProfile(req.Query(), o)
			return o, nil
		})
		if err == nil {
			out = v.(outcome)
		}
	} else {
		out, err = s.compute(ctx, req, strategy)
		if err == nil {
			s.recordProfile(req.Query(), out)
		}
	}

	if err != nil {
		s.logger.Warn("Search pipeline failed, falling back to original query",
			zap.String("query", req.Query()), zap.Error(err))
		return s.fallback(ctx, req, strategy, err)
	}

	return s.respond(req, strategy, out.entry), OutcomeMiss
}

// recordProfile folds one computed retrieval into the query profile. Collapsed
// callers share a single observation.
func (s *Service) recordProfile(query string, out outcome) {
	successRate := 0.0
	if len(out.entry.Candidates) > 0 {
		successRate = 1.0
	}
	s.deps.Rewriter.UpdateProfile(query, out.retrievalLatency, successRate, len(out.entry.Candidates))
}

// compute runs rewrite, retrieval, scoring and ranking. Panics in any stage
// are converted into errors.
func (s *Service) compute(
	ctx context.Context, req *request.Request, strategy ranking.Strategy,
) (out outcome, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Search pipeline panicked", zap.Any("panic", r))
			err = fmt.Errorf("search pipeline panic: %v", r)
		}
	}()

	rw := s.rewrite(req.Query())

	retrieveStart := time.Now()
	hits, err := s.deps.Retriever.Retrieve(ctx, rw.Optimized, req.Expression(), s.cfg.CandidatePoolSize)
	if err != nil {
		return outcome{}, fmt.Errorf("retrieve: %w", err)
	}
	latency := time.Since(retrieveStart)

	scored := s.deps.Scorer.Score(rw.Optimized, hits)
	signals := s.deps.Learner.Signals(candidate.IDs(scored))

	ranked, err := s.deps.Ranker.RankWith(strategy, rw.Optimized, scored, signals, req.User(), 0)
	if err != nil {
		return outcome{}, fmt.Errorf("rank: %w", err)
	}

	return outcome{
		entry: resultcache.Entry{
			RewrittenQuery:      rw.Optimized,
			Strategy:            rw.Strategy,
			OptimizationApplied: rw.Applied(),
			TotalFound:          len(ranked),
			Candidates:          ranked,
		},
		retrievalLatency: latency,
	}, nil
}

// rewrite fails open: a panicking rewriter leaves the query untouched.
func (s *Service) rewrite(query string) (res rewrite.Result) {
	none := rewrite.Result{Original: query, Optimized: query, Strategy: rewrite.StrategyNone}
	if !s.cfg.RewriteEnabled {
		return none
	}
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Query rewrite panicked", zap.String("query", query), zap.Any("panic", r))
			res = none
		}
	}()
	return s.deps.Rewriter.Optimize(query)
}

func (s *Service) store(ctx context.Context, key string, e *resultcache.Entry) {
	if len(e.Candidates) == 0 {
		return
	}
	if !s.deps.Results.Put(ctx, key, e, s.cfg.ResultTTL) {
		s.logger.Debug("Search results not cached", zap.String("key", key))
	}
}

// fallback retrieves once more with the original query and returns the hits
// in semantic order, carrying the pipeline error.
func (s *Service) fallback(
	ctx context.Context, req *request.Request, strategy ranking.Strategy, cause error,
) (Response, string) {
	resp := Response{
		OriginalQuery:   req.Query(),
		RewrittenQuery:  req.Query(),
		Strategy:        rewrite.StrategyNone,
		RankingStrategy: string(strategy),
		Results:         []candidate.Candidate{},
		Error:           domain.FailureFrom(cause),
	}

	hits, err := s.deps.Retriever.Retrieve(ctx, req.Query(), req.Expression(), req.Limit())
	if err != nil {
		s.logger.Error("Fallback search failed", zap.String("query", req.Query()), zap.Error(err))
		return resp, OutcomeError
	}

	resp.Results = semanticOrder(hits, req.Limit())
	resp.TotalFound = len(hits)
	return resp, OutcomeFallback
}

func semanticOrder(hits []result.Result, limit int) []candidate.Candidate {
	cs := make([]candidate.Candidate, 0, len(hits))
	for i := range hits {
		if hits[i].ID() == "" {
			continue
		}
		c := candidate.New(hits[i].Movie(), hits[i].Similarity())
		cs = append(cs, c.WithFinal(c.SemanticScore()))
	}
	scoring.SortByFinal(cs)
	if len(cs) > limit {
		cs = cs[:limit]
	}
	for i := range cs {
		cs[i] = cs[i].WithRank(i + 1)
	}
	return cs
}

func (s *Service) respond(req *request.Request, strategy ranking.Strategy, e resultcache.Entry) Response {
	results := e.Candidates
	if len(results) > req.Limit() {
		results = results[:req.Limit()]
	}
	return Response{
		Results:             results,
		TotalFound:          e.TotalFound,
		OptimizationApplied: e.OptimizationApplied,
		OriginalQuery:       req.Query(),
		RewrittenQuery:      e.RewrittenQuery,
		Strategy:            e.Strategy,
		RankingStrategy:     string(strategy),
	}
}

func (s *Service) explain(q string, cs []candidate.Candidate, user *request.UserContext) []ranking.Explanation {
	signals := s.deps.Learner.Signals(candidate.IDs(cs))
	out := make([]ranking.Explanation, len(cs))
	for i, c := range cs {
		out[i] = s.deps.Ranker.Explain(q, c, signals[c.ID()], user)
	}
	return out
}

func (s *Service) observe(label string, d time.Duration) {
	if s.deps.Requests != nil {
		s.deps.Requests.WithLabelValues(label).Inc()
	}
	if s.deps.Duration != nil {
		s.deps.Duration.WithLabelValues(label).Observe(d.Seconds())
	}
}
