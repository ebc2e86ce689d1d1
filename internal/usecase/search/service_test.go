package search

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/cache"
	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/movie"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
	"github.com/kailas-cloud/cinerank/internal/domain/search/request"
	"github.com/kailas-cloud/cinerank/internal/domain/search/result"
	"github.com/kailas-cloud/cinerank/internal/repository/resultcache"
	"github.com/kailas-cloud/cinerank/internal/usecase/feedback"
	"github.com/kailas-cloud/cinerank/internal/usecase/ranking"
	"github.com/kailas-cloud/cinerank/internal/usecase/rewrite"
	"github.com/kailas-cloud/cinerank/internal/usecase/scoring"
)

// --- Mocks ---

type mockRetriever struct {
	mu      sync.Mutex
	hits    []result.Result
	delay   time.Duration
	failFor map[string]error
	err     error
	calls   atomic.Int64
	queries []string
	ks      []int
	release chan struct{}
	entered chan struct{}
}

func (m *mockRetriever) Retrieve(_ context.Context, q string, _ filter.Expression, k int) ([]result.Result, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.queries = append(m.queries, q)
	m.ks = append(m.ks, k)
	m.mu.Unlock()

	if m.entered != nil {
		m.entered <- struct{}{}
	}
	if m.release != nil {
		<-m.release
	}
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	if err, ok := m.failFor[q]; ok {
		return nil, err
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.hits, nil
}

type panicRanker struct{ *ranking.Ranker }

func (panicRanker) RankWith(
	ranking.Strategy, string, []candidate.Candidate, map[string]float64, *request.UserContext, int,
) ([]candidate.Candidate, error) {
	panic("index out of range")
}

type errRanker struct{ *ranking.Ranker }

func (errRanker) RankWith(
	ranking.Strategy, string, []candidate.Candidate, map[string]float64, *request.UserContext, int,
) ([]candidate.Candidate, error) {
	return nil, domain.ErrDataContract
}

type countingRewriter struct {
	*rewrite.Rewriter
	updates atomic.Int64
}

func (c *countingRewriter) UpdateProfile(query string, latency time.Duration, successRate float64, resultCount int) {
	c.updates.Add(1)
	c.Rewriter.UpdateProfile(query, latency, successRate, resultCount)
}

var testNow = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }

type testEngine struct {
	svc     *Service
	tier    *cache.Tier
	learner *feedback.Learner
}

func newTestEngine(t *testing.T, r Retriever, override func(*Deps)) *testEngine {
	t.Helper()
	logger := zap.NewNop()
	tier := cache.NewTier(cache.NewLRU(100, 1<<20, 0, testNow), nil, cache.Options{}, nil, logger)
	learner := feedback.New(feedback.Config{}, testNow, nil, logger)

	deps := Deps{
		Retriever: r,
		Scorer:    scoring.New(scoring.DefaultConfig(), testNow),
		Ranker:    ranking.New(ranking.DefaultConfig(), testNow),
		Rewriter:  rewrite.New(rewrite.DefaultWeights(), nil),
		Learner:   learner,
		Results:   resultcache.New(tier, logger),
		Cache:     tier,
		Logger:    logger,
	}
	if override != nil {
		override(&deps)
	}

	svc, err := New(deps, Config{RewriteEnabled: true}, testNow)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return &testEngine{svc: svc, tier: tier, learner: learner}
}

func horrorAndComedy() []result.Result {
	return []result.Result{
		result.New(movie.Movie{ID: "1", Title: "Halloween", Genres: []string{"Horror"}, Year: 1978}, 0.9),
		result.New(movie.Movie{ID: "2", Title: "Airplane!", Genres: []string{"Comedy"}, Year: 1980}, 0.85),
	}
}

func pool(n int) []result.Result {
	hits := make([]result.Result, n)
	for i := range n {
		id := string(rune('a' + i))
		hits[i] = result.New(movie.Movie{ID: id, Title: "Movie " + id, Genres: []string{"Drama"}}, 0.9-float64(i)*0.05)
	}
	return hits
}

// --- Tests ---

func TestSearch_ScaryMoviesEndToEnd(t *testing.T) {
	r := &mockRetriever{hits: horrorAndComedy(), delay: 20 * time.Millisecond}
	e := newTestEngine(t, r, nil)
	ctx := context.Background()

	first := e.svc.Search(ctx, Query{Text: "scary movies"})
	if first.Error != nil {
		t.Fatalf("unexpected error: %+v", first.Error)
	}
	if first.CacheHit {
		t.Fatal("first call must be a cache miss")
	}
	if first.RewrittenQuery != "scary movies horror" || first.Strategy != rewrite.StrategyExpansion {
		t.Errorf("rewrite = %q (%s)", first.RewrittenQuery, first.Strategy)
	}
	if !first.OptimizationApplied {
		t.Error("expected optimization to be applied")
	}
	if len(first.Results) != 2 || first.Results[0].ID() != "1" {
		t.Fatalf("expected horror movie first, got %v", candidate.IDs(first.Results))
	}
	if first.Results[0].Rank() != 1 || first.Results[1].Rank() != 2 {
		t.Error("ranks must be 1..n")
	}

	second := e.svc.Search(ctx, Query{Text: "scary movies"})
	if !second.CacheHit {
		t.Fatal("identical second call must be a cache hit")
	}
	if second.SearchTime >= first.SearchTime {
		t.Errorf("cache hit took %v, miss took %v", second.SearchTime, first.SearchTime)
	}
	if got := candidate.IDs(second.Results); len(got) != 2 || got[0] != "1" {
		t.Errorf("cached order = %v", got)
	}
	if r.calls.Load() != 1 {
		t.Errorf("retriever calls = %d, want 1", r.calls.Load())
	}
	if first.SessionID == "" || first.SessionID == second.SessionID {
		t.Error("every search gets its own session")
	}
}

func TestSearch_RequestsFullPool(t *testing.T) {
	r := &mockRetriever{hits: pool(5)}
	e := newTestEngine(t, r, nil)
	ctx := context.Background()

	resp := e.svc.Search(ctx, Query{Text: "quiet dramas", Limit: 2})
	if len(resp.Results) != 2 || resp.TotalFound != 5 {
		t.Fatalf("results=%d total=%d, want 2/5", len(resp.Results), resp.TotalFound)
	}
	if r.ks[0] != 50 {
		t.Errorf("k = %d, want the candidate pool size", r.ks[0])
	}

	wider := e.svc.Search(ctx, Query{Text: "quiet dramas", Limit: 4})
	if !wider.CacheHit || len(wider.Results) != 4 {
		t.Errorf("cached pool must serve larger limits: hit=%v n=%d", wider.CacheHit, len(wider.Results))
	}
}

func TestSearch_InvalidInput(t *testing.T) {
	r := &mockRetriever{hits: horrorAndComedy()}
	e := newTestEngine(t, r, nil)

	tests := []struct {
		name string
		q    Query
	}{
		{"empty", Query{Text: "   "}},
		{"bad filter", Query{Text: "x movies", Filters: map[string]string{"colour": "red"}}},
		{"bad ranking", Query{Text: "x movies", Ranking: "random"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := e.svc.Search(context.Background(), tt.q)
			if resp.Error == nil || resp.Error.Kind != domain.FailureInput {
				t.Fatalf("expected input failure, got %+v", resp.Error)
			}
			if resp.SessionID != "" {
				t.Error("rejected requests do not create sessions")
			}
		})
	}
	if r.calls.Load() != 0 {
		t.Error("no component may run for invalid input")
	}
}

func TestSearch_FallbackUsesOriginalQuery(t *testing.T) {
	r := &mockRetriever{
		hits:    horrorAndComedy(),
		failFor: map[string]error{"scary movies horror": domain.NewUpstreamError("ann", errors.New("boom"))},
	}
	e := newTestEngine(t, r, nil)

	resp := e.svc.Search(context.Background(), Query{Text: "scary movies", Limit: 1})
	if resp.Error == nil || resp.Error.Kind != domain.FailureUpstream {
		t.Fatalf("expected upstream failure, got %+v", resp.Error)
	}
	if len(resp.Results) != 1 || resp.Results[0].ID() != "1" {
		t.Fatalf("fallback must return hits in semantic order, got %v", candidate.IDs(resp.Results))
	}
	if resp.Results[0].FinalScore() != 0.9 {
		t.Errorf("fallback final score = %v, want the similarity", resp.Results[0].FinalScore())
	}
	if r.queries[1] != "scary movies" || r.ks[1] != 1 {
		t.Errorf("fallback call = %q k=%d", r.queries[1], r.ks[1])
	}

	again := e.svc.Search(context.Background(), Query{Text: "scary movies", Limit: 1})
	if again.CacheHit {
		t.Error("fallback results must not be cached")
	}
}

func TestSearch_FallbackAlsoFails(t *testing.T) {
	r := &mockRetriever{err: domain.NewUpstreamError("ann", context.DeadlineExceeded)}
	e := newTestEngine(t, r, nil)

	resp := e.svc.Search(context.Background(), Query{Text: "scary movies"})
	if resp.Error == nil || resp.Error.Kind != domain.FailureTimeout {
		t.Fatalf("expected timeout failure, got %+v", resp.Error)
	}
	if resp.Results == nil || len(resp.Results) != 0 {
		t.Errorf("expected empty results, got %v", resp.Results)
	}
	if r.calls.Load() != 2 {
		t.Errorf("retriever calls = %d, want one attempt plus one fallback", r.calls.Load())
	}
}

func TestSearch_RankerFailuresFallBack(t *testing.T) {
	tests := []struct {
		name   string
		ranker Ranker
		kind   domain.FailureKind
	}{
		{"panic", panicRanker{ranking.New(ranking.DefaultConfig(), testNow)}, domain.FailureInternal},
		{"data contract", errRanker{ranking.New(ranking.DefaultConfig(), testNow)}, domain.FailureInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &mockRetriever{hits: horrorAndComedy()}
			e := newTestEngine(t, r, func(d *Deps) { d.Ranker = tt.ranker })

			resp := e.svc.Search(context.Background(), Query{Text: "scary movies"})
			if resp.Error == nil || resp.Error.Kind != tt.kind {
				t.Fatalf("expected %s failure, got %+v", tt.kind, resp.Error)
			}
			if len(resp.Results) != 2 {
				t.Errorf("fallback results = %d, want 2", len(resp.Results))
			}
		})
	}
}

func TestSearch_PersonalizedBypassesCache(t *testing.T) {
	r := &mockRetriever{hits: horrorAndComedy()}
	e := newTestEngine(t, r, nil)
	user := &request.UserContext{PreferredGenres: []string{"Comedy"}}

	for range 2 {
		resp := e.svc.Search(context.Background(), Query{Text: "scary movies", User: user})
		if resp.CacheHit {
			t.Fatal("personalized requests must not be served from cache")
		}
	}
	if r.calls.Load() != 2 {
		t.Errorf("retriever calls = %d, want 2", r.calls.Load())
	}

	// nor do they populate it
	if resp := e.svc.Search(context.Background(), Query{Text: "scary movies"}); resp.CacheHit {
		t.Error("personalized results leaked into the shared cache")
	}
}

func TestSearch_RankingOverride(t *testing.T) {
	r := &mockRetriever{hits: horrorAndComedy()}
	e := newTestEngine(t, r, nil)

	resp := e.svc.Search(context.Background(), Query{Text: "scary movies", Ranking: "popularity"})
	if resp.Error != nil {
		t.Fatalf("unexpected error: %+v", resp.Error)
	}
	if resp.RankingStrategy != "popularity" {
		t.Errorf("ranking strategy = %q", resp.RankingStrategy)
	}
	if again := e.svc.Search(context.Background(), Query{Text: "scary movies", Ranking: "popularity"}); again.CacheHit {
		t.Error("non-default strategies are not cached")
	}
}

func TestSearch_CollapsesConcurrentMisses(t *testing.T) {
	r := &mockRetriever{
		hits:    horrorAndComedy(),
		entered: make(chan struct{}, 16),
		release: make(chan struct{}),
	}
	rw := &countingRewriter{Rewriter: rewrite.New(rewrite.DefaultWeights(), nil)}
	e := newTestEngine(t, r, func(d *Deps) { d.Rewriter = rw })

	const n = 5
	var wg sync.WaitGroup
	responses := make([]Response, n)
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			responses[i] = e.svc.Search(context.Background(), Query{Text: "scary movies"})
		}()
	}

	<-r.entered
	time.Sleep(20 * time.Millisecond)
	close(r.release)
	wg.Wait()

	if r.calls.Load() != 1 {
		t.Fatalf("retriever calls = %d, want 1", r.calls.Load())
	}
	for i, resp := range responses {
		if resp.Error != nil || len(resp.Results) != 2 {
			t.Errorf("response %d: %+v", i, resp.Error)
		}
	}
	if got := rw.updates.Load(); got != 1 {
		t.Errorf("profile updates = %d, want 1 for one retrieval", got)
	}
}

func TestSearch_Explain(t *testing.T) {
	e := newTestEngine(t, &mockRetriever{hits: horrorAndComedy()}, nil)

	resp := e.svc.Search(context.Background(), Query{Text: "scary movies", Explain: true})
	if len(resp.Explanations) != len(resp.Results) {
		t.Fatalf("explanations = %d, results = %d", len(resp.Explanations), len(resp.Results))
	}
	if resp.Explanations[0].DocumentID != resp.Results[0].ID() {
		t.Error("explanations must follow result order")
	}
}

func TestRecordInteraction(t *testing.T) {
	e := newTestEngine(t, &mockRetriever{hits: horrorAndComedy()}, nil)
	ctx := context.Background()

	resp := e.svc.Search(ctx, Query{Text: "scary movies"})
	res := e.svc.RecordInteraction(ctx, resp.SessionID, "2", "like")
	if res.Error != nil {
		t.Fatalf("unexpected error: %+v", res.Error)
	}
	if res.Signal != 0.5 || e.learner.Signal("2") != 0.5 {
		t.Errorf("signal = %v, want 0.5", res.Signal)
	}
	if h := e.learner.History("2"); len(h) != 1 || h[0].Query != "scary movies" {
		t.Errorf("history = %+v", h)
	}

	sess, err := e.svc.Session(resp.SessionID)
	if err != nil {
		t.Fatalf("Session: %v", err)
	}
	if len(sess.Interactions) != 1 || sess.Interactions[0].DocumentID != "2" {
		t.Errorf("session interactions = %+v", sess.Interactions)
	}

	tests := []struct {
		name      string
		session   string
		doc, kind string
		want      domain.FailureKind
	}{
		{"unknown session", "nope", "1", "click", domain.FailureNotFound},
		{"unknown type", resp.SessionID, "1", "poke", domain.FailureInput},
		{"empty document", resp.SessionID, " ", "click", domain.FailureInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := e.svc.RecordInteraction(ctx, tt.session, tt.doc, tt.kind)
			if res.Error == nil || res.Error.Kind != tt.want {
				t.Errorf("error = %+v, want %s", res.Error, tt.want)
			}
		})
	}
	if e.learner.Stats().TotalInteractions != 1 {
		t.Error("rejected interactions must not reach the learner")
	}
}

func TestSession_NotFound(t *testing.T) {
	e := newTestEngine(t, &mockRetriever{}, nil)
	if _, err := e.svc.Session("missing"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStats(t *testing.T) {
	e := newTestEngine(t, &mockRetriever{hits: horrorAndComedy()}, nil)
	ctx := context.Background()

	e.svc.Search(ctx, Query{Text: "scary movies"})
	last := e.svc.Search(ctx, Query{Text: "scary movies"})

	st := e.svc.Stats()
	if st.Overview.TotalSessions != 2 {
		t.Errorf("sessions = %d, want 2", st.Overview.TotalSessions)
	}
	if st.Overview.CacheHitRate != 0.5 {
		t.Errorf("cache hit rate = %v, want 0.5", st.Overview.CacheHitRate)
	}
	if st.Overview.OptimizationRate != 1 {
		t.Errorf("optimization rate = %v, want 1", st.Overview.OptimizationRate)
	}
	if len(st.RecentSessions) != 2 || st.RecentSessions[0].ID != last.SessionID {
		t.Errorf("recent sessions must be newest first: %+v", st.RecentSessions)
	}
	if st.Cache.Hits != 1 {
		t.Errorf("cache hits = %d, want 1", st.Cache.Hits)
	}
	if st.QueryOptimization.TotalOptimizations != 1 {
		t.Errorf("optimizations = %d, want 1 (cache hits skip the rewriter)", st.QueryOptimization.TotalOptimizations)
	}
	if st.Ranking.Strategy != "hybrid" {
		t.Errorf("ranking strategy = %q", st.Ranking.Strategy)
	}
}

func TestRecommendations(t *testing.T) {
	e := newTestEngine(t, &mockRetriever{hits: horrorAndComedy()}, nil)

	empty := e.svc.Recommendations()
	if len(empty.Recommendations) != 0 || len(empty.ActionsTaken) != 0 {
		t.Errorf("no traffic, no advice: %+v", empty)
	}

	// one miss: L1 hit rate 0
	e.svc.Search(context.Background(), Query{Text: "scary movies"})
	tuning := e.svc.Recommendations()
	if len(tuning.Recommendations) == 0 {
		t.Fatal("expected a cache size recommendation")
	}
	if tuning.TotalSessions != 1 {
		t.Errorf("sessions = %d", tuning.TotalSessions)
	}
}

func TestWarmCache(t *testing.T) {
	r := &mockRetriever{hits: horrorAndComedy()}
	e := newTestEngine(t, r, nil)
	ctx := context.Background()

	res := e.svc.WarmCache(ctx, nil)
	if res.Queries != len(DefaultWarmQueries) || res.Warmed != res.Queries || res.Failed != 0 {
		t.Fatalf("warm result = %+v", res)
	}
	if e.svc.Stats().Overview.TotalSessions != 0 {
		t.Error("warming must not create sessions")
	}

	if resp := e.svc.Search(ctx, Query{Text: "horror movies"}); !resp.CacheHit {
		t.Error("warmed query must be a cache hit")
	}
}

func TestWarmCache_CountsFailures(t *testing.T) {
	r := &mockRetriever{err: errors.New("down")}
	e := newTestEngine(t, r, nil)

	res := e.svc.WarmCache(context.Background(), []string{"action movies", "comedy films"})
	if res.Failed != 2 || res.Warmed != 0 {
		t.Errorf("warm result = %+v", res)
	}
}

func TestClearCaches(t *testing.T) {
	e := newTestEngine(t, &mockRetriever{hits: horrorAndComedy()}, nil)
	ctx := context.Background()

	e.svc.Search(ctx, Query{Text: "scary movies"})
	if err := e.svc.ClearCaches(ctx); err != nil {
		t.Fatalf("ClearCaches: %v", err)
	}
	if e.svc.Stats().Overview.TotalSessions != 0 {
		t.Error("sessions must be dropped")
	}
	if resp := e.svc.Search(ctx, Query{Text: "scary movies"}); resp.CacheHit {
		t.Error("cache must be empty after clearing")
	}
}
