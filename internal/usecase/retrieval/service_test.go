package retrieval

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/movie"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
	"github.com/kailas-cloud/cinerank/internal/domain/search/result"
)

// --- Mocks ---

type mockEmbedder struct {
	vec []float32
	err error
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	if m.err != nil {
		return domain.EmbeddingResult{}, m.err
	}
	return domain.EmbeddingResult{Embedding: m.vec}, nil
}

type mockIndex struct {
	hits  []result.Result
	err   error
	block bool
	calls int
	lastK int
}

func (m *mockIndex) Search(ctx context.Context, _ []float32, _ filter.Expression, k int) ([]result.Result, error) {
	m.calls++
	m.lastK = k
	if m.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return m.hits, m.err
}

type mockCatalog struct {
	movies map[string]movie.Movie
	err    error
}

func (m *mockCatalog) Movies(_ context.Context, _ []string) (map[string]movie.Movie, error) {
	return m.movies, m.err
}

func hit(id, title string, sim float64) result.Result {
	return result.New(movie.Movie{ID: id, Title: title}, sim)
}

// --- Tests ---

func TestRetrieve_HydratesFromCatalog(t *testing.T) {
	idx := &mockIndex{hits: []result.Result{hit("1", "Halloween", 0.9), hit("2", "Airplane!", 0.8)}}
	cat := &mockCatalog{movies: map[string]movie.Movie{
		"1": {ID: "1", Title: "ignored", Overview: "A masked killer", Genres: []string{"Horror"}},
	}}
	svc := New(&mockEmbedder{vec: []float32{1, 0}}, idx, cat, Config{}, zap.NewNop())

	got, err := svc.Retrieve(context.Background(), "scary movies", filter.Expression{}, 50)
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if idx.lastK != 50 {
		t.Errorf("k = %d, want 50", idx.lastK)
	}
	if len(got) != 2 {
		t.Fatalf("got %d hits, want 2", len(got))
	}
	m := got[0].Movie()
	if m.Title != "Halloween" {
		t.Errorf("index fields must win, title = %q", m.Title)
	}
	if m.Overview != "A masked killer" || len(m.Genres) != 1 {
		t.Errorf("catalog fields not merged: %+v", m)
	}
	if got[1].Movie().Overview != "" {
		t.Error("hit without catalog record must be left as is")
	}
}

func TestRetrieve_CatalogFailureDegrades(t *testing.T) {
	idx := &mockIndex{hits: []result.Result{hit("1", "Halloween", 0.9)}}
	svc := New(&mockEmbedder{vec: []float32{1}}, idx, &mockCatalog{err: errors.New("down")}, Config{}, zap.NewNop())

	got, err := svc.Retrieve(context.Background(), "q", filter.Expression{}, 10)
	if err != nil {
		t.Fatalf("catalog failure must not fail retrieval: %v", err)
	}
	if len(got) != 1 || got[0].Movie().Title != "Halloween" {
		t.Errorf("got %+v", got)
	}
}

func TestRetrieve_EmbeddingError(t *testing.T) {
	svc := New(&mockEmbedder{err: errors.New("rate limited")}, &mockIndex{}, nil, Config{}, zap.NewNop())

	_, err := svc.Retrieve(context.Background(), "q", filter.Expression{}, 10)
	var upstream *domain.UpstreamError
	if !errors.As(err, &upstream) || upstream.Dependency != DepEmbedding {
		t.Fatalf("expected embedding upstream error, got %v", err)
	}
}

func TestRetrieve_EmptyEmbedding(t *testing.T) {
	svc := New(&mockEmbedder{}, &mockIndex{}, nil, Config{}, zap.NewNop())

	if _, err := svc.Retrieve(context.Background(), "q", filter.Expression{}, 10); !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestRetrieve_ANNTimeout(t *testing.T) {
	idx := &mockIndex{block: true}
	svc := New(&mockEmbedder{vec: []float32{1}}, idx, nil, Config{ANNTimeout: 10 * time.Millisecond}, zap.NewNop())

	start := time.Now()
	_, err := svc.Retrieve(context.Background(), "q", filter.Expression{}, 10)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if !errors.Is(err, domain.ErrUpstream) {
		t.Errorf("timeout must be an upstream error, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("ANN timeout not enforced")
	}
}

func TestRetrieve_BreakerOpensAfterFailures(t *testing.T) {
	idx := &mockIndex{err: errors.New("connection refused")}
	svc := New(&mockEmbedder{vec: []float32{1}}, idx, nil,
		Config{BreakerFailures: 3, BreakerOpenFor: time.Minute}, zap.NewNop())

	for range 3 {
		if _, err := svc.Retrieve(context.Background(), "q", filter.Expression{}, 10); err == nil {
			t.Fatal("expected error")
		}
	}
	if svc.State() != "open" {
		t.Fatalf("breaker state = %s, want open", svc.State())
	}

	_, err := svc.Retrieve(context.Background(), "q", filter.Expression{}, 10)
	if !errors.Is(err, domain.ErrUpstream) {
		t.Fatalf("open breaker must fail as upstream error, got %v", err)
	}
	if idx.calls != 3 {
		t.Errorf("index calls = %d, open breaker must fail fast", idx.calls)
	}
}
