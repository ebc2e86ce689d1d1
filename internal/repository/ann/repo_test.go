package ann

import (
	"context"
	"errors"
	"testing"

	"github.com/kailas-cloud/cinerank/internal/db"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
)

func TestSearch_HappyPath(t *testing.T) {
	repo, ms := newTestRepo(t)

	expr, _ := filter.NewExpression([]filter.Condition{mustMatch(t, "genres", "Horror")}, nil)

	ms.searchKNNFn = func(_ context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
		if q.IndexName != "cinerank:movies:idx" {
			t.Errorf("unexpected index: %s", q.IndexName)
		}
		if q.K != 50 || q.VectorField != "embedding" {
			t.Errorf("unexpected query: %+v", q)
		}
		if len(q.Filters.Must()) != 1 {
			t.Error("filters must be forwarded")
		}
		return &db.SearchResult{
			Total: 2,
			Entries: []db.SearchEntry{
				{
					Key:   "cinerank:movie:1",
					Score: 0.91,
					Fields: map[string]string{
						"title":        "Alien",
						"genres":       "Horror,Science Fiction",
						"year":         "1979",
						"vote_average": "8.1",
					},
				},
				{
					Key:    "cinerank:movie:2",
					Score:  0.55,
					Fields: map[string]string{"title": "Airplane!", "genres": "Comedy"},
				},
			},
		}, nil
	}

	results, err := repo.Search(context.Background(), testVector(), expr, 50)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 results, got %d", len(results))
	}

	first := results[0]
	if first.ID() != "1" || first.Similarity() != 0.91 {
		t.Errorf("first = %s %v", first.ID(), first.Similarity())
	}
	m := first.Movie()
	if m.Title != "Alien" || m.Year != 1979 || m.Rating != 8.1 || len(m.Genres) != 2 {
		t.Errorf("movie = %+v", m)
	}
}

func TestSearch_Empty(t *testing.T) {
	repo, _ := newTestRepo(t)
	results, err := repo.Search(context.Background(), testVector(), filter.Expression{}, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if results != nil {
		t.Errorf("expected nil, got %v", results)
	}
}

func TestSearch_StoreError(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.searchKNNFn = func(context.Context, *db.KNNQuery) (*db.SearchResult, error) {
		return nil, &db.Error{Op: db.OpSearch, Err: context.DeadlineExceeded}
	}

	_, err := repo.Search(context.Background(), testVector(), filter.Expression{}, 10)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected wrapped deadline error, got %v", err)
	}
}

func TestEnsureIndex_CreatesWhenMissing(t *testing.T) {
	repo, ms := newTestRepo(t)

	var created *db.IndexDefinition
	ms.createIndexFn = func(_ context.Context, def *db.IndexDefinition) error {
		created = def
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if created == nil {
		t.Fatal("expected CreateIndex call")
	}
	if created.Prefixes[0] != "cinerank:movie:" {
		t.Errorf("prefix = %v", created.Prefixes)
	}
	last := created.Fields[len(created.Fields)-1]
	if last.Type != db.IndexFieldVector || last.Vector.Dim != 4 {
		t.Errorf("vector field = %+v", last)
	}
}

func TestEnsureIndex_Existing(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.indexExistsFn = func(context.Context, string) (bool, error) { return true, nil }
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error {
		t.Error("CreateIndex must not be called for an existing index")
		return nil
	}

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestEnsureIndex_RaceIsFine(t *testing.T) {
	repo, ms := newTestRepo(t)
	ms.createIndexFn = func(context.Context, *db.IndexDefinition) error { return db.ErrIndexExists }

	if err := repo.EnsureIndex(context.Background()); err != nil {
		t.Fatalf("concurrent creation must not fail: %v", err)
	}
}

func TestEnsureIndex_InvalidDim(t *testing.T) {
	ms := &mockStore{}
	repo := New(ms, IndexConfig{})
	if err := repo.EnsureIndex(context.Background()); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}
