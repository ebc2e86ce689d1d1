package ann

import (
	"context"
	"testing"

	"github.com/kailas-cloud/cinerank/internal/db"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	searchKNNFn   func(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if m.searchKNNFn != nil {
		return m.searchKNNFn(ctx, q)
	}
	return &db.SearchResult{}, nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func newTestRepo(t *testing.T) (*Repo, *mockStore) {
	t.Helper()
	ms := &mockStore{}
	return New(ms, IndexConfig{Dim: 4, Algorithm: db.VectorHNSW}), ms
}

func testVector() []float32 {
	return []float32{0.1, 0.1, 0.1, 0.1}
}

func mustMatch(t *testing.T, key, value string) filter.Condition {
	t.Helper()
	c, err := filter.NewMatch(key, value)
	if err != nil {
		t.Fatalf("NewMatch: %v", err)
	}
	return c
}
