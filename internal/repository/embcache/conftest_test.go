package embcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain"
)

type mockEmbedder struct {
	result domain.EmbeddingResult
	err    error
	calls  int
}

func (m *mockEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	m.calls++
	return m.result, m.err
}

// mockTier implements the consumer interface for tests.
type mockTier struct {
	data   map[string][]byte
	reject bool
	puts   int
}

func (m *mockTier) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m.data[key]
	return v, ok
}

func (m *mockTier) Put(_ context.Context, key string, value []byte, _ time.Duration) bool {
	m.puts++
	if m.reject {
		return false
	}
	m.data[key] = value
	return true
}

func newTestCachedEmbedder(t *testing.T, inner *mockEmbedder) (*CachedEmbedder, *mockTier) {
	t.Helper()
	mt := &mockTier{data: map[string][]byte{}}
	return New(inner, mt, "text-embedding-3-small", 0, nil, zap.NewNop()), mt
}
