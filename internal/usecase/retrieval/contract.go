package retrieval

import (
	"context"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/movie"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
	"github.com/kailas-cloud/cinerank/internal/domain/search/result"
)

// Embedder vectorizes query text.
type Embedder interface {
	Embed(ctx context.Context, text string) (domain.EmbeddingResult, error)
}

// Index runs approximate nearest neighbour search.
type Index interface {
	Search(ctx context.Context, vector []float32, filters filter.Expression, k int) ([]result.Result, error)
}

// Catalog hydrates ANN hits with full movie records.
type Catalog interface {
	Movies(ctx context.Context, ids []string) (map[string]movie.Movie, error)
}
