// Package ann runs approximate nearest neighbour search over the movie index.
package ann

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kailas-cloud/cinerank/internal/db"
	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/movie"
	"github.com/kailas-cloud/cinerank/internal/domain/search/filter"
	"github.com/kailas-cloud/cinerank/internal/domain/search/request"
	"github.com/kailas-cloud/cinerank/internal/domain/search/result"
)

// Index layout shared with the catalog: one hash per movie carrying both the
// record fields and its embedding.
var (
	IndexName      = domain.KeyPrefix + "movies:idx"
	DocumentPrefix = domain.KeyPrefix + "movie:"
)

// VectorField is the hash field holding the FLOAT32 embedding blob.
const VectorField = "embedding"

// returnFields are the light fields the ranker needs without a catalog round trip.
var returnFields = []string{
	movie.FieldTitle, movie.FieldGenres, movie.FieldYear,
	movie.FieldPopularity, movie.FieldRating, movie.FieldVoteCount,
}

// store is the consumer interface for ANN search (ISP).
type store interface {
	SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error)
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// IndexConfig shapes the vector field created by EnsureIndex.
type IndexConfig struct {
	Dim            int
	Algorithm      db.VectorAlgorithm
	M              int
	EFConstruction int
}

// Repo searches the movie index.
type Repo struct {
	store store
	index IndexConfig
}

// New creates an ANN repository.
func New(s store, index IndexConfig) *Repo {
	return &Repo{store: s, index: index}
}

// Search returns up to k nearest movies to vector that satisfy filters, in
// descending similarity.
func (r *Repo) Search(ctx context.Context, vector []float32, filters filter.Expression, k int) ([]result.Result, error) {
	sr, err := r.store.SearchKNN(ctx, &db.KNNQuery{
		IndexName:    IndexName,
		VectorField:  VectorField,
		Filters:      filters,
		Vector:       vector,
		K:            k,
		ReturnFields: returnFields,
	})
	if err != nil {
		return nil, fmt.Errorf("search knn %s: %w", IndexName, err)
	}
	return parseKNNResults(sr), nil
}

// EnsureIndex creates the movie index when it does not exist yet.
func (r *Repo) EnsureIndex(ctx context.Context) error {
	exists, err := r.store.IndexExists(ctx, IndexName)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	if exists {
		return nil
	}

	def, err := buildIndex(r.index)
	if err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := r.store.CreateIndex(ctx, def); err != nil && !errors.Is(err, db.ErrIndexExists) {
		return fmt.Errorf("create index: %w", err)
	}
	return nil
}

func buildIndex(cfg IndexConfig) (*db.IndexDefinition, error) {
	return db.NewIndex(IndexName).
		Prefix(DocumentPrefix).
		Text(movie.FieldTitle, movie.FieldOverview).
		Tag(movie.FieldGenres, ",").
		Tag(request.FieldLanguage, "").
		Numeric(movie.FieldYear, movie.FieldRating, movie.FieldPopularity).
		Vector(VectorField, db.VectorOptions{
			Algorithm:      cfg.Algorithm,
			Dim:            cfg.Dim,
			Distance:       db.DistanceCosine,
			M:              cfg.M,
			EFConstruction: cfg.EFConstruction,
		}).
		Build()
}

// parseKNNResults converts db.SearchResult into []result.Result.
func parseKNNResults(sr *db.SearchResult) []result.Result {
	if sr == nil || len(sr.Entries) == 0 {
		return nil
	}

	results := make([]result.Result, 0, len(sr.Entries))
	for _, entry := range sr.Entries {
		id := strings.TrimPrefix(entry.Key, DocumentPrefix)
		if id == "" {
			continue
		}
		results = append(results, result.New(movie.FromFields(id, entry.Fields), entry.Score))
	}
	return results
}
