package result

import "github.com/kailas-cloud/cinerank/internal/domain/movie"

// Result is a single ANN hit with its hydrated catalog record.
type Result struct {
	movie      movie.Movie
	similarity float64
}

// New creates an ANN result. similarity is the provider's score in [0,1].
func New(m movie.Movie, similarity float64) Result {
	return Result{movie: m, similarity: similarity}
}

// ID returns the document identifier.
func (r *Result) ID() string { return r.movie.ID }

// Similarity returns the ANN similarity.
func (r *Result) Similarity() float64 { return r.similarity }

// Movie returns the hydrated movie.
func (r *Result) Movie() movie.Movie { return r.movie }

// WithMovie returns a copy carrying m.
func (r Result) WithMovie(m movie.Movie) Result {
	r.movie = m
	return r
}
