package result

import (
	"testing"

	"github.com/kailas-cloud/cinerank/internal/domain/movie"
)

func TestNew(t *testing.T) {
	r := New(movie.Movie{ID: "603", Title: "The Matrix"}, 0.91)

	if r.ID() != "603" {
		t.Errorf("ID() = %q", r.ID())
	}
	if r.Similarity() != 0.91 {
		t.Errorf("Similarity() = %f", r.Similarity())
	}
	if r.Movie().Title != "The Matrix" {
		t.Errorf("Movie() = %+v", r.Movie())
	}
}

func TestWithMovie(t *testing.T) {
	r := New(movie.Movie{ID: "603"}, 0.5)
	hydrated := r.WithMovie(movie.Movie{ID: "603", Title: "The Matrix"})

	if r.Movie().Title != "" {
		t.Error("WithMovie must not mutate the receiver")
	}
	if hydrated.Movie().Title != "The Matrix" || hydrated.Similarity() != 0.5 {
		t.Errorf("unexpected hydrated result: %+v", hydrated.Movie())
	}
}
