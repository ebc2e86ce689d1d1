package resultcache

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/cinerank/internal/domain/candidate"
	"github.com/kailas-cloud/cinerank/internal/domain/movie"
)

type mapTier map[string][]byte

func (m mapTier) Get(_ context.Context, key string) ([]byte, bool) {
	v, ok := m[key]
	return v, ok
}

func (m mapTier) Put(_ context.Context, key string, value []byte, _ time.Duration) bool {
	m[key] = value
	return true
}

func TestStore_PutGet(t *testing.T) {
	mt := mapTier{}
	s := New(mt, zap.NewNop())

	alien := movie.Movie{
		ID: "1", Title: "Alien", Genres: []string{"Horror", "Science Fiction"}, Year: 1979,
		Popularity: 80, Rating: 8.1, VoteCount: 12000, Extra: map[string]string{"director": "Ridley Scott"},
	}
	in := &Entry{
		RewrittenQuery:      "scary movies horror",
		Strategy:            "expansion",
		OptimizationApplied: true,
		TotalFound:          2,
		Candidates: []candidate.Candidate{
			candidate.Reconstruct(alien, candidate.Scores{Semantic: 0.9, Lexical: 0.4, Metadata: 0.3, Final: 0.74}, 1),
		},
	}

	if !s.Put(context.Background(), "sr:k", in, 0) {
		t.Fatal("put failed")
	}
	out, ok := s.Get(context.Background(), "sr:k")
	if !ok {
		t.Fatal("expected hit")
	}

	if out.RewrittenQuery != in.RewrittenQuery || out.Strategy != in.Strategy || !out.OptimizationApplied {
		t.Errorf("entry header = %+v", out)
	}
	if len(out.Candidates) != 1 {
		t.Fatalf("candidates = %d", len(out.Candidates))
	}
	c := out.Candidates[0]
	if c.ID() != "1" || c.Rank() != 1 || c.FinalScore() != 0.74 || c.SemanticScore() != 0.9 {
		t.Errorf("candidate = %+v", c)
	}
	if y, ok := c.Year(); !ok || y != 1979 {
		t.Errorf("year = %d %v", y, ok)
	}
	if c.RawMetadata()["director"] != "Ridley Scott" {
		t.Error("extra metadata lost")
	}
}

func TestStore_GarbageIsMiss(t *testing.T) {
	mt := mapTier{"sr:k": []byte("{not json")}
	if _, ok := New(mt, zap.NewNop()).Get(context.Background(), "sr:k"); ok {
		t.Fatal("undecodable entry must be a miss")
	}
}

func TestStore_OldVersionIsMiss(t *testing.T) {
	mt := mapTier{"sr:k": []byte(`{"v":0,"candidates":[]}`)}
	if _, ok := New(mt, zap.NewNop()).Get(context.Background(), "sr:k"); ok {
		t.Fatal("entry from another format version must be a miss")
	}
}
