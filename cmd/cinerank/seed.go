package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/kailas-cloud/cinerank/internal/domain"
	"github.com/kailas-cloud/cinerank/internal/domain/movie"
	"github.com/kailas-cloud/cinerank/internal/repository/catalog"
)

const (
	seedBatchSize   = 100
	seedConcurrency = 4
)

type catalogWriter interface {
	Upsert(ctx context.Context, records []catalog.Record) error
}

// movieID accepts both "603" and 603.
type movieID string

func (id *movieID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = movieID(s)
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return fmt.Errorf("movie id %s: not a string or number", data)
	}
	*id = movieID(data)
	return nil
}

// seedMovie is one entry of the seed file. Movies without an embedding are
// embedded from their title and overview.
type seedMovie struct {
	ID          movieID           `json:"id"`
	Title       string            `json:"title"`
	Overview    string            `json:"overview"`
	Genres      []string          `json:"genres"`
	Year        int               `json:"year"`
	ReleaseDate string            `json:"release_date"`
	Popularity  float64           `json:"popularity"`
	Rating      float64           `json:"vote_average"`
	VoteCount   int               `json:"vote_count"`
	Extra       map[string]string `json:"extra"`
	Embedding   []float32         `json:"embedding"`
}

func (s *seedMovie) movie() movie.Movie {
	m := movie.Movie{
		ID:         string(s.ID),
		Title:      s.Title,
		Overview:   s.Overview,
		Genres:     s.Genres,
		Year:       s.Year,
		Popularity: s.Popularity,
		Rating:     s.Rating,
		VoteCount:  s.VoteCount,
		Extra:      s.Extra,
	}
	if !m.HasYear() && len(s.ReleaseDate) >= 4 {
		m.Year, _ = strconv.Atoi(s.ReleaseDate[:4])
	}
	return m
}

func (s *seedMovie) text() string {
	return strings.TrimSpace(s.Title + ". " + s.Overview)
}

// seedCatalog loads a JSON array of movies from path and upserts them into
// the catalog. Returns the number of movies written.
func seedCatalog(
	ctx context.Context, path string, w catalogWriter, embedder domain.Embedder, logger *zap.Logger,
) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}
	var entries []seedMovie
	if err := json.Unmarshal(data, &entries); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}
	return seedMovies(ctx, entries, w, embedder, logger)
}

func seedMovies(
	ctx context.Context, entries []seedMovie, w catalogWriter, embedder domain.Embedder, logger *zap.Logger,
) (int, error) {
	for i := range entries {
		if entries[i].ID == "" {
			return 0, fmt.Errorf("seed entry %d: id is required", i)
		}
	}
	records := make([]catalog.Record, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)
	for i := range entries {
		e := &entries[i]
		records[i] = catalog.Record{Movie: e.movie(), Vector: e.Embedding}
		if len(e.Embedding) > 0 {
			continue
		}
		g.Go(func() error {
			res, err := embedder.Embed(gctx, e.text())
			if err != nil {
				return fmt.Errorf("embed movie %s: %w", e.ID, err)
			}
			records[i].Vector = res.Embedding
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}

	for start := 0; start < len(records); start += seedBatchSize {
		end := min(start+seedBatchSize, len(records))
		if err := w.Upsert(ctx, records[start:end]); err != nil {
			return start, fmt.Errorf("upsert movies %d-%d: %w", start, end, err)
		}
		logger.Debug("Seeded catalog batch", zap.Int("from", start), zap.Int("to", end))
	}
	return len(records), nil
}
