package domain

import (
	"context"
	"errors"
	"testing"
)

type stubEmbedder struct {
	result EmbeddingResult
	err    error
	got    string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) (EmbeddingResult, error) {
	s.got = text
	return s.result, s.err
}

type stubHealthyEmbedder struct {
	stubEmbedder
	healthErr error
}

func (s *stubHealthyEmbedder) HealthCheck(_ context.Context) error { return s.healthErr }

func TestInstructionEmbedder_PrependsInstruction(t *testing.T) {
	inner := &stubEmbedder{result: EmbeddingResult{Embedding: []float32{0.1, 0.2, 0.3}}}
	emb := NewInstructionEmbedder(inner, "search_query: ")

	result, err := emb.Embed(context.Background(), "scary movies")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.got != "search_query: scary movies" {
		t.Errorf("expected prepended text, got %q", inner.got)
	}
	if len(result.Embedding) != 3 {
		t.Errorf("expected 3-element vector, got %d", len(result.Embedding))
	}
}

func TestInstructionEmbedder_ErrorPropagation(t *testing.T) {
	innerErr := errors.New("provider down")
	inner := &stubEmbedder{err: innerErr}
	emb := NewInstructionEmbedder(inner, "search_query: ")

	_, err := emb.Embed(context.Background(), "hello")
	if !errors.Is(err, innerErr) {
		t.Errorf("expected wrapped inner error, got %v", err)
	}
}

func TestInstructionEmbedder_HealthCheck(t *testing.T) {
	plain := NewInstructionEmbedder(&stubEmbedder{}, "q: ")
	if err := plain.HealthCheck(context.Background()); err != nil {
		t.Fatalf("embedder without health check should pass, got %v", err)
	}

	down := errors.New("down")
	checked := NewInstructionEmbedder(&stubHealthyEmbedder{healthErr: down}, "q: ")
	if err := checked.HealthCheck(context.Background()); !errors.Is(err, down) {
		t.Fatalf("expected health error to propagate, got %v", err)
	}
}
