package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestInputError_Is(t *testing.T) {
	err := fmt.Errorf("search: %w", NewInputError("query", "too short", "add a genre"))
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatal("expected ErrInvalidInput")
	}
	var ie *InputError
	if !errors.As(err, &ie) {
		t.Fatal("expected *InputError")
	}
	if ie.Field != "query" || len(ie.Suggestions) != 1 {
		t.Errorf("unexpected input error: %+v", ie)
	}
}

func TestUpstreamError_UnwrapsBoth(t *testing.T) {
	err := NewUpstreamError("ann", context.DeadlineExceeded)
	if !errors.Is(err, ErrUpstream) {
		t.Error("expected ErrUpstream")
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Error("expected context.DeadlineExceeded")
	}
}

func TestFailureFrom(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want FailureKind
	}{
		{"input", NewInputError("limit", "must be positive"), FailureInput},
		{"timeout", NewUpstreamError("ann", context.DeadlineExceeded), FailureTimeout},
		{"upstream", NewUpstreamError("ann", errors.New("connection refused")), FailureUpstream},
		{"embedding", fmt.Errorf("embed: %w", ErrEmbeddingProviderError), FailureUpstream},
		{"quota", fmt.Errorf("budget check: %w", ErrEmbeddingQuotaExceeded), FailureUpstream},
		{"config", NewConfigError("scoring.weights", "must not all be zero"), FailureConfig},
		{"not found", fmt.Errorf("session abc: %w", ErrNotFound), FailureNotFound},
		{"internal", errors.New("boom"), FailureInternal},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := FailureFrom(tc.err)
			if f == nil {
				t.Fatal("expected failure")
			}
			if f.Kind != tc.want {
				t.Errorf("kind = %q, want %q", f.Kind, tc.want)
			}
		})
	}

	if FailureFrom(nil) != nil {
		t.Error("nil error must produce nil failure")
	}
	if msg := FailureFrom(errors.New("secret dsn")).Message; msg != "internal error" {
		t.Errorf("internal errors must not leak details, got %q", msg)
	}
}

func TestJoinConfigErrors(t *testing.T) {
	if JoinConfigErrors(nil) != nil {
		t.Fatal("expected nil for no errors")
	}
	err := JoinConfigErrors([]error{
		NewConfigError("a", "bad"),
		NewConfigError("b", "worse"),
	})
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("expected ErrInvalidConfig, got %v", err)
	}
}
