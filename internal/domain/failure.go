package domain

import (
	"context"
	"errors"
)

// FailureKind classifies an error surfaced in a result object.
type FailureKind string

// Failure kinds.
const (
	FailureInput    FailureKind = "input"
	FailureNotFound FailureKind = "not_found"
	FailureUpstream FailureKind = "upstream"
	FailureTimeout  FailureKind = "timeout"
	FailureConfig   FailureKind = "config"
	FailureInternal FailureKind = "internal"
)

// Failure is the structured error field carried by every public result.
type Failure struct {
	Kind        FailureKind `json:"kind"`
	Message     string      `json:"message"`
	Suggestions []string    `json:"suggestions,omitempty"`
}

// FailureFrom classifies err. Returns nil for a nil error.
func FailureFrom(err error) *Failure {
	if err == nil {
		return nil
	}

	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return &Failure{Kind: FailureInput, Message: inputErr.Error(), Suggestions: inputErr.Suggestions}
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return &Failure{Kind: FailureTimeout, Message: err.Error()}
	case errors.Is(err, ErrUpstream), errors.Is(err, ErrEmbeddingProviderError),
		errors.Is(err, ErrEmbeddingQuotaExceeded):
		return &Failure{Kind: FailureUpstream, Message: err.Error()}
	case errors.Is(err, ErrInvalidConfig):
		return &Failure{Kind: FailureConfig, Message: err.Error()}
	case errors.Is(err, ErrNotFound):
		return &Failure{Kind: FailureNotFound, Message: err.Error()}
	case errors.Is(err, ErrInvalidInput):
		return &Failure{Kind: FailureInput, Message: err.Error()}
	default:
		return &Failure{Kind: FailureInternal, Message: "internal error"}
	}
}
