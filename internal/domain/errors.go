package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound signals a missing resource.
	ErrNotFound = errors.New("not found")
	// ErrInvalidInput signals a request rejected before any component ran.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUpstream signals a failed or timed out collaborator (ANN, embedding, catalog).
	ErrUpstream = errors.New("upstream failure")
	// ErrInvalidConfig signals a configuration that cannot be used at startup.
	ErrInvalidConfig = errors.New("invalid config")
	// ErrDataContract signals candidates that break the scoring/ranking contract.
	ErrDataContract = errors.New("data contract violation")
	// ErrEmbeddingProviderError signals an embedding provider failure.
	ErrEmbeddingProviderError = errors.New("embedding provider error")
	// ErrEmbeddingQuotaExceeded signals an exhausted embedding token budget.
	ErrEmbeddingQuotaExceeded = errors.New("embedding quota exceeded")
)

// InputError describes a rejected request field and how to fix it.
type InputError struct {
	Field       string
	Reason      string
	Suggestions []string
}

func (e *InputError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidInput.Error(), e.Reason)
	}
	return fmt.Sprintf("%s: %s: %s", ErrInvalidInput.Error(), e.Field, e.Reason)
}

func (e *InputError) Unwrap() error { return ErrInvalidInput }

// NewInputError creates an input validation error.
func NewInputError(field, reason string, suggestions ...string) error {
	return &InputError{Field: field, Reason: reason, Suggestions: suggestions}
}

// UpstreamError wraps a collaborator failure with the dependency name.
type UpstreamError struct {
	Dependency string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %s: %v", ErrUpstream.Error(), e.Dependency, e.Err)
}

// Unwrap exposes both ErrUpstream and the cause, so errors.Is works for
// context.DeadlineExceeded as well.
func (e *UpstreamError) Unwrap() []error { return []error{ErrUpstream, e.Err} }

// NewUpstreamError wraps err as a failure of dependency.
func NewUpstreamError(dependency string, err error) error {
	return &UpstreamError{Dependency: dependency, Err: err}
}

// ConfigError points at a misconfigured field.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s %s", ErrInvalidConfig.Error(), e.Field, e.Reason)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }

// NewConfigError creates a configuration error.
func NewConfigError(field, reason string) error {
	return &ConfigError{Field: field, Reason: reason}
}

// JoinConfigErrors merges several config errors into one, keeping errors.Is(ErrInvalidConfig).
func JoinConfigErrors(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	if len(errs) == 1 {
		return errs[0]
	}
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(msgs, "; "))
}
