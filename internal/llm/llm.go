// Package llm is the model client layer: a minimal JSON-generating client
// interface, provider implementations and middlewares for rate limiting,
// timeouts, retries, logging and hooks.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"repobrief/internal/apperr"
)

// LLMClient generates one JSON object for a prompt and its input payload.
type LLMClient interface {
	Name() string
	GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error)
	Close() error
}

var (
	// ErrInvalidJSON means the model answered with something that is not a
	// JSON object.
	ErrInvalidJSON = errors.New("llm: invalid JSON from model")
	// ErrTimeout means a single model call exceeded its deadline while the
	// caller was still waiting.
	ErrTimeout = errors.New("llm: request timed out")
)

// Phases tag calls so that hooks, logs and the fake client can tell them apart.
const (
	PhasePlanner = "planner"
	PhaseChunk   = "chunk_summary"
	PhaseFinal   = "final"
	PhaseJudge   = "judge"
)

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Provider   string
	StatusCode int
	Body       string
	RetryAfter int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d: %s", e.Provider, e.StatusCode, e.Body)
}

// Temporary reports whether repeating the call may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// AsAppError maps a failed model call to a coded error. Cancellation passes
// through unchanged.
func AsAppError(err error) error {
	var se *StatusError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, ErrTimeout):
		return apperr.Wrap(apperr.LLMTimeout, "the language model did not answer in time", err)
	case errors.Is(err, ErrInvalidJSON):
		return apperr.Wrap(apperr.LLMInvalidResponse, "the language model returned an invalid response", err)
	case errors.As(err, &se):
		return apperr.Wrap(apperr.LLMInvalidResponse, "the language model request failed", err).
			WithDetail("provider", se.Provider).WithDetail("status", se.StatusCode)
	default:
		return apperr.From(err)
	}
}
