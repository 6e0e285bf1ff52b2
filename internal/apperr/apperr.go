package apperr

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable, client-visible error code.
type Code string

const (
	InvalidGitHubURL   Code = "INVALID_GITHUB_URL"
	RepoNotFound       Code = "REPO_NOT_FOUND"
	GitHubRateLimit    Code = "GITHUB_RATE_LIMIT"
	GitHubTimeout      Code = "GITHUB_TIMEOUT"
	GitHubAPIError     Code = "GITHUB_API_ERROR"
	FileDecodeError    Code = "FILE_DECODE_ERROR"
	LLMTimeout         Code = "LLM_TIMEOUT"
	LLMInvalidResponse Code = "LLM_INVALID_RESPONSE"
	TokenOverflow      Code = "TOKEN_OVERFLOW"
	InternalError      Code = "INTERNAL_ERROR"
)

var statusByCode = map[Code]int{
	InvalidGitHubURL:   http.StatusBadRequest,
	RepoNotFound:       http.StatusNotFound,
	GitHubRateLimit:    http.StatusTooManyRequests,
	GitHubTimeout:      http.StatusGatewayTimeout,
	GitHubAPIError:     http.StatusBadGateway,
	FileDecodeError:    http.StatusUnprocessableEntity,
	LLMTimeout:         http.StatusGatewayTimeout,
	LLMInvalidResponse: http.StatusBadGateway,
	TokenOverflow:      http.StatusUnprocessableEntity,
	InternalError:      http.StatusInternalServerError,
}

// Status returns the HTTP status for a code.
func (c Code) Status() int {
	if s, ok := statusByCode[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error is a coded failure that can be rendered to clients.
type Error struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
	cause   error
}

// New creates an Error without an underlying cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message, Details: map[string]any{}}
}

// Wrap creates an Error around cause.
func Wrap(code Code, message string, cause error) *Error {
	e := New(code, message)
	e.cause = cause
	return e
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error { return e.cause }

// Status is the HTTP status of the error code.
func (e *Error) Status() int { return e.Code.Status() }

// WithDetail returns a copy of e with one more detail entry.
func (e *Error) WithDetail(key string, value any) *Error {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

// Is matches errors by code so errors.Is(err, apperr.New(code, "")) works.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf returns the code carried by err, or INTERNAL_ERROR.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return InternalError
}

// From converts any error into an *Error. Errors that carry no code become
// INTERNAL_ERROR and keep their cause for logging only.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	if errors.Is(err, context.Canceled) {
		return Wrap(InternalError, "request cancelled", err)
	}
	return Wrap(InternalError, "internal error", err)
}

// Body is the JSON shape of an error response.
type Body struct {
	Code    Code           `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details"`
}

// Envelope wraps Body under the "error" key.
type Envelope struct {
	Error Body `json:"error"`
}

// Envelope renders the client-visible body.
func (e *Error) Envelope() Envelope {
	details := e.Details
	if details == nil {
		details = map[string]any{}
	}
	return Envelope{Error: Body{Code: e.Code, Message: e.Message, Details: details}}
}
