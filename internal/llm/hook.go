package llm

import (
	"context"
	"encoding/json"
	"fmt"
)

// PromptHook observes model calls. Implementations must not block.
type PromptHook interface {
	Before(ctx context.Context, phase, prompt string, input any)
	After(ctx context.Context, phase string, raw json.RawMessage, err error)
}

type ctxKeyHook struct{}
type ctxKeyPhase struct{}
type ctxKeyMaxTokens struct{}
type ctxKeyShape struct{}

// WithHook attaches a PromptHook for the calls made with ctx.
func WithHook(ctx context.Context, hook PromptHook) context.Context {
	return context.WithValue(ctx, ctxKeyHook{}, hook)
}

// WithPhase tags calls made with ctx.
func WithPhase(ctx context.Context, phase string) context.Context {
	return context.WithValue(ctx, ctxKeyPhase{}, phase)
}

// WithMaxOutputTokens caps the completion length of calls made with ctx.
func WithMaxOutputTokens(ctx context.Context, n int) context.Context {
	return context.WithValue(ctx, ctxKeyMaxTokens{}, n)
}

// ShapeCheck validates a decoded answer beyond JSON syntax.
type ShapeCheck func(raw json.RawMessage) error

// WithShape makes the retry middleware treat answers rejected by check as
// invalid JSON.
func WithShape(ctx context.Context, check ShapeCheck) context.Context {
	return context.WithValue(ctx, ctxKeyShape{}, check)
}

func checkShape(ctx context.Context, raw json.RawMessage) error {
	check, ok := ctx.Value(ctxKeyShape{}).(ShapeCheck)
	if !ok || check == nil {
		return nil
	}
	if err := check(raw); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	return nil
}

// HookFrom returns the hook stored in the context.
func HookFrom(ctx context.Context) PromptHook {
	if h, ok := ctx.Value(ctxKeyHook{}).(PromptHook); ok {
		return h
	}
	return nil
}

// PhaseFrom returns the phase string stored in the context.
func PhaseFrom(ctx context.Context) string {
	if s, ok := ctx.Value(ctxKeyPhase{}).(string); ok && s != "" {
		return s
	}
	return "unknown"
}

// MaxOutputTokensFrom returns the completion cap, or 0 for the provider
// default.
func MaxOutputTokensFrom(ctx context.Context) int {
	if n, ok := ctx.Value(ctxKeyMaxTokens{}).(int); ok && n > 0 {
		return n
	}
	return 0
}

// HookFunc adapts a pair of functions to PromptHook. Nil fields are skipped.
type HookFunc struct {
	BeforeFunc func(ctx context.Context, phase, prompt string, input any)
	AfterFunc  func(ctx context.Context, phase string, raw json.RawMessage, err error)
}

func (h HookFunc) Before(ctx context.Context, phase, prompt string, input any) {
	if h.BeforeFunc != nil {
		h.BeforeFunc(ctx, phase, prompt, input)
	}
}

func (h HookFunc) After(ctx context.Context, phase string, raw json.RawMessage, err error) {
	if h.AfterFunc != nil {
		h.AfterFunc(ctx, phase, raw, err)
	}
}
