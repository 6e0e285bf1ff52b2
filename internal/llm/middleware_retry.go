package llm

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// JSONReminder is appended to the prompt when a call is repeated because the
// model did not answer with JSON.
const JSONReminder = "\n\nREMINDER: Return valid JSON only with the exact requested keys."

// RetryPolicy says how many extra attempts each failure class gets.
type RetryPolicy struct {
	InvalidJSON int
	Timeout     int
	// Temporary covers provider answers such as 429 and 5xx.
	Temporary int
	Backoff   time.Duration
	// MaxWait caps a provider supplied Retry-After.
	MaxWait time.Duration
}

// DefaultRetryPolicy retries an invalid answer once and a timeout once.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		InvalidJSON: 1,
		Timeout:     1,
		Temporary:   2,
		Backoff:     300 * time.Millisecond,
		MaxWait:     10 * time.Second,
	}
}

// Retry repeats failed calls according to p. Cancellation of the caller's
// context is never retried.
func Retry(p RetryPolicy) Middleware {
	if p.Backoff <= 0 {
		p.Backoff = 300 * time.Millisecond
	}
	return func(next LLMClient) LLMClient {
		return &retrying{next: next, p: p}
	}
}

type retrying struct {
	next LLMClient
	p    RetryPolicy
}

func (r *retrying) Name() string { return r.next.Name() }
func (r *retrying) Close() error { return r.next.Close() }

func (r *retrying) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	var invalid, timeouts, temporary int
	for attempt := 0; ; attempt++ {
		raw, err := r.next.GenerateJSON(ctx, prompt, input)
		if err == nil {
			if err = checkShape(ctx, raw); err == nil {
				return raw, nil
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		wait := r.p.Backoff * time.Duration(1<<attempt)
		var se *StatusError
		switch {
		case errors.Is(err, ErrInvalidJSON):
			if invalid >= r.p.InvalidJSON {
				return nil, err
			}
			invalid++
			prompt += JSONReminder
			wait = 0
		case errors.Is(err, ErrTimeout):
			if timeouts >= r.p.Timeout {
				return nil, err
			}
			timeouts++
		case errors.As(err, &se) && se.Temporary():
			if temporary >= r.p.Temporary {
				return nil, err
			}
			temporary++
			if se.RetryAfter > 0 {
				wait = time.Duration(se.RetryAfter) * time.Second
			}
			if r.p.MaxWait > 0 && wait > r.p.MaxWait {
				wait = r.p.MaxWait
			}
		default:
			return nil, err
		}

		if wait > 0 {
			t := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				t.Stop()
				return nil, ctx.Err()
			case <-t.C:
			}
		}
	}
}
