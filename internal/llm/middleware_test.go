package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repobrief/internal/logging"
)

type stubClient struct {
	mu      sync.Mutex
	prompts []string
	fn      func(ctx context.Context, attempt int) (json.RawMessage, error)
}

func (s *stubClient) Name() string { return "stub" }
func (s *stubClient) Close() error { return nil }
func (s *stubClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	s.mu.Lock()
	s.prompts = append(s.prompts, prompt)
	n := len(s.prompts) - 1
	s.mu.Unlock()
	return s.fn(ctx, n)
}

func (s *stubClient) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

func fastPolicy() RetryPolicy {
	p := DefaultRetryPolicy()
	p.Backoff = time.Millisecond
	return p
}

func TestWrapOrder(t *testing.T) {
	var order []string
	mark := func(name string) Middleware {
		return func(next LLMClient) LLMClient {
			order = append(order, name)
			return next
		}
	}
	Wrap(&stubClient{}, mark("A"), mark("B"))
	assert.Equal(t, []string{"B", "A"}, order)
}

func TestRetryInvalidJSONOnceWithReminder(t *testing.T) {
	stub := &stubClient{fn: func(_ context.Context, n int) (json.RawMessage, error) {
		if n == 0 {
			return nil, ErrInvalidJSON
		}
		return json.RawMessage(`{"ok":true}`), nil
	}}
	cli := Wrap(stub, Retry(fastPolicy()))
	raw, err := cli.GenerateJSON(context.Background(), "P", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(raw))
	require.Equal(t, 2, stub.calls())
	assert.Equal(t, "P", stub.prompts[0])
	assert.True(t, strings.HasSuffix(stub.prompts[1], JSONReminder))
}

func TestRetryInvalidJSONGivesUpAfterOneRetry(t *testing.T) {
	stub := &stubClient{fn: func(context.Context, int) (json.RawMessage, error) { return nil, ErrInvalidJSON }}
	_, err := Wrap(stub, Retry(fastPolicy())).GenerateJSON(context.Background(), "P", nil)
	assert.ErrorIs(t, err, ErrInvalidJSON)
	assert.Equal(t, 2, stub.calls())
}

func TestShapeCheckCountsAsInvalidJSON(t *testing.T) {
	stub := &stubClient{fn: func(_ context.Context, n int) (json.RawMessage, error) {
		if n == 0 {
			return json.RawMessage(`{"other":1}`), nil
		}
		return json.RawMessage(`{"summary":"s"}`), nil
	}}
	ctx := WithShape(context.Background(), func(raw json.RawMessage) error {
		if !strings.Contains(string(raw), "summary") {
			return errors.New("summary missing")
		}
		return nil
	})
	raw, err := Wrap(stub, Retry(fastPolicy())).GenerateJSON(ctx, "P", nil)
	require.NoError(t, err)
	assert.JSONEq(t, `{"summary":"s"}`, string(raw))
	assert.Equal(t, 2, stub.calls())

	stub = &stubClient{fn: func(context.Context, int) (json.RawMessage, error) { return json.RawMessage(`{}`), nil }}
	_, err = Wrap(stub, Retry(fastPolicy())).GenerateJSON(ctx, "P", nil)
	assert.ErrorIs(t, err, ErrInvalidJSON)
	assert.Equal(t, 2, stub.calls())
}

func TestTimeoutIsRetriedOnce(t *testing.T) {
	stub := &stubClient{fn: func(ctx context.Context, _ int) (json.RawMessage, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	cli := Wrap(stub, Retry(fastPolicy()), Timeout(20*time.Millisecond))
	_, err := cli.GenerateJSON(context.Background(), "P", nil)
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 2, stub.calls())
}

func TestTimeoutThenSuccess(t *testing.T) {
	stub := &stubClient{fn: func(ctx context.Context, n int) (json.RawMessage, error) {
		if n == 0 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return json.RawMessage(`{}`), nil
	}}
	cli := Wrap(stub, Retry(fastPolicy()), Timeout(20*time.Millisecond))
	_, err := cli.GenerateJSON(context.Background(), "P", nil)
	assert.NoError(t, err)
}

func TestCallerCancellationIsNotRetried(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubClient{fn: func(ctx context.Context, _ int) (json.RawMessage, error) {
		cancel()
		return nil, ErrInvalidJSON
	}}
	_, err := Wrap(stub, Retry(fastPolicy()), Timeout(time.Second)).GenerateJSON(ctx, "P", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, stub.calls())
}

func TestRetryTemporaryStatus(t *testing.T) {
	stub := &stubClient{fn: func(_ context.Context, n int) (json.RawMessage, error) {
		if n < 2 {
			return nil, &StatusError{Provider: "openai", StatusCode: 503}
		}
		return json.RawMessage(`{}`), nil
	}}
	_, err := Wrap(stub, Retry(fastPolicy())).GenerateJSON(context.Background(), "P", nil)
	require.NoError(t, err)
	assert.Equal(t, 3, stub.calls())
}

func TestPermanentErrorIsNotRetried(t *testing.T) {
	boom := &StatusError{Provider: "openai", StatusCode: 400, Body: "bad request"}
	stub := &stubClient{fn: func(context.Context, int) (json.RawMessage, error) { return nil, boom }}
	_, err := Wrap(stub, Retry(fastPolicy())).GenerateJSON(context.Background(), "P", nil)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 400, se.StatusCode)
	assert.Equal(t, 1, stub.calls())
}

func TestRateLimitSpacing(t *testing.T) {
	stub := &stubClient{fn: func(context.Context, int) (json.RawMessage, error) { return json.RawMessage(`{}`), nil }}
	cli := Wrap(stub, RateLimit(2, 2))
	t.Cleanup(func() { _ = cli.Close() })

	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 2; i++ {
		_, err := cli.GenerateJSON(ctx, "p", nil)
		require.NoError(t, err)
	}
	assert.Less(t, time.Since(start), 100*time.Millisecond, "burst calls should not wait")

	start = time.Now()
	_, err := cli.GenerateJSON(ctx, "p", nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
}

func TestRateLimitHonorsContext(t *testing.T) {
	stub := &stubClient{fn: func(context.Context, int) (json.RawMessage, error) { return json.RawMessage(`{}`), nil }}
	cli := Wrap(stub, RateLimit(0.1, 1))
	t.Cleanup(func() { _ = cli.Close() })

	_, err := cli.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = cli.GenerateJSON(ctx, "p", nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, stub.calls())
}

func TestHooksSeePhase(t *testing.T) {
	var before, after []string
	hook := HookFunc{
		BeforeFunc: func(_ context.Context, phase, _ string, _ any) { before = append(before, phase) },
		AfterFunc:  func(_ context.Context, phase string, _ json.RawMessage, _ error) { after = append(after, phase) },
	}
	stub := &stubClient{fn: func(context.Context, int) (json.RawMessage, error) { return json.RawMessage(`{}`), nil }}
	cli := Wrap(stub, WithHooks(), WithLogging(nil))

	ctx := WithHook(WithPhase(context.Background(), PhasePlanner), hook)
	_, err := cli.GenerateJSON(ctx, "p", map[string]any{"a": 1})
	require.NoError(t, err)
	_, err = cli.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)

	assert.Equal(t, []string{PhasePlanner}, before)
	assert.Equal(t, []string{PhasePlanner}, after)
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, "unknown", PhaseFrom(ctx))
	assert.Equal(t, 0, MaxOutputTokensFrom(ctx))
	assert.Nil(t, HookFrom(ctx))

	ctx = WithMaxOutputTokens(WithPhase(ctx, PhaseFinal), 1000)
	assert.Equal(t, PhaseFinal, PhaseFrom(ctx))
	assert.Equal(t, 1000, MaxOutputTokensFrom(ctx))
}

func TestLoggingPrefersRequestLogger(t *testing.T) {
	var process, request bytes.Buffer
	stub := &stubClient{fn: func(context.Context, int) (json.RawMessage, error) { return json.RawMessage(`{}`), nil }}
	cli := Wrap(stub, WithLogging(logging.New(&process, "debug", "text")))

	ctx, id := logging.WithRequest(context.Background(), logging.New(&request, "debug", "text"), "")
	_, err := cli.GenerateJSON(WithPhase(ctx, PhaseFinal), "p", nil)
	require.NoError(t, err)
	assert.Empty(t, process.String())
	assert.Contains(t, request.String(), "request_id="+id)
	assert.Contains(t, request.String(), "phase="+PhaseFinal)

	_, err = cli.GenerateJSON(context.Background(), "p", nil)
	require.NoError(t, err)
	assert.Contains(t, process.String(), "llm response")
}
