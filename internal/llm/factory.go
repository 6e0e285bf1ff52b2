package llm

import (
	"context"
	"fmt"
	"log/slog"

	"repobrief/internal/config"
)

// New builds the provider client for model and wraps it with the standard
// middleware stack: hooks, logging, retry, rate limit and per-call timeout.
func New(ctx context.Context, cfg config.LLMConfig, model string, logger *slog.Logger) (LLMClient, error) {
	var inner LLMClient
	switch cfg.Provider {
	case config.ProviderOpenAI:
		inner = NewOpenAIClient(nil, cfg.BaseURL, cfg.APIKey, model)
	case config.ProviderGemini:
		g, err := NewGeminiClient(ctx, cfg.APIKey, model)
		if err != nil {
			return nil, err
		}
		inner = g
	case config.ProviderFake:
		inner = NewFakeClient()
	default:
		return nil, fmt.Errorf("llm: unknown provider %q", cfg.Provider)
	}
	return Wrap(inner,
		WithHooks(),
		WithLogging(logger),
		Retry(DefaultRetryPolicy()),
		RateLimit(cfg.RPS, cfg.Burst),
		Timeout(cfg.Timeout),
	), nil
}
