package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Port        string
	Env         string
	LogLevel    string
	LogFormat   string
	EnableJudge bool
	GitHub      GitHubConfig
	LLM         LLMConfig
	Limits      Limits
}

type GitHubConfig struct {
	BaseURL     string
	Token       string
	Timeout     time.Duration
	MaxAttempts int
	BackoffBase time.Duration
	Concurrency int
}

type LLMConfig struct {
	// Provider is one of "openai", "gemini" or "fake".
	Provider    string
	BaseURL     string
	APIKey      string
	Model       string
	EvalModel   string
	Timeout     time.Duration
	Concurrency int
	RPS         float64
	Burst       int

	PlannerMaxTokens int
	ChunkMaxTokens   int
	FinalMaxTokens   int
	JudgeMaxTokens   int
}

// Limits are the selection and budget ceilings applied to every request.
type Limits struct {
	MaxSelectedFiles  int
	MaxFileBytes      int64
	MaxFileTokens     int
	ChunkTokens       int
	SafeContext       int
	PlannerListTokens int
	CharsPerToken     int
	MaxManifestFiles  int
	ManifestMaxDepth  int
}

const (
	EnvProd = "prod"
	EnvTest = "test"
	EnvEval = "eval"

	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderFake   = "fake"
)

// Default returns the built-in configuration with no environment applied.
func Default() Config {
	return Config{
		Port:      ":8080",
		Env:       EnvProd,
		LogLevel:  "info",
		LogFormat: "text",
		GitHub: GitHubConfig{
			BaseURL:     "https://api.github.com",
			Timeout:     10 * time.Second,
			MaxAttempts: 3,
			BackoffBase: time.Second,
			Concurrency: 5,
		},
		LLM: LLMConfig{
			Provider:         ProviderOpenAI,
			BaseURL:          "https://api.tokenfactory.nebius.com/v1/",
			Model:            "meta-llama/Meta-Llama-3.1-8B-Instruct",
			EvalModel:        "Meta/Llama-3.3-70B-Instruct",
			Timeout:          60 * time.Second,
			Concurrency:      3,
			PlannerMaxTokens: 500,
			ChunkMaxTokens:   700,
			FinalMaxTokens:   1000,
			JudgeMaxTokens:   600,
		},
		Limits: DefaultLimits(),
	}
}

// DefaultLimits returns the standard request limits.
func DefaultLimits() Limits {
	return Limits{
		MaxSelectedFiles:  10,
		MaxFileBytes:      200_000,
		MaxFileTokens:     8_000,
		ChunkTokens:       2_000,
		SafeContext:       100_000,
		PlannerListTokens: 35_000,
		CharsPerToken:     4,
		MaxManifestFiles:  12,
		ManifestMaxDepth:  2,
	}
}

// Load reads .env (when present) and the process environment on top of
// Default. The returned Config is treated as immutable by callers.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from an arbitrary lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	get := func(key string) string { return strings.TrimSpace(getenv(key)) }
	cfg := Default()

	if p := get("PORT"); p != "" {
		if strings.HasPrefix(p, ":") {
			cfg.Port = p
		} else {
			cfg.Port = ":" + p
		}
	}
	cfg.Env = strings.ToLower(firstNonEmpty(get("ENVIRONMENT"), cfg.Env))
	cfg.LogLevel = firstNonEmpty(get("LOG_LEVEL"), cfg.LogLevel)
	cfg.LogFormat = firstNonEmpty(get("LOG_FORMAT"), cfg.LogFormat)
	cfg.EnableJudge = parseBool(get("ENABLE_JUDGE"))

	cfg.GitHub.Token = get("GITHUB_TOKEN")
	cfg.GitHub.BaseURL = strings.TrimRight(firstNonEmpty(get("GITHUB_API_BASE"), cfg.GitHub.BaseURL), "/")

	cfg.LLM.Provider = strings.ToLower(firstNonEmpty(get("LLM_PROVIDER"), cfg.LLM.Provider))
	switch cfg.LLM.Provider {
	case ProviderGemini:
		cfg.LLM.APIKey = firstNonEmpty(get("GEMINI_API_KEY"), get("GOOGLE_API_KEY"))
		cfg.LLM.Model = firstNonEmpty(get("SUMMARIZER_MODEL"), get("GEMINI_MODEL"), "gemini-2.5-flash")
		cfg.LLM.EvalModel = firstNonEmpty(get("EVAL_MODEL"), cfg.LLM.Model)
	default:
		cfg.LLM.BaseURL = firstNonEmpty(get("NEBIUS_BASE_URL"), cfg.LLM.BaseURL)
		cfg.LLM.APIKey = get("NEBIUS_API_KEY")
		cfg.LLM.Model = firstNonEmpty(get("SUMMARIZER_MODEL"), get("NEBIUS_MODEL"), cfg.LLM.Model)
		cfg.LLM.EvalModel = firstNonEmpty(get("EVAL_MODEL"), cfg.LLM.EvalModel)
	}

	var err error
	if cfg.LLM.RPS, err = parseFloat(get("LLM_RPS"), 0); err != nil {
		return Config{}, fmt.Errorf("config: LLM_RPS: %w", err)
	}
	if cfg.LLM.Burst, err = parseInt(get("LLM_BURST"), 0); err != nil {
		return Config{}, fmt.Errorf("config: LLM_BURST: %w", err)
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MAX_SELECTED_FILES", &cfg.Limits.MaxSelectedFiles},
		{"MAX_FILE_TOKENS", &cfg.Limits.MaxFileTokens},
		{"CHUNK_TOKENS", &cfg.Limits.ChunkTokens},
		{"SAFE_CONTEXT", &cfg.Limits.SafeContext},
		{"CONCURRENCY_GITHUB", &cfg.GitHub.Concurrency},
		{"CONCURRENCY_LLM", &cfg.LLM.Concurrency},
	}
	for _, it := range ints {
		if *it.dst, err = parseInt(get(it.key), *it.dst); err != nil {
			return Config{}, fmt.Errorf("config: %s: %w", it.key, err)
		}
	}
	if v := get("MAX_FILE_BYTES"); v != "" {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			return Config{}, fmt.Errorf("config: MAX_FILE_BYTES: %w", perr)
		}
		cfg.Limits.MaxFileBytes = n
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects configurations the pipeline cannot honour.
func (c Config) Validate() error {
	switch c.Env {
	case EnvProd, EnvTest, EnvEval:
	default:
		return fmt.Errorf("config: ENVIRONMENT must be prod, test or eval, got %q", c.Env)
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini, ProviderFake:
	default:
		return fmt.Errorf("config: unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	return c.Limits.Validate()
}

// Validate checks the limits for internal consistency.
func (l Limits) Validate() error {
	switch {
	case l.MaxSelectedFiles < 1:
		return fmt.Errorf("config: MAX_SELECTED_FILES must be positive")
	case l.MaxFileBytes < 1:
		return fmt.Errorf("config: MAX_FILE_BYTES must be positive")
	case l.CharsPerToken < 1:
		return fmt.Errorf("config: chars per token must be positive")
	case l.ChunkTokens < 1:
		return fmt.Errorf("config: CHUNK_TOKENS must be positive")
	case l.ChunkTokens > l.MaxFileTokens:
		return fmt.Errorf("config: CHUNK_TOKENS (%d) exceeds MAX_FILE_TOKENS (%d)", l.ChunkTokens, l.MaxFileTokens)
	case l.SafeContext < l.MaxFileTokens:
		return fmt.Errorf("config: SAFE_CONTEXT (%d) is below MAX_FILE_TOKENS (%d)", l.SafeContext, l.MaxFileTokens)
	}
	return nil
}

// JudgeEnabled reports whether the evaluation judge may run.
func (c Config) JudgeEnabled() bool {
	return c.Env == EnvEval && c.EnableJudge
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func parseInt(v string, def int) (int, error) {
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}

func parseFloat(v string, def float64) (float64, error) {
	if v == "" {
		return def, nil
	}
	return strconv.ParseFloat(v, 64)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
