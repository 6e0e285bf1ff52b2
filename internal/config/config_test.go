package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg, err := FromEnv(envMap(nil))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, EnvProd, cfg.Env)
	assert.Equal(t, 10, cfg.Limits.MaxSelectedFiles)
	assert.Equal(t, int64(200_000), cfg.Limits.MaxFileBytes)
	assert.Equal(t, 8_000, cfg.Limits.MaxFileTokens)
	assert.Equal(t, 2_000, cfg.Limits.ChunkTokens)
	assert.Equal(t, 100_000, cfg.Limits.SafeContext)
	assert.Equal(t, 10*time.Second, cfg.GitHub.Timeout)
	assert.Equal(t, 60*time.Second, cfg.LLM.Timeout)
	assert.Equal(t, "https://api.github.com", cfg.GitHub.BaseURL)
	assert.Equal(t, "meta-llama/Meta-Llama-3.1-8B-Instruct", cfg.LLM.Model)
	assert.False(t, cfg.JudgeEnabled())
}

func TestEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"PORT":               "9000",
		"ENVIRONMENT":        "EVAL",
		"ENABLE_JUDGE":       "1",
		"NEBIUS_MODEL":       "m1",
		"SUMMARIZER_MODEL":   "m2",
		"GITHUB_TOKEN":       " tok ",
		"GITHUB_API_BASE":    "http://127.0.0.1:1234/",
		"MAX_SELECTED_FILES": "4",
		"LLM_RPS":            "2.5",
	}))
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Port)
	assert.Equal(t, EnvEval, cfg.Env)
	assert.True(t, cfg.JudgeEnabled())
	assert.Equal(t, "m2", cfg.LLM.Model)
	assert.Equal(t, "tok", cfg.GitHub.Token)
	assert.Equal(t, "http://127.0.0.1:1234", cfg.GitHub.BaseURL)
	assert.Equal(t, 4, cfg.Limits.MaxSelectedFiles)
	assert.InDelta(t, 2.5, cfg.LLM.RPS, 1e-9)
}

func TestGeminiProvider(t *testing.T) {
	cfg, err := FromEnv(envMap(map[string]string{
		"LLM_PROVIDER":   "gemini",
		"GOOGLE_API_KEY": "k",
	}))
	require.NoError(t, err)
	assert.Equal(t, "k", cfg.LLM.APIKey)
	assert.Equal(t, "gemini-2.5-flash", cfg.LLM.Model)
}

func TestInvalidValues(t *testing.T) {
	cases := []map[string]string{
		{"ENVIRONMENT": "staging"},
		{"LLM_PROVIDER": "carrier-pigeon"},
		{"MAX_SELECTED_FILES": "ten"},
		{"CHUNK_TOKENS": "9000"},
		{"MAX_FILE_BYTES": "-"},
	}
	for _, env := range cases {
		_, err := FromEnv(envMap(env))
		assert.Error(t, err, "%v", env)
	}
}
