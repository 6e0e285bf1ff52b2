package judge

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repobrief/internal/apperr"
	"repobrief/internal/llm"
	"repobrief/internal/types"
)

var sample = types.Response{
	Summary:      "A CLI.",
	Technologies: []string{"Go"},
	Structure:    []string{"`main.go` starts the CLI."},
}

func TestEvaluateNormalizes(t *testing.T) {
	fake := llm.NewFakeClient().On(llm.PhaseJudge, llm.FakeResponse{
		Raw: `{"overall": 1.4, "hallucination_flags": ["  ", "invented Redis"], "scores": {"faithful": -1, "completeness": 0.5, "structure": 0.9}, "notes": " ok "}`,
	})
	v, err := New(fake, 600).Evaluate(context.Background(), "https://github.com/octo/demo", sample, []string{"Go"})
	require.NoError(t, err)
	assert.Equal(t, 1.0, v.Overall)
	assert.Equal(t, []string{"invented Redis"}, v.HallucinationFlags)
	assert.Equal(t, Scores{Faithful: 0, Completeness: 0.5, Structure: 0.9}, v.Scores)
	assert.Equal(t, "ok", v.Notes)
	assert.False(t, v.Passed())

	calls := fake.Calls(llm.PhaseJudge)
	require.Len(t, calls, 1)
	assert.Contains(t, string(calls[0].Input), "main.go")
}

func TestPassed(t *testing.T) {
	assert.True(t, Verdict{Overall: 0.75, HallucinationFlags: []string{}}.Passed())
	assert.False(t, Verdict{Overall: 0.74}.Passed())
	assert.False(t, Verdict{Overall: 0.9, HallucinationFlags: []string{"x"}}.Passed())
}

func TestEvaluateDefaultFakeAnswerPasses(t *testing.T) {
	v, err := New(llm.NewFakeClient(), 0).Evaluate(context.Background(), "u", sample, nil)
	require.NoError(t, err)
	assert.True(t, v.Passed())
}

func TestEvaluateRejectsBadShapes(t *testing.T) {
	cases := map[string]string{
		"extra key":   `{"overall": 1, "hallucination_flags": [], "scores": {}, "notes": "", "extra": 1}`,
		"missing key": `{"overall": 1, "hallucination_flags": [], "scores": {}}`,
		"bad overall": `{"overall": "high", "hallucination_flags": [], "scores": {}, "notes": ""}`,
		"bad flags":   `{"overall": 1, "hallucination_flags": "none", "scores": {}, "notes": ""}`,
		"null scores": `{"overall": 1, "hallucination_flags": [], "scores": null, "notes": ""}`,
		"not json":    `great summary`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			fake := llm.NewFakeClient().On(llm.PhaseJudge, llm.FakeResponse{Raw: raw})
			client := llm.Wrap(fake, llm.Retry(llm.RetryPolicy{InvalidJSON: 1}))
			_, err := New(client, 0).Evaluate(context.Background(), "u", sample, nil)
			assert.Equal(t, apperr.LLMInvalidResponse, apperr.CodeOf(err))
			assert.Len(t, fake.Calls(llm.PhaseJudge), 2)
		})
	}
}

func TestEvaluateTimeout(t *testing.T) {
	fake := llm.NewFakeClient().On(llm.PhaseJudge, llm.FakeResponse{Err: llm.ErrTimeout})
	_, err := New(fake, 0).Evaluate(context.Background(), "u", sample, nil)
	assert.Equal(t, apperr.LLMTimeout, apperr.CodeOf(err))
}
