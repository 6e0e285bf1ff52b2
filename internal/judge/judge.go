// Package judge grades a generated summary with a second model. It only runs
// in eval mode.
package judge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"repobrief/internal/llm"
	"repobrief/internal/llmtool"
	"repobrief/internal/types"
)

// PassThreshold is the lowest overall score that passes.
const PassThreshold = 0.75

// Scores are the per-aspect grades, each in [0, 1].
type Scores struct {
	Faithful     float64 `json:"faithful"`
	Completeness float64 `json:"completeness"`
	Structure    float64 `json:"structure"`
}

// Verdict is a normalized judge answer.
type Verdict struct {
	Overall            float64  `json:"overall" prompt_type:"number from 0.0 to 1.0"`
	HallucinationFlags []string `json:"hallucination_flags" prompt_desc:"Short descriptions of unsupported claims; empty when there are none."`
	Scores             Scores   `json:"scores" prompt_type:"object with numbers faithful, completeness, structure (0.0 to 1.0)"`
	Notes              string   `json:"notes" prompt_desc:"One or two sentences."`
}

// Passed reports whether the summary is good enough: a high overall score
// and no hallucination flags.
func (v Verdict) Passed() bool {
	return v.Overall >= PassThreshold && len(v.HallucinationFlags) == 0
}

var judgePrompt = llmtool.MustRender(llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:      "Grade a repository summary for faithfulness and quality.",
	Background:   "response is the summary under test. evidence lists technologies detected deterministically in the repository.",
	OutputFields: llmtool.MustFieldsFromStruct(Verdict{}),
	Rules: []string{
		"Penalize claims not clearly grounded in the provided response data or evidence.",
		"Penalize missing major components implied by the provided structure.",
		"Prefer conservative grading over optimistic grading.",
	},
	OutputFormat: `{"overall": 0.0, "hallucination_flags": [], "scores": {"faithful": 0.0, "completeness": 0.0, "structure": 0.0}, "notes": "..."}`,
	Language:     "English",
}, llmtool.PresetStrictJSON()))

type judgeInput struct {
	GitHubURL string         `json:"github_url"`
	Response  types.Response `json:"response"`
	Evidence  []string       `json:"evidence,omitempty"`
}

// Judge grades summaries with one model.
type Judge struct {
	client    llm.LLMClient
	maxTokens int
}

// New returns a Judge calling client with the given completion cap.
func New(client llm.LLMClient, maxOutputTokens int) *Judge {
	return &Judge{client: client, maxTokens: maxOutputTokens}
}

// Evaluate grades resp. Errors are coded the same way as summarization
// errors.
func (j *Judge) Evaluate(ctx context.Context, githubURL string, resp types.Response, evidence []string) (Verdict, error) {
	ctx = llm.WithPhase(ctx, llm.PhaseJudge)
	if j.maxTokens > 0 {
		ctx = llm.WithMaxOutputTokens(ctx, j.maxTokens)
	}
	ctx = llm.WithShape(ctx, checkVerdict)
	raw, err := j.client.GenerateJSON(ctx, judgePrompt, judgeInput{GitHubURL: githubURL, Response: resp, Evidence: evidence})
	if err != nil {
		return Verdict{}, llm.AsAppError(err)
	}
	if err := checkVerdict(raw); err != nil {
		return Verdict{}, llm.AsAppError(fmt.Errorf("%w: %v", llm.ErrInvalidJSON, err))
	}
	v, err := llm.Decode[Verdict](raw)
	if err != nil {
		return Verdict{}, llm.AsAppError(err)
	}
	return normalize(v), nil
}

var verdictKeys = []string{"hallucination_flags", "notes", "overall", "scores"}

// checkVerdict requires exactly the verdict keys with usable types.
func checkVerdict(raw json.RawMessage) error {
	obj, err := llm.ExtractJSON(string(raw))
	if err != nil {
		return err
	}
	var m map[string]json.RawMessage
	if err := json.Unmarshal(obj, &m); err != nil {
		return err
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if strings.Join(keys, ",") != strings.Join(verdictKeys, ",") {
		return fmt.Errorf("unexpected keys %v", keys)
	}
	var (
		overall float64
		flags   []string
		scores  map[string]float64
	)
	if err := json.Unmarshal(m["overall"], &overall); err != nil {
		return errors.New("overall is not a number")
	}
	if err := json.Unmarshal(m["hallucination_flags"], &flags); err != nil || flags == nil {
		return errors.New("hallucination_flags is not a list of strings")
	}
	if err := json.Unmarshal(m["scores"], &scores); err != nil || scores == nil {
		return errors.New("scores is not an object of numbers")
	}
	return nil
}

func normalize(v Verdict) Verdict {
	v.Overall = clamp(v.Overall)
	v.Scores = Scores{
		Faithful:     clamp(v.Scores.Faithful),
		Completeness: clamp(v.Scores.Completeness),
		Structure:    clamp(v.Scores.Structure),
	}
	flags := make([]string, 0, len(v.HallucinationFlags))
	for _, f := range v.HallucinationFlags {
		if f = strings.TrimSpace(f); f != "" {
			flags = append(flags, f)
		}
	}
	v.HallucinationFlags = flags
	v.Notes = strings.TrimSpace(v.Notes)
	return v
}

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
