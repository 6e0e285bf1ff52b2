package llmtool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderSections(t *testing.T) {
	spec := StructuredPromptSpec{
		Purpose:      "Summarize repository context.",
		Background:   "Detected languages: Go.",
		OutputFormat: "JSON only.",
		Language:     "English",
		OutputFields: []PromptField{
			{Name: "summary", Type: "string", Required: true, Description: "Short summary."},
			{Name: "risks", Type: "array of string", Required: false},
		},
		Constraints: []string{"No markdown.", "  "},
		Rules:       []string{"Be concise."},
		Assumptions: []string{"If unsure, return empty arrays."},
	}
	out, err := Render(spec)
	require.NoError(t, err)

	order := []string{
		"[PURPOSE]", "[BACKGROUND]", "[OUTPUT]", "[CONSTRAINTS]", "[RULES]",
		"[ASSUMPTIONS]", "[OUTPUT_FORMAT]", "[LANGUAGE]",
	}
	last := -1
	for _, sec := range order {
		i := strings.Index(out, sec)
		require.GreaterOrEqual(t, i, 0, "missing %s", sec)
		assert.Greater(t, i, last, "%s out of order", sec)
		last = i
	}
	assert.Contains(t, out, "- summary (string, required): Short summary.")
	assert.Contains(t, out, "- risks (array of string, optional)")
	assert.NotContains(t, out, "- \n")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestRenderSkipsEmptySections(t *testing.T) {
	out, err := Render(StructuredPromptSpec{
		Purpose:      "x",
		OutputFields: []PromptField{{Name: "a", Type: "string", Required: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, "[PURPOSE]\nx\n\n[OUTPUT]\n- a (string, required)\n", out)
}

func TestRenderValidation(t *testing.T) {
	_, err := Render(StructuredPromptSpec{OutputFields: []PromptField{{Name: "a"}}})
	assert.ErrorContains(t, err, "purpose")

	_, err = Render(StructuredPromptSpec{Purpose: "x"})
	assert.ErrorContains(t, err, "output fields")

	assert.Panics(t, func() { MustRender(StructuredPromptSpec{}) })
}

func TestApplyPresetsPrepends(t *testing.T) {
	spec := StructuredPromptSpec{
		Constraints: []string{"spec-constraint"},
		Rules:       []string{"spec-rule"},
	}
	applied := ApplyPresets(spec, PromptPreset{Constraints: []string{"preset-constraint"}, Rules: []string{"preset-rule"}})
	assert.Equal(t, []string{"preset-constraint", "spec-constraint"}, applied.Constraints)
	assert.Equal(t, []string{"preset-rule", "spec-rule"}, applied.Rules)

	applied = ApplyPresets(spec, PresetStrictJSON(), PresetUntrusted())
	assert.Len(t, applied.Constraints, 4)
	assert.Contains(t, applied.Rules[0], "untrusted")
}

func TestFieldsFromStruct(t *testing.T) {
	type answer struct {
		Summary string   `json:"summary" prompt_desc:"What it does."`
		Tags    []string `json:"tags,omitempty" prompt:"optional"`
		Score   float64  `json:"score" prompt_type:"number between 0 and 1"`
		Count   int
		Hidden  string         `json:"hidden" prompt:"-"`
		Skip    string         `json:"-"`
		Meta    map[string]any `json:"meta"`
		secret  string
	}
	fields, err := FieldsFromStruct(&answer{})
	require.NoError(t, err)
	assert.Equal(t, []PromptField{
		{Name: "summary", Type: "string", Required: true, Description: "What it does."},
		{Name: "tags", Type: "array of string", Required: false},
		{Name: "score", Type: "number between 0 and 1", Required: true},
		{Name: "count", Type: "integer", Required: true},
		{Name: "meta", Type: "object", Required: true},
	}, fields)

	_, err = FieldsFromStruct(42)
	assert.Error(t, err)
	_, err = FieldsFromStruct(nil)
	assert.Error(t, err)
}
