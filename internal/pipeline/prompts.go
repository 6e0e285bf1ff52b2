package pipeline

import (
	"encoding/json"
	"errors"

	"repobrief/internal/llm"
	"repobrief/internal/llmtool"
	"repobrief/internal/types"
)

type chunkInput struct {
	Repository string `json:"repository"`
	Path       string `json:"path"`
	Part       int    `json:"part"`
	Parts      int    `json:"parts"`
	Text       string `json:"text"`
}

type chunkAnswer struct {
	Summary string `json:"summary" prompt_desc:"What this part of the file defines or configures, in at most 120 words."`
}

var chunkPrompt = llmtool.MustRender(llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose:      "Condense one part of a large repository file so it can stand in for the raw text.",
	Background:   "The file was split into parts; each part is summarized on its own and the summaries are read in order.",
	OutputFields: llmtool.MustFieldsFromStruct(chunkAnswer{}),
	Rules: []string{
		"Name the concrete functions, types, commands, settings or sections that appear in the text.",
		"Keep file paths and identifiers exactly as written.",
	},
	OutputFormat: `{"summary": "..."}`,
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetNoInvent(), llmtool.PresetUntrusted()))

type finalFile struct {
	Path       string `json:"path"`
	Content    string `json:"content"`
	Summarized bool   `json:"summarized,omitempty"`
}

type finalInput struct {
	Repository   string      `json:"repository"`
	Files        []finalFile `json:"files"`
	Technologies []string    `json:"technologies"`
	Languages    []string    `json:"languages,omitempty"`
	TopLevel     []string    `json:"top_level,omitempty"`
}

var finalPrompt = llmtool.MustRender(llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose: "Describe a software repository for a developer who has never seen it.",
	Background: "files holds a selection of repository files; some are summaries of larger files. " +
		"technologies lists names detected deterministically from manifests and file extensions. " +
		"top_level lists the entries at the repository root.",
	OutputFields: llmtool.MustFieldsFromStruct(types.Claims{}),
	Constraints: []string{
		"summary: at most 120 words, plain prose.",
		"technologies: 5 to 12 short names without versions.",
		"structure: 5 to 15 statements; wrap every path in backticks, for example `src/server.go`.",
	},
	Rules: []string{
		"Prefer names from technologies; add others only when file contents show them.",
		"Describe directories and files that appear in files or top_level; never guess paths.",
	},
	Assumptions:  []string{"If the input is thin, say less rather than speculate."},
	OutputFormat: `{"summary": "...", "technologies": ["..."], "structure": ["..."]}`,
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetNoInvent(), llmtool.PresetUntrusted(), llmtool.PresetCautious()))

// checkClaims rejects final answers with a missing or mistyped key.
func checkClaims(raw json.RawMessage) error {
	var ans struct {
		Summary      *string   `json:"summary"`
		Technologies *[]string `json:"technologies"`
		Structure    *[]string `json:"structure"`
	}
	obj, err := llm.ExtractJSON(string(raw))
	if err != nil {
		return err
	}
	if err := json.Unmarshal(obj, &ans); err != nil {
		return err
	}
	switch {
	case ans.Summary == nil:
		return errors.New("summary missing")
	case ans.Technologies == nil:
		return errors.New("technologies missing")
	case ans.Structure == nil:
		return errors.New("structure missing")
	}
	return nil
}
