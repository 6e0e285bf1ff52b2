// Package llmtool renders sectioned instruction prompts for JSON-answering
// model calls.
package llmtool

import (
	"errors"
	"fmt"
	"strings"
)

// PromptField is one key of the expected JSON answer.
type PromptField struct {
	Name        string
	Type        string
	Required    bool
	Description string
}

// StructuredPromptSpec holds the sections of an instruction prompt. Empty
// sections are omitted when rendered.
type StructuredPromptSpec struct {
	Purpose      string
	Background   string
	OutputFields []PromptField
	Constraints  []string
	Rules        []string
	Assumptions  []string
	OutputFormat string
	Language     string
}

// Render returns the prompt text for spec. The call input travels separately,
// so the prompt only describes the task and the answer shape.
func Render(spec StructuredPromptSpec) (string, error) {
	switch {
	case strings.TrimSpace(spec.Purpose) == "":
		return "", errors.New("llmtool: purpose is empty")
	case len(spec.OutputFields) == 0:
		return "", errors.New("llmtool: output fields are empty")
	}

	sections := []struct{ title, body string }{
		{"PURPOSE", spec.Purpose},
		{"BACKGROUND", spec.Background},
		{"OUTPUT", fieldLines(spec.OutputFields)},
		{"CONSTRAINTS", bullets(spec.Constraints)},
		{"RULES", bullets(spec.Rules)},
		{"ASSUMPTIONS", bullets(spec.Assumptions)},
		{"OUTPUT_FORMAT", spec.OutputFormat},
		{"LANGUAGE", spec.Language},
	}
	var parts []string
	for _, s := range sections {
		body := strings.TrimRight(s.body, "\n")
		if strings.TrimSpace(body) == "" {
			continue
		}
		parts = append(parts, "["+s.title+"]\n"+body)
	}
	return strings.Join(parts, "\n\n") + "\n", nil
}

// MustRender is Render for package-level prompt literals.
func MustRender(spec StructuredPromptSpec) string {
	s, err := Render(spec)
	if err != nil {
		panic(err)
	}
	return s
}

func fieldLines(fields []PromptField) string {
	lines := make([]string, 0, len(fields))
	for _, f := range fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			continue
		}
		presence := "optional"
		if f.Required {
			presence = "required"
		}
		line := fmt.Sprintf("- %s (%s, %s)", name, f.Type, presence)
		if f.Description != "" {
			line += ": " + f.Description
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func bullets(items []string) string {
	lines := make([]string, 0, len(items))
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			lines = append(lines, "- "+item)
		}
	}
	return strings.Join(lines, "\n")
}
