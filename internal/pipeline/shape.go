package pipeline

import (
	"fmt"
	"strings"

	"repobrief/internal/grounding"
	"repobrief/internal/types"
)

const (
	maxSummaryWords  = 120
	minTechnologies  = 5
	maxTechnologies  = 12
	minStructure     = 5
	maxStructure     = 15
	includedTemplate = "`%s`: included from selected context."
)

// shapeSummary collapses whitespace and caps the word count.
func shapeSummary(s string) string {
	words := strings.Fields(s)
	if len(words) > maxSummaryWords {
		words = words[:maxSummaryWords]
	}
	return strings.Join(words, " ")
}

// shapeTechnologies dedupes validated names, tops them up from evidence and
// caps the list.
func shapeTechnologies(validated []string, ev types.TechnologyEvidence) []string {
	out := make([]string, 0, maxTechnologies)
	seen := map[string]struct{}{}
	add := func(name string) {
		key := grounding.TechKey(name)
		if key == "" || len(out) >= maxTechnologies {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, strings.TrimSpace(name))
	}
	for _, t := range validated {
		add(t)
	}
	if len(out) < minTechnologies {
		for _, name := range ev.Names() {
			if len(out) >= minTechnologies {
				break
			}
			add(name)
		}
	}
	return out
}

// shapeStructure dedupes statements, caps them and pads short lists with
// the paths of included documents.
func shapeStructure(validated []string, included []types.ChunkedDocument) []string {
	out := make([]string, 0, maxStructure)
	seen := map[string]struct{}{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		key := strings.ToLower(s)
		if s == "" || len(out) >= maxStructure {
			return
		}
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	for _, s := range validated {
		add(s)
	}
	for _, d := range included {
		if len(out) >= minStructure {
			break
		}
		if mentioned(out, d.Path) {
			continue
		}
		add(fmt.Sprintf(includedTemplate, d.Path))
	}
	return out
}

func mentioned(statements []string, p string) bool {
	for _, s := range statements {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}
