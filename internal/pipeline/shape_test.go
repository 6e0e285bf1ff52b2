package pipeline

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"repobrief/internal/types"
)

func TestShapeSummary(t *testing.T) {
	assert.Equal(t, "a b c", shapeSummary("  a\n\tb   c "))
	long := strings.Repeat("word ", 200)
	assert.Len(t, strings.Fields(shapeSummary(long)), maxSummaryWords)
}

func TestShapeTechnologies(t *testing.T) {
	ev := types.TechnologyEvidence{
		"Go":     {Kind: types.KindLanguage, Count: 9, Confidence: types.ConfidenceLanguage},
		"Docker": {Kind: types.KindPlatform, Count: 1, Confidence: types.ConfidenceDerived},
		"Cobra":  {Kind: types.KindFramework, Count: 1, Confidence: types.ConfidenceDerived},
		"Make":   {Kind: types.KindPlatform, Count: 1, Confidence: types.ConfidenceDerived},
		"Shell":  {Kind: types.KindLanguage, Count: 2, Confidence: types.ConfidenceLanguage},
		"Viper":  {Kind: types.KindDependency, Count: 1, Confidence: types.ConfidenceDerived},
	}
	got := shapeTechnologies([]string{"Golang", "golang", "Cobra"}, ev)
	assert.Equal(t, []string{"Golang", "Cobra", "Shell", "Docker", "Make"}, got)

	var many []string
	for i := 0; i < 20; i++ {
		many = append(many, "tool"+string(rune('a'+i)))
	}
	assert.Len(t, shapeTechnologies(many, ev), maxTechnologies)
}

func TestShapeStructure(t *testing.T) {
	docs := []types.ChunkedDocument{{Path: "README.md"}, {Path: "main.go"}, {Path: "cmd/x/main.go"}}
	got := shapeStructure([]string{"`main.go` starts the CLI.", "`main.go` starts the CLI.", " "}, docs)
	assert.Equal(t, []string{
		"`main.go` starts the CLI.",
		"`README.md`: included from selected context.",
		"`cmd/x/main.go`: included from selected context.",
	}, got)

	var many []string
	for i := 0; i < 30; i++ {
		many = append(many, strings.Repeat("x", i+1))
	}
	assert.Len(t, shapeStructure(many, docs), maxStructure)
}
