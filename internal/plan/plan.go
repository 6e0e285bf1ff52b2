// Package plan chooses which repository files are worth reading. A model
// ranks candidate paths; when it fails or answers nothing usable a
// deterministic category-based selection takes over.
package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"repobrief/internal/budget"
	"repobrief/internal/config"
	"repobrief/internal/llm"
	"repobrief/internal/llmtool"
	"repobrief/internal/logging"
	"repobrief/internal/types"
)

// Selector produces a SelectionPlan from classified candidates.
type Selector struct {
	client    llm.LLMClient
	limits    config.Limits
	est       budget.Estimator
	maxTokens int
}

// NewSelector builds a Selector. A nil client always uses the fallback.
func NewSelector(client llm.LLMClient, limits config.Limits, maxOutputTokens int) *Selector {
	return &Selector{
		client:    client,
		limits:    limits,
		est:       budget.NewEstimator(limits.CharsPerToken),
		maxTokens: maxOutputTokens,
	}
}

type plannerCandidate struct {
	Path     string         `json:"path"`
	Category types.Category `json:"category"`
	Size     int64          `json:"size,omitempty"`
}

type plannerInput struct {
	Repository string             `json:"repository"`
	MaxFiles   int                `json:"max_files"`
	Candidates []plannerCandidate `json:"candidates"`
	Truncated  bool               `json:"truncated,omitempty"`
}

type plannerAnswer struct {
	ImportantFiles []string `json:"important_files" prompt_desc:"Candidate paths most useful for understanding the project, most important first."`
}

var plannerPrompt = llmtool.MustRender(llmtool.ApplyPresets(llmtool.StructuredPromptSpec{
	Purpose: "Pick the files that best explain what this repository does, how it is built and how it is laid out.",
	Background: "You only see file paths with a coarse category and byte size. " +
		"Entrypoints, top-level docs, build manifests and core source files usually carry the most signal.",
	OutputFields: llmtool.MustFieldsFromStruct(plannerAnswer{}),
	Constraints: []string{
		"Choose at most max_files paths.",
		"Copy paths exactly as listed under candidates.",
	},
	Rules: []string{
		"Prefer README, entrypoints and manifests over tests, fixtures and generated files.",
		"Spread picks across top-level areas instead of many files from one directory.",
	},
	OutputFormat: `{"important_files": ["path", "..."]}`,
	Language:     "English",
}, llmtool.PresetStrictJSON(), llmtool.PresetUntrusted()))

// Select returns a plan of at most MaxSelectedFiles candidate paths. It only
// fails when ctx is done; every model problem falls back.
func (s *Selector) Select(ctx context.Context, repo string, candidates []types.Candidate) (types.SelectionPlan, error) {
	log := logging.From(ctx)
	if len(candidates) == 0 {
		return Fallback(candidates, s.limits.MaxSelectedFiles, "no selectable files"), nil
	}
	if s.client == nil {
		return Fallback(candidates, s.limits.MaxSelectedFiles, "planner disabled"), nil
	}

	paths, err := s.ask(ctx, repo, candidates)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return types.SelectionPlan{}, ctxErr
		}
		reason := "planner failed"
		if errors.Is(err, llm.ErrInvalidJSON) {
			reason = "planner returned invalid output"
		} else if errors.Is(err, llm.ErrTimeout) {
			reason = "planner timed out"
		}
		log.Warn("planner fallback", slog.String("reason", reason), slog.Any("err", err))
		return Fallback(candidates, s.limits.MaxSelectedFiles, reason), nil
	}

	plan := Sanitize(paths, candidates, s.limits.MaxSelectedFiles)
	if len(plan.Paths) == 0 {
		log.Warn("planner fallback", slog.String("reason", "no usable paths"), slog.Int("answered", len(paths)))
		return Fallback(candidates, s.limits.MaxSelectedFiles, "planner returned no usable paths"), nil
	}
	log.Info("planner selected files", slog.Int("count", len(plan.Paths)))
	return plan, nil
}

func (s *Selector) ask(ctx context.Context, repo string, candidates []types.Candidate) ([]string, error) {
	in := s.input(repo, candidates)
	ctx = llm.WithPhase(ctx, llm.PhasePlanner)
	if s.maxTokens > 0 {
		ctx = llm.WithMaxOutputTokens(ctx, s.maxTokens)
	}
	raw, err := s.client.GenerateJSON(ctx, plannerPrompt, in)
	if err != nil {
		return nil, err
	}
	ans, err := llm.Decode[plannerAnswer](raw)
	if err != nil {
		return nil, err
	}
	if ans.ImportantFiles == nil {
		return nil, fmt.Errorf("%w: important_files missing", llm.ErrInvalidJSON)
	}
	return ans.ImportantFiles, nil
}

// input lists candidates shallow-first until the list budget is spent.
func (s *Selector) input(repo string, candidates []types.Candidate) plannerInput {
	ordered := make([]types.Candidate, len(candidates))
	copy(ordered, candidates)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Depth() < ordered[j].Depth()
	})

	in := plannerInput{Repository: repo, MaxFiles: s.limits.MaxSelectedFiles}
	used := 0
	for _, c := range ordered {
		pc := plannerCandidate{Path: c.Path, Category: c.Category}
		if c.Size >= 0 {
			pc.Size = c.Size
		}
		b, _ := json.Marshal(pc)
		cost := s.est.Tokens(string(b)) + 1
		if s.limits.PlannerListTokens > 0 && used+cost > s.limits.PlannerListTokens {
			in.Truncated = true
			break
		}
		used += cost
		in.Candidates = append(in.Candidates, pc)
	}
	return in
}

// Sanitize keeps answered paths that are candidates, drops duplicates and
// truncates to max.
func Sanitize(answer []string, candidates []types.Candidate, max int) types.SelectionPlan {
	known := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		known[c.Path] = struct{}{}
	}
	plan := types.SelectionPlan{Source: types.SourcePlanner}
	seen := map[string]struct{}{}
	for _, raw := range answer {
		if len(plan.Paths) >= max {
			break
		}
		p := types.NormalizePath(raw)
		if _, ok := known[p]; !ok {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		plan.Paths = append(plan.Paths, types.PlannedPath{Path: p, Rank: len(plan.Paths)})
	}
	return plan
}
