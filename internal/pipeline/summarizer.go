// Package pipeline turns a GitHub URL into a grounded repository summary:
// resolve the tree, filter, collect evidence, plan, fetch, budget,
// synthesize and validate.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"repobrief/internal/budget"
	"repobrief/internal/config"
	"repobrief/internal/github"
	"repobrief/internal/grounding"
	"repobrief/internal/llm"
	"repobrief/internal/logging"
	"repobrief/internal/plan"
	"repobrief/internal/scan"
	"repobrief/internal/techstack"
	"repobrief/internal/types"
)

// perFileOverhead approximates the JSON framing of one file in the final
// request, in tokens.
const perFileOverhead = 16

// Summarizer runs the summarization pipeline. It holds no request state and
// is safe for concurrent use.
type Summarizer struct {
	cfg    config.Config
	limits config.Limits
	source Source
	client llm.LLMClient
}

// New builds a Summarizer using cfg.Limits.
func New(cfg config.Config, source Source, client llm.LLMClient) *Summarizer {
	return &Summarizer{cfg: cfg, limits: cfg.Limits, source: source, client: client}
}

// WithLimits returns a copy of s that applies l instead of the configured
// limits.
func (s *Summarizer) WithLimits(l config.Limits) *Summarizer {
	c := *s
	c.limits = l
	return &c
}

// Diagnostics describes how a response was produced. It is never part of
// the public response.
type Diagnostics struct {
	Repository    string                           `json:"repository"`
	Ref           string                           `json:"ref"`
	TreeEntries   int                              `json:"tree_entries"`
	Candidates    int                              `json:"candidates"`
	PlanSource    types.SelectionSource            `json:"plan_source,omitempty"`
	PlanReason    string                           `json:"plan_reason,omitempty"`
	Selected      []string                         `json:"selected"`
	Excluded      map[string]types.ExclusionReason `json:"excluded,omitempty"`
	Summarized    []string                         `json:"summarized,omitempty"`
	Dropped       []string                         `json:"dropped,omitempty"`
	ContextTokens int                              `json:"context_tokens"`
	Evidence      []string                         `json:"evidence"`
	EvidenceScore float64                          `json:"evidence_score"`
	ModelCalls    map[string]int                   `json:"model_calls,omitempty"`
	Elapsed       time.Duration                    `json:"elapsed"`
}

// Result is a response together with what it was derived from.
type Result struct {
	Response    types.Response
	Diagnostics Diagnostics
	// Context holds the documents sent to the final model call.
	Context []types.ChunkedDocument
	// Evidence is the deterministic technology evidence of the run.
	Evidence types.TechnologyEvidence
}

// Summarize returns the public response for githubURL.
func (s *Summarizer) Summarize(ctx context.Context, githubURL string) (types.Response, error) {
	res, err := s.Run(ctx, githubURL)
	if err != nil {
		return types.Response{}, err
	}
	return res.Response, nil
}

// Run executes every stage and returns the response with diagnostics. Errors
// are *apperr.Error values or context errors.
func (s *Summarizer) Run(ctx context.Context, githubURL string) (Result, error) {
	start := time.Now()
	log := logging.From(ctx)

	repo, err := github.ParseURL(githubURL)
	if err != nil {
		return Result{}, err
	}
	res := Result{Diagnostics: Diagnostics{Repository: repo.String()}}
	diag := &res.Diagnostics
	ctx = llm.WithHook(ctx, callCounter(diag))
	log = log.With(slog.String("repository", repo.String()))
	ctx = logging.WithLogger(ctx, log)

	emit(ctx, StageResolve, 5, "resolving repository", map[string]any{"repository": repo.String()})
	ref, err := s.source.DefaultBranch(ctx, repo)
	if err != nil {
		return Result{}, err
	}
	tree, err := s.source.Tree(ctx, repo, ref)
	if err != nil {
		return Result{}, err
	}
	diag.Ref = ref
	diag.TreeEntries = tree.Len()

	cls := scan.Classify(tree)
	candidates := cls.Candidates(tree)
	diag.Candidates = len(candidates)
	emit(ctx, StageFilter, 15, "classified repository paths", map[string]any{
		"entries":    tree.Len(),
		"candidates": len(candidates),
	})

	fetch := newFetcher(s.source, repo, ref, tree, s.limits.MaxFileBytes, s.cfg.GitHub.Concurrency)
	manifests := techstack.ManifestPaths(tree, s.limits.ManifestMaxDepth, s.limits.MaxManifestFiles, s.limits.MaxFileBytes)
	manifestFiles, err := fetch.Fetch(ctx, manifests)
	if err != nil {
		return Result{}, err
	}
	evidence := techstack.Extract(manifestFiles, tree)
	res.Evidence = evidence
	diag.Evidence = evidence.Names()
	emit(ctx, StageEvidence, 25, "collected technology evidence", map[string]any{"technologies": diag.Evidence})

	if len(candidates) == 0 {
		log.Info("no selectable files; returning minimal summary")
		res.Response = minimalResponse(repo, tree, evidence)
		diag.EvidenceScore = 1
		diag.Elapsed = time.Since(start)
		emit(ctx, StageValidate, 100, "done", nil)
		return res, nil
	}

	selector := plan.NewSelector(s.client, s.limits, s.cfg.LLM.PlannerMaxTokens)
	sel, err := selector.Select(ctx, repo.String(), candidates)
	if err != nil {
		return Result{}, err
	}
	diag.PlanSource = sel.Source
	diag.PlanReason = sel.Reason
	diag.Selected = sel.PathList()
	emit(ctx, StagePlan, 40, "selected files", map[string]any{
		"source": sel.Source,
		"paths":  diag.Selected,
	})

	files, err := fetch.Fetch(ctx, sel.PathList())
	if err != nil {
		return Result{}, err
	}
	for _, f := range files {
		if f.Excluded != "" {
			if diag.Excluded == nil {
				diag.Excluded = map[string]types.ExclusionReason{}
			}
			diag.Excluded[f.Path] = f.Excluded
		}
	}
	emit(ctx, StageFetch, 55, "fetched file contents", map[string]any{
		"files":    len(files),
		"excluded": len(diag.Excluded),
	})

	chunker := budget.NewChunker(s.limits, s.chunkSummarizer(repo), s.cfg.LLM.Concurrency)
	docs, err := chunker.Prepare(ctx, files, sel, cls)
	if err != nil {
		return Result{}, err
	}
	input := finalInput{
		Repository:   repo.String(),
		Files:        []finalFile{},
		Technologies: diag.Evidence,
		Languages:    languages(evidence),
		TopLevel:     topLevel(tree),
	}
	reserved := s.reserve(chunker.Estimator(), input, len(docs))
	fit, err := budget.FitBudget(docs, reserved, s.limits.SafeContext)
	if err != nil {
		return Result{}, err
	}
	for _, d := range fit.Included {
		if d.Summarized {
			diag.Summarized = append(diag.Summarized, d.Path)
		}
	}
	diag.Dropped = fit.Dropped
	diag.ContextTokens = fit.Tokens
	res.Context = fit.Included
	emit(ctx, StageBudget, 70, "packed context", map[string]any{
		"tokens":  fit.Tokens,
		"dropped": fit.Dropped,
	})

	for _, d := range fit.Included {
		input.Files = append(input.Files, finalFile{Path: d.Path, Content: d.Text(), Summarized: d.Summarized})
	}
	emit(ctx, StageSynthesize, 80, "writing summary", nil)
	claims, err := s.synthesize(ctx, input)
	if err != nil {
		return Result{}, err
	}

	vr := grounding.Validate(claims, evidence, tree, contextText(fit.Included))
	res.Response = types.Response{
		Summary:      shapeSummary(claims.Summary),
		Technologies: shapeTechnologies(vr.Technologies, evidence),
		Structure:    shapeStructure(vr.Structure, fit.Included),
	}
	if res.Response.Summary == "" {
		res.Response.Summary = minimalResponse(repo, tree, evidence).Summary
	}
	diag.EvidenceScore = vr.EvidenceScore
	diag.Elapsed = time.Since(start)
	log.Info("summary ready",
		slog.String("plan_source", string(sel.Source)),
		slog.Int("context_tokens", fit.Tokens),
		slog.Float64("evidence_score", vr.EvidenceScore),
		slog.Duration("elapsed", diag.Elapsed))
	emit(ctx, StageValidate, 100, "done", map[string]any{"evidence_score": vr.EvidenceScore})
	return res, nil
}

// reserve is the token allowance for everything in the final request except
// file contents, plus the completion.
func (s *Summarizer) reserve(est budget.Estimator, in finalInput, docs int) int {
	b, _ := json.Marshal(in)
	return est.Tokens(finalPrompt) + est.Tokens(string(b)) + docs*perFileOverhead + s.cfg.LLM.FinalMaxTokens
}

func (s *Summarizer) synthesize(ctx context.Context, in finalInput) (types.Claims, error) {
	ctx = llm.WithPhase(ctx, llm.PhaseFinal)
	if n := s.cfg.LLM.FinalMaxTokens; n > 0 {
		ctx = llm.WithMaxOutputTokens(ctx, n)
	}
	ctx = llm.WithShape(ctx, checkClaims)
	raw, err := s.client.GenerateJSON(ctx, finalPrompt, in)
	if err != nil {
		return types.Claims{}, llm.AsAppError(err)
	}
	if err := checkClaims(raw); err != nil {
		return types.Claims{}, llm.AsAppError(fmt.Errorf("%w: %v", llm.ErrInvalidJSON, err))
	}
	claims, err := llm.Decode[types.Claims](raw)
	if err != nil {
		return types.Claims{}, llm.AsAppError(err)
	}
	return claims, nil
}

func (s *Summarizer) chunkSummarizer(repo github.Repo) budget.ChunkSummarizer {
	return budget.ChunkSummarizerFunc(func(ctx context.Context, req budget.ChunkRequest) (string, error) {
		ctx = llm.WithPhase(ctx, llm.PhaseChunk)
		if n := s.cfg.LLM.ChunkMaxTokens; n > 0 {
			ctx = llm.WithMaxOutputTokens(ctx, n)
		}
		raw, err := s.client.GenerateJSON(ctx, chunkPrompt, chunkInput{
			Repository: repo.String(),
			Path:       req.Path,
			Part:       req.Index + 1,
			Parts:      req.Total,
			Text:       req.Text,
		})
		if err != nil {
			return "", err
		}
		ans, err := llm.Decode[chunkAnswer](raw)
		if err != nil {
			return "", err
		}
		summary := strings.TrimSpace(ans.Summary)
		if summary == "" {
			return "", fmt.Errorf("%w: empty chunk summary", llm.ErrInvalidJSON)
		}
		return summary, nil
	})
}

// callCounter records how many logical model calls each phase made.
func callCounter(diag *Diagnostics) llm.PromptHook {
	var mu sync.Mutex
	return llm.HookFunc{
		BeforeFunc: func(_ context.Context, phase, _ string, _ any) {
			mu.Lock()
			defer mu.Unlock()
			if diag.ModelCalls == nil {
				diag.ModelCalls = map[string]int{}
			}
			diag.ModelCalls[phase]++
		},
	}
}

func contextText(docs []types.ChunkedDocument) string {
	parts := make([]string, len(docs))
	for i, d := range docs {
		parts[i] = d.Text()
	}
	return strings.Join(parts, "\n")
}

func languages(ev types.TechnologyEvidence) []string {
	var out []string
	for _, name := range ev.Names() {
		if ev[name].Confidence == types.ConfidenceLanguage {
			out = append(out, name)
		}
	}
	return out
}

// topLevel lists root entries, directories with a trailing slash.
func topLevel(tree types.RepoTree) []string {
	var out []string
	for _, e := range tree.Entries() {
		if e.Depth() != 0 {
			continue
		}
		if e.IsFile() {
			out = append(out, e.Path)
		} else {
			out = append(out, e.Path+"/")
		}
	}
	return out
}

// minimalResponse describes a repository from its tree and evidence alone.
func minimalResponse(repo github.Repo, tree types.RepoTree, ev types.TechnologyEvidence) types.Response {
	techs := ev.Names()
	if len(techs) > maxTechnologies {
		techs = techs[:maxTechnologies]
	}
	summary := fmt.Sprintf("%s has no readable source files outside dependency, build output or asset paths.", repo)
	if len(techs) > 0 {
		summary += " Detected technologies: " + strings.Join(techs, ", ") + "."
	}
	var structure []string
	for _, p := range topLevel(tree) {
		if len(structure) >= maxStructure {
			break
		}
		structure = append(structure, fmt.Sprintf("`%s` is a top-level entry of the repository.", p))
	}
	if techs == nil {
		techs = []string{}
	}
	if structure == nil {
		structure = []string{}
	}
	return types.Response{Summary: shapeSummary(summary), Technologies: techs, Structure: structure}
}
