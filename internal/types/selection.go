package types

import (
	"sort"
	"strings"
)

// Tier is the priority bucket a path lands in after heuristic filtering.
type Tier int

const (
	TierNormal Tier = iota
	TierDeprioritized
	TierHardSkip
)

func (t Tier) String() string {
	switch t {
	case TierNormal:
		return "NORMAL"
	case TierDeprioritized:
		return "DEPRIORITIZED"
	case TierHardSkip:
		return "HARD_SKIP"
	default:
		return "UNKNOWN"
	}
}

// Category is a coarse role used by the deterministic fallback.
type Category string

const (
	CategoryDoc        Category = "doc"
	CategoryConfig     Category = "config"
	CategoryEntrypoint Category = "entrypoint"
	CategoryCoreSource Category = "core-source"
	CategoryTest       Category = "test"
	CategoryLockfile   Category = "lockfile"
	CategoryAsset      Category = "asset"
	CategoryGenerated  Category = "generated"
	CategoryOther      Category = "other"
)

// Classified is the filter verdict for a single path.
type Classified struct {
	Tier     Tier     `json:"tier"`
	Category Category `json:"category"`
}

// Classification maps every file path of a tree to its verdict.
type Classification map[string]Classified

// Candidate is a selectable file together with its verdict.
type Candidate struct {
	PathEntry
	Classified
}

// Candidates returns the non-hard-skipped files of tree in tree order.
func (c Classification) Candidates(tree RepoTree) []Candidate {
	out := make([]Candidate, 0, len(c))
	for _, e := range tree.Files() {
		v, ok := c[e.Path]
		if !ok || v.Tier == TierHardSkip {
			continue
		}
		out = append(out, Candidate{PathEntry: e, Classified: v})
	}
	return out
}

// TierOf returns the tier of p; unknown paths count as hard-skipped.
func (c Classification) TierOf(p string) Tier {
	v, ok := c[p]
	if !ok {
		return TierHardSkip
	}
	return v.Tier
}

// SelectionSource records which strategy produced a plan.
type SelectionSource string

const (
	SourcePlanner  SelectionSource = "planner"
	SourceFallback SelectionSource = "fallback"
)

// PlannedPath is one selected path with its rank (0 is most important).
type PlannedPath struct {
	Path string `json:"path"`
	Rank int    `json:"rank"`
}

// SelectionPlan is the ordered set of paths chosen for fetching.
type SelectionPlan struct {
	Paths  []PlannedPath   `json:"paths"`
	Source SelectionSource `json:"source"`
	// Reason explains why the fallback ran; empty for planner plans.
	Reason string `json:"reason,omitempty"`
}

// PathList returns the planned paths in rank order.
func (p SelectionPlan) PathList() []string {
	out := make([]string, len(p.Paths))
	for i, pp := range p.Paths {
		out[i] = pp.Path
	}
	return out
}

// ExclusionReason says why a selected file contributed no text.
type ExclusionReason string

const (
	ExcludedOversize ExclusionReason = "oversize"
	ExcludedDecode   ExclusionReason = "decode_error"
	ExcludedFetch    ExclusionReason = "fetch_error"
)

// FileContent is the fetched content of a planned path. Text is nil when
// the file was excluded.
type FileContent struct {
	Path      string
	SizeBytes int64
	Text      *string
	Excluded  ExclusionReason
}

// Included reports whether the file carries usable text.
func (f FileContent) Included() bool { return f.Text != nil && f.Excluded == "" }

// Chunk is a contiguous slice of a document, or the summary replacing it.
type Chunk struct {
	Text            string `json:"text"`
	EstimatedTokens int    `json:"estimated_tokens"`
}

// ChunkedDocument is a budget-ready document.
type ChunkedDocument struct {
	Path       string  `json:"path"`
	Tier       Tier    `json:"tier"`
	Rank       int     `json:"rank"`
	Chunks     []Chunk `json:"chunks"`
	Summarized bool    `json:"summarized"`
}

// Tokens is the estimated size of the document.
func (d ChunkedDocument) Tokens() int {
	n := 0
	for _, c := range d.Chunks {
		n += c.EstimatedTokens
	}
	return n
}

// Text joins the chunks in order.
func (d ChunkedDocument) Text() string {
	parts := make([]string, len(d.Chunks))
	for i, c := range d.Chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, "\n")
}

// EvidenceConfidence distinguishes parsed evidence from inferred languages.
type EvidenceConfidence string

const (
	ConfidenceDerived  EvidenceConfidence = "derived"
	ConfidenceLanguage EvidenceConfidence = "language-inferred"
)

// TechKind orders technologies when a list has to be padded from evidence.
type TechKind int

const (
	KindLanguage TechKind = iota
	KindPlatform
	KindFramework
	KindDependency
)

// Evidence backs one technology name.
type Evidence struct {
	SourcePaths []string           `json:"source_paths"`
	Confidence  EvidenceConfidence `json:"confidence"`
	Kind        TechKind           `json:"kind"`
	// Count is the number of supporting files; for languages, the number
	// of files with a matching extension.
	Count int `json:"count"`
}

// TechnologyEvidence maps a display name to the files supporting it.
type TechnologyEvidence map[string]Evidence

// Names returns technology names ordered by kind, then by descending
// count, then alphabetically.
func (te TechnologyEvidence) Names() []string {
	out := make([]string, 0, len(te))
	for name := range te {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := te[out[i]], te[out[j]]
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return strings.ToLower(out[i]) < strings.ToLower(out[j])
	})
	return out
}

// ValidationResult is the grounded form of the model's claims.
type ValidationResult struct {
	Technologies  []string `json:"technologies"`
	Structure     []string `json:"structure"`
	EvidenceScore float64  `json:"evidence_score"`
}

// Claims is the raw final output of the summarization model.
type Claims struct {
	Summary      string   `json:"summary" prompt_desc:"Short description of what the project does and who it is for."`
	Technologies []string `json:"technologies" prompt_desc:"Main languages, frameworks and tools, most important first."`
	Structure    []string `json:"structure" prompt_desc:"Statements about the layout, each referencing real paths."`
}

// Response is the public success payload.
type Response struct {
	Summary      string   `json:"summary"`
	Technologies []string `json:"technologies"`
	Structure    []string `json:"structure"`
}
