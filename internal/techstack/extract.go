package techstack

import (
	"path"
	"sort"
	"strings"

	"repobrief/internal/scan"
	"repobrief/internal/types"
)

// maxLanguageSamples bounds the source paths recorded per language.
const maxLanguageSamples = 5

// Extract builds technology evidence from the fetched files and the full
// tree. It is deterministic: the result depends only on the set of files
// and tree entries, not on their order.
func Extract(files []types.FileContent, tree types.RepoTree) types.TechnologyEvidence {
	b := newBuilder()

	for _, f := range files {
		if !f.Included() {
			continue
		}
		parse := parserFor(f.Path)
		if parse == nil {
			continue
		}
		for _, fd := range parse(f.Path, []byte(*f.Text)) {
			b.add(fd, f.Path, types.ConfidenceDerived)
		}
	}

	for _, e := range tree.Files() {
		if scan.HardSkipped(e.Path) {
			continue
		}
		for _, fd := range pathSignals(e.Path) {
			b.add(fd, e.Path, types.ConfidenceDerived)
		}
		if lang, ok := scan.LanguageOf(e.Path); ok {
			b.language(lang, e.Path)
		}
	}
	return b.build()
}

// pathSignals are technologies implied by a file's mere presence.
func pathSignals(p string) []finding {
	lower := strings.ToLower(p)
	base := path.Base(lower)
	var out []finding
	switch {
	case strings.HasPrefix(lower, ".github/workflows/") && (strings.HasSuffix(base, ".yml") || strings.HasSuffix(base, ".yaml")):
		out = append(out, tech("GitHub Actions", types.KindPlatform))
	case lower == ".gitlab-ci.yml":
		out = append(out, tech("GitLab CI", types.KindPlatform))
	case base == "makefile" || base == "gnumakefile":
		out = append(out, tech("Make", types.KindPlatform))
	case base == "cmakelists.txt":
		out = append(out, tech("CMake", types.KindPlatform))
	case strings.HasPrefix(base, "dockerfile"):
		out = append(out, tech("Docker", types.KindPlatform))
	case base == "chart.yaml":
		out = append(out, tech("Helm", types.KindPlatform), tech("Kubernetes", types.KindPlatform))
	case base == "terraform.tf" || base == "main.tf":
		out = append(out, tech("Terraform", types.KindPlatform))
	}
	return out
}

// ManifestPaths lists the recognized manifest files of tree at most maxDepth
// directories deep, shallowest first, capped at limit. Hard-skipped and
// oversized entries are ignored.
func ManifestPaths(tree types.RepoTree, maxDepth, limit int, maxBytes int64) []string {
	var out []types.PathEntry
	for _, e := range tree.Files() {
		if e.Depth() > maxDepth || scan.HardSkipped(e.Path) || !IsManifest(e.Path) {
			continue
		}
		if maxBytes > 0 && e.Size > maxBytes {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Depth() != out[j].Depth() {
			return out[i].Depth() < out[j].Depth()
		}
		return out[i].Path < out[j].Path
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	paths := make([]string, len(out))
	for i, e := range out {
		paths[i] = e.Path
	}
	return paths
}

type entry struct {
	paths      map[string]struct{}
	confidence types.EvidenceConfidence
	kind       types.TechKind
	count      int
}

type builder struct {
	byKey map[string]*entry
	names map[string]string
}

func newBuilder() *builder {
	return &builder{byKey: map[string]*entry{}, names: map[string]string{}}
}

func (b *builder) get(name string) *entry {
	key := strings.ToLower(name)
	e, ok := b.byKey[key]
	if !ok {
		e = &entry{paths: map[string]struct{}{}, confidence: types.ConfidenceLanguage, kind: types.KindDependency}
		b.byKey[key] = e
		b.names[key] = name
	} else if name < b.names[key] {
		// Keep a stable spelling regardless of arrival order.
		b.names[key] = name
	}
	return e
}

func (b *builder) add(fd finding, p string, c types.EvidenceConfidence) {
	name := strings.TrimSpace(fd.name)
	if name == "" {
		return
	}
	e := b.get(name)
	e.paths[p] = struct{}{}
	if c == types.ConfidenceDerived {
		e.confidence = types.ConfidenceDerived
	}
	if fd.kind < e.kind {
		e.kind = fd.kind
	}
}

func (b *builder) language(lang, p string) {
	e := b.get(lang)
	e.paths[p] = struct{}{}
	e.count++
	e.kind = types.KindLanguage
}

func (b *builder) build() types.TechnologyEvidence {
	out := make(types.TechnologyEvidence, len(b.byKey))
	for key, e := range b.byKey {
		paths := make([]string, 0, len(e.paths))
		for p := range e.paths {
			paths = append(paths, p)
		}
		sort.Strings(paths)
		count := e.count
		if count == 0 {
			count = len(paths)
		}
		if e.kind == types.KindLanguage && len(paths) > maxLanguageSamples {
			paths = paths[:maxLanguageSamples]
		}
		out[b.names[key]] = types.Evidence{
			SourcePaths: paths,
			Confidence:  e.confidence,
			Kind:        e.kind,
			Count:       count,
		}
	}
	return out
}
