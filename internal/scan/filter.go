package scan

import (
	"path"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"

	"repobrief/internal/types"
)

// skipDirs are dependency, build-output and cache directories. They match at
// any depth.
var skipDirs = []string{
	"node_modules", "vendor", "third_party", "dist", "build", "out", "target",
	"coverage", "__pycache__", ".mypy_cache", ".pytest_cache", ".ruff_cache",
	".tox", ".next", ".nuxt", ".gradle", ".cache", ".git",
}

// assetExts are binary, media and archive extensions.
var assetExts = []string{
	"png", "jpg", "jpeg", "gif", "svg", "ico", "webp", "bmp", "pdf",
	"zip", "tar", "gz", "tgz", "bz2", "xz", "7z", "rar", "jar", "war",
	"bin", "exe", "dll", "so", "dylib", "a", "o", "class", "pyc", "wasm",
	"onnx", "pt", "pth", "ckpt", "h5", "parquet",
	"woff", "woff2", "ttf", "eot", "otf",
	"mp3", "mp4", "mov", "avi", "wav", "db", "sqlite",
}

// generatedPatterns are minified bundles and source maps.
var generatedPatterns = []string{"*.min.js", "*.min.css", "*.map"}

var lockfiles = map[string]struct{}{
	"package-lock.json": {}, "yarn.lock": {}, "pnpm-lock.yaml": {},
	"poetry.lock": {}, "pipfile.lock": {}, "cargo.lock": {}, "go.sum": {},
	"composer.lock": {}, "gemfile.lock": {}, "npm-shrinkwrap.json": {},
}

var testDirs = map[string]struct{}{
	"test": {}, "tests": {}, "__tests__": {}, "spec": {}, "testdata": {}, "e2e": {},
}

// Filter classifies repository paths into priority tiers.
type Filter struct {
	dirs   *ignore.GitIgnore
	assets *ignore.GitIgnore
	gen    *ignore.GitIgnore
}

// NewFilter compiles the built-in denylists plus extra gitignore-style
// patterns, which are treated as hard skips.
func NewFilter(extra ...string) *Filter {
	dirLines := make([]string, 0, len(skipDirs))
	for _, d := range skipDirs {
		dirLines = append(dirLines, d+"/")
	}
	assetLines := make([]string, 0, len(assetExts))
	for _, ext := range assetExts {
		assetLines = append(assetLines, "*."+ext)
	}
	genLines := append(append([]string{}, generatedPatterns...), extra...)
	return &Filter{
		dirs:   ignore.CompileIgnoreLines(dirLines...),
		assets: ignore.CompileIgnoreLines(assetLines...),
		gen:    ignore.CompileIgnoreLines(genLines...),
	}
}

var defaultFilter = NewFilter()

// Classify runs the default filter over tree.
func Classify(tree types.RepoTree) types.Classification {
	return defaultFilter.Classify(tree)
}

// HardSkipped reports whether the default filter drops p entirely.
func HardSkipped(p string) bool {
	_, skip := defaultFilter.hardSkip(p)
	return skip
}

// Classify assigns a tier and category to every file of tree. It performs
// no I/O and depends only on paths.
func (f *Filter) Classify(tree types.RepoTree) types.Classification {
	out := make(types.Classification, tree.Len())
	for _, e := range tree.Files() {
		out[e.Path] = f.ClassifyPath(e.Path)
	}
	return out
}

// ClassifyPath returns the verdict for a single repo-relative path.
func (f *Filter) ClassifyPath(p string) types.Classified {
	p = types.NormalizePath(p)
	if cat, skip := f.hardSkip(p); skip {
		return types.Classified{Tier: types.TierHardSkip, Category: cat}
	}
	base := strings.ToLower(path.Base(p))
	if _, ok := lockfiles[base]; ok {
		return types.Classified{Tier: types.TierDeprioritized, Category: types.CategoryLockfile}
	}
	if isTestPath(p) {
		return types.Classified{Tier: types.TierDeprioritized, Category: types.CategoryTest}
	}
	return types.Classified{Tier: types.TierNormal, Category: categorize(p)}
}

func (f *Filter) hardSkip(p string) (types.Category, bool) {
	lower := strings.ToLower(p)
	switch {
	case f.assets.MatchesPath(lower):
		return types.CategoryAsset, true
	case f.dirs.MatchesPath(lower), f.gen.MatchesPath(lower):
		return types.CategoryGenerated, true
	}
	return "", false
}

func isTestPath(p string) bool {
	lower := strings.ToLower(p)
	segs := strings.Split(lower, "/")
	for _, s := range segs[:len(segs)-1] {
		if _, ok := testDirs[s]; ok {
			return true
		}
	}
	base := segs[len(segs)-1]
	stem := strings.TrimSuffix(base, path.Ext(base))
	switch {
	case strings.HasSuffix(stem, "_test"), strings.HasPrefix(stem, "test_"):
		return true
	case strings.HasSuffix(stem, ".test"), strings.HasSuffix(stem, ".spec"):
		return true
	}
	// FooTest.java, FooTests.cs
	orig := path.Base(p)
	orig = strings.TrimSuffix(orig, path.Ext(orig))
	return len(orig) > 4 && (strings.HasSuffix(orig, "Test") || strings.HasSuffix(orig, "Tests"))
}
