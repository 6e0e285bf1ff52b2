package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repobrief/internal/types"
)

func files(paths ...string) types.RepoTree {
	entries := make([]types.PathEntry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, types.PathEntry{Path: p, Type: types.EntryFile, Size: 100})
	}
	return types.NewRepoTree(entries)
}

func TestClassifyTiers(t *testing.T) {
	cases := []struct {
		path string
		tier types.Tier
		cat  types.Category
	}{
		{"README.md", types.TierNormal, types.CategoryDoc},
		{"docs/guide.md", types.TierNormal, types.CategoryDoc},
		{"go.mod", types.TierNormal, types.CategoryConfig},
		{"requirements-dev.txt", types.TierNormal, types.CategoryConfig},
		{"Dockerfile", types.TierNormal, types.CategoryConfig},
		{".github/workflows/ci.yml", types.TierNormal, types.CategoryConfig},
		{"main.go", types.TierNormal, types.CategoryEntrypoint},
		{"cmd/api/main.go", types.TierNormal, types.CategoryEntrypoint},
		{"src/index.ts", types.TierNormal, types.CategoryEntrypoint},
		{"internal/store/store.go", types.TierNormal, types.CategoryCoreSource},
		{"LICENSE", types.TierNormal, types.CategoryOther},

		{"node_modules/index.js", types.TierHardSkip, types.CategoryGenerated},
		{"web/node_modules/react/index.js", types.TierHardSkip, types.CategoryGenerated},
		{"pkg/vendor/x/y.go", types.TierHardSkip, types.CategoryGenerated},
		{"dist/app.js", types.TierHardSkip, types.CategoryGenerated},
		{"static/app.min.js", types.TierHardSkip, types.CategoryGenerated},
		{"static/app.js.map", types.TierHardSkip, types.CategoryGenerated},
		{"assets/logo.PNG", types.TierHardSkip, types.CategoryAsset},
		{"models/weights.onnx", types.TierHardSkip, types.CategoryAsset},
		{"data/table.parquet", types.TierHardSkip, types.CategoryAsset},
		{"__pycache__/mod.cpython-311.pyc", types.TierHardSkip, types.CategoryAsset},

		{"package-lock.json", types.TierDeprioritized, types.CategoryLockfile},
		{"web/yarn.lock", types.TierDeprioritized, types.CategoryLockfile},
		{"tests/test_api.py", types.TierDeprioritized, types.CategoryTest},
		{"internal/store/store_test.go", types.TierDeprioritized, types.CategoryTest},
		{"src/app.spec.ts", types.TierDeprioritized, types.CategoryTest},
		{"src/main/java/FooTest.java", types.TierDeprioritized, types.CategoryTest},
	}
	f := NewFilter()
	for _, tc := range cases {
		t.Run(tc.path, func(t *testing.T) {
			got := f.ClassifyPath(tc.path)
			assert.Equal(t, tc.tier, got.Tier)
			assert.Equal(t, tc.cat, got.Category)
		})
	}
}

func TestClassifyLatestIsNotATest(t *testing.T) {
	got := NewFilter().ClassifyPath("src/latest.py")
	assert.Equal(t, types.TierNormal, got.Tier)
}

func TestNodeModulesNeverSelectable(t *testing.T) {
	tree := files("node_modules/index.js", "README.md")
	cls := Classify(tree)

	require.Len(t, cls, 2)
	assert.Equal(t, types.TierHardSkip, cls["node_modules/index.js"].Tier)
	assert.Equal(t, types.TierNormal, cls["README.md"].Tier)

	cands := cls.Candidates(tree)
	require.Len(t, cands, 1)
	assert.Equal(t, "README.md", cands[0].Path)
}

func TestClassifyEmptyCandidates(t *testing.T) {
	tree := files("node_modules/a.js", "logo.png", "dist/bundle.js")
	assert.Empty(t, Classify(tree).Candidates(tree))
}

func TestExtraPatterns(t *testing.T) {
	f := NewFilter("*.generated.go")
	assert.Equal(t, types.TierHardSkip, f.ClassifyPath("api/types.generated.go").Tier)
	assert.Equal(t, types.TierNormal, f.ClassifyPath("api/types.go").Tier)
}

func TestLanguageOf(t *testing.T) {
	lang, ok := LanguageOf("a/b/c.TSX")
	require.True(t, ok)
	assert.Equal(t, "TypeScript", lang)

	_, ok = LanguageOf("README")
	assert.False(t, ok)
}
