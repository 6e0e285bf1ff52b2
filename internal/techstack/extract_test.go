package techstack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repobrief/internal/types"
)

func file(p, text string) types.FileContent {
	return types.FileContent{Path: p, SizeBytes: int64(len(text)), Text: &text}
}

func tree(paths ...string) types.RepoTree {
	entries := make([]types.PathEntry, 0, len(paths))
	for _, p := range paths {
		entries = append(entries, types.PathEntry{Path: p, Type: types.EntryFile, Size: 10})
	}
	return types.NewRepoTree(entries)
}

func names(te types.TechnologyEvidence) map[string]bool {
	out := map[string]bool{}
	for n := range te {
		out[n] = true
	}
	return out
}

func TestParsers(t *testing.T) {
	cases := []struct {
		name string
		file types.FileContent
		want []string
	}{
		{
			name: "go.mod",
			file: file("go.mod", "module x\n\ngo 1.22\n\nrequire (\n\tgithub.com/spf13/cobra v1.8.0\n\tgithub.com/foo/bar v0.1.0\n\tgolang.org/x/sys v0.1.0 // indirect\n)\n"),
			want: []string{"Go", "Cobra", "github.com/foo/bar"},
		},
		{
			name: "requirements",
			file: file("requirements.txt", "# deps\nDjango>=4.2\nrequests[socks]==2.31 ; python_version>'3'\n-r base.txt\ngit+https://x/y.git\n"),
			want: []string{"Python", "Django", "requests"},
		},
		{
			name: "package.json",
			file: file("package.json", `{"dependencies":{"react":"^18","express":"4"},"devDependencies":{"typescript":"5"},"peerDependencies":{"left-pad":"1"}}`),
			want: []string{"Node.js", "React", "Express", "TypeScript", "left-pad"},
		},
		{
			name: "pyproject",
			file: file("pyproject.toml", "[project]\nname = \"x\"\ndependencies = [\"fastapi>=0.100\", \"httpx\"]\n\n[tool.poetry.dependencies]\npython = \"^3.11\"\ntorch = \"2.1\"\n"),
			want: []string{"Python", "FastAPI", "httpx", "PyTorch"},
		},
		{
			name: "cargo",
			file: file("Cargo.toml", "[package]\nname = \"x\"\n\n[dependencies]\ntokio = { version = \"1\", features = [\"full\"] }\nserde = \"1\"\n"),
			want: []string{"Rust", "Cargo", "Tokio", "Serde"},
		},
		{
			name: "setup.cfg",
			file: file("setup.cfg", "[metadata]\nname = x\n\n[options]\ninstall_requires =\n    flask>=2\n    click\n"),
			want: []string{"Python", "Flask", "Click"},
		},
		{
			name: "setup.py",
			file: file("setup.py", "from setuptools import setup\nsetup(name='x', install_requires=['numpy>=1.20', \"pandas\"])\n"),
			want: []string{"Python", "NumPy", "pandas"},
		},
		{
			name: "pom",
			file: file("pom.xml", `<project><dependencies><dependency><groupId>org.springframework.boot</groupId><artifactId>spring-boot-starter-web</artifactId></dependency><dependency><groupId>com.google</groupId><artifactId>guava</artifactId></dependency></dependencies></project>`),
			want: []string{"Java", "Maven", "Spring Boot", "guava"},
		},
		{
			name: "gradle",
			file: file("build.gradle.kts", "dependencies {\n    implementation(\"org.jetbrains.kotlinx:kotlinx-coroutines-core:1.7.0\")\n    testImplementation 'junit:junit:4.13'\n}\n"),
			want: []string{"Gradle", "Kotlin", "Kotlin Coroutines", "JUnit"},
		},
		{
			name: "dockerfile",
			file: file("Dockerfile", "FROM --platform=linux/amd64 python:3.12-slim AS base\nFROM nginx:alpine\n"),
			want: []string{"Docker", "Python", "Nginx"},
		},
		{
			name: "compose",
			file: file("docker-compose.yml", "services:\n  db:\n    image: postgres:16\n  cache:\n    image: redis\n"),
			want: []string{"Docker Compose", "Docker", "PostgreSQL", "Redis"},
		},
		{
			name: "kubernetes",
			file: file("deploy/app.yaml", "---\n- not a manifest\n---\napiVersion: apps/v1\nkind: Deployment\n"),
			want: []string{"Kubernetes"},
		},
		{
			name: "podfile",
			file: file("Podfile", "target 'App' do\n  pod 'Alamofire', '~> 5.0'\nend\n"),
			want: []string{"CocoaPods", "Alamofire"},
		},
		{
			name: "package.swift",
			file: file("Package.swift", `dependencies: [ .package(url: "https://github.com/apple/swift-nio.git", from: "2.0.0") ]`),
			want: []string{"Swift", "Swift Package Manager", "swift-nio"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Extract([]types.FileContent{tc.file}, types.NewRepoTree(nil))
			assert.Equal(t, len(tc.want), len(got), "got %v", got.Names())
			for _, w := range tc.want {
				ev, ok := got[w]
				if assert.True(t, ok, "missing %q in %v", w, got.Names()) {
					assert.Equal(t, types.ConfidenceDerived, ev.Confidence)
					assert.Equal(t, []string{tc.file.Path}, ev.SourcePaths)
				}
			}
		})
	}
}

func TestPlainYAMLWithoutKindIsNotKubernetes(t *testing.T) {
	got := Extract([]types.FileContent{file("config/app.yaml", "server:\n  port: 8080\n")}, types.NewRepoTree(nil))
	assert.Empty(t, got)
}

func TestMalformedManifestIsTolerated(t *testing.T) {
	got := Extract([]types.FileContent{file("package.json", "{not json")}, types.NewRepoTree(nil))
	assert.Equal(t, map[string]bool{"Node.js": true}, names(got))
}

func TestLanguagesAndPathSignals(t *testing.T) {
	tr := tree(
		"main.go", "internal/a.go", "internal/b.go", "scripts/run.sh",
		"vendor/x/y.go", "node_modules/z/index.js",
		".github/workflows/ci.yml", "Makefile", "deploy/Dockerfile",
	)
	got := Extract(nil, tr)

	goEv := got["Go"]
	assert.Equal(t, types.ConfidenceLanguage, goEv.Confidence)
	assert.Equal(t, 3, goEv.Count)
	assert.NotContains(t, goEv.SourcePaths, "vendor/x/y.go")
	_, hasJS := got["JavaScript"]
	assert.False(t, hasJS, "hard-skipped files must not infer languages")

	assert.Equal(t, types.ConfidenceDerived, got["GitHub Actions"].Confidence)
	assert.Contains(t, got, "Make")
	assert.Equal(t, []string{"deploy/Dockerfile"}, got["Docker"].SourcePaths)

	assert.Equal(t, []string{"Go", "Shell"}, got.Names()[:2])
}

func TestExtractOrderIndependentAndIdempotent(t *testing.T) {
	files := []types.FileContent{
		file("go.mod", "module x\nrequire github.com/gin-gonic/gin v1.9.0\n"),
		file("web/package.json", `{"dependencies":{"react":"18"}}`),
		file("Dockerfile", "FROM golang:1.22\n"),
		file("tsconfig.json", "{}"),
	}
	tr := tree("go.mod", "main.go", "web/package.json", "web/src/App.tsx", "Dockerfile", "tsconfig.json")
	rev := []types.FileContent{files[3], files[2], files[1], files[0]}
	revTree := tree("tsconfig.json", "Dockerfile", "web/src/App.tsx", "web/package.json", "main.go", "go.mod")

	a := Extract(files, tr)
	b := Extract(rev, revTree)
	c := Extract(files, tr)
	require.Equal(t, a, b)
	require.Equal(t, a, c)
	assert.Equal(t, a.Names(), b.Names())

	goEv := a["Go"]
	assert.Equal(t, types.ConfidenceDerived, goEv.Confidence)
	assert.Equal(t, []string{"Dockerfile", "go.mod", "main.go"}, goEv.SourcePaths)
	assert.Contains(t, a, "Gin")
	assert.Contains(t, a, "TypeScript")
}

func TestManifestPaths(t *testing.T) {
	tr := types.NewRepoTree([]types.PathEntry{
		{Path: "a/b/c/package.json", Type: types.EntryFile, Size: 10},
		{Path: "web/package.json", Type: types.EntryFile, Size: 10},
		{Path: "go.mod", Type: types.EntryFile, Size: 10},
		{Path: "node_modules/x/package.json", Type: types.EntryFile, Size: 10},
		{Path: "big/requirements.txt", Type: types.EntryFile, Size: 1 << 30},
		{Path: "deploy/k8s.yaml", Type: types.EntryFile, Size: 10},
		{Path: "docker-compose.yml", Type: types.EntryFile, Size: 10},
		{Path: "main.go", Type: types.EntryFile, Size: 10},
	})
	got := ManifestPaths(tr, 2, 12, 200_000)
	assert.Equal(t, []string{"docker-compose.yml", "go.mod", "web/package.json"}, got)

	assert.Len(t, ManifestPaths(tr, 2, 1, 200_000), 1)
}
