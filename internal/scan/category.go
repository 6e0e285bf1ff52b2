package scan

import (
	"path"
	"strings"

	"repobrief/internal/types"
)

var languageByExt = map[string]string{
	".go":     "Go",
	".py":     "Python",
	".js":     "JavaScript",
	".mjs":    "JavaScript",
	".cjs":    "JavaScript",
	".jsx":    "JavaScript",
	".ts":     "TypeScript",
	".tsx":    "TypeScript",
	".rs":     "Rust",
	".java":   "Java",
	".kt":     "Kotlin",
	".kts":    "Kotlin",
	".scala":  "Scala",
	".rb":     "Ruby",
	".php":    "PHP",
	".cs":     "C#",
	".fs":     "F#",
	".c":      "C",
	".h":      "C",
	".cc":     "C++",
	".cpp":    "C++",
	".cxx":    "C++",
	".hpp":    "C++",
	".m":      "Objective-C",
	".swift":  "Swift",
	".dart":   "Dart",
	".lua":    "Lua",
	".r":      "R",
	".jl":     "Julia",
	".ex":     "Elixir",
	".exs":    "Elixir",
	".erl":    "Erlang",
	".hs":     "Haskell",
	".clj":    "Clojure",
	".sh":     "Shell",
	".bash":   "Shell",
	".zsh":    "Shell",
	".ps1":    "PowerShell",
	".vue":    "Vue",
	".svelte": "Svelte",
	".sol":    "Solidity",
	".zig":    "Zig",
	".nim":    "Nim",
	".ml":     "OCaml",
	".pl":     "Perl",
	".sql":    "SQL",
	".proto":  "Protocol Buffers",
	".tf":     "Terraform",
	".ipynb":  "Jupyter Notebook",
}

// LanguageOf returns the programming language implied by p's extension.
func LanguageOf(p string) (string, bool) {
	lang, ok := languageByExt[strings.ToLower(path.Ext(p))]
	return lang, ok
}

var configNames = map[string]struct{}{
	"package.json": {}, "tsconfig.json": {}, "go.mod": {}, "cargo.toml": {},
	"pyproject.toml": {}, "requirements.txt": {}, "setup.py": {}, "setup.cfg": {},
	"pipfile": {}, "pom.xml": {}, "build.gradle": {}, "build.gradle.kts": {},
	"settings.gradle": {}, "gemfile": {}, "composer.json": {}, "dockerfile": {},
	"docker-compose.yml": {}, "docker-compose.yaml": {}, "compose.yml": {},
	"compose.yaml": {}, "makefile": {}, "cmakelists.txt": {}, "podfile": {},
	"package.swift": {}, "chart.yaml": {}, "deno.json": {}, "vite.config.ts": {},
	"vite.config.js": {}, "webpack.config.js": {}, "next.config.js": {},
	".env.example": {}, "procfile": {}, "netlify.toml": {}, "vercel.json": {},
}

var configExts = map[string]struct{}{
	".toml": {}, ".yaml": {}, ".yml": {}, ".ini": {}, ".cfg": {}, ".conf": {},
}

var entrypointStems = map[string]struct{}{
	"main": {}, "app": {}, "server": {}, "index": {}, "cli": {},
	"manage": {}, "wsgi": {}, "asgi": {}, "__main__": {}, "program": {},
}

var docExts = map[string]struct{}{".md": {}, ".rst": {}, ".adoc": {}, ".txt": {}}

func categorize(p string) types.Category {
	lower := strings.ToLower(p)
	base := path.Base(lower)
	ext := path.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	first := lower
	if i := strings.IndexByte(lower, '/'); i >= 0 {
		first = lower[:i]
	}

	if strings.HasPrefix(base, "readme") {
		return types.CategoryDoc
	}
	if _, ok := configNames[base]; ok {
		return types.CategoryConfig
	}
	if strings.HasPrefix(base, "requirements") && ext == ".txt" {
		return types.CategoryConfig
	}
	if strings.HasPrefix(base, "dockerfile") || strings.HasPrefix(lower, ".github/workflows/") {
		return types.CategoryConfig
	}
	if _, ok := docExts[ext]; ok {
		return types.CategoryDoc
	}
	if first == "docs" || first == "doc" {
		return types.CategoryDoc
	}
	if _, ok := LanguageOf(p); ok {
		if isEntrypoint(lower, stem) {
			return types.CategoryEntrypoint
		}
		return types.CategoryCoreSource
	}
	if _, ok := configExts[ext]; ok {
		return types.CategoryConfig
	}
	return types.CategoryOther
}

func isEntrypoint(lower, stem string) bool {
	if _, ok := entrypointStems[stem]; ok {
		// Deeply nested index.js files are usually module barrels.
		return strings.Count(lower, "/") <= 2 || strings.HasPrefix(lower, "cmd/")
	}
	return strings.HasPrefix(lower, "cmd/") && strings.HasSuffix(lower, "/main.go")
}
