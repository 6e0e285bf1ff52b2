package techstack

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"path"
	"regexp"
	"strings"

	"github.com/go-ini/ini"
	toml "github.com/pelletier/go-toml/v2"
	"golang.org/x/mod/modfile"
	"gopkg.in/yaml.v3"

	"repobrief/internal/types"
)

// finding is one technology reported by a parser.
type finding struct {
	name string
	kind types.TechKind
}

func dep(raw string) finding {
	k := displayName(raw)
	return finding{name: k.name, kind: k.kind}
}

func tech(name string, kind types.TechKind) finding { return finding{name: name, kind: kind} }

// parser extracts findings from one file. Malformed input yields whatever
// could be recovered; it never fails the extraction.
type parser func(p string, data []byte) []finding

// parserFor picks the parser for a path by its basename.
func parserFor(p string) parser {
	base := strings.ToLower(path.Base(p))
	ext := path.Ext(base)
	switch {
	case base == "go.mod":
		return parseGoMod
	case base == "package.json":
		return parsePackageJSON
	case base == "tsconfig.json":
		return func(string, []byte) []finding { return []finding{tech("TypeScript", types.KindLanguage)} }
	case base == "pyproject.toml":
		return parsePyproject
	case base == "cargo.toml":
		return parseCargo
	case base == "pipfile":
		return parsePipfile
	case base == "setup.cfg":
		return parseSetupCfg
	case base == "setup.py":
		return parseSetupPy
	case strings.HasPrefix(base, "requirements") && ext == ".txt":
		return parseRequirements
	case base == "pom.xml":
		return parsePom
	case base == "build.gradle" || base == "build.gradle.kts":
		return parseGradle
	case base == "gemfile":
		return parseGemfile
	case base == "composer.json":
		return parseComposer
	case base == "podfile":
		return parsePodfile
	case base == "package.swift":
		return parsePackageSwift
	case strings.HasPrefix(base, "dockerfile") || ext == ".dockerfile":
		return parseDockerfile
	case isComposeFile(base):
		return parseCompose
	case base == "chart.yaml":
		return func(string, []byte) []finding {
			return []finding{tech("Helm", types.KindPlatform), tech("Kubernetes", types.KindPlatform)}
		}
	case ext == ".yaml" || ext == ".yml":
		return parseKubernetes
	}
	return nil
}

func isComposeFile(base string) bool {
	switch base {
	case "docker-compose.yml", "docker-compose.yaml", "compose.yml", "compose.yaml":
		return true
	}
	return strings.HasPrefix(base, "docker-compose.") && (strings.HasSuffix(base, ".yml") || strings.HasSuffix(base, ".yaml"))
}

// IsManifest reports whether p is a dependency or configuration file the
// extractor can parse. Plain YAML files are excluded: they only count when
// they were selected for other reasons.
func IsManifest(p string) bool {
	base := strings.ToLower(path.Base(p))
	ext := path.Ext(base)
	if ext == ".yaml" || ext == ".yml" {
		return isComposeFile(base) || base == "chart.yaml"
	}
	return parserFor(p) != nil
}

func parseGoMod(p string, data []byte) []finding {
	out := []finding{tech("Go", types.KindLanguage)}
	f, err := modfile.ParseLax(p, data, nil)
	if err != nil {
		return out
	}
	for _, r := range f.Require {
		if r == nil || r.Indirect {
			continue
		}
		out = append(out, dep(r.Mod.Path))
	}
	return out
}

// pep508Name matches the distribution name at the start of a requirement.
var pep508Name = regexp.MustCompile(`^\s*([A-Za-z0-9][A-Za-z0-9._-]*)`)

func requirementName(line string) string {
	line = strings.TrimSpace(line)
	if i := strings.Index(line, "#"); i >= 0 {
		line = line[:i]
	}
	if line == "" || strings.HasPrefix(line, "-") || strings.Contains(line, "://") {
		return ""
	}
	m := pep508Name.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return strings.ToLower(m[1])
}

func pythonDeps(names []string) []finding {
	out := []finding{tech("Python", types.KindLanguage)}
	for _, n := range names {
		if n = requirementName(n); n != "" && n != "python" {
			out = append(out, dep(n))
		}
	}
	return out
}

func parseRequirements(_ string, data []byte) []finding {
	return pythonDeps(strings.Split(string(data), "\n"))
}

func parsePyproject(_ string, data []byte) []finding {
	var doc struct {
		Project struct {
			Dependencies         []string            `toml:"dependencies"`
			OptionalDependencies map[string][]string `toml:"optional-dependencies"`
		} `toml:"project"`
		Tool struct {
			Poetry struct {
				Dependencies    map[string]any `toml:"dependencies"`
				DevDependencies map[string]any `toml:"dev-dependencies"`
				Group           map[string]struct {
					Dependencies map[string]any `toml:"dependencies"`
				} `toml:"group"`
			} `toml:"poetry"`
		} `toml:"tool"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return []finding{tech("Python", types.KindLanguage)}
	}
	names := append([]string{}, doc.Project.Dependencies...)
	for _, group := range doc.Project.OptionalDependencies {
		names = append(names, group...)
	}
	for name := range doc.Tool.Poetry.Dependencies {
		names = append(names, name)
	}
	for name := range doc.Tool.Poetry.DevDependencies {
		names = append(names, name)
	}
	for _, g := range doc.Tool.Poetry.Group {
		for name := range g.Dependencies {
			names = append(names, name)
		}
	}
	return pythonDeps(names)
}

func parsePipfile(_ string, data []byte) []finding {
	var doc struct {
		Packages    map[string]any `toml:"packages"`
		DevPackages map[string]any `toml:"dev-packages"`
	}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return []finding{tech("Python", types.KindLanguage)}
	}
	var names []string
	for name := range doc.Packages {
		names = append(names, name)
	}
	for name := range doc.DevPackages {
		names = append(names, name)
	}
	return pythonDeps(names)
}

func parseSetupCfg(_ string, data []byte) []finding {
	cfg, err := ini.LoadSources(ini.LoadOptions{
		AllowPythonMultilineValues: true,
		IgnoreInlineComment:        true,
		Loose:                      true,
	}, data)
	if err != nil {
		return []finding{tech("Python", types.KindLanguage)}
	}
	raw := cfg.Section("options").Key("install_requires").String()
	return pythonDeps(strings.Split(raw, "\n"))
}

var (
	setupPyRequires = regexp.MustCompile(`(?s)install_requires\s*=\s*\[(.*?)\]`)
	quoted          = regexp.MustCompile(`["']([^"']+)["']`)
)

func parseSetupPy(_ string, data []byte) []finding {
	var names []string
	for _, block := range setupPyRequires.FindAllSubmatch(data, -1) {
		for _, q := range quoted.FindAllSubmatch(block[1], -1) {
			names = append(names, string(q[1]))
		}
	}
	return pythonDeps(names)
}

func parsePackageJSON(_ string, data []byte) []finding {
	var doc struct {
		Dependencies     map[string]any `json:"dependencies"`
		DevDependencies  map[string]any `json:"devDependencies"`
		PeerDependencies map[string]any `json:"peerDependencies"`
	}
	out := []finding{tech("Node.js", types.KindPlatform)}
	if err := json.Unmarshal(data, &doc); err != nil {
		return out
	}
	for _, m := range []map[string]any{doc.Dependencies, doc.DevDependencies, doc.PeerDependencies} {
		for name := range m {
			out = append(out, dep(name))
		}
	}
	return out
}

func parseComposer(_ string, data []byte) []finding {
	var doc struct {
		Require    map[string]any `json:"require"`
		RequireDev map[string]any `json:"require-dev"`
	}
	out := []finding{tech("PHP", types.KindLanguage), tech("Composer", types.KindPlatform)}
	if err := json.Unmarshal(data, &doc); err != nil {
		return out
	}
	for _, m := range []map[string]any{doc.Require, doc.RequireDev} {
		for name := range m {
			if name == "php" || strings.HasPrefix(name, "ext-") {
				continue
			}
			out = append(out, dep(name))
		}
	}
	return out
}

func parseCargo(_ string, data []byte) []finding {
	var doc struct {
		Dependencies      map[string]any `toml:"dependencies"`
		DevDependencies   map[string]any `toml:"dev-dependencies"`
		BuildDependencies map[string]any `toml:"build-dependencies"`
		Workspace         struct {
			Dependencies map[string]any `toml:"dependencies"`
		} `toml:"workspace"`
	}
	out := []finding{tech("Rust", types.KindLanguage), tech("Cargo", types.KindPlatform)}
	if err := toml.Unmarshal(data, &doc); err != nil {
		return out
	}
	for _, m := range []map[string]any{doc.Dependencies, doc.DevDependencies, doc.BuildDependencies, doc.Workspace.Dependencies} {
		for name := range m {
			out = append(out, dep(name))
		}
	}
	return out
}

func parsePom(_ string, data []byte) []finding {
	type artifact struct {
		GroupID    string `xml:"groupId"`
		ArtifactID string `xml:"artifactId"`
	}
	var doc struct {
		Parent       artifact   `xml:"parent"`
		Dependencies []artifact `xml:"dependencies>dependency"`
		Managed      []artifact `xml:"dependencyManagement>dependencies>dependency"`
	}
	out := []finding{tech("Java", types.KindLanguage), tech("Maven", types.KindPlatform)}
	if err := xml.Unmarshal(data, &doc); err != nil {
		return out
	}
	if doc.Parent.ArtifactID != "" {
		out = append(out, dep(doc.Parent.ArtifactID))
	}
	for _, a := range append(doc.Dependencies, doc.Managed...) {
		if a.ArtifactID != "" {
			out = append(out, dep(a.ArtifactID))
		}
	}
	return out
}

var gradleDep = regexp.MustCompile(`(?m)^\s*(?:implementation|api|compileOnly|runtimeOnly|testImplementation|testRuntimeOnly|kapt|ksp|annotationProcessor)\s*\(?\s*["']([^:"'\s]+):([^:"'\s]+)`)

func parseGradle(p string, data []byte) []finding {
	out := []finding{tech("Gradle", types.KindPlatform)}
	if strings.HasSuffix(strings.ToLower(p), ".kts") {
		out = append(out, tech("Kotlin", types.KindLanguage))
	}
	for _, m := range gradleDep.FindAllSubmatch(data, -1) {
		out = append(out, dep(string(m[2])))
	}
	return out
}

var gemLine = regexp.MustCompile(`(?m)^\s*gem\s+["']([^"']+)["']`)

func parseGemfile(_ string, data []byte) []finding {
	out := []finding{tech("Ruby", types.KindLanguage), tech("Bundler", types.KindPlatform)}
	for _, m := range gemLine.FindAllSubmatch(data, -1) {
		out = append(out, dep(string(m[1])))
	}
	return out
}

var podLine = regexp.MustCompile(`(?m)^\s*pod\s+["']([^"']+)["']`)

func parsePodfile(_ string, data []byte) []finding {
	out := []finding{tech("CocoaPods", types.KindPlatform)}
	for _, m := range podLine.FindAllSubmatch(data, -1) {
		out = append(out, dep(string(m[1])))
	}
	return out
}

var swiftPackage = regexp.MustCompile(`\.package\s*\([^)]*?url:\s*"([^"]+)"`)

func parsePackageSwift(_ string, data []byte) []finding {
	out := []finding{tech("Swift", types.KindLanguage), tech("Swift Package Manager", types.KindPlatform)}
	for _, m := range swiftPackage.FindAllSubmatch(data, -1) {
		u := strings.TrimSuffix(strings.TrimRight(string(m[1]), "/"), ".git")
		if name := path.Base(u); name != "" && name != "." {
			out = append(out, dep(name))
		}
	}
	return out
}

var dockerFrom = regexp.MustCompile(`(?im)^\s*FROM\s+(?:--platform=\S+\s+)?(\S+)`)

func parseDockerfile(_ string, data []byte) []finding {
	out := []finding{tech("Docker", types.KindPlatform)}
	for _, m := range dockerFrom.FindAllSubmatch(data, -1) {
		if k, ok := imageName(string(m[1])); ok {
			out = append(out, finding{name: k.name, kind: k.kind})
		}
	}
	return out
}

func parseCompose(_ string, data []byte) []finding {
	var doc struct {
		Services map[string]struct {
			Image string `yaml:"image"`
		} `yaml:"services"`
	}
	out := []finding{tech("Docker Compose", types.KindPlatform), tech("Docker", types.KindPlatform)}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return out
	}
	for _, svc := range doc.Services {
		if k, ok := imageName(svc.Image); ok {
			out = append(out, finding{name: k.name, kind: k.kind})
		}
	}
	return out
}

// parseKubernetes recognizes manifests: any YAML document carrying both
// apiVersion and kind at the top level.
func parseKubernetes(_ string, data []byte) []finding {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	for {
		var doc struct {
			APIVersion string `yaml:"apiVersion"`
			Kind       string `yaml:"kind"`
		}
		err := dec.Decode(&doc)
		if errors.Is(err, io.EOF) {
			return nil
		}
		var typeErr *yaml.TypeError
		if errors.As(err, &typeErr) {
			continue
		}
		if err != nil {
			return nil
		}
		if doc.APIVersion != "" && doc.Kind != "" {
			return []finding{tech("Kubernetes", types.KindPlatform)}
		}
	}
}
