package grounding

import (
	"regexp"
	"strings"
	"unicode"

	"repobrief/internal/types"
)

// maxUnbackedExtras caps technologies kept only because the context text
// names them.
const maxUnbackedExtras = 2

var aliases = map[string]string{
	"golang":          "go",
	"py":              "python",
	"python3":         "python",
	"node":            "nodejs",
	"js":              "javascript",
	"ecmascript":      "javascript",
	"ts":              "typescript",
	"reactjs":         "react",
	"vuejs":           "vue",
	"postgres":        "postgresql",
	"psql":            "postgresql",
	"mongo":           "mongodb",
	"k8s":             "kubernetes",
	"helmcharts":      "helm",
	"dockerfile":      "docker",
	"githubworkflows": "githubactions",
	"ghactions":       "githubactions",
	"tailwind":        "tailwindcss",
	"huggingface":     "huggingfacetransformers",
	"transformers":    "huggingfacetransformers",
	"sklearn":         "scikitlearn",
	"spring":          "springboot",
	"rails":           "rubyonrails",
	"csharp":          "c#",
	"dotnet":          "c#",
	"cplusplus":       "c++",
	"cpp":             "c++",
	"shellscript":     "shell",
	"bash":            "shell",
	"makefile":        "make",
	"grpcgo":          "grpc",
	"protobuf":        "protocolbuffers",
	"tf":              "terraform",
}

// genericSegments are path segments too vague to identify a dependency.
var genericSegments = map[string]struct{}{
	"core": {}, "client": {}, "common": {}, "utils": {}, "util": {}, "api": {},
	"sdk":  {}, "lib": {}, "cli": {}, "server": {}, "types": {}, "go": {},
}

var (
	reParen   = regexp.MustCompile(`\s*\([^)]*\)`)
	reVersion = regexp.MustCompile(`(?i)(\s+v?\d+(\.\d+)*(\.x)?\+?|@[\w.^~-]+|\s*[<>=~^]=?\s*\d[\w.]*)$`)
	reSpaces  = regexp.MustCompile(`\s+`)
)

// normalizeTech cleans a claimed technology name for display.
func normalizeTech(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.Trim(s, "`\"'*")
	s = reParen.ReplaceAllString(s, "")
	s = reVersion.ReplaceAllString(s, "")
	s = reSpaces.ReplaceAllString(s, " ")
	return strings.Trim(s, " ,;:.-")
}

// techKey reduces a name to a comparison key: lowercase alphanumerics plus
// '+' and '#', so "Node.js", "NodeJS" and "nodejs" compare equal.
// TechKey returns the comparison key of a technology name, so "Golang",
// "go" and "Go 1.22" share one key.
func TechKey(name string) string { return techKey(normalizeTech(name)) }

func techKey(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '+' || r == '#' {
			b.WriteRune(r)
		}
	}
	k := b.String()
	if a, ok := aliases[k]; ok {
		return a
	}
	return k
}

// evidenceIndex resolves claim keys to evidence names.
type evidenceIndex map[string]string

func indexEvidence(ev types.TechnologyEvidence) evidenceIndex {
	idx := evidenceIndex{}
	// Full names win over path segments, so index them in a second pass.
	for name := range ev {
		if seg := lastSegment(name); seg != "" {
			if k := techKey(seg); k != "" {
				if _, taken := idx[k]; !taken {
					idx[k] = name
				}
			}
		}
	}
	for name := range ev {
		if k := techKey(name); k != "" {
			idx[k] = name
		}
	}
	return idx
}

// lastSegment returns the identifying segment of a module path such as
// "github.com/labstack/echo/v4" (echo) or "@nestjs/core" (empty: generic).
func lastSegment(name string) string {
	if !strings.Contains(name, "/") {
		return ""
	}
	parts := strings.Split(strings.Trim(name, "/"), "/")
	for i := len(parts) - 1; i >= 0; i-- {
		seg := strings.ToLower(parts[i])
		if isMajorVersion(seg) {
			continue
		}
		if _, generic := genericSegments[seg]; generic {
			return ""
		}
		return strings.TrimPrefix(seg, "@")
	}
	return ""
}

func isMajorVersion(seg string) bool {
	if len(seg) < 2 || seg[0] != 'v' {
		return false
	}
	for _, r := range seg[1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// mentions reports whether text contains name as a whole word,
// case-insensitively.
func mentions(text, name string) bool {
	if name == "" || text == "" {
		return false
	}
	re, err := regexp.Compile(`(?i)(^|[^\pL\pN_])` + regexp.QuoteMeta(name) + `($|[^\pL\pN_])`)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

// validateTechnologies keeps claims backed by evidence and at most
// maxUnbackedExtras claims named verbatim in the context. It returns the
// kept names and how many claims were considered.
func validateTechnologies(claims []string, ev types.TechnologyEvidence, contextText string) ([]string, int) {
	idx := indexEvidence(ev)
	seen := map[string]struct{}{}
	var (
		kept    []string
		claimed int
		extras  int
	)
	for _, raw := range claims {
		name := normalizeTech(raw)
		key := techKey(name)
		if key == "" {
			continue
		}
		claimed++
		if target, ok := idx[key]; ok {
			key = "ev:" + strings.ToLower(target)
		}
		if _, dup := seen[key]; dup {
			continue
		}
		switch {
		case strings.HasPrefix(key, "ev:"):
		case extras < maxUnbackedExtras && mentions(contextText, name):
			extras++
		default:
			continue
		}
		seen[key] = struct{}{}
		kept = append(kept, name)
	}
	return kept, claimed
}
