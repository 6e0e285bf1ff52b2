package grounding

import (
	"path"
	"regexp"
	"strings"

	"repobrief/internal/types"
)

const (
	generalizedSuffix   = " (generalized from available repository evidence)."
	generalizedFallback = "Repository structure includes generic source, configuration, and docs areas."
)

// genericTerms mark a statement as describing layout in general terms, so an
// unverifiable path in it can be dropped without losing the point.
var genericTerms = []string{
	"project", "repository", "codebase", "source", "module", "component",
	"service", "api", "docs", "documentation", "tests", "config", "configuration",
}

var commonExts = map[string]struct{}{
	"py": {}, "md": {}, "rst": {}, "txt": {}, "toml": {}, "json": {}, "yml": {},
	"yaml": {}, "ini": {}, "cfg": {}, "xml": {}, "go": {}, "rs": {}, "js": {},
	"ts": {}, "tsx": {}, "jsx": {}, "java": {}, "sh": {},
}

// notPaths are dotted tokens that read like file names but are not.
var notPaths = map[string]struct{}{
	"e.g": {}, "i.e": {}, "etc": {}, "vs": {},
}

var (
	reURL      = regexp.MustCompile(`(?i)\bhttps?://\S+`)
	reVersionT = regexp.MustCompile(`^v?\d+(\.\d+)+$`)
)

const tokenTrim = ".,:;()[]{}`\"'*"

// pathChecker decides whether tokens refer to repository paths and whether
// those paths exist.
type pathChecker struct {
	exts      map[string]struct{}
	paths     map[string]struct{}
	basenames map[string]struct{}
	dirNames  map[string]struct{}
	techKeys  map[string]struct{}
}

func newPathChecker(tree types.RepoTree, ev types.TechnologyEvidence) *pathChecker {
	exts := make(map[string]struct{}, len(commonExts))
	for e := range commonExts {
		exts[e] = struct{}{}
	}
	for _, f := range tree.Files() {
		if ext := strings.TrimPrefix(strings.ToLower(path.Ext(f.Path)), "."); ext != "" {
			exts[ext] = struct{}{}
		}
	}
	paths := map[string]struct{}{}
	for _, e := range tree.Entries() {
		paths[strings.ToLower(e.Path)] = struct{}{}
	}
	dirNames := map[string]struct{}{}
	for _, d := range tree.Dirs() {
		paths[strings.ToLower(d)] = struct{}{}
		dirNames[strings.ToLower(path.Base(d))] = struct{}{}
	}
	keys := map[string]struct{}{"nodejs": {}, "nextjs": {}, "vuejs": {}, "threejs": {}, "socketio": {}, "aspnet": {}}
	for name := range ev {
		keys[techKey(name)] = struct{}{}
	}
	return &pathChecker{exts: exts, paths: paths, basenames: tree.Basenames(), dirNames: dirNames, techKeys: keys}
}

// isPathToken reports whether tok reads as a file or directory reference.
func (c *pathChecker) isPathToken(tok string) bool {
	if tok == "" {
		return false
	}
	if strings.Contains(tok, "/") {
		return c.isSlashPath(tok)
	}
	lower := strings.ToLower(tok)
	if _, skip := notPaths[lower]; skip || reVersionT.MatchString(lower) {
		return false
	}
	dot := strings.LastIndexByte(tok, '.')
	if dot < 0 {
		return false
	}
	if _, tech := c.techKeys[techKey(tok)]; tech && !c.exists(tok) {
		return false
	}
	stem, ext := tok[:dot], strings.ToLower(tok[dot+1:])
	if len(stem) <= 1 {
		return false
	}
	_, known := c.exts[ext]
	return known
}

// isSlashPath separates paths such as src/app.py or docs/ from slash-joined
// words such as CI/CD or client/server.
func (c *pathChecker) isSlashPath(tok string) bool {
	if strings.HasPrefix(tok, "./") || strings.HasPrefix(tok, "/") || strings.HasSuffix(tok, "/") || c.exists(tok) {
		return true
	}
	var segs []string
	for _, seg := range strings.Split(tok, "/") {
		if seg != "" {
			segs = append(segs, seg)
		}
	}
	if len(segs) < 2 {
		return len(segs) == 1
	}
	if len(segs) > 2 {
		return true
	}
	last := segs[len(segs)-1]
	if dot := strings.LastIndexByte(last, '.'); dot > 0 {
		if _, known := c.exts[strings.ToLower(last[dot+1:])]; known {
			return true
		}
	}
	for _, seg := range segs {
		if _, ok := c.dirNames[strings.ToLower(seg)]; ok {
			return true
		}
		if strings.ContainsAny(seg, "_-.") {
			return true
		}
	}
	return false
}

// exists reports whether tok names a tree path or a file basename.
func (c *pathChecker) exists(tok string) bool {
	p := strings.TrimSuffix(strings.TrimPrefix(tok, "./"), "/")
	lower := strings.ToLower(p)
	if _, ok := c.paths[lower]; ok {
		return true
	}
	if !strings.Contains(p, "/") {
		_, ok := c.basenames[lower]
		return ok
	}
	return false
}

// refs returns the path tokens in s.
func (c *pathChecker) refs(s string) []string {
	s = reURL.ReplaceAllString(s, " ")
	var out []string
	for _, f := range strings.Fields(s) {
		tok := strings.Trim(f, tokenTrim)
		if c.isPathToken(tok) {
			out = append(out, tok)
		}
	}
	return out
}

// groundStatement returns the statement to keep, whether it is fully
// verified, and whether it survives at all.
func (c *pathChecker) groundStatement(s string) (string, bool, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", false, false
	}
	refs := c.refs(s)
	var unknown []string
	for _, r := range refs {
		if !c.exists(r) {
			unknown = append(unknown, r)
		}
	}
	switch {
	case len(unknown) == 0:
		return s, true, true
	case len(unknown) < len(refs):
		return strip(s, unknown) + ".", false, true
	case !hasGenericTerm(s):
		return "", false, false
	}
	return soften(s, refs), false, true
}

func hasGenericTerm(s string) bool {
	lower := strings.ToLower(s)
	for _, t := range genericTerms {
		if mentions(lower, t) {
			return true
		}
	}
	return false
}

// danglingWords are connectives left at the end of a statement once the
// path they pointed at is gone.
var danglingWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "at": {}, "by": {}, "from": {}, "in": {}, "into": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "to": {}, "under": {}, "via": {}, "with": {},
}

// strip removes the given path references from s.
func strip(s string, refs []string) string {
	drop := make(map[string]struct{}, len(refs))
	for _, r := range refs {
		drop[r] = struct{}{}
	}
	var words []string
	for _, f := range strings.Fields(s) {
		if _, ok := drop[strings.Trim(f, tokenTrim)]; ok {
			continue
		}
		words = append(words, f)
	}
	for len(words) > 0 {
		last := strings.ToLower(strings.Trim(words[len(words)-1], tokenTrim))
		if _, ok := danglingWords[last]; !ok {
			break
		}
		words = words[:len(words)-1]
	}
	return strings.Trim(strings.Join(words, " "), " ,;:-.")
}

// soften removes unverifiable path references from s and marks the rest as
// generalized.
func soften(s string, refs []string) string {
	out := strip(s, refs)
	if out == "" {
		return generalizedFallback
	}
	return out + generalizedSuffix
}

// groundStructure filters structure statements and returns the kept
// statements, the number verified, and the number claimed.
func groundStructure(claims []string, c *pathChecker) ([]string, int, int) {
	var (
		kept     []string
		verified int
		claimed  int
	)
	seen := map[string]struct{}{}
	for _, raw := range claims {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		claimed++
		s, ok, keep := c.groundStatement(raw)
		if !keep {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		kept = append(kept, s)
		if ok {
			verified++
		}
	}
	return kept, verified, claimed
}
