package types

import (
	"path"
	"sort"
	"strings"
)

// EntryType is the kind of a tree entry.
type EntryType string

const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// UnknownSize marks entries whose byte size the source did not report.
const UnknownSize int64 = -1

// PathEntry is one node of a repository tree. Path is repo-relative with
// forward slashes and no leading slash.
type PathEntry struct {
	Path string    `json:"path"`
	Type EntryType `json:"type"`
	Size int64     `json:"size"`
}

// IsFile reports whether the entry is a blob.
func (e PathEntry) IsFile() bool { return e.Type == EntryFile }

// Depth returns the number of directories above the entry.
func (e PathEntry) Depth() int { return strings.Count(e.Path, "/") }

// RepoTree is the ordered, de-duplicated listing of a repository at one ref.
// It is built once per request and never modified afterwards.
type RepoTree struct {
	entries []PathEntry
	index   map[string]int
	dirs    map[string]struct{}
}

// NewRepoTree normalizes entries into a RepoTree. Duplicate paths keep the
// first occurrence; empty paths are dropped. Parent directories that the
// source omitted are still known to IsDir.
func NewRepoTree(entries []PathEntry) RepoTree {
	t := RepoTree{
		entries: make([]PathEntry, 0, len(entries)),
		index:   make(map[string]int, len(entries)),
		dirs:    make(map[string]struct{}),
	}
	for _, e := range entries {
		p := NormalizePath(e.Path)
		if p == "" {
			continue
		}
		if _, dup := t.index[p]; dup {
			continue
		}
		e.Path = p
		if e.Type == "" {
			e.Type = EntryFile
		}
		t.index[p] = len(t.entries)
		t.entries = append(t.entries, e)
		if e.Type == EntryDir {
			t.dirs[p] = struct{}{}
		}
		for dir := path.Dir(p); dir != "." && dir != "/"; dir = path.Dir(dir) {
			t.dirs[dir] = struct{}{}
		}
	}
	return t
}

// NormalizePath trims whitespace, converts separators and strips leading
// "./" and "/" so paths from models and sources compare equal.
func NormalizePath(p string) string {
	p = strings.TrimSpace(p)
	p = strings.ReplaceAll(p, "\\", "/")
	for strings.HasPrefix(p, "./") {
		p = p[2:]
	}
	p = strings.TrimLeft(p, "/")
	return strings.TrimRight(p, "/")
}

// Entries returns a copy of all entries in source order.
func (t RepoTree) Entries() []PathEntry {
	out := make([]PathEntry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Files returns file entries in source order.
func (t RepoTree) Files() []PathEntry {
	out := make([]PathEntry, 0, len(t.entries))
	for _, e := range t.entries {
		if e.IsFile() {
			out = append(out, e)
		}
	}
	return out
}

// Len is the number of entries, files and directories.
func (t RepoTree) Len() int { return len(t.entries) }

// Lookup returns the entry for an exact path.
func (t RepoTree) Lookup(p string) (PathEntry, bool) {
	i, ok := t.index[NormalizePath(p)]
	if !ok {
		return PathEntry{}, false
	}
	return t.entries[i], true
}

// HasFile reports whether p is a file in the tree.
func (t RepoTree) HasFile(p string) bool {
	e, ok := t.Lookup(p)
	return ok && e.IsFile()
}

// IsDir reports whether p is a directory, listed or implied by a file path.
func (t RepoTree) IsDir(p string) bool {
	_, ok := t.dirs[NormalizePath(p)]
	return ok
}

// Has reports whether p names a file or directory of the tree.
func (t RepoTree) Has(p string) bool {
	return t.HasFile(p) || t.IsDir(p)
}

// Basenames returns the set of file basenames, lowercased.
func (t RepoTree) Basenames() map[string]struct{} {
	out := make(map[string]struct{}, len(t.entries))
	for _, e := range t.entries {
		if e.IsFile() {
			out[strings.ToLower(path.Base(e.Path))] = struct{}{}
		}
	}
	return out
}

// Dirs returns every directory path, listed or implied, sorted.
func (t RepoTree) Dirs() []string {
	out := make([]string, 0, len(t.dirs))
	for d := range t.dirs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}
