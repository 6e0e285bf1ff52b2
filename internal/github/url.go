package github

import (
	"regexp"
	"strings"

	"repobrief/internal/apperr"
)

// Repo identifies a repository on GitHub.
type Repo struct {
	Owner string
	Name  string
}

func (r Repo) String() string { return r.Owner + "/" + r.Name }

var reRepoURL = regexp.MustCompile(`^https?://(?:www\.)?github\.com/([A-Za-z0-9_.-]+)/([A-Za-z0-9_.-]+?)(?:\.git)?/?$`)

// ParseURL accepts https://github.com/{owner}/{repo} with an optional "www.",
// ".git" suffix or trailing slash.
func ParseURL(raw string) (Repo, error) {
	s := strings.TrimSpace(raw)
	m := reRepoURL.FindStringSubmatch(s)
	if m == nil || m[1] == "." || m[1] == ".." || m[2] == "." || m[2] == ".." {
		return Repo{}, apperr.New(apperr.InvalidGitHubURL, "expected a URL like https://github.com/{owner}/{repo}").
			WithDetail("github_url", raw)
	}
	return Repo{Owner: m[1], Name: m[2]}, nil
}
