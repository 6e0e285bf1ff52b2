// Package github reads repository metadata, trees and file contents through
// the GitHub REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	gh "github.com/google/go-github/github"
	"golang.org/x/oauth2"

	"repobrief/internal/apperr"
	"repobrief/internal/config"
	"repobrief/internal/logging"
	"repobrief/internal/types"
)

var (
	// ErrFileNotFound means a single path could not be found at the ref.
	ErrFileNotFound = errors.New("github: file not found")
	// ErrDecode means the API returned content that could not be decoded.
	ErrDecode = errors.New("github: cannot decode content")
)

// Client wraps go-github with per-call timeouts, rate-limit backoff and
// error classification.
type Client struct {
	gh          *gh.Client
	timeout     time.Duration
	maxAttempts int
	backoff     time.Duration
}

// New builds a client from cfg. A non-empty token authenticates every call.
func New(cfg config.GitHubConfig) (*Client, error) {
	var httpClient *http.Client
	if cfg.Token != "" {
		httpClient = oauth2.NewClient(context.Background(), oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token}))
	}
	return NewWithHTTPClient(httpClient, cfg)
}

// NewWithHTTPClient is New with a caller supplied transport.
func NewWithHTTPClient(httpClient *http.Client, cfg config.GitHubConfig) (*Client, error) {
	c := gh.NewClient(httpClient)
	if cfg.BaseURL != "" {
		u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("github: base url: %w", err)
		}
		c.BaseURL = u
	}
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return &Client{gh: c, timeout: cfg.Timeout, maxAttempts: attempts, backoff: cfg.BackoffBase}, nil
}

// DefaultBranch returns the repository's default branch, "main" when the API
// leaves it empty.
func (c *Client) DefaultBranch(ctx context.Context, repo Repo) (string, error) {
	var branch string
	err := c.do(ctx, "repository", func(ctx context.Context) error {
		r, _, err := c.gh.Repositories.Get(ctx, repo.Owner, repo.Name)
		if err != nil {
			return err
		}
		branch = r.GetDefaultBranch()
		return nil
	})
	if err != nil {
		return "", c.classify(err, repo, "")
	}
	if branch == "" {
		branch = "main"
	}
	return branch, nil
}

// Tree returns the recursive listing at ref. Blobs become files and trees
// become directories; submodules and other entry types are skipped.
func (c *Client) Tree(ctx context.Context, repo Repo, ref string) (types.RepoTree, error) {
	var tree *gh.Tree
	err := c.do(ctx, "tree", func(ctx context.Context) error {
		t, _, err := c.gh.Git.GetTree(ctx, repo.Owner, repo.Name, ref, true)
		tree = t
		return err
	})
	if err != nil {
		return types.RepoTree{}, c.classify(err, repo, "")
	}
	if tree == nil || len(tree.Entries) == 0 {
		return types.RepoTree{}, apperr.New(apperr.GitHubAPIError, "repository tree is empty").
			WithDetail("repository", repo.String()).WithDetail("ref", ref)
	}
	entries := make([]types.PathEntry, 0, len(tree.Entries))
	for _, e := range tree.Entries {
		switch e.GetType() {
		case "blob":
			size := int64(types.UnknownSize)
			if e.Size != nil {
				size = int64(e.GetSize())
			}
			entries = append(entries, types.PathEntry{Path: e.GetPath(), Type: types.EntryFile, Size: size})
		case "tree":
			entries = append(entries, types.PathEntry{Path: e.GetPath(), Type: types.EntryDir, Size: types.UnknownSize})
		}
	}
	return types.NewRepoTree(entries), nil
}

// Content returns the raw bytes of one file at ref.
func (c *Client) Content(ctx context.Context, repo Repo, ref, path string) ([]byte, error) {
	var text string
	err := c.do(ctx, "content", func(ctx context.Context) error {
		fc, _, _, err := c.gh.Repositories.GetContents(ctx, repo.Owner, repo.Name, path, &gh.RepositoryContentGetOptions{Ref: ref})
		if err != nil {
			return err
		}
		if fc == nil {
			return fmt.Errorf("%w: %s is not a file", ErrFileNotFound, path)
		}
		s, err := fc.GetContent()
		if err != nil {
			return fmt.Errorf("%w: %v", ErrDecode, err)
		}
		text = s
		return nil
	})
	if err != nil {
		return nil, c.classify(err, repo, path)
	}
	return []byte(text), nil
}

// do runs call with a per-attempt timeout and retries rate-limited attempts
// with exponential backoff. When GitHub names a reset time the wait stretches
// to it, and a reset beyond the remaining backoff budget fails at once: the
// go-github client refuses to send before the reset. Other failures return
// at once.
func (c *Client) do(ctx context.Context, what string, call func(context.Context) error) error {
	budget := c.backoff * time.Duration(1<<(c.maxAttempts-1)-1)
	var (
		err   error
		spent time.Duration
	)
	for attempt := 0; ; attempt++ {
		err = c.attempt(ctx, call)
		if err == nil || !isRateLimited(err) || attempt+1 >= c.maxAttempts {
			return err
		}
		wait := c.backoff * time.Duration(1<<attempt)
		if until, ok := rateLimitWait(err, time.Now()); ok {
			if until > budget-spent {
				return err
			}
			if until > wait {
				wait = until
			}
		}
		logging.From(ctx).Info("github rate limited, backing off", "call", what, "attempt", attempt+2, "wait", wait)
		if serr := sleep(ctx, wait); serr != nil {
			return serr
		}
		spent += wait
	}
}

// rateLimitWait returns how long GitHub asked the caller to hold off, from
// the rate reset time or a Retry-After header.
func rateLimitWait(err error, now time.Time) (time.Duration, bool) {
	var (
		rl    *gh.RateLimitError
		abuse *gh.AbuseRateLimitError
		er    *gh.ErrorResponse
	)
	switch {
	case errors.As(err, &rl):
		if rl.Rate.Reset.Time.IsZero() {
			return 0, false
		}
		return nonNegative(rl.Rate.Reset.Time.Sub(now)), true
	case errors.As(err, &abuse):
		if abuse.RetryAfter == nil {
			return 0, false
		}
		return nonNegative(*abuse.RetryAfter), true
	case errors.As(err, &er) && er.Response != nil:
		h := er.Response.Header
		if v, perr := strconv.ParseInt(h.Get("Retry-After"), 10, 64); perr == nil {
			return nonNegative(time.Duration(v) * time.Second), true
		}
		if h.Get("X-RateLimit-Remaining") == "0" {
			if v, perr := strconv.ParseInt(h.Get("X-RateLimit-Reset"), 10, 64); perr == nil && v > 0 {
				return nonNegative(time.Unix(v, 0).Sub(now)), true
			}
		}
	}
	return 0, false
}

func nonNegative(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	return d
}

func (c *Client) attempt(ctx context.Context, call func(context.Context) error) error {
	if c.timeout <= 0 {
		return call(ctx)
	}
	cctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	err := call(cctx)
	if err != nil && ctx.Err() == nil && cctx.Err() != nil {
		return errTimeout{err}
	}
	return err
}

type errTimeout struct{ err error }

func (e errTimeout) Error() string { return "github: timeout: " + e.err.Error() }
func (e errTimeout) Unwrap() error { return e.err }

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func isRateLimited(err error) bool {
	var rl *gh.RateLimitError
	var abuse *gh.AbuseRateLimitError
	if errors.As(err, &rl) || errors.As(err, &abuse) {
		return true
	}
	var er *gh.ErrorResponse
	if errors.As(err, &er) && er.Response != nil {
		if er.Response.StatusCode == http.StatusTooManyRequests {
			return true
		}
		return er.Response.StatusCode == http.StatusForbidden && er.Response.Header.Get("X-RateLimit-Remaining") == "0"
	}
	return false
}

// classify maps a failed call to a coded error. path is empty for
// repository level calls.
func (c *Client) classify(err error, repo Repo, path string) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	with := func(e *apperr.Error) *apperr.Error {
		e = e.WithDetail("repository", repo.String())
		if path != "" {
			e = e.WithDetail("path", path)
		}
		return e
	}
	var (
		to errTimeout
		er *gh.ErrorResponse
	)
	switch {
	case errors.As(err, &to):
		return with(apperr.Wrap(apperr.GitHubTimeout, "GitHub did not answer in time", err))
	case isRateLimited(err):
		return with(apperr.Wrap(apperr.GitHubRateLimit, "GitHub rate limit exceeded", err))
	case errors.Is(err, ErrDecode):
		return with(apperr.Wrap(apperr.FileDecodeError, "cannot decode file content", err))
	case errors.Is(err, ErrFileNotFound):
		return with(apperr.Wrap(apperr.GitHubAPIError, "path is not a file", err))
	case errors.As(err, &er) && er.Response != nil && er.Response.StatusCode == http.StatusNotFound:
		if path != "" {
			return with(apperr.Wrap(apperr.GitHubAPIError, "file not found", fmt.Errorf("%w: %v", ErrFileNotFound, err)))
		}
		return with(apperr.Wrap(apperr.RepoNotFound, "repository not found or not public", err))
	case errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.As(err, &er) && er.Response != nil:
		return with(apperr.Wrap(apperr.GitHubAPIError, "GitHub API error", err)).WithDetail("status", er.Response.StatusCode)
	default:
		return with(apperr.Wrap(apperr.GitHubAPIError, "GitHub request failed", err))
	}
}
