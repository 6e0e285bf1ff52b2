package pipeline

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"repobrief/internal/apperr"
	"repobrief/internal/github"
	"repobrief/internal/logging"
	"repobrief/internal/types"
)

// Source is the read-only view of a hosted repository the pipeline needs.
// *github.Client implements it.
type Source interface {
	DefaultBranch(ctx context.Context, repo github.Repo) (string, error)
	Tree(ctx context.Context, repo github.Repo, ref string) (types.RepoTree, error)
	Content(ctx context.Context, repo github.Repo, ref, path string) ([]byte, error)
}

// fetcher downloads file contents for one request and remembers every
// result, so manifests read for evidence are not fetched twice.
type fetcher struct {
	source      Source
	repo        github.Repo
	ref         string
	tree        types.RepoTree
	maxBytes    int64
	concurrency int

	mu   sync.Mutex
	done map[string]types.FileContent
}

func newFetcher(src Source, repo github.Repo, ref string, tree types.RepoTree, maxBytes int64, concurrency int) *fetcher {
	if concurrency < 1 {
		concurrency = 1
	}
	return &fetcher{
		source:      src,
		repo:        repo,
		ref:         ref,
		tree:        tree,
		maxBytes:    maxBytes,
		concurrency: concurrency,
		done:        map[string]types.FileContent{},
	}
}

// Fetch returns the contents of paths in order. Oversized files are
// excluded without a request. Not-found and decode failures exclude only
// the file; rate limits, timeouts and cancellation abort the whole fetch.
func (f *fetcher) Fetch(ctx context.Context, paths []string) ([]types.FileContent, error) {
	out := make([]types.FileContent, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, p := range paths {
		g.Go(func() error {
			fc, err := f.one(gctx, p)
			if err != nil {
				return err
			}
			out[i] = fc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, err
	}
	return out, nil
}

func (f *fetcher) one(ctx context.Context, p string) (types.FileContent, error) {
	f.mu.Lock()
	fc, ok := f.done[p]
	f.mu.Unlock()
	if ok {
		return fc, nil
	}

	fc = types.FileContent{Path: p, SizeBytes: types.UnknownSize}
	if e, ok := f.tree.Lookup(p); ok {
		fc.SizeBytes = e.Size
	}
	if f.maxBytes > 0 && fc.SizeBytes > f.maxBytes {
		fc.Excluded = types.ExcludedOversize
		f.remember(fc)
		return fc, nil
	}

	b, err := f.source.Content(ctx, f.repo, f.ref, p)
	if err != nil {
		if fatalFetchError(err) {
			return types.FileContent{}, err
		}
		fc.Excluded = types.ExcludedFetch
		if apperr.CodeOf(err) == apperr.FileDecodeError {
			fc.Excluded = types.ExcludedDecode
		}
		logging.From(ctx).Warn("file excluded",
			slog.String("path", p), slog.String("reason", string(fc.Excluded)), slog.Any("err", err))
		f.remember(fc)
		return fc, nil
	}

	fc.SizeBytes = int64(len(b))
	switch text, ok := decodeText(b); {
	case f.maxBytes > 0 && fc.SizeBytes > f.maxBytes:
		fc.Excluded = types.ExcludedOversize
	case !ok:
		fc.Excluded = types.ExcludedDecode
		logging.From(ctx).Warn("file excluded", slog.String("path", p), slog.String("reason", string(fc.Excluded)))
	default:
		fc.Text = &text
	}
	f.remember(fc)
	return fc, nil
}

func (f *fetcher) remember(fc types.FileContent) {
	f.mu.Lock()
	f.done[fc.Path] = fc
	f.mu.Unlock()
}

// fatalFetchError reports errors that end the request instead of a single
// file.
func fatalFetchError(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	switch apperr.CodeOf(err) {
	case apperr.GitHubRateLimit, apperr.GitHubTimeout:
		return true
	}
	return false
}

// decodeText treats content as UTF-8 text. Content with NUL bytes is
// binary; other invalid sequences are replaced.
func decodeText(b []byte) (string, bool) {
	if bytes.IndexByte(b, 0) >= 0 {
		return "", false
	}
	if utf8.Valid(b) {
		return string(b), true
	}
	return strings.ToValidUTF8(string(b), "�"), true
}
