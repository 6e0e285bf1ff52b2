package budget

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"repobrief/internal/config"
	"repobrief/internal/logging"
	"repobrief/internal/types"
)

// ChunkRequest is one slice of an oversized file handed to a summarizer.
type ChunkRequest struct {
	Path  string
	Index int
	Total int
	Text  string
}

// ChunkSummarizer condenses one chunk. Implementations are called
// concurrently.
type ChunkSummarizer interface {
	SummarizeChunk(ctx context.Context, req ChunkRequest) (string, error)
}

// ChunkSummarizerFunc adapts a function to ChunkSummarizer.
type ChunkSummarizerFunc func(ctx context.Context, req ChunkRequest) (string, error)

func (f ChunkSummarizerFunc) SummarizeChunk(ctx context.Context, req ChunkRequest) (string, error) {
	return f(ctx, req)
}

// Chunker turns fetched files into budget-ready documents.
type Chunker struct {
	limits      config.Limits
	est         Estimator
	summarizer  ChunkSummarizer
	concurrency int
}

// NewChunker builds a Chunker. concurrency bounds in-flight summaries per
// document.
func NewChunker(limits config.Limits, summarizer ChunkSummarizer, concurrency int) *Chunker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Chunker{
		limits:      limits,
		est:         NewEstimator(limits.CharsPerToken),
		summarizer:  summarizer,
		concurrency: concurrency,
	}
}

// Estimator exposes the estimator used for every decision.
func (c *Chunker) Estimator() Estimator { return c.est }

// Prepare builds one document per included file, in plan order. Files over
// MaxFileTokens are split into ChunkTokens-sized chunks and each chunk is
// replaced by its summary, preserving chunk order. A chunk whose summary
// fails keeps a truncated excerpt of its raw text instead.
func (c *Chunker) Prepare(ctx context.Context, files []types.FileContent, plan types.SelectionPlan, cls types.Classification) ([]types.ChunkedDocument, error) {
	byPath := make(map[string]types.FileContent, len(files))
	for _, f := range files {
		byPath[f.Path] = f
	}

	docs := make([]types.ChunkedDocument, 0, len(plan.Paths))
	for _, pp := range plan.Paths {
		f, ok := byPath[pp.Path]
		if !ok || !f.Included() {
			continue
		}
		doc := types.ChunkedDocument{Path: f.Path, Tier: cls.TierOf(f.Path), Rank: pp.Rank}
		text := *f.Text
		tokens := c.est.Tokens(text)
		if tokens <= c.limits.MaxFileTokens {
			if tokens > 0 {
				doc.Chunks = []types.Chunk{{Text: text, EstimatedTokens: tokens}}
			}
			docs = append(docs, doc)
			continue
		}

		chunks, err := c.summarize(ctx, f.Path, c.est.Split(text, c.limits.ChunkTokens))
		if err != nil {
			return nil, err
		}
		doc.Chunks = chunks
		doc.Summarized = true
		docs = append(docs, doc)
	}
	return docs, nil
}

func (c *Chunker) summarize(ctx context.Context, path string, raw []types.Chunk) ([]types.Chunk, error) {
	log := logging.From(ctx)
	out := make([]types.Chunk, len(raw))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i := range raw {
		g.Go(func() error {
			req := ChunkRequest{Path: path, Index: i, Total: len(raw), Text: raw[i].Text}
			var (
				summary string
				err     error
			)
			if c.summarizer == nil {
				err = errors.New("budget: no chunk summarizer")
			} else {
				summary, err = c.summarizer.SummarizeChunk(gctx, req)
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return ctxErr
				}
				log.Warn("chunk summary failed; using excerpt",
					slog.String("path", path), slog.Int("chunk", i), slog.Any("err", err))
				summary = c.excerpt(raw[i].Text)
			}
			out[i] = types.Chunk{Text: summary, EstimatedTokens: c.est.Tokens(summary)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// excerpt keeps the head of a chunk within a quarter of the chunk budget.
func (c *Chunker) excerpt(text string) string {
	limit := c.est.Bytes(c.limits.ChunkTokens / 4)
	if limit <= 0 || len(text) <= limit {
		return text
	}
	parts := c.est.Split(text, c.limits.ChunkTokens/4)
	if len(parts) == 0 {
		return ""
	}
	return parts[0].Text + "\n[...truncated]"
}
