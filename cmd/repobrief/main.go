package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"repobrief/internal/config"
	"repobrief/internal/github"
	"repobrief/internal/llm"
	"repobrief/internal/pipeline"
)

var rootCmd = &cobra.Command{
	Use:   "repobrief",
	Short: "Summarize public GitHub repositories",
	Long: `repobrief reads a public GitHub repository and produces a short grounded
summary, the technologies it uses and a description of its structure.

Configuration is read from the environment and an optional .env file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// newSummarizer wires the GitHub source and the summarizer model.
func newSummarizer(ctx context.Context, cfg config.Config, logger *slog.Logger) (*pipeline.Summarizer, error) {
	gh, err := github.New(cfg.GitHub)
	if err != nil {
		return nil, fmt.Errorf("github client: %w", err)
	}
	client, err := llm.New(ctx, cfg.LLM, cfg.LLM.Model, logger)
	if err != nil {
		return nil, fmt.Errorf("llm client: %w", err)
	}
	return pipeline.New(cfg, gh, client), nil
}
