package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"repobrief/internal/config"
	"repobrief/internal/judge"
	"repobrief/internal/llm"
	"repobrief/internal/logging"
)

// Exit codes of the eval command.
const (
	exitPass     = 0
	exitFail     = 1
	exitDisabled = 2
)

var evalJSON bool

var evalCmd = &cobra.Command{
	Use:   "eval <github-url>",
	Short: "Summarize a repository and grade the summary",
	Long: `Summarize a repository, then grade the response with the evaluation model.

Requires ENVIRONMENT=eval and ENABLE_JUDGE=1. Exit status is 0 when the
summary passes, 1 when it fails or an error occurs, 2 when judging is disabled.

Examples:
  ENVIRONMENT=eval ENABLE_JUDGE=1 repobrief eval https://github.com/psf/requests`,
	Args: cobra.ExactArgs(1),
	Run:  runEval,
}

func init() {
	evalCmd.Flags().BoolVar(&evalJSON, "json", false, "Print the verdict as JSON")
	rootCmd.AddCommand(evalCmd)
}

func runEval(cmd *cobra.Command, args []string) {
	os.Exit(evalExitCode(cmd, args[0]))
}

func evalExitCode(cmd *cobra.Command, url string) int {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return exitFail
	}
	if !cfg.JudgeEnabled() {
		fmt.Fprintln(cmd.ErrOrStderr(), "judge disabled: set ENVIRONMENT=eval and ENABLE_JUDGE=1")
		return exitDisabled
	}

	ctx, cancel := newContext()
	defer cancel()
	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	ctx = logging.WithLogger(ctx, logger)

	s, err := newSummarizer(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return exitFail
	}
	res, err := s.Run(ctx, url)
	if err != nil {
		_ = printError(cmd.ErrOrStderr(), err)
		return exitFail
	}

	evalClient, err := llm.New(ctx, cfg.LLM, cfg.LLM.EvalModel, logger)
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		return exitFail
	}
	defer evalClient.Close()
	verdict, err := judge.New(evalClient, cfg.LLM.JudgeMaxTokens).Evaluate(ctx, url, res.Response, res.Diagnostics.Evidence)
	if err != nil {
		_ = printError(cmd.ErrOrStderr(), err)
		return exitFail
	}

	out := cmd.OutOrStdout()
	if evalJSON {
		_ = writeIndented(out, verdict)
	} else {
		fmt.Fprintf(out, "Overall:       %.2f\n", verdict.Overall)
		fmt.Fprintf(out, "Faithful:      %.2f\n", verdict.Scores.Faithful)
		fmt.Fprintf(out, "Completeness:  %.2f\n", verdict.Scores.Completeness)
		fmt.Fprintf(out, "Structure:     %.2f\n", verdict.Scores.Structure)
		if len(verdict.HallucinationFlags) > 0 {
			fmt.Fprintf(out, "Flags:         %s\n", strings.Join(verdict.HallucinationFlags, "; "))
		}
		if verdict.Notes != "" {
			fmt.Fprintf(out, "Notes:         %s\n", verdict.Notes)
		}
	}
	if verdict.Passed() {
		fmt.Fprintln(out, "PASS")
		return exitPass
	}
	fmt.Fprintln(out, "FAIL")
	return exitFail
}
