package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"repobrief/internal/apperr"
	"repobrief/internal/config"
	"repobrief/internal/logging"
	"repobrief/internal/pipeline"
)

var (
	summarizeDiagnostics bool
	summarizeJSON        bool
)

var summarizeCmd = &cobra.Command{
	Use:   "summarize <github-url>",
	Short: "Summarize one repository",
	Long: `Summarize a public GitHub repository.

Examples:
  repobrief summarize https://github.com/psf/requests
  repobrief summarize https://github.com/psf/requests --json
  repobrief summarize https://github.com/psf/requests --diagnostics`,
	Args: cobra.ExactArgs(1),
	RunE: runSummarize,
}

func init() {
	summarizeCmd.Flags().BoolVar(&summarizeDiagnostics, "diagnostics", false, "Print selection and validation diagnostics")
	summarizeCmd.Flags().BoolVar(&summarizeJSON, "json", false, "Print the response as JSON")
	rootCmd.AddCommand(summarizeCmd)
}

func runSummarize(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	ctx, cancel := newContext()
	defer cancel()

	logger := logging.New(os.Stderr, cfg.LogLevel, cfg.LogFormat)
	ctx = logging.WithLogger(ctx, logger)
	s, err := newSummarizer(ctx, cfg, logger)
	if err != nil {
		return err
	}
	res, err := s.Run(ctx, args[0])
	if err != nil {
		return printError(cmd.ErrOrStderr(), err)
	}

	out := cmd.OutOrStdout()
	if summarizeJSON {
		v := any(res.Response)
		if summarizeDiagnostics {
			v = struct {
				Response    any                  `json:"response"`
				Diagnostics pipeline.Diagnostics `json:"diagnostics"`
			}{res.Response, res.Diagnostics}
		}
		return writeIndented(out, v)
	}
	printResult(out, res, summarizeDiagnostics)
	return nil
}

func printResult(w io.Writer, res pipeline.Result, diagnostics bool) {
	fmt.Fprintln(w, res.Response.Summary)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Technologies:")
	for _, t := range res.Response.Technologies {
		fmt.Fprintf(w, "  - %s\n", t)
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Structure:")
	for _, s := range res.Response.Structure {
		fmt.Fprintf(w, "  - %s\n", s)
	}
	if !diagnostics {
		return
	}
	d := res.Diagnostics
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Repository:  %s@%s (%d entries, %d candidates)\n", d.Repository, d.Ref, d.TreeEntries, d.Candidates)
	fmt.Fprintf(w, "Plan:        %s", d.PlanSource)
	if d.PlanReason != "" {
		fmt.Fprintf(w, " (%s)", d.PlanReason)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Selected:    %s\n", strings.Join(d.Selected, ", "))
	if len(d.Summarized) > 0 {
		fmt.Fprintf(w, "Summarized:  %s\n", strings.Join(d.Summarized, ", "))
	}
	if len(d.Dropped) > 0 {
		fmt.Fprintf(w, "Dropped:     %s\n", strings.Join(d.Dropped, ", "))
	}
	for path, reason := range d.Excluded {
		fmt.Fprintf(w, "Excluded:    %s (%s)\n", path, reason)
	}
	fmt.Fprintf(w, "Context:     %d tokens\n", d.ContextTokens)
	fmt.Fprintf(w, "Evidence:    %.2f\n", d.EvidenceScore)
	fmt.Fprintf(w, "Elapsed:     %s\n", d.Elapsed)
}

// printError writes the error envelope and returns a short error for the
// exit status.
func printError(w io.Writer, err error) error {
	e := apperr.From(err)
	_ = writeIndented(w, e.Envelope())
	return fmt.Errorf("%s", e.Code)
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
