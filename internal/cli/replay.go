package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/arbor/internal/engine"
	"github.com/roach88/arbor/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	RunToken string // optional - specific run only
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Runs             []engine.VerifyResult `json:"runs"`
	TotalRuns        int                   `json:"total_runs"`
	Skipped          int                   `json:"skipped"` // unfinished runs
	AllDeterministic bool                  `json:"all_deterministic"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Re-execute recorded runs and verify determinism",
		Long: `Re-execute recorded runs and verify their traces are reproducible.

Each run's tree is rebuilt from the definition pinned in the store (not
the current CUE sources), seeded with the recorded initial blackboard,
and re-executed with the recorded token and clock. The regenerated
trace must match the stored trace event for event.

Unfinished runs cannot be re-executed and are skipped.

Exit codes:
  0 - All replayed runs are deterministic
  1 - Determinism verification failed (divergence detected)
  2 - Command error (database not found, etc.)

Examples:
  arbor replay --db ./arbor.db
  arbor replay --db ./arbor.db --run 0198a3c2-7e01-7bbb-8000-000000000001
  arbor replay --db ./arbor.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "replay specific run only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Open database
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	defer st.Close()

	// Get run tokens to process
	var tokens []string
	if opts.RunToken != "" {
		tokens = []string{opts.RunToken}
	} else {
		tokens, err = st.ListRunTokens(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list run tokens", err)
		}
	}

	if len(tokens) == 0 {
		if opts.Format == "json" {
			result := ReplayResult{
				Runs:             []engine.VerifyResult{},
				AllDeterministic: true,
			}
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No runs found in trace store.")
		return nil
	}

	// Process each run
	result := ReplayResult{
		Runs:             make([]engine.VerifyResult, 0, len(tokens)),
		TotalRuns:        len(tokens),
		AllDeterministic: true,
	}

	for _, token := range tokens {
		run, err := st.ReadRun(ctx, token)
		if errors.Is(err, sql.ErrNoRows) {
			return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", token))
		}
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read run %s", token), err)
		}

		// An unfinished run has no complete trace to compare against
		if run.FinalStatus == "" {
			if opts.RunToken != "" {
				return NewExitError(ExitCommandError, fmt.Sprintf("run %s is unfinished, cannot replay", token))
			}
			result.Skipped++
			continue
		}

		verify, err := engine.VerifyRun(ctx, st, token, nil)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay run %s", token), err)
		}

		result.Runs = append(result.Runs, *verify)
		if !verify.Match {
			result.AllDeterministic = false
		}
	}

	// Output results
	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllDeterministic {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_DETERMINISM",
			Message: "determinism verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllDeterministic {
		// Determinism failure = exit code 1
		return NewExitError(ExitFailure, "determinism verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d run(s)\n", result.TotalRuns)
	if result.Skipped > 0 {
		fmt.Fprintf(w, "Skipped %d unfinished run(s)\n", result.Skipped)
	}
	fmt.Fprintln(w)

	for _, run := range result.Runs {
		status := "✓"
		if !run.Match {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Run: %s\n", status, run.Token)

		if verbose {
			fmt.Fprintf(w, "  Tree: %s\n", run.Tree)
			fmt.Fprintf(w, "  Stored Events:   %d\n", run.StoredEvents)
			fmt.Fprintf(w, "  Replayed Events: %d\n", run.ReplayedEvents)
		} else {
			fmt.Fprintf(w, "  %s: %d event(s)\n", run.Tree, run.StoredEvents)
		}

		if !run.Match {
			fmt.Fprintf(w, "  Divergence: %s\n", run.Divergence)
		}
		fmt.Fprintln(w)
	}

	if result.AllDeterministic {
		fmt.Fprintln(w, "✓ All runs verified deterministic")
		return nil
	}

	fmt.Fprintln(w, "✗ Determinism verification failed")
	// Determinism failure = exit code 1
	return NewExitError(ExitFailure, "determinism verification failed")
}
