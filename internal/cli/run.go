package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/arbor/bt"
	"github.com/roach88/arbor/internal/engine"
	"github.com/roach88/arbor/internal/ir"
	"github.com/roach88/arbor/internal/store"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database   string
	Tree       string
	Ticks      int
	Interval   time.Duration
	Restart    bool
	Blackboard []string // key=value pairs

	// Tokens allows overriding the run token generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	Tokens engine.TokenGenerator
}

// RunSummary is the run command's result payload.
type RunSummary struct {
	Token    string   `json:"token"`
	Tree     string   `json:"tree"`
	Hash     string   `json:"hash"`
	Ticks    int      `json:"ticks"`
	Status   string   `json:"status"`
	Statuses []string `json:"statuses"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <trees-dir>",
		Short: "Run a tree to completion against a trace store",
		Long: `Run a behavior tree until its root settles or the tick budget is spent.

The tree definition is compiled from the specified directory, pinned into
a SQLite trace store (created if it doesn't exist), and ticked by the
runner. Every tick is recorded; the trace can be inspected later with
"arbor trace" and verified with "arbor replay".

Example:
  arbor run ./trees --tree patrol --db ./arbor.db
  arbor run ./trees --tree patrol --bb battery_ok=true --ticks 10 --verbose
  arbor run ./trees --tree heartbeat --restart --interval 500ms`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTree(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", ":memory:", "path to SQLite trace store")
	cmd.Flags().StringVar(&opts.Tree, "tree", "", "name of the tree to run (required)")
	cmd.Flags().IntVar(&opts.Ticks, "ticks", engine.DefaultMaxTicks, "tick budget for the run")
	cmd.Flags().DurationVar(&opts.Interval, "interval", 0, "pause between ticks (e.g. 500ms)")
	cmd.Flags().BoolVar(&opts.Restart, "restart", false, "restart the tree after terminal ticks until the budget is spent")
	cmd.Flags().StringArrayVar(&opts.Blackboard, "bb", nil, "seed blackboard entry as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("tree")

	return cmd
}

func runTree(opts *RunOptions, treesDir string, cmd *cobra.Command) error {
	// Configure logging based on verbose flag
	logLevel := slog.LevelInfo
	if opts.Verbose {
		logLevel = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel,
	})
	logger := slog.New(handler)
	slog.SetDefault(logger)

	// Compile trees and pick the requested one
	slog.Info("compiling trees", "dir", treesDir)
	spec, err := loadTree(treesDir, opts.Tree)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load tree", err)
	}

	seed, err := ParseBlackboardFlags(opts.Blackboard)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --bb flag", err)
	}

	tree, err := engine.Build(spec, engine.DefaultRegistry())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build tree", err)
	}
	tree.SeedBlackboard(seed)

	// Open database (create if not exists)
	slog.Info("opening trace store", "path", opts.Database)
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing trace store", "error", closeErr)
		}
	}()

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	// Seed the clock past existing history so seqs stay unique per store
	lastSeq, err := st.GetLastSeq(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read store watermark", err)
	}

	tokens := opts.Tokens
	if tokens == nil {
		tokens = engine.UUIDv7Generator{}
	}

	runner := engine.NewRunner(st,
		engine.WithLogger(logger),
		engine.WithClock(engine.NewClockAt(lastSeq)),
		engine.WithTokens(tokens),
		engine.WithMaxTicks(opts.Ticks),
		engine.WithInterval(opts.Interval),
		engine.WithRestart(opts.Restart),
	)

	result, runErr := runner.Run(ctx, tree)
	if runErr != nil {
		switch {
		case engine.IsAborted(runErr):
			// Ctrl-C mid-run; the partial result still prints
			slog.Info("run aborted", "token", result.Token, "ticks", result.Ticks)
		case engine.IsNotConverged(runErr):
			outputRunSummary(opts, cmd, result)
			return WrapExitError(ExitFailure, "tree did not settle within tick budget", runErr)
		default:
			return WrapExitError(ExitFailure, "run failed", runErr)
		}
	}

	outputRunSummary(opts, cmd, result)

	if result.Status == bt.StatusError {
		return NewExitError(ExitFailure, "run finished with status ERROR")
	}
	return nil
}

// outputRunSummary prints the per-tick statuses and the final status.
func outputRunSummary(opts *RunOptions, cmd *cobra.Command, result *engine.Result) {
	summary := RunSummary{
		Token:    result.Token,
		Tree:     result.TreeName,
		Hash:     result.TreeHash,
		Ticks:    result.Ticks,
		Status:   result.Status.String(),
		Statuses: make([]string, len(result.Statuses)),
	}
	for i, s := range result.Statuses {
		summary.Statuses[i] = s.String()
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if formatter.Format == "json" {
		_ = formatter.Success(summary)
		return
	}

	w := formatter.Writer
	fmt.Fprintf(w, "Run %s\n", summary.Token)
	fmt.Fprintf(w, "  tree:   %s (hash %s)\n", summary.Tree, truncateID(summary.Hash))
	fmt.Fprintf(w, "  ticks:  %d\n", summary.Ticks)
	fmt.Fprintf(w, "  status: %s\n", summary.Status)
	if len(summary.Statuses) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Tick statuses:")
		for i, s := range summary.Statuses {
			fmt.Fprintf(w, "  %d: %s\n", i+1, s)
		}
	}
}

// loadTree compiles the directory and returns the named tree, with the
// available names in the error when it is missing.
func loadTree(dir, name string) (*ir.TreeSpec, error) {
	if name == "" {
		return nil, fmt.Errorf("--tree is required")
	}

	loadResult, loadErrors := LoadTrees(dir, LoadModeFailFast)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}
	if len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	spec, ok := loadResult.Trees[name]
	if !ok {
		names := make([]string, 0, len(loadResult.Trees))
		for n := range loadResult.Trees {
			names = append(names, n)
		}
		sort.Strings(names)
		return nil, fmt.Errorf("tree %q not found in %s (available: %s)", name, dir, strings.Join(names, ", "))
	}
	return spec, nil
}

// ParseBlackboardFlags converts repeated key=value flags into blackboard
// values. Values parse as bool, then int64, then string; floats are
// rejected the same way the canonical form rejects them.
func ParseBlackboardFlags(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}

	seed := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, found := strings.Cut(pair, "=")
		if !found || key == "" {
			return nil, fmt.Errorf("malformed entry %q, want key=value", pair)
		}

		switch {
		case raw == "true":
			seed[key] = true
		case raw == "false":
			seed[key] = false
		default:
			if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
				seed[key] = n
				continue
			}
			if _, err := strconv.ParseFloat(raw, 64); err == nil {
				return nil, fmt.Errorf("%s: float values are forbidden, use int", key)
			}
			seed[key] = raw
		}
	}
	return seed, nil
}
