package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/arbor/bt"
	"github.com/roach88/arbor/internal/engine"
	"github.com/roach88/arbor/internal/store"
)

// TickOptions holds flags for the tick command.
type TickOptions struct {
	*RootOptions
	Tree       string
	Blackboard []string // key=value pairs
}

// TickResult is the tick command's result payload.
type TickResult struct {
	Tree   string `json:"tree"`
	Status string `json:"status"`
}

// NewTickCommand creates the tick command.
func NewTickCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TickOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "tick <trees-dir>",
		Short: "Tick a tree exactly once",
		Long: `Tick a behavior tree exactly once and print the root status.

One tick of a fresh tree against an in-memory store. RUNNING means the
tree wants more ticks; FAILURE is a valid answer and exits 0. Only
ERROR exits nonzero.

Example:
  arbor tick ./trees --tree patrol --bb battery_ok=true`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return tickTree(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Tree, "tree", "", "name of the tree to tick (required)")
	cmd.Flags().StringArrayVar(&opts.Blackboard, "bb", nil, "seed blackboard entry as key=value (repeatable)")
	_ = cmd.MarkFlagRequired("tree")

	return cmd
}

func tickTree(opts *TickOptions, treesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

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

	st, err := store.Open(":memory:")
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open scratch store", err)
	}
	defer st.Close()

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	runner := engine.NewRunner(st,
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		engine.WithMaxTicks(1),
	)

	result, runErr := runner.Run(ctx, tree)
	// A root still RUNNING after one tick is a valid single-step answer
	if runErr != nil && !engine.IsNotConverged(runErr) {
		return WrapExitError(ExitFailure, "tick failed", runErr)
	}

	status := result.Status.String()
	if formatter.Format == "json" {
		_ = formatter.Success(TickResult{Tree: result.TreeName, Status: status})
	} else {
		fmt.Fprintln(formatter.Writer, status)
	}

	if result.Status == bt.StatusError {
		return NewExitError(ExitFailure, "tick finished with status ERROR")
	}
	return nil
}
