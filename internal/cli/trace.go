package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/arbor/bt"
	"github.com/roach88/arbor/internal/ir"
	"github.com/roach88/arbor/internal/queryir"
	"github.com/roach88/arbor/internal/store"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunToken string
	Node     string // optional - filter to specific node
	Event    string // optional - filter to specific event type
	Status   string // optional - filter to specific status
}

// TimelineEvent is a single trace row as the timeline shows it. The run
// token is reported once at the result level, not per row.
type TimelineEvent struct {
	Seq      int64  `json:"seq"`
	Tick     int64  `json:"tick"`
	Event    string `json:"event"`
	Node     string `json:"node"`
	NodeKind string `json:"node_kind"`
	Status   string `json:"status"`
}

// NodeStats summarizes one node's activity across the run.
type NodeStats struct {
	Node       string `json:"node"`
	Kind       string `json:"kind"`
	Events     int    `json:"events"`
	Episodes   int    `json:"episodes"` // enter rows for composites, leaf rows for leaves
	LastStatus string `json:"last_status"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	RunToken          string          `json:"run_token"`
	Tree              string          `json:"tree"`
	TreeHash          string          `json:"tree_hash"`
	FinalStatus       string          `json:"final_status,omitempty"` // empty while unfinished
	Ticks             int64           `json:"ticks"`
	InitialBlackboard map[string]any  `json:"initial_blackboard,omitempty"`
	Timeline          []TimelineEvent `json:"timeline"`
	Nodes             []NodeStats     `json:"nodes"`
	Stats             TraceStats      `json:"stats"`
}

// TraceStats holds summary statistics for the trace.
type TraceStats struct {
	TotalEvents int  `json:"total_events"`
	Episodes    int  `json:"episodes"`     // enter rows
	LeafResults int  `json:"leaf_results"` // leaf rows
	IsFinished  bool `json:"is_finished"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect a recorded run's trace",
		Long: `Inspect the recorded trace of a run.

Shows what the tree did, tick by tick: episodes opened and closed,
leaf results, and the root status after every tick.

The output includes:
- Timeline: Every trace row in logical clock order
- Nodes: Per-node activity summary
- Stats: Summary statistics for the run

Examples:
  arbor trace --db ./arbor.db --run 0198a3c2-7e01-7bbb-8000-000000000001
  arbor trace --db ./arbor.db --run <token> --node sweep --event leaf
  arbor trace --db ./arbor.db --run <token> --status FAILURE --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunToken, "run", "", "run token to trace (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().StringVar(&opts.Node, "node", "", "filter timeline to a node name")
	cmd.Flags().StringVar(&opts.Event, "event", "", "filter timeline to an event type (run_start, enter, leaf, exit, tick, run_end)")
	cmd.Flags().StringVar(&opts.Status, "status", "", "filter timeline to a status (IDLE, RUNNING, SUCCESS, FAILURE, ERROR)")

	return cmd
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	filter, err := buildTraceFilter(opts)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid filter", err)
	}

	// Open database
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace store", err)
	}
	defer st.Close()

	// The run row carries identity, final status, and tick count
	run, err := st.ReadRun(ctx, opts.RunToken)
	if errors.Is(err, sql.ErrNoRows) {
		return NewExitError(ExitCommandError, fmt.Sprintf("run not found: %s", opts.RunToken))
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	blackboard, err := st.ReadRunBlackboard(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read initial blackboard", err)
	}

	// Stats always cover the whole run; only the timeline is filtered
	allEvents, err := st.ReadRunEvents(ctx, opts.RunToken)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run events", err)
	}

	timelineEvents := allEvents
	if filter != nil {
		timelineEvents, err = st.FilterRunEvents(ctx, opts.RunToken, filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to filter run events", err)
		}
	}

	result := TraceResult{
		RunToken:          run.Token,
		Tree:              run.TreeName,
		TreeHash:          run.TreeHash,
		FinalStatus:       run.FinalStatus,
		Ticks:             run.TickCount,
		InitialBlackboard: blackboard,
		Timeline:          buildTimeline(timelineEvents),
		Nodes:             buildNodeStats(allEvents),
		Stats:             buildTraceStats(allEvents, run),
	}

	// Output results
	if opts.Format == "json" {
		return outputTraceJSON(cmd, result)
	}

	return outputTraceText(cmd, result, opts.Verbose)
}

// buildTraceFilter turns the --node/--event/--status flags into a query
// filter. Returns nil when no filter flags are set.
func buildTraceFilter(opts *TraceOptions) (queryir.Filter, error) {
	var filters []queryir.Filter

	if opts.Node != "" {
		filters = append(filters, queryir.Equals{Field: "node", Value: opts.Node})
	}
	if opts.Event != "" {
		if !ir.ValidEvents[opts.Event] {
			return nil, fmt.Errorf("unknown event %q (allowed: run_start, enter, leaf, exit, tick, run_end)", opts.Event)
		}
		filters = append(filters, queryir.Equals{Field: "event", Value: opts.Event})
	}
	if opts.Status != "" {
		status, err := bt.ParseStatus(opts.Status)
		if err != nil {
			return nil, err
		}
		filters = append(filters, queryir.Equals{Field: "status", Value: status.String()})
	}

	if len(filters) == 0 {
		return nil, nil
	}
	filter := queryir.And{Filters: filters}
	if err := queryir.ValidateFilter(filter); err != nil {
		return nil, err
	}
	return filter, nil
}

// buildTimeline converts stored events to timeline rows.
func buildTimeline(events []ir.TickEvent) []TimelineEvent {
	timeline := make([]TimelineEvent, 0, len(events))
	for _, ev := range events {
		timeline = append(timeline, TimelineEvent{
			Seq:      ev.Seq,
			Tick:     ev.Tick,
			Event:    ev.Event,
			Node:     ev.Node,
			NodeKind: ev.NodeKind,
			Status:   ev.Status,
		})
	}
	return timeline
}

// buildNodeStats summarizes per-node activity, nodes in first-appearance
// order so output is deterministic.
func buildNodeStats(events []ir.TickEvent) []NodeStats {
	index := make(map[string]int)
	var stats []NodeStats

	for _, ev := range events {
		i, seen := index[ev.Node]
		if !seen {
			i = len(stats)
			index[ev.Node] = i
			stats = append(stats, NodeStats{Node: ev.Node, Kind: ev.NodeKind})
		}
		stats[i].Events++
		stats[i].LastStatus = ev.Status
		switch ev.Event {
		case ir.EventEnter, ir.EventLeaf:
			stats[i].Episodes++
		}
	}
	return stats
}

// buildTraceStats computes run-level summary statistics.
func buildTraceStats(events []ir.TickEvent, run ir.RunRow) TraceStats {
	stats := TraceStats{
		TotalEvents: len(events),
		IsFinished:  run.FinalStatus != "",
	}
	for _, ev := range events {
		switch ev.Event {
		case ir.EventEnter:
			stats.Episodes++
		case ir.EventLeaf:
			stats.LeafResults++
		}
	}
	return stats
}

// outputTraceJSON outputs the trace result as JSON.
func outputTraceJSON(cmd *cobra.Command, result TraceResult) error {
	response := CLIResponse{
		Status:   "ok",
		Data:     result,
		RunToken: result.RunToken,
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(response)
}

// outputTraceText outputs the trace result as text.
func outputTraceText(cmd *cobra.Command, result TraceResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Trace for run: %s\n", result.RunToken)
	fmt.Fprintf(w, "Tree: %s (hash %s)\n", result.Tree, truncateID(result.TreeHash))
	fmt.Fprintf(w, "Status: %s\n", finishedStatus(result))
	if verbose && len(result.InitialBlackboard) > 0 {
		fmt.Fprintf(w, "Initial blackboard: %s\n", formatArgs(result.InitialBlackboard))
	}
	fmt.Fprintln(w)

	// Timeline section
	fmt.Fprintln(w, "=== Timeline ===")
	if len(result.Timeline) == 0 {
		fmt.Fprintln(w, "  (no events)")
	} else {
		for _, event := range result.Timeline {
			formatTimelineEvent(w, event, verbose)
		}
	}
	fmt.Fprintln(w)

	// Nodes section
	fmt.Fprintln(w, "=== Nodes ===")
	if len(result.Nodes) == 0 {
		fmt.Fprintln(w, "  (no nodes)")
	} else {
		for _, node := range result.Nodes {
			fmt.Fprintf(w, "  %s (%s): %d event(s), %d episode(s), last %s\n",
				node.Node, node.Kind, node.Events, node.Episodes, node.LastStatus)
		}
	}
	fmt.Fprintln(w)

	// Stats section
	fmt.Fprintln(w, "=== Stats ===")
	fmt.Fprintf(w, "  Total Events: %d\n", result.Stats.TotalEvents)
	fmt.Fprintf(w, "  Episodes:     %d\n", result.Stats.Episodes)
	fmt.Fprintf(w, "  Leaf Results: %d\n", result.Stats.LeafResults)
	fmt.Fprintf(w, "  Ticks:        %d\n", result.Ticks)

	return nil
}

// formatTimelineEvent formats a single timeline row for text output.
func formatTimelineEvent(w interface{ Write([]byte) (int, error) }, event TimelineEvent, verbose bool) {
	fmt.Fprintf(w, "  [%d] tick %d  %-9s %-14s %s\n",
		event.Seq, event.Tick, event.Event, event.Node, event.Status)
	if verbose {
		fmt.Fprintf(w, "       kind: %s\n", event.NodeKind)
	}
}

// formatArgs formats a map of blackboard values for display.
// Uses sorted keys to ensure deterministic output.
func formatArgs(args map[string]any) string {
	if len(args) == 0 {
		return "{}"
	}

	// Sort keys for deterministic output
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, formatValue(args[k])))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// formatValue formats a single value for display, handling nested structures deterministically.
func formatValue(v any) string {
	switch val := v.(type) {
	case map[string]any:
		return formatArgs(val)
	case []any:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = formatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case string:
		return val
	default:
		return fmt.Sprintf("%v", v)
	}
}

// truncateID truncates a long ID for display.
func truncateID(id string) string {
	if len(id) <= 16 {
		return id
	}
	return id[:8] + "..." + id[len(id)-8:]
}

// finishedStatus renders the run's completion state.
func finishedStatus(result TraceResult) string {
	if result.FinalStatus == "" {
		return "unfinished"
	}
	return fmt.Sprintf("%s (%d ticks)", result.FinalStatus, result.Ticks)
}
