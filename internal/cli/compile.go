package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/roach88/arbor/internal/compiler"
	"github.com/roach88/arbor/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompiledTree is one tree's blueprint as the store would pin it: the
// content hash plus the canonical JSON definition it was computed from.
type CompiledTree struct {
	Name       string `json:"name"`
	Hash       string `json:"hash"`
	NodeCount  int    `json:"node_count"`
	LeafCount  int    `json:"leaf_count"`
	Definition string `json:"definition"` // canonical JSON blueprint
}

// CompilationResult holds the compiled tree blueprints, in name order.
type CompilationResult struct {
	Trees []CompiledTree `json:"trees"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	TreeCount   int
	TotalNodes  int
	TotalLeaves int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <trees-dir>",
		Short: "Compile CUE tree definitions to canonical blueprints",
		Long: `Compile CUE behavior tree definitions to canonical JSON blueprints.

The compiler parses CUE files, compiles each tree under the top-level
"tree" struct, and emits the canonical blueprint and content hash the
trace store pins at run time.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors - we handle our own error output
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompile(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "output file path")

	return cmd
}

func runCompile(opts *CompileOptions, treesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	// Use shared loader with collect-all mode
	loadResult, loadErrors := LoadTrees(treesDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputCompileError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputCompileError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, treesDir)

	// Handle compilation errors
	if len(loadErrors) > 0 {
		return outputCompileErrors(formatter, loadErrors)
	}

	// Build result, trees in name order for stable output
	names := make([]string, 0, len(loadResult.Trees))
	for name := range loadResult.Trees {
		names = append(names, name)
	}
	sort.Strings(names)

	result := &CompilationResult{}
	for _, name := range names {
		spec := loadResult.Trees[name]
		formatter.VerboseLog("Compiling tree: %s", name)

		hash, err := ir.TreeHash(spec)
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("hashing tree %s: %v", name, err), nil)
		}
		definition, err := ir.MarshalCanonical(spec.CanonicalMap())
		if err != nil {
			return outputCompileError(formatter, ErrCodeGeneric, fmt.Sprintf("marshaling tree %s: %v", name, err), nil)
		}

		result.Trees = append(result.Trees, CompiledTree{
			Name:       spec.Name,
			Hash:       hash,
			NodeCount:  len(spec.Nodes),
			LeafCount:  countLeaves(spec),
			Definition: string(definition),
		})
	}

	// Calculate statistics
	stats := calculateStats(result)

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeBlueprintsToFile(result, opts.Output); err != nil {
			return outputCompileError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	// Output success
	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// countLeaves counts the action and condition nodes of a tree.
func countLeaves(spec *ir.TreeSpec) int {
	n := 0
	for _, node := range spec.Nodes {
		if node.Kind == ir.KindAction || node.Kind == ir.KindCondition {
			n++
		}
	}
	return n
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	stats := CompilationStats{
		TreeCount: len(result.Trees),
	}

	for _, tree := range result.Trees {
		stats.TotalNodes += tree.NodeCount
		stats.TotalLeaves += tree.LeafCount
	}

	return stats
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d tree(s), %d node(s)\n\n",
		stats.TreeCount, stats.TotalNodes)

	if len(result.Trees) > 0 {
		fmt.Fprintln(formatter.Writer, "Trees:")
		for _, tree := range result.Trees {
			fmt.Fprintf(formatter.Writer, "  %s: %d node(s), %d leaf/leaves, hash %s\n",
				tree.Name, tree.NodeCount, tree.LeafCount, truncateID(tree.Hash))
		}
		fmt.Fprintln(formatter.Writer)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote blueprints to %s\n", outputFile)
	}

	return nil
}

// outputCompileError outputs a single compilation error.
func outputCompileError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Compilation errors are command-level errors (exit code 2)
	return WrapExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message), nil)
}

// outputCompileErrors outputs multiple compilation errors.
func outputCompileErrors(formatter *OutputFormatter, errs []error) error {
	if formatter.Format == "json" {
		// JSON format - use CLIResponse with first error
		cliErrors := make([]CLIError, len(errs))
		for i, err := range errs {
			code, message := parseCompileError(err)
			cliErrors[i] = CLIError{
				Code:    code,
				Message: message,
			}
		}

		response := CLIResponse{
			Status: "error",
			Error:  &cliErrors[0],
			Data:   cliErrors, // Include all errors in data
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Compilation errors are command-level errors (exit code 2)
		return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		code, message := parseCompileError(err)
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) && compileErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				compileErr.Pos.Filename(),
				compileErr.Pos.Line(),
				compileErr.Pos.Column())
		}
		var loadErr *LoadError
		if errors.As(err, &loadErr) && loadErr.Pos.IsValid() {
			fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
				loadErr.Pos.Filename(),
				loadErr.Pos.Line(),
				loadErr.Pos.Column())
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", code, message)
	}

	// Compilation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("compilation failed with %d error(s)", len(errs)))
}

// parseCompileError extracts error code and message from an error.
func parseCompileError(err error) (string, string) {
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := MapFieldToErrorCode(compileErr.Field)
		return code, compileErr.Message
	}
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		return loadErr.Code, loadErr.Message
	}
	return ErrCodeGeneric, err.Error()
}

// writeBlueprintsToFile writes the compilation result to a file.
func writeBlueprintsToFile(result *CompilationResult, filename string) error {
	// Indented JSON for the wrapper; each Definition inside is already
	// canonical, those bytes are what the hash covers
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling blueprints: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
