package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"cuelang.org/go/cue/token"
	"github.com/spf13/cobra"

	"github.com/roach88/arbor/internal/compiler"
	"github.com/roach88/arbor/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Trees  int                        `json:"trees"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <trees-dir>",
		Short: "Validate tree definitions without writing output",
		Long: `Validate CUE behavior tree definitions without writing output.

Compiles every tree, runs schema validation, and checks the graph shape
(cycles, shared subtrees, unreachable nodes). All errors are collected
and reported with codes and line numbers.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, treesDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	// Collect-all mode: one broken tree must not hide errors in the others
	loadResult, loadErrors := LoadTrees(treesDir, LoadModeCollectAll)

	// Handle load errors (directory not found, no files, etc.)
	if loadResult == nil && len(loadErrors) > 0 {
		var loadErr *LoadError
		if errors.As(loadErrors[0], &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, loadErrors[0].Error(), nil)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, treesDir)

	// Per-tree compile errors become validation rows alongside schema errors
	var validationErrors []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromCuePos(loadErr.Pos),
			})
		} else {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "load",
				Message: err.Error(),
				Code:    ErrCodeGeneric,
			})
		}
	}

	validationErrors = append(validationErrors, validateTrees(loadResult.Trees, formatter)...)

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors, len(loadResult.Trees))
	}

	// Output success
	return outputValidateSuccess(formatter, len(loadResult.Trees))
}

// validateTrees runs schema validation and graph checks on every compiled
// tree, in name order so output is deterministic.
func validateTrees(trees map[string]*ir.TreeSpec, formatter *OutputFormatter) []compiler.ValidationError {
	names := make([]string, 0, len(trees))
	for name := range trees {
		names = append(names, name)
	}
	sort.Strings(names)

	var allErrors []compiler.ValidationError
	for _, name := range names {
		formatter.VerboseLog("Validating tree: %s", name)

		spec := trees[name]
		treeErrs := compiler.Validate(spec)
		treeErrs = append(treeErrs, compiler.CheckGraph(spec)...)
		allErrors = append(allErrors, prefixTree(name, treeErrs)...)
	}
	return allErrors
}

// prefixTree qualifies error fields with the tree name so errors from
// different trees stay distinguishable in one report.
func prefixTree(name string, errs []compiler.ValidationError) []compiler.ValidationError {
	for i := range errs {
		errs[i].Field = fmt.Sprintf("tree.%s.%s", name, errs[i].Field)
	}
	return errs
}

// getLineFromCuePos extracts line number from a token.Pos.
func getLineFromCuePos(pos token.Pos) int {
	if pos.IsValid() {
		return pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, treeCount int) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Trees: treeCount}
		return formatter.Success(result)
	}

	fmt.Fprintf(formatter.Writer, "✓ All trees valid (%d checked)\n", treeCount)
	return nil
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Load-level problems are command errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError, treeCount int) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:  false,
			Trees:  treeCount,
			Errors: errs,
		}

		response := CLIResponse{
			Status: "error",
			Data:   result,
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}

		// Invalid trees = exit code 1 (outcome failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "%s (line %d)\n", err.Field, err.Line)
		} else {
			fmt.Fprintln(formatter.Writer, err.Field)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", err.Code, err.Message)
	}

	// Invalid trees = exit code 1 (outcome failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}

// ValidateTreesDir validates all tree definitions in a directory.
// This is a helper function for external callers.
func ValidateTreesDir(treesDir string) ([]compiler.ValidationError, error) {
	loadResult, loadErrors := LoadTrees(treesDir, LoadModeCollectAll)
	if loadResult == nil && len(loadErrors) > 0 {
		return nil, loadErrors[0]
	}

	var errs []compiler.ValidationError
	for _, err := range loadErrors {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			errs = append(errs, compiler.ValidationError{
				Field:   "load",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    getLineFromCuePos(loadErr.Pos),
			})
		}
	}

	silentFormatter := &OutputFormatter{Format: "text", Verbose: false, Writer: io.Discard}
	errs = append(errs, validateTrees(loadResult.Trees, silentFormatter)...)

	return errs, nil
}
