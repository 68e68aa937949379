package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/recalc/internal/ir"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path
}

// CompilationResult holds the compiled schema and the dependency edges it declares.
type CompilationResult struct {
	Schema *ir.Schema          `json:"schema"`
	Edges  []ir.DependencyEdge `json:"edges"`
}

// CompilationStats holds summary statistics.
type CompilationStats struct {
	CollectionCount int
	LinkTypeCount   int
	DerivedCount    int
	EdgeCount       int
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <schema-dir>",
		Short: "Compile a CUE schema to dependency edges",
		Long: `Compile a CUE schema of collections, link types and derived
attributes into the dependency edges the cascade builder reads.

Each source of a derived attribute becomes one edge, in declaration order.`,
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

func runCompile(opts *CompileOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	loadResult, err := LoadSchema(schemaDir)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loadResult.FileCount, schemaDir)
	for _, c := range loadResult.Schema.Collections {
		formatter.VerboseLog("Compiling collection: %s", c.ID)
	}
	for _, lt := range loadResult.Schema.LinkTypes {
		formatter.VerboseLog("Compiling link type: %s", lt.ID)
	}

	edges := loadResult.Schema.Edges()
	if edges == nil {
		edges = []ir.DependencyEdge{}
	}
	result := &CompilationResult{
		Schema: loadResult.Schema,
		Edges:  edges,
	}

	stats := calculateStats(result)

	// Write to file if --output specified
	if opts.Output != "" {
		if err := writeEdgesToFile(result, opts.Output); err != nil {
			return outputError(formatter, ErrCodeWriteFailed, fmt.Sprintf("writing output file: %v", err), nil)
		}
	}

	return outputCompileSuccess(formatter, result, stats, opts.Output)
}

// calculateStats computes summary statistics from compilation result.
func calculateStats(result *CompilationResult) CompilationStats {
	return CompilationStats{
		CollectionCount: len(result.Schema.Collections),
		LinkTypeCount:   len(result.Schema.LinkTypes),
		DerivedCount:    len(result.Schema.DerivedTargets()),
		EdgeCount:       len(result.Edges),
	}
}

// outputCompileSuccess outputs successful compilation results.
func outputCompileSuccess(formatter *OutputFormatter, result *CompilationResult, stats CompilationStats, outputFile string) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	// Human-readable text output
	fmt.Fprintf(formatter.Writer, "✓ Compiled %d collection(s), %d link type(s), %d derived attribute(s)\n\n",
		stats.CollectionCount, stats.LinkTypeCount, stats.DerivedCount)

	if len(result.Edges) > 0 {
		fmt.Fprintln(formatter.Writer, "Edges:")
		for _, e := range result.Edges {
			fmt.Fprintf(formatter.Writer, "  %s\n", formatEdge(e))
		}
		fmt.Fprintln(formatter.Writer)
	}

	if outputFile != "" {
		fmt.Fprintf(formatter.Writer, "Wrote %d edge(s) to %s\n", stats.EdgeCount, outputFile)
	}

	return nil
}

// formatEdge renders an edge as "target <- source [via L]".
func formatEdge(e ir.DependencyEdge) string {
	s := fmt.Sprintf("%s <- %s", e.Target, e.Source)
	if e.Via != "" {
		s += " via " + e.Via
	}
	return s
}

// outputLoadError reports a schema load failure with its CUE position.
func outputLoadError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		return outputError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	if formatter.Format == "json" {
		var details interface{}
		if loadErr.Pos.IsValid() {
			details = map[string]interface{}{
				"file":   loadErr.Pos.Filename(),
				"line":   loadErr.Pos.Line(),
				"column": loadErr.Pos.Column(),
			}
		}
		return outputError(formatter, loadErr.Code, loadErr.Message, details)
	}

	fmt.Fprintln(formatter.Writer, "✗ Compilation failed")
	fmt.Fprintln(formatter.Writer)
	if loadErr.Pos.IsValid() {
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n",
			loadErr.Pos.Filename(),
			loadErr.Pos.Line(),
			loadErr.Pos.Column())
	}
	fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", loadErr.Code, loadErr.Message)

	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", loadErr.Code, loadErr.Message))
}

// writeEdgesToFile writes the compilation result to a file.
func writeEdgesToFile(result *CompilationResult, filename string) error {
	// Use standard JSON with indentation for readability
	// (canonical JSON without indentation is used only for hashing)
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling edges: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}
