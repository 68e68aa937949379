package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/recalc/internal/compiler"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Strict bool // treat cycle warnings as errors
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid    bool                       `json:"valid"`
	Errors   []compiler.ValidationError `json:"errors,omitempty"`
	Warnings []compiler.CycleWarning    `json:"warnings,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <schema-dir>",
		Short: "Validate a schema and report dependency cycles",
		Long: `Validate a CUE schema without writing anything.

Checks that every derived attribute source names a declared attribute,
that link types connect the collections they are used between, and that
every edge is well formed. Dependency cycles are reported as warnings:
the cascade builder cuts them at runtime.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Strict, "strict", false, "fail on dependency cycles")

	return cmd
}

func runValidate(opts *ValidateOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	validationErrors, warnings, err := ValidateSchemaDir(schemaDir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) {
			return outputValidateError(formatter, loadErr.Code, loadErr.Message, nil)
		}
		return outputValidateError(formatter, ErrCodeGeneric, err.Error(), nil)
	}

	if opts.Strict {
		for _, w := range warnings {
			validationErrors = append(validationErrors, compiler.ValidationError{
				Field:   "cycle",
				Message: w.Message,
				Code:    ErrCodeCycle,
			})
		}
		warnings = nil
	}

	if len(validationErrors) > 0 {
		return outputValidationErrors(formatter, validationErrors, warnings)
	}

	return outputValidateSuccess(formatter, warnings)
}

// ErrCodeCycle is reported for dependency cycles under --strict.
const ErrCodeCycle = "E230"

// ValidateSchemaDir loads and validates the schema in a directory.
//
// Problems with the directory itself (missing, no CUE files, unloadable)
// are returned as the error. Problems with the schema content, including
// compile errors, are returned as validation errors.
func ValidateSchemaDir(schemaDir string) ([]compiler.ValidationError, []compiler.CycleWarning, error) {
	loadResult, err := LoadSchema(schemaDir)
	if err != nil {
		var loadErr *LoadError
		if errors.As(err, &loadErr) && isSchemaContentError(loadErr.Code) {
			return []compiler.ValidationError{{
				Field:   "schema",
				Message: loadErr.Message,
				Code:    loadErr.Code,
				Line:    lineOf(loadErr),
			}}, nil, nil
		}
		return nil, nil, err
	}

	validationErrs := compiler.Validate(loadResult.Schema)
	warnings := compiler.AnalyzeCycles(loadResult.Schema.Edges())
	return validationErrs, warnings, nil
}

// isSchemaContentError reports whether a load error code describes the
// schema's content rather than the directory holding it.
func isSchemaContentError(code string) bool {
	switch code {
	case ErrCodeBuildFailed, ErrCodeNoCollections, ErrCodeLinkTypeEnds, ErrCodeInvalidSource, ErrCodeSourceAttribute:
		return true
	}
	return false
}

// lineOf extracts line number from a load error's position.
func lineOf(e *LoadError) int {
	if e.Pos.IsValid() {
		return e.Pos.Line()
	}
	return 0
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, warnings []compiler.CycleWarning) error {
	if formatter.Format == "json" {
		result := ValidationResult{Valid: true, Warnings: warnings}
		return formatter.Success(result)
	}

	fmt.Fprintln(formatter.Writer, "✓ Schema valid")
	printWarnings(formatter, warnings)
	return nil
}

func printWarnings(formatter *OutputFormatter, warnings []compiler.CycleWarning) {
	if len(warnings) == 0 {
		return
	}
	fmt.Fprintln(formatter.Writer)
	for _, w := range warnings {
		fmt.Fprintf(formatter.Writer, "⚠ %s\n", w.Message)
	}
}

// outputValidateError outputs a single validation error.
func outputValidateError(formatter *OutputFormatter, code, message string, details interface{}) error {
	_ = formatter.Error(code, message, details)
	// Validation errors are command-level errors (exit code 2)
	return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []compiler.ValidationError, warnings []compiler.CycleWarning) error {
	if formatter.Format == "json" {
		result := ValidationResult{
			Valid:    false,
			Errors:   errs,
			Warnings: warnings,
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

		// Validation failures = exit code 1 (test/validation failure)
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, err := range errs {
		if err.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", err.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s: %s\n\n", err.Code, err.Field, err.Message)
	}
	printWarnings(formatter, warnings)

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
