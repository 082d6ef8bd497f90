package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/vfaabeso/tea-simulation/internal/scenario"
	"github.com/vfaabeso/tea-simulation/internal/simerr"
)

// ValidationError is one problem found in a scenario file.
type ValidationError struct {
	Code    string `json:"code" yaml:"code"`
	Message string `json:"message" yaml:"message"`
	Entity  string `json:"entity,omitempty" yaml:"entity,omitempty"`
	Field   string `json:"field,omitempty" yaml:"field,omitempty"`
}

// FileValidation holds the validation result of one scenario file.
type FileValidation struct {
	File   string            `json:"file" yaml:"file"`
	Name   string            `json:"name,omitempty" yaml:"name,omitempty"`
	Valid  bool              `json:"valid" yaml:"valid"`
	Errors []ValidationError `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid bool             `json:"valid" yaml:"valid"`
	Files []FileValidation `json:"files" yaml:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scenario|dir>...",
		Short: "Validate scenarios without running them",
		Long: `Validate YAML and CUE scenarios without advancing the simulation.

Each scenario is parsed, checked field by field, and its entities are
constructed and added to a kernel whose setup is then confirmed. Every
problem in every file is reported. Directories are searched for .yaml,
.yml and .cue files.`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, paths []string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	files, err := FindScenarioFiles(paths, "")
	if err != nil {
		return outputValidateError(formatter, err)
	}
	if len(files) == 0 {
		_ = formatter.Error(ErrCodeNoFiles, "no scenario files found", nil)
		return NewExitError(ExitCommandError, "no scenario files found")
	}

	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}
	for _, file := range files {
		formatter.VerboseLog("Validating %s", file)
		fv := validateFile(file)
		if !fv.Valid {
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	return outputValidation(formatter, result)
}

// validateFile loads and builds one scenario. Build constructs every entity
// and confirms setup without advancing.
func validateFile(file string) FileValidation {
	fv := FileValidation{File: file}

	s, err := scenario.LoadScenario(file)
	if err != nil {
		fv.Errors = loadErrors(err)
		return fv
	}
	fv.Name = s.Name

	if _, err := scenario.Build(s, scenario.WithLogger(discardLogger())); err != nil {
		fv.Errors = []ValidationError{buildError(err)}
		return fv
	}

	fv.Valid = true
	return fv
}

// loadErrors splits a load failure into one entry per problem.
func loadErrors(err error) []ValidationError {
	cause := err
	if inner := errors.Unwrap(err); inner != nil {
		cause = inner
	}

	var out []ValidationError
	for _, e := range multierr.Errors(cause) {
		out = append(out, ValidationError{Code: ErrCodeLoadFailed, Message: e.Error()})
	}
	if len(out) <= 1 {
		return []ValidationError{{Code: ErrCodeLoadFailed, Message: err.Error()}}
	}
	return out
}

func buildError(err error) ValidationError {
	ve := ValidationError{Code: ErrCodeBuildFailed, Message: err.Error()}
	var se *simerr.Error
	if errors.As(err, &se) {
		ve.Code = string(se.Code)
		ve.Message = se.Message
		ve.Entity = se.Entity
		ve.Field = se.Field
	}
	return ve
}

func outputValidateError(formatter *OutputFormatter, err error) error {
	code := ErrCodeGeneric
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		code = loadErr.Code
	}
	_ = formatter.Error(code, err.Error(), nil)
	return WrapExitError(ExitCommandError, "failed to find scenarios", err)
}

func outputValidation(formatter *OutputFormatter, result ValidationResult) error {
	invalid := 0
	for _, fv := range result.Files {
		if !fv.Valid {
			invalid++
		}
	}

	if formatter.Format == "json" {
		if result.Valid {
			return formatter.Success(result)
		}
		_ = formatter.Error("E_INVALID_SCENARIO", fmt.Sprintf("%d scenario(s) invalid", invalid), result)
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) invalid", invalid))
	}

	w := formatter.Writer
	for _, fv := range result.Files {
		if fv.Valid {
			fmt.Fprintf(w, "✓ %s\n", fv.File)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", fv.File)
		for _, e := range fv.Errors {
			if e.Entity != "" {
				fmt.Fprintf(w, "  [%s] %s.%s: %s\n", e.Code, e.Entity, e.Field, e.Message)
			} else {
				fmt.Fprintf(w, "  [%s] %s\n", e.Code, e.Message)
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) invalid", invalid))
	}
	fmt.Fprintln(w, "✓ All scenarios valid")
	return nil
}
