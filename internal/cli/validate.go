package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	Config  string
	Catalog string
	Options string
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                     `json:"valid"`
	Maps   []string                 `json:"maps,omitempty"`
	Errors []config.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate a configuration without patching",
		Long: `Validate a configuration document without reading any scripts.

Checks the document against the schema and runs the semantic checks
(edit shape, argument names, If expressions, template types). With
--catalog, every command, matcher and segment anchor is also parsed
against the instruction catalog, and every new event is materialized.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to configuration document (required)")
	_ = cmd.MarkFlagRequired("config")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to instruction catalog")
	cmd.Flags().StringVar(&opts.Options, "options", "", "space-separated enabled options for new event arguments")

	return cmd
}

func runValidate(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		var le *LoadError
		if errors.As(err, &le) && le.Code == ErrCodeInvalid {
			return outputValidationErrors(formatter, le.Errors)
		}
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Config %s matches the schema", opts.Config)

	if opts.Catalog != "" {
		cat, err := LoadCatalog(opts.Catalog)
		if err != nil {
			return outputLoadError(formatter, err)
		}
		options, err := config.ParseOptions(opts.Options)
		if err != nil {
			_ = formatter.Error(ErrCodeInvalid, err.Error(), map[string]any{"known": config.OptionNames()})
			return WrapExitError(ExitCommandError, "invalid --options", err)
		}
		if errs := CheckCommands(cat, cfg, options, formatter); len(errs) > 0 {
			return outputValidationErrors(formatter, errs)
		}
	}

	return outputValidateSuccess(formatter, cfg.Maps())
}

// CheckCommands parses every command text in cfg against the catalog.
// Returns all errors found.
func CheckCommands(cat *catalog.Catalog, cfg *config.EventConfig, options config.Options, formatter *OutputFormatter) []config.ValidationError {
	var errs []config.ValidationError
	add := func(field string, err error) {
		errs = append(errs, config.ValidationError{Field: field, Message: err.Error(), Code: errorCode(err)})
	}

	eng := engine.New(cat, cfg,
		engine.WithOptions(options),
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	for _, m := range cfg.Maps() {
		formatter.VerboseLog("Checking map: %s", m)
		for i, ne := range cfg.NewEvents[m] {
			if _, _, err := eng.Materialize(ne, 1); err != nil {
				add(fmt.Sprintf("NewEvents.%s[%d]", m, i), err)
			}
		}
		for _, ee := range cfg.ExistingEvents[m] {
			for j, edit := range ee.Edits {
				field := fmt.Sprintf("ExistingEvents.%s.%d.Edits[%d]", m, ee.ID, j)
				if _, err := engine.CompileMatcher(cat, edit.Match); err != nil {
					add(field+".Match", err)
				}
				for _, text := range append(append([]string(nil), edit.AddBefore...), edit.AddAfter...) {
					if _, _, err := cat.ParseCommand(text); err != nil {
						add(field, fmt.Errorf("command %q: %w", text, err))
					}
				}
			}
		}
	}

	for i, spec := range cfg.EnemyEvents {
		for j, t := range spec.Template {
			for _, seg := range t.Segments {
				field := fmt.Sprintf("EnemyEvents[%d].Template[%d].Segments[%s]", i, j, seg.Type)
				anchors := seg.StartCommands()
				if seg.End != "" {
					anchors = append(anchors, seg.End)
				}
				for _, text := range anchors {
					if _, err := engine.CompileLiteral(cat, text); err != nil {
						add(field, err)
					}
				}
			}
		}
	}
	return errs
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, maps []string) error {
	if formatter.Format == "json" {
		return formatter.Success(ValidationResult{Valid: true, Maps: maps})
	}

	fmt.Fprintf(formatter.Writer, "✓ Config valid (%d map(s))\n", len(maps))
	return nil
}

// outputValidationErrors outputs multiple validation errors.
func outputValidationErrors(formatter *OutputFormatter, errs []config.ValidationError) error {
	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: errs},
			Error: &CLIError{
				Code:    errs[0].Code,
				Message: errs[0].Message,
			},
		}
		if err := encodeIndented(formatter.Writer, response); err != nil {
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

	// Validation failures = exit code 1 (test/validation failure)
	return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(errs)))
}
