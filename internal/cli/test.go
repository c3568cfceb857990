package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/evpatch/internal/harness"
)

// TestOptions holds flags for the test command.
type TestOptions struct {
	*RootOptions
	Catalog string
	Update  bool   // regenerate golden files
	Filter  string // scenario filter (glob pattern)
}

// NewTestCommand creates the test command.
func NewTestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "test <scenarios-dir>",
		Short: "Run patch scenarios",
		Long: `Run patch scenarios against an instruction catalog.

Each scenario file holds a configuration, the input events and the
expected outcome. Scenarios with a golden file under
<scenarios-dir>/golden/<name>.golden must also reproduce it exactly.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  evpatch test ./scenarios --catalog emedf.json
  evpatch test ./scenarios --catalog emedf.json --filter "boss_*"
  evpatch test ./scenarios --catalog emedf.json --update
  evpatch test ./scenarios --catalog emedf.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTests(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to instruction catalog (required)")
	_ = cmd.MarkFlagRequired("catalog")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")

	return cmd
}

func runTests(opts *TestOptions, scenariosDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if info, err := os.Stat(scenariosDir); err != nil || !info.IsDir() {
		return NewExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", scenariosDir))
	}
	cat, err := LoadCatalog(opts.Catalog)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	paths, err := harness.FindScenarios(scenariosDir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	var hopts []harness.Option
	if opts.Verbose {
		hopts = append(hopts, harness.WithLogger(newLogger(opts.RootOptions, cmd.ErrOrStderr())))
	}
	h := harness.New(cat, hopts...)
	golden := goldenCheck(scenariosDir, opts.Update)
	result, err := h.RunSuite(ctx, paths, golden)
	if err != nil {
		return WrapExitError(ExitCommandError, "test run interrupted", err)
	}

	if formatter.Format == "json" {
		return outputTestJSON(formatter, result)
	}
	return outputTestText(formatter.Writer, result, opts.Update)
}

// goldenFilePath returns the golden file of a scenario.
func goldenFilePath(scenariosDir, name string) string {
	return filepath.Join(scenariosDir, "golden", name+".golden")
}

// goldenCheck compares each result with its golden file, or rewrites the
// file when update is set. Scenarios without a golden file pass on their
// assertions alone.
func goldenCheck(scenariosDir string, update bool) harness.ScenarioCheck {
	return func(path string, scenario *harness.Scenario, result *harness.Result) error {
		current, err := harness.MarshalSnapshot(scenario.Name, result)
		if err != nil {
			return fmt.Errorf("failed to marshal snapshot: %w", err)
		}
		goldenPath := goldenFilePath(scenariosDir, scenario.Name)

		if update {
			if err := os.MkdirAll(filepath.Dir(goldenPath), 0755); err != nil {
				return fmt.Errorf("failed to create golden directory: %w", err)
			}
			if err := os.WriteFile(goldenPath, current, 0644); err != nil {
				return fmt.Errorf("failed to write golden file: %w", err)
			}
			return nil
		}

		want, err := os.ReadFile(goldenPath)
		if os.IsNotExist(err) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read golden file: %w", err)
		}
		if !bytes.Equal(want, current) {
			return fmt.Errorf("golden file mismatch (run with --update to regenerate)")
		}
		return nil
	}
}

// outputTestJSON outputs the suite result as JSON.
func outputTestJSON(f *OutputFormatter, result *harness.SuiteResult) error {
	response := CLIResponse{Status: "ok", Data: result}
	if result.Failed > 0 {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_TEST_FAILED",
			Message: fmt.Sprintf("%d scenario(s) failed", result.Failed),
		}
	}
	if err := encodeIndented(f.Writer, response); err != nil {
		return err
	}
	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	return nil
}

// outputTestText outputs the suite result as text.
func outputTestText(w io.Writer, result *harness.SuiteResult, updated bool) error {
	if result.Total == 0 {
		fmt.Fprintln(w, "No scenarios found.")
		return nil
	}

	for _, s := range result.Scenarios {
		if s.Pass {
			suffix := ""
			if updated {
				suffix = " (golden updated)"
			}
			fmt.Fprintf(w, "✓ %s%s\n", s.Name, suffix)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", s.Name)
		for _, e := range s.Errors {
			fmt.Fprintf(w, "  %s\n", strings.ReplaceAll(e, "\n", "\n  "))
		}
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "Test Summary: %d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", result.Failed))
	}
	fmt.Fprintln(w, "✓ All scenarios passed")
	return nil
}
