package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/store"
	"github.com/roach88/evpatch/internal/template"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Config     string
	Catalog    string
	In         string
	Out        string
	Options    string
	Assignment string
	Journal    string

	// RunIDs allows overriding the run id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	RunIDs engine.RunIDGenerator
}

// ApplyResult summarizes a successful apply.
type ApplyResult struct {
	RunID   string   `json:"run_id"`
	Maps    []string `json:"maps"`
	Written []string `json:"written"`
	Options []string `json:"options"`
	Journal string   `json:"journal,omitempty"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	return newApplyCommand(&ApplyOptions{RootOptions: rootOpts})
}

func newApplyCommand(opts *ApplyOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Patch every script in a directory",
		Long: `Patch the event scripts in a directory according to a configuration.

Every *.json script container in --in is read, patched as one run, and
written to --out as <map>.json. Nothing is written unless every map
patches cleanly. With --journal, the run and each applied edit are
recorded to a SQLite database.

Exit codes:
  0 - All maps patched
  1 - Invalid configuration or a patch error
  2 - Command error (missing files, unreadable catalog, etc.)

Examples:
  evpatch apply --config events.yaml --catalog emedf.json --in ./event --out ./patched
  evpatch apply --config events.yaml --catalog emedf.json --in ./event --out ./patched \
    --options "bosses dupebosses" --assignment placements.yaml --journal ./patch.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to configuration document (required)")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to instruction catalog (required)")
	cmd.Flags().StringVar(&opts.In, "in", "", "directory of input scripts (required)")
	cmd.Flags().StringVar(&opts.Out, "out", "", "directory for patched scripts (required)")
	cmd.Flags().StringVar(&opts.Options, "options", "", "space-separated enabled options")
	cmd.Flags().StringVar(&opts.Assignment, "assignment", "", "path to assignment document")
	cmd.Flags().StringVar(&opts.Journal, "journal", "", "path to SQLite patch journal")
	for _, name := range []string{"config", "catalog", "in", "out"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runApply(opts *ApplyOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	cat, err := LoadCatalog(opts.Catalog)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	assignment, err := LoadAssignment(opts.Assignment)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Assignment: %d placement(s), item flags moved: %v", len(assignment.Enemies), assignment.ItemFlagKeys())
	options, err := config.ParseOptions(opts.Options)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalid, err.Error(), map[string]any{"known": config.OptionNames()})
		return WrapExitError(ExitCommandError, "invalid --options", err)
	}
	scripts, err := LoadScripts(opts.In)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	formatter.VerboseLog("Read %d script(s) from %s", len(scripts), opts.In)

	runIDs := opts.RunIDs
	if runIDs == nil {
		runIDs = engine.UUIDv7Generator{}
	}
	engineOpts := []engine.EngineOption{
		engine.WithOptions(options),
		engine.WithLogger(logger),
		engine.WithRunIDGenerator(runIDs),
		engine.WithPass(template.NewEnemyPass(cat, cfg, assignment)),
		engine.WithPass(template.NewItemPass(cat, cfg, assignment)),
	}

	if opts.Journal != "" {
		logger.Debug("opening journal", "path", opts.Journal)
		st, err := store.Open(opts.Journal)
		if err != nil {
			_ = formatter.Error(ErrCodeLoadFailed, fmt.Sprintf("failed to open journal: %v", err), nil)
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := st.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithJournal(st))
	}

	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, stop := signal.NotifyContext(parentCtx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	eng := engine.New(cat, cfg, engineOpts...)
	res, err := eng.PatchAll(ctx, scripts)
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), patchErrorDetails(err))
		return WrapExitError(ExitFailure, "patch failed", err)
	}

	written, err := WriteScripts(opts.Out, res.Scripts)
	if err != nil {
		return outputLoadError(formatter, err)
	}

	result := ApplyResult{
		RunID:   res.RunID,
		Maps:    make([]string, len(res.Scripts)),
		Written: written,
		Options: options.Enabled(),
		Journal: opts.Journal,
	}
	for i, s := range res.Scripts {
		result.Maps[i] = s.Map
	}
	text := fmt.Sprintf("Patched %d map(s) into %s (run %s)", len(result.Maps), opts.Out, res.RunID)
	return formatter.SuccessRun(res.RunID, result, text)
}

// patchErrorDetails returns the structured context of a patch error.
func patchErrorDetails(err error) any {
	var pe *engine.PatchError
	if !errors.As(err, &pe) {
		return nil
	}
	details := map[string]any{}
	if pe.Map != "" {
		details["map"] = pe.Map
		details["event"] = pe.EventID
	}
	if pe.Matcher != "" {
		details["match"] = pe.Matcher
	}
	for k, v := range pe.Details {
		details[k] = v
	}
	if len(details) == 0 {
		return nil
	}
	return details
}
