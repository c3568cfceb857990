package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/ir"
)

// PackOptions holds flags for the pack command.
type PackOptions struct {
	*RootOptions
	Config  string
	Catalog string
	Map     string
	Event   string
	Options string
}

// PackedArgument is one packed argument in pack output.
type PackedArgument struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Width  int    `json:"width"`
	Token  string `json:"token"`
}

// PackResult is the materialized form of one new event.
type PackResult struct {
	Map       string           `json:"map"`
	Name      string           `json:"name,omitempty"`
	ID        int64            `json:"id,omitempty"`
	Arguments []PackedArgument `json:"arguments"`
	Commands  []string         `json:"commands"`
	// Hash fingerprints Commands; it is stable across Unicode
	// normalization forms.
	Hash string `json:"hash"`
	// Parsed is true when the commands went through the catalog.
	Parsed bool `json:"parsed"`
}

// NewPackCommand creates the pack command.
func NewPackCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PackOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pack",
		Short: "Show how a new event's arguments are packed",
		Long: `Print the packed argument tokens and materialized commands of a new event.

Arguments are filtered by their If expressions (evaluated against
--options) and packed into X<offset>_<width> tokens, which replace the
argument names in the event's commands. With --catalog the commands are
also parsed and printed back in catalog form.

Examples:
  evpatch pack --config events.yaml --map m10_00 --event bossdupe
  evpatch pack --config events.yaml --map m10_00 --event 11005990 --catalog emedf.json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPack(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "path to configuration document (required)")
	cmd.Flags().StringVar(&opts.Map, "map", "", "map holding the new event (required)")
	cmd.Flags().StringVar(&opts.Event, "event", "", "new event name or id (required)")
	cmd.Flags().StringVar(&opts.Catalog, "catalog", "", "path to instruction catalog")
	cmd.Flags().StringVar(&opts.Options, "options", "", "space-separated enabled options")
	for _, name := range []string{"config", "map", "event"} {
		_ = cmd.MarkFlagRequired(name)
	}

	return cmd
}

func runPack(opts *PackOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd)

	cfg, err := LoadConfig(opts.Config)
	if err != nil {
		return outputLoadError(formatter, err)
	}
	options, err := config.ParseOptions(opts.Options)
	if err != nil {
		_ = formatter.Error(ErrCodeInvalid, err.Error(), map[string]any{"known": config.OptionNames()})
		return WrapExitError(ExitCommandError, "invalid --options", err)
	}

	ne := findNewEvent(cfg.NewEvents[opts.Map], opts.Event)
	if ne == nil {
		msg := fmt.Sprintf("no new event %q in map %s", opts.Event, opts.Map)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitCommandError, msg)
	}

	var result *PackResult
	if opts.Catalog == "" {
		result, err = packText(ne, &options)
	} else {
		cat, lerr := LoadCatalog(opts.Catalog)
		if lerr != nil {
			return outputLoadError(formatter, lerr)
		}
		eng := engine.New(cat, cfg,
			engine.WithOptions(options),
			engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		)
		var ev *ir.Event
		var packed []engine.PackedArgument
		ev, packed, err = eng.Materialize(ne, ne.ID)
		if err == nil {
			params := ir.ParamsByInstruction(ev)
			commands := make([]string, len(ev.Instructions))
			for i, instr := range ev.Instructions {
				commands[i] = cat.Format(instr, params[i])
			}
			result = &PackResult{Arguments: packedOutput(packed), Commands: commands, Parsed: true}
		}
	}
	if err != nil {
		_ = formatter.Error(errorCode(err), err.Error(), patchErrorDetails(err))
		return WrapExitError(ExitFailure, "pack failed", err)
	}
	result.Map = opts.Map
	result.Hash = ir.CommandHash(result.Commands)
	result.Name = ne.Name
	result.ID = ne.ID

	if formatter.Format == "json" {
		return formatter.Success(result)
	}
	return outputPackText(formatter.Writer, result)
}

// findNewEvent looks a new event up by name, then by id.
func findNewEvent(events []*config.NewEvent, key string) *config.NewEvent {
	for _, ne := range events {
		if ne.Name != "" && ne.Name == key {
			return ne
		}
	}
	id, err := strconv.ParseInt(key, 10, 64)
	if err != nil {
		return nil
	}
	for _, ne := range events {
		if ne.ID == id {
			return ne
		}
	}
	return nil
}

// packText packs and substitutes without a catalog.
func packText(ne *config.NewEvent, options *config.Options) (*PackResult, error) {
	var args []*config.EventArgument
	for _, a := range ne.Arguments {
		ok, err := a.IncludeFor(options)
		if err != nil {
			return nil, engine.NewError(engine.ErrCodeInvalidExpression, "argument %s: If %q: %v", a.Name, a.If, err)
		}
		if ok {
			args = append(args, a)
		}
	}
	packed, err := engine.PackArguments(args)
	if err != nil {
		return nil, err
	}
	commands := engine.SubstituteArguments(ne.Commands, packed)
	if commands == nil {
		commands = []string{}
	}
	return &PackResult{Arguments: packedOutput(packed), Commands: commands}, nil
}

func packedOutput(packed []engine.PackedArgument) []PackedArgument {
	out := make([]PackedArgument, len(packed))
	for i, p := range packed {
		out[i] = PackedArgument{Name: p.Name, Offset: p.Offset, Width: p.Width, Token: p.Token()}
	}
	return out
}

func outputPackText(w io.Writer, r *PackResult) error {
	label := r.Name
	if r.ID != 0 {
		label = strings.TrimSpace(fmt.Sprintf("%s %d", r.Name, r.ID))
	}
	fmt.Fprintf(w, "New event %s in %s\n", label, r.Map)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Arguments (%d):\n", len(r.Arguments))
	for _, a := range r.Arguments {
		fmt.Fprintf(w, "  %-12s %s\n", a.Name, a.Token)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Commands (%d):\n", len(r.Commands))
	for i, c := range r.Commands {
		fmt.Fprintf(w, "  [%d] %s\n", i, c)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Hash: %s\n", r.Hash)
	return nil
}
