package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/evpatch/internal/engine"
	"github.com/roach88/evpatch/internal/store"
)

// JournalOptions holds flags for the journal command.
type JournalOptions struct {
	*RootOptions
	Database string
	RunID    string
	Map      string
	Event    int64
	Source   string // optional - filter edits by source prefix
}

// JournalRun is one run in journal output.
type JournalRun struct {
	ID      string   `json:"id"`
	Status  string   `json:"status"`
	Options []string `json:"options"`
	Maps    []string `json:"maps"`
	Message string   `json:"message,omitempty"`
	Edits   int      `json:"edits"`
}

// JournalEdit is one edit record in journal output.
type JournalEdit struct {
	Seq        int64  `json:"seq"`
	Map        string `json:"map"`
	EventID    int64  `json:"event_id"`
	Source     string `json:"source"`
	Kind       string `json:"kind"`
	Index      int    `json:"index"`
	Count      int    `json:"count"`
	Matcher    string `json:"matcher,omitempty"`
	BeforeHash string `json:"before_hash,omitempty"`
	AfterHash  string `json:"after_hash"`
}

// JournalResult holds the complete journal output. Edits is set only
// when a run was selected.
type JournalResult struct {
	Runs  []JournalRun  `json:"runs"`
	Edits []JournalEdit `json:"edits,omitempty"`
	Stats JournalStats  `json:"stats"`
}

// JournalStats counts edits by kind.
type JournalStats struct {
	TotalEdits int            `json:"total_edits"`
	ByKind     map[string]int `json:"by_kind,omitempty"`
	Events     int            `json:"events"`
}

// NewJournalCommand creates the journal command.
func NewJournalCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &JournalOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Inspect journaled patch runs",
		Long: `Inspect the runs and edits recorded in a patch journal.

Without --run, lists every run with its status and edit count. With
--run, lists the edits of that run in the order they were applied;
--map and --event narrow the list to one event's history, and --source
keeps only edits whose source starts with the given prefix.

Examples:
  evpatch journal --db ./journal.db
  evpatch journal --db ./journal.db --run 0192f3c4-...
  evpatch journal --db ./journal.db --run 0192f3c4-... --map m10_00 --event 11000800
  evpatch journal --db ./journal.db --run 0192f3c4-... --source Enemies --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJournal(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite journal (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show edits for")
	cmd.Flags().StringVar(&opts.Map, "map", "", "filter to one map (with --event)")
	cmd.Flags().Int64Var(&opts.Event, "event", 0, "filter to one event id (with --map)")
	cmd.Flags().StringVar(&opts.Source, "source", "", "filter edits by source prefix")

	return cmd
}

func runJournal(opts *JournalOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	if (opts.Map == "") != (opts.Event == 0) {
		return NewExitError(ExitCommandError, "--map and --event must be given together")
	}
	if opts.RunID == "" && (opts.Map != "" || opts.Source != "") {
		return NewExitError(ExitCommandError, "--map, --event and --source need --run")
	}
	if err := requireFile(opts.Database); err != nil {
		return outputLoadError(formatter, err)
	}

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer st.Close()

	if opts.RunID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		result := JournalResult{Runs: make([]JournalRun, len(runs))}
		for i, r := range runs {
			result.Runs[i] = journalRun(r)
			result.Stats.TotalEdits += r.Edits
		}
		if formatter.Format == "json" {
			return formatter.Success(result)
		}
		return outputRunsText(formatter.Writer, result)
	}

	run, err := st.ReadRun(ctx, opts.RunID)
	if errors.Is(err, sql.ErrNoRows) {
		msg := fmt.Sprintf("no run %s in journal", opts.RunID)
		_ = formatter.Error(ErrCodeNotFound, msg, nil)
		return NewExitError(ExitFailure, msg)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}

	var records []engine.EditRecord
	if opts.Map != "" {
		records, err = st.EventHistory(ctx, opts.RunID, opts.Map, opts.Event)
	} else {
		records, err = st.ListEdits(ctx, opts.RunID)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read edits", err)
	}

	result := JournalResult{
		Runs:  []JournalRun{journalRun(run)},
		Edits: buildEdits(records, opts.Source),
	}
	result.Stats = editStats(result.Edits)

	if formatter.Format == "json" {
		return formatter.SuccessRun(run.ID, result, "")
	}
	return outputEditsText(formatter.Writer, result)
}

func journalRun(r store.Run) JournalRun {
	return JournalRun{
		ID:      r.ID,
		Status:  string(r.Status),
		Options: nonNil(r.Options),
		Maps:    nonNil(r.Maps),
		Message: r.Message,
		Edits:   r.Edits,
	}
}

// buildEdits converts journal records, keeping those whose source starts
// with prefix.
func buildEdits(records []engine.EditRecord, prefix string) []JournalEdit {
	edits := []JournalEdit{}
	for _, r := range records {
		if prefix != "" && !strings.HasPrefix(r.Source, prefix) {
			continue
		}
		edits = append(edits, JournalEdit{
			Seq:        r.Seq,
			Map:        r.Map,
			EventID:    r.EventID,
			Source:     r.Source,
			Kind:       r.Kind,
			Index:      r.Index,
			Count:      r.Count,
			Matcher:    r.Matcher,
			BeforeHash: r.BeforeHash,
			AfterHash:  r.AfterHash,
		})
	}
	return edits
}

func editStats(edits []JournalEdit) JournalStats {
	stats := JournalStats{TotalEdits: len(edits), ByKind: make(map[string]int)}
	events := make(map[string]bool)
	for _, e := range edits {
		stats.ByKind[e.Kind]++
		events[fmt.Sprintf("%s/%d", e.Map, e.EventID)] = true
	}
	stats.Events = len(events)
	return stats
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func outputRunsText(w io.Writer, result JournalResult) error {
	if len(result.Runs) == 0 {
		fmt.Fprintln(w, "No runs in journal")
		return nil
	}
	fmt.Fprintf(w, "Runs (%d):\n", len(result.Runs))
	for _, r := range result.Runs {
		fmt.Fprintf(w, "  %s  %-9s  %d edit(s)  maps: %s", r.ID, r.Status, r.Edits, strings.Join(r.Maps, ", "))
		if len(r.Options) > 0 {
			fmt.Fprintf(w, "  options: %s", strings.Join(r.Options, " "))
		}
		fmt.Fprintln(w)
		if r.Message != "" {
			fmt.Fprintf(w, "      %s\n", r.Message)
		}
	}
	return nil
}

func outputEditsText(w io.Writer, result JournalResult) error {
	run := result.Runs[0]
	fmt.Fprintf(w, "Run: %s (%s)\n", run.ID, run.Status)
	if run.Message != "" {
		fmt.Fprintf(w, "Message: %s\n", run.Message)
	}
	fmt.Fprintln(w)

	if len(result.Edits) == 0 {
		fmt.Fprintln(w, "No edits")
		return nil
	}
	fmt.Fprintf(w, "Edits (%d):\n", len(result.Edits))
	for _, e := range result.Edits {
		fmt.Fprintf(w, "  [%d] %s %d  %s %s @%d x%d", e.Seq, e.Map, e.EventID, e.Source, e.Kind, e.Index, e.Count)
		if e.Matcher != "" {
			fmt.Fprintf(w, "  match: %s", e.Matcher)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Stats: %d edit(s) across %d event(s)\n", result.Stats.TotalEdits, result.Stats.Events)
	return nil
}
