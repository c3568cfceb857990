package engine

import "context"

// RunStatus is the outcome of a patch run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// RunRecord describes a patch run when it starts.
type RunRecord struct {
	ID string
	// Options are the enabled option names, sorted.
	Options []string
	// Maps are the names of the scripts being patched, in input order.
	Maps []string
}

// EditRecord is one applied change, as written to the journal.
type EditRecord struct {
	RunID string
	// Seq orders records within the run.
	Seq     int64
	Map     string
	EventID int64
	// Source names the configuration entry that produced the change,
	// e.g. "ExistingEvents[11000800].Edits[2]" or "EnemyEvents[3]".
	Source  string
	Kind    string
	Index   int
	Count   int
	Matcher string
	// BeforeHash is empty for events that did not exist before the change.
	BeforeHash string
	AfterHash  string
}

// Journal records patch runs for later audit.
//
// Maps are patched in parallel; implementations must be safe for
// concurrent use.
type Journal interface {
	BeginRun(ctx context.Context, run RunRecord) error
	RecordEdit(ctx context.Context, rec EditRecord) error
	FinishRun(ctx context.Context, runID string, status RunStatus, message string) error
}
