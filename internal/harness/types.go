package harness

import "github.com/roach88/evpatch/internal/engine"

// EventSnapshot is a patched event rendered as command text.
type EventSnapshot struct {
	ID       int64    `json:"id"`
	Commands []string `json:"commands"`
}

// MapSnapshot is a patched script rendered as command text.
type MapSnapshot struct {
	Map    string          `json:"map"`
	Events []EventSnapshot `json:"events"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass indicates overall scenario success.
	Pass bool `json:"pass"`

	RunID string `json:"run_id"`

	// ErrorCode is the code of the patch error, or empty if the run
	// succeeded.
	ErrorCode string `json:"error_code,omitempty"`
	// RunError is the full text of the patch error.
	RunError string `json:"run_error,omitempty"`

	// Maps are the patched scripts. Empty when the run failed.
	Maps []MapSnapshot `json:"maps"`

	// Edits is the run's journal, ordered by seq.
	Edits []engine.EditRecord `json:"edits"`

	// Errors contains assertion failures. Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Maps:   []MapSnapshot{},
		Edits:  []engine.EditRecord{},
		Errors: []string{},
	}
}

// AddError adds a failure message and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Event returns the rendered event, or nil.
func (r *Result) Event(mapName string, id int64) *EventSnapshot {
	for i := range r.Maps {
		if r.Maps[i].Map != mapName {
			continue
		}
		for j := range r.Maps[i].Events {
			if r.Maps[i].Events[j].ID == id {
				return &r.Maps[i].Events[j]
			}
		}
	}
	return nil
}
