package engine

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/evpatch/internal/catalog"
	"github.com/roach88/evpatch/internal/config"
	"github.com/roach88/evpatch/internal/ir"
)

func i64(v int64) *int64 { return &v }

func intp(v int) *int { return &v }

func literal(text string) *config.InstructionMatcher {
	return &config.InstructionMatcher{Instruction: text}
}

// testEvent builds an event from command text.
func testEvent(t *testing.T, cat *catalog.Catalog, id int64, commands ...string) *ir.Event {
	t.Helper()
	ev := &ir.Event{ID: id, Parameters: []ir.Parameter{}}
	if len(commands) > 0 {
		require.NoError(t, NewApplicator(cat).Insert(ev, 0, commands))
	}
	return ev
}

// formatEvent renders an event back to command text.
func formatEvent(cat *catalog.Catalog, ev *ir.Event) []string {
	params := ir.ParamsByInstruction(ev)
	out := make([]string, len(ev.Instructions))
	for i, instr := range ev.Instructions {
		out[i] = cat.Format(instr, params[i])
	}
	return out
}

func viewAt(cat *catalog.Catalog, ev *ir.Event, i int) *Instr {
	return View(cat, ev.Instructions[i], ir.ParamsByInstruction(ev)[i])
}
