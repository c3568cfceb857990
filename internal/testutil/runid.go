package testutil

import (
	"fmt"
	"sync"
)

// SequentialRunIDs generates predictable run ids for tests: "<prefix>-0001",
// "<prefix>-0002", and so on.
//
// The same scenario replayed with a fresh generator records byte-identical
// journals, which keeps golden files stable.
//
// Safe for concurrent use.
type SequentialRunIDs struct {
	mu     sync.Mutex
	prefix string
	n      int
}

// NewSequentialRunIDs creates a generator. An empty prefix becomes "run".
func NewSequentialRunIDs(prefix string) *SequentialRunIDs {
	if prefix == "" {
		prefix = "run"
	}
	return &SequentialRunIDs{prefix: prefix}
}

// Generate returns the next id.
func (g *SequentialRunIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("%s-%04d", g.prefix, g.n)
}
