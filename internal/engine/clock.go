package engine

import "sync/atomic"

// Clock hands out the sequence numbers that order journal records within
// a run.
//
// Maps are patched in parallel, so the order of seq values across maps is
// not stable between runs. Within one map it follows the order edits were
// applied.
type Clock struct {
	seq atomic.Int64
}

// NewClock creates a clock starting at 0.
func NewClock() *Clock {
	return &Clock{}
}

// Next returns the next sequence number.
func (c *Clock) Next() int64 {
	return c.seq.Add(1)
}

// Current returns the last sequence number handed out.
func (c *Clock) Current() int64 {
	return c.seq.Load()
}
