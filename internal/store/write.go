package store

import (
	"context"
	"fmt"

	"github.com/roach88/evpatch/internal/engine"
)

// BeginRun records the start of a patch run with status running.
// Beginning a run id that already exists is an error.
func (s *Store) BeginRun(ctx context.Context, run engine.RunRecord) error {
	options, err := marshalNames(run.Options)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}
	maps, err := marshalNames(run.Maps)
	if err != nil {
		return fmt.Errorf("begin run: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO runs (id, options, maps, status)
		VALUES (?, ?, ?, ?)
	`,
		run.ID,
		options,
		maps,
		string(engine.RunRunning),
	)
	if err != nil {
		return fmt.Errorf("begin run %s: %w", run.ID, err)
	}
	return nil
}

// RecordEdit inserts an edit record.
// Uses ON CONFLICT(run_id, seq) DO NOTHING for idempotency - a record
// written twice is silently ignored.
//
// Note: The run referenced by RunID must exist (foreign key constraint).
func (s *Store) RecordEdit(ctx context.Context, rec engine.EditRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO edits
		(run_id, seq, map, event_id, source, kind, idx, count, matcher, before_hash, after_hash)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO NOTHING
	`,
		rec.RunID,
		rec.Seq,
		rec.Map,
		rec.EventID,
		rec.Source,
		rec.Kind,
		rec.Index,
		rec.Count,
		rec.Matcher,
		rec.BeforeHash,
		rec.AfterHash,
	)
	if err != nil {
		return fmt.Errorf("record edit: %w", err)
	}
	return nil
}

// FinishRun sets the final status of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, status engine.RunStatus, message string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs SET status = ?, message = ? WHERE id = ?
	`, string(status), message, runID)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: no such run", runID)
	}
	return nil
}
