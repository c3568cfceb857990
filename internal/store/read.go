package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/evpatch/internal/engine"
)

// Run is a journaled patch run.
type Run struct {
	ID      string
	Options []string
	Maps    []string
	Status  engine.RunStatus
	Message string
	// Edits is the number of edit records of the run.
	Edits int
}

// ListRuns returns every run in the order they began.
//
// Returns an empty slice (not nil) if the journal has no runs.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT r.id, r.options, r.maps, r.status, r.message,
		       (SELECT COUNT(*) FROM edits e WHERE e.run_id = r.id)
		FROM runs r
		ORDER BY r.seq ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ReadRun retrieves a single run by id.
// Returns sql.ErrNoRows if not found.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT r.id, r.options, r.maps, r.status, r.message,
		       (SELECT COUNT(*) FROM edits e WHERE e.run_id = r.id)
		FROM runs r
		WHERE r.id = ?
	`, id)
	return scanRun(row)
}

// ListEdits returns the edit records of a run ordered by seq.
//
// Returns an empty slice (not nil) if the run recorded no edits.
func (s *Store) ListEdits(ctx context.Context, runID string) ([]engine.EditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, map, event_id, source, kind, idx, count, matcher, before_hash, after_hash
		FROM edits
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query edits: %w", err)
	}
	return scanEdits(rows)
}

// EventHistory returns the edits one run made to one event, ordered by
// seq.
func (s *Store) EventHistory(ctx context.Context, runID, mapName string, eventID int64) ([]engine.EditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, seq, map, event_id, source, kind, idx, count, matcher, before_hash, after_hash
		FROM edits
		WHERE run_id = ? AND map = ? AND event_id = ?
		ORDER BY seq ASC
	`, runID, mapName, eventID)
	if err != nil {
		return nil, fmt.Errorf("query event history: %w", err)
	}
	return scanEdits(rows)
}

func scanEdits(rows *sql.Rows) ([]engine.EditRecord, error) {
	defer rows.Close()

	edits := []engine.EditRecord{}
	for rows.Next() {
		var rec engine.EditRecord
		err := rows.Scan(
			&rec.RunID,
			&rec.Seq,
			&rec.Map,
			&rec.EventID,
			&rec.Source,
			&rec.Kind,
			&rec.Index,
			&rec.Count,
			&rec.Matcher,
			&rec.BeforeHash,
			&rec.AfterHash,
		)
		if err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		edits = append(edits, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edits: %w", err)
	}
	return edits, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run           Run
		options, maps string
		status        string
	)
	if err := row.Scan(&run.ID, &options, &maps, &status, &run.Message, &run.Edits); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}
	var err error
	if run.Options, err = unmarshalNames(options); err != nil {
		return Run{}, err
	}
	if run.Maps, err = unmarshalNames(maps); err != nil {
		return Run{}, err
	}
	run.Status = engine.RunStatus(status)
	return run, nil
}
