package store

import (
	"context"
	"fmt"
	"slices"

	"github.com/vfaabeso/tea-simulation/internal/entity"
)

// RunStatus is the outcome of a recorded run.
type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunPassed  RunStatus = "passed"
	RunFailed  RunStatus = "failed"
)

// Run is one recorded scenario run.
type Run struct {
	ID          string
	Scenario    string
	Environment entity.Status
	Ticks       int64
	Fingerprint string
	Status      RunStatus
	FailureCode string
	Seq         int64
}

// Outcome is written by FinishRun once a run ends.
type Outcome struct {
	Ticks       int64
	Fingerprint string
	Passed      bool
	FailureCode string
}

// WriteRun inserts a new run in the running state and returns it with its
// generated id and seq. Seq is one more than the highest seq in the store.
func (s *Store) WriteRun(ctx context.Context, scenario string, env entity.Status) (Run, error) {
	envJSON, err := marshalStatus(env)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	run := Run{
		ID:          s.ids.Generate(),
		Scenario:    scenario,
		Environment: env,
		Status:      RunRunning,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Run{}, fmt.Errorf("write run: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	err = tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(seq), 0) + 1 FROM runs`).Scan(&run.Seq)
	if err != nil {
		return Run{}, fmt.Errorf("write run: next seq: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, scenario, environment, status, seq)
		VALUES (?, ?, ?, ?, ?)
	`,
		run.ID,
		run.Scenario,
		envJSON,
		string(run.Status),
		run.Seq,
	)
	if err != nil {
		return Run{}, fmt.Errorf("write run: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return Run{}, fmt.Errorf("write run: commit: %w", err)
	}

	return run, nil
}

// WriteSnapshot stores one row per entity for the snapshot taken after tick
// completed ticks. All rows are written in a single transaction. Rewriting
// an existing (run, tick, entity) row is a no-op.
//
// Note: The run must exist (foreign key constraint).
func (s *Store) WriteSnapshot(ctx context.Context, runID string, tick int64, status map[string]entity.Status) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("write snapshot: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO snapshots (run_id, tick, entity_id, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT DO NOTHING
	`)
	if err != nil {
		return fmt.Errorf("write snapshot: prepare: %w", err)
	}
	defer stmt.Close()

	ids := make([]string, 0, len(status))
	for id := range status {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	for _, id := range ids {
		statusJSON, err := marshalStatus(status[id])
		if err != nil {
			return fmt.Errorf("write snapshot: %s: %w", id, err)
		}
		if _, err := stmt.ExecContext(ctx, runID, tick, id, statusJSON); err != nil {
			return fmt.Errorf("write snapshot: %s: %w", id, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("write snapshot: commit: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run. Fails with ErrRunNotFound for an
// unknown id.
func (s *Store) FinishRun(ctx context.Context, runID string, o Outcome) error {
	status := RunFailed
	if o.Passed {
		status = RunPassed
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET ticks = ?, fingerprint = ?, status = ?, failure_code = ?
		WHERE id = ?
	`,
		o.Ticks,
		o.Fingerprint,
		string(status),
		o.FailureCode,
		runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %q: %w", runID, ErrRunNotFound)
	}
	return nil
}
