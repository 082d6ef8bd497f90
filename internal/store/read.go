package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/vfaabeso/tea-simulation/internal/entity"
)

// ErrRunNotFound is returned for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Snapshot is the status of every entity after Tick completed ticks, as
// read back from the store.
type Snapshot struct {
	Tick   int64                    `json:"tick" yaml:"tick"`
	Status map[string]entity.Status `json:"status" yaml:"status"`
}

const runColumns = `id, scenario, environment, ticks, fingerprint, status, failure_code, seq`

// ReadRun returns the run with the given id.
func (s *Store) ReadRun(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("read run %q: %w", id, ErrRunNotFound)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run %q: %w", id, err)
	}
	return run, nil
}

// ListRuns returns recorded runs ORDER BY seq ASC. If scenario is not
// empty, only runs of that scenario are returned.
//
// Returns an empty slice (not nil) if no runs match.
func (s *Store) ListRuns(ctx context.Context, scenario string) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY seq ASC, id COLLATE BINARY ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
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

// ReadSnapshots returns the snapshots of a run grouped by tick, in tick
// order. Rows are read ORDER BY tick ASC, entity_id COLLATE BINARY ASC.
//
// Returns an empty slice (not nil) if the run has no snapshots.
func (s *Store) ReadSnapshots(ctx context.Context, runID string) ([]Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT tick, entity_id, status
		FROM snapshots
		WHERE run_id = ?
		ORDER BY tick ASC, entity_id COLLATE BINARY ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	snaps := []Snapshot{}
	for rows.Next() {
		var (
			tick       int64
			entityID   string
			statusJSON string
		)
		if err := rows.Scan(&tick, &entityID, &statusJSON); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		status, err := unmarshalStatus(statusJSON)
		if err != nil {
			return nil, fmt.Errorf("snapshot %d/%s: %w", tick, entityID, err)
		}

		if n := len(snaps); n == 0 || snaps[n-1].Tick != tick {
			snaps = append(snaps, Snapshot{Tick: tick, Status: map[string]entity.Status{}})
		}
		snaps[len(snaps)-1].Status[entityID] = status
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (Run, error) {
	var (
		run     Run
		envJSON string
		status  string
	)
	err := row.Scan(
		&run.ID,
		&run.Scenario,
		&envJSON,
		&run.Ticks,
		&run.Fingerprint,
		&status,
		&run.FailureCode,
		&run.Seq,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Run{}, err
		}
		return Run{}, fmt.Errorf("scan run: %w", err)
	}

	run.Status = RunStatus(status)
	run.Environment, err = unmarshalStatus(envJSON)
	if err != nil {
		return Run{}, fmt.Errorf("run %s environment: %w", run.ID, err)
	}
	return run, nil
}
