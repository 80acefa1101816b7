package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// SaveRun stores a run and its completion order, returning the new row ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *RunRecord) (int64, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		INSERT INTO runs (mode, workers, duration_ns, snapshot, error)
		VALUES (?, ?, ?, ?, ?)
	`, run.Mode, run.Workers, run.Duration.Nanoseconds(), run.Snapshot, run.Error)
	if err != nil {
		return 0, fmt.Errorf("failed to insert run: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run ID: %w", err)
	}

	for pos, name := range run.TaskOrder {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO run_tasks (run_id, position, task_name)
			VALUES (?, ?, ?)
		`, id, pos, name)
		if err != nil {
			return 0, fmt.Errorf("failed to insert run task %q: %w", name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return id, nil
}

// GetRun retrieves a run by ID, including its completion order.
func (s *SQLiteStore) GetRun(ctx context.Context, id int64) (*RunRecord, error) {
	run := &RunRecord{}
	var durationNS int64

	err := s.db.QueryRowContext(ctx, `
		SELECT id, mode, workers, duration_ns, snapshot, error, created_at
		FROM runs
		WHERE id = ?
	`, id).Scan(&run.ID, &run.Mode, &run.Workers, &durationNS, &run.Snapshot, &run.Error, &run.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %d", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query run: %w", err)
	}
	run.Duration = durationFromNS(durationNS)

	order, err := s.loadTaskOrder(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	run.TaskOrder = order

	return run, nil
}

// ListRuns returns all runs with their completion orders, oldest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, workers, duration_ns, snapshot, error, created_at
		FROM runs
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*RunRecord
	for rows.Next() {
		run := &RunRecord{}
		var durationNS int64
		if err := rows.Scan(&run.ID, &run.Mode, &run.Workers, &durationNS, &run.Snapshot, &run.Error, &run.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.Duration = durationFromNS(durationNS)

		order, err := s.loadTaskOrder(ctx, run.ID)
		if err != nil {
			return nil, err
		}
		run.TaskOrder = order

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating runs: %w", err)
	}

	return runs, nil
}

func (s *SQLiteStore) loadTaskOrder(ctx context.Context, runID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT task_name
		FROM run_tasks
		WHERE run_id = ?
		ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query task order for run %d: %w", runID, err)
	}
	defer rows.Close()

	var order []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan task name: %w", err)
		}
		order = append(order, name)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating task order: %w", err)
	}

	return order, nil
}

// SaveVerification stores a verification outcome, returning the new row ID.
func (s *SQLiteStore) SaveVerification(ctx context.Context, v *VerificationRecord) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO verifications (trials, deterministic, diverging_trial)
		VALUES (?, ?, ?)
	`, v.Trials, boolToInt(v.Deterministic), v.DivergingTrial)
	if err != nil {
		return 0, fmt.Errorf("failed to save verification: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get verification ID: %w", err)
	}
	return id, nil
}

// ListVerifications returns all verification outcomes, oldest first.
func (s *SQLiteStore) ListVerifications(ctx context.Context) ([]*VerificationRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, trials, deterministic, diverging_trial, created_at
		FROM verifications
		ORDER BY id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query verifications: %w", err)
	}
	defer rows.Close()

	var list []*VerificationRecord
	for rows.Next() {
		v := &VerificationRecord{}
		var det int
		if err := rows.Scan(&v.ID, &v.Trials, &det, &v.DivergingTrial, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verification: %w", err)
		}
		v.Deterministic = det != 0
		list = append(list, v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating verifications: %w", err)
	}

	return list, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func durationFromNS(ns int64) time.Duration {
	return time.Duration(ns)
}
