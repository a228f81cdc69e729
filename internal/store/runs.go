package store

import (
	"context"
	"fmt"
	"time"

	"github.com/segmentio/ksuid"

	"github.com/tripfetch/tripfetch/internal/domain"
)

// SaveRun persists a finished run and its per-item outcomes in one
// transaction.
func (s *PersistentStore) SaveRun(ctx context.Context, run domain.RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at) VALUES (?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}

	for _, outcome := range run.Outcomes {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_outcomes (id, run_id, item_name, kind, attempts, duration_ms, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ksuid.New().String(),
			run.ID,
			outcome.ItemName,
			string(outcome.Kind),
			outcome.Attempts,
			outcome.Duration.Milliseconds(),
			outcome.ErrorText(),
		)
		if err != nil {
			return fmt.Errorf("failed to save outcome for %s: %w", outcome.ItemName, err)
		}
	}

	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first, each with its
// outcomes attached.
func (s *PersistentStore) ListRuns(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []domain.RunRecord
	for rows.Next() {
		var run domain.RunRecord
		if err := rows.Scan(&run.ID, &run.StartedAt, &run.FinishedAt); err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range runs {
		outcomes, err := s.listOutcomes(ctx, runs[i].ID)
		if err != nil {
			return nil, err
		}
		runs[i].Outcomes = outcomes
	}

	return runs, nil
}

func (s *PersistentStore) listOutcomes(ctx context.Context, runID string) ([]domain.Outcome, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT item_name, kind, attempts, duration_ms, error
		 FROM run_outcomes WHERE run_id = ? ORDER BY item_name`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var outcomes []domain.Outcome
	for rows.Next() {
		var o domain.Outcome
		var kind string
		var durationMs int64

		if err := rows.Scan(&o.ItemName, &kind, &o.Attempts, &durationMs, &o.ErrorMessage); err != nil {
			return nil, err
		}

		o.Kind = domain.OutcomeKind(kind)
		o.Duration = time.Duration(durationMs) * time.Millisecond
		outcomes = append(outcomes, o)
	}

	return outcomes, rows.Err()
}
