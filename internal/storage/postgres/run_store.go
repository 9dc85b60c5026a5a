package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
)

// RunStore implements store.RunRepo on Postgres.
type RunStore struct {
	db DB
}

// NewRunStore constructs a RunStore from an existing pool.
func NewRunStore(db DB) (*RunStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RunStore{db: db}, nil
}

// Create inserts a sweep run row.
func (s *RunStore) Create(ctx context.Context, run scout.SweepRun) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO sweep_runs (id, source_id, started_at, finished_at, status, target)
VALUES ($1,$2,$3,$4,$5,$6)`,
		run.ID, nullable(run.SourceID), run.StartedAt, run.FinishedAt, run.Status, run.Target,
	)
	if err != nil {
		return fmt.Errorf("insert sweep run: %w", mapError(err))
	}
	return nil
}

// Finish stamps the run's end time and terminal status.
func (s *RunStore) Finish(ctx context.Context, runID string, at time.Time, status scout.RunStatus) error {
	tag, err := s.db.Exec(ctx, `
UPDATE sweep_runs SET finished_at = $1, status = $2 WHERE id = $3`,
		at, status, runID,
	)
	if err != nil {
		return fmt.Errorf("finish sweep run: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// nullable maps "" to NULL for optional foreign keys.
func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
