package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
)

// CandidateStore implements store.CandidateRepo on Postgres.
type CandidateStore struct {
	db DB
}

// NewCandidateStore constructs a CandidateStore from an existing pool.
func NewCandidateStore(db DB) (*CandidateStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &CandidateStore{db: db}, nil
}

const candidateColumns = `id, target_entity_id, kind, field_key, value,
	venue_name, address, start_date, end_date, contact_name, email, phone,
	source_url, run_id, confidence, accepted_at, rejected_at, created_at`

const insertCandidateSQL = `
INSERT INTO candidates (id, target_entity_id, kind, field_key, value,
	venue_name, address, start_date, end_date, contact_name, email, phone,
	source_url, run_id, confidence, accepted_at, rejected_at, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18)`

// InsertBatch stages candidates one statement at a time. Batches are small
// (a handful per target) so a pgx.Batch round-trip is not worth the extra
// error plumbing; a unique-key race with a concurrent run surfaces as
// store.ErrDuplicateKey and the caller drops the loser.
func (s *CandidateStore) InsertBatch(ctx context.Context, candidates []scout.Candidate) error {
	for _, c := range candidates {
		_, err := s.db.Exec(ctx, insertCandidateSQL,
			c.ID, c.TargetID, c.Kind, c.FieldKey, c.Value,
			c.VenueName, c.Address, c.StartDate, c.EndDate,
			c.ContactName, c.Email, c.Phone,
			c.SourceURL, nullable(c.RunID), c.Confidence,
			c.AcceptedAt, c.RejectedAt, c.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("insert candidate %s/%s: %w", c.Kind, c.FieldKey, mapError(err))
		}
	}
	return nil
}

// ListByTarget returns every candidate ever staged for a target, oldest first.
func (s *CandidateStore) ListByTarget(ctx context.Context, targetID string) ([]scout.Candidate, error) {
	query := fmt.Sprintf(`SELECT %s FROM candidates
WHERE target_entity_id = $1 ORDER BY created_at`, candidateColumns)
	rows, err := s.db.Query(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", mapError(err))
	}
	return scanCandidates(rows)
}

// ListPendingByTarget returns the target's candidates still awaiting review.
func (s *CandidateStore) ListPendingByTarget(ctx context.Context, targetID string) ([]scout.Candidate, error) {
	query := fmt.Sprintf(`SELECT %s FROM candidates
WHERE target_entity_id = $1 AND accepted_at IS NULL AND rejected_at IS NULL
ORDER BY created_at`, candidateColumns)
	rows, err := s.db.Query(ctx, query, targetID)
	if err != nil {
		return nil, fmt.Errorf("list pending candidates: %w", mapError(err))
	}
	return scanCandidates(rows)
}

// GetByIDs returns the candidates for the given ids. Missing ids are an
// ErrNotFound so review calls fail loudly instead of silently partially
// applying.
func (s *CandidateStore) GetByIDs(ctx context.Context, ids []string) ([]scout.Candidate, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	query := fmt.Sprintf(`SELECT %s FROM candidates WHERE id = ANY($1)`, candidateColumns)
	rows, err := s.db.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("get candidates: %w", mapError(err))
	}
	got, err := scanCandidates(rows)
	if err != nil {
		return nil, err
	}
	if len(got) != len(ids) {
		return nil, fmt.Errorf("%w: %d of %d candidate ids", store.ErrNotFound, len(ids)-len(got), len(ids))
	}
	return got, nil
}

// MarkAccepted stamps accepted_at on still-pending candidates. Already
// reviewed rows are left untouched so re-applies stay idempotent.
func (s *CandidateStore) MarkAccepted(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
UPDATE candidates SET accepted_at = $1
WHERE id = ANY($2) AND accepted_at IS NULL AND rejected_at IS NULL`, at, ids)
	if err != nil {
		return fmt.Errorf("mark candidates accepted: %w", mapError(err))
	}
	return nil
}

// MarkRejected stamps rejected_at on still-pending candidates.
func (s *CandidateStore) MarkRejected(ctx context.Context, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.Exec(ctx, `
UPDATE candidates SET rejected_at = $1
WHERE id = ANY($2) AND accepted_at IS NULL AND rejected_at IS NULL`, at, ids)
	if err != nil {
		return fmt.Errorf("mark candidates rejected: %w", mapError(err))
	}
	return nil
}

func scanCandidates(rows pgx.Rows) ([]scout.Candidate, error) {
	defer rows.Close()
	var out []scout.Candidate
	for rows.Next() {
		var c scout.Candidate
		var runID *string
		err := rows.Scan(
			&c.ID, &c.TargetID, &c.Kind, &c.FieldKey, &c.Value,
			&c.VenueName, &c.Address, &c.StartDate, &c.EndDate,
			&c.ContactName, &c.Email, &c.Phone,
			&c.SourceURL, &runID, &c.Confidence,
			&c.AcceptedAt, &c.RejectedAt, &c.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		if runID != nil {
			c.RunID = *runID
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}
