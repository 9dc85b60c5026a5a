package postgres

import (
	"context"
	"fmt"

	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
)

// RecordStore implements store.RecordRepo on Postgres.
type RecordStore struct {
	db DB
}

// NewRecordStore constructs a RecordStore from an existing pool.
func NewRecordStore(db DB) (*RecordStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &RecordStore{db: db}, nil
}

// Create inserts a raw scrape record.
func (s *RecordStore) Create(ctx context.Context, rec scout.SourceRecord) error {
	_, err := s.db.Exec(ctx, `
INSERT INTO source_records (id, run_id, source_id, target_id, raw_payload, confidence, review_status, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8)`,
		rec.ID, rec.RunID, rec.SourceID, rec.TargetID,
		rec.RawPayload, rec.Confidence, rec.ReviewStatus, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert source record: %w", mapError(err))
	}
	return nil
}

// SetReviewStatus updates the record's curation state. This is the only
// mutation records allow.
func (s *RecordStore) SetReviewStatus(ctx context.Context, id string, status scout.RecordStatus) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE source_records SET review_status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("update record status: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
