package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
)

// SourceStore implements store.SourceRegistryRepo on Postgres.
type SourceStore struct {
	db DB
}

// NewSourceStore constructs a SourceStore from an existing pool.
func NewSourceStore(db DB) (*SourceStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &SourceStore{db: db}, nil
}

const sourceColumns = `id, canonical_url, normalized_url, host, source_type,
	sport, region, is_active, review_status, ignore_until, last_swept_at, created_at`

// Ensure returns the registry row for the normalized URL, inserting one from
// the given defaults when absent. The insert races are resolved by the unique
// index on normalized_url; on conflict we re-read the winner.
func (s *SourceStore) Ensure(ctx context.Context, src scout.Source) (scout.Source, bool, error) {
	existing, err := s.GetByNormalizedURL(ctx, src.NormalizedURL)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return scout.Source{}, false, err
	}

	query := fmt.Sprintf(`
INSERT INTO sources (%s)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`, sourceColumns)
	_, err = s.db.Exec(ctx, query,
		src.ID, src.CanonicalURL, src.NormalizedURL, src.Host, src.SourceType,
		src.Sport, src.Region, src.IsActive, src.ReviewStatus,
		src.IgnoreUntil, src.LastSweptAt, src.CreatedAt,
	)
	if err != nil {
		if mapped := mapError(err); errors.Is(mapped, store.ErrDuplicateKey) {
			winner, getErr := s.GetByNormalizedURL(ctx, src.NormalizedURL)
			if getErr != nil {
				return scout.Source{}, false, getErr
			}
			return winner, false, nil
		}
		return scout.Source{}, false, fmt.Errorf("insert source: %w", mapError(err))
	}
	return src, true, nil
}

// GetByNormalizedURL fetches a source by its identity.
func (s *SourceStore) GetByNormalizedURL(ctx context.Context, normalized string) (scout.Source, error) {
	query := fmt.Sprintf(`SELECT %s FROM sources WHERE normalized_url = $1`, sourceColumns)
	row := s.db.QueryRow(ctx, query, normalized)

	var src scout.Source
	err := row.Scan(
		&src.ID, &src.CanonicalURL, &src.NormalizedURL, &src.Host, &src.SourceType,
		&src.Sport, &src.Region, &src.IsActive, &src.ReviewStatus,
		&src.IgnoreUntil, &src.LastSweptAt, &src.CreatedAt,
	)
	if err != nil {
		return scout.Source{}, mapError(err)
	}
	return src, nil
}

// MarkTerminal sets a permanent skip status on the source.
func (s *SourceStore) MarkTerminal(ctx context.Context, id string, status scout.SourceReviewStatus) error {
	if !scout.TerminalStatuses[status] {
		return fmt.Errorf("status %q is not terminal", status)
	}
	tag, err := s.db.Exec(ctx,
		`UPDATE sources SET review_status = $1 WHERE id = $2`, status, id)
	if err != nil {
		return fmt.Errorf("mark source terminal: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TouchSwept stamps the last sweep attempt time.
func (s *SourceStore) TouchSwept(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE sources SET last_swept_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch source: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// Deactivate retires the source without deleting its history.
func (s *SourceStore) Deactivate(ctx context.Context, id string) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE sources SET is_active = FALSE WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deactivate source: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
