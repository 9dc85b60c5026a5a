package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
)

// EntityStore implements store.EntityRepo on Postgres. It only ever touches
// the narrow set of columns the pipeline is allowed to fill.
type EntityStore struct {
	db DB
}

// NewEntityStore constructs an EntityStore from an existing pool.
func NewEntityStore(db DB) (*EntityStore, error) {
	if db == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &EntityStore{db: db}, nil
}

const tournamentColumns = `id, name, website, entry_fee, venue, address,
	start_date, end_date, email, phone, director, attributes, last_swept_at, updated_at`

// entityColumnFor whitelists the canonical columns UpdateFields may write.
// Anything else is treated as an attribute key and merged into the JSONB
// attributes column.
var entityColumnFor = map[string]string{
	"entry_fee":  "entry_fee",
	"venue":      "venue",
	"address":    "address",
	"start_date": "start_date",
	"end_date":   "end_date",
	"email":      "email",
	"phone":      "phone",
	"director":   "director",
}

// Get fetches one tournament.
func (s *EntityStore) Get(ctx context.Context, id string) (scout.Tournament, error) {
	query := fmt.Sprintf(`SELECT %s FROM tournaments WHERE id = $1`, tournamentColumns)
	t, err := scanTournament(s.db.QueryRow(ctx, query, id))
	if err != nil {
		return scout.Tournament{}, mapError(err)
	}
	return t, nil
}

// ListSweepTargets selects enrichment targets: a website to fetch, at least
// one empty enrichable column, no pending candidate, and not swept within the
// cooldown window. Never-swept rows sort first.
func (s *EntityStore) ListSweepTargets(ctx context.Context, limit int, cutoff time.Time) ([]scout.Tournament, error) {
	query := fmt.Sprintf(`
SELECT %s FROM tournaments t
WHERE t.website <> ''
  AND (t.entry_fee = '' OR t.venue = '' OR t.address = '' OR t.start_date = ''
       OR t.end_date = '' OR t.email = '' OR t.phone = '' OR t.director = '')
  AND (t.last_swept_at IS NULL OR t.last_swept_at < $1)
  AND NOT EXISTS (
      SELECT 1 FROM candidates c
      WHERE c.target_entity_id = t.id
        AND c.accepted_at IS NULL AND c.rejected_at IS NULL
  )
ORDER BY t.last_swept_at NULLS FIRST
LIMIT $2`, tournamentColumns)
	rows, err := s.db.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("list sweep targets: %w", mapError(err))
	}
	return scanTournaments(rows)
}

// CountSweepExclusions counts enrichable entities passed over by selection,
// split into cooldown holds and pending-candidate holds. A pending candidate
// excludes regardless of cooldown, so it is counted only once.
func (s *EntityStore) CountSweepExclusions(ctx context.Context, cutoff time.Time) (int, int, error) {
	query := `
SELECT
  COUNT(*) FILTER (WHERE NOT has_pending AND last_swept_at IS NOT NULL AND last_swept_at >= $1),
  COUNT(*) FILTER (WHERE has_pending)
FROM (
  SELECT t.last_swept_at,
         EXISTS (
           SELECT 1 FROM candidates c
           WHERE c.target_entity_id = t.id
             AND c.accepted_at IS NULL AND c.rejected_at IS NULL
         ) AS has_pending
  FROM tournaments t
  WHERE t.website <> ''
    AND (t.entry_fee = '' OR t.venue = '' OR t.address = '' OR t.start_date = ''
         OR t.end_date = '' OR t.email = '' OR t.phone = '' OR t.director = '')
) x`
	var recent, pending int
	if err := s.db.QueryRow(ctx, query, cutoff).Scan(&recent, &pending); err != nil {
		return 0, 0, fmt.Errorf("count sweep exclusions: %w", mapError(err))
	}
	return recent, pending, nil
}

// ListWithWebsite returns tournaments with a confirmed website, for the
// contact-enrichment fan-out.
func (s *EntityStore) ListWithWebsite(ctx context.Context, limit int) ([]scout.Tournament, error) {
	query := fmt.Sprintf(`
SELECT %s FROM tournaments WHERE website <> '' ORDER BY name LIMIT $1`, tournamentColumns)
	rows, err := s.db.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list tournaments with website: %w", mapError(err))
	}
	return scanTournaments(rows)
}

// UpdateFields writes only the given fields plus updated_at. Canonical keys
// set their column; unknown keys merge into the attributes JSONB map. Keys
// are applied in sorted order so the statement is deterministic.
func (s *EntityStore) UpdateFields(ctx context.Context, id string, fields map[string]string, at time.Time) error {
	if len(fields) == 0 {
		return nil
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	sets := []string{}
	args := []any{}
	attrs := map[string]string{}
	for _, k := range keys {
		col, ok := entityColumnFor[k]
		if !ok {
			attrs[k] = fields[k]
			continue
		}
		args = append(args, fields[k])
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	if len(attrs) > 0 {
		payload, err := json.Marshal(attrs)
		if err != nil {
			return fmt.Errorf("marshal attributes: %w", err)
		}
		args = append(args, payload)
		sets = append(sets, fmt.Sprintf("attributes = attributes || $%d::jsonb", len(args)))
	}
	args = append(args, at)
	sets = append(sets, fmt.Sprintf("updated_at = $%d", len(args)))
	args = append(args, id)

	query := fmt.Sprintf(`UPDATE tournaments SET %s WHERE id = $%d`,
		strings.Join(sets, ", "), len(args))
	tag, err := s.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update tournament fields: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

// TouchSwept stamps the last sweep attempt time regardless of outcome.
func (s *EntityStore) TouchSwept(ctx context.Context, id string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE tournaments SET last_swept_at = $1 WHERE id = $2`, at, id)
	if err != nil {
		return fmt.Errorf("touch tournament: %w", mapError(err))
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func scanTournament(row pgx.Row) (scout.Tournament, error) {
	var t scout.Tournament
	var attrs []byte
	err := row.Scan(
		&t.ID, &t.Name, &t.Website, &t.EntryFee, &t.Venue, &t.Address,
		&t.StartDate, &t.EndDate, &t.Email, &t.Phone, &t.Director,
		&attrs, &t.LastSweptAt, &t.UpdatedAt,
	)
	if err != nil {
		return scout.Tournament{}, err
	}
	if len(attrs) > 0 {
		if err := json.Unmarshal(attrs, &t.Attributes); err != nil {
			return scout.Tournament{}, fmt.Errorf("decode attributes: %w", err)
		}
	}
	return t, nil
}

func scanTournaments(rows pgx.Rows) ([]scout.Tournament, error) {
	defer rows.Close()
	var out []scout.Tournament
	for rows.Next() {
		t, err := scanTournament(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tournament: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tournaments: %w", err)
	}
	return out, nil
}
