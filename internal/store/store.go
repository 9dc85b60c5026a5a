// Package store declares the typed repository interfaces the pipeline core
// depends on, so nothing upstream touches a storage engine directly.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/refhq/sourcescout/internal/scout"
)

// ErrNotFound signals that the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrDuplicateKey signals a unique-constraint hit on the candidate composite
// key; the dedup layer should have prevented this, so hitting it means a
// concurrent insert raced us and losing is fine.
var ErrDuplicateKey = errors.New("duplicate composite key")

// ErrConstraintOutdated signals that the store rejected a value shape its
// schema does not yet accept. This is a schema gap, not a data problem, and
// is surfaced distinctly so operators widen the constraint instead of
// chasing the payload.
var ErrConstraintOutdated = errors.New("attribute constraint outdated")

// SourceRegistryRepo stores one row per distinct external source.
type SourceRegistryRepo interface {
	// Ensure returns the existing entry whose normalized URL matches, or
	// creates one from the given defaults. The bool reports creation.
	Ensure(ctx context.Context, src scout.Source) (scout.Source, bool, error)
	GetByNormalizedURL(ctx context.Context, normalized string) (scout.Source, error)
	// MarkTerminal transitions an entry into a permanent skip state.
	MarkTerminal(ctx context.Context, id string, status scout.SourceReviewStatus) error
	TouchSwept(ctx context.Context, id string, at time.Time) error
	Deactivate(ctx context.Context, id string) error
}

// RunRepo persists sweep runs.
type RunRepo interface {
	Create(ctx context.Context, run scout.SweepRun) error
	Finish(ctx context.Context, runID string, at time.Time, status scout.RunStatus) error
}

// RecordRepo persists raw scrape payloads.
type RecordRepo interface {
	Create(ctx context.Context, rec scout.SourceRecord) error
	SetReviewStatus(ctx context.Context, id string, status scout.RecordStatus) error
}

// CandidateRepo persists staged candidates. Values never mutate; only the
// accept/reject timestamps do.
type CandidateRepo interface {
	InsertBatch(ctx context.Context, candidates []scout.Candidate) error
	ListByTarget(ctx context.Context, targetID string) ([]scout.Candidate, error)
	ListPendingByTarget(ctx context.Context, targetID string) ([]scout.Candidate, error)
	GetByIDs(ctx context.Context, ids []string) ([]scout.Candidate, error)
	MarkAccepted(ctx context.Context, ids []string, at time.Time) error
	MarkRejected(ctx context.Context, ids []string, at time.Time) error
}

// EntityRepo performs the narrow reads and field updates the pipeline is
// allowed against canonical tournaments.
type EntityRepo interface {
	Get(ctx context.Context, id string) (scout.Tournament, error)
	// ListSweepTargets returns up to limit entities missing at least one
	// enrichable field, with no pending candidate, and last swept before
	// cutoff (or never), oldest-swept first.
	ListSweepTargets(ctx context.Context, limit int, cutoff time.Time) ([]scout.Tournament, error)
	// CountSweepExclusions reports how many otherwise-enrichable entities the
	// selection passed over: still inside the cooldown window, or carrying a
	// pending candidate.
	CountSweepExclusions(ctx context.Context, cutoff time.Time) (recent, pending int, err error)
	// ListWithWebsite returns entities with a confirmed website, used by the
	// contact-enrichment fan-out.
	ListWithWebsite(ctx context.Context, limit int) ([]scout.Tournament, error)
	// UpdateFields writes only the given fields plus the update timestamp.
	UpdateFields(ctx context.Context, id string, fields map[string]string, at time.Time) error
	TouchSwept(ctx context.Context, id string, at time.Time) error
}
