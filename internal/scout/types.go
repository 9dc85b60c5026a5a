// Package scout defines core types shared across subsystems.
package scout

import (
	"net/http"
	"time"
)

// SourceType classifies a registered external source.
type SourceType string

// Source type values persisted in sources.source_type.
const (
	SourceTypeTournament SourceType = "tournament"
	SourceTypeAssignor   SourceType = "assignor"
	SourceTypeDirectory  SourceType = "directory"
)

// SourceReviewStatus represents the curation state of a registry entry.
type SourceReviewStatus string

// Review status values persisted in sources.review_status. Everything from
// StatusDead onward is terminal and permanently excludes the source from
// future fetch attempts.
const (
	SourceUntested        SourceReviewStatus = "untested"
	SourceWorking         SourceReviewStatus = "working"
	SourceDead            SourceReviewStatus = "dead"
	SourceBlocked         SourceReviewStatus = "blocked"
	SourceLoginRequired   SourceReviewStatus = "login_required"
	SourcePaywalled       SourceReviewStatus = "paywalled"
	SourceDuplicateSource SourceReviewStatus = "duplicate_source"
)

// TerminalStatuses lists the registry states that permanently exclude a
// source from fetching.
var TerminalStatuses = map[SourceReviewStatus]bool{
	SourceDead:            true,
	SourceBlocked:         true,
	SourceLoginRequired:   true,
	SourcePaywalled:       true,
	SourceDuplicateSource: true,
}

// Source is one row of the source registry: a distinct external site or page.
// Identity is the normalized URL; rows are deactivated, never deleted.
type Source struct {
	ID            string             `json:"id"`
	CanonicalURL  string             `json:"canonical_url"`
	NormalizedURL string             `json:"normalized_url"`
	Host          string             `json:"host"`
	SourceType    SourceType         `json:"source_type"`
	Sport         string             `json:"sport,omitempty"`
	Region        string             `json:"region,omitempty"`
	IsActive      bool               `json:"is_active"`
	ReviewStatus  SourceReviewStatus `json:"review_status"`
	IgnoreUntil   *time.Time         `json:"ignore_until,omitempty"`
	LastSweptAt   *time.Time         `json:"last_swept_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at"`
}

// Eligible reports whether the source may be fetched at all.
func (s Source) Eligible(now time.Time) bool {
	if !s.IsActive {
		return false
	}
	if TerminalStatuses[s.ReviewStatus] {
		return false
	}
	if s.IgnoreUntil != nil && s.IgnoreUntil.After(now) {
		return false
	}
	return true
}

// RunStatus represents the lifecycle state of a sweep run.
type RunStatus string

// Run status values persisted in sweep_runs.status.
const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// SweepRun groups all candidates produced from one orchestrator invocation.
type SweepRun struct {
	ID         string     `json:"id"`
	SourceID   string     `json:"source_id,omitempty"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Status     RunStatus  `json:"status"`
	Target     string     `json:"target,omitempty"`
}

// RecordStatus is the curation state of a scraped payload.
type RecordStatus string

// Record status values persisted in source_records.review_status.
const (
	RecordNeedsReview RecordStatus = "needs_review"
	RecordApproved    RecordStatus = "approved"
	RecordRejected    RecordStatus = "rejected"
	RecordBlocked     RecordStatus = "blocked"
)

// SourceRecord is the raw scraped payload for one (entity, source) pairing.
// RawPayload holds a blob URI pointing at the archived page body. Immutable
// once created except for ReviewStatus.
type SourceRecord struct {
	ID           string       `json:"id"`
	RunID        string       `json:"run_id"`
	SourceID     string       `json:"source_id"`
	TargetID     string       `json:"target_id"`
	RawPayload   string       `json:"raw_payload"`
	Confidence   float64      `json:"confidence"`
	ReviewStatus RecordStatus `json:"review_status"`
	CreatedAt    time.Time    `json:"created_at"`
}

// CandidateKind discriminates the four candidate shapes.
type CandidateKind string

// Candidate kinds persisted in candidates.kind.
const (
	KindAttribute CandidateKind = "attribute"
	KindVenue     CandidateKind = "venue"
	KindDateRange CandidateKind = "date_range"
	KindContact   CandidateKind = "contact"
)

// Candidate is an unverified extracted fact awaiting human accept/reject.
// A candidate with both AcceptedAt and RejectedAt nil is pending. Values are
// never updated in place; a changed value is a new candidate.
type Candidate struct {
	ID       string        `json:"id"`
	TargetID string        `json:"target_entity_id"`
	Kind     CandidateKind `json:"kind"`
	FieldKey string        `json:"field_key"`
	Value    string        `json:"value"`
	// Structured fields; which are set depends on Kind.
	VenueName   string `json:"venue_name,omitempty"`
	Address     string `json:"address,omitempty"`
	StartDate   string `json:"start_date,omitempty"`
	EndDate     string `json:"end_date,omitempty"`
	ContactName string `json:"contact_name,omitempty"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`

	SourceURL  string     `json:"source_url"`
	RunID      string     `json:"run_id,omitempty"`
	Confidence float64    `json:"confidence"`
	AcceptedAt *time.Time `json:"accepted_at,omitempty"`
	RejectedAt *time.Time `json:"rejected_at,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// Pending reports whether the candidate still awaits review.
func (c Candidate) Pending() bool {
	return c.AcceptedAt == nil && c.RejectedAt == nil
}

// Tournament is the canonical entity the review workflow merges into. Only
// narrow field updates are ever performed; the broader application owns the
// full record.
type Tournament struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Website     string            `json:"website,omitempty"`
	EntryFee    string            `json:"entry_fee,omitempty"`
	Venue       string            `json:"venue,omitempty"`
	Address     string            `json:"address,omitempty"`
	StartDate   string            `json:"start_date,omitempty"`
	EndDate     string            `json:"end_date,omitempty"`
	Email       string            `json:"email,omitempty"`
	Phone       string            `json:"phone,omitempty"`
	Director    string            `json:"director,omitempty"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	LastSweptAt *time.Time        `json:"last_swept_at,omitempty"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// EnrichableFields are the canonical columns the pipeline can fill. A target
// missing any of these is a sweep candidate.
var EnrichableFields = []string{
	"entry_fee", "venue", "address", "start_date", "end_date",
	"email", "phone", "director",
}

// MissingFields returns the enrichable fields the tournament lacks.
func (t Tournament) MissingFields() []string {
	present := map[string]string{
		"entry_fee":  t.EntryFee,
		"venue":      t.Venue,
		"address":    t.Address,
		"start_date": t.StartDate,
		"end_date":   t.EndDate,
		"email":      t.Email,
		"phone":      t.Phone,
		"director":   t.Director,
	}
	var missing []string
	for _, f := range EnrichableFields {
		if present[f] == "" {
			missing = append(missing, f)
		}
	}
	return missing
}

// FetchRequest captures everything needed to fetch one page.
type FetchRequest struct {
	URL     string
	Headers http.Header
}

// FetchResult is the successful outcome of a diagnostic fetch.
type FetchResult struct {
	HTML        []byte
	Diagnostics Diagnostics
}

// SweepSummary is returned by the orchestrator after one run.
type SweepSummary struct {
	RunID            string         `json:"run_id"`
	Attempted        int            `json:"attempted"`
	PagesFetched     int            `json:"pages_fetched"`
	Inserted         int            `json:"inserted"`
	SkippedRecent    int            `json:"skipped_recent"`
	SkippedPending   int            `json:"skipped_pending"`
	SkippedDuplicate int            `json:"skipped_duplicates"`
	Targets          []TargetResult `json:"summary"`
}

// TargetResult reports what one target produced during a sweep.
type TargetResult struct {
	TargetID     string   `json:"target_id"`
	Name         string   `json:"name,omitempty"`
	URL          string   `json:"url,omitempty"`
	PagesFetched int      `json:"pages_fetched"`
	FieldsFound  []string `json:"fields_found,omitempty"`
	Staged       int      `json:"staged"`
	Error        string   `json:"error,omitempty"`
}
