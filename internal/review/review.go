// Package review implements the human merge workflow: accepted candidates
// become canonical field values, rejected ones stop resurfacing.
package review

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/refhq/sourcescout/internal/dedupe"
	"github.com/refhq/sourcescout/internal/extract"
	"github.com/refhq/sourcescout/internal/metrics"
	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
	"github.com/refhq/sourcescout/internal/urlnorm"
)

// Service applies reviewer decisions.
type Service struct {
	sources    store.SourceRegistryRepo
	candidates store.CandidateRepo
	entities   store.EntityRepo
	clock      scout.Clock
	log        *zap.Logger
}

// New constructs a Service.
func New(
	sources store.SourceRegistryRepo,
	candidates store.CandidateRepo,
	entities store.EntityRepo,
	clock scout.Clock,
	logger *zap.Logger,
) (*Service, error) {
	if sources == nil || candidates == nil || entities == nil {
		return nil, fmt.Errorf("all repositories are required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		sources:    sources,
		candidates: candidates,
		entities:   entities,
		clock:      clock,
		log:        logger,
	}, nil
}

// AppliedCounts breaks the apply outcome down per candidate category.
type AppliedCounts struct {
	Contacts   int `json:"contacts"`
	Venues     int `json:"venues"`
	Dates      int `json:"dates"`
	Attributes int `json:"attributes"`
}

// ApplyResult reports what one apply call changed.
type ApplyResult struct {
	UpdatedFields []string      `json:"updated_fields"`
	Applied       AppliedCounts `json:"applied"`
}

// fieldWrite is one canonical column write derived from a candidate.
type fieldWrite struct {
	field string
	value string
	cand  scout.Candidate
}

// Apply merges the selected candidates into the canonical entity. At most one
// value wins per field (higher confidence first, then most recent). Pending
// alternates sharing a winner's normalized value are accepted alongside it so
// they stop cluttering the queue. Re-applying an already-accepted candidate
// is a no-op, not an error.
func (s *Service) Apply(ctx context.Context, entityID string, candidateIDs []string) (ApplyResult, error) {
	var result ApplyResult
	if entityID == "" {
		return result, fmt.Errorf("entity id is required")
	}
	if len(candidateIDs) == 0 {
		return result, fmt.Errorf("at least one candidate id is required")
	}

	entity, err := s.entities.Get(ctx, entityID)
	if err != nil {
		return result, fmt.Errorf("load entity: %w", err)
	}
	selected, err := s.candidates.GetByIDs(ctx, candidateIDs)
	if err != nil {
		return result, fmt.Errorf("load candidates: %w", err)
	}

	var usable []scout.Candidate
	for _, c := range selected {
		if c.TargetID != entityID {
			return result, fmt.Errorf("candidate %s does not belong to entity %s", c.ID, entityID)
		}
		if c.RejectedAt != nil {
			return result, fmt.Errorf("candidate %s was rejected and cannot be applied", c.ID)
		}
		if c.Kind == scout.KindAttribute && !isWritableField(c.FieldKey) {
			return result, fmt.Errorf("unknown attribute key %q on candidate %s", c.FieldKey, c.ID)
		}
		usable = append(usable, c)
	}

	winners := pickWinners(usable)

	now := s.clock.Now().UTC()
	fields := map[string]string{}
	for _, w := range winners {
		if currentFieldValue(entity, w.field) == w.value {
			continue
		}
		fields[w.field] = w.value
	}
	if len(fields) > 0 {
		if err := s.entities.UpdateFields(ctx, entityID, fields, now); err != nil {
			return result, fmt.Errorf("update entity: %w", err)
		}
	}

	// Stamp the selected candidates, then sweep up pending alternates whose
	// normalized value matches a winner. MarkAccepted skips already-reviewed
	// rows, which is what makes re-apply idempotent.
	acceptIDs := make([]string, 0, len(usable))
	for _, c := range usable {
		acceptIDs = append(acceptIDs, c.ID)
	}
	alternates, err := s.matchingAlternates(ctx, entityID, winners, acceptIDs)
	if err != nil {
		return result, err
	}
	acceptIDs = append(acceptIDs, alternates...)
	if err := s.candidates.MarkAccepted(ctx, acceptIDs, now); err != nil {
		return result, fmt.Errorf("accept candidates: %w", err)
	}

	for field := range fields {
		result.UpdatedFields = append(result.UpdatedFields, field)
	}
	sort.Strings(result.UpdatedFields)
	result.Applied = countApplied(winners, fields)
	metrics.ObserveReviewApply("applied")
	return result, nil
}

// Reject stamps the rejection timestamp on the candidates without touching
// the canonical record.
func (s *Service) Reject(ctx context.Context, candidateIDs []string) error {
	if len(candidateIDs) == 0 {
		return fmt.Errorf("at least one candidate id is required")
	}
	if _, err := s.candidates.GetByIDs(ctx, candidateIDs); err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}
	if err := s.candidates.MarkRejected(ctx, candidateIDs, s.clock.Now().UTC()); err != nil {
		return fmt.Errorf("reject candidates: %w", err)
	}
	metrics.ObserveReviewApply("rejected")
	return nil
}

// Block rejects the candidates and parks their sources so nothing from those
// pages is fetched again.
func (s *Service) Block(ctx context.Context, candidateIDs []string) error {
	if len(candidateIDs) == 0 {
		return fmt.Errorf("at least one candidate id is required")
	}
	cands, err := s.candidates.GetByIDs(ctx, candidateIDs)
	if err != nil {
		return fmt.Errorf("load candidates: %w", err)
	}
	now := s.clock.Now().UTC()
	if err := s.candidates.MarkRejected(ctx, candidateIDs, now); err != nil {
		return fmt.Errorf("reject candidates: %w", err)
	}

	blocked := map[string]bool{}
	for _, c := range cands {
		norm, err := urlnorm.Normalize(c.SourceURL)
		if err != nil || blocked[norm.Normalized] {
			continue
		}
		blocked[norm.Normalized] = true
		src, err := s.sources.GetByNormalizedURL(ctx, norm.Normalized)
		if err != nil {
			s.log.Warn("block: source not registered",
				zap.String("source_url", c.SourceURL), zap.Error(err))
			continue
		}
		if err := s.sources.MarkTerminal(ctx, src.ID, scout.SourceBlocked); err != nil {
			return fmt.Errorf("block source %s: %w", src.ID, err)
		}
	}
	metrics.ObserveReviewApply("blocked")
	return nil
}

// pickWinners resolves at most one value per canonical field, preferring
// higher confidence, then the most recently staged.
func pickWinners(candidates []scout.Candidate) map[string]fieldWrite {
	winners := map[string]fieldWrite{}
	for _, c := range candidates {
		for field, value := range fieldValues(c) {
			if value == "" {
				continue
			}
			cur, exists := winners[field]
			if !exists || beats(c, cur.cand) {
				winners[field] = fieldWrite{field: field, value: value, cand: c}
			}
		}
	}
	return winners
}

func beats(a, b scout.Candidate) bool {
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	return a.CreatedAt.After(b.CreatedAt)
}

// fieldValues expands a candidate into the canonical fields it can fill.
func fieldValues(c scout.Candidate) map[string]string {
	switch c.Kind {
	case scout.KindVenue:
		return map[string]string{"venue": c.VenueName, "address": c.Address}
	case scout.KindDateRange:
		return map[string]string{"start_date": c.StartDate, "end_date": c.EndDate}
	case scout.KindContact:
		switch c.FieldKey {
		case "email":
			return map[string]string{"email": c.Email}
		case "phone":
			return map[string]string{"phone": c.Phone}
		default:
			// Both "director" and generic "contact" names fill the
			// director column; confidence decides between them.
			return map[string]string{"director": c.ContactName}
		}
	default:
		return map[string]string{c.FieldKey: c.Value}
	}
}

func currentFieldValue(t scout.Tournament, field string) string {
	switch field {
	case "entry_fee":
		return t.EntryFee
	case "venue":
		return t.Venue
	case "address":
		return t.Address
	case "start_date":
		return t.StartDate
	case "end_date":
		return t.EndDate
	case "email":
		return t.Email
	case "phone":
		return t.Phone
	case "director":
		return t.Director
	default:
		return t.Attributes[field]
	}
}

func isWritableField(key string) bool {
	for _, f := range scout.EnrichableFields {
		if key == f {
			return true
		}
	}
	return extract.IsKnownAttributeKey(key)
}

// matchingAlternates finds pending candidates on the entity whose normalized
// value equals a winner's, excluding ids already being accepted.
func (s *Service) matchingAlternates(ctx context.Context, entityID string, winners map[string]fieldWrite, accepting []string) ([]string, error) {
	if len(winners) == 0 {
		return nil, nil
	}
	pending, err := s.candidates.ListPendingByTarget(ctx, entityID)
	if err != nil {
		return nil, fmt.Errorf("list pending candidates: %w", err)
	}

	skip := map[string]bool{}
	for _, id := range accepting {
		skip[id] = true
	}
	winnerValues := map[string]bool{}
	for _, w := range winners {
		winnerValues[string(w.cand.Kind)+"|"+w.cand.FieldKey+"|"+dedupe.NormalizedValue(w.cand)] = true
	}

	var out []string
	for _, c := range pending {
		if skip[c.ID] {
			continue
		}
		key := string(c.Kind) + "|" + c.FieldKey + "|" + dedupe.NormalizedValue(c)
		if winnerValues[key] {
			out = append(out, c.ID)
		}
	}
	return out, nil
}

func countApplied(winners map[string]fieldWrite, written map[string]string) AppliedCounts {
	var counts AppliedCounts
	seen := map[string]bool{}
	for field, w := range winners {
		if _, ok := written[field]; !ok {
			continue
		}
		if seen[w.cand.ID] {
			continue
		}
		seen[w.cand.ID] = true
		switch w.cand.Kind {
		case scout.KindContact:
			counts.Contacts++
		case scout.KindVenue:
			counts.Venues++
		case scout.KindDateRange:
			counts.Dates++
		default:
			counts.Attributes++
		}
	}
	return counts
}
