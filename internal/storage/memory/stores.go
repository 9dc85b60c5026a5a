package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
)

// Stores holds every collection behind one lock so cross-repo reads stay
// consistent in tests. The repository interfaces are exposed through the
// typed views below because their method sets collide on names.
type Stores struct {
	mu          sync.RWMutex
	sources     map[string]scout.Source // keyed by normalized URL
	runs        map[string]scout.SweepRun
	records     map[string]scout.SourceRecord
	candidates  []scout.Candidate
	tournaments map[string]scout.Tournament
}

// NewStores creates an empty in-memory store bundle.
func NewStores() *Stores {
	return &Stores{
		sources:     make(map[string]scout.Source),
		runs:        make(map[string]scout.SweepRun),
		records:     make(map[string]scout.SourceRecord),
		tournaments: make(map[string]scout.Tournament),
	}
}

// Sources returns the registry view.
func (s *Stores) Sources() store.SourceRegistryRepo { return sourceView{s} }

// Runs returns the sweep-run view.
func (s *Stores) Runs() store.RunRepo { return runView{s} }

// Records returns the raw-record view.
func (s *Stores) Records() store.RecordRepo { return recordView{s} }

// Candidates returns the candidate view.
func (s *Stores) Candidates() store.CandidateRepo { return candidateView{s} }

// Entities returns the canonical-entity view.
func (s *Stores) Entities() store.EntityRepo { return entityView{s} }

// SeedTournament inserts a canonical entity, for tests and dev runs.
func (s *Stores) SeedTournament(t scout.Tournament) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tournaments[t.ID] = t
}

// GetRun fetches a run, for test assertions.
func (s *Stores) GetRun(runID string) (scout.SweepRun, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}

// RecordCount reports how many raw records exist, for test assertions.
func (s *Stores) RecordCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

type sourceView struct{ s *Stores }

func (v sourceView) Ensure(_ context.Context, src scout.Source) (scout.Source, bool, error) {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	if existing, ok := v.s.sources[src.NormalizedURL]; ok {
		return existing, false, nil
	}
	v.s.sources[src.NormalizedURL] = src
	return src, true, nil
}

func (v sourceView) GetByNormalizedURL(_ context.Context, normalized string) (scout.Source, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	src, ok := v.s.sources[normalized]
	if !ok {
		return scout.Source{}, store.ErrNotFound
	}
	return src, nil
}

func (v sourceView) MarkTerminal(_ context.Context, id string, status scout.SourceReviewStatus) error {
	return v.update(id, func(src *scout.Source) { src.ReviewStatus = status })
}

func (v sourceView) TouchSwept(_ context.Context, id string, at time.Time) error {
	return v.update(id, func(src *scout.Source) { src.LastSweptAt = &at })
}

func (v sourceView) Deactivate(_ context.Context, id string) error {
	return v.update(id, func(src *scout.Source) { src.IsActive = false })
}

func (v sourceView) update(id string, apply func(*scout.Source)) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	for key, src := range v.s.sources {
		if src.ID == id {
			apply(&src)
			v.s.sources[key] = src
			return nil
		}
	}
	return store.ErrNotFound
}

type runView struct{ s *Stores }

func (v runView) Create(_ context.Context, run scout.SweepRun) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.runs[run.ID] = run
	return nil
}

func (v runView) Finish(_ context.Context, runID string, at time.Time, status scout.RunStatus) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	run, ok := v.s.runs[runID]
	if !ok {
		return store.ErrNotFound
	}
	run.FinishedAt = &at
	run.Status = status
	v.s.runs[runID] = run
	return nil
}

type recordView struct{ s *Stores }

func (v recordView) Create(_ context.Context, rec scout.SourceRecord) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.records[rec.ID] = rec
	return nil
}

func (v recordView) SetReviewStatus(_ context.Context, id string, status scout.RecordStatus) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	rec, ok := v.s.records[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.ReviewStatus = status
	v.s.records[id] = rec
	return nil
}

type candidateView struct{ s *Stores }

func (v candidateView) InsertBatch(_ context.Context, candidates []scout.Candidate) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	v.s.candidates = append(v.s.candidates, candidates...)
	return nil
}

func (v candidateView) ListByTarget(_ context.Context, targetID string) ([]scout.Candidate, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []scout.Candidate
	for _, c := range v.s.candidates {
		if c.TargetID == targetID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (v candidateView) ListPendingByTarget(_ context.Context, targetID string) ([]scout.Candidate, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []scout.Candidate
	for _, c := range v.s.candidates {
		if c.TargetID == targetID && c.Pending() {
			out = append(out, c)
		}
	}
	return out, nil
}

func (v candidateView) GetByIDs(_ context.Context, ids []string) ([]scout.Candidate, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []scout.Candidate
	for _, c := range v.s.candidates {
		if want[c.ID] {
			out = append(out, c)
		}
	}
	if len(out) != len(ids) {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (v candidateView) MarkAccepted(_ context.Context, ids []string, at time.Time) error {
	return v.stamp(ids, func(c *scout.Candidate) { c.AcceptedAt = &at })
}

func (v candidateView) MarkRejected(_ context.Context, ids []string, at time.Time) error {
	return v.stamp(ids, func(c *scout.Candidate) { c.RejectedAt = &at })
}

func (v candidateView) stamp(ids []string, apply func(*scout.Candidate)) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for i := range v.s.candidates {
		if want[v.s.candidates[i].ID] && v.s.candidates[i].Pending() {
			apply(&v.s.candidates[i])
		}
	}
	return nil
}

type entityView struct{ s *Stores }

func (v entityView) Get(_ context.Context, id string) (scout.Tournament, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	t, ok := v.s.tournaments[id]
	if !ok {
		return scout.Tournament{}, store.ErrNotFound
	}
	return t, nil
}

func (v entityView) ListSweepTargets(_ context.Context, limit int, cutoff time.Time) ([]scout.Tournament, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	pending := make(map[string]bool)
	for _, c := range v.s.candidates {
		if c.Pending() {
			pending[c.TargetID] = true
		}
	}

	var out []scout.Tournament
	for _, t := range v.s.tournaments {
		if t.Website == "" || len(t.MissingFields()) == 0 || pending[t.ID] {
			continue
		}
		if t.LastSweptAt != nil && !t.LastSweptAt.Before(cutoff) {
			continue
		}
		out = append(out, t)
	}
	// Never-swept first, then oldest sweep.
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i].LastSweptAt, out[j].LastSweptAt
		switch {
		case a == nil && b == nil:
			return out[i].ID < out[j].ID
		case a == nil:
			return true
		case b == nil:
			return false
		default:
			return a.Before(*b)
		}
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v entityView) CountSweepExclusions(_ context.Context, cutoff time.Time) (int, int, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()

	hasPending := make(map[string]bool)
	for _, c := range v.s.candidates {
		if c.Pending() {
			hasPending[c.TargetID] = true
		}
	}

	var recent, pending int
	for _, t := range v.s.tournaments {
		if t.Website == "" || len(t.MissingFields()) == 0 {
			continue
		}
		switch {
		case hasPending[t.ID]:
			pending++
		case t.LastSweptAt != nil && !t.LastSweptAt.Before(cutoff):
			recent++
		}
	}
	return recent, pending, nil
}

func (v entityView) ListWithWebsite(_ context.Context, limit int) ([]scout.Tournament, error) {
	v.s.mu.RLock()
	defer v.s.mu.RUnlock()
	var out []scout.Tournament
	for _, t := range v.s.tournaments {
		if t.Website != "" {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return strings.ToLower(out[i].Name) < strings.ToLower(out[j].Name)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (v entityView) UpdateFields(_ context.Context, id string, fields map[string]string, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.tournaments[id]
	if !ok {
		return store.ErrNotFound
	}
	for k, val := range fields {
		switch k {
		case "entry_fee":
			t.EntryFee = val
		case "venue":
			t.Venue = val
		case "address":
			t.Address = val
		case "start_date":
			t.StartDate = val
		case "end_date":
			t.EndDate = val
		case "email":
			t.Email = val
		case "phone":
			t.Phone = val
		case "director":
			t.Director = val
		default:
			if t.Attributes == nil {
				t.Attributes = make(map[string]string)
			}
			t.Attributes[k] = val
		}
	}
	t.UpdatedAt = at
	v.s.tournaments[id] = t
	return nil
}

func (v entityView) TouchSwept(_ context.Context, id string, at time.Time) error {
	v.s.mu.Lock()
	defer v.s.mu.Unlock()
	t, ok := v.s.tournaments[id]
	if !ok {
		return store.ErrNotFound
	}
	t.LastSweptAt = &at
	v.s.tournaments[id] = t
	return nil
}
