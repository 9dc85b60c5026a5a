// Package sweep drives one batch enrichment run: select targets, fetch and
// walk their sites, extract facts, and stage deduplicated candidates.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/refhq/sourcescout/internal/dedupe"
	"github.com/refhq/sourcescout/internal/extract"
	sha256sum "github.com/refhq/sourcescout/internal/hash/sha256"
	"github.com/refhq/sourcescout/internal/metrics"
	"github.com/refhq/sourcescout/internal/progress"
	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
	"github.com/refhq/sourcescout/internal/urlnorm"
)

// Config controls orchestrator behavior.
type Config struct {
	DefaultLimit    int
	CooldownDays    int
	MaxPages        int
	EnrichmentWidth int
	Topic           string
}

func (c Config) withDefaults() Config {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = 25
	}
	if c.CooldownDays <= 0 {
		c.CooldownDays = 10
	}
	if c.MaxPages <= 0 {
		c.MaxPages = MaxPagesPerTarget
	}
	if c.EnrichmentWidth <= 0 {
		c.EnrichmentWidth = 2
	}
	if c.Topic == "" {
		c.Topic = "candidates.staged"
	}
	return c
}

// Deps carries the orchestrator's collaborators.
type Deps struct {
	Fetcher    scout.Fetcher
	Engine     *extract.Engine
	Sources    store.SourceRegistryRepo
	Runs       store.RunRepo
	Records    store.RecordRepo
	Candidates store.CandidateRepo
	Entities   store.EntityRepo
	Blobs      scout.BlobStore
	Publisher  scout.Publisher
	Clock      scout.Clock
	IDs        scout.IDGenerator
	Hash       scout.Hasher
	Progress   progress.Emitter
	Logger     *zap.Logger
}

// Orchestrator runs sweeps. It owns scheduling; everything below it is a
// synchronous transform.
type Orchestrator struct {
	cfg  Config
	deps Deps
	log  *zap.Logger
}

// New constructs an Orchestrator.
func New(cfg Config, deps Deps) (*Orchestrator, error) {
	switch {
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("fetcher is required")
	case deps.Engine == nil:
		return nil, fmt.Errorf("extraction engine is required")
	case deps.Sources == nil || deps.Runs == nil || deps.Records == nil ||
		deps.Candidates == nil || deps.Entities == nil:
		return nil, fmt.Errorf("all repositories are required")
	case deps.Blobs == nil:
		return nil, fmt.Errorf("blob store is required")
	case deps.Clock == nil:
		return nil, fmt.Errorf("clock is required")
	case deps.IDs == nil:
		return nil, fmt.Errorf("id generator is required")
	}
	if deps.Hash == nil {
		deps.Hash = sha256sum.New()
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Orchestrator{cfg: cfg.withDefaults(), deps: deps, log: deps.Logger}, nil
}

// emit forwards one progress event if a hub is wired.
func (o *Orchestrator) emit(evt progress.Event) {
	if o.deps.Progress != nil {
		o.deps.Progress.Emit(evt)
	}
}

// targetOutcome carries the per-target counts that fold into the summary.
type targetOutcome struct {
	result   scout.TargetResult
	dupes    int
	storeErr error
}

// Run executes one sweep over up to limit targets. Per-target fetch and
// extraction failures are recorded in the summary and do not stop the batch;
// a store failure aborts the remainder and returns the partial summary
// alongside the error.
func (o *Orchestrator) Run(ctx context.Context, limit int) (scout.SweepSummary, error) {
	if limit <= 0 {
		limit = o.cfg.DefaultLimit
	}
	now := o.deps.Clock.Now().UTC()
	cutoff := now.AddDate(0, 0, -o.cfg.CooldownDays)

	runID, err := o.deps.IDs.NewID()
	if err != nil {
		return scout.SweepSummary{}, fmt.Errorf("run id: %w", err)
	}
	summary := scout.SweepSummary{RunID: runID}

	run := scout.SweepRun{
		ID:        runID,
		StartedAt: now,
		Status:    scout.RunRunning,
		Target:    fmt.Sprintf("limit=%d", limit),
	}
	if err := o.deps.Runs.Create(ctx, run); err != nil {
		return summary, fmt.Errorf("create run: %w", err)
	}
	o.emit(progress.Event{RunID: runID, TS: now, Stage: progress.StageRunStart})

	recent, pending, err := o.deps.Entities.CountSweepExclusions(ctx, cutoff)
	if err != nil {
		return o.fail(ctx, summary, now, fmt.Errorf("count exclusions: %w", err))
	}
	summary.SkippedRecent = recent
	summary.SkippedPending = pending

	targets, err := o.deps.Entities.ListSweepTargets(ctx, limit, cutoff)
	if err != nil {
		return o.fail(ctx, summary, now, fmt.Errorf("select targets: %w", err))
	}

	var attempted []string
	for _, target := range targets {
		out := o.processTarget(ctx, runID, target, now)

		summary.Attempted++
		attempted = append(attempted, target.ID)
		summary.PagesFetched += out.result.PagesFetched
		summary.Inserted += out.result.Staged
		summary.SkippedDuplicate += out.dupes
		summary.Targets = append(summary.Targets, out.result)
		o.emit(progress.Event{
			RunID:  runID,
			TS:     o.deps.Clock.Now().UTC(),
			Stage:  progress.StageTargetDone,
			Site:   metrics.SanitizeSite(target.Website),
			Staged: int64(out.result.Staged),
			Note:   out.result.Error,
		})

		if out.storeErr != nil {
			o.stampAttempted(ctx, attempted, now)
			return o.fail(ctx, summary, now, fmt.Errorf("target %s: %w", target.ID, out.storeErr))
		}
	}

	// Attempted, not merely successful: broken sources enter cooldown too.
	o.stampAttempted(ctx, attempted, now)

	finished := o.deps.Clock.Now().UTC()
	if err := o.deps.Runs.Finish(ctx, runID, finished, scout.RunSuccess); err != nil {
		o.log.Error("finish run", zap.String("run_id", runID), zap.Error(err))
	}
	metrics.ObserveSweepRun(string(scout.RunSuccess))
	o.emit(progress.Event{
		RunID:  runID,
		TS:     finished,
		Stage:  progress.StageRunDone,
		Staged: int64(summary.Inserted),
		Dur:    finished.Sub(now),
	})

	if summary.Inserted > 0 && o.deps.Publisher != nil {
		if _, err := o.deps.Publisher.Publish(ctx, o.cfg.Topic, summary); err != nil {
			o.log.Warn("publish sweep summary", zap.String("run_id", runID), zap.Error(err))
		}
	}
	return summary, nil
}

// fail finishes the run as failed and returns the partial summary with the
// error, so no partial counts are silently swallowed.
func (o *Orchestrator) fail(ctx context.Context, summary scout.SweepSummary, started time.Time, cause error) (scout.SweepSummary, error) {
	finished := o.deps.Clock.Now().UTC()
	if err := o.deps.Runs.Finish(ctx, summary.RunID, finished, scout.RunFailed); err != nil {
		o.log.Error("finish failed run", zap.String("run_id", summary.RunID), zap.Error(err))
	}
	metrics.ObserveSweepRun(string(scout.RunFailed))
	o.emit(progress.Event{
		RunID: summary.RunID,
		TS:    finished,
		Stage: progress.StageRunError,
		Dur:   finished.Sub(started),
		Note:  cause.Error(),
	})
	return summary, cause
}

func (o *Orchestrator) stampAttempted(ctx context.Context, ids []string, now time.Time) {
	for _, id := range ids {
		if err := o.deps.Entities.TouchSwept(ctx, id, now); err != nil {
			o.log.Error("stamp last_swept_at", zap.String("target_id", id), zap.Error(err))
		}
	}
}

func (o *Orchestrator) processTarget(ctx context.Context, runID string, target scout.Tournament, now time.Time) targetOutcome {
	result := scout.TargetResult{TargetID: target.ID, Name: target.Name, URL: target.Website}

	norm, err := urlnorm.Normalize(target.Website)
	if err != nil {
		result.Error = fmt.Sprintf("invalid website: %v", err)
		return targetOutcome{result: result}
	}

	srcID, err := o.deps.IDs.NewID()
	if err != nil {
		return targetOutcome{result: result, storeErr: fmt.Errorf("source id: %w", err)}
	}
	src, _, err := o.deps.Sources.Ensure(ctx, scout.Source{
		ID:            srcID,
		CanonicalURL:  norm.Canonical,
		NormalizedURL: norm.Normalized,
		Host:          norm.Host,
		SourceType:    scout.SourceTypeTournament,
		IsActive:      true,
		ReviewStatus:  scout.SourceUntested,
		CreatedAt:     now,
	})
	if err != nil {
		return targetOutcome{result: result, storeErr: fmt.Errorf("ensure source: %w", err)}
	}
	if !src.Eligible(now) {
		result.Error = fmt.Sprintf("source ineligible: %s", src.ReviewStatus)
		return targetOutcome{result: result}
	}

	merged, pages, fetchErr := o.walkTarget(ctx, runID, target, norm.Canonical, src)
	result.PagesFetched = pages
	if pages > 0 {
		if err := o.deps.Sources.TouchSwept(ctx, src.ID, now); err != nil {
			o.log.Warn("touch source", zap.String("source_id", src.ID), zap.Error(err))
		}
	}
	if fetchErr != nil {
		var se *scout.SweepError
		if errors.As(fetchErr, &se) {
			result.Error = se.Code()
			metrics.ObserveFetchError(string(se.Kind))
			if status, terminal := scout.TerminalKind(se); terminal {
				if err := o.deps.Sources.MarkTerminal(ctx, src.ID, status); err != nil {
					o.log.Warn("mark source terminal", zap.String("source_id", src.ID), zap.Error(err))
				}
			}
		} else {
			result.Error = fetchErr.Error()
		}
		if pages == 0 {
			return targetOutcome{result: result}
		}
		// Later-page failures still leave usable earlier pages.
	}

	result.FieldsFound = merged.FieldsFound()
	if merged.Empty() {
		if result.Error == "" {
			result.Error = string(scout.KindNoUsableFields)
		}
		return targetOutcome{result: result}
	}

	batch, err := buildCandidates(target, merged, norm.Canonical, runID, o.deps.IDs, now)
	if err != nil {
		return targetOutcome{result: result, storeErr: err}
	}

	existing, err := o.deps.Candidates.ListByTarget(ctx, target.ID)
	if err != nil {
		return targetOutcome{result: result, storeErr: fmt.Errorf("list existing candidates: %w", err)}
	}
	staged := dedupe.Stage(batch, existing)

	inserted := staged.ToInsert
	dupes := staged.SkippedDuplicate
	if len(staged.ToInsert) > 0 {
		err := o.deps.Candidates.InsertBatch(ctx, staged.ToInsert)
		switch {
		case err == nil:
		case errors.Is(err, store.ErrDuplicateKey):
			// A concurrent run claimed some of the same composite keys after
			// our dedupe read. The loser rows are ordinary duplicates, not a
			// failure: retry one at a time and keep whatever still fits.
			inserted, err = o.insertDroppingLosers(ctx, staged.ToInsert)
			if err != nil {
				return targetOutcome{result: result, dupes: dupes,
					storeErr: fmt.Errorf("stage candidates: %w", err)}
			}
			dupes += len(staged.ToInsert) - len(inserted)
		default:
			if errors.Is(err, store.ErrConstraintOutdated) {
				err = scout.NewSweepError(scout.KindConstraintOutdated, scout.Diagnostics{}, err.Error())
			}
			return targetOutcome{result: result, dupes: dupes,
				storeErr: fmt.Errorf("stage candidates: %w", err)}
		}
		for _, c := range inserted {
			metrics.ObserveCandidatesStaged(string(c.Kind), 1)
		}
	}
	result.Staged = len(inserted)
	return targetOutcome{result: result, dupes: dupes}
}

// insertDroppingLosers stages candidates row by row, silently dropping rows
// whose composite key a concurrent run already holds.
func (o *Orchestrator) insertDroppingLosers(ctx context.Context, batch []scout.Candidate) ([]scout.Candidate, error) {
	kept := make([]scout.Candidate, 0, len(batch))
	for _, c := range batch {
		err := o.deps.Candidates.InsertBatch(ctx, []scout.Candidate{c})
		switch {
		case err == nil:
			kept = append(kept, c)
		case errors.Is(err, store.ErrDuplicateKey):
		default:
			return kept, err
		}
	}
	return kept, nil
}

// walkTarget fetches the seed page and breadth-first follows the best-ranked
// internal links until every enrichable field was seen or the page cap hits.
// It archives every fetched body and writes one source record per page.
func (o *Orchestrator) walkTarget(
	ctx context.Context,
	runID string,
	target scout.Tournament,
	seedURL string,
	src scout.Source,
) (extract.Extraction, int, error) {
	var merged extract.Extraction
	pages := 0
	visited := map[string]bool{}
	seenBodies := map[string]bool{}
	queue := []string{seedURL}
	needed := len(target.MissingFields())

	for len(queue) > 0 && pages < o.cfg.MaxPages {
		pageURL := queue[0]
		queue = queue[1:]
		if visited[pageURL] {
			continue
		}
		visited[pageURL] = true

		fetchStart := time.Now()
		res, err := o.deps.Fetcher.Fetch(ctx, scout.FetchRequest{URL: pageURL})
		fetchDur := time.Since(fetchStart)
		if err != nil {
			o.emitFetch(runID, pageURL, 0, statusClassOf(err), fetchDur)
			if pages == 0 {
				return merged, pages, err
			}
			o.log.Debug("follow-up page failed",
				zap.String("target_id", target.ID),
				zap.String("url", pageURL),
				zap.Error(err),
			)
			continue
		}
		pages++
		metrics.ObservePageFetched(pageURL)
		o.emitFetch(runID, pageURL, int64(len(res.HTML)),
			progress.ClassifyStatus(res.Diagnostics.StatusCode), fetchDur)

		// Mirrors and alias paths serve identical bodies; one archive and one
		// extraction per body is enough.
		if digest, hashErr := o.deps.Hash.Hash(res.HTML); hashErr == nil {
			if seenBodies[digest] {
				o.log.Debug("duplicate page body",
					zap.String("target_id", target.ID),
					zap.String("url", pageURL),
				)
				continue
			}
			seenBodies[digest] = true
		}

		if err := o.archivePage(ctx, runID, target.ID, src.ID, pages, res); err != nil {
			return merged, pages, err
		}

		page, err := extract.ParsePage(res.Diagnostics.FinalURL, res.HTML)
		if err != nil {
			if pages == 1 {
				return merged, pages, scout.NewSweepError(scout.KindUnsupportedLayout, res.Diagnostics, err.Error())
			}
			continue
		}

		ext, err := o.deps.Engine.Extract(page, extract.LocalityOf(merged.Address))
		if err != nil {
			return merged, pages, err
		}
		merged = extract.Merge(merged, ext)

		// Stop early once every missing field has been seen.
		if needed > 0 && len(remainingFields(target, merged)) == 0 {
			break
		}

		for _, link := range rankLinks(page.Doc, res.Diagnostics.FinalURL) {
			if !visited[link.URL] {
				queue = append(queue, link.URL)
			}
		}
	}
	return merged, pages, nil
}

// archivePage writes the raw body to the blob store and records the pointer.
func (o *Orchestrator) archivePage(ctx context.Context, runID, targetID, sourceID string, seq int, res scout.FetchResult) error {
	path := fmt.Sprintf("sweeps/%s/%s/page-%d.html", runID, targetID, seq)
	uri, err := o.deps.Blobs.PutObject(ctx, path, res.Diagnostics.ContentType, res.HTML)
	if err != nil {
		return fmt.Errorf("archive page: %w", err)
	}

	recID, err := o.deps.IDs.NewID()
	if err != nil {
		return fmt.Errorf("record id: %w", err)
	}
	rec := scout.SourceRecord{
		ID:           recID,
		RunID:        runID,
		SourceID:     sourceID,
		TargetID:     targetID,
		RawPayload:   uri,
		Confidence:   1.0,
		ReviewStatus: scout.RecordNeedsReview,
		CreatedAt:    o.deps.Clock.Now().UTC(),
	}
	if err := o.deps.Records.Create(ctx, rec); err != nil {
		return fmt.Errorf("create source record: %w", err)
	}
	return nil
}

func (o *Orchestrator) emitFetch(runID, pageURL string, bytes int64, class progress.StatusClass, dur time.Duration) {
	o.emit(progress.Event{
		RunID:       runID,
		TS:          o.deps.Clock.Now().UTC(),
		Stage:       progress.StageFetchDone,
		Site:        metrics.SanitizeSite(pageURL),
		URL:         pageURL,
		Bytes:       bytes,
		StatusClass: class,
		Dur:         dur,
	})
}

func statusClassOf(err error) progress.StatusClass {
	var se *scout.SweepError
	if errors.As(err, &se) && se.Status != 0 {
		return progress.ClassifyStatus(se.Status)
	}
	return progress.StatusOther
}

// remainingFields lists the target's missing fields not yet covered by the
// merged extraction.
func remainingFields(target scout.Tournament, merged extract.Extraction) []string {
	found := map[string]bool{}
	for _, f := range merged.FieldsFound() {
		found[f] = true
	}
	var out []string
	for _, f := range target.MissingFields() {
		if !found[f] {
			out = append(out, f)
		}
	}
	return out
}
