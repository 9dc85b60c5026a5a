package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/refhq/sourcescout/internal/dedupe"
	"github.com/refhq/sourcescout/internal/extract"
	"github.com/refhq/sourcescout/internal/metrics"
	"github.com/refhq/sourcescout/internal/progress"
	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
	"github.com/refhq/sourcescout/internal/urlnorm"
	"github.com/refhq/sourcescout/internal/worker"
)

// EnrichmentSummary reports the contact fan-out outcome.
type EnrichmentSummary struct {
	Attempted int                  `json:"attempted"`
	Staged    int                  `json:"staged"`
	Targets   []scout.TargetResult `json:"targets"`
}

// EnrichContacts fans out across entities that already have a confirmed
// website and stages contact candidates from their front pages. Unlike the
// full sweep this fetches one page per entity, so a small bounded pool keeps
// it quick without hammering anyone.
func (o *Orchestrator) EnrichContacts(ctx context.Context, limit int) (EnrichmentSummary, error) {
	if limit <= 0 {
		limit = o.cfg.DefaultLimit
	}
	entities, err := o.deps.Entities.ListWithWebsite(ctx, limit)
	if err != nil {
		return EnrichmentSummary{}, fmt.Errorf("list entities: %w", err)
	}
	passID, err := o.deps.IDs.NewID()
	if err != nil {
		return EnrichmentSummary{}, fmt.Errorf("pass id: %w", err)
	}

	var mu sync.Mutex
	summary := EnrichmentSummary{}
	var tasks []worker.Task
	for _, entity := range entities {
		missing := map[string]bool{}
		for _, f := range entity.MissingFields() {
			missing[f] = true
		}
		if !missing["email"] && !missing["phone"] && !missing["director"] {
			continue
		}
		target := entity
		tasks = append(tasks, worker.Task{
			ID: target.ID,
			Run: func(ctx context.Context) error {
				res := o.enrichOne(ctx, passID, target)
				mu.Lock()
				defer mu.Unlock()
				summary.Attempted++
				summary.Staged += res.Staged
				summary.Targets = append(summary.Targets, res)
				return nil
			},
		})
	}

	pool := worker.NewPool(o.cfg.EnrichmentWidth, o.log)
	pool.Run(ctx, tasks)
	return summary, nil
}

func (o *Orchestrator) enrichOne(ctx context.Context, passID string, target scout.Tournament) scout.TargetResult {
	result := scout.TargetResult{TargetID: target.ID, Name: target.Name, URL: target.Website}

	norm, err := urlnorm.Normalize(target.Website)
	if err != nil {
		result.Error = fmt.Sprintf("invalid website: %v", err)
		return result
	}

	fetchStart := time.Now()
	res, err := o.deps.Fetcher.Fetch(ctx, scout.FetchRequest{URL: norm.Canonical})
	fetchDur := time.Since(fetchStart)
	if err != nil {
		o.emitFetch(passID, norm.Canonical, 0, statusClassOf(err), fetchDur)
		if se, ok := scout.AsSweepError(err); ok {
			result.Error = se.Code()
			metrics.ObserveFetchError(string(se.Kind))
		} else {
			result.Error = err.Error()
		}
		return result
	}
	result.PagesFetched = 1
	metrics.ObservePageFetched(norm.Canonical)
	o.emitFetch(passID, norm.Canonical, int64(len(res.HTML)),
		progress.ClassifyStatus(res.Diagnostics.StatusCode), fetchDur)

	page, err := extract.ParsePage(res.Diagnostics.FinalURL, res.HTML)
	if err != nil {
		result.Error = string(scout.KindUnsupportedLayout)
		return result
	}
	contacts := extract.ExtractContacts(page.Doc, page.Text)
	if contacts.Empty() {
		return result
	}

	ext := extract.Extraction{Contacts: contacts}
	result.FieldsFound = ext.FieldsFound()

	now := o.deps.Clock.Now().UTC()
	batch, err := buildCandidates(target, ext, norm.Canonical, "", o.deps.IDs, now)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	existing, err := o.deps.Candidates.ListByTarget(ctx, target.ID)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	staged := dedupe.Stage(batch, existing)
	if len(staged.ToInsert) == 0 {
		return result
	}
	inserted := staged.ToInsert
	insErr := o.deps.Candidates.InsertBatch(ctx, staged.ToInsert)
	if errors.Is(insErr, store.ErrDuplicateKey) {
		inserted, insErr = o.insertDroppingLosers(ctx, staged.ToInsert)
	}
	if insErr != nil {
		result.Error = insErr.Error()
		o.log.Error("stage contact candidates",
			zap.String("target_id", target.ID), zap.Error(insErr))
		return result
	}
	result.Staged = len(inserted)
	for _, c := range inserted {
		metrics.ObserveCandidatesStaged(string(c.Kind), 1)
	}
	return result
}
