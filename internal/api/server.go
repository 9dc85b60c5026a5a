// Package api exposes the HTTP interface for the discovery pipeline.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/refhq/sourcescout/internal/config"
	"github.com/refhq/sourcescout/internal/metrics"
	"github.com/refhq/sourcescout/internal/review"
	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/store"
	"github.com/refhq/sourcescout/internal/sweep"
	"github.com/refhq/sourcescout/internal/urlnorm"
)

// Sweeper triggers batch runs. Satisfied by *sweep.Orchestrator.
type Sweeper interface {
	Run(ctx context.Context, limit int) (scout.SweepSummary, error)
	EnrichContacts(ctx context.Context, limit int) (sweep.EnrichmentSummary, error)
}

// Reviewer applies curation decisions. Satisfied by *review.Service.
type Reviewer interface {
	Apply(ctx context.Context, entityID string, candidateIDs []string) (review.ApplyResult, error)
	Reject(ctx context.Context, candidateIDs []string) error
	Block(ctx context.Context, candidateIDs []string) error
}

// Server wires HTTP handlers to the orchestrator, review service, and stores.
type Server struct {
	router     chi.Router
	sweeper    Sweeper
	reviewer   Reviewer
	sources    store.SourceRegistryRepo
	candidates store.CandidateRepo
	idGen      scout.IDGenerator
	clock      scout.Clock
	cfg        config.Config
	log        *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(
	sweeper Sweeper,
	reviewer Reviewer,
	sources store.SourceRegistryRepo,
	candidates store.CandidateRepo,
	idGen scout.IDGenerator,
	clock scout.Clock,
	cfg config.Config,
	logger *zap.Logger,
) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		sweeper:    sweeper,
		reviewer:   reviewer,
		sources:    sources,
		candidates: candidates,
		idGen:      idGen,
		clock:      clock,
		cfg:        cfg,
		log:        logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(120 * time.Second))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/sweeps", s.startSweep)
		r.Post("/enrichments/contacts", s.startContactEnrichment)
		r.Post("/sources", s.registerSource)
		r.Get("/entities/{entity_id}/candidates", s.listPendingCandidates)
		r.Route("/review", func(r chi.Router) {
			r.Post("/apply", s.applyCandidates)
			r.Post("/reject", s.rejectCandidates)
			r.Post("/block", s.blockCandidates)
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.log, w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(s.log, w, http.StatusOK, map[string]string{"status": "ready"})
}

type sweepRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) startSweep(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	summary, err := s.sweeper.Run(r.Context(), req.Limit)
	if err != nil {
		// The summary still carries partial counts when a run aborts mid-batch.
		s.log.Error("sweep run failed", zap.String("run_id", summary.RunID), zap.Error(err))
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(s.log, w, http.StatusOK, summary)
}

func (s *Server) startContactEnrichment(w http.ResponseWriter, r *http.Request) {
	var req sweepRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	summary, err := s.sweeper.EnrichContacts(r.Context(), req.Limit)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(s.log, w, http.StatusOK, summary)
}

type registerSourceRequest struct {
	URL        string `json:"url"`
	SourceType string `json:"source_type"`
	Sport      string `json:"sport"`
	Region     string `json:"region"`
}

type registerSourceResponse struct {
	Source  scout.Source `json:"source"`
	Created bool         `json:"created"`
}

func (s *Server) registerSource(w http.ResponseWriter, r *http.Request) {
	var req registerSourceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		s.writeError(w, http.StatusBadRequest, "url required")
		return
	}
	norm, err := urlnorm.Normalize(req.URL)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	srcType := scout.SourceType(req.SourceType)
	if srcType == "" {
		srcType = scout.SourceTypeTournament
	}
	switch srcType {
	case scout.SourceTypeTournament, scout.SourceTypeAssignor, scout.SourceTypeDirectory:
	default:
		s.writeError(w, http.StatusBadRequest, "unknown source_type")
		return
	}

	id, err := s.idGen.NewID()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "generate source id")
		return
	}
	src, created, err := s.sources.Ensure(r.Context(), scout.Source{
		ID:            id,
		CanonicalURL:  norm.Canonical,
		NormalizedURL: norm.Normalized,
		Host:          norm.Host,
		SourceType:    srcType,
		Sport:         req.Sport,
		Region:        req.Region,
		IsActive:      true,
		ReviewStatus:  scout.SourceUntested,
		CreatedAt:     s.clock.Now().UTC(),
	})
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(s.log, w, status, registerSourceResponse{Source: src, Created: created})
}

func (s *Server) listPendingCandidates(w http.ResponseWriter, r *http.Request) {
	entityID := chi.URLParam(r, "entity_id")
	pending, err := s.candidates.ListPendingByTarget(r.Context(), entityID)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(s.log, w, http.StatusOK, map[string]any{
		"entity_id":  entityID,
		"candidates": pending,
	})
}

type applyRequest struct {
	EntityID     string   `json:"entity_id"`
	CandidateIDs []string `json:"candidate_ids"`
}

func (s *Server) applyCandidates(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.EntityID == "" || len(req.CandidateIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "entity_id and candidate_ids required")
		return
	}
	result, err := s.reviewer.Apply(r.Context(), req.EntityID, req.CandidateIDs)
	if err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(s.log, w, http.StatusOK, result)
}

type candidateIDsRequest struct {
	CandidateIDs []string `json:"candidate_ids"`
}

func (s *Server) rejectCandidates(w http.ResponseWriter, r *http.Request) {
	s.reviewDecision(w, r, s.reviewer.Reject, "rejected")
}

func (s *Server) blockCandidates(w http.ResponseWriter, r *http.Request) {
	s.reviewDecision(w, r, s.reviewer.Block, "blocked")
}

func (s *Server) reviewDecision(
	w http.ResponseWriter,
	r *http.Request,
	decide func(context.Context, []string) error,
	outcome string,
) {
	var req candidateIDsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.CandidateIDs) == 0 {
		s.writeError(w, http.StatusBadRequest, "candidate_ids required")
		return
	}
	if err := decide(r.Context(), req.CandidateIDs); err != nil {
		s.writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(s.log, w, http.StatusOK, map[string]any{
		"status":     outcome,
		"candidates": len(req.CandidateIDs),
	})
}

// statusForError translates repository and sweep errors into HTTP status
// codes. This is the only place the classified taxonomy touches HTTP.
func statusForError(err error) int {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicateKey):
		return http.StatusConflict
	case errors.Is(err, store.ErrConstraintOutdated):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusRequestTimeout
	}
	if se, ok := scout.AsSweepError(err); ok {
		switch se.Kind {
		case scout.KindConstraintOutdated:
			return http.StatusUnprocessableEntity
		default:
			return http.StatusBadGateway
		}
	}
	return http.StatusInternalServerError
}

func writeJSON(log *zap.Logger, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(s.log, w, status, map[string]string{"error": msg})
}
