package api

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/refhq/sourcescout/internal/config"
	"github.com/refhq/sourcescout/internal/metrics"
	"github.com/refhq/sourcescout/internal/review"
	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/storage/memory"
	"github.com/refhq/sourcescout/internal/store"
	"github.com/refhq/sourcescout/internal/sweep"
)

func init() {
	metrics.Init()
}

type fakeSweeper struct {
	summary scout.SweepSummary
	enrich  sweep.EnrichmentSummary
	err     error
	limit   int
}

func (f *fakeSweeper) Run(_ context.Context, limit int) (scout.SweepSummary, error) {
	f.limit = limit
	return f.summary, f.err
}

func (f *fakeSweeper) EnrichContacts(_ context.Context, limit int) (sweep.EnrichmentSummary, error) {
	f.limit = limit
	return f.enrich, f.err
}

type fakeReviewer struct {
	result   review.ApplyResult
	err      error
	rejected []string
	blocked  []string
}

func (f *fakeReviewer) Apply(context.Context, string, []string) (review.ApplyResult, error) {
	return f.result, f.err
}

func (f *fakeReviewer) Reject(_ context.Context, ids []string) error {
	f.rejected = ids
	return f.err
}

func (f *fakeReviewer) Block(_ context.Context, ids []string) error {
	f.blocked = ids
	return f.err
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type seqIDs struct {
	mu sync.Mutex
	n  int
}

func (g *seqIDs) NewID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("id-%04d", g.n), nil
}

type serverFixture struct {
	server   *Server
	stores   *memory.Stores
	sweeper  *fakeSweeper
	reviewer *fakeReviewer
}

func newTestServer(t *testing.T, cfg config.Config) *serverFixture {
	t.Helper()
	stores := memory.NewStores()
	sweeper := &fakeSweeper{}
	reviewer := &fakeReviewer{}
	srv := NewServer(
		sweeper,
		reviewer,
		stores.Sources(),
		stores.Candidates(),
		&seqIDs{},
		&fakeClock{now: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)},
		cfg,
		zap.NewNop(),
	)
	return &serverFixture{server: srv, stores: stores, sweeper: sweeper, reviewer: reviewer}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	for _, path := range []string{"/healthz", "/readyz"} {
		rec := httptest.NewRecorder()
		fx.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		require.Equal(t, http.StatusOK, rec.Code, path)
	}
}

func TestStartSweepReturnsSummary(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	fx.sweeper.summary = scout.SweepSummary{RunID: "run-7", Attempted: 3, Inserted: 5}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sweeps", bytes.NewBufferString(`{"limit":3}`))
	fx.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "run-7")
	require.Equal(t, 3, fx.sweeper.limit)
}

func TestStartSweepWithoutBodyUsesDefaultLimit(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sweeps", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Zero(t, fx.sweeper.limit, "orchestrator applies its own default")
}

func TestStartSweepInvalidJSON(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/sweeps", bytes.NewBufferString("{bad"))
	fx.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartSweepErrorMapsSweepTaxonomy(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	fx.sweeper.err = scout.NewSweepError(scout.KindHTTPError,
		scout.Diagnostics{StatusCode: 503}, "upstream down")

	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/sweeps", nil))

	require.Equal(t, http.StatusBadGateway, rec.Code)
	require.Contains(t, rec.Body.String(), "http_error_503")
}

func TestRegisterSourceCreatesThenReturnsExisting(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	body := `{"url":"https://SpringClassic.org/?utm_source=x","source_type":"tournament","sport":"soccer"}`

	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/sources", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"created":true`)

	// Same page spelled differently resolves to the same registry row.
	rec = httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/sources",
			bytes.NewBufferString(`{"url":"https://springclassic.org/"}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"created":false`)
}

func TestRegisterSourceRejectsBadInput(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	cases := map[string]string{
		"missing url":  `{}`,
		"bad scheme":   `{"url":"ftp://example.org"}`,
		"unknown type": `{"url":"https://example.org","source_type":"blog"}`,
	}
	for name, body := range cases {
		rec := httptest.NewRecorder()
		fx.server.Handler().ServeHTTP(rec,
			httptest.NewRequest(http.MethodPost, "/v1/sources", bytes.NewBufferString(body)))
		require.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestListPendingCandidates(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	require.NoError(t, fx.stores.Candidates().InsertBatch(context.Background(), []scout.Candidate{
		{ID: "c1", TargetID: "t1", Kind: scout.KindAttribute, FieldKey: "entry_fee", Value: "$845"},
	}))

	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodGet, "/v1/entities/t1/candidates", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "entry_fee")
}

func TestApplyCandidates(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	fx.reviewer.result = review.ApplyResult{UpdatedFields: []string{"entry_fee"}}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/review/apply",
		bytes.NewBufferString(`{"entity_id":"t1","candidate_ids":["c1"]}`))
	fx.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "entry_fee")
}

func TestApplyCandidatesValidatesBody(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/review/apply",
		bytes.NewBufferString(`{"entity_id":"t1"}`))
	fx.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestApplyUnknownEntityReturns404(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	fx.reviewer.err = fmt.Errorf("load entity: %w", store.ErrNotFound)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/v1/review/apply",
		bytes.NewBufferString(`{"entity_id":"nope","candidate_ids":["c1"]}`))
	fx.server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRejectAndBlockForwardIDs(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	body := `{"candidate_ids":["c1","c2"]}`

	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/review/reject", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"c1", "c2"}, fx.reviewer.rejected)

	rec = httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec,
		httptest.NewRequest(http.MethodPost, "/v1/review/block", bytes.NewBufferString(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"c1", "c2"}, fx.reviewer.blocked)
}

func TestAPIKeyMiddleware(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{
		Auth: config.AuthConfig{Enabled: true, APIKey: "hunter2"},
	})

	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-API-Key", "hunter2")
	fx.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeaderSet(t *testing.T) {
	t.Parallel()

	fx := newTestServer(t, config.Config{})
	rec := httptest.NewRecorder()
	fx.server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
