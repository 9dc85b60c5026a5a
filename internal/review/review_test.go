package review

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/refhq/sourcescout/internal/metrics"
	"github.com/refhq/sourcescout/internal/scout"
	"github.com/refhq/sourcescout/internal/storage/memory"
)

func init() {
	metrics.Init()
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) (*Service, *memory.Stores, *fakeClock) {
	t.Helper()
	stores := memory.NewStores()
	clk := &fakeClock{now: time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)}
	svc, err := New(stores.Sources(), stores.Candidates(), stores.Entities(), clk, zap.NewNop())
	require.NoError(t, err)
	return svc, stores, clk
}

func seedCandidates(t *testing.T, stores *memory.Stores, cands ...scout.Candidate) {
	t.Helper()
	require.NoError(t, stores.Candidates().InsertBatch(context.Background(), cands))
}

func TestApplyWritesWinningFields(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	base := clk.now.Add(-time.Hour)
	seedCandidates(t, stores,
		scout.Candidate{
			ID: "c-fee", TargetID: "t1", Kind: scout.KindAttribute,
			FieldKey: "entry_fee", Value: "7v7 $845",
			SourceURL: "https://springclassic.org", Confidence: 0.8, CreatedAt: base,
		},
		scout.Candidate{
			ID: "c-venue", TargetID: "t1", Kind: scout.KindVenue,
			FieldKey: "venue", VenueName: "North Complex",
			Address:   "4500 Lakeview Drive, Maple Grove, MN 55311",
			SourceURL: "https://springclassic.org", Confidence: 0.9, CreatedAt: base,
		},
	)

	res, err := svc.Apply(context.Background(), "t1", []string{"c-fee", "c-venue"})
	require.NoError(t, err)
	require.Equal(t, []string{"address", "entry_fee", "venue"}, res.UpdatedFields)
	require.Equal(t, 1, res.Applied.Venues)
	require.Equal(t, 1, res.Applied.Attributes)

	got, err := stores.Entities().Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "7v7 $845", got.EntryFee)
	require.Equal(t, "North Complex", got.Venue)
	require.Equal(t, "4500 Lakeview Drive, Maple Grove, MN 55311", got.Address)
	require.Equal(t, clk.now, got.UpdatedAt)

	pending, err := stores.Candidates().ListPendingByTarget(context.Background(), "t1")
	require.NoError(t, err)
	require.Empty(t, pending)
}

func TestApplyPicksOneValuePerField(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	seedCandidates(t, stores,
		scout.Candidate{
			ID: "c-low", TargetID: "t1", Kind: scout.KindContact, FieldKey: "email",
			Email:     "info@springclassic.org",
			SourceURL: "https://springclassic.org", Confidence: 0.7,
			CreatedAt: clk.now.Add(-2 * time.Hour),
		},
		scout.Candidate{
			ID: "c-high", TargetID: "t1", Kind: scout.KindContact, FieldKey: "email",
			Email:     "dana@springclassic.org",
			SourceURL: "https://springclassic.org/contact", Confidence: 0.9,
			CreatedAt: clk.now.Add(-time.Hour),
		},
	)

	res, err := svc.Apply(context.Background(), "t1", []string{"c-low", "c-high"})
	require.NoError(t, err)
	require.Equal(t, []string{"email"}, res.UpdatedFields)
	require.Equal(t, 1, res.Applied.Contacts)

	got, err := stores.Entities().Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "dana@springclassic.org", got.Email, "higher confidence wins")
}

func TestApplyBreaksConfidenceTiesByRecency(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	seedCandidates(t, stores,
		scout.Candidate{
			ID: "c-old", TargetID: "t1", Kind: scout.KindAttribute, FieldKey: "entry_fee",
			Value:     "$800",
			SourceURL: "https://springclassic.org", Confidence: 0.8,
			CreatedAt: clk.now.Add(-48 * time.Hour),
		},
		scout.Candidate{
			ID: "c-new", TargetID: "t1", Kind: scout.KindAttribute, FieldKey: "entry_fee",
			Value:     "$845",
			SourceURL: "https://springclassic.org/fees", Confidence: 0.8,
			CreatedAt: clk.now.Add(-time.Hour),
		},
	)

	_, err := svc.Apply(context.Background(), "t1", []string{"c-old", "c-new"})
	require.NoError(t, err)

	got, err := stores.Entities().Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "$845", got.EntryFee)
}

func TestApplyAcceptsSameValueAlternates(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	seedCandidates(t, stores,
		scout.Candidate{
			ID: "c-applied", TargetID: "t1", Kind: scout.KindContact, FieldKey: "email",
			Email:     "Dana@SpringClassic.org",
			SourceURL: "https://springclassic.org", Confidence: 0.9, CreatedAt: clk.now,
		},
		// Same address, different casing, different page. Accepted alongside.
		scout.Candidate{
			ID: "c-alt", TargetID: "t1", Kind: scout.KindContact, FieldKey: "email",
			Email:     "dana@springclassic.org",
			SourceURL: "https://springclassic.org/contact", Confidence: 0.8, CreatedAt: clk.now,
		},
		// Different value stays pending.
		scout.Candidate{
			ID: "c-other", TargetID: "t1", Kind: scout.KindContact, FieldKey: "email",
			Email:     "info@springclassic.org",
			SourceURL: "https://springclassic.org", Confidence: 0.7, CreatedAt: clk.now,
		},
	)

	_, err := svc.Apply(context.Background(), "t1", []string{"c-applied"})
	require.NoError(t, err)

	pending, err := stores.Candidates().ListPendingByTarget(context.Background(), "t1")
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, "c-other", pending[0].ID)
}

func TestApplyIsIdempotent(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	seedCandidates(t, stores, scout.Candidate{
		ID: "c1", TargetID: "t1", Kind: scout.KindAttribute, FieldKey: "entry_fee",
		Value:     "$845",
		SourceURL: "https://springclassic.org", Confidence: 0.8, CreatedAt: clk.now,
	})

	first, err := svc.Apply(context.Background(), "t1", []string{"c1"})
	require.NoError(t, err)
	require.Equal(t, []string{"entry_fee"}, first.UpdatedFields)

	firstEntity, err := stores.Entities().Get(context.Background(), "t1")
	require.NoError(t, err)

	clk.now = clk.now.Add(time.Hour)
	second, err := svc.Apply(context.Background(), "t1", []string{"c1"})
	require.NoError(t, err)
	require.Empty(t, second.UpdatedFields, "value already canonical, nothing rewritten")

	secondEntity, err := stores.Entities().Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, firstEntity.UpdatedAt, secondEntity.UpdatedAt)
}

func TestApplyRejectsCrossEntityCandidates(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	stores.SeedTournament(scout.Tournament{ID: "t2", Name: "Fall Cup"})
	seedCandidates(t, stores, scout.Candidate{
		ID: "c1", TargetID: "t2", Kind: scout.KindAttribute, FieldKey: "entry_fee",
		Value: "$500", SourceURL: "https://fallcup.example", CreatedAt: clk.now,
	})

	_, err := svc.Apply(context.Background(), "t1", []string{"c1"})
	require.ErrorContains(t, err, "does not belong")
}

func TestApplyRefusesRejectedCandidate(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	seedCandidates(t, stores, scout.Candidate{
		ID: "c1", TargetID: "t1", Kind: scout.KindAttribute, FieldKey: "entry_fee",
		Value: "$845", SourceURL: "https://springclassic.org", CreatedAt: clk.now,
	})
	require.NoError(t, svc.Reject(context.Background(), []string{"c1"}))

	_, err := svc.Apply(context.Background(), "t1", []string{"c1"})
	require.ErrorContains(t, err, "rejected")

	got, err := stores.Entities().Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Empty(t, got.EntryFee, "reject never touches the canonical record")
}

func TestApplyDateRangeFillsBothColumns(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	seedCandidates(t, stores, scout.Candidate{
		ID: "c1", TargetID: "t1", Kind: scout.KindDateRange, FieldKey: "date_range",
		StartDate: "2026-05-02", EndDate: "2026-05-03",
		SourceURL: "https://springclassic.org", Confidence: 0.85, CreatedAt: clk.now,
	})

	res, err := svc.Apply(context.Background(), "t1", []string{"c1"})
	require.NoError(t, err)
	require.Equal(t, []string{"end_date", "start_date"}, res.UpdatedFields)
	require.Equal(t, 1, res.Applied.Dates)

	got, err := stores.Entities().Get(context.Background(), "t1")
	require.NoError(t, err)
	require.Equal(t, "2026-05-02", got.StartDate)
	require.Equal(t, "2026-05-03", got.EndDate)
}

func TestApplyUnknownAttributeKeyFails(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	seedCandidates(t, stores, scout.Candidate{
		ID: "c1", TargetID: "t1", Kind: scout.KindAttribute, FieldKey: "swag_bag",
		Value: "yes", SourceURL: "https://springclassic.org", CreatedAt: clk.now,
	})

	_, err := svc.Apply(context.Background(), "t1", []string{"c1"})
	require.ErrorContains(t, err, "unknown attribute key")
}

func TestBlockParksTheSource(t *testing.T) {
	t.Parallel()

	svc, stores, clk := newTestService(t)
	stores.SeedTournament(scout.Tournament{ID: "t1", Name: "Spring Classic"})
	_, _, err := stores.Sources().Ensure(context.Background(), scout.Source{
		ID: "src-1", NormalizedURL: "https://badsite.example",
		IsActive: true, ReviewStatus: scout.SourceWorking,
	})
	require.NoError(t, err)
	seedCandidates(t, stores, scout.Candidate{
		ID: "c1", TargetID: "t1", Kind: scout.KindAttribute, FieldKey: "entry_fee",
		Value: "$1", SourceURL: "https://badsite.example", CreatedAt: clk.now,
	})

	require.NoError(t, svc.Block(context.Background(), []string{"c1"}))

	src, err := stores.Sources().GetByNormalizedURL(context.Background(), "https://badsite.example")
	require.NoError(t, err)
	require.Equal(t, scout.SourceBlocked, src.ReviewStatus)

	pending, err := stores.Candidates().ListPendingByTarget(context.Background(), "t1")
	require.NoError(t, err)
	require.Empty(t, pending)
}
