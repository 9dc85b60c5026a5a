package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/require"

	"github.com/refhq/sourcescout/internal/scout"
)

var sourceRowColumns = []string{
	"id", "canonical_url", "normalized_url", "host", "source_type",
	"sport", "region", "is_active", "review_status",
	"ignore_until", "last_swept_at", "created_at",
}

func TestEnsureReturnsExistingRow(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ss, err := NewSourceStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	rows := pgxmock.NewRows(sourceRowColumns).AddRow(
		"src-1", "https://springclassic.org", "https://springclassic.org", "springclassic.org",
		scout.SourceTypeTournament, "soccer", "MN", true, scout.SourceWorking,
		(*time.Time)(nil), (*time.Time)(nil), now,
	)
	mock.ExpectQuery("SELECT (.+) FROM sources").
		WithArgs("https://springclassic.org").
		WillReturnRows(rows)

	got, created, err := ss.Ensure(context.Background(), scout.Source{
		NormalizedURL: "https://springclassic.org",
	})
	require.NoError(t, err)
	require.False(t, created)
	require.Equal(t, "src-1", got.ID)
	require.Equal(t, scout.SourceWorking, got.ReviewStatus)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestEnsureInsertsWhenAbsent(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ss, err := NewSourceStore(mock)
	require.NoError(t, err)

	now := time.Unix(1700000000, 0).UTC()
	src := scout.Source{
		ID:            "src-2",
		CanonicalURL:  "https://fallcup.org",
		NormalizedURL: "https://fallcup.org",
		Host:          "fallcup.org",
		SourceType:    scout.SourceTypeTournament,
		IsActive:      true,
		ReviewStatus:  scout.SourceUntested,
		CreatedAt:     now,
	}

	mock.ExpectQuery("SELECT (.+) FROM sources").
		WithArgs(src.NormalizedURL).
		WillReturnRows(pgxmock.NewRows(sourceRowColumns))
	mock.ExpectExec("INSERT INTO sources").
		WithArgs(
			src.ID, src.CanonicalURL, src.NormalizedURL, src.Host, src.SourceType,
			src.Sport, src.Region, src.IsActive, src.ReviewStatus,
			(*time.Time)(nil), (*time.Time)(nil), src.CreatedAt,
		).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	got, created, err := ss.Ensure(context.Background(), src)
	require.NoError(t, err)
	require.True(t, created)
	require.Equal(t, src.ID, got.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkTerminalRejectsNonTerminalStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ss, err := NewSourceStore(mock)
	require.NoError(t, err)

	err = ss.MarkTerminal(context.Background(), "src-1", scout.SourceWorking)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkTerminalUpdatesStatus(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	ss, err := NewSourceStore(mock)
	require.NoError(t, err)

	mock.ExpectExec("UPDATE sources SET review_status").
		WithArgs(scout.SourceBlocked, "src-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	require.NoError(t, ss.MarkTerminal(context.Background(), "src-1", scout.SourceBlocked))
	require.NoError(t, mock.ExpectationsWereMet())
}
