package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractDatesRangeSameMonth(t *testing.T) {
	t.Parallel()

	dr := ExtractDates(nil, "Join us Jan 10-12, 2026 at the lakefront complex.")
	require.NotNil(t, dr)
	require.Equal(t, "2026-01-10", dr.Start)
	require.Equal(t, "2026-01-12", dr.End)
}

func TestExtractDatesRangeCrossMonth(t *testing.T) {
	t.Parallel()

	dr := ExtractDates(nil, "Pool play runs June 28 - July 2, 2026.")
	require.NotNil(t, dr)
	require.Equal(t, "2026-06-28", dr.Start)
	require.Equal(t, "2026-07-02", dr.End)
}

func TestExtractDatesSingleDayDefaultsEnd(t *testing.T) {
	t.Parallel()

	dr := ExtractDates(nil, "One-day shootout on March 14, 2026.")
	require.NotNil(t, dr)
	require.Equal(t, "2026-03-14", dr.Start)
	require.Equal(t, "2026-03-14", dr.End)
}

func TestExtractDatesPrefersJSONLD(t *testing.T) {
	t.Parallel()

	jsonLD := []map[string]any{
		{"@type": "Event", "startDate": "2026-05-02T09:00:00-05:00", "endDate": "2026-05-03"},
	}
	dr := ExtractDates(jsonLD, "Totally different text date: Jan 1, 2020.")
	require.NotNil(t, dr)
	require.Equal(t, "2026-05-02", dr.Start)
	require.Equal(t, "2026-05-03", dr.End)
}

func TestExtractDatesJSONLDMissingEnd(t *testing.T) {
	t.Parallel()

	jsonLD := []map[string]any{
		{"@type": "SportsEvent", "startDate": "2026-09-12"},
	}
	dr := ExtractDates(jsonLD, "")
	require.NotNil(t, dr)
	require.Equal(t, "2026-09-12", dr.Start)
	require.Equal(t, "2026-09-12", dr.End)
}

func TestExtractDatesNoMatch(t *testing.T) {
	t.Parallel()

	require.Nil(t, ExtractDates(nil, "No dates anywhere in this copy."))
}

func TestExtractDatesIgnoresNonEventJSONLD(t *testing.T) {
	t.Parallel()

	jsonLD := []map[string]any{
		{"@type": "Organization", "startDate": "2001-01-01"},
	}
	dr := ExtractDates(jsonLD, "Kickoff Jan 10-12, 2026.")
	require.NotNil(t, dr)
	require.Equal(t, "2026-01-10", dr.Start)
}
