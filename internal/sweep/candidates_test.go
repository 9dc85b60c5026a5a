package sweep

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/refhq/sourcescout/internal/extract"
	"github.com/refhq/sourcescout/internal/scout"
)

func TestBuildCandidatesOnlyForMissingFields(t *testing.T) {
	t.Parallel()

	target := scout.Tournament{
		ID:       "t1",
		EntryFee: "7v7 $845", // already filled
	}
	ext := extract.Extraction{
		Fees:  []extract.FeeEntry{{Label: "9v9", Amount: "975"}},
		Dates: &extract.DateRange{Start: "2026-05-02", End: "2026-05-03"},
		Contacts: extract.ContactSet{
			Emails: []string{"dana@springclassic.org"},
		},
	}

	now := time.Now().UTC()
	got, err := buildCandidates(target, ext, "https://springclassic.org", "run-1", &seqIDs{}, now)
	require.NoError(t, err)

	keys := map[string]bool{}
	for _, c := range got {
		keys[c.FieldKey] = true
		require.Equal(t, "t1", c.TargetID)
		require.Equal(t, "run-1", c.RunID)
		require.Equal(t, "https://springclassic.org", c.SourceURL)
		require.NotEmpty(t, c.ID)
	}
	require.False(t, keys["entry_fee"], "filled fields are not re-staged")
	require.True(t, keys["date_range"])
	require.True(t, keys["email"])
}

func TestBuildCandidatesVenueAndAddressShapes(t *testing.T) {
	t.Parallel()

	ext := extract.Extraction{
		Venues: []extract.VenueEntry{
			{Name: "North Complex", Address: "4500 Lakeview Drive, Maple Grove, MN 55311"},
		},
	}
	got, err := buildCandidates(scout.Tournament{ID: "t1"}, ext, "https://a.example", "run-1", &seqIDs{}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, scout.KindVenue, got[0].Kind)
	require.Equal(t, "North Complex", got[0].VenueName)
	require.Equal(t, "4500 Lakeview Drive, Maple Grove, MN 55311", got[0].Address)

	// Bare address with no venue pairing falls back to an attribute candidate.
	ext = extract.Extraction{Address: "120 Elm Street, Maple Grove, MN 55311"}
	got, err = buildCandidates(scout.Tournament{ID: "t1"}, ext, "https://a.example", "run-1", &seqIDs{}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, scout.KindAttribute, got[0].Kind)
	require.Equal(t, "address", got[0].FieldKey)
}

func TestBuildCandidatesDirectorRoleRaisesConfidence(t *testing.T) {
	t.Parallel()

	ext := extract.Extraction{
		Contacts: extract.ContactSet{
			Names: []extract.ContactName{
				{Name: "Dana Whitfield", Role: "director"},
				{Name: "Marcus De La Cruz", Role: "assignor"},
			},
		},
	}
	got, err := buildCandidates(scout.Tournament{ID: "t1"}, ext, "https://a.example", "run-1", &seqIDs{}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, got, 2)

	byName := map[string]scout.Candidate{}
	for _, c := range got {
		byName[c.ContactName] = c
	}
	require.Equal(t, "director", byName["Dana Whitfield"].FieldKey)
	require.Greater(t, byName["Dana Whitfield"].Confidence, byName["Marcus De La Cruz"].Confidence)
}

func TestBuildCandidatesAttributesAlwaysStaged(t *testing.T) {
	t.Parallel()

	target := scout.Tournament{
		ID:       "t1",
		EntryFee: "x", Venue: "x", Address: "x", StartDate: "x", EndDate: "x",
		Email: "x", Phone: "x", Director: "x",
	}
	ext := extract.Extraction{
		Attributes: map[string]extract.AttributeValue{
			extract.AttrParkingCost: {Key: extract.AttrParkingCost, Value: "free", Confidence: 0.8},
		},
	}
	got, err := buildCandidates(target, ext, "https://a.example", "run-1", &seqIDs{}, time.Now().UTC())
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, extract.AttrParkingCost, got[0].FieldKey)
}
