package extract

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractAttributesKeywordHits(t *testing.T) {
	t.Parallel()

	text := "Free parking at all sites. A referee tent with water is provided, " +
		"lunch is provided for officials, and new referee mentors are on-site all weekend."
	attrs := ExtractAttributes(text)

	require.Equal(t, "free", attrs[AttrParkingCost].Value)
	require.Equal(t, "yes", attrs[AttrRefereeTent].Value)
	require.Equal(t, "yes", attrs[AttrFoodProvided].Value)
	require.Equal(t, "yes", attrs[AttrMentorsPresent].Value)
}

func TestExtractAttributesParkingCost(t *testing.T) {
	t.Parallel()

	attrs := ExtractAttributes("Parking passes are $15 per day.")
	require.Equal(t, "$15", attrs[AttrParkingCost].Value)
}

func TestExtractAttributesHigherConfidenceWins(t *testing.T) {
	t.Parallel()

	// Both lodging patterns hit; the explicit "provided" phrasing outranks
	// the hotel-block hint.
	attrs := ExtractAttributes("Hotel block available. Lodging is provided for traveling referees.")
	require.Equal(t, "yes", attrs[AttrLodgingProvided].Value)
	require.InDelta(t, 0.85, attrs[AttrLodgingProvided].Confidence, 0.001)
}

func TestExtractAttributesNoMatch(t *testing.T) {
	t.Parallel()

	require.Nil(t, ExtractAttributes("Plain schedule page with nothing special."))
}

func TestIsKnownAttributeKey(t *testing.T) {
	t.Parallel()

	require.True(t, IsKnownAttributeKey("parking_cost"))
	require.False(t, IsKnownAttributeKey("swag_bag"))
}
