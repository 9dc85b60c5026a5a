package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, html string) *Page {
	t.Helper()
	page, err := ParsePage("https://example.com/fees", []byte(html))
	require.NoError(t, err)
	return page
}

func TestExtractFeesAgeRangeWithBirthYears(t *testing.T) {
	t.Parallel()

	fees := ExtractFees(nil, "Entry fees: U8/2019 - U10/2016: $675 per team.")
	require.Len(t, fees, 1)
	require.Equal(t, "U8-U10", fees[0].Label)
	require.Equal(t, "675", fees[0].Amount)
	require.Equal(t, "U8-U10 $675", fees[0].String())
}

func TestExtractFeesFormatPairsOrderPreserved(t *testing.T) {
	t.Parallel()

	fees := ExtractFees(nil, "7v7 $845 9v9 $975 11v11 $1045")
	require.Equal(t, []FeeEntry{
		{Label: "7v7", Amount: "845"},
		{Label: "9v9", Amount: "975"},
		{Label: "11v11", Amount: "1045"},
	}, fees)
}

func TestExtractFeesDuplicateLabelsSuppressed(t *testing.T) {
	t.Parallel()

	fees := ExtractFees(nil, "7v7 $845 some text 7v7 $845 and 9v9 $975")
	require.Len(t, fees, 2)
	require.Equal(t, "7v7", fees[0].Label)
	require.Equal(t, "9v9", fees[1].Label)
}

func TestExtractFeesIgnoresParking(t *testing.T) {
	t.Parallel()

	fees := ExtractFees(nil, "Daily parking pass $20. Entry fee U10: $550.")
	require.Len(t, fees, 1)
	require.Equal(t, "U10", fees[0].Label)
	require.Equal(t, "550", fees[0].Amount)
}

func TestExtractFeesParkingOnlyYieldsNothing(t *testing.T) {
	t.Parallel()

	fees := ExtractFees(nil, "Parking is $10 per day at the main lot.")
	require.Empty(t, fees)
}

func TestExtractFeesBareAmountLastResort(t *testing.T) {
	t.Parallel()

	fees := ExtractFees(nil, "Registration costs $845 for all divisions.")
	require.Len(t, fees, 1)
	require.Equal(t, "", fees[0].Label)
	require.Equal(t, "$845", fees[0].String())
}

func TestExtractFeesFromTableRows(t *testing.T) {
	t.Parallel()

	page := mustParse(t, `<html><body><table>
		<tr><td>7v7</td><td>U8/2018-U10/2016</td><td>$675</td></tr>
		<tr><td>9v9</td><td>U11-U12</td><td>$795</td></tr>
	</table></body></html>`)

	fees := ExtractFees(page.Doc, page.Text)
	require.Len(t, fees, 2)
	require.Equal(t, "7v7 U8-U10", fees[0].Label)
	require.Equal(t, "675", fees[0].Amount)
	require.Equal(t, "9v9 U11-U12", fees[1].Label)
}

func TestExtractFeesCapped(t *testing.T) {
	t.Parallel()

	var b strings.Builder
	for i := 1; i <= 12; i++ {
		b.WriteString("7v")
		b.WriteByte(byte('0' + i%10))
		b.WriteString(" $100 ")
	}
	fees := ExtractFees(nil, b.String())
	require.LessOrEqual(t, len(fees), MaxFeeEntries)
}

func TestJoinFees(t *testing.T) {
	t.Parallel()

	joined := JoinFees([]FeeEntry{{Label: "7v7", Amount: "845"}, {Label: "9v9", Amount: "975"}})
	require.Equal(t, "7v7 $845; 9v9 $975", joined)
}
