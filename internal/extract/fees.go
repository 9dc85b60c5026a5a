package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxFeeEntries caps how many (label, amount) pairs one page may contribute.
const MaxFeeEntries = 6

// FeeEntry is one extracted (label, amount) pair, e.g. {"7v7", "845"}.
type FeeEntry struct {
	Label  string `json:"label,omitempty"`
	Amount string `json:"amount"`
}

// String renders the entry the way it is staged, e.g. "7v7 $845".
func (f FeeEntry) String() string {
	if f.Label == "" {
		return "$" + f.Amount
	}
	return fmt.Sprintf("%s $%s", f.Label, f.Amount)
}

// JoinFees renders a fee list as a single staged value.
func JoinFees(fees []FeeEntry) string {
	parts := make([]string, 0, len(fees))
	for _, f := range fees {
		parts = append(parts, f.String())
	}
	return strings.Join(parts, "; ")
}

var (
	amountGroup = `\$\s?(\d{1,4}(?:,\d{3})*(?:\.\d{2})?)`

	// U8/2019 - U10/2016 or U8-U10; birth-year suffixes are dropped in the
	// normalized label.
	ageToken        = `U\d{1,2}(?:/\d{4})?`
	ageRangeGroup   = `(` + ageToken + `(?:\s*[-–]\s*` + ageToken + `)?)`
	ageRangePattern = regexp.MustCompile(ageRangeGroup + `\s*:\s*` + amountGroup)

	// "7v7 $845" style pairs.
	formatPattern = regexp.MustCompile(`(\d{1,2}v\d{1,2})\s*` + amountGroup)

	barePattern = regexp.MustCompile(amountGroup)

	yearSuffix = regexp.MustCompile(`/\d{4}`)
	dashSpace  = regexp.MustCompile(`\s*[-–]\s*`)

	// Anything in a clause that mentions parking is stripped before fee
	// matching so lot fees are never mistaken for entry fees.
	parkingClause = regexp.MustCompile(`(?i)[^.!?;|\n]*parking[^.!?;|\n]*[.!?;|\n]?`)

	feeRowFormat = regexp.MustCompile(`^\d{1,2}v\d{1,2}$`)
	feeRowAge    = regexp.MustCompile(`^` + ageToken + `(?:\s*[-–]\s*` + ageToken + `)?$`)
	feeRowAmount = regexp.MustCompile(`^` + amountGroup + `$`)
)

// StripParkingFees removes parking-fee clauses from the text.
func StripParkingFees(text string) string {
	return normalizeSpace(parkingClause.ReplaceAllString(text, " "))
}

func normalizeAgeLabel(label string) string {
	label = yearSuffix.ReplaceAllString(label, "")
	return dashSpace.ReplaceAllString(label, "-")
}

// ExtractFees finds entry-fee pairs, trying structured rows first and falling
// back through progressively looser text patterns. Distinct pairs are
// retained in document order, duplicate labels suppressed, capped at
// MaxFeeEntries.
func ExtractFees(doc *goquery.Document, text string) []FeeEntry {
	text = StripParkingFees(text)

	if fees := feesFromRows(doc); len(fees) > 0 {
		return dedupeFees(fees)
	}
	if fees := feesFromAgeRanges(text); len(fees) > 0 {
		return dedupeFees(fees)
	}
	if fees := feesFromFormats(text); len(fees) > 0 {
		return dedupeFees(fees)
	}
	// Last resort: a single bare amount with no label.
	if m := barePattern.FindStringSubmatch(text); m != nil {
		return []FeeEntry{{Amount: m[1]}}
	}
	return nil
}

// feesFromRows walks table rows shaped like <format> | <age-range> | $<amount>.
func feesFromRows(doc *goquery.Document) []FeeEntry {
	if doc == nil {
		return nil
	}
	var fees []FeeEntry
	doc.Find("tr").Each(func(_ int, row *goquery.Selection) {
		var cells []string
		row.Find("td, th").Each(func(_ int, cell *goquery.Selection) {
			cells = append(cells, normalizeSpace(cell.Text()))
		})
		if entry, ok := feeFromCells(cells); ok {
			fees = append(fees, entry)
		}
	})
	return fees
}

func feeFromCells(cells []string) (FeeEntry, bool) {
	var labelParts []string
	var amount string
	for _, cell := range cells {
		switch {
		case feeRowAmount.MatchString(cell):
			m := feeRowAmount.FindStringSubmatch(cell)
			amount = m[1]
		case feeRowFormat.MatchString(cell):
			labelParts = append(labelParts, cell)
		case feeRowAge.MatchString(cell):
			labelParts = append(labelParts, normalizeAgeLabel(cell))
		}
	}
	if amount == "" || len(labelParts) == 0 {
		return FeeEntry{}, false
	}
	return FeeEntry{Label: strings.Join(labelParts, " "), Amount: amount}, true
}

func feesFromAgeRanges(text string) []FeeEntry {
	var fees []FeeEntry
	for _, m := range ageRangePattern.FindAllStringSubmatch(text, -1) {
		fees = append(fees, FeeEntry{Label: normalizeAgeLabel(m[1]), Amount: m[2]})
	}
	return fees
}

func feesFromFormats(text string) []FeeEntry {
	var fees []FeeEntry
	for _, m := range formatPattern.FindAllStringSubmatch(text, -1) {
		fees = append(fees, FeeEntry{Label: m[1], Amount: m[2]})
	}
	return fees
}

func dedupeFees(fees []FeeEntry) []FeeEntry {
	seen := make(map[string]bool, len(fees))
	out := fees[:0]
	for _, f := range fees {
		key := strings.ToLower(f.Label)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
		if len(out) == MaxFeeEntries {
			break
		}
	}
	return out
}
