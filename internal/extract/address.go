package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// VenueEntry pairs a venue label with the address found in the same DOM node.
type VenueEntry struct {
	Name    string `json:"name,omitempty"`
	Address string `json:"address"`
}

var (
	// Full US-style address: <street>, <city>, <ST> <ZIP>.
	fullAddressPattern = regexp.MustCompile(
		`(\d+[A-Za-z]?\s+[A-Za-z0-9 .'&-]+?),\s*([A-Za-z .'-]+?),\s*([A-Z]{2})\s+(\d{5}(?:-\d{4})?)`)

	// Street-like fragment with a recognizable suffix but no city/state tail.
	streetFragmentPattern = regexp.MustCompile(
		`\d+[A-Za-z]?\s+(?:[A-Z][A-Za-z'.-]*\s+){0,4}` +
			`(?:Street|St|Avenue|Ave|Road|Rd|Drive|Dr|Boulevard|Blvd|Lane|Ln|Parkway|Pkwy|Court|Ct|Circle|Cir|Way|Place|Pl|Trail|Trl)\.?\b`)
)

// ExtractAddress returns the first full address on the page, or completes a
// street fragment using localityHint (the "<city>, <ST> <ZIP>" tail of a full
// address found elsewhere in the page cluster). Empty when neither matches.
func ExtractAddress(text, localityHint string) string {
	if m := fullAddressPattern.FindString(text); m != "" {
		return normalizeSpace(m)
	}
	frag := streetFragmentPattern.FindString(text)
	if frag == "" {
		return ""
	}
	if localityHint == "" {
		return normalizeSpace(frag)
	}
	return normalizeSpace(frag) + ", " + localityHint
}

// LocalityOf returns the "<city>, <ST> <ZIP>" tail of a full address, used to
// complete bare street fragments found on sibling pages.
func LocalityOf(address string) string {
	m := fullAddressPattern.FindStringSubmatch(address)
	if m == nil {
		return ""
	}
	return normalizeSpace(m[2]) + ", " + m[3] + " " + m[4]
}

// ExtractVenues pairs a nearby heading or strong-text label with each full
// address found inside the same DOM node. Entries are deduplicated by the
// lower-cased concatenation of name, address, and source URL.
func ExtractVenues(doc *goquery.Document, sourceURL string) []VenueEntry {
	if doc == nil {
		return nil
	}
	seen := make(map[string]bool)
	var out []VenueEntry

	doc.Find("div, section, article, li, td, p").Each(func(_ int, sel *goquery.Selection) {
		text := normalizeSpace(sel.Text())
		addr := fullAddressPattern.FindString(text)
		if addr == "" {
			return
		}
		// Prefer the deepest container holding the address so one venue card
		// does not also surface through every ancestor wrapper.
		deeper := false
		sel.Children().EachWithBreak(func(_ int, child *goquery.Selection) bool {
			if fullAddressPattern.MatchString(normalizeSpace(child.Text())) {
				deeper = true
				return false
			}
			return true
		})
		if deeper {
			return
		}

		entry := VenueEntry{Name: venueLabel(sel), Address: normalizeSpace(addr)}
		key := strings.ToLower(entry.Name + "|" + entry.Address + "|" + sourceURL)
		if seen[key] {
			return
		}
		seen[key] = true
		out = append(out, entry)
	})
	return out
}

func venueLabel(sel *goquery.Selection) string {
	if h := sel.Find("h1, h2, h3, h4, h5, h6, strong, b").First(); h.Length() > 0 {
		if label := normalizeSpace(h.Text()); !fullAddressPattern.MatchString(label) {
			return label
		}
	}
	// Walk back through preceding siblings for a heading.
	for prev := sel.Prev(); prev.Length() > 0; prev = prev.Prev() {
		if prev.Is("h1, h2, h3, h4, h5, h6, strong, b") {
			return normalizeSpace(prev.Text())
		}
	}
	return ""
}
