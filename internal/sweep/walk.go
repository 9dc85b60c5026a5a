package sweep

import (
	"net/url"
	"sort"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// MaxPagesPerTarget caps the breadth-first walk across an entity's site.
const MaxPagesPerTarget = 6

// linkKeywords score internal links by how likely their anchor text is to
// lead to an enrichable field. Higher scores are visited first.
var linkKeywords = map[string]int{
	"fee":          5,
	"fees":         5,
	"cost":         4,
	"pricing":      4,
	"price":        4,
	"registration": 4,
	"register":     3,
	"entry":        3,
	"venue":        5,
	"venues":       5,
	"location":     4,
	"locations":    4,
	"field":        3,
	"fields":       3,
	"directions":   3,
	"map":          2,
	"schedule":     4,
	"dates":        4,
	"when":         2,
	"contact":      5,
	"contacts":     5,
	"about":        2,
	"staff":        3,
	"director":     4,
	"info":         1,
	"tournament":   1,
	"rules":        1,
}

type rankedLink struct {
	URL   string
	Score int
}

// rankLinks extracts same-host links from the document, scores them by anchor
// text, and returns them best-first. Zero-score links are dropped; the walk
// only follows links that look like they lead somewhere useful.
func rankLinks(doc *goquery.Document, baseURL string) []rankedLink {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil
	}

	seen := map[string]bool{}
	var links []rankedLink
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") ||
			strings.HasPrefix(href, "mailto:") || strings.HasPrefix(href, "tel:") ||
			strings.HasPrefix(href, "javascript:") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if !strings.EqualFold(abs.Host, base.Host) {
			return
		}
		abs.Fragment = ""
		target := abs.String()
		if seen[target] {
			return
		}

		score := scoreAnchor(sel.Text(), abs.Path)
		if score == 0 {
			return
		}
		seen[target] = true
		links = append(links, rankedLink{URL: target, Score: score})
	})

	sort.SliceStable(links, func(i, j int) bool {
		return links[i].Score > links[j].Score
	})
	return links
}

func scoreAnchor(text, path string) int {
	score := 0
	for _, token := range strings.FieldsFunc(strings.ToLower(text+" "+path), func(r rune) bool {
		return !('a' <= r && r <= 'z')
	}) {
		if w, ok := linkKeywords[token]; ok && w > score {
			score = w
		}
	}
	return score
}
