// Package extract implements the heuristic extraction engine. Each extractor
// is a pure function over normalized page text and/or the DOM, returning its
// zero value on no-match rather than erroring.
package extract

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/jaytaylor/html2text"
	"golang.org/x/net/html"
)

// Page is the parsed form of one fetched document: the DOM for structural
// extractors, whitespace-normalized text for the pattern extractors, and any
// JSON-LD objects found in script tags.
type Page struct {
	URL    string
	Doc    *goquery.Document
	Text   string
	JSONLD []map[string]any
}

var spacePattern = regexp.MustCompile(`\s+`)

func normalizeSpace(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// ParsePage builds a Page from a raw HTML body. Script contents never reach
// the text view; JSON-LD blocks are decoded separately.
func ParsePage(url string, body []byte) (*Page, error) {
	root, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	text, err := html2text.FromString(string(body), html2text.Options{OmitLinks: true, TextOnly: true})
	if err != nil {
		// Fall back to the DOM text; html2text chokes on some table soup.
		text = doc.Text()
	}

	return &Page{
		URL:    url,
		Doc:    doc,
		Text:   normalizeSpace(text),
		JSONLD: harvestJSONLD(doc),
	}, nil
}

// harvestJSONLD decodes every application/ld+json script, flattening
// top-level arrays and @graph containers into a single object list.
func harvestJSONLD(doc *goquery.Document) []map[string]any {
	var out []map[string]any
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, sel *goquery.Selection) {
		raw := strings.TrimSpace(sel.Text())
		if raw == "" {
			return
		}
		var obj map[string]any
		if err := json.Unmarshal([]byte(raw), &obj); err == nil {
			out = append(out, flattenGraph(obj)...)
			return
		}
		var arr []map[string]any
		if err := json.Unmarshal([]byte(raw), &arr); err == nil {
			for _, o := range arr {
				out = append(out, flattenGraph(o)...)
			}
		}
	})
	return out
}

func flattenGraph(obj map[string]any) []map[string]any {
	graph, ok := obj["@graph"].([]any)
	if !ok {
		return []map[string]any{obj}
	}
	out := []map[string]any{obj}
	for _, item := range graph {
		if m, ok := item.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// jsonLDType reports whether the object's @type matches want, handling both
// string and array forms.
func jsonLDType(obj map[string]any, want string) bool {
	switch t := obj["@type"].(type) {
	case string:
		return strings.EqualFold(t, want)
	case []any:
		for _, v := range t {
			if s, ok := v.(string); ok && strings.EqualFold(s, want) {
				return true
			}
		}
	}
	return false
}
