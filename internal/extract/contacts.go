package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ContactName is a person found near a role keyword.
type ContactName struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ContactSet holds everything the contact extractor harvested from one page,
// each list deduplicated case-insensitively.
type ContactSet struct {
	Emails []string      `json:"emails,omitempty"`
	Phones []string      `json:"phones,omitempty"`
	Names  []ContactName `json:"names,omitempty"`
}

// Empty reports whether nothing was harvested.
func (c ContactSet) Empty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0 && len(c.Names) == 0
}

var (
	emailPattern = regexp.MustCompile(`[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}`)

	// "name (at) domain (dot) com" and bracket variants.
	obfuscatedEmailPattern = regexp.MustCompile(
		`(?i)([a-z0-9._%+-]+)\s*[\(\[]\s*at\s*[\)\]]\s*([a-z0-9-]+(?:\s*[\(\[]\s*dot\s*[\)\]]\s*[a-z0-9-]+)*)\s*[\(\[]\s*dot\s*[\)\]]\s*([a-z]{2,})`)

	dotTokenPattern = regexp.MustCompile(`(?i)\s*[\(\[]\s*dot\s*[\)\]]\s*`)

	// Permissive US phone grouping: optional +1, area code with or without
	// parens, dot/dash/space separators.
	phonePattern = regexp.MustCompile(`(?:\+?1[\s.-]?)?\(?\d{3}\)?[\s.-]\d{3}[\s.-]\d{4}\b`)

	capName = `[A-Z][a-zA-Z'.-]+(?:\s+[A-Z][a-zA-Z'.-]+){1,2}`

	// "Tournament Director: Dana Whitfield" style.
	roleThenName = regexp.MustCompile(
		`(?:(?i:tournament|site|referee|league|event)\s+)?(?i:director|coordinator|assignor)\s*[:\-–]\s*(` + capName + `)`)

	// "Dana Whitfield, Assignor" style.
	nameThenRole = regexp.MustCompile(
		`(` + capName + `)\s*[,\-–]\s*(?:(?i:tournament|site|referee|league|event)\s+)?((?i:director|coordinator|assignor))`)

	roleWordPattern = regexp.MustCompile(`(?i)director|coordinator|assignor`)
)

// ExtractContacts harvests emails (mailto links, bare matches, de-obfuscated
// forms), US-format phone numbers, and role-adjacent names.
func ExtractContacts(doc *goquery.Document, text string) ContactSet {
	set := ContactSet{
		Emails: extractEmails(doc, text),
		Phones: dedupeFold(phonePattern.FindAllString(text, -1)),
	}
	set.Names = extractNames(text)
	return set
}

func extractEmails(doc *goquery.Document, text string) []string {
	var emails []string
	if doc != nil {
		doc.Find(`a[href^="mailto:"]`).Each(func(_ int, sel *goquery.Selection) {
			href, _ := sel.Attr("href")
			addr := strings.TrimPrefix(href, "mailto:")
			if i := strings.IndexByte(addr, '?'); i >= 0 {
				addr = addr[:i]
			}
			if addr != "" {
				emails = append(emails, addr)
			}
		})
	}
	emails = append(emails, emailPattern.FindAllString(text, -1)...)
	for _, m := range obfuscatedEmailPattern.FindAllStringSubmatch(text, -1) {
		domain := dotTokenPattern.ReplaceAllString(m[2], ".")
		emails = append(emails, m[1]+"@"+domain+"."+m[3])
	}
	return dedupeFold(emails)
}

func extractNames(text string) []ContactName {
	seen := make(map[string]bool)
	var names []ContactName

	add := func(name, role string) {
		name = normalizeSpace(name)
		key := strings.ToLower(name)
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		names = append(names, ContactName{Name: name, Role: strings.ToLower(role)})
	}

	for _, m := range roleThenName.FindAllStringSubmatch(text, -1) {
		role := roleWordPattern.FindString(m[0])
		add(m[1], role)
	}
	for _, m := range nameThenRole.FindAllStringSubmatch(text, -1) {
		add(m[1], m[2])
	}
	return names
}

func dedupeFold(values []string) []string {
	seen := make(map[string]bool, len(values))
	var out []string
	for _, v := range values {
		v = strings.TrimSpace(v)
		key := strings.ToLower(v)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, v)
	}
	return out
}
