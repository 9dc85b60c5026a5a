// Package urlnorm canonicalizes source URLs so superficially different
// spellings of the same page share one registry identity.
package urlnorm

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// Normalized is the identity triple used everywhere else. Canonical preserves
// path/query casing for display; Normalized is fully lower-cased and is the
// value used for equality comparisons.
type Normalized struct {
	Canonical  string
	Host       string
	Normalized string
}

// trackingParams are stripped outright; everything else is preserved in its
// original order.
var trackingParams = map[string]bool{
	"gclid":      true,
	"fbclid":     true,
	"msclkid":    true,
	"mc_cid":     true,
	"mc_eid":     true,
	"ref":        true,
	"igshid":     true,
	"_hsenc":     true,
	"_hsmi":      true,
	"vero_id":    true,
	"mkt_tok":    true,
	"yclid":      true,
	"twclid":     true,
	"wickedid":   true,
	"gbraid":     true,
	"wbraid":     true,
	"gad_source": true,
	"gclsrc":     true,
}

func isTrackingParam(key string) bool {
	k := strings.ToLower(key)
	if strings.HasPrefix(k, "utm_") {
		return true
	}
	return trackingParams[k]
}

// Normalize canonicalizes a raw URL string. Only http and https URLs are
// accepted.
func Normalize(raw string) (Normalized, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Normalized{}, fmt.Errorf("empty url")
	}
	if !hasScheme(raw) {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return Normalized{}, fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return Normalized{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return Normalized{}, fmt.Errorf("missing host in %q", raw)
	}

	u.Host = strings.ToLower(u.Host)
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawQuery = stripTracking(u.RawQuery)

	if u.Path != "/" && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}

	canonical := u.String()
	return Normalized{
		Canonical:  canonical,
		Host:       u.Hostname(),
		Normalized: strings.ToLower(canonical),
	}, nil
}

// schemePrefix matches an RFC 3986 scheme at the start of the string, with or
// without the // that follows it in http URLs.
var schemePrefix = regexp.MustCompile(`^[a-zA-Z][a-zA-Z0-9+.-]*:`)

// hasScheme reports whether raw already carries an explicit scheme. Forms like
// mailto:a@b or tel:+1555 count; example.com:8080/x is a host with a port and
// does not.
func hasScheme(raw string) bool {
	m := schemePrefix.FindString(raw)
	if m == "" {
		return false
	}
	rest := raw[len(m):]
	if len(rest) > 0 && rest[0] >= '0' && rest[0] <= '9' {
		return false
	}
	return true
}

// stripTracking removes tracking parameters while keeping the remaining
// query parameters in their original order.
func stripTracking(rawQuery string) string {
	if rawQuery == "" {
		return ""
	}
	parts := strings.Split(rawQuery, "&")
	kept := parts[:0]
	for _, p := range parts {
		if p == "" {
			continue
		}
		key := p
		if i := strings.IndexByte(p, '='); i >= 0 {
			key = p[:i]
		}
		if isTrackingParam(key) {
			continue
		}
		kept = append(kept, p)
	}
	return strings.Join(kept, "&")
}
