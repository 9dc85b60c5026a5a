package extract

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateRange holds ISO start/end dates; End equals Start for one-day events.
type DateRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// monthIndex maps a lower-cased three-letter month prefix to its number.
var monthIndex = map[string]int{
	"jan": 1, "feb": 2, "mar": 3, "apr": 4, "may": 5, "jun": 6,
	"jul": 7, "aug": 8, "sep": 9, "oct": 10, "nov": 11, "dec": 12,
}

const monthAlt = `Jan(?:uary)?|Feb(?:ruary)?|Mar(?:ch)?|Apr(?:il)?|May|Jun(?:e)?|` +
	`Jul(?:y)?|Aug(?:ust)?|Sep(?:t(?:ember)?)?|Oct(?:ober)?|Nov(?:ember)?|Dec(?:ember)?`

var (
	// "Jan 10-12, 2026" and "June 5 - July 7, 2026".
	dateRangePattern = regexp.MustCompile(
		`(?i)\b(` + monthAlt + `)\.?\s+(\d{1,2})\s*[-–]\s*(?:(` + monthAlt + `)\.?\s+)?(\d{1,2}),?\s+(\d{4})`)

	// "March 14, 2026" single-date form.
	singleDatePattern = regexp.MustCompile(
		`(?i)\b(` + monthAlt + `)\.?\s+(\d{1,2}),?\s+(\d{4})`)
)

func monthNumber(name string) (int, bool) {
	if len(name) < 3 {
		return 0, false
	}
	n, ok := monthIndex[strings.ToLower(name[:3])]
	return n, ok
}

func isoDate(year, month, day int) (string, bool) {
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return "", false
	}
	return fmt.Sprintf("%04d-%02d-%02d", year, month, day), true
}

// ExtractDates prefers structured Event markup when present and falls back to
// text patterns. Nil when the page yields no parseable dates.
func ExtractDates(jsonLD []map[string]any, text string) *DateRange {
	if dr := datesFromJSONLD(jsonLD); dr != nil {
		return dr
	}
	return datesFromText(text)
}

func datesFromJSONLD(objects []map[string]any) *DateRange {
	for _, obj := range objects {
		if !jsonLDType(obj, "Event") && !jsonLDType(obj, "SportsEvent") {
			continue
		}
		start, ok := isoFromJSONLD(obj["startDate"])
		if !ok {
			continue
		}
		end, ok := isoFromJSONLD(obj["endDate"])
		if !ok {
			end = start
		}
		return &DateRange{Start: start, End: end}
	}
	return nil
}

// isoFromJSONLD reduces a schema.org date or datetime string to YYYY-MM-DD.
func isoFromJSONLD(v any) (string, bool) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	if i := strings.IndexByte(s, 'T'); i > 0 {
		s = s[:i]
	}
	if _, err := time.Parse("2006-01-02", s); err != nil {
		return "", false
	}
	return s, true
}

func datesFromText(text string) *DateRange {
	if m := dateRangePattern.FindStringSubmatch(text); m != nil {
		startMonth, ok := monthNumber(m[1])
		if !ok {
			return nil
		}
		endMonth := startMonth
		if m[3] != "" {
			if n, ok := monthNumber(m[3]); ok {
				endMonth = n
			}
		}
		year := atoiSafe(m[5])
		start, ok1 := isoDate(year, startMonth, atoiSafe(m[2]))
		end, ok2 := isoDate(year, endMonth, atoiSafe(m[4]))
		if ok1 && ok2 {
			return &DateRange{Start: start, End: end}
		}
	}

	if m := singleDatePattern.FindStringSubmatch(text); m != nil {
		month, ok := monthNumber(m[1])
		if !ok {
			return nil
		}
		if start, ok := isoDate(atoiSafe(m[3]), month, atoiSafe(m[2])); ok {
			return &DateRange{Start: start, End: start}
		}
	}
	return nil
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0
		}
		n = n*10 + int(r-'0')
	}
	return n
}
