// Package dedupe collapses candidate batches against themselves and against
// previously persisted candidates. It is a pure function over slices so the
// orchestrator can stage exactly once per distinct fact and the tests need no
// database.
package dedupe

import (
	"strings"

	"github.com/refhq/sourcescout/internal/scout"
)

// Key identifies a candidate fact. Two candidates with the same key describe
// the same claim from the same place and must not both be stored.
type Key string

// CompositeKey derives the dedup identity of a candidate: target, kind, field,
// normalized value, and the page it came from. Normalization is lowercase with
// collapsed whitespace so cosmetic re-renders of a page do not re-stage facts.
func CompositeKey(c scout.Candidate) Key {
	parts := []string{
		c.TargetID,
		string(c.Kind),
		c.FieldKey,
		NormalizedValue(c),
		strings.ToLower(c.SourceURL),
	}
	return Key(strings.Join(parts, "|"))
}

// NormalizedValue renders the candidate's value for equality comparisons:
// lowercase, whitespace collapsed, structured kinds flattened.
func NormalizedValue(c scout.Candidate) string {
	v := c.Value
	switch c.Kind {
	case scout.KindVenue:
		v = c.VenueName + " " + c.Address
	case scout.KindDateRange:
		v = c.StartDate + " " + c.EndDate
	case scout.KindContact:
		v = c.ContactName + " " + c.Email + " " + c.Phone
	}
	return strings.Join(strings.Fields(strings.ToLower(v)), " ")
}

// Result reports what survived deduplication.
type Result struct {
	ToInsert         []scout.Candidate
	SkippedDuplicate int
}

// Stage returns the members of batch not already present, either earlier in
// the batch itself or among the existing persisted candidates. Order within
// the batch is preserved; the first occurrence of a key wins. Rejected
// existing candidates still suppress re-staging, so a reviewer's "no" sticks
// until the value itself changes.
func Stage(batch, existing []scout.Candidate) Result {
	seen := make(map[Key]bool, len(existing)+len(batch))
	for _, c := range existing {
		seen[CompositeKey(c)] = true
	}

	var res Result
	for _, c := range batch {
		k := CompositeKey(c)
		if seen[k] {
			res.SkippedDuplicate++
			continue
		}
		seen[k] = true
		res.ToInsert = append(res.ToInsert, c)
	}
	return res
}
