package extract

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/refhq/sourcescout/internal/scout"
)

// Extraction is everything the engine pulled out of one page. Zero values
// mean no match; a fully empty Extraction is not an error by itself.
type Extraction struct {
	Fees       []FeeEntry                `json:"fees,omitempty"`
	Venues     []VenueEntry              `json:"venues,omitempty"`
	Address    string                    `json:"address,omitempty"`
	Dates      *DateRange                `json:"dates,omitempty"`
	Contacts   ContactSet                `json:"contacts,omitempty"`
	Attributes map[string]AttributeValue `json:"attributes,omitempty"`
}

// Empty reports whether no extractor found anything.
func (x Extraction) Empty() bool {
	return len(x.Fees) == 0 &&
		len(x.Venues) == 0 &&
		x.Address == "" &&
		x.Dates == nil &&
		x.Contacts.Empty() &&
		len(x.Attributes) == 0
}

// FieldsFound lists the canonical field categories this extraction can fill,
// used by the orchestrator to decide when all target fields are covered.
func (x Extraction) FieldsFound() []string {
	var fields []string
	if len(x.Fees) > 0 {
		fields = append(fields, "entry_fee")
	}
	if len(x.Venues) > 0 {
		fields = append(fields, "venue")
	}
	if x.Address != "" || len(x.Venues) > 0 {
		fields = append(fields, "address")
	}
	if x.Dates != nil {
		fields = append(fields, "start_date", "end_date")
	}
	if len(x.Contacts.Emails) > 0 {
		fields = append(fields, "email")
	}
	if len(x.Contacts.Phones) > 0 {
		fields = append(fields, "phone")
	}
	if len(x.Contacts.Names) > 0 {
		fields = append(fields, "director")
	}
	return fields
}

// Engine runs the extractor battery over parsed pages in a fixed order.
// Extractors are pure functions; a panic from any of them is a bug and is
// surfaced as extractor_error rather than crashing the sweep.
type Engine struct {
	logger *zap.Logger
}

// NewEngine builds an Engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// Extract runs every extractor over the page. localityHint completes bare
// street fragments using a full address seen earlier in the page cluster.
func (e *Engine) Extract(page *Page, localityHint string) (result Extraction, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("extractor panicked",
				zap.String("url", page.URL),
				zap.Any("panic", r),
			)
			err = scout.NewSweepError(scout.KindExtractorError, scout.Diagnostics{FinalURL: page.URL},
				fmt.Sprintf("extractor panicked: %v", r))
		}
	}()

	result.Fees = ExtractFees(page.Doc, page.Text)
	result.Venues = ExtractVenues(page.Doc, page.URL)
	result.Address = ExtractAddress(page.Text, localityHint)
	result.Dates = ExtractDates(page.JSONLD, page.Text)
	result.Contacts = ExtractContacts(page.Doc, page.Text)
	result.Attributes = ExtractAttributes(page.Text)

	if !result.Empty() {
		e.logger.Debug("page extracted",
			zap.String("url", page.URL),
			zap.Strings("fields", result.FieldsFound()),
		)
	}
	return result, nil
}

// Merge folds a later page's extraction into an accumulated one, keeping
// earlier pages' findings for scalar fields and unioning list fields.
func Merge(into, from Extraction) Extraction {
	if len(into.Fees) == 0 {
		into.Fees = from.Fees
	}
	into.Venues = mergeVenues(into.Venues, from.Venues)
	if into.Address == "" {
		into.Address = from.Address
	}
	if into.Dates == nil {
		into.Dates = from.Dates
	}
	into.Contacts.Emails = dedupeFold(append(into.Contacts.Emails, from.Contacts.Emails...))
	into.Contacts.Phones = dedupeFold(append(into.Contacts.Phones, from.Contacts.Phones...))
	into.Contacts.Names = mergeNames(into.Contacts.Names, from.Contacts.Names)
	if len(from.Attributes) > 0 {
		if into.Attributes == nil {
			into.Attributes = make(map[string]AttributeValue, len(from.Attributes))
		}
		for k, v := range from.Attributes {
			if cur, ok := into.Attributes[k]; !ok || v.Confidence > cur.Confidence {
				into.Attributes[k] = v
			}
		}
	}
	return into
}

func mergeVenues(into, from []VenueEntry) []VenueEntry {
	seen := make(map[string]bool, len(into))
	for _, v := range into {
		seen[venueKey(v)] = true
	}
	for _, v := range from {
		if !seen[venueKey(v)] {
			seen[venueKey(v)] = true
			into = append(into, v)
		}
	}
	return into
}

func venueKey(v VenueEntry) string {
	return normalizeSpace(v.Name) + "|" + normalizeSpace(v.Address)
}

func mergeNames(into, from []ContactName) []ContactName {
	seen := make(map[string]bool, len(into))
	for _, n := range into {
		seen[n.Name] = true
	}
	for _, n := range from {
		if !seen[n.Name] {
			seen[n.Name] = true
			into = append(into, n)
		}
	}
	return into
}
