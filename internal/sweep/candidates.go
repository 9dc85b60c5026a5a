package sweep

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/refhq/sourcescout/internal/extract"
	"github.com/refhq/sourcescout/internal/scout"
)

// Confidence assigned per candidate shape. DOM-structured finds rank above
// loose text matches.
const (
	confidenceFees     = 0.80
	confidenceVenue    = 0.90
	confidenceAddress  = 0.70
	confidenceDates    = 0.85
	confidenceEmail    = 0.90
	confidencePhone    = 0.75
	confidenceContact  = 0.70
	confidenceDirector = 0.80
)

// buildCandidates converts an extraction into staged candidates for the
// fields the target is still missing. Attribute finds are always staged; the
// canonical record keeps them in a side map rather than a column.
func buildCandidates(
	target scout.Tournament,
	ext extract.Extraction,
	sourceURL, runID string,
	ids scout.IDGenerator,
	now time.Time,
) ([]scout.Candidate, error) {
	missing := map[string]bool{}
	for _, f := range target.MissingFields() {
		missing[f] = true
	}

	var out []scout.Candidate
	add := func(c scout.Candidate) error {
		id, err := ids.NewID()
		if err != nil {
			return fmt.Errorf("candidate id: %w", err)
		}
		c.ID = id
		c.TargetID = target.ID
		c.SourceURL = sourceURL
		c.RunID = runID
		c.CreatedAt = now
		out = append(out, c)
		return nil
	}

	if missing["entry_fee"] && len(ext.Fees) > 0 {
		if err := add(scout.Candidate{
			Kind:       scout.KindAttribute,
			FieldKey:   "entry_fee",
			Value:      extract.JoinFees(ext.Fees),
			Confidence: confidenceFees,
		}); err != nil {
			return nil, err
		}
	}

	if missing["venue"] || missing["address"] {
		for _, v := range ext.Venues {
			if err := add(scout.Candidate{
				Kind:       scout.KindVenue,
				FieldKey:   "venue",
				Value:      v.Name,
				VenueName:  v.Name,
				Address:    v.Address,
				Confidence: confidenceVenue,
			}); err != nil {
				return nil, err
			}
		}
		if len(ext.Venues) == 0 && missing["address"] && ext.Address != "" {
			if err := add(scout.Candidate{
				Kind:       scout.KindAttribute,
				FieldKey:   "address",
				Value:      ext.Address,
				Confidence: confidenceAddress,
			}); err != nil {
				return nil, err
			}
		}
	}

	if (missing["start_date"] || missing["end_date"]) && ext.Dates != nil {
		if err := add(scout.Candidate{
			Kind:       scout.KindDateRange,
			FieldKey:   "date_range",
			Value:      ext.Dates.Start + ".." + ext.Dates.End,
			StartDate:  ext.Dates.Start,
			EndDate:    ext.Dates.End,
			Confidence: confidenceDates,
		}); err != nil {
			return nil, err
		}
	}

	if missing["email"] {
		for _, email := range ext.Contacts.Emails {
			if err := add(scout.Candidate{
				Kind:       scout.KindContact,
				FieldKey:   "email",
				Value:      email,
				Email:      email,
				Confidence: confidenceEmail,
			}); err != nil {
				return nil, err
			}
		}
	}
	if missing["phone"] {
		for _, phone := range ext.Contacts.Phones {
			if err := add(scout.Candidate{
				Kind:       scout.KindContact,
				FieldKey:   "phone",
				Value:      phone,
				Phone:      phone,
				Confidence: confidencePhone,
			}); err != nil {
				return nil, err
			}
		}
	}
	if missing["director"] {
		for _, name := range ext.Contacts.Names {
			fieldKey := "contact"
			confidence := confidenceContact
			if strings.EqualFold(name.Role, "director") {
				fieldKey = "director"
				confidence = confidenceDirector
			}
			if err := add(scout.Candidate{
				Kind:        scout.KindContact,
				FieldKey:    fieldKey,
				Value:       name.Name,
				ContactName: name.Name,
				Confidence:  confidence,
			}); err != nil {
				return nil, err
			}
		}
	}

	attrKeys := make([]string, 0, len(ext.Attributes))
	for key := range ext.Attributes {
		attrKeys = append(attrKeys, key)
	}
	sort.Strings(attrKeys)
	for _, key := range attrKeys {
		attr := ext.Attributes[key]
		if err := add(scout.Candidate{
			Kind:       scout.KindAttribute,
			FieldKey:   attr.Key,
			Value:      attr.Value,
			Confidence: attr.Confidence,
		}); err != nil {
			return nil, err
		}
	}

	return out, nil
}
