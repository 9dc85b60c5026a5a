package extract

import (
	"regexp"
	"strings"
)

// Attribute keys form a closed set; the candidate store enforces it with a
// check constraint, so new keys require a schema change first.
const (
	AttrParkingCost     = "parking_cost"
	AttrRefereeTent     = "referee_tent"
	AttrFoodProvided    = "food_provided"
	AttrLodgingProvided = "lodging_provided"
	AttrMentorsPresent  = "mentors_present"
)

// KnownAttributeKeys is the full closed key set.
var KnownAttributeKeys = []string{
	AttrParkingCost,
	AttrRefereeTent,
	AttrFoodProvided,
	AttrLodgingProvided,
	AttrMentorsPresent,
}

// AttributeValue is one extracted free-form attribute with its confidence.
type AttributeValue struct {
	Key        string  `json:"key"`
	Value      string  `json:"value"`
	Confidence float64 `json:"confidence"`
}

var (
	parkingCostPattern = regexp.MustCompile(`(?i)parking[^.$\n]{0,40}\$\s?(\d{1,3})`)
	freeParkingPattern = regexp.MustCompile(`(?i)free\s+parking|parking\s+is\s+free`)

	attributeKeywords = []struct {
		pattern    *regexp.Regexp
		key        string
		value      string
		confidence float64
	}{
		{regexp.MustCompile(`(?i)referee\s+tent|officials?'?\s+tent`), AttrRefereeTent, "yes", 0.9},
		{regexp.MustCompile(`(?i)(?:meals?|food|lunch)\s+(?:is\s+|are\s+|will\s+be\s+)?provided`), AttrFoodProvided, "yes", 0.85},
		{regexp.MustCompile(`(?i)referee\s+hospitality`), AttrFoodProvided, "yes", 0.6},
		{regexp.MustCompile(`(?i)(?:lodging|housing|hotel)\s+(?:is\s+|will\s+be\s+)?provided`), AttrLodgingProvided, "yes", 0.85},
		{regexp.MustCompile(`(?i)stay[\s-]+(?:to|and)[\s-]+play|hotel\s+block`), AttrLodgingProvided, "partner_hotels", 0.6},
		{regexp.MustCompile(`(?i)mentors?\s+(?:are\s+|will\s+be\s+)?(?:present|available|on[\s-]?site)`), AttrMentorsPresent, "yes", 0.85},
		{regexp.MustCompile(`(?i)new\s+referee\s+mentor`), AttrMentorsPresent, "yes", 0.7},
	}
)

// ExtractAttributes maps confirmed keyword hits to the closed attribute key
// set. When one page yields multiple values for a key, the higher-confidence
// hit wins.
func ExtractAttributes(text string) map[string]AttributeValue {
	found := make(map[string]AttributeValue)

	record := func(av AttributeValue) {
		if cur, ok := found[av.Key]; ok && cur.Confidence >= av.Confidence {
			return
		}
		found[av.Key] = av
	}

	if m := parkingCostPattern.FindStringSubmatch(text); m != nil {
		record(AttributeValue{Key: AttrParkingCost, Value: "$" + m[1], Confidence: 0.85})
	}
	if freeParkingPattern.MatchString(text) {
		record(AttributeValue{Key: AttrParkingCost, Value: "free", Confidence: 0.8})
	}

	for _, kw := range attributeKeywords {
		if kw.pattern.MatchString(text) {
			record(AttributeValue{Key: kw.key, Value: kw.value, Confidence: kw.confidence})
		}
	}

	if len(found) == 0 {
		return nil
	}
	return found
}

// IsKnownAttributeKey reports membership in the closed key set.
func IsKnownAttributeKey(key string) bool {
	for _, k := range KnownAttributeKeys {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}
