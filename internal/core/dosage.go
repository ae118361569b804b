package core

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Upper bounds for the parsed fields. Larger values are clamped and flagged.
const (
	MaxDosageQty       int64 = 100
	MaxFrequencyPerDay int64 = 24
	MaxDurationDays    int64 = 365
)

// DosagePlan is the structured reading of a prescription's free-text fields.
// The Defaulted flags mark fields where nothing recognizable was found and 1 was assumed.
// Capped marks a plan where a field exceeded its bound and was clamped to it.
type DosagePlan struct {
	DosageQty          int64 `json:"dosage_qty"`
	FrequencyPerDay    int64 `json:"frequency_per_day"`
	DurationDays       int64 `json:"duration_days"`
	RequiredQuantity   int64 `json:"required_quantity"`
	DefaultedDosage    bool  `json:"defaulted_dosage,omitempty"`
	DefaultedFrequency bool  `json:"defaulted_frequency,omitempty"`
	DefaultedDuration  bool  `json:"defaulted_duration,omitempty"`
	Capped             bool  `json:"capped,omitempty"`
}

// Certain is true when every field was read from the text within bounds.
func (p DosagePlan) Certain() bool {
	return !p.DefaultedDosage && !p.DefaultedFrequency && !p.DefaultedDuration && !p.Capped
}

// frequencyRule matches a frequency phrase. A rule with a count func reads the
// number captured by the pattern's first group instead of a fixed perDay.
type frequencyRule struct {
	pattern *regexp.Regexp
	perDay  int64
	count   func(n int64) int64
}

// frequencyRules is checked in order; the first match wins:
//  1. fixed intervals (every 6/8/12 hours, q6h, 8 hourly)
//  2. any other "every N hours", read as ceil(24/N)
//  3. "N times" / "Nx", so "3 times daily" is 3 and not the bare "daily" below
//  4. four, three and two times in words or Latin abbreviations
//  5. once / daily
//
// Interval rules come first so "every 8 hours" is not read as 8 doses a day.
var frequencyRules = []frequencyRule{
	{pattern: regexp.MustCompile(`every\s*6\s*(hours?|hrs?|h)\b|\bq6h\b|\b6\s*hourly\b`), perDay: 4},
	{pattern: regexp.MustCompile(`every\s*8\s*(hours?|hrs?|h)\b|\bq8h\b|\b8\s*hourly\b`), perDay: 3},
	{pattern: regexp.MustCompile(`every\s*12\s*(hours?|hrs?|h)\b|\bq12h\b|\b12\s*hourly\b`), perDay: 2},
	{pattern: regexp.MustCompile(`every\s*(\d+)\s*(?:hours?|hrs?|h)\b`), count: func(n int64) int64 { return ceilDiv(24, n) }},
	{pattern: regexp.MustCompile(`\b(\d+)\s*(?:x|times)\b`), count: func(n int64) int64 { return n }},
	{pattern: regexp.MustCompile(`four\s+times|\bqds\b|\bqid\b`), perDay: 4},
	{pattern: regexp.MustCompile(`three\s+times|\bthrice\b|\btds\b|\btid\b`), perDay: 3},
	{pattern: regexp.MustCompile(`\btwice\b|two\s+times|\bbd\b|\bbid\b`), perDay: 2},
	{pattern: regexp.MustCompile(`\bonce\b|\bdaily\b|\bod\b`), perDay: 1},
}

var firstInt = regexp.MustCompile(`\d+`)

// ParseDosage reads dosage, frequency and duration text into a DosagePlan.
// RequiredQuantity = DosageQty * FrequencyPerDay * DurationDays, each field
// clamped to its Max bound first so the product always fits.
func ParseDosage(dosage, frequency, duration string) DosagePlan {
	var plan DosagePlan

	plan.DosageQty, plan.DefaultedDosage = parseLeadingCount(dosage)
	plan.FrequencyPerDay, plan.DefaultedFrequency = parseFrequency(frequency)
	plan.DurationDays, plan.DefaultedDuration = parseDuration(duration)

	var capped [3]bool
	plan.DosageQty, capped[0] = clampCount(plan.DosageQty, MaxDosageQty)
	plan.FrequencyPerDay, capped[1] = clampCount(plan.FrequencyPerDay, MaxFrequencyPerDay)
	plan.DurationDays, capped[2] = clampCount(plan.DurationDays, MaxDurationDays)
	plan.Capped = capped[0] || capped[1] || capped[2]

	plan.RequiredQuantity = plan.DosageQty * plan.FrequencyPerDay * plan.DurationDays
	return plan
}

func clampCount(n, limit int64) (int64, bool) {
	if n > limit {
		return limit, true
	}
	return n, false
}

func parseLeadingCount(s string) (int64, bool) {
	if n, ok := firstInteger(s); ok {
		return n, false
	}
	return 1, true
}

func parseFrequency(s string) (int64, bool) {
	text := strings.ToLower(s)
	for _, rule := range frequencyRules {
		m := rule.pattern.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		if rule.count == nil {
			return rule.perDay, false
		}
		if n, ok := firstInteger(m[1]); ok {
			return rule.count(n), false
		}
	}
	return parseLeadingCount(text)
}

func parseDuration(s string) (int64, bool) {
	n, ok := firstInteger(s)
	if !ok {
		return 1, true
	}
	text := strings.ToLower(s)
	switch {
	case strings.Contains(text, "week"):
		n, _ = mulInt64(n, 7)
	case strings.Contains(text, "month"):
		n, _ = mulInt64(n, 30)
	}
	return n, false
}

// firstInteger returns the first positive integer in s. A number too large for
// an int64 saturates at math.MaxInt64.
func firstInteger(s string) (int64, bool) {
	m := firstInt.FindString(s)
	if m == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(m, 10, 64)
	if errors.Is(err, strconv.ErrRange) {
		return math.MaxInt64, true
	}
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
