// Package timeparse turns free-form unlock time expressions into Unix timestamps.
//
// Parse never reads the wall clock. Callers pass the reference instant explicitly,
// so "3 days from now" resolves the same way every time for the same input.
package timeparse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// SourceForm identifies which grammar matched an expression.
type SourceForm string

const (
	SourceRelative         SourceForm = "relative"
	SourceAbsoluteDate     SourceForm = "absolute_date"
	SourceAbsoluteDateTime SourceForm = "absolute_datetime"
	SourceUnix             SourceForm = "unix"
	SourceNow              SourceForm = "now"
)

// Fixed-length units. Month and year do not follow the calendar: a month is
// always 30 days and a year 365 days, so "12 months from now" lands 5 days
// short of "1 year from now" and neither tracks leap years.
const (
	Minute = 60
	Hour   = 60 * Minute
	Day    = 24 * Hour
	Week   = 7 * Day
	Month  = 30 * Day
	Year   = 365 * Day
)

// HumanLayout is the layout used for ResolvedTime.HumanReadable.
const HumanLayout = "2006-01-02 15:04:05 UTC"

const (
	// minUnixTimestamp is 2024-01-01T00:00:00Z. Smaller numbers are almost
	// always stale or mistyped timestamps.
	minUnixTimestamp int64 = 1704067200

	// maxUnixTimestamp is 9999-12-31T23:59:59Z. Larger numbers are usually
	// milliseconds passed where seconds were expected.
	maxUnixTimestamp int64 = 253402300799
)

// Suggestion lists the accepted expression forms.
const Suggestion = "use 'now', a relative time like '3 months from now' or '2 hours from now', " +
	"a date like '2025-12-25' or 'January 15, 2025', a datetime like '2025-12-25 18:30:00', " +
	"or a Unix timestamp in seconds like '1782360000'"

var unitSeconds = map[string]int64{
	"minute": Minute,
	"hour":   Hour,
	"day":    Day,
	"week":   Week,
	"month":  Month,
	"year":   Year,
}

var (
	relativePattern = regexp.MustCompile(`^(?:in\s+)?(\d+)\s+(minute|hour|day|week|month|year)s?(?:\s+from\s+now)?$`)
	digitsPattern   = regexp.MustCompile(`^\d+$`)
	spacePattern    = regexp.MustCompile(`\s+`)
)

type absoluteLayout struct {
	layout string
	form   SourceForm
}

var absoluteLayouts = []absoluteLayout{
	{"2006-01-02", SourceAbsoluteDate},
	{"2006-01-02 15:04:05", SourceAbsoluteDateTime},
	{"2006-01-02 15:04", SourceAbsoluteDateTime},
	{time.RFC3339, SourceAbsoluteDateTime},
	{"January 2, 2006", SourceAbsoluteDate},
	{"January 2 2006", SourceAbsoluteDate},
	{"Jan 2, 2006", SourceAbsoluteDate},
	{"Jan 2 2006", SourceAbsoluteDate},
}

// ResolvedTime is a parsed time expression.
type ResolvedTime struct {
	Unix          int64      `json:"unix_timestamp"`
	HumanReadable string     `json:"human_readable"`
	Source        SourceForm `json:"source_form"`
}

// Time returns the resolved instant in UTC.
func (r ResolvedTime) Time() time.Time {
	return time.Unix(r.Unix, 0).UTC()
}

// ParseError reports an expression that matched no accepted form.
type ParseError struct {
	Expression string
	Reason     string
	Suggestion string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("could not parse time expression %q: %s", e.Expression, e.Reason)
}

// Parse resolves expr against now.
// Sub-second precision of now is dropped.
func Parse(expr string, now time.Time) (ResolvedTime, error) {
	normalized := spacePattern.ReplaceAllString(strings.TrimSpace(expr), " ")
	lower := strings.ToLower(normalized)
	ref := now.Unix()

	switch {
	case lower == "":
		return ResolvedTime{}, parseError(expr, "expression is empty")

	case lower == "now":
		return resolved(ref, SourceNow), nil

	case digitsPattern.MatchString(lower):
		return parseUnix(expr, lower)
	}

	if m := relativePattern.FindStringSubmatch(lower); m != nil {
		count, err := strconv.ParseInt(m[1], 10, 64)
		if err != nil {
			return ResolvedTime{}, parseError(expr, "count is too large")
		}
		unit := unitSeconds[m[2]]
		if count > (maxUnixTimestamp-ref)/unit {
			return ResolvedTime{}, parseError(expr, "resolves beyond year 9999")
		}
		return resolved(ref+count*unit, SourceRelative), nil
	}

	for _, l := range absoluteLayouts {
		// Month names match case-insensitively in time.Parse.
		t, err := time.ParseInLocation(l.layout, normalized, time.UTC)
		if err != nil {
			continue
		}
		return resolved(t.UTC().Unix(), l.form), nil
	}

	return ResolvedTime{}, parseError(expr, "unrecognized format")
}

func parseUnix(expr, digits string) (ResolvedTime, error) {
	ts, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || ts > maxUnixTimestamp {
		return ResolvedTime{}, parseError(expr, "timestamp is too large, expected seconds not milliseconds")
	}
	if ts < minUnixTimestamp {
		return ResolvedTime{}, parseError(expr, fmt.Sprintf("unix timestamp %d is before 2024 and appears stale or invalid", ts))
	}
	return resolved(ts, SourceUnix), nil
}

func resolved(ts int64, form SourceForm) ResolvedTime {
	return ResolvedTime{
		Unix:          ts,
		HumanReadable: time.Unix(ts, 0).UTC().Format(HumanLayout),
		Source:        form,
	}
}

func parseError(expr, reason string) *ParseError {
	return &ParseError{
		Expression: expr,
		Reason:     reason,
		Suggestion: Suggestion,
	}
}
