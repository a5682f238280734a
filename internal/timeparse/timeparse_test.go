package timeparse

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refNow = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

func TestParse_Relative(t *testing.T) {
	testCases := []struct {
		expr  string
		delta int64
	}{
		{"5 minutes from now", 5 * Minute},
		{"1 minute from now", Minute},
		{"2 hours from now", 2 * Hour},
		{"3 days from now", 3 * Day},
		{"1 week from now", Week},
		{"3 months from now", 3 * Month},
		{"1 year from now", Year},
		{"10 days", 10 * Day},
		{"in 4 hours", 4 * Hour},
		{"  2   Weeks   From   Now ", 2 * Week},
	}

	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Parse(tc.expr, refNow)
			require.NoError(t, err)
			assert.Equal(t, refNow.Unix()+tc.delta, got.Unix)
			assert.Equal(t, SourceRelative, got.Source)
		})
	}
}

func TestParse_ThreeMonthsUsesThirtyDayMonths(t *testing.T) {
	got, err := Parse("3 months from now", refNow)
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC), got.Time())
	assert.Equal(t, "2025-04-01 00:00:00 UTC", got.HumanReadable)
}

func TestParse_IgnoresWallClock(t *testing.T) {
	past := time.Date(2030, 6, 15, 12, 0, 0, 0, time.UTC)

	got, err := Parse("1 hour from now", past)
	require.NoError(t, err)
	assert.Equal(t, past.Unix()+Hour, got.Unix)
}

func TestParse_Now(t *testing.T) {
	got, err := Parse("now", refNow)
	require.NoError(t, err)
	assert.Equal(t, refNow.Unix(), got.Unix)
	assert.Equal(t, SourceNow, got.Source)

	got, err = Parse("NOW", refNow.Add(1500*time.Millisecond))
	require.NoError(t, err)
	assert.Equal(t, refNow.Unix()+1, got.Unix)
}

func TestParse_Unix(t *testing.T) {
	got, err := Parse("1721905313", refNow)
	require.NoError(t, err)
	assert.Equal(t, int64(1721905313), got.Unix)
	assert.Equal(t, SourceUnix, got.Source)

	// Past timestamps after 2024 are accepted; lead time is the engine's concern.
	_, err = Parse("1704067200", refNow)
	assert.NoError(t, err)
}

func TestParse_UnixRejected(t *testing.T) {
	testCases := []struct {
		name string
		expr string
	}{
		{"before 2024", "999999"},
		{"year 2001", "1000000000"},
		{"one second before 2024", "1704067199"},
		{"milliseconds", "1721905313000"},
		{"overflow", "99999999999999999999999"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.expr, refNow)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError, got %v", err)
			assert.Equal(t, tc.expr, perr.Expression)
			assert.NotEmpty(t, perr.Suggestion)
		})
	}
}

func TestParse_Absolute(t *testing.T) {
	testCases := []struct {
		expr string
		want time.Time
		form SourceForm
	}{
		{"2025-12-25", time.Date(2025, 12, 25, 0, 0, 0, 0, time.UTC), SourceAbsoluteDate},
		{"2025-12-25 18:30:00", time.Date(2025, 12, 25, 18, 30, 0, 0, time.UTC), SourceAbsoluteDateTime},
		{"2025-12-25 18:30", time.Date(2025, 12, 25, 18, 30, 0, 0, time.UTC), SourceAbsoluteDateTime},
		{"2025-12-25T18:30:00Z", time.Date(2025, 12, 25, 18, 30, 0, 0, time.UTC), SourceAbsoluteDateTime},
		{"2025-12-25T18:30:00+02:00", time.Date(2025, 12, 25, 16, 30, 0, 0, time.UTC), SourceAbsoluteDateTime},
		{"January 15, 2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), SourceAbsoluteDate},
		{"january 15, 2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), SourceAbsoluteDate},
		{"Jan 15, 2025", time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC), SourceAbsoluteDate},
	}

	for _, tc := range testCases {
		t.Run(tc.expr, func(t *testing.T) {
			got, err := Parse(tc.expr, refNow)
			require.NoError(t, err)
			assert.Equal(t, tc.want.Unix(), got.Unix)
			assert.Equal(t, tc.form, got.Source)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	testCases := []string{
		"",
		"   ",
		"tomorrow",
		"invalid time",
		"three days from now",
		"5 fortnights from now",
		"2025-13-45",
		"-5 days from now",
		"99999999999999999999 days from now",
		"9999999999 years from now",
	}

	for _, expr := range testCases {
		t.Run(expr, func(t *testing.T) {
			_, err := Parse(expr, refNow)
			var perr *ParseError
			require.True(t, errors.As(err, &perr), "expected ParseError for %q, got %v", expr, err)
			assert.Contains(t, perr.Error(), "could not parse time expression")
			assert.Equal(t, Suggestion, perr.Suggestion)
		})
	}
}
