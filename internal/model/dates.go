package model

import (
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// DayLayout is the calendar-day key format. It sorts lexicographically in
// chronological order.
const DayLayout = "2006-01-02"

// UnknownDay is the bucket key for records without a usable date.
const UnknownDay = "Unknown"

// isoLayouts are tried in order before falling back to free-form parsing.
// Layouts without a zone are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	DayLayout,
}

// ParseTimestamp parses an ISO-8601 instant or, failing that, a free-form
// date such as "May 8, 2009 5:57:51 PM" or "Mon, 14 Jul 2025 09:00:00 GMT".
// The second return value is false when the text is empty, unparseable, or
// carries no year ("Jul 11", "07/11").
func ParseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, true
		}
	}
	t, err := dateparse.ParseIn(s, time.UTC)
	if err != nil || t.Year() < 1 {
		return time.Time{}, false
	}
	return t, true
}

// DayKey returns the calendar-day bucket for t in its own location, or
// UnknownDay for the zero time.
func DayKey(t time.Time) string {
	if t.IsZero() {
		return UnknownDay
	}
	return t.Format(DayLayout)
}

// FormatTimestamp renders t as RFC 3339, or "" for the zero time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339Nano)
}

// ParseOptional is ParseTimestamp with the zero time for absent or
// unparseable input.
func ParseOptional(s string) time.Time {
	t, _ := ParseTimestamp(s)
	return t
}
