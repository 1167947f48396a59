package database

import (
	"fmt"
	"time"
)

// FormatDayDisplay formats a YYYY-MM-DD day key for people ("Feb 06, 2026").
// Anything else is returned unchanged.
func FormatDayDisplay(day string) string {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		return day
	}
	return d.Format("Jan 02, 2006")
}

// FormatDayRange formats the span covered by the archive:
// "Feb 06, 2026" for a single day, "Feb 01 - Feb 06, 2026" for a range.
func FormatDayRange(first, last string) string {
	if first == "" && last == "" {
		return "-"
	}
	if first == last || last == "" {
		return FormatDayDisplay(first)
	}
	if first == "" {
		return FormatDayDisplay(last)
	}
	start, err := time.Parse("2006-01-02", first)
	if err != nil {
		return first + " - " + last
	}
	end, err := time.Parse("2006-01-02", last)
	if err != nil {
		return first + " - " + last
	}
	if start.Year() != end.Year() {
		return fmt.Sprintf("%s - %s", start.Format("Jan 02, 2006"), end.Format("Jan 02, 2006"))
	}
	return fmt.Sprintf("%s - %s", start.Format("Jan 02"), end.Format("Jan 02, 2006"))
}
