package models

import (
	"fmt"
	"regexp"
	"time"
)

// Dates are carried as ISO strings (YYYY-MM-DD, no time-of-day). Statement
// parsers normalize every bank rendering into this form at the boundary so
// hashing and ordering never depend on a locale.

// DateRe matches the date renderings seen on Polish statements:
// 02.01.2024, 02-01-24, 02/01/2024.
var DateRe = regexp.MustCompile(`\d{2}[./-]\d{2}[./-]\d{2,4}`)

var isoDateRe = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// NormalizeDate converts a statement date rendering into ISO form.
// Two-digit years are assumed to be 20xx.
func NormalizeDate(s string) (string, error) {
	if isoDateRe.MatchString(s) {
		return s, nil
	}
	m := regexp.MustCompile(`^(\d{2})[./-](\d{2})[./-](\d{2,4})$`).FindStringSubmatch(s)
	if m == nil {
		return "", fmt.Errorf("unrecognized date %q", s)
	}
	day, month, year := m[1], m[2], m[3]
	if len(year) == 2 {
		year = "20" + year
	}
	iso := year + "-" + month + "-" + day
	if _, err := time.Parse("2006-01-02", iso); err != nil {
		return "", fmt.Errorf("invalid date %q: %v", s, err)
	}
	return iso, nil
}

// ParseISODate parses an ISO date string into a time.Time (UTC midnight).
func ParseISODate(s string) (time.Time, error) {
	return time.Parse("2006-01-02", s)
}

// MonthKey returns the YYYY-MM bucket of an ISO date. Malformed dates bucket
// under "unknown" rather than being dropped.
func MonthKey(isoDate string) string {
	if len(isoDate) >= 7 && isoDateRe.MatchString(isoDate) {
		return isoDate[:7]
	}
	return "unknown"
}
