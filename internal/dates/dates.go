// Package dates resolves relative date tokens used in plan filters.
//
// Resolution is a pure function of the token and a reference "now", so the
// same token resolves identically on repeated calls with the same instant.
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Keyword tokens.
const (
	Now       = "now"
	Today     = "today"
	ThisWeek  = "this_week"
	ThisMonth = "this_month"
	ThisYear  = "this_year"
)

var (
	agoRegex = regexp.MustCompile(`^(\d+)_(day|days|month|months|year|years)_ago$`)

	// Columns named like these hold dates or timestamps.
	temporalFieldRegex = regexp.MustCompile(`(^|_)(at|date|time|timestamp)$`)
)

// IsTemporalField reports whether a column name follows the date/timestamp
// naming convention (created_at, visit_date, start_time, date, ...).
func IsTemporalField(field string) bool {
	return temporalFieldRegex.MatchString(field)
}

// IsRelative reports whether token is a relative date token.
func IsRelative(token string) bool {
	_, ok := Resolve(token, time.Time{})
	return ok
}

// Resolve turns a relative date token into an absolute instant computed from
// now. ok is false for strings that are not relative tokens; those are
// assumed to already be absolute and should be passed through unchanged.
//
// Calendar anchors (today, this_week, this_month, this_year) resolve to
// midnight in now's location. Weeks start on Monday. "{N}_{unit}_ago"
// subtracts N calendar units and keeps now's time of day.
func Resolve(token string, now time.Time) (time.Time, bool) {
	normalized := strings.ToLower(strings.TrimSpace(token))

	switch normalized {
	case Now:
		return now, true
	case Today:
		return startOfDay(now), true
	case ThisWeek:
		offset := (int(now.Weekday()) + 6) % 7 // days since Monday
		return startOfDay(now).AddDate(0, 0, -offset), true
	case ThisMonth:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), true
	case ThisYear:
		return time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, now.Location()), true
	}

	m := agoRegex.FindStringSubmatch(normalized)
	if m == nil {
		return time.Time{}, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false
	}
	switch strings.TrimSuffix(m[2], "s") {
	case "day":
		return now.AddDate(0, 0, -n), true
	case "month":
		return now.AddDate(0, -n, 0), true
	case "year":
		return now.AddDate(-n, 0, 0), true
	}
	return time.Time{}, false
}

// ResolveString resolves token and formats the result for the backing store.
// Non-relative strings are returned unchanged.
func ResolveString(token string, now time.Time) (string, bool) {
	t, ok := Resolve(token, now)
	if !ok {
		return token, false
	}
	return Format(t), true
}

// Format renders an instant as RFC 3339 in UTC, the form timestamps are
// stored in.
func Format(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
