package core

import (
	"math"
	"regexp"
	"strings"
	"time"
)

// The spreadsheet may hand back an accounting month as the literal text it
// was written with, as a full date (auto-formatting), or as a timestamp.
// NormalizeMonth and NormalizeDate make the read path tolerant of all three,
// so the same rules apply no matter what the store did to the value.

var (
	reMonth    = regexp.MustCompile(`^\d{4}-\d{2}$`)
	reDateLike = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
)

// timestampLayouts are the native date/timestamp shapes a tabular backend is
// known to emit. They are tried before the plain-string fallbacks because a
// timestamp's zone must be honored when converting to the reference zone.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// NormalizeMonth reduces an accounting-month value of any supported shape to
// "YYYY-MM" in the given reference zone. Unrecognized values pass through
// trimmed; callers must treat that as a data-quality signal, not a valid
// month. Empty input normalizes to "".
func NormalizeMonth(loc *time.Location, v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	if reMonth.MatchString(s) {
		return s
	}
	if t, ok := parseTimestamp(s); ok {
		return t.In(loc).Format("2006-01")
	}
	if reDateLike.MatchString(s) {
		return s[:7]
	}
	return s
}

// NormalizeDate is the calendar-date counterpart of NormalizeMonth and
// reduces to "YYYY-MM-DD".
func NormalizeDate(loc *time.Location, v string) string {
	s := strings.TrimSpace(v)
	if s == "" {
		return ""
	}
	if t, ok := parseTimestamp(s); ok {
		return t.In(loc).Format("2006-01-02")
	}
	if reDateLike.MatchString(s) {
		return s[:10]
	}
	return s
}

func parseTimestamp(s string) (time.Time, bool) {
	// A bare date is handled by slicing, not parsing; zone conversion on a
	// midnight-less date would shift it.
	if reDateLike.MatchString(s) && len(s) == 10 {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// AccountingMonth derives the budget month for a calendar date: days before
// switchDay stay in the date's own month, days on or after it roll into the
// next month, December rolling into January of the following year.
func AccountingMonth(date time.Time, switchDay int) string {
	y, m, d := date.Date()
	if d >= switchDay {
		m++
		if m > time.December {
			m = time.January
			y++
		}
	}
	return time.Date(y, m, 1, 0, 0, 0, 0, date.Location()).Format("2006-01")
}

// AccountingMonthForDate applies AccountingMonth to a "YYYY-MM-DD" string.
// Returns "" when the date does not parse.
func AccountingMonthForDate(dateStr string, switchDay int) string {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(dateStr))
	if err != nil {
		return ""
	}
	return AccountingMonth(t, switchDay)
}

// Round2 rounds to two decimal places, half away from zero. The epsilon
// nudge counters binary representation error (2.675*100 == 267.49999...),
// keeping repeated aggregations from drifting by a cent.
func Round2(f float64) float64 {
	const eps = 1e-9
	if f < 0 {
		return -math.Round((-f+eps)*100) / 100
	}
	return math.Round((f+eps)*100) / 100
}
