package event

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultWindowMonths is the number of months covered by the rolling window:
// the current month plus the next two.
const DefaultWindowMonths = 3

// MonthKey identifies a calendar month. Its canonical string form is
// "January_2025": English month name, underscore, four-digit year.
type MonthKey struct {
	Year  int
	Month time.Month
}

// KeyFor returns the MonthKey containing t.
func KeyFor(t time.Time) MonthKey {
	return MonthKey{Year: t.Year(), Month: t.Month()}
}

// ParseMonthKey parses "January_2025" (month name matched case-insensitively).
func ParseMonthKey(s string) (MonthKey, error) {
	parts := strings.SplitN(s, "_", 2)
	if len(parts) != 2 {
		return MonthKey{}, fmt.Errorf("invalid month key %q", s)
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 1 {
		return MonthKey{}, fmt.Errorf("invalid year in month key %q", s)
	}
	for m := time.January; m <= time.December; m++ {
		if strings.EqualFold(m.String(), parts[0]) {
			return MonthKey{Year: year, Month: m}, nil
		}
	}
	return MonthKey{}, fmt.Errorf("invalid month name in month key %q", s)
}

// String returns the canonical "January_2025" form.
func (k MonthKey) String() string {
	return k.Month.String() + "_" + strconv.Itoa(k.Year)
}

// Display returns the human form, e.g. "January 2025".
func (k MonthKey) Display() string {
	return k.Month.String() + " " + strconv.Itoa(k.Year)
}

// Before reports whether k is strictly earlier than other.
func (k MonthKey) Before(other MonthKey) bool {
	if k.Year != other.Year {
		return k.Year < other.Year
	}
	return k.Month < other.Month
}

// Matches reports whether an event dated t belongs in this month bucket.
// Events are matched by month name, case-insensitively: extracted dates often
// carry an assumed year, so the year is deliberately not compared.
func (k MonthKey) Matches(t time.Time) bool {
	return strings.EqualFold(t.Month().String(), k.Month.String())
}

// In reports whether k is one of the given months.
func (k MonthKey) In(months []MonthKey) bool {
	for _, m := range months {
		if k == m {
			return true
		}
	}
	return false
}

// Window returns the rolling window of n months starting at the month
// containing now, in chronological order. n defaults to DefaultWindowMonths
// when zero or negative.
func Window(now time.Time, n int) []MonthKey {
	if n <= 0 {
		n = DefaultWindowMonths
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	keys := make([]MonthKey, 0, n)
	for i := 0; i < n; i++ {
		keys = append(keys, KeyFor(first.AddDate(0, i, 0)))
	}
	return keys
}
