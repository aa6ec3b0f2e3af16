package event

import (
	"testing"
	"time"
)

func TestParseMonthKey(t *testing.T) {
	k, err := ParseMonthKey("January_2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Year != 2025 || k.Month != time.January {
		t.Errorf("expected January 2025, got %v", k)
	}
}

func TestParseMonthKeyCaseInsensitive(t *testing.T) {
	k, err := ParseMonthKey("january_2025")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if k.Month != time.January {
		t.Errorf("expected January, got %v", k.Month)
	}
}

func TestParseMonthKeyInvalid(t *testing.T) {
	for _, s := range []string{"", "January", "January_abc", "Janville_2025", "2025_January"} {
		if _, err := ParseMonthKey(s); err == nil {
			t.Errorf("expected error for %q", s)
		}
	}
}

func TestMonthKeyRoundTrip(t *testing.T) {
	k := MonthKey{Year: 2025, Month: time.February}
	parsed, err := ParseMonthKey(k.String())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if parsed != k {
		t.Errorf("round trip mismatch: %v != %v", parsed, k)
	}
}

func TestMonthKeyOrdering(t *testing.T) {
	jan := MonthKey{Year: 2025, Month: time.January}
	feb := MonthKey{Year: 2025, Month: time.February}
	dec24 := MonthKey{Year: 2024, Month: time.December}

	if !jan.Before(feb) {
		t.Error("expected January 2025 < February 2025")
	}
	if !dec24.Before(jan) {
		t.Error("expected December 2024 < January 2025")
	}
	if feb.Before(jan) {
		t.Error("expected February 2025 not < January 2025")
	}
}

func TestWindow(t *testing.T) {
	now := time.Date(2025, time.January, 15, 12, 0, 0, 0, time.UTC)
	months := Window(now, 3)
	want := []string{"January_2025", "February_2025", "March_2025"}
	if len(months) != len(want) {
		t.Fatalf("expected %d months, got %d", len(want), len(months))
	}
	for i, m := range months {
		if m.String() != want[i] {
			t.Errorf("month %d: expected %s, got %s", i, want[i], m)
		}
	}
}

func TestWindowYearBoundary(t *testing.T) {
	now := time.Date(2024, time.November, 30, 23, 59, 0, 0, time.UTC)
	months := Window(now, 3)
	want := []string{"November_2024", "December_2024", "January_2025"}
	for i, m := range months {
		if m.String() != want[i] {
			t.Errorf("month %d: expected %s, got %s", i, want[i], m)
		}
	}
}

func TestWindowDefaultSize(t *testing.T) {
	if got := len(Window(time.Now(), 0)); got != DefaultWindowMonths {
		t.Errorf("expected %d months, got %d", DefaultWindowMonths, got)
	}
}

func TestWindowEndOfMonth(t *testing.T) {
	// Jan 31 + one month must land in February, not March.
	now := time.Date(2025, time.January, 31, 0, 0, 0, 0, time.UTC)
	months := Window(now, 2)
	if months[1].Month != time.February {
		t.Errorf("expected February, got %v", months[1].Month)
	}
}

func TestMonthKeyIn(t *testing.T) {
	window := Window(time.Date(2025, time.January, 15, 0, 0, 0, 0, time.UTC), 3)
	if !(MonthKey{Year: 2025, Month: time.February}).In(window) {
		t.Error("expected February 2025 in window")
	}
	if (MonthKey{Year: 2020, Month: time.January}).In(window) {
		t.Error("January 2020 must not be in window")
	}
	// Same month name in another year is a different key.
	if (MonthKey{Year: 2024, Month: time.January}).In(window) {
		t.Error("January 2024 must not be in window")
	}
}
