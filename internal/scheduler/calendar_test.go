package scheduler

import (
	"errors"
	"testing"
	"time"
)

func addisCalendar(t *testing.T, now time.Time) Calendar {
	t.Helper()
	cal, err := LoadCalendar(DefaultTimezone, func() time.Time { return now })
	if err != nil {
		t.Fatalf("LoadCalendar returned error: %v", err)
	}
	return cal
}

func TestCalendar_ParseLocalStart(t *testing.T) {
	t.Parallel()

	cal := addisCalendar(t, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC))

	got, err := cal.ParseLocalStart("2025-05-01", "10:00")
	if err != nil {
		t.Fatalf("ParseLocalStart returned error: %v", err)
	}
	// Addis Ababa is UTC+3 all year.
	want := time.Date(2025, time.May, 1, 7, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got.UTC())
	}
	if FormatInstant(got) != "2025-05-01T07:00:00Z" {
		t.Fatalf("unexpected canonical format %q", FormatInstant(got))
	}
}

func TestCalendar_ParseLocalStart_SubstitutedZone(t *testing.T) {
	t.Parallel()

	tokyo := time.FixedZone("JST", 9*60*60)
	cal := NewCalendar(tokyo, nil)

	got, err := cal.ParseLocalStart("2025-05-01", "09:30:15")
	if err != nil {
		t.Fatalf("ParseLocalStart returned error: %v", err)
	}
	want := time.Date(2025, time.May, 1, 0, 30, 15, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got.UTC())
	}
}

func TestCalendar_ParseLocalStart_RejectsInvalidInput(t *testing.T) {
	t.Parallel()

	cal := addisCalendar(t, time.Now())

	tests := []struct {
		name  string
		date  string
		clock string
		field string
	}{
		{name: "missing date", date: "", clock: "10:00", field: "date"},
		{name: "missing time", date: "2025-05-01", clock: " ", field: "startTime"},
		{name: "impossible date", date: "2025-02-30", clock: "10:00", field: "date"},
		{name: "wrong date layout", date: "01/05/2025", clock: "10:00", field: "date"},
		{name: "hour out of range", date: "2025-05-01", clock: "25:00", field: "startTime"},
		{name: "garbage time", date: "2025-05-01", clock: "ten", field: "startTime"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, err := cal.ParseLocalStart(tc.date, tc.clock)
			var fErr *FieldError
			if !errors.As(err, &fErr) {
				t.Fatalf("expected FieldError, got %v", err)
			}
			if fErr.Field != tc.field {
				t.Fatalf("expected field %q, got %q", tc.field, fErr.Field)
			}
		})
	}
}

func TestCalendar_EnsureFuture(t *testing.T) {
	t.Parallel()

	now := time.Date(2025, time.May, 1, 7, 0, 0, 0, time.UTC)
	cal := addisCalendar(t, now)

	if err := cal.EnsureFuture(now.Add(time.Hour)); err != nil {
		t.Fatalf("expected future instant to pass, got %v", err)
	}
	if err := cal.EnsureFuture(now.Add(-30 * time.Second)); err != nil {
		t.Fatalf("expected instant within grace to pass, got %v", err)
	}
	if err := cal.EnsureFuture(now.Add(-2 * time.Minute)); err == nil {
		t.Fatalf("expected past instant to fail")
	}
	if err := cal.EnsureFuture(time.Time{}); err == nil {
		t.Fatalf("expected zero instant to fail")
	}
}

func TestCalendar_LocalDateTime(t *testing.T) {
	t.Parallel()

	cal := addisCalendar(t, time.Now())

	date, clock := cal.LocalDateTime(time.Date(2025, time.May, 1, 22, 15, 0, 0, time.UTC))
	if date != "2025-05-02" || clock != "01:15" {
		t.Fatalf("expected 2025-05-02 01:15, got %s %s", date, clock)
	}
}

func TestCalendar_DayRange(t *testing.T) {
	t.Parallel()

	cal := addisCalendar(t, time.Now())

	from, to, err := cal.DayRange("2025-05-01")
	if err != nil {
		t.Fatalf("DayRange returned error: %v", err)
	}
	if !from.Equal(time.Date(2025, time.April, 30, 21, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected range start %s", from.UTC())
	}
	if to.Sub(from) != 24*time.Hour {
		t.Fatalf("expected a 24h range, got %s", to.Sub(from))
	}

	if _, _, err := cal.DayRange("nope"); err == nil {
		t.Fatalf("expected invalid date to fail")
	}
}

func TestLoadCalendar_UnknownZone(t *testing.T) {
	t.Parallel()

	if _, err := LoadCalendar("Mars/Olympus_Mons", nil); err == nil {
		t.Fatalf("expected unknown zone to fail")
	}
}

func TestParseInstant_RoundTrip(t *testing.T) {
	t.Parallel()

	original := time.Date(2025, time.May, 1, 7, 0, 0, 123456789, time.UTC)
	parsed, err := ParseInstant(FormatInstant(original))
	if err != nil {
		t.Fatalf("ParseInstant returned error: %v", err)
	}
	if !parsed.Equal(original) {
		t.Fatalf("expected %s, got %s", original, parsed)
	}
}
