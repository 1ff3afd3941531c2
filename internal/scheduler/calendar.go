package scheduler

import (
	"fmt"
	"strings"
	"time"

	// Embedded zone database so the institution zone resolves on hosts without zoneinfo.
	_ "time/tzdata"
)

// DefaultTimezone is the institution's local zone used to interpret wall-clock input.
const DefaultTimezone = "Africa/Addis_Ababa"

// FutureGrace is how far in the past a start instant may be before it is rejected.
const FutureGrace = time.Minute

const (
	dateLayout        = "2006-01-02"
	clockLayout       = "15:04"
	clockSecondLayout = "15:04:05"
)

// FieldError reports invalid caller input for a single named field.
type FieldError struct {
	Field   string
	Message string
}

func (e *FieldError) Error() string {
	if e == nil {
		return ""
	}
	return e.Field + ": " + e.Message
}

func fieldError(field, format string, args ...any) *FieldError {
	return &FieldError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// Calendar interprets local wall-clock input in a fixed timezone.
type Calendar struct {
	location *time.Location
	now      func() time.Time
}

// NewCalendar returns a calendar bound to loc. A nil loc falls back to UTC and a
// nil now falls back to time.Now.
func NewCalendar(loc *time.Location, now func() time.Time) Calendar {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return Calendar{location: loc, now: now}
}

// LoadCalendar resolves an IANA zone name and returns a calendar bound to it.
func LoadCalendar(name string, now func() time.Time) (Calendar, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		name = DefaultTimezone
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return Calendar{}, fmt.Errorf("load timezone %q: %w", name, err)
	}
	return NewCalendar(loc, now), nil
}

// Location returns the zone the calendar interprets wall-clock values in.
func (c Calendar) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}

// Now returns the current instant according to the calendar's clock.
func (c Calendar) Now() time.Time {
	if c.now == nil {
		return time.Now()
	}
	return c.now()
}

// ParseLocalStart composes a YYYY-MM-DD date and an HH:mm clock value in the
// calendar's zone and returns the absolute instant.
func (c Calendar) ParseLocalStart(date, clock string) (time.Time, error) {
	date = strings.TrimSpace(date)
	clock = strings.TrimSpace(clock)
	if date == "" {
		return time.Time{}, fieldError("date", "date is required")
	}
	if clock == "" {
		return time.Time{}, fieldError("startTime", "start time is required")
	}

	day, err := time.ParseInLocation(dateLayout, date, c.Location())
	if err != nil {
		return time.Time{}, fieldError("date", "date must be a valid YYYY-MM-DD calendar date")
	}

	layout := clockLayout
	if strings.Count(clock, ":") == 2 {
		layout = clockSecondLayout
	}
	tod, err := time.Parse(layout, clock)
	if err != nil {
		return time.Time{}, fieldError("startTime", "start time must be a valid HH:mm time")
	}

	return time.Date(day.Year(), day.Month(), day.Day(), tod.Hour(), tod.Minute(), tod.Second(), 0, c.Location()), nil
}

// EnsureFuture rejects zero instants and instants more than FutureGrace in the past.
func (c Calendar) EnsureFuture(t time.Time) error {
	if t.IsZero() {
		return fieldError("startTime", "start time is invalid")
	}
	if t.Before(c.Now().Add(-FutureGrace)) {
		return fieldError("startTime", "start time must be in the future")
	}
	return nil
}

// LocalDateTime re-expresses an instant as date and clock strings in the calendar's zone.
func (c Calendar) LocalDateTime(t time.Time) (string, string) {
	local := t.In(c.Location())
	return local.Format(dateLayout), local.Format(clockLayout)
}

// DayRange returns the half-open absolute range covering the local calendar day.
func (c Calendar) DayRange(date string) (time.Time, time.Time, error) {
	day, err := time.ParseInLocation(dateLayout, strings.TrimSpace(date), c.Location())
	if err != nil {
		return time.Time{}, time.Time{}, fieldError("date", "date must be a valid YYYY-MM-DD calendar date")
	}
	return day, day.AddDate(0, 0, 1), nil
}

// FormatInstant renders t as a round-trippable UTC timestamp.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseInstant parses a timestamp previously produced by FormatInstant or any RFC 3339 value.
func ParseInstant(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts.UTC(), nil
	}
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}
