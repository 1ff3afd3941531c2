package testfixtures

import (
	"sync/atomic"
	"time"

	"github.com/example/defense-scheduler/internal/scheduler"
)

// Clock is a manually driven time source. Readings are UTC instants; the
// institution zone is applied by the calendars built from it.
type Clock struct {
	nanos atomic.Int64
}

// NewClock starts a clock at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	c := &Clock{}
	c.nanos.Store(start.UnixNano())
	return c
}

func (c *Clock) Now() time.Time {
	return time.Unix(0, c.nanos.Load()).UTC()
}

// NowFunc returns Now, or time.Now for a nil clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.nanos.Store(t.UnixNano())
}

// SetLocal moves the clock to a wall time in the institution zone.
func (c *Clock) SetLocal(year int, month time.Month, day, hour, minute int) time.Time {
	t := time.Date(year, month, day, hour, minute, 0, 0, Location())
	c.Set(t)
	return t.UTC()
}

// Advance adds d and returns the new reading.
func (c *Clock) Advance(d time.Duration) time.Time {
	return time.Unix(0, c.nanos.Add(int64(d))).UTC()
}

// Calendar binds the clock to loc, defaulting to the institution zone.
func (c *Clock) Calendar(loc *time.Location) scheduler.Calendar {
	if loc == nil {
		loc = Location()
	}
	return scheduler.NewCalendar(loc, c.NowFunc())
}
