// Package clock provides the injected time source used by every scheduling
// and endpointing decision in reflectcall (spec §4.1: "All scheduling and
// endpointing logic uses the injected clock").
package clock

import (
	"sync"
	"time"
)

// Clock is the capability interface for time. Production code takes a
// Clock instead of calling time.Now()/time.Since() directly so tests can
// drive pauses, windows, and retry backoff deterministically.
type Clock interface {
	Now() time.Time
	// LocalDate returns the YYYY-MM-DD calendar date of instant t in the
	// IANA time zone named tz. An invalid tz falls back to UTC.
	LocalDate(tz string, t time.Time) string
	// LocalDayOfWeek returns the day of week (time.Weekday) of instant t in
	// the IANA time zone named tz.
	LocalDayOfWeek(tz string, t time.Time) time.Weekday
	// LocalClockOfDay returns hours*60+minutes since local midnight for t in tz.
	LocalClockOfDay(tz string, t time.Time) int
}

// System is the real, monotonic wall-clock implementation.
type System struct{}

// NewSystem returns the production Clock.
func NewSystem() *System { return &System{} }

func (System) Now() time.Time { return time.Now() }

func (System) LocalDate(tz string, t time.Time) string {
	return inLocation(tz, t).Format("2006-01-02")
}

func (System) LocalDayOfWeek(tz string, t time.Time) time.Weekday {
	return inLocation(tz, t).Weekday()
}

func (System) LocalClockOfDay(tz string, t time.Time) int {
	lt := inLocation(tz, t)
	return lt.Hour()*60 + lt.Minute()
}

func inLocation(tz string, t time.Time) time.Time {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc)
}

// Fake is a settable clock for tests; it never reads the system clock.
type Fake struct {
	mu  sync.Mutex
	now time.Time
}

// NewFake returns a Fake clock pinned at t.
func NewFake(t time.Time) *Fake {
	return &Fake{now: t}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set pins the fake clock to t.
func (f *Fake) Set(t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = t
}

// Advance moves the fake clock forward by d and returns the new time.
func (f *Fake) Advance(d time.Duration) time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = f.now.Add(d)
	return f.now
}

func (f *Fake) LocalDate(tz string, t time.Time) string {
	return inLocation(tz, t).Format("2006-01-02")
}

func (f *Fake) LocalDayOfWeek(tz string, t time.Time) time.Weekday {
	return inLocation(tz, t).Weekday()
}

func (f *Fake) LocalClockOfDay(tz string, t time.Time) int {
	lt := inLocation(tz, t)
	return lt.Hour()*60 + lt.Minute()
}
