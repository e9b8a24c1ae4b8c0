package streaks

import (
	"fmt"
	"time"
)

// Date is a calendar day in the bot's reference timezone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses a YYYY-MM-DD string as stored by the repositories.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}, nil
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

// AddDays returns d shifted by n calendar days.
func (d Date) AddDays(n int) Date {
	t := time.Date(d.Year, d.Month, d.Day+n, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DaysSince returns the number of calendar days from other to d.
// Computed on UTC midnights so DST transitions never shorten a day.
func (d Date) DaysSince(other Date) int {
	a := time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
	b := time.Date(other.Year, other.Month, other.Day, 0, 0, 0, 0, time.UTC)
	return int(a.Sub(b).Hours() / 24)
}

func (d Date) Before(other Date) bool {
	return d.DaysSince(other) < 0
}

// DayBoundary is the single definition of "today" used by the engine,
// the rollover and the scheduler. A day ends at local midnight in loc.
type DayBoundary struct {
	loc *time.Location
}

func NewDayBoundary(loc *time.Location) DayBoundary {
	if loc == nil {
		loc = time.Local
	}
	return DayBoundary{loc: loc}
}

// Location returns the reference timezone.
func (b DayBoundary) Location() *time.Location {
	if b.loc == nil {
		return time.Local
	}
	return b.loc
}

// DateOf returns the calendar day containing t.
func (b DayBoundary) DateOf(t time.Time) Date {
	local := t.In(b.Location())
	return Date{Year: local.Year(), Month: local.Month(), Day: local.Day()}
}

// StartOfDay returns local midnight at the start of t's day.
func (b DayBoundary) StartOfDay(t time.Time) time.Time {
	local := t.In(b.Location())
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, b.Location())
}

// StartOfNextDay returns the local midnight strictly after now.
func (b DayBoundary) StartOfNextDay(now time.Time) time.Time {
	local := now.In(b.Location())
	return time.Date(local.Year(), local.Month(), local.Day()+1, 0, 0, 0, 0, b.Location())
}

// HoursUntilNextDay returns whole hours left before the cutoff, floored.
func (b DayBoundary) HoursUntilNextDay(now time.Time) int {
	return int(b.StartOfNextDay(now).Sub(now) / time.Hour)
}

// SameDay reports whether a and b fall on the same calendar day.
func (b DayBoundary) SameDay(a, c time.Time) bool {
	return b.DateOf(a) == b.DateOf(c)
}

// DaysBetween returns how many day boundaries separate last from now.
func (b DayBoundary) DaysBetween(last Date, now time.Time) int {
	return b.DateOf(now).DaysSince(last)
}
