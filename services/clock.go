package services

import (
	"time"
)

// DayLayout is the canonical calendar-day format stored in the ledgers.
const DayLayout = "2006-01-02"

// Clock defines "today" for every daily-uniqueness check. Completions and
// payout requests must both go through the same Clock.
type Clock struct {
	loc *time.Location
	now func() time.Time
}

func NewClock(loc *time.Location) *Clock {
	if loc == nil {
		loc = time.UTC
	}
	return &Clock{loc: loc, now: time.Now}
}

func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns the current calendar day in the clock's location.
func (c *Clock) Today() string {
	return c.Now().Format(DayLayout)
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// ParseDay validates a YYYY-MM-DD day string.
func ParseDay(day string) (time.Time, error) {
	t, err := time.Parse(DayLayout, day)
	if err != nil {
		return time.Time{}, invalidInput("invalid day %q, want YYYY-MM-DD", day)
	}
	return t, nil
}

// DayOf formats t as a ledger day in loc.
func DayOf(t time.Time, loc *time.Location) string {
	return t.In(loc).Format(DayLayout)
}
