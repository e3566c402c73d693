// Package clock resolves "now" and converts between absolute instants and civil
// dates of the single timezone the scheduling engine works in.
package clock

import (
	"fmt"
	"time"

	// Embedded zone database so containers without tzdata still resolve the zone.
	_ "time/tzdata"
)

const DateLayout = "2006-01-02"

type Clock struct {
	loc *time.Location
	now func() time.Time
}

// New loads the named IANA zone. A nil now defaults to time.Now.
func New(timezone string, now func() time.Time) (*Clock, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone %q: %w", timezone, err)
	}
	return NewInLocation(loc, now), nil
}

func NewInLocation(loc *time.Location, now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{loc: loc, now: now}
}

// Fixed returns a clock frozen at the given instant.
func Fixed(loc *time.Location, at time.Time) *Clock {
	return NewInLocation(loc, func() time.Time { return at })
}

func (c *Clock) Location() *time.Location {
	return c.loc
}

// Now returns the current instant expressed in the civil zone.
func (c *Clock) Now() time.Time {
	return c.now().In(c.loc)
}

// Today returns civil midnight of the current day.
func (c *Clock) Today() time.Time {
	return c.StartOfDay(c.now())
}

// StartOfDay returns civil midnight of the day containing t.
func (c *Clock) StartOfDay(t time.Time) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, c.loc)
}

// EndOfDay returns civil midnight of the following day, the exclusive upper bound.
func (c *Clock) EndOfDay(t time.Time) time.Time {
	return c.AddDays(c.StartOfDay(t), 1)
}

// AddDays moves n calendar days, keeping civil midnight across offset changes.
func (c *Clock) AddDays(t time.Time, n int) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day()+n, 0, 0, 0, 0, c.loc)
}

// MonthRange returns [first day of month, first day of next month) for t.
func (c *Clock) MonthRange(t time.Time) (time.Time, time.Time) {
	t = t.In(c.loc)
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, c.loc)
	return start, time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, c.loc)
}

// ParseDate interprets a YYYY-MM-DD string as civil midnight.
func (c *Clock) ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(DateLayout, s, c.loc)
}

func (c *Clock) FormatDate(t time.Time) string {
	return t.In(c.loc).Format(DateLayout)
}

func (c *Clock) FormatMonth(t time.Time) string {
	return t.In(c.loc).Format("2006-01")
}

// At returns the instant at hour:minute civil time on the day containing t,
// shifted by dayOffset calendar days.
func (c *Clock) At(t time.Time, dayOffset, hour, minute int) time.Time {
	t = t.In(c.loc)
	return time.Date(t.Year(), t.Month(), t.Day()+dayOffset, hour, minute, 0, 0, c.loc)
}
