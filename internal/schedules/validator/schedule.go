package validator

import (
	"fmt"
	schedulesErrors "recolha/internal/schedules/errors"
	"recolha/internal/schedules/rules"
	"recolha/pkg/clock"
	"time"
)

// Cutoff is the civil time of day, on the day before a collection, after which
// the collection can no longer be booked.
type Cutoff struct {
	Hour   int
	Minute int
}

var DefaultCutoff = Cutoff{Hour: 16, Minute: 30}

// ScheduleValidator applies the calendar rules of a booking: known category,
// matching weekday and submission deadline. It performs no I/O.
type ScheduleValidator struct {
	rules  *rules.Rules
	clock  *clock.Clock
	cutoff Cutoff
}

func NewScheduleValidator(r *rules.Rules, clk *clock.Clock, cutoff Cutoff) *ScheduleValidator {
	return &ScheduleValidator{
		rules:  r,
		clock:  clk,
		cutoff: cutoff,
	}
}

// ParseAndValidate parses a YYYY-MM-DD civil date and validates it.
func (v *ScheduleValidator) ParseAndValidate(category, date string) (time.Time, error) {
	day, err := v.clock.ParseDate(date)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not a YYYY-MM-DD date", schedulesErrors.ErrInvalidDate, date)
	}
	return v.Validate(category, day)
}

// Validate returns civil midnight of the collection day when a booking for
// category on date is allowed right now.
func (v *ScheduleValidator) Validate(category string, date time.Time) (time.Time, error) {
	rule, ok := v.rules.Get(category)
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %q", schedulesErrors.ErrInvalidCategory, category)
	}

	day := v.clock.StartOfDay(date)
	if day.Weekday() != rule.Weekday {
		return time.Time{}, fmt.Errorf("%w: %s collections only happen on %s",
			schedulesErrors.ErrWeekdayMismatch, rule.Label, rules.WeekdayName(rule.Weekday))
	}

	if v.DeadlinePassed(day) {
		return time.Time{}, fmt.Errorf("%w: bookings for %s closed at %s",
			schedulesErrors.ErrDeadlinePassed, v.clock.FormatDate(day), v.CutoffFor(day).Format("2006-01-02 15:04"))
	}

	return day, nil
}

// CutoffFor returns the instant after which day can no longer be booked.
func (v *ScheduleValidator) CutoffFor(day time.Time) time.Time {
	return v.clock.At(day, -1, v.cutoff.Hour, v.cutoff.Minute)
}

// DeadlinePassed reports whether now is at or after the cutoff for day.
func (v *ScheduleValidator) DeadlinePassed(day time.Time) bool {
	return !v.clock.Now().Before(v.CutoffFor(day))
}
