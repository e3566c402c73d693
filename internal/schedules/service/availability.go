package service

import (
	"context"
	"fmt"
	scheduleerrors "recolha/internal/schedules/errors"
	"recolha/internal/schedules/repository"
	"recolha/internal/schedules/rules"
	"recolha/internal/schedules/validator"
	"recolha/pkg/clock"
	"time"
)

// AvailabilityProjector lists the collection days of a category that cannot be
// booked within the horizon. Results are computed on every call.
type AvailabilityProjector struct {
	repo      repository.ScheduleRepository
	rules     *rules.Rules
	clock     *clock.Clock
	validator *validator.ScheduleValidator
	horizon   int
}

func NewAvailabilityProjector(
	repo repository.ScheduleRepository,
	r *rules.Rules,
	clk *clock.Clock,
	v *validator.ScheduleValidator,
	horizonDays int,
) *AvailabilityProjector {
	return &AvailabilityProjector{
		repo:      repo,
		rules:     r,
		clock:     clk,
		validator: v,
		horizon:   horizonDays,
	}
}

// UnavailableDates returns, in ascending order, the weekday-matching civil
// dates in [day 0, day horizon-1] counted from asOf that are either full or
// past their cutoff. Dates on other weekdays are never listed.
func (p *AvailabilityProjector) UnavailableDates(ctx context.Context, category string, asOf time.Time) ([]string, error) {
	rule, ok := p.rules.Get(category)
	if !ok {
		return nil, fmt.Errorf("%w: %q", scheduleerrors.ErrInvalidCategory, category)
	}

	start := p.clock.StartOfDay(asOf)
	end := p.clock.AddDays(start, p.horizon)

	counts, err := p.repo.CountByCivilDate(ctx, category, start, end, p.clock.Location().String())
	if err != nil {
		return nil, err
	}
	byDate := make(map[string]int64, len(counts))
	for _, c := range counts {
		byDate[c.Date] = c.Count
	}

	unavailable := []string{}
	for i := 0; i < p.horizon; i++ {
		day := p.clock.AddDays(start, i)
		if day.Weekday() != rule.Weekday {
			continue
		}
		date := p.clock.FormatDate(day)
		full := byDate[date] >= int64(rule.DailyLimit)
		closed := !asOf.Before(p.validator.CutoffFor(day))
		if full || closed {
			unavailable = append(unavailable, date)
		}
	}
	return unavailable, nil
}
