package service

import (
	"context"
	"fmt"
	scheduleerrors "recolha/internal/schedules/errors"
	"recolha/internal/schedules/repository"
	"recolha/internal/schedules/rules"
	"recolha/pkg/clock"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MonthlyKey identifies the single live booking an address may hold for a
// category within one civil month.
func MonthlyKey(addressID primitive.ObjectID, category, month string) string {
	return addressID.Hex() + "|" + category + "|" + month
}

// CapacityLedger answers the per-day and per-month questions the engine asks
// before booking, and owns the atomic day buckets.
type CapacityLedger struct {
	schedules repository.ScheduleRepository
	capacity  repository.CapacityRepository
	rules     *rules.Rules
	clock     *clock.Clock
}

func NewCapacityLedger(
	schedules repository.ScheduleRepository,
	capacity repository.CapacityRepository,
	r *rules.Rules,
	clk *clock.Clock,
) *CapacityLedger {
	return &CapacityLedger{
		schedules: schedules,
		capacity:  capacity,
		rules:     r,
		clock:     clk,
	}
}

// CountForCategoryOnDate counts live records of category on the civil day of date.
func (l *CapacityLedger) CountForCategoryOnDate(ctx context.Context, category string, date time.Time) (int64, error) {
	day := l.clock.StartOfDay(date)
	return l.schedules.CountLive(ctx, category, day, l.clock.AddDays(day, 1))
}

// HasConflictForAddressInMonth reports whether the address already holds a live
// booking of category in the civil month of date.
func (l *CapacityLedger) HasConflictForAddressInMonth(ctx context.Context, addressID primitive.ObjectID, category string, date time.Time) (bool, error) {
	from, to := l.clock.MonthRange(date)
	return l.schedules.ExistsLiveForAddress(ctx, addressID, category, from, to)
}

// Reserve takes one unit of the day's capacity. seed is the live count used
// when the day's bucket does not exist yet.
func (l *CapacityLedger) Reserve(ctx context.Context, category string, date time.Time, seed int64) (bool, error) {
	rule, ok := l.rules.Get(category)
	if !ok {
		return false, fmt.Errorf("%w: %q", scheduleerrors.ErrInvalidCategory, category)
	}
	return l.capacity.Reserve(ctx, category, l.clock.FormatDate(date), rule.DailyLimit, seed)
}

func (l *CapacityLedger) Release(ctx context.Context, category string, date time.Time) error {
	return l.capacity.Release(ctx, category, l.clock.FormatDate(date))
}

func (l *CapacityLedger) MonthlyKeyFor(addressID primitive.ObjectID, category string, date time.Time) string {
	return MonthlyKey(addressID, category, l.clock.FormatMonth(date))
}
