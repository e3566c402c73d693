package validator

import (
	"errors"
	schedulesErrors "recolha/internal/schedules/errors"
	"recolha/internal/schedules/rules"
	"recolha/pkg/clock"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)
	return loc
}

func validatorAt(t *testing.T, now time.Time) *ScheduleValidator {
	t.Helper()
	return NewScheduleValidator(rules.Default(), clock.Fixed(now.Location(), now), DefaultCutoff)
}

func TestScheduleValidator_Accepts(t *testing.T) {
	loc := saoPaulo(t)
	// Friday 2026-10-16 10:00, booking pruning on Tuesday 2026-10-20.
	v := validatorAt(t, time.Date(2026, 10, 16, 10, 0, 0, 0, loc))

	day, err := v.ParseAndValidate(rules.Pruning, "2026-10-20")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 10, 20, 0, 0, 0, 0, loc), day)
}

func TestScheduleValidator_Rejections(t *testing.T) {
	loc := saoPaulo(t)

	tests := []struct {
		name     string
		now      time.Time
		category string
		date     string
		want     error
	}{
		{
			name:     "unknown category",
			now:      time.Date(2026, 10, 16, 10, 0, 0, 0, loc),
			category: "asbestos",
			date:     "2026-10-20",
			want:     schedulesErrors.ErrInvalidCategory,
		},
		{
			name:     "malformed date",
			now:      time.Date(2026, 10, 16, 10, 0, 0, 0, loc),
			category: rules.Pruning,
			date:     "20/10/2026",
			want:     schedulesErrors.ErrInvalidDate,
		},
		{
			name:     "impossible date",
			now:      time.Date(2026, 10, 16, 10, 0, 0, 0, loc),
			category: rules.Pruning,
			date:     "2026-02-30",
			want:     schedulesErrors.ErrInvalidDate,
		},
		{
			name:     "pruning on a Wednesday",
			now:      time.Date(2026, 10, 16, 10, 0, 0, 0, loc),
			category: rules.Pruning,
			date:     "2026-10-21",
			want:     schedulesErrors.ErrWeekdayMismatch,
		},
		{
			name:     "furniture on a Tuesday",
			now:      time.Date(2026, 10, 16, 10, 0, 0, 0, loc),
			category: rules.Furniture,
			date:     "2026-10-20",
			want:     schedulesErrors.ErrWeekdayMismatch,
		},
		{
			name:     "exactly at cutoff",
			now:      time.Date(2026, 10, 19, 16, 30, 0, 0, loc),
			category: rules.Pruning,
			date:     "2026-10-20",
			want:     schedulesErrors.ErrDeadlinePassed,
		},
		{
			name:     "after cutoff",
			now:      time.Date(2026, 10, 19, 18, 0, 0, 0, loc),
			category: rules.Pruning,
			date:     "2026-10-20",
			want:     schedulesErrors.ErrDeadlinePassed,
		},
		{
			name:     "same day",
			now:      time.Date(2026, 10, 20, 7, 0, 0, 0, loc),
			category: rules.Pruning,
			date:     "2026-10-20",
			want:     schedulesErrors.ErrDeadlinePassed,
		},
		{
			name:     "past date",
			now:      time.Date(2026, 10, 28, 7, 0, 0, 0, loc),
			category: rules.Pruning,
			date:     "2026-10-20",
			want:     schedulesErrors.ErrDeadlinePassed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := validatorAt(t, tt.now).ParseAndValidate(tt.category, tt.date)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestScheduleValidator_OneMinuteBeforeCutoff(t *testing.T) {
	loc := saoPaulo(t)
	v := validatorAt(t, time.Date(2026, 10, 19, 16, 29, 0, 0, loc))

	_, err := v.ParseAndValidate(rules.Pruning, "2026-10-20")
	assert.NoError(t, err)
}

func TestScheduleValidator_WeekdayUsesCivilZone(t *testing.T) {
	loc := saoPaulo(t)
	v := validatorAt(t, time.Date(2026, 10, 16, 10, 0, 0, 0, loc))

	// 02:00 UTC on Wednesday is still Tuesday evening in Sao Paulo.
	day, err := v.Validate(rules.Pruning, time.Date(2026, 10, 21, 2, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "2026-10-20", day.Format(clock.DateLayout))
}

func TestScheduleValidator_CutoffFor(t *testing.T) {
	loc := saoPaulo(t)
	v := validatorAt(t, time.Date(2026, 10, 16, 10, 0, 0, 0, loc))

	cutoff := v.CutoffFor(time.Date(2026, 11, 3, 0, 0, 0, 0, loc))
	assert.Equal(t, time.Date(2026, 11, 2, 16, 30, 0, 0, loc), cutoff)
}

func TestScheduleValidator_CustomCutoff(t *testing.T) {
	loc := saoPaulo(t)
	now := time.Date(2026, 10, 19, 17, 0, 0, 0, loc)
	v := NewScheduleValidator(rules.Default(), clock.Fixed(loc, now), Cutoff{Hour: 18, Minute: 0})

	_, err := v.ParseAndValidate(rules.Pruning, "2026-10-20")
	assert.NoError(t, err)
}
