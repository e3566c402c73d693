package service

import (
	"context"
	"fmt"
	"recolha/internal/schedules/rules"
	apperrors "recolha/pkg/errors"
	"recolha/pkg/model"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func (f *fixture) fill(category string, day time.Time, n int) {
	for i := 0; i < n; i++ {
		f.repo.seed(&model.Schedule{
			Protocol: fmt.Sprintf("%s-%s-%d", category, day.Format("20060102"), i),
			Category: category,
			Date:     day,
			Status:   model.StatusScheduled,
		})
	}
}

func TestAvailability_EmptyStore(t *testing.T) {
	f := newFixture(t)

	a, err := f.svc.Availability(context.Background(), rules.Pruning)
	require.NoError(t, err)
	assert.Equal(t, rules.Pruning, a.Category)
	assert.Empty(t, a.UnavailableDates)
	assert.NotNil(t, a.UnavailableDates)
}

func TestAvailability_FullDays(t *testing.T) {
	f := newFixture(t)
	f.fill(rules.Pruning, at(2026, time.October, 27, 0, 0), 3)
	f.fill(rules.Pruning, at(2026, time.November, 3, 0, 0), 2)

	a, err := f.svc.Availability(context.Background(), rules.Pruning)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-27"}, a.UnavailableDates)
}

func TestAvailability_DeletedRecordsDoNotCount(t *testing.T) {
	f := newFixture(t)
	day := at(2026, time.October, 27, 0, 0)
	f.fill(rules.Pruning, day, 3)

	require.NoError(t, f.svc.SoftDelete(context.Background(), "pruning-20261027-0", model.Actor{Role: model.RoleAdmin}))

	a, err := f.svc.Availability(context.Background(), rules.Pruning)
	require.NoError(t, err)
	assert.Empty(t, a.UnavailableDates)
}

func TestAvailability_PastCutoff(t *testing.T) {
	f := newFixture(t)
	f.now = at(2026, time.October, 19, 17, 0)

	a, err := f.svc.Availability(context.Background(), rules.Pruning)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-20"}, a.UnavailableDates)
}

func TestAvailability_SameDayIsClosed(t *testing.T) {
	f := newFixture(t)
	f.now = at(2026, time.October, 20, 8, 0)

	a, err := f.svc.Availability(context.Background(), rules.Pruning)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-20"}, a.UnavailableDates)
}

func TestAvailability_HorizonBounds(t *testing.T) {
	f := newFixture(t)
	// Day 89 from 2026-10-16 is Wednesday 2027-01-13; day 90 is Thursday 2027-01-14.
	f.fill(rules.Furniture, at(2027, time.January, 13, 0, 0), 8)
	f.fill(rules.GlassElectronics, at(2027, time.January, 14, 0, 0), 8)

	furniture, err := f.svc.Availability(context.Background(), rules.Furniture)
	require.NoError(t, err)
	assert.Equal(t, []string{"2027-01-13"}, furniture.UnavailableDates)

	glass, err := f.svc.Availability(context.Background(), rules.GlassElectronics)
	require.NoError(t, err)
	assert.Empty(t, glass.UnavailableDates)
}

func TestAvailability_SortedAndWeekdayOnly(t *testing.T) {
	f := newFixture(t)
	f.now = at(2026, time.October, 19, 18, 0)
	f.fill(rules.Pruning, at(2026, time.November, 10, 0, 0), 3)
	f.fill(rules.Pruning, at(2026, time.October, 27, 0, 0), 3)
	// Records on a non-collection day never surface.
	f.fill(rules.Pruning, at(2026, time.October, 28, 0, 0), 5)

	a, err := f.svc.Availability(context.Background(), rules.Pruning)
	require.NoError(t, err)
	assert.Equal(t, []string{"2026-10-20", "2026-10-27", "2026-11-10"}, a.UnavailableDates)
}

func TestAvailability_UnknownCategory(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Availability(context.Background(), "batteries")
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
}
