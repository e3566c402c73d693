package service

import (
	"context"
	"recolha/internal/schedules/repository"
	"recolha/internal/schedules/rules"
	"recolha/pkg/clock"
	"recolha/pkg/model"
)

type StatsAggregator struct {
	repo  repository.ScheduleRepository
	rules *rules.Rules
	clock *clock.Clock
}

func NewStatsAggregator(repo repository.ScheduleRepository, r *rules.Rules, clk *clock.Clock) *StatsAggregator {
	return &StatsAggregator{repo: repo, rules: r, clock: clk}
}

// TodaySnapshot summarises today's live records. Remaining capacity only
// subtracts records still Scheduled: completing a collection frees its slot in
// this view while it keeps counting in the totals.
func (a *StatsAggregator) TodaySnapshot(ctx context.Context) (*model.TodayStats, error) {
	from := a.clock.Today()
	to := a.clock.AddDays(from, 1)

	rows, err := a.repo.CountByCategoryAndStatus(ctx, from, to)
	if err != nil {
		return nil, err
	}

	stats := &model.TodayStats{
		RemainingByCategory: make(map[string]int64),
		CountByCategory:     make(map[string]int64),
	}
	scheduled := make(map[string]int64)
	for _, row := range rows {
		stats.TotalToday += row.Count
		stats.CountByCategory[row.Category] += row.Count
		if row.Status == model.StatusScheduled {
			scheduled[row.Category] += row.Count
		}
	}

	for _, category := range a.rules.Categories() {
		rule, _ := a.rules.Get(category)
		if _, ok := stats.CountByCategory[category]; !ok {
			stats.CountByCategory[category] = 0
		}
		stats.RemainingByCategory[category] = max(0, int64(rule.DailyLimit)-scheduled[category])
	}
	return stats, nil
}

func (a *StatsAggregator) LifetimeTotals(ctx context.Context) (*model.LifetimeTotals, error) {
	total, completed, err := a.repo.CountTotals(ctx)
	if err != nil {
		return nil, err
	}
	return &model.LifetimeTotals{TotalAll: total, CompletedAll: completed}, nil
}
