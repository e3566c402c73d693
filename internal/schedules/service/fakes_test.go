package service

import (
	"context"
	"fmt"
	addresserrors "recolha/internal/addresses/errors"
	scheduleerrors "recolha/internal/schedules/errors"
	"recolha/internal/schedules/repository"
	"recolha/pkg/model"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// fakeScheduleRepository keeps records in memory and enforces the same unique
// protocol and unique live monthly key the Mongo indexes do.
type fakeScheduleRepository struct {
	mu      sync.Mutex
	records []*model.Schedule

	createErr error
	countErr  error
	creates   int
}

func newFakeScheduleRepository() *fakeScheduleRepository {
	return &fakeScheduleRepository{}
}

func clone(sc *model.Schedule) *model.Schedule {
	c := *sc
	return &c
}

func (f *fakeScheduleRepository) live() []*model.Schedule {
	var out []*model.Schedule
	for _, sc := range f.records {
		if sc.DeletedAt == nil {
			out = append(out, sc)
		}
	}
	return out
}

func inRange(t, from, to time.Time) bool {
	return !t.Before(from) && t.Before(to)
}

func (f *fakeScheduleRepository) Create(_ context.Context, sc *model.Schedule) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	for _, existing := range f.records {
		if existing.Protocol == sc.Protocol {
			return fmt.Errorf("%w: %s", scheduleerrors.ErrDuplicateProtocol, sc.Protocol)
		}
		if sc.MonthlyKey != "" && existing.MonthlyKey == sc.MonthlyKey {
			return fmt.Errorf("%w: %s", scheduleerrors.ErrMonthlyConflict, sc.MonthlyKey)
		}
	}
	sc.ID = primitive.NewObjectID()
	f.records = append(f.records, clone(sc))
	return nil
}

// seed stores a record as-is, bypassing the uniqueness checks.
func (f *fakeScheduleRepository) seed(sc *model.Schedule) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if sc.ID.IsZero() {
		sc.ID = primitive.NewObjectID()
	}
	f.records = append(f.records, clone(sc))
}

func (f *fakeScheduleRepository) FindByProtocol(_ context.Context, protocol string) (*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sc := range f.live() {
		if sc.Protocol == protocol {
			return clone(sc), nil
		}
	}
	return nil, fmt.Errorf("%w: %s", scheduleerrors.ErrNotFound, protocol)
}

func (f *fakeScheduleRepository) matching(filter model.ScheduleFilter) []*model.Schedule {
	var out []*model.Schedule
	for _, sc := range f.live() {
		if filter.Status != "" && sc.Status != filter.Status {
			continue
		}
		if filter.Category != "" && sc.Category != filter.Category {
			continue
		}
		if !filter.From.IsZero() && !inRange(sc.Date, filter.From, filter.To) {
			continue
		}
		if filter.Query != "" {
			q := strings.ToLower(filter.Query)
			if !strings.Contains(strings.ToLower(sc.AddressText), q) && !strings.Contains(strings.ToLower(sc.RequesterName), q) {
				continue
			}
		}
		out = append(out, sc)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (f *fakeScheduleRepository) FindAll(_ context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	all := f.matching(filter)
	start := min(int(filter.Offset), len(all))
	end := min(start+filter.Limit, len(all))
	out := make([]*model.Schedule, 0, end-start)
	for _, sc := range all[start:end] {
		out = append(out, clone(sc))
	}
	return out, nil
}

func (f *fakeScheduleRepository) Count(_ context.Context, filter model.ScheduleFilter) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	return int64(len(f.matching(filter))), nil
}

func (f *fakeScheduleRepository) FindScheduledInRange(_ context.Context, from, to time.Time) ([]*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Schedule
	for _, sc := range f.live() {
		if sc.Status == model.StatusScheduled && inRange(sc.Date, from, to) {
			out = append(out, clone(sc))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].NeighborhoodName != out[j].NeighborhoodName {
			return out[i].NeighborhoodName < out[j].NeighborhoodName
		}
		return out[i].AddressText < out[j].AddressText
	})
	return out, nil
}

func (f *fakeScheduleRepository) CountLive(_ context.Context, category string, from, to time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.countErr != nil {
		return 0, f.countErr
	}
	var n int64
	for _, sc := range f.live() {
		if sc.Category == category && inRange(sc.Date, from, to) {
			n++
		}
	}
	return n, nil
}

func (f *fakeScheduleRepository) ExistsLiveForAddress(_ context.Context, addressID primitive.ObjectID, category string, from, to time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sc := range f.live() {
		if sc.AddressID == addressID && sc.Category == category && inRange(sc.Date, from, to) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeScheduleRepository) CountByCivilDate(_ context.Context, category string, from, to time.Time, timezone string) ([]repository.DayCount, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	byDate := map[string]int64{}
	for _, sc := range f.live() {
		if sc.Category == category && inRange(sc.Date, from, to) {
			byDate[sc.Date.In(loc).Format("2006-01-02")]++
		}
	}
	var out []repository.DayCount
	for date, n := range byDate {
		out = append(out, repository.DayCount{Date: date, Count: n})
	}
	return out, nil
}

func (f *fakeScheduleRepository) CountByCategoryAndStatus(_ context.Context, from, to time.Time) ([]repository.CategoryStatusCount, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	type key struct{ category, status string }
	counts := map[key]int64{}
	for _, sc := range f.live() {
		if inRange(sc.Date, from, to) {
			counts[key{sc.Category, sc.Status}]++
		}
	}
	var out []repository.CategoryStatusCount
	for k, n := range counts {
		out = append(out, repository.CategoryStatusCount{Category: k.category, Status: k.status, Count: n})
	}
	return out, nil
}

func (f *fakeScheduleRepository) CountTotals(_ context.Context) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var total, completed int64
	for _, sc := range f.live() {
		total++
		if sc.IsCompleted() {
			completed++
		}
	}
	return total, completed, nil
}

func (f *fakeScheduleRepository) MarkCompleted(_ context.Context, protocol, photoRef, actorID string, at time.Time) (*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sc := range f.live() {
		if sc.Protocol != protocol {
			continue
		}
		if sc.IsCompleted() {
			return nil, fmt.Errorf("%w: %s", scheduleerrors.ErrAlreadyCompleted, protocol)
		}
		sc.Status = model.StatusCompleted
		sc.CompletionPhotoRef = photoRef
		sc.CompletedBy = actorID
		sc.CompletedAt = &at
		sc.UpdatedAt = at
		return clone(sc), nil
	}
	return nil, fmt.Errorf("%w: %s", scheduleerrors.ErrNotFound, protocol)
}

func (f *fakeScheduleRepository) SoftDelete(_ context.Context, protocol string, at time.Time) (*model.Schedule, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, sc := range f.live() {
		if sc.Protocol != protocol {
			continue
		}
		before := clone(sc)
		sc.DeletedAt = &at
		sc.UpdatedAt = at
		sc.MonthlyKey = ""
		return before, nil
	}
	return nil, fmt.Errorf("%w: %s", scheduleerrors.ErrNotFound, protocol)
}

// fakeCapacityRepository mirrors the seed-then-conditional-increment contract
// of the bucket collection.
type fakeCapacityRepository struct {
	mu       sync.Mutex
	buckets  map[string]int64
	released int
}

func newFakeCapacityRepository() *fakeCapacityRepository {
	return &fakeCapacityRepository{buckets: map[string]int64{}}
}

func (f *fakeCapacityRepository) Reserve(_ context.Context, category, date string, limit int, seed int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := repository.BucketID(category, date)
	if _, ok := f.buckets[id]; !ok {
		f.buckets[id] = seed
	}
	if f.buckets[id] >= int64(limit) {
		return false, nil
	}
	f.buckets[id]++
	return true, nil
}

func (f *fakeCapacityRepository) Release(_ context.Context, category, date string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := repository.BucketID(category, date)
	if f.buckets[id] > 0 {
		f.buckets[id]--
	}
	f.released++
	return nil
}

func (f *fakeCapacityRepository) count(category, date string) int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.buckets[repository.BucketID(category, date)]
}

type fakeAddressRepository struct {
	addresses map[primitive.ObjectID]*model.Address
}

func (f *fakeAddressRepository) add(street, neighborhood string) primitive.ObjectID {
	id := primitive.NewObjectID()
	f.addresses[id] = &model.Address{
		ID:               id,
		Street:           street,
		NeighborhoodID:   primitive.NewObjectID(),
		NeighborhoodName: neighborhood,
	}
	return id
}

func (f *fakeAddressRepository) FindLive(_ context.Context, id primitive.ObjectID) (*model.Address, error) {
	a, ok := f.addresses[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", addresserrors.ErrNotFound, id.Hex())
	}
	return a, nil
}

type fakeAuditRecorder struct {
	mu     sync.Mutex
	events []*model.AuditEvent
	err    error
}

func (f *fakeAuditRecorder) Record(_ context.Context, event *model.AuditEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.events = append(f.events, event)
	return nil
}

func (f *fakeAuditRecorder) actions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, e := range f.events {
		out = append(out, e.Action)
	}
	return out
}
