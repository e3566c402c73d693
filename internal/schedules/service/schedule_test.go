package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"recolha/internal/schedules/rules"
	"recolha/internal/schedules/validator"
	"recolha/pkg/clock"
	apperrors "recolha/pkg/errors"
	"recolha/pkg/logger"
	"recolha/pkg/model"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var saoPaulo = func() *time.Location {
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		panic(err)
	}
	return loc
}()

func at(year int, month time.Month, day, hour, minute int) time.Time {
	return time.Date(year, month, day, hour, minute, 0, 0, saoPaulo)
}

type fixture struct {
	svc       *scheduleService
	repo      *fakeScheduleRepository
	capacity  *fakeCapacityRepository
	addresses *fakeAddressRepository
	audit     *fakeAuditRecorder
	now       time.Time
}

// Friday 2026-10-16 10:00 in São Paulo unless a test moves it.
func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		repo:      newFakeScheduleRepository(),
		capacity:  newFakeCapacityRepository(),
		addresses: &fakeAddressRepository{addresses: map[primitive.ObjectID]*model.Address{}},
		audit:     &fakeAuditRecorder{},
		now:       at(2026, time.October, 16, 10, 0),
	}

	r := rules.Default()
	clk := clock.NewInLocation(saoPaulo, func() time.Time { return f.now })
	log := logger.Discard()

	f.svc = newScheduleService(Dependencies{
		Schedules:        f.repo,
		Capacity:         f.capacity,
		Addresses:        f.addresses,
		Rules:            r,
		Clock:            clk,
		Validator:        validator.NewScheduleValidator(r, clk, validator.DefaultCutoff),
		RequestValidator: validator.NewRequestValidator(r, log),
		Audit:            f.audit,
		Log:              log,
		Settings:         Settings{BaseURL: "https://recolha.example/", HorizonDays: 90},
	})
	return f
}

func (f *fixture) request(addressID primitive.ObjectID, category, date string) *model.ScheduleRequest {
	return &model.ScheduleRequest{
		Category:      category,
		Date:          date,
		AddressID:     addressID.Hex(),
		RequesterName: "  Maria   da Silva ",
		TaxID:         "529.982.247-25",
		Phone:         "(11) 98765-4321",
		Description:   "Galhos de poda",
		ClientIP:      "203.0.113.7",
		UserAgent:     "test-agent",
	}
}

func (f *fixture) submitNew(t *testing.T, category, date string) *model.Receipt {
	t.Helper()
	addr := f.addresses.add(fmt.Sprintf("Rua %d", len(f.addresses.addresses)+1), "Centro")
	receipt, err := f.svc.Submit(context.Background(), f.request(addr, category, date))
	require.NoError(t, err)
	return receipt
}

func requireReason(t *testing.T, err error, reason string) {
	t.Helper()
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeConflict, appErr.Code)
	assert.Equal(t, http.StatusConflict, appErr.StatusCode())
	assert.Equal(t, reason, appErr.Reason())
}

func TestSubmit_Success(t *testing.T) {
	f := newFixture(t)
	f.svc.newProtocol = func(time.Time) string { return "17606195000001234" }
	addr := f.addresses.add("Rua das Flores, 10", "Jardim América")

	receipt, err := f.svc.Submit(context.Background(), f.request(addr, rules.Pruning, "2026-10-20"))
	require.NoError(t, err)
	assert.Equal(t, "17606195000001234", receipt.Protocol)
	assert.Equal(t, "https://recolha.example/verify/17606195000001234", receipt.QRPayload)

	stored, err := f.repo.FindByProtocol(context.Background(), receipt.Protocol)
	require.NoError(t, err)
	assert.Equal(t, model.StatusScheduled, stored.Status)
	assert.Equal(t, at(2026, time.October, 20, 0, 0).Unix(), stored.Date.Unix())
	assert.Equal(t, "Maria da Silva", stored.RequesterName)
	assert.Equal(t, "52998224725", stored.TaxID)
	assert.Equal(t, "+5511987654321", stored.Phone)
	assert.Equal(t, "Jardim América", stored.NeighborhoodName)
	assert.Equal(t, "Rua das Flores, 10", stored.AddressText)
	assert.Equal(t, addr.Hex()+"|pruning|2026-10", stored.MonthlyKey)
	assert.Equal(t, "203.0.113.7", stored.CreatedByIP)

	assert.Equal(t, int64(1), f.capacity.count(rules.Pruning, "2026-10-20"))
	assert.Equal(t, []string{model.AuditScheduleCreate}, f.audit.actions())
}

func TestSubmit_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*model.ScheduleRequest)
		field  string
	}{
		{"invalid tax id", func(r *model.ScheduleRequest) { r.TaxID = "123.456.789-00" }, "tax_id"},
		{"short phone", func(r *model.ScheduleRequest) { r.Phone = "98765-4321" }, "phone"},
		{"missing name", func(r *model.ScheduleRequest) { r.RequesterName = "   " }, "requester_name"},
		{"malformed date", func(r *model.ScheduleRequest) { r.Date = "20/10/2026" }, "date"},
		{"unknown category", func(r *model.ScheduleRequest) { r.Category = "batteries" }, "category"},
		{"bad address id", func(r *model.ScheduleRequest) { r.AddressID = "not-an-id" }, "address_id"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			addr := f.addresses.add("Rua A", "Centro")
			req := f.request(addr, rules.Pruning, "2026-10-20")
			tt.mutate(req)

			_, err := f.svc.Submit(context.Background(), req)
			require.Error(t, err)
			appErr := apperrors.AsAppError(err)
			assert.Equal(t, apperrors.CodeValidation, appErr.Code)
			assert.Equal(t, http.StatusUnprocessableEntity, appErr.StatusCode())

			errs, ok := appErr.Details["errors"].(validator.ValidationErrors)
			require.True(t, ok)
			require.NotEmpty(t, errs)
			assert.Equal(t, tt.field, errs[0].Field)
			assert.Zero(t, f.repo.creates)
		})
	}
}

func TestSubmit_AddressNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Submit(context.Background(), f.request(primitive.NewObjectID(), rules.Pruning, "2026-10-20"))
	require.Error(t, err)
	appErr := apperrors.AsAppError(err)
	assert.Equal(t, apperrors.CodeNotFound, appErr.Code)
	assert.Equal(t, "Address", appErr.Details["resource"])
}

func TestSubmit_WeekdayMismatch(t *testing.T) {
	f := newFixture(t)
	addr := f.addresses.add("Rua A", "Centro")

	// 2026-10-21 is a Wednesday; pruning is collected on Tuesdays.
	_, err := f.svc.Submit(context.Background(), f.request(addr, rules.Pruning, "2026-10-21"))
	requireReason(t, err, apperrors.ReasonWeekdayMismatch)
	assert.Zero(t, f.capacity.count(rules.Pruning, "2026-10-21"))
}

func TestSubmit_Deadline(t *testing.T) {
	tests := []struct {
		name    string
		now     time.Time
		wantErr bool
	}{
		{"day before, one minute to cutoff", at(2026, time.October, 19, 16, 29), false},
		{"day before, at cutoff", at(2026, time.October, 19, 16, 30), true},
		{"day before, evening", at(2026, time.October, 19, 20, 0), true},
		{"same day", at(2026, time.October, 20, 7, 0), true},
		{"cutoff instant expressed in UTC", time.Date(2026, time.October, 19, 19, 30, 0, 0, time.UTC), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.now = tt.now
			addr := f.addresses.add("Rua A", "Centro")

			_, err := f.svc.Submit(context.Background(), f.request(addr, rules.Pruning, "2026-10-20"))
			if tt.wantErr {
				requireReason(t, err, apperrors.ReasonDeadlinePassed)
				return
			}
			require.NoError(t, err)
		})
	}
}

func TestSubmit_MonthlyExclusivity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	addr := f.addresses.add("Rua A", "Centro")

	first, err := f.svc.Submit(ctx, f.request(addr, rules.Pruning, "2026-10-20"))
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, f.request(addr, rules.Pruning, "2026-10-27"))
	requireReason(t, err, apperrors.ReasonMonthlyConflict)

	// Another category in the same month is independent.
	_, err = f.svc.Submit(ctx, f.request(addr, rules.Furniture, "2026-10-21"))
	require.NoError(t, err)

	// Next month is independent.
	_, err = f.svc.Submit(ctx, f.request(addr, rules.Pruning, "2026-11-03"))
	require.NoError(t, err)

	// Deleting the October booking frees the month.
	require.NoError(t, f.svc.SoftDelete(ctx, first.Protocol, model.Actor{Role: model.RoleAdmin}))
	_, err = f.svc.Submit(ctx, f.request(addr, rules.Pruning, "2026-10-27"))
	require.NoError(t, err)
}

func TestSubmit_CapacityExceeded(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 3; i++ {
		f.submitNew(t, rules.Pruning, "2026-10-20")
	}

	addr := f.addresses.add("Rua Extra", "Centro")
	_, err := f.svc.Submit(context.Background(), f.request(addr, rules.Pruning, "2026-10-20"))
	requireReason(t, err, apperrors.ReasonCapacityExceeded)
	assert.Equal(t, int64(3), f.capacity.count(rules.Pruning, "2026-10-20"))
}

func TestSubmit_SoftDeleteFreesCapacity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	var receipts []*model.Receipt
	for i := 0; i < 3; i++ {
		receipts = append(receipts, f.submitNew(t, rules.Pruning, "2026-10-20"))
	}

	require.NoError(t, f.svc.SoftDelete(ctx, receipts[1].Protocol, model.Actor{Role: model.RoleAdmin}))
	assert.Equal(t, int64(2), f.capacity.count(rules.Pruning, "2026-10-20"))

	f.submitNew(t, rules.Pruning, "2026-10-20")
	assert.Equal(t, int64(3), f.capacity.count(rules.Pruning, "2026-10-20"))
}

func TestSubmit_ConcurrentCapacity(t *testing.T) {
	f := newFixture(t)
	const workers = 12

	requests := make([]*model.ScheduleRequest, workers)
	for i := range requests {
		addr := f.addresses.add(fmt.Sprintf("Rua %d", i), "Centro")
		requests[i] = f.request(addr, rules.Pruning, "2026-10-20")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created, full int
	for _, req := range requests {
		wg.Add(1)
		go func(req *model.ScheduleRequest) {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), req)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case apperrors.AsAppError(err).Reason() == apperrors.ReasonCapacityExceeded:
				full++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(req)
	}
	wg.Wait()

	assert.Equal(t, 3, created)
	assert.Equal(t, workers-3, full)

	count, err := f.svc.ledger.CountForCategoryOnDate(context.Background(), rules.Pruning, at(2026, time.October, 20, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestSubmit_ConcurrentSameAddressSameMonth(t *testing.T) {
	f := newFixture(t)
	addr := f.addresses.add("Rua A", "Centro")
	dates := []string{"2026-10-20", "2026-10-27", "2026-10-20", "2026-10-27"}

	var wg sync.WaitGroup
	var mu sync.Mutex
	var created int
	for _, date := range dates {
		wg.Add(1)
		go func(date string) {
			defer wg.Done()
			_, err := f.svc.Submit(context.Background(), f.request(addr, rules.Pruning, date))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				created++
				return
			}
			assert.Equal(t, apperrors.ReasonMonthlyConflict, apperrors.AsAppError(err).Reason())
		}(date)
	}
	wg.Wait()

	assert.Equal(t, 1, created)
	total := f.capacity.count(rules.Pruning, "2026-10-20") + f.capacity.count(rules.Pruning, "2026-10-27")
	assert.Equal(t, int64(1), total, "losing inserts must release their reservation")
}

func TestSubmit_ProtocolCollisionRetries(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(&model.Schedule{Protocol: "dup", Category: rules.Furniture, Date: at(2026, time.September, 2, 0, 0)})

	calls := 0
	f.svc.newProtocol = func(time.Time) string {
		calls++
		if calls < 3 {
			return "dup"
		}
		return "unique"
	}

	receipt := f.submitNew(t, rules.Pruning, "2026-10-20")
	assert.Equal(t, "unique", receipt.Protocol)
	assert.Equal(t, 3, calls)
}

func TestSubmit_ProtocolCollisionGivesUp(t *testing.T) {
	f := newFixture(t)
	f.repo.seed(&model.Schedule{Protocol: "dup", Category: rules.Furniture, Date: at(2026, time.September, 2, 0, 0)})
	f.svc.newProtocol = func(time.Time) string { return "dup" }

	addr := f.addresses.add("Rua A", "Centro")
	_, err := f.svc.Submit(context.Background(), f.request(addr, rules.Pruning, "2026-10-20"))
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.AsAppError(err).Code)
	assert.Equal(t, maxProtocolAttempts, f.repo.creates)
	assert.Zero(t, f.capacity.count(rules.Pruning, "2026-10-20"))
}

func TestSubmit_TransientStoreErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
		wantHTTP int
	}{
		{"deadline exceeded", context.DeadlineExceeded, apperrors.CodeTimeout, http.StatusGatewayTimeout},
		{"wrapped deadline", fmt.Errorf("failed to count: %w", context.DeadlineExceeded), apperrors.CodeTimeout, http.StatusGatewayTimeout},
		{"other failure", errors.New("boom"), apperrors.CodeInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.repo.countErr = tt.err
			addr := f.addresses.add("Rua A", "Centro")

			_, err := f.svc.Submit(context.Background(), f.request(addr, rules.Pruning, "2026-10-20"))
			require.Error(t, err)
			appErr := apperrors.AsAppError(err)
			assert.Equal(t, tt.wantCode, appErr.Code)
			assert.Equal(t, tt.wantHTTP, appErr.StatusCode())
			assert.Zero(t, f.repo.creates)
		})
	}
}

func TestSubmit_InsertFailureReleasesCapacity(t *testing.T) {
	f := newFixture(t)
	f.repo.createErr = context.DeadlineExceeded
	addr := f.addresses.add("Rua A", "Centro")

	_, err := f.svc.Submit(context.Background(), f.request(addr, rules.Pruning, "2026-10-20"))
	require.Error(t, err)
	assert.True(t, apperrors.AsAppError(err).IsTransient())
	assert.Equal(t, 1, f.capacity.released)
	assert.Zero(t, f.capacity.count(rules.Pruning, "2026-10-20"))
}

func TestSubmit_AuditFailureDoesNotFail(t *testing.T) {
	f := newFixture(t)
	f.audit.err = errors.New("audit store down")

	receipt := f.submitNew(t, rules.Pruning, "2026-10-20")
	assert.NotEmpty(t, receipt.Protocol)
}

func TestComplete(t *testing.T) {
	ctx := context.Background()

	t.Run("driver without photo", func(t *testing.T) {
		f := newFixture(t)
		receipt := f.submitNew(t, rules.Pruning, "2026-10-20")

		_, err := f.svc.Complete(ctx, receipt.Protocol, &model.CompleteRequest{}, model.Actor{Role: model.RoleDriver, ID: "drv-1"})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeValidation, apperrors.AsAppError(err).Code)

		stored, err := f.repo.FindByProtocol(ctx, receipt.Protocol)
		require.NoError(t, err)
		assert.Equal(t, model.StatusScheduled, stored.Status)
	})

	t.Run("driver with photo", func(t *testing.T) {
		f := newFixture(t)
		receipt := f.submitNew(t, rules.Pruning, "2026-10-20")

		view, err := f.svc.Complete(ctx, receipt.Protocol, &model.CompleteRequest{PhotoRef: "photos/abc.jpg"}, model.Actor{Role: model.RoleDriver, ID: "drv-1"})
		require.NoError(t, err)
		assert.Equal(t, model.StatusCompleted, view.Status)
		assert.Equal(t, "photos/abc.jpg", view.CompletionPhotoRef)
		assert.Equal(t, "drv-1", view.CompletedBy)
		assert.Equal(t, "2026-10-20", view.CivilDate)
		assert.Equal(t, []string{model.AuditScheduleCreate, model.AuditScheduleComplete}, f.audit.actions())
	})

	t.Run("admin without photo then again", func(t *testing.T) {
		f := newFixture(t)
		receipt := f.submitNew(t, rules.Pruning, "2026-10-20")
		admin := model.Actor{Role: model.RoleAdmin, ID: "adm-1"}

		_, err := f.svc.Complete(ctx, receipt.Protocol, nil, admin)
		require.NoError(t, err)

		_, err = f.svc.Complete(ctx, receipt.Protocol, nil, admin)
		requireReason(t, err, apperrors.ReasonAlreadyCompleted)
	})

	t.Run("unknown protocol", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.svc.Complete(ctx, "404", nil, model.Actor{Role: model.RoleAdmin})
		require.Error(t, err)
		assert.Equal(t, apperrors.CodeNotFound, apperrors.AsAppError(err).Code)
	})
}

func TestSoftDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	receipt := f.submitNew(t, rules.Pruning, "2026-10-20")

	require.NoError(t, f.svc.SoftDelete(ctx, receipt.Protocol, model.Actor{Role: model.RoleAdmin, ID: "adm-1"}))

	_, err := f.svc.GetByProtocol(ctx, receipt.Protocol)
	assert.Equal(t, apperrors.CodeNotFound, apperrors.AsAppError(err).Code)

	err = f.svc.SoftDelete(ctx, receipt.Protocol, model.Actor{Role: model.RoleAdmin})
	assert.Equal(t, apperrors.CodeNotFound, apperrors.AsAppError(err).Code)

	require.Len(t, f.audit.events, 2)
	deleted := f.audit.events[1]
	assert.Equal(t, model.AuditScheduleDelete, deleted.Action)
	assert.Nil(t, deleted.Before.DeletedAt)
	assert.NotNil(t, deleted.After.DeletedAt)
	assert.Equal(t, "adm-1", deleted.ActorID)
}

func TestVerify(t *testing.T) {
	f := newFixture(t)
	receipt := f.submitNew(t, rules.Furniture, "2026-10-21")

	v, err := f.svc.Verify(context.Background(), receipt.Protocol)
	require.NoError(t, err)
	assert.Equal(t, receipt.Protocol, v.Protocol)
	assert.Equal(t, "2026-10-21", v.Date)
	assert.Equal(t, model.StatusScheduled, v.Status)
	assert.Equal(t, receipt.QRPayload, v.QRPayload)

	_, err = f.svc.Verify(context.Background(), "  ")
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.submitNew(t, rules.Pruning, "2026-10-20")
	f.submitNew(t, rules.Furniture, "2026-10-21")
	f.submitNew(t, rules.Furniture, "2026-10-28")

	views, total, err := f.svc.List(ctx, model.ScheduleQuery{Category: rules.Furniture})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, views, 2)
	assert.Equal(t, "2026-10-28", views[0].CivilDate)

	views, total, err = f.svc.List(ctx, model.ScheduleQuery{Date: "2026-10-20"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, rules.Pruning, views[0].Category)

	_, _, err = f.svc.List(ctx, model.ScheduleQuery{Status: "Cancelled"})
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)

	_, _, err = f.svc.List(ctx, model.ScheduleQuery{Date: "2026-13-01"})
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.AsAppError(err).Code)
}

func TestList_CountFailure(t *testing.T) {
	f := newFixture(t)
	f.repo.countErr = errors.New("boom")

	_, _, err := f.svc.List(context.Background(), model.ScheduleQuery{})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInternal, apperrors.AsAppError(err).Code)
}

func TestToday_RouteOrder(t *testing.T) {
	f := newFixture(t)
	today := at(2026, time.October, 16, 0, 0)
	f.repo.seed(&model.Schedule{Protocol: "3", Category: rules.Furniture, Date: today, Status: model.StatusScheduled, NeighborhoodName: "Vila Nova", AddressText: "Rua A"})
	f.repo.seed(&model.Schedule{Protocol: "1", Category: rules.Pruning, Date: today, Status: model.StatusScheduled, NeighborhoodName: "Centro", AddressText: "Rua B"})
	f.repo.seed(&model.Schedule{Protocol: "2", Category: rules.Pruning, Date: today, Status: model.StatusScheduled, NeighborhoodName: "Centro", AddressText: "Rua C"})
	f.repo.seed(&model.Schedule{Protocol: "x", Category: rules.Pruning, Date: today, Status: model.StatusCompleted, NeighborhoodName: "Centro", AddressText: "Rua A"})
	f.repo.seed(&model.Schedule{Protocol: "y", Category: rules.Pruning, Date: today.AddDate(0, 0, 1), Status: model.StatusScheduled, NeighborhoodName: "Centro", AddressText: "Rua A"})

	views, err := f.svc.Today(context.Background())
	require.NoError(t, err)

	var protocols []string
	for _, v := range views {
		protocols = append(protocols, v.Protocol)
	}
	assert.Equal(t, []string{"1", "2", "3"}, protocols)
}
