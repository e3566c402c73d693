package service

import (
	"context"
	"errors"
	"fmt"
	addresserrors "recolha/internal/addresses/errors"
	addressrepository "recolha/internal/addresses/repository"
	scheduleerrors "recolha/internal/schedules/errors"
	"recolha/internal/schedules/repository"
	"recolha/internal/schedules/rules"
	"recolha/internal/schedules/validator"
	"recolha/pkg/clock"
	"recolha/pkg/config"
	apperrors "recolha/pkg/errors"
	"recolha/pkg/logger"
	"recolha/pkg/metrics"
	"recolha/pkg/model"
	"recolha/pkg/sanitizer"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	outcomeCreated  = "created"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"

	auditTimeout = 5 * time.Second
)

type ScheduleService interface {
	Submit(ctx context.Context, req *model.ScheduleRequest) (*model.Receipt, error)
	Complete(ctx context.Context, protocol string, req *model.CompleteRequest, actor model.Actor) (*model.ScheduleView, error)
	SoftDelete(ctx context.Context, protocol string, actor model.Actor) error
	GetByProtocol(ctx context.Context, protocol string) (*model.ScheduleView, error)
	Verify(ctx context.Context, protocol string) (*model.Verification, error)
	List(ctx context.Context, query model.ScheduleQuery) ([]*model.ScheduleView, int64, error)
	Today(ctx context.Context) ([]*model.ScheduleView, error)
	Availability(ctx context.Context, category string) (*model.Availability, error)
	TodaySnapshot(ctx context.Context) (*model.TodayStats, error)
	LifetimeTotals(ctx context.Context) (*model.LifetimeTotals, error)
}

// AuditRecorder persists audit events. Failures never undo the change being
// audited.
type AuditRecorder interface {
	Record(ctx context.Context, event *model.AuditEvent) error
}

// Settings are the deployment parameters of the engine.
type Settings struct {
	BaseURL     string
	HorizonDays int
}

type Dependencies struct {
	Schedules        repository.ScheduleRepository
	Capacity         repository.CapacityRepository
	Addresses        addressrepository.AddressRepository
	Rules            *rules.Rules
	Clock            *clock.Clock
	Validator        *validator.ScheduleValidator
	RequestValidator *validator.RequestValidator
	Audit            AuditRecorder
	Metrics          *metrics.Metrics
	Log              *logger.Logger
	Settings         Settings
}

type scheduleService struct {
	repo             repository.ScheduleRepository
	addresses        addressrepository.AddressRepository
	rules            *rules.Rules
	clock            *clock.Clock
	validator        *validator.ScheduleValidator
	requestValidator *validator.RequestValidator
	ledger           *CapacityLedger
	availability     *AvailabilityProjector
	stats            *StatsAggregator
	audit            AuditRecorder
	metrics          *metrics.Metrics
	log              *logger.Logger
	settings         Settings
	newProtocol      ProtocolFunc
}

func NewScheduleService(deps Dependencies) ScheduleService {
	return newScheduleService(deps)
}

func newScheduleService(deps Dependencies) *scheduleService {
	if deps.Settings.HorizonDays <= 0 {
		deps.Settings.HorizonDays = config.DefaultHorizonDays
	}
	deps.Settings.BaseURL = strings.TrimRight(deps.Settings.BaseURL, "/")

	return &scheduleService{
		repo:             deps.Schedules,
		addresses:        deps.Addresses,
		rules:            deps.Rules,
		clock:            deps.Clock,
		validator:        deps.Validator,
		requestValidator: deps.RequestValidator,
		ledger:           NewCapacityLedger(deps.Schedules, deps.Capacity, deps.Rules, deps.Clock),
		availability:     NewAvailabilityProjector(deps.Schedules, deps.Rules, deps.Clock, deps.Validator, deps.Settings.HorizonDays),
		stats:            NewStatsAggregator(deps.Schedules, deps.Rules, deps.Clock),
		audit:            deps.Audit,
		metrics:          deps.Metrics,
		log:              deps.Log,
		settings:         deps.Settings,
		newProtocol:      NewProtocol,
	}
}

// Submit books a collection. Checks run in a fixed order and the first failing
// one decides the error.
func (s *scheduleService) Submit(ctx context.Context, req *model.ScheduleRequest) (*model.Receipt, error) {
	s.sanitize(req)

	if err := s.requestValidator.ValidateSchedule(req); err != nil {
		s.log.Warn("Schedule request validation failed",
			"category", req.Category,
			"date", req.Date,
			"error", err,
		)
		s.metrics.Submission(s.categoryLabel(req.Category), outcomeRejected)
		return nil, toAppError(err, "Schedule validation failed")
	}

	addressID, err := primitive.ObjectIDFromHex(req.AddressID)
	if err != nil {
		return nil, s.reject(req, fmt.Errorf("%w: %s", addresserrors.ErrInvalidID, req.AddressID))
	}
	address, err := s.addresses.FindLive(ctx, addressID)
	if err != nil {
		if errors.Is(err, addresserrors.ErrNotFound) {
			return nil, s.reject(req, apperrors.NotFoundWithID("Address", req.AddressID))
		}
		return nil, s.fail(req, err, "Failed to resolve address")
	}

	day, err := s.validator.ParseAndValidate(req.Category, req.Date)
	if err != nil {
		return nil, s.reject(req, err)
	}
	rule, _ := s.rules.Get(req.Category)

	conflict, err := s.ledger.HasConflictForAddressInMonth(ctx, addressID, req.Category, day)
	if err != nil {
		return nil, s.fail(req, err, "Failed to check monthly bookings")
	}
	if conflict {
		return nil, s.reject(req, scheduleerrors.ErrMonthlyConflict)
	}

	count, err := s.ledger.CountForCategoryOnDate(ctx, req.Category, day)
	if err != nil {
		return nil, s.fail(req, err, "Failed to count bookings")
	}
	if count >= int64(rule.DailyLimit) {
		return nil, s.reject(req, capacityExceeded(rule, day, s.clock))
	}

	reserved, err := s.ledger.Reserve(ctx, req.Category, day, count)
	if err != nil {
		return nil, s.fail(req, err, "Failed to reserve capacity")
	}
	if !reserved {
		return nil, s.reject(req, capacityExceeded(rule, day, s.clock))
	}

	now := s.clock.Now()
	sc := &model.Schedule{
		Category:         req.Category,
		Date:             day,
		AddressID:        addressID,
		NeighborhoodName: address.NeighborhoodName,
		AddressText:      sanitizer.NormalizeText(address.Street),
		RequesterName:    req.RequesterName,
		TaxID:            sanitizer.NormalizeTaxID(req.TaxID),
		Phone:            sanitizer.NormalizePhone(req.Phone),
		Description:      req.Description,
		Status:           model.StatusScheduled,
		MonthlyKey:       s.ledger.MonthlyKeyFor(addressID, req.Category, day),
		CreatedByIP:      req.ClientIP,
		UserAgent:        req.UserAgent,
		CreatedAt:        now.UTC(),
		UpdatedAt:        now.UTC(),
	}

	if err := s.insert(ctx, sc, now); err != nil {
		if releaseErr := s.ledger.Release(context.WithoutCancel(ctx), sc.Category, day); releaseErr != nil {
			s.log.Error("Failed to release capacity after insert failure",
				"category", sc.Category,
				"date", s.clock.FormatDate(day),
				"error", releaseErr,
			)
		}
		if errors.Is(err, scheduleerrors.ErrMonthlyConflict) {
			return nil, s.reject(req, err)
		}
		return nil, s.fail(req, err, "Failed to create schedule")
	}

	s.record(ctx, model.AuditScheduleCreate, sc.Protocol, model.Actor{IP: req.ClientIP, UserAgent: req.UserAgent, RequestID: req.RequestID}, nil, sc)
	s.metrics.Submission(sc.Category, outcomeCreated)

	s.log.Info("Schedule created successfully",
		"protocol", sc.Protocol,
		"category", sc.Category,
		"date", s.clock.FormatDate(day),
		"neighborhood", sc.NeighborhoodName,
	)
	return &model.Receipt{Protocol: sc.Protocol, QRPayload: sc.QRPayload}, nil
}

// insert persists sc, drawing a new protocol when the previous one collided.
func (s *scheduleService) insert(ctx context.Context, sc *model.Schedule, now time.Time) error {
	for attempt := 1; attempt <= maxProtocolAttempts; attempt++ {
		sc.Protocol = s.newProtocol(now)
		sc.QRPayload = qrPayload(s.settings.BaseURL, sc.Protocol)

		err := s.repo.Create(ctx, sc)
		if err == nil {
			return nil
		}
		if !errors.Is(err, scheduleerrors.ErrDuplicateProtocol) {
			return err
		}
		s.metrics.ProtocolCollision()
		s.log.Warn("Protocol collision, retrying",
			"protocol", sc.Protocol,
			"attempt", attempt,
		)
	}
	return fmt.Errorf("%w: gave up after %d attempts", scheduleerrors.ErrDuplicateProtocol, maxProtocolAttempts)
}

func (s *scheduleService) reject(req *model.ScheduleRequest, err error) error {
	appErr := toAppError(err, "Schedule rejected")
	s.log.Info("Schedule rejected",
		"category", req.Category,
		"date", req.Date,
		"reason", appErr.Reason(),
		"error", err,
	)
	s.metrics.Submission(s.categoryLabel(req.Category), outcomeRejected)
	return appErr
}

func (s *scheduleService) fail(req *model.ScheduleRequest, err error, message string) error {
	s.log.Error(message,
		"category", req.Category,
		"date", req.Date,
		"error", err,
	)
	s.metrics.Submission(s.categoryLabel(req.Category), outcomeFailed)
	return toAppError(err, message)
}

// categoryLabel keeps metric cardinality bounded by the configured categories.
func (s *scheduleService) categoryLabel(category string) string {
	if _, ok := s.rules.Get(category); ok {
		return category
	}
	return "unknown"
}

func capacityExceeded(rule rules.Rule, day time.Time, clk *clock.Clock) error {
	return fmt.Errorf("%w: %s has no slots left on %s",
		scheduleerrors.ErrCapacityExceeded, rule.Label, clk.FormatDate(day))
}

func (s *scheduleService) Complete(ctx context.Context, protocol string, req *model.CompleteRequest, actor model.Actor) (*model.ScheduleView, error) {
	protocol = strings.TrimSpace(protocol)
	if protocol == "" {
		return nil, apperrors.InvalidInput("Protocol cannot be empty")
	}
	if req == nil {
		req = &model.CompleteRequest{}
	}
	req.PhotoRef = strings.TrimSpace(req.PhotoRef)

	if err := s.requestValidator.ValidateComplete(req); err != nil {
		return nil, toAppError(err, "Completion validation failed")
	}
	if actor.IsDriver() && req.PhotoRef == "" {
		s.log.Warn("Driver completion without photo",
			"protocol", protocol,
			"actor_id", actor.ID,
		)
		return nil, toAppError(scheduleerrors.ErrPhotoRequired, "Completion photo is required")
	}

	before, err := s.repo.FindByProtocol(ctx, protocol)
	if err != nil {
		return nil, s.lookupError(err, protocol)
	}
	if before.IsCompleted() {
		return nil, toAppError(scheduleerrors.ErrAlreadyCompleted, "Schedule already completed")
	}

	after, err := s.repo.MarkCompleted(ctx, protocol, req.PhotoRef, actor.ID, s.clock.Now().UTC())
	if err != nil {
		if errors.Is(err, scheduleerrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("Schedule", protocol)
		}
		if !errors.Is(err, scheduleerrors.ErrAlreadyCompleted) {
			s.log.Error("Failed to complete schedule",
				"protocol", protocol,
				"error", err,
			)
		}
		return nil, toAppError(err, "Failed to complete schedule")
	}

	s.record(ctx, model.AuditScheduleComplete, protocol, actor, before, after)
	s.metrics.Completed()

	s.log.Info("Schedule completed",
		"protocol", protocol,
		"actor_role", actor.Role,
		"actor_id", actor.ID,
		"with_photo", req.PhotoRef != "",
	)
	return s.view(after), nil
}

// SoftDelete hides a record from every count and gives its day slot back.
func (s *scheduleService) SoftDelete(ctx context.Context, protocol string, actor model.Actor) error {
	protocol = strings.TrimSpace(protocol)
	if protocol == "" {
		return apperrors.InvalidInput("Protocol cannot be empty")
	}

	now := s.clock.Now().UTC()
	before, err := s.repo.SoftDelete(ctx, protocol, now)
	if err != nil {
		return s.lookupError(err, protocol)
	}

	if err := s.ledger.Release(context.WithoutCancel(ctx), before.Category, before.Date); err != nil {
		s.log.Error("Failed to release capacity after delete",
			"protocol", protocol,
			"category", before.Category,
			"error", err,
		)
	}

	after := *before
	after.MonthlyKey = ""
	after.DeletedAt = &now
	after.UpdatedAt = now
	s.record(ctx, model.AuditScheduleDelete, protocol, actor, before, &after)
	s.metrics.Deleted()

	s.log.Info("Schedule deleted",
		"protocol", protocol,
		"actor_role", actor.Role,
		"actor_id", actor.ID,
	)
	return nil
}

func (s *scheduleService) GetByProtocol(ctx context.Context, protocol string) (*model.ScheduleView, error) {
	sc, err := s.find(ctx, protocol)
	if err != nil {
		return nil, err
	}
	return s.view(sc), nil
}

func (s *scheduleService) Verify(ctx context.Context, protocol string) (*model.Verification, error) {
	sc, err := s.find(ctx, protocol)
	if err != nil {
		return nil, err
	}
	return &model.Verification{
		Protocol:         sc.Protocol,
		Category:         sc.Category,
		Date:             s.clock.FormatDate(sc.Date),
		RequesterName:    sc.RequesterName,
		NeighborhoodName: sc.NeighborhoodName,
		AddressText:      sc.AddressText,
		Status:           sc.Status,
		Description:      sc.Description,
		QRPayload:        sc.QRPayload,
	}, nil
}

func (s *scheduleService) find(ctx context.Context, protocol string) (*model.Schedule, error) {
	protocol = strings.TrimSpace(protocol)
	if protocol == "" {
		return nil, apperrors.InvalidInput("Protocol cannot be empty")
	}
	sc, err := s.repo.FindByProtocol(ctx, protocol)
	if err != nil {
		return nil, s.lookupError(err, protocol)
	}
	return sc, nil
}

func (s *scheduleService) lookupError(err error, protocol string) error {
	if errors.Is(err, scheduleerrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Schedule", protocol)
	}
	s.log.Error("Failed to get schedule by protocol",
		"protocol", protocol,
		"error", err,
	)
	return toAppError(err, "Failed to retrieve schedule")
}

func (s *scheduleService) List(ctx context.Context, query model.ScheduleQuery) ([]*model.ScheduleView, int64, error) {
	filter, err := s.buildFilter(query)
	if err != nil {
		return nil, 0, err
	}

	sharedCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var count int64
	var schedules []*model.Schedule
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(sharedCtx, filter)
		if err != nil {
			s.log.Error("Failed to count schedules", "error", err)
			errCount = toAppError(err, "Failed to count schedules")
			cancel()
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		schedules, err = s.repo.FindAll(sharedCtx, filter)
		if err != nil {
			s.log.Error("Failed to list schedules",
				"limit", filter.Limit,
				"offset", filter.Offset,
				"error", err,
			)
			errFind = toAppError(err, "Failed to retrieve schedules")
			cancel()
		}
	}()

	wg.Wait()
	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}
	return s.views(schedules), count, nil
}

func (s *scheduleService) buildFilter(q model.ScheduleQuery) (model.ScheduleFilter, error) {
	filter := model.ScheduleFilter{
		Category: strings.TrimSpace(q.Category),
		Query:    sanitizer.NormalizeSearchQuery(q.Query),
		Limit:    config.NormalizePaginationLimit(q.Limit),
		Offset:   config.NormalizeOffset(q.Offset),
	}

	switch status := strings.TrimSpace(q.Status); status {
	case "", model.StatusScheduled, model.StatusCompleted:
		filter.Status = status
	default:
		return filter, apperrors.InvalidInput(fmt.Sprintf("status must be %s or %s", model.StatusScheduled, model.StatusCompleted))
	}

	if filter.Category != "" {
		if _, ok := s.rules.Get(filter.Category); !ok {
			return filter, toAppError(fmt.Errorf("%w: %q", scheduleerrors.ErrInvalidCategory, filter.Category), "Invalid category")
		}
	}

	if date := strings.TrimSpace(q.Date); date != "" {
		day, err := s.clock.ParseDate(date)
		if err != nil {
			return filter, apperrors.InvalidInput("date must be in YYYY-MM-DD format")
		}
		filter.From = day
		filter.To = s.clock.AddDays(day, 1)
	}
	return filter, nil
}

// Today returns today's pending collections in route order.
func (s *scheduleService) Today(ctx context.Context) ([]*model.ScheduleView, error) {
	from := s.clock.Today()
	schedules, err := s.repo.FindScheduledInRange(ctx, from, s.clock.AddDays(from, 1))
	if err != nil {
		s.log.Error("Failed to get today's route", "error", err)
		return nil, toAppError(err, "Failed to retrieve today's collections")
	}
	return s.views(schedules), nil
}

func (s *scheduleService) Availability(ctx context.Context, category string) (*model.Availability, error) {
	category = strings.TrimSpace(category)
	dates, err := s.availability.UnavailableDates(ctx, category, s.clock.Now())
	if err != nil {
		if !errors.Is(err, scheduleerrors.ErrInvalidCategory) {
			s.log.Error("Failed to project availability",
				"category", category,
				"error", err,
			)
		}
		return nil, toAppError(err, "Failed to compute availability")
	}
	return &model.Availability{Category: category, UnavailableDates: dates}, nil
}

func (s *scheduleService) TodaySnapshot(ctx context.Context) (*model.TodayStats, error) {
	stats, err := s.stats.TodaySnapshot(ctx)
	if err != nil {
		s.log.Error("Failed to aggregate today's stats", "error", err)
		return nil, toAppError(err, "Failed to compute statistics")
	}
	return stats, nil
}

func (s *scheduleService) LifetimeTotals(ctx context.Context) (*model.LifetimeTotals, error) {
	totals, err := s.stats.LifetimeTotals(ctx)
	if err != nil {
		s.log.Error("Failed to count totals", "error", err)
		return nil, toAppError(err, "Failed to compute statistics")
	}
	return totals, nil
}

func (s *scheduleService) sanitize(req *model.ScheduleRequest) {
	req.Category = strings.ToLower(strings.TrimSpace(req.Category))
	req.Date = strings.TrimSpace(req.Date)
	req.AddressID = strings.TrimSpace(req.AddressID)
	req.RequesterName = sanitizer.NormalizeName(req.RequesterName)
	req.TaxID = strings.TrimSpace(req.TaxID)
	req.Phone = strings.TrimSpace(req.Phone)
	req.Description = sanitizer.NormalizeText(req.Description)
}

func (s *scheduleService) record(ctx context.Context, action, protocol string, actor model.Actor, before, after *model.Schedule) {
	if s.audit == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
	defer cancel()

	event := &model.AuditEvent{
		Action:    action,
		Entity:    model.AuditEntitySchedule,
		Protocol:  protocol,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		IP:        actor.IP,
		UserAgent: actor.UserAgent,
		RequestID: actor.RequestID,
		Before:    before,
		After:     after,
		CreatedAt: s.clock.Now().UTC(),
	}
	if after != nil && !after.ID.IsZero() {
		event.EntityID = after.ID.Hex()
	} else if before != nil {
		event.EntityID = before.ID.Hex()
	}

	if err := s.audit.Record(ctx, event); err != nil {
		s.log.Warn("Failed to record audit event",
			"action", action,
			"protocol", protocol,
			"error", err,
		)
	}
}

func (s *scheduleService) view(sc *model.Schedule) *model.ScheduleView {
	return &model.ScheduleView{Schedule: sc, CivilDate: s.clock.FormatDate(sc.Date)}
}

func (s *scheduleService) views(schedules []*model.Schedule) []*model.ScheduleView {
	out := make([]*model.ScheduleView, 0, len(schedules))
	for _, sc := range schedules {
		out = append(out, s.view(sc))
	}
	return out
}
