package repository

import (
	"context"
	"errors"
	"fmt"
	scheduleserrors "recolha/internal/schedules/errors"
	"recolha/pkg/config"
	"recolha/pkg/model"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	CollectionName = "Schedules"

	IndexProtocol   = "protocol_unique"
	IndexMonthlyKey = "monthly_key_unique"
)

// DayCount is the number of live records of one civil date.
type DayCount struct {
	Date  string `bson:"_id"`
	Count int64  `bson:"count"`
}

// CategoryStatusCount is the number of live records per category and status.
type CategoryStatusCount struct {
	Category string `bson:"category"`
	Status   string `bson:"status"`
	Count    int64  `bson:"count"`
}

type ScheduleRepository interface {
	// Create inserts a new record. A protocol collision returns
	// ErrDuplicateProtocol and a live booking with the same monthly key returns
	// ErrMonthlyConflict.
	Create(ctx context.Context, sc *model.Schedule) error
	FindByProtocol(ctx context.Context, protocol string) (*model.Schedule, error)
	FindAll(ctx context.Context, filter model.ScheduleFilter) ([]*model.Schedule, error)
	Count(ctx context.Context, filter model.ScheduleFilter) (int64, error)
	FindScheduledInRange(ctx context.Context, from, to time.Time) ([]*model.Schedule, error)

	CountLive(ctx context.Context, category string, from, to time.Time) (int64, error)
	ExistsLiveForAddress(ctx context.Context, addressID primitive.ObjectID, category string, from, to time.Time) (bool, error)
	CountByCivilDate(ctx context.Context, category string, from, to time.Time, timezone string) ([]DayCount, error)
	CountByCategoryAndStatus(ctx context.Context, from, to time.Time) ([]CategoryStatusCount, error)
	CountTotals(ctx context.Context) (total int64, completed int64, err error)

	// MarkCompleted moves a live Scheduled record to Completed and returns the
	// updated record.
	MarkCompleted(ctx context.Context, protocol, photoRef, actorID string, at time.Time) (*model.Schedule, error)
	// SoftDelete stamps deleted_at, drops the monthly key and returns the
	// record as it was before the update.
	SoftDelete(ctx context.Context, protocol string, at time.Time) (*model.Schedule, error)
}

type mongoScheduleRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoScheduleRepository(cfg *config.Config) ScheduleRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoScheduleRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, timeout)
}

func liveFilter() bson.M {
	return bson.M{"deleted_at": nil}
}

func (r *mongoScheduleRepository) Create(ctx context.Context, sc *model.Schedule) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	result, err := r.collection.InsertOne(ctx, sc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			switch {
			case strings.Contains(err.Error(), IndexMonthlyKey), strings.Contains(err.Error(), "monthly_key"):
				return fmt.Errorf("%w: %s", scheduleserrors.ErrMonthlyConflict, sc.MonthlyKey)
			case strings.Contains(err.Error(), IndexProtocol), strings.Contains(err.Error(), "protocol"):
				return fmt.Errorf("%w: %s", scheduleserrors.ErrDuplicateProtocol, sc.Protocol)
			}
		}
		return fmt.Errorf("failed to create schedule: %w", err)
	}

	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		sc.ID = oid
	}
	return nil
}

func (r *mongoScheduleRepository) FindByProtocol(ctx context.Context, protocol string) (*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := liveFilter()
	filter["protocol"] = protocol

	var sc model.Schedule
	err := r.collection.FindOne(ctx, filter).Decode(&sc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", scheduleserrors.ErrNotFound, protocol)
		}
		return nil, fmt.Errorf("failed to find schedule: %w", err)
	}

	return &sc, nil
}

func buildListFilter(f model.ScheduleFilter) bson.M {
	filter := liveFilter()
	if f.Status != "" {
		filter["status"] = f.Status
	}
	if f.Category != "" {
		filter["category"] = f.Category
	}
	if !f.From.IsZero() {
		filter["date"] = bson.M{"$gte": f.From, "$lt": f.To}
	}
	if f.Query != "" {
		filter["$text"] = bson.M{"$search": f.Query}
	}
	return filter
}

func (r *mongoScheduleRepository) FindAll(ctx context.Context, f model.ScheduleFilter) ([]*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().
		SetLimit(int64(f.Limit)).
		SetSkip(f.Offset).
		SetSort(bson.D{{Key: "date", Value: -1}, {Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, buildListFilter(f), opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer cursor.Close(ctx)

	schedules := []*model.Schedule{}
	if err = cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("failed to decode schedules: %w", err)
	}
	return schedules, nil
}

func (r *mongoScheduleRepository) Count(ctx context.Context, f model.ScheduleFilter) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	count, err := r.collection.CountDocuments(ctx, buildListFilter(f))
	if err != nil {
		return 0, fmt.Errorf("failed to count schedules: %w", err)
	}
	return count, nil
}

func (r *mongoScheduleRepository) FindScheduledInRange(ctx context.Context, from, to time.Time) ([]*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := liveFilter()
	filter["status"] = model.StatusScheduled
	filter["date"] = bson.M{"$gte": from, "$lt": to}

	opts := options.Find().
		SetSort(bson.D{{Key: "neighborhood_name", Value: 1}, {Key: "address_text", Value: 1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query scheduled collections: %w", err)
	}
	defer cursor.Close(ctx)

	schedules := []*model.Schedule{}
	if err = cursor.All(ctx, &schedules); err != nil {
		return nil, fmt.Errorf("failed to decode scheduled collections: %w", err)
	}
	return schedules, nil
}

func (r *mongoScheduleRepository) CountLive(ctx context.Context, category string, from, to time.Time) (int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := liveFilter()
	filter["category"] = category
	filter["date"] = bson.M{"$gte": from, "$lt": to}

	count, err := r.collection.CountDocuments(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to count schedules for %s: %w", category, err)
	}
	return count, nil
}

func (r *mongoScheduleRepository) ExistsLiveForAddress(ctx context.Context, addressID primitive.ObjectID, category string, from, to time.Time) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	filter := liveFilter()
	filter["address_id"] = addressID
	filter["category"] = category
	filter["date"] = bson.M{"$gte": from, "$lt": to}

	count, err := r.collection.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("failed to check monthly bookings: %w", err)
	}
	return count > 0, nil
}

func (r *mongoScheduleRepository) CountByCivilDate(ctx context.Context, category string, from, to time.Time, timezone string) ([]DayCount, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	match := liveFilter()
	match["category"] = category
	match["date"] = bson.M{"$gte": from, "$lt": to}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id": bson.M{"$dateToString": bson.M{
				"format":   "%Y-%m-%d",
				"date":     "$date",
				"timezone": timezone,
			}},
			"count": bson.M{"$sum": 1},
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate daily counts: %w", err)
	}
	defer cursor.Close(ctx)

	var counts []DayCount
	if err = cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode daily counts: %w", err)
	}
	return counts, nil
}

func (r *mongoScheduleRepository) CountByCategoryAndStatus(ctx context.Context, from, to time.Time) ([]CategoryStatusCount, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	match := liveFilter()
	match["date"] = bson.M{"$gte": from, "$lt": to}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{
			"_id":   bson.M{"category": "$category", "status": "$status"},
			"count": bson.M{"$sum": 1},
		}}},
		{{Key: "$project", Value: bson.M{
			"_id":      0,
			"category": "$_id.category",
			"status":   "$_id.status",
			"count":    1,
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate category counts: %w", err)
	}
	defer cursor.Close(ctx)

	var counts []CategoryStatusCount
	if err = cursor.All(ctx, &counts); err != nil {
		return nil, fmt.Errorf("failed to decode category counts: %w", err)
	}
	return counts, nil
}

func (r *mongoScheduleRepository) CountTotals(ctx context.Context) (int64, int64, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	total, err := r.collection.CountDocuments(ctx, liveFilter())
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count schedules: %w", err)
	}

	completedFilter := liveFilter()
	completedFilter["status"] = model.StatusCompleted
	completed, err := r.collection.CountDocuments(ctx, completedFilter)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to count completed schedules: %w", err)
	}
	return total, completed, nil
}

func (r *mongoScheduleRepository) MarkCompleted(ctx context.Context, protocol, photoRef, actorID string, at time.Time) (*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := liveFilter()
	filter["protocol"] = protocol
	filter["status"] = model.StatusScheduled

	set := bson.M{
		"status":       model.StatusCompleted,
		"completed_at": at,
		"updated_at":   at,
	}
	if photoRef != "" {
		set["completion_photo_ref"] = photoRef
	}
	if actorID != "" {
		set["completed_by"] = actorID
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var sc model.Schedule
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&sc)
	if err == nil {
		return &sc, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("failed to complete schedule: %w", err)
	}

	// Either the record does not exist or it is no longer Scheduled.
	existing, findErr := r.FindByProtocol(ctx, protocol)
	if findErr != nil {
		return nil, findErr
	}
	if existing.IsCompleted() {
		return nil, fmt.Errorf("%w: %s", scheduleserrors.ErrAlreadyCompleted, protocol)
	}
	return nil, fmt.Errorf("failed to complete schedule %s: status %q", protocol, existing.Status)
}

func (r *mongoScheduleRepository) SoftDelete(ctx context.Context, protocol string, at time.Time) (*model.Schedule, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	filter := liveFilter()
	filter["protocol"] = protocol

	update := bson.M{
		"$set":   bson.M{"deleted_at": at, "updated_at": at},
		"$unset": bson.M{"monthly_key": ""},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.Before)

	var sc model.Schedule
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&sc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", scheduleserrors.ErrNotFound, protocol)
		}
		return nil, fmt.Errorf("failed to delete schedule: %w", err)
	}
	return &sc, nil
}
