package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"recolha/internal/migrations/mongo/validators"
	"recolha/pkg/logger"
)

const (
	SchedulesCollection = "Schedules"
	CapacityCollection  = "Capacity_buckets"
	AuditCollection     = "Audit_logs"
)

var (
	SchedulesIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "protocol", Value: 1}},
			Options: options.Index().SetName("protocol_unique").SetUnique(true),
		},
		{
			// Only live records carry monthly_key, so a soft delete frees the slot.
			Keys:    bson.D{{Key: "monthly_key", Value: 1}},
			Options: liveOnly(options.Index().SetName("monthly_key_unique").SetUnique(true)),
		},
		{Keys: bson.D{
			{Key: "date", Value: 1},
			{Key: "category", Value: 1},
			{Key: "status", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "address_id", Value: 1},
			{Key: "category", Value: 1},
			{Key: "date", Value: 1},
		}},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{
			Keys: bson.D{
				{Key: "address_text", Value: "text"},
				{Key: "requester_name", Value: "text"},
			},
			Options: options.Index().SetName("schedule_text").SetDefaultLanguage("portuguese"),
		},
	}

	CapacityIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "date", Value: 1}}},
	}

	AuditIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "event_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "protocol", Value: 1}, {Key: "created_at", Value: 1}}},
	}
)

func liveOnly(opts *options.IndexOptions) *options.IndexOptions {
	return opts.SetPartialFilterExpression(bson.M{"monthly_key": bson.M{"$exists": true}})
}

type collectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

var collections = []collectionDef{
	{Name: SchedulesCollection, Indexes: SchedulesIndexes, Validator: validators.ScheduleValidator},
	{Name: CapacityCollection, Indexes: CapacityIndexes, Validator: validators.CapacityBucketValidator},
	{Name: AuditCollection, Indexes: AuditIndexes, Validator: validators.AuditLogValidator},
}

// RunMigration creates the owned collections with their validators and
// indexes. It is safe to run repeatedly.
func RunMigration(ctx context.Context, client *mongo.Client, dbName string, log *logger.Logger) error {
	db := client.Database(dbName)
	log.Info("Running Mongo migrations", "database", dbName)

	for _, def := range collections {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection already exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	names, err := db.Collection(name).Indexes().CreateMany(ctx, models)
	if err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "indexes", names)
	return nil
}
