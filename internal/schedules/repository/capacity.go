package repository

import (
	"context"
	"fmt"
	"recolha/pkg/config"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CapacityCollectionName = "Capacity_buckets"

// CapacityBucket counts live bookings of one category on one civil date. It is
// the only place daily capacity is enforced atomically.
type CapacityBucket struct {
	ID        string    `bson:"_id"`
	Category  string    `bson:"category"`
	Date      string    `bson:"date"`
	Count     int64     `bson:"count"`
	CreatedAt time.Time `bson:"created_at"`
	UpdatedAt time.Time `bson:"updated_at"`
}

type CapacityRepository interface {
	// Reserve takes one unit of capacity for category on date if fewer than
	// limit are taken. A bucket that does not exist yet starts at seed.
	Reserve(ctx context.Context, category, date string, limit int, seed int64) (bool, error)
	// Release gives one unit back. It never drops a bucket below zero.
	Release(ctx context.Context, category, date string) error
}

type mongoCapacityRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoCapacityRepository(cfg *config.Config) CapacityRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoCapacityRepository{
		cfg:        cfg,
		collection: db.Collection(CapacityCollectionName),
	}
}

func BucketID(category, date string) string {
	return category + "|" + date
}

func (r *mongoCapacityRepository) Reserve(ctx context.Context, category, date string, limit int, seed int64) (bool, error) {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	id := BucketID(category, date)
	now := time.Now().UTC()

	seedUpdate := bson.M{"$setOnInsert": bson.M{
		"category":   category,
		"date":       date,
		"count":      seed,
		"created_at": now,
		"updated_at": now,
	}}
	_, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, seedUpdate, options.Update().SetUpsert(true))
	// Two concurrent upserts of the same _id: the loser sees a duplicate key
	// and the bucket exists either way.
	if err != nil && !mongo.IsDuplicateKeyError(err) {
		return false, fmt.Errorf("failed to seed capacity bucket %s: %w", id, err)
	}

	filter := bson.M{"_id": id, "count": bson.M{"$lt": limit}}
	update := bson.M{
		"$inc": bson.M{"count": 1},
		"$set": bson.M{"updated_at": now},
	}
	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, fmt.Errorf("failed to reserve capacity in %s: %w", id, err)
	}
	return result.ModifiedCount == 1, nil
}

func (r *mongoCapacityRepository) Release(ctx context.Context, category, date string) error {
	ctx, cancel := withTimeout(ctx, r.cfg.WriteTimeout)
	defer cancel()

	id := BucketID(category, date)
	filter := bson.M{"_id": id, "count": bson.M{"$gt": 0}}
	update := bson.M{
		"$inc": bson.M{"count": -1},
		"$set": bson.M{"updated_at": time.Now().UTC()},
	}
	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return fmt.Errorf("failed to release capacity in %s: %w", id, err)
	}
	return nil
}
