package repository

import (
	"context"
	"fmt"
	addresserrors "recolha/internal/addresses/errors"
	"recolha/pkg/config"
	"recolha/pkg/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const (
	CollectionName             = "Addresses"
	NeighborhoodCollectionName = "Neighborhoods"
)

// AddressRepository is a read-only view over the address registry. Addresses
// and neighborhoods are maintained elsewhere.
type AddressRepository interface {
	FindLive(ctx context.Context, id primitive.ObjectID) (*model.Address, error)
}

type mongoAddressRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoAddressRepository(cfg *config.Config) AddressRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoAddressRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

// FindLive resolves a non-deleted address together with the name of its
// neighborhood.
func (r *mongoAddressRepository) FindLive(ctx context.Context, id primitive.ObjectID) (*model.Address, error) {
	ctx, cancel := context.WithTimeout(ctx, r.readTimeout())
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": id, "deleted_at": nil}}},
		{{Key: "$limit", Value: 1}},
		{{Key: "$lookup", Value: bson.M{
			"from":         NeighborhoodCollectionName,
			"localField":   "neighborhood_id",
			"foreignField": "_id",
			"as":           "neighborhood",
		}}},
		{{Key: "$unwind", Value: bson.M{
			"path":                       "$neighborhood",
			"preserveNullAndEmptyArrays": true,
		}}},
		{{Key: "$project", Value: bson.M{
			"street":            1,
			"neighborhood_id":   1,
			"neighborhood_name": "$neighborhood.name",
		}}},
	}

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve address: %w", err)
	}
	defer cursor.Close(ctx)

	var found []model.Address
	if err = cursor.All(ctx, &found); err != nil {
		return nil, fmt.Errorf("failed to decode address: %w", err)
	}
	if len(found) == 0 {
		return nil, fmt.Errorf("%w: %s", addresserrors.ErrNotFound, id.Hex())
	}
	return &found[0], nil
}

func (r *mongoAddressRepository) readTimeout() time.Duration {
	if r.cfg.ReadTimeout > 0 {
		return r.cfg.ReadTimeout
	}
	return 5 * time.Second
}
