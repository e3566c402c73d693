package testutil

import (
	"context"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const connectionTimeout = 10 * time.Second

// MongoHelper seeds and cleans the database the service under test uses.
type MongoHelper struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoHelper(t *testing.T, mongoURI, dbName string) *MongoHelper {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		t.Fatalf("failed to connect to MongoDB: %v", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		t.Fatalf("failed to ping MongoDB: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
		defer cancel()
		_ = client.Disconnect(ctx)
	})

	return &MongoHelper{Client: client, Database: client.Database(dbName)}
}

// CleanDatabase empties every collection the service writes to or reads from.
func (m *MongoHelper) CleanDatabase(t *testing.T) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	for _, name := range []string{"Schedules", "Capacity_buckets", "Audit_logs", "Addresses", "Neighborhoods"} {
		if _, err := m.Database.Collection(name).DeleteMany(ctx, bson.M{}); err != nil {
			t.Fatalf("failed to clean %s: %v", name, err)
		}
	}
}

// SeedAddress inserts a live address in a new neighborhood and returns its id.
func (m *MongoHelper) SeedAddress(t *testing.T, street, neighborhood string) primitive.ObjectID {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	nid := primitive.NewObjectID()
	if _, err := m.Database.Collection("Neighborhoods").InsertOne(ctx, bson.M{"_id": nid, "name": neighborhood}); err != nil {
		t.Fatalf("failed to seed neighborhood: %v", err)
	}

	aid := primitive.NewObjectID()
	if _, err := m.Database.Collection("Addresses").InsertOne(ctx, bson.M{"_id": aid, "street": street, "neighborhood_id": nid}); err != nil {
		t.Fatalf("failed to seed address: %v", err)
	}
	return aid
}

func (m *MongoHelper) CountAudit(t *testing.T, protocol string) int64 {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()

	n, err := m.Database.Collection("Audit_logs").CountDocuments(ctx, bson.M{"protocol": protocol})
	if err != nil {
		t.Fatalf("failed to count audit events: %v", err)
	}
	return n
}
