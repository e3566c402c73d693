package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"

	"recolha/pkg/config"
	"recolha/pkg/model"
)

const (
	CollectionName = "Audit_logs"
	SinkMongo      = "mongo"

	defaultWriteTimeout = 5 * time.Second
)

// MongoRecorder appends audit events to the Audit_logs collection.
type MongoRecorder struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoRecorder(cfg *config.Config) *MongoRecorder {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &MongoRecorder{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *MongoRecorder) Record(ctx context.Context, event *model.AuditEvent) error {
	ctx, cancel := context.WithTimeout(ctx, r.writeTimeout())
	defer cancel()

	ensureEventID(event)
	if _, err := r.collection.InsertOne(ctx, event); err != nil {
		return fmt.Errorf("failed to insert audit event %s: %w", event.EventID, err)
	}
	return nil
}

func (r *MongoRecorder) writeTimeout() time.Duration {
	if r.cfg.WriteTimeout > 0 {
		return r.cfg.WriteTimeout
	}
	return defaultWriteTimeout
}

func ensureEventID(event *model.AuditEvent) {
	if event.EventID == "" {
		event.EventID = uuid.New().String()
	}
}
