package audit

import (
	"context"

	"recolha/pkg/kafka"
	"recolha/pkg/model"
)

const (
	SinkKafka     = "kafka"
	EventSource   = "recolha"
	SchemaVersion = "1"
)

// Publisher is satisfied by *kafka.Producer.
type Publisher interface {
	Publish(ctx context.Context, msg kafka.Message) error
}

// KafkaRecorder publishes audit events keyed by protocol so every change to
// one schedule lands on the same partition in order.
type KafkaRecorder struct {
	publisher Publisher
}

func NewKafkaRecorder(publisher Publisher) *KafkaRecorder {
	return &KafkaRecorder{publisher: publisher}
}

func (r *KafkaRecorder) Record(ctx context.Context, event *model.AuditEvent) error {
	ensureEventID(event)

	msg, err := kafka.NewMessage().
		WithKey(event.Protocol).
		WithValue(event).
		WithTimestamp(event.CreatedAt).
		WithEventID(event.EventID).
		WithEventType(event.Action).
		WithCorrelationID(event.RequestID).
		WithSchemaVersion(SchemaVersion).
		WithSource(EventSource).
		Build()
	if err != nil {
		return err
	}

	return r.publisher.Publish(ctx, msg)
}
