package kafka_middleware

import (
	"context"
	"time"

	"recolha/pkg/kafka"
	"recolha/pkg/metrics"
)

// MetricsProducerMiddleware records publish outcomes and latency per topic.
func MetricsProducerMiddleware(m *metrics.Metrics) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()
		err := next(ctx, msg)
		m.EventPublished(msg.Topic, err, time.Since(start))
		return err
	}
}
