// Package audit records schedule state changes to one or more sinks.
package audit

import (
	"context"
	"errors"

	"recolha/pkg/logger"
	"recolha/pkg/metrics"
	"recolha/pkg/model"
)

type Recorder interface {
	Record(ctx context.Context, event *model.AuditEvent) error
}

// Sink names a recorder for metrics and logs.
type Sink struct {
	Name     string
	Recorder Recorder
}

// MultiRecorder fans an event out to every sink. Each sink is attempted even
// when an earlier one fails; the failures are joined.
type MultiRecorder struct {
	sinks   []Sink
	metrics *metrics.Metrics
	log     *logger.Logger
}

func NewMultiRecorder(m *metrics.Metrics, log *logger.Logger, sinks ...Sink) *MultiRecorder {
	return &MultiRecorder{
		sinks:   sinks,
		metrics: m,
		log:     log,
	}
}

func (r *MultiRecorder) Record(ctx context.Context, event *model.AuditEvent) error {
	ensureEventID(event)

	var errs []error
	for _, sink := range r.sinks {
		if err := sink.Recorder.Record(ctx, event); err != nil {
			r.metrics.AuditFailed(sink.Name)
			r.log.Error("Audit sink failed",
				"sink", sink.Name,
				"event_id", event.EventID,
				"action", event.Action,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
