package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all prometheus metrics. A nil *Metrics is valid and records nothing.
type Metrics struct {
	HTTPRequests    *prometheus.CounterVec
	HTTPDuration    *prometheus.HistogramVec
	Submissions     *prometheus.CounterVec
	Completions     prometheus.Counter
	Deletions       prometheus.Counter
	AuditFailures   *prometheus.CounterVec
	RateLimited     prometheus.Counter
	ProtocolRetries prometheus.Counter
	EventsPublished *prometheus.CounterVec
	PublishDuration prometheus.Histogram
}

// NewMetrics registers the collectors on reg. Pass prometheus.DefaultRegisterer
// to expose them through promhttp.Handler.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "The total number of HTTP requests served",
		}, []string{"method", "status"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Time taken to serve HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_submissions_total",
			Help:      "Schedule submissions by category and outcome",
		}, []string{"category", "outcome"}),
		Completions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_completions_total",
			Help:      "The total number of completed collections",
		}),
		Deletions: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schedule_deletions_total",
			Help:      "The total number of soft-deleted schedules",
		}),
		AuditFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_failures_total",
			Help:      "Audit events that could not be recorded",
		}, []string{"sink"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_requests_total",
			Help:      "Requests rejected by the submission rate limiter",
		}),
		ProtocolRetries: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "protocol_collisions_total",
			Help:      "Protocol collisions that forced a regeneration",
		}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Events written to Kafka by topic and outcome",
		}, []string{"topic", "outcome"}),
		PublishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_publish_duration_seconds",
			Help:      "Time taken to write one event to Kafka",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) ObserveHTTP(method string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}

func (m *Metrics) Submission(category, outcome string) {
	if m == nil {
		return
	}
	m.Submissions.WithLabelValues(category, outcome).Inc()
}

func (m *Metrics) Completed() {
	if m == nil {
		return
	}
	m.Completions.Inc()
}

func (m *Metrics) Deleted() {
	if m == nil {
		return
	}
	m.Deletions.Inc()
}

func (m *Metrics) AuditFailed(sink string) {
	if m == nil {
		return
	}
	m.AuditFailures.WithLabelValues(sink).Inc()
}

func (m *Metrics) RateLimitHit() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) ProtocolCollision() {
	if m == nil {
		return
	}
	m.ProtocolRetries.Inc()
}

func (m *Metrics) EventPublished(topic string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.EventsPublished.WithLabelValues(topic, outcome).Inc()
	m.PublishDuration.Observe(elapsed.Seconds())
}
