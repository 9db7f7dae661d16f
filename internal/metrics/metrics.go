// Package metrics exposes Prometheus counters for the booking flow.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"teukbyeolsil/internal/events"
)

// Metrics holds Prometheus metrics for reservations.
type Metrics struct {
	// ReservationsSubmitted counts stored reservations by initial status.
	ReservationsSubmitted *prometheus.CounterVec

	// Conflicts counts submissions refused for overlap, by detection stage.
	Conflicts *prometheus.CounterVec

	// Reviews counts staff decisions.
	Reviews *prometheus.CounterVec

	ReservationsDeleted prometheus.Counter

	// Archived counts reservations moved to the archive.
	Archived prometheus.Counter

	RateLimited prometheus.Counter

	HTTPDuration *prometheus.HistogramVec
}

// New creates metrics registered on reg. Use prometheus.DefaultRegisterer in
// the server and a fresh registry in tests.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReservationsSubmitted: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservations_submitted_total",
				Help:      "Total number of reservations stored",
			},
			[]string{"status"},
		),

		Conflicts: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_conflicts_total",
				Help:      "Total number of submissions refused because of an overlap",
			},
			[]string{"stage"},
		),

		Reviews: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservation_reviews_total",
				Help:      "Total number of approvals and rejections",
			},
			[]string{"decision"},
		),

		ReservationsDeleted: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservations_deleted_total",
				Help:      "Total number of reservations deleted by users",
			},
		),

		Archived: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reservations_archived_total",
				Help:      "Total number of reservations moved to the archive",
			},
		),

		RateLimited: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limited_total",
				Help:      "Total number of requests refused by a rate limiter",
			},
		),

		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   []float64{.005, .01, .05, .1, .5, 1, 2},
			},
			[]string{"method", "route", "code"},
		),
	}
}

// Subscribe keeps the counters in step with the event bus.
func (m *Metrics) Subscribe(bus *events.Bus) {
	bus.Subscribe(m.handle,
		events.ReservationSubmitted,
		events.ReservationApproved,
		events.ReservationRejected,
		events.ReservationDeleted,
		events.ConflictDetected,
		events.ArchiveCompleted,
		events.RateLimited,
	)
}

func (m *Metrics) handle(e events.Event) error {
	switch e.Type {
	case events.ReservationSubmitted:
		m.ReservationsSubmitted.WithLabelValues(e.Status).Add(float64(len(e.ReservationIDs)))
	case events.ReservationApproved:
		m.Reviews.WithLabelValues("approved").Inc()
	case events.ReservationRejected:
		m.Reviews.WithLabelValues("rejected").Inc()
	case events.ReservationDeleted:
		m.ReservationsDeleted.Inc()
	case events.ConflictDetected:
		m.Conflicts.WithLabelValues(e.Status).Inc()
	case events.ArchiveCompleted:
		m.Archived.Add(float64(e.Count))
	case events.RateLimited:
		m.RateLimited.Inc()
	}
	return nil
}

// ObserveHTTP records one request.
func (m *Metrics) ObserveHTTP(method, route, code string, elapsed time.Duration) {
	m.HTTPDuration.WithLabelValues(method, route, code).Observe(elapsed.Seconds())
}
