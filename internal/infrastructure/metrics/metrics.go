// Package metrics exposes Prometheus metrics for the matching service.
// Domain counters are fed from the event bus; HTTP and worker metrics are
// recorded directly.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/internal/infrastructure/messaging"
)

const namespace = "studymatch"

// Collector records service metrics on a Prometheus registry.
type Collector struct {
	matchTransitions     *prometheus.CounterVec
	sessionTransitions   *prometheus.CounterVec
	ratings              *prometheus.CounterVec
	pointAwards          *prometheus.CounterVec
	pointsAwarded        *prometheus.CounterVec
	notificationFailures *prometheus.CounterVec

	handlerDuration *prometheus.HistogramVec
	handlerErrors   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	reconcileRuns    *prometheus.CounterVec
	reconcileApplied prometheus.Counter
	reconcileFailed  prometheus.Counter
}

var _ messaging.Observer = (*Collector)(nil)

// NewCollector creates a Collector and registers its metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		matchTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "match_transitions_total",
			Help:      "Match status changes by target status.",
		}, []string{"status"}),
		sessionTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "session_transitions_total",
			Help:      "Study session status changes by target status.",
		}, []string{"status"}),
		ratings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratings_submitted_total",
			Help:      "Submitted ratings by score.",
		}, []string{"score"}),
		pointAwards: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "point_awards_total",
			Help:      "Applied point awards by reason.",
		}, []string{"reason"}),
		pointsAwarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "points_awarded_total",
			Help:      "Sum of awarded points by reason.",
		}, []string{"reason"}),
		notificationFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notification_failures_total",
			Help:      "Notifications that could not be stored, by kind.",
		}, []string{"kind"}),
		handlerDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_handler_duration_seconds",
			Help:      "Event handler latency by event type.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"event_type"}),
		handlerErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_handler_errors_total",
			Help:      "Event handler failures by event type.",
		}, []string{"event_type"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by method and route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		reconcileRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_runs_total",
			Help:      "Award reconciliation runs by result.",
		}, []string{"result"}),
		reconcileApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_awards_applied_total",
			Help:      "Awards applied by reconciliation that the request path missed.",
		}),
		reconcileFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_awards_failed_total",
			Help:      "Awards reconciliation could not apply.",
		}),
	}

	reg.MustRegister(
		c.matchTransitions,
		c.sessionTransitions,
		c.ratings,
		c.pointAwards,
		c.pointsAwarded,
		c.notificationFailures,
		c.handlerDuration,
		c.handlerErrors,
		c.httpRequests,
		c.httpLatency,
		c.reconcileRuns,
		c.reconcileApplied,
		c.reconcileFailed,
	)

	return c
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// HandleEvent updates counters from a domain event. Unknown events are ignored.
func (c *Collector) HandleEvent(event shared.Event) error {
	switch e := event.(type) {
	case shared.MatchEvent:
		c.matchTransitions.WithLabelValues(e.Status).Inc()
	case shared.SessionEvent:
		c.sessionTransitions.WithLabelValues(e.Status).Inc()
	case shared.RatingSubmittedEvent:
		c.ratings.WithLabelValues(strconv.Itoa(e.Score)).Inc()
	case shared.PointsAwardedEvent:
		c.pointAwards.WithLabelValues(e.Reason).Inc()
		c.pointsAwarded.WithLabelValues(e.Reason).Add(float64(e.Amount))
	case shared.NotificationFailedEvent:
		c.notificationFailures.WithLabelValues(e.Kind).Inc()
	}
	return nil
}

// Register subscribes the collector to every event on the bus.
func (c *Collector) Register(bus shared.EventSubscriber) error {
	return bus.SubscribeAll(c.HandleEvent)
}

// ObserveHandler implements messaging.Observer.
func (c *Collector) ObserveHandler(eventType shared.EventType, duration time.Duration, err error) {
	c.handlerDuration.WithLabelValues(string(eventType)).Observe(duration.Seconds())
	if err != nil {
		c.handlerErrors.WithLabelValues(string(eventType)).Inc()
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WORKER
// ══════════════════════════════════════════════════════════════════════════════

// RecordReconcile records one reconciliation run.
func (c *Collector) RecordReconcile(applied, failed int, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	c.reconcileRuns.WithLabelValues(result).Inc()
	c.reconcileApplied.Add(float64(applied))
	c.reconcileFailed.Add(float64(failed))
}

// ══════════════════════════════════════════════════════════════════════════════
// HTTP
// ══════════════════════════════════════════════════════════════════════════════

// Middleware records request count and latency labelled by the chi route
// pattern, so path parameters do not explode cardinality.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		c.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.httpLatency.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

// Handler returns the Prometheus scrape handler.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
