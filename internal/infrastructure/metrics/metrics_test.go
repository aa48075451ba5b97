package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/internal/infrastructure/messaging"
)

// counterValue sums a counter family, optionally restricted to one label value.
func counterValue(t *testing.T, reg *prometheus.Registry, name, label, value string) float64 {
	t.Helper()

	families, err := reg.Gather()
	require.NoError(t, err)

	var total float64
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" {
				matched := false
				for _, lp := range m.GetLabel() {
					if lp.GetName() == label && lp.GetValue() == value {
						matched = true
					}
				}
				if !matched {
					continue
				}
			}
			total += m.GetCounter().GetValue()
		}
	}
	return total
}

func TestHandleEvent_DomainCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	require.NoError(t, c.HandleEvent(shared.NewMatchEvent(shared.EventMatchAccepted, "m1", "a", "b", "Math", "accepted")))
	require.NoError(t, c.HandleEvent(shared.NewMatchEvent(shared.EventMatchCompleted, "m1", "a", "b", "Math", "completed")))
	require.NoError(t, c.HandleEvent(shared.NewRatingSubmittedEvent("r1", "m1", "a", "b", 5, 5, 1)))
	require.NoError(t, c.HandleEvent(shared.NewPointsAwardedEvent("b", "match_accepted", "m1", 10, 10)))
	require.NoError(t, c.HandleEvent(shared.NewPointsAwardedEvent("b", "rating_bonus", "r1", 10, 20)))
	require.NoError(t, c.HandleEvent(shared.NewNotificationFailedEvent("b", "match_request", errors.New("down"))))

	assert.Equal(t, 1.0, counterValue(t, reg, "studymatch_match_transitions_total", "status", "accepted"))
	assert.Equal(t, 2.0, counterValue(t, reg, "studymatch_match_transitions_total", "", ""))
	assert.Equal(t, 1.0, counterValue(t, reg, "studymatch_ratings_submitted_total", "score", "5"))
	assert.Equal(t, 2.0, counterValue(t, reg, "studymatch_point_awards_total", "", ""))
	assert.Equal(t, 20.0, counterValue(t, reg, "studymatch_points_awarded_total", "", ""))
	assert.Equal(t, 1.0, counterValue(t, reg, "studymatch_notification_failures_total", "kind", "match_request"))
}

func TestRegister_ReceivesBusEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	bus := messaging.NewInMemoryEventBus(messaging.Config{Observer: c})
	defer bus.Close()
	require.NoError(t, c.Register(bus))

	require.NoError(t, bus.Publish(shared.NewMatchEvent(shared.EventMatchRequested, "m1", "a", "b", "Math", "pending")))

	assert.Equal(t, 1.0, counterValue(t, reg, "studymatch_match_transitions_total", "status", "pending"))

	families, err := reg.Gather()
	require.NoError(t, err)
	found := false
	for _, mf := range families {
		if mf.GetName() == "studymatch_event_handler_duration_seconds" {
			found = true
		}
	}
	assert.True(t, found, "bus observer should record handler latency")
}

func TestObserveHandler_CountsErrors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ObserveHandler(shared.EventPointsAwarded, time.Millisecond, nil)
	c.ObserveHandler(shared.EventPointsAwarded, time.Millisecond, errors.New("boom"))

	assert.Equal(t, 1.0, counterValue(t, reg, "studymatch_event_handler_errors_total", "event_type", string(shared.EventPointsAwarded)))
}

func TestRecordReconcile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordReconcile(3, 1, nil)
	c.RecordReconcile(0, 0, errors.New("store down"))

	assert.Equal(t, 1.0, counterValue(t, reg, "studymatch_reconcile_runs_total", "result", "ok"))
	assert.Equal(t, 1.0, counterValue(t, reg, "studymatch_reconcile_runs_total", "result", "error"))
	assert.Equal(t, 3.0, counterValue(t, reg, "studymatch_reconcile_awards_applied_total", "", ""))
	assert.Equal(t, 1.0, counterValue(t, reg, "studymatch_reconcile_awards_failed_total", "", ""))
}

func TestMiddleware_LabelsByRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	r := chi.NewRouter()
	r.Use(c.Middleware)
	r.Get("/matches/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/matches/"+id, nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	}

	assert.Equal(t, 3.0, counterValue(t, reg, "studymatch_http_requests_total", "route", "/matches/{id}"))
	assert.Equal(t, 3.0, counterValue(t, reg, "studymatch_http_requests_total", "status_code", "404"))
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordReconcile(1, 0, nil)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "studymatch_reconcile_runs_total")
}
