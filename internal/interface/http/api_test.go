package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/study-match/internal/app"
	"github.com/campus-hub/study-match/internal/infrastructure/messaging"
	"github.com/campus-hub/study-match/internal/infrastructure/metrics"
	"github.com/campus-hub/study-match/internal/infrastructure/persistence/memory"
	"github.com/campus-hub/study-match/internal/interface/http/handlers"
	"github.com/campus-hub/study-match/pkg/logger"
	"github.com/campus-hub/study-match/pkg/retry"
)

type testAPI struct {
	server *Server
	tokens *handlers.TokenManager
}

func newTestAPI(t *testing.T, mutate func(*Config, *Dependencies)) *testAPI {
	t.Helper()

	log := logger.Nop()
	store := memory.New()
	bus := messaging.NewInMemoryEventBus(messaging.Config{Logger: log})
	t.Cleanup(func() { _ = bus.Close() })

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)
	require.NoError(t, collector.Register(bus))

	h := app.Build(app.MemoryRepositories(store), app.Options{
		Publisher: bus,
		Retrier:   retry.New(retry.WithAttempts(1)),
		Logger:    log,
	})

	tokens := handlers.NewTokenManager("test-secret", "study-match", time.Hour)
	cfg := DefaultConfig()
	cfg.RateLimitPerMinute = 0
	deps := DependenciesFrom(h)
	deps.Tokens = tokens
	deps.Metrics = collector
	deps.Gatherer = reg
	deps.Logger = log
	deps.OpenProducerRoutes = true
	if mutate != nil {
		mutate(&cfg, &deps)
	}
	return &testAPI{server: NewServer(cfg, deps), tokens: tokens}
}

type apiResponse struct {
	Success bool               `json:"success"`
	Data    json.RawMessage    `json:"data"`
	Error   *handlers.APIError `json:"error"`
}

func (a *testAPI) do(t *testing.T, method, path, user string, body interface{}) (int, apiResponse) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := a.tokens.Issue(user)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	a.server.Handler().ServeHTTP(rec, req)

	var out apiResponse
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec.Code, out
}

func decodeData[T any](t *testing.T, r apiResponse) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(r.Data, &v))
	return v
}

func TestAPI_MatchLifecycle(t *testing.T) {
	api := newTestAPI(t, nil)

	code, res := api.do(t, http.MethodPost, "/api/v1/matches", "alice", map[string]string{
		"helper_id": "bob",
		"subject":   "Calculus",
		"message":   "derivatives please",
	})
	require.Equal(t, http.StatusCreated, code, res.Error)
	created := decodeData[struct {
		MatchID string `json:"match_id"`
		Status  string `json:"status"`
	}](t, res)
	assert.Equal(t, "pending", created.Status)
	id := created.MatchID

	code, res = api.do(t, http.MethodGet, "/api/v1/matches", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	listed := decodeData[struct {
		Matches []struct {
			ID          string `json:"id"`
			Role        string `json:"role"`
			OtherUserID string `json:"other_user_id"`
		} `json:"matches"`
	}](t, res)
	require.Len(t, listed.Matches, 1)
	assert.Equal(t, "helping", listed.Matches[0].Role)
	assert.Equal(t, "alice", listed.Matches[0].OtherUserID)

	code, res = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/respond", "bob", map[string]string{"decision": "accept"})
	require.Equal(t, http.StatusOK, code, res.Error)
	assert.Equal(t, "accepted", decodeData[map[string]string](t, res)["status"])

	when := time.Date(2030, 5, 1, 15, 0, 0, 0, time.UTC)
	code, res = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/schedule", "alice", map[string]interface{}{
		"scheduled_time": when,
		"meeting_link":   "https://meet.example/abc",
	})
	require.Equal(t, http.StatusCreated, code, res.Error)
	scheduled := decodeData[struct {
		Session sessionView `json:"session"`
	}](t, res)
	assert.Equal(t, id, scheduled.Session.MatchID)
	assert.True(t, when.Equal(scheduled.Session.ScheduledTime))
	assert.Equal(t, "scheduled", string(scheduled.Session.Status))

	code, _ = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/complete", "alice", nil)
	require.Equal(t, http.StatusNoContent, code)
	code, _ = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/complete", "alice", nil)
	require.Equal(t, http.StatusNoContent, code, "complete is idempotent")

	code, res = api.do(t, http.MethodGet, "/api/v1/matches/"+id+"/can-rate", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.True(t, decodeData[map[string]bool](t, res)["can_rate"])

	code, res = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/ratings", "alice", map[string]interface{}{
		"rated_user_id": "bob",
		"score":         5,
		"feedback":      "clear and patient",
	})
	require.Equal(t, http.StatusCreated, code, res.Error)
	rated := decodeData[struct {
		NewReputation float64 `json:"new_reputation"`
		BonusPoints   int     `json:"bonus_points"`
	}](t, res)
	assert.InDelta(t, 5.0, rated.NewReputation, 1e-9)
	assert.Equal(t, 10, rated.BonusPoints)

	code, res = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/ratings", "alice", map[string]interface{}{
		"rated_user_id": "bob",
		"score":         4,
	})
	require.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_rating", res.Error.Code)

	code, res = api.do(t, http.MethodGet, "/api/v1/matches/"+id+"/can-rate", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decodeData[map[string]bool](t, res)["can_rate"])

	code, res = api.do(t, http.MethodGet, "/api/v1/leaderboard?limit=5", "", nil)
	require.Equal(t, http.StatusOK, code)
	board := decodeData[struct {
		Entries []struct {
			Rank   int    `json:"rank"`
			UserID string `json:"user_id"`
			Points int    `json:"points"`
		} `json:"entries"`
	}](t, res)
	require.NotEmpty(t, board.Entries)
	assert.Equal(t, "bob", board.Entries[0].UserID)
	assert.Equal(t, 20, board.Entries[0].Points)

	code, res = api.do(t, http.MethodGet, "/api/v1/users/bob/ratings", "", nil)
	require.Equal(t, http.StatusOK, code)
	ratings := decodeData[struct {
		TotalRatings int `json:"total_ratings"`
	}](t, res)
	assert.Equal(t, 1, ratings.TotalRatings)
}

func TestAPI_ErrorMapping(t *testing.T) {
	api := newTestAPI(t, nil)

	code, res := api.do(t, http.MethodPost, "/api/v1/matches", "", map[string]string{"helper_id": "bob", "subject": "Physics"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, "unauthenticated", res.Error.Code)

	code, res = api.do(t, http.MethodPost, "/api/v1/matches", "alice", map[string]string{"helper_id": "alice", "subject": "Physics"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "validation", res.Error.Code)

	code, res = api.do(t, http.MethodPost, "/api/v1/matches", "alice", map[string]string{"helper_id": "bob", "subject": "Physics"})
	require.Equal(t, http.StatusCreated, code)
	id := decodeData[map[string]string](t, res)["match_id"]

	code, res = api.do(t, http.MethodPost, "/api/v1/matches", "alice", map[string]string{"helper_id": "bob", "subject": "physics "})
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "duplicate_request", res.Error.Code)

	code, res = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/respond", "alice", map[string]string{"decision": "accept"})
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", res.Error.Code)

	code, res = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/complete", "alice", nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "invalid_transition", res.Error.Code)

	code, res = api.do(t, http.MethodPost, "/api/v1/matches/missing/respond", "bob", map[string]string{"decision": "accept"})
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", res.Error.Code)

	code, res = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/respond", "bob", map[string]string{"verdict": "yes"})
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "bad_request", res.Error.Code)

	code, res = api.do(t, http.MethodGet, "/api/v1/nowhere", "bob", nil)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "not_found", res.Error.Code)
}

func TestAPI_OutsiderCannotCompleteMatch(t *testing.T) {
	api := newTestAPI(t, nil)

	code, res := api.do(t, http.MethodPost, "/api/v1/matches", "alice", map[string]string{"helper_id": "bob", "subject": "Biology"})
	require.Equal(t, http.StatusCreated, code)
	id := decodeData[map[string]string](t, res)["match_id"]
	code, _ = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/respond", "bob", map[string]string{"decision": "accept"})
	require.Equal(t, http.StatusOK, code)

	code, res = api.do(t, http.MethodPost, "/api/v1/matches/"+id+"/complete", "mallory", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", res.Error.Code)

	code, res = api.do(t, http.MethodGet, "/api/v1/matches", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	listed := decodeData[struct {
		Matches []struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"matches"`
	}](t, res)
	require.Len(t, listed.Matches, 1)
	assert.Equal(t, "accepted", listed.Matches[0].Status)

	code, res = api.do(t, http.MethodGet, "/api/v1/matches/"+id+"/can-rate", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decodeData[map[string]bool](t, res)["can_rate"])
}

func TestAPI_InvalidTokenRejected(t *testing.T) {
	api := newTestAPI(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/matches", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec := httptest.NewRecorder()
	api.server.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "unauthenticated")
}

func TestAPI_OffersAndCandidates(t *testing.T) {
	api := newTestAPI(t, nil)

	code, res := api.do(t, http.MethodPut, "/api/v1/offers", "bob", map[string]interface{}{
		"subject":     "Linear Algebra",
		"role":        "teach",
		"proficiency": "advanced",
		"urgency":     "high",
		"tags":        []string{"exam"},
	})
	require.Equal(t, http.StatusOK, code, res.Error)
	bobOffer := decodeData[offerView](t, res)
	assert.Equal(t, []string{"exam"}, bobOffer.Tags)

	code, res = api.do(t, http.MethodPut, "/api/v1/offers", "alice", map[string]interface{}{
		"subject":     "linear algebra",
		"role":        "learn",
		"proficiency": "beginner",
		"urgency":     "high",
	})
	require.Equal(t, http.StatusOK, code, res.Error)

	code, res = api.do(t, http.MethodGet, "/api/v1/candidates", "alice", nil)
	require.Equal(t, http.StatusOK, code)
	found := decodeData[struct {
		Candidates []candidateView `json:"candidates"`
	}](t, res)
	require.Len(t, found.Candidates, 1)
	assert.Equal(t, "bob", found.Candidates[0].HelperID)
	assert.Equal(t, bobOffer.ID, found.Candidates[0].HelperOffer.ID)
	assert.Positive(t, found.Candidates[0].Score)

	code, res = api.do(t, http.MethodGet, "/api/v1/candidates", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Empty(t, decodeData[struct {
		Candidates []candidateView `json:"candidates"`
	}](t, res).Candidates)

	code, res = api.do(t, http.MethodGet, "/api/v1/offers?role=teach", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decodeData[struct {
		Offers []offerView `json:"offers"`
	}](t, res).Offers, 1)

	code, res = api.do(t, http.MethodDelete, "/api/v1/offers/"+bobOffer.ID, "alice", nil)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", res.Error.Code)

	code, _ = api.do(t, http.MethodDelete, "/api/v1/offers/"+bobOffer.ID, "bob", nil)
	assert.Equal(t, http.StatusNoContent, code)
}

func TestAPI_NotificationsAndProducers(t *testing.T) {
	api := newTestAPI(t, nil)

	code, _ := api.do(t, http.MethodPost, "/api/v1/matches", "alice", map[string]string{"helper_id": "bob", "subject": "Chemistry"})
	require.Equal(t, http.StatusCreated, code)

	code, res := api.do(t, http.MethodGet, "/api/v1/notifications?unread=true", "bob", nil)
	require.Equal(t, http.StatusOK, code)
	inbox := decodeData[struct {
		Notifications []notificationView `json:"notifications"`
		UnreadCount   int                `json:"unread_count"`
	}](t, res)
	require.Len(t, inbox.Notifications, 1)
	assert.Equal(t, "match_request", string(inbox.Notifications[0].Kind))
	assert.Equal(t, 1, inbox.UnreadCount)

	code, res = api.do(t, http.MethodPost, "/api/v1/notifications/read", "bob", map[string]bool{"all": true})
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, decodeData[map[string]int](t, res)["updated"])

	award := map[string]string{"user_id": "alice", "reason": "forum_post", "source_id": "post-1"}
	code, res = api.do(t, http.MethodPost, "/api/v1/internal/points", "forum-service", award)
	require.Equal(t, http.StatusOK, code, res.Error)
	first := decodeData[struct {
		Applied  bool `json:"applied"`
		Amount   int  `json:"amount"`
		NewTotal int  `json:"new_total"`
	}](t, res)
	assert.True(t, first.Applied)
	assert.Equal(t, 5, first.Amount)

	code, res = api.do(t, http.MethodPost, "/api/v1/internal/points", "forum-service", award)
	require.Equal(t, http.StatusOK, code)
	assert.False(t, decodeData[map[string]interface{}](t, res)["applied"].(bool))

	code, res = api.do(t, http.MethodPost, "/api/v1/internal/points", "forum-service", map[string]string{
		"user_id": "alice", "reason": "match_accepted", "source_id": "m-1",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, res = api.do(t, http.MethodPost, "/api/v1/internal/notifications", "chat-service", map[string]string{
		"user_id": "alice", "kind": "new_message", "title": "New message", "message": "hi",
	})
	require.Equal(t, http.StatusCreated, code, res.Error)

	code, _ = api.do(t, http.MethodPost, "/api/v1/internal/notifications", "chat-service", map[string]string{
		"user_id": "alice", "kind": "match_accepted", "title": "x", "message": "y",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	code, _ = api.do(t, http.MethodPost, "/api/v1/internal/points", "", award)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestAPI_RateLimitPerCaller(t *testing.T) {
	api := newTestAPI(t, func(cfg *Config, _ *Dependencies) {
		cfg.RateLimitPerMinute = 1
		cfg.RateLimitBurst = 1
	})
	t.Cleanup(func() { _ = api.server.Shutdown(context.Background()) })

	code, _ := api.do(t, http.MethodGet, "/api/v1/leaderboard", "alice", nil)
	assert.Equal(t, http.StatusOK, code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/leaderboard", nil)
	token, err := api.tokens.Issue("alice")
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	api.server.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	code, _ = api.do(t, http.MethodGet, "/api/v1/leaderboard", "bob", nil)
	assert.Equal(t, http.StatusOK, code, "buckets are per caller")
}

func TestAPI_HealthAndMetrics(t *testing.T) {
	checker := handlers.NewHealthChecker("test")
	checker.AddCheck("postgres", func(context.Context) error { return nil })
	checker.AddOptionalCheck("redis", func(context.Context) error { return errors.New("connection refused") })

	api := newTestAPI(t, func(_ *Config, deps *Dependencies) { deps.Health = checker })

	code, res := api.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, code)
	status := decodeData[handlers.HealthStatus](t, res)
	assert.True(t, status.Healthy)
	assert.False(t, status.Checks["redis"].Healthy)

	checker.AddCheck("postgres", func(context.Context) error { return errors.New("down") })
	code, _ = api.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)

	code, _ = api.do(t, http.MethodPost, "/api/v1/matches", "alice", map[string]string{"helper_id": "bob", "subject": "Art"})
	require.Equal(t, http.StatusCreated, code)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	api.server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `studymatch_match_transitions_total{status="pending"} 1`), body)
	assert.Contains(t, body, `route="/api/v1/matches/"`)
}

func TestAPI_ProducerRoutesRequireServiceKey(t *testing.T) {
	award := map[string]string{"user_id": "mallory", "reason": "resource_upload", "source_id": "r-1"}

	closed := newTestAPI(t, func(_ *Config, deps *Dependencies) { deps.OpenProducerRoutes = false })
	code, res := closed.do(t, http.MethodPost, "/api/v1/internal/points", "mallory", award)
	assert.Equal(t, http.StatusForbidden, code)
	assert.Equal(t, "unauthorized", res.Error.Code)

	code, res = closed.do(t, http.MethodGet, "/api/v1/leaderboard", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.NotContains(t, string(res.Data), "mallory")

	hash, err := handlers.HashServiceKey("resource-service-key")
	require.NoError(t, err)
	keyed := newTestAPI(t, func(_ *Config, deps *Dependencies) {
		deps.OpenProducerRoutes = false
		deps.ServiceKeyHashes = []string{hash}
	})

	post := func(key string) int {
		raw, err := json.Marshal(award)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodPost, "/api/v1/internal/points", bytes.NewReader(raw))
		req.Header.Set("Content-Type", "application/json")
		token, err := keyed.tokens.Issue("resource-service")
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
		if key != "" {
			req.Header.Set(handlers.ServiceKeyHeader, key)
		}
		rec := httptest.NewRecorder()
		keyed.server.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusForbidden, post(""))
	assert.Equal(t, http.StatusForbidden, post("guessed"))
	assert.Equal(t, http.StatusOK, post("resource-service-key"))
}

func TestAPI_ProducerRoutesCanBeDisabled(t *testing.T) {
	api := newTestAPI(t, func(_ *Config, deps *Dependencies) {
		deps.AwardPoints = nil
	})

	code, _ := api.do(t, http.MethodPost, "/api/v1/internal/points", "forum-service", map[string]string{
		"user_id": "alice", "reason": "forum_post", "source_id": "post-1",
	})
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = api.do(t, http.MethodPost, "/api/v1/internal/notifications", "chat-service", map[string]string{
		"user_id": "alice", "kind": "exam_reminder", "title": "Exam", "message": "tomorrow",
	})
	assert.Equal(t, http.StatusCreated, code)
}
