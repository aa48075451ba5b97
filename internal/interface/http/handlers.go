package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/campus-hub/study-match/internal/application/command"
	"github.com/campus-hub/study-match/internal/application/query"
	"github.com/campus-hub/study-match/internal/domain/identity"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/internal/interface/http/handlers"
	"github.com/campus-hub/study-match/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH
// ══════════════════════════════════════════════════════════════════════════════

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health == nil {
		handlers.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"uptime": s.Uptime().Round(time.Second).String(),
		})
		return
	}
	status := s.deps.Health.Check(r.Context())
	code := http.StatusOK
	if !status.Healthy {
		code = http.StatusServiceUnavailable
	}
	handlers.WriteJSON(w, code, status)
}

func (s *Server) handleLive(w http.ResponseWriter, _ *http.Request) {
	handlers.WriteJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCHING
// ══════════════════════════════════════════════════════════════════════════════

type candidateView struct {
	HelperID         string                `json:"helper_id"`
	HelperName       string                `json:"helper_name,omitempty"`
	University       string                `json:"university,omitempty"`
	Subject          string                `json:"subject"`
	Score            int                   `json:"score"`
	Quality          matching.MatchQuality `json:"quality"`
	HelperReputation float64               `json:"helper_reputation"`
	HelperRatings    int                   `json:"helper_ratings"`
	LearnerOffer     offerView             `json:"learner_offer"`
	HelperOffer      offerView             `json:"helper_offer"`
}

func (s *Server) handleFindCandidates(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := s.deps.FindCandidates.Handle(r.Context(), query.FindCandidatesQuery{
		LearnerID:  callerID(r),
		Subject:    q.Get("subject"),
		University: q.Get("university"),
		Urgency:    matching.Urgency(q.Get("urgency")),
		Limit:      intParam(r, "limit", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	out := make([]candidateView, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		out = append(out, candidateView{
			HelperID:         c.HelperID,
			HelperName:       c.HelperName,
			University:       c.University,
			Subject:          c.Subject,
			Score:            c.Score,
			Quality:          c.Quality,
			HelperReputation: c.HelperReputation,
			HelperRatings:    c.HelperRatings,
			LearnerOffer:     toOfferView(c.LearnerOffer),
			HelperOffer:      toOfferView(c.HelperOffer),
		})
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"candidates": out})
}

type createMatchRequest struct {
	HelperID string `json:"helper_id"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
}

func (s *Server) handleCreateMatch(w http.ResponseWriter, r *http.Request) {
	var body createMatchRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.deps.CreateMatch.Handle(r.Context(), command.CreateMatchRequestCommand{
		RequesterID:   callerID(r),
		HelperID:      body.HelperID,
		Subject:       body.Subject,
		Message:       body.Message,
		CorrelationID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"match_id":   res.MatchID,
		"status":     res.Status,
		"created_at": res.CreatedAt,
	})
}

func (s *Server) handleUserMatches(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.Require(r.Context(), identity.ContextProvider{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	list, err := s.deps.UserMatches.Handle(r.Context(), query.GetUserMatchesQuery{
		UserID: userID,
		Status: matching.MatchStatus(r.URL.Query().Get("status")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"matches": list})
}

type respondRequest struct {
	Decision matching.Decision `json:"decision"`
}

func (s *Server) handleRespond(w http.ResponseWriter, r *http.Request) {
	var body respondRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.deps.RespondToMatch.Handle(r.Context(), command.RespondToMatchCommand{
		MatchID:       chi.URLParam(r, "id"),
		ResponderID:   callerID(r),
		Decision:      body.Decision,
		CorrelationID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"match_id": res.MatchID,
		"status":   res.Status,
	})
}

type scheduleRequest struct {
	ScheduledTime time.Time `json:"scheduled_time"`
	MeetingLink   string    `json:"meeting_link"`
}

func (s *Server) handleSchedule(w http.ResponseWriter, r *http.Request) {
	var body scheduleRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.deps.Schedule.Handle(r.Context(), command.ScheduleSessionCommand{
		MatchID:       chi.URLParam(r, "id"),
		CallerID:      callerID(r),
		ScheduledTime: body.ScheduledTime,
		MeetingLink:   body.MeetingLink,
		CorrelationID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"match_id": res.MatchID,
		"session":  toSessionView(res.Session),
	})
}

func (s *Server) handleComplete(w http.ResponseWriter, r *http.Request) {
	caller, err := identity.Require(r.Context(), identity.ContextProvider{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	_, err = s.deps.CompleteMatch.Handle(r.Context(), command.CompleteMatchCommand{
		MatchID:       chi.URLParam(r, "id"),
		CallerID:      caller,
		CorrelationID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ══════════════════════════════════════════════════════════════════════════════
// RATINGS
// ══════════════════════════════════════════════════════════════════════════════

type ratingRequest struct {
	RatedUserID string `json:"rated_user_id"`
	Score       int    `json:"score"`
	Feedback    string `json:"feedback"`
}

func (s *Server) handleSubmitRating(w http.ResponseWriter, r *http.Request) {
	var body ratingRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.deps.SubmitRating.Handle(r.Context(), command.SubmitRatingCommand{
		RaterID:       callerID(r),
		MatchID:       chi.URLParam(r, "id"),
		RatedUserID:   body.RatedUserID,
		Score:         body.Score,
		Feedback:      body.Feedback,
		CorrelationID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, map[string]interface{}{
		"match_id":       res.MatchID,
		"rating_id":      res.RatingID,
		"new_reputation": res.NewReputation,
		"total_ratings":  res.TotalRatings,
		"bonus_points":   res.BonusPoints,
	})
}

func (s *Server) handleCanRate(w http.ResponseWriter, r *http.Request) {
	ok, err := s.deps.CanRate.Handle(r.Context(), query.CanRateQuery{
		MatchID: chi.URLParam(r, "id"),
		UserID:  callerID(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]bool{"can_rate": ok})
}

func (s *Server) handleUserRatings(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.UserRatings.Handle(r.Context(), query.GetUserRatingsQuery{
		UserID: chi.URLParam(r, "id"),
		Limit:  intParam(r, "limit", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, res)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	res, err := s.deps.Leaderboard.Handle(r.Context(), query.GetLeaderboardQuery{
		Limit: intParam(r, "limit", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, res)
}

// ══════════════════════════════════════════════════════════════════════════════
// SESSIONS
// ══════════════════════════════════════════════════════════════════════════════

type sessionView struct {
	ID             string                 `json:"id"`
	MatchID        string                 `json:"match_id"`
	Title          string                 `json:"title"`
	Subject        string                 `json:"subject"`
	HostID         string                 `json:"host_id"`
	ParticipantIDs []string               `json:"participant_ids"`
	ScheduledTime  time.Time              `json:"scheduled_time"`
	DurationMin    int                    `json:"duration_minutes"`
	MeetingLink    string                 `json:"meeting_link,omitempty"`
	Status         matching.SessionStatus `json:"status"`
}

func toSessionView(ss *matching.StudySession) *sessionView {
	if ss == nil {
		return nil
	}
	return &sessionView{
		ID:             ss.ID,
		MatchID:        ss.MatchID,
		Title:          ss.Title,
		Subject:        ss.Subject,
		HostID:         ss.HostID,
		ParticipantIDs: ss.ParticipantIDs,
		ScheduledTime:  ss.ScheduledTime,
		DurationMin:    int(ss.Duration / time.Minute),
		MeetingLink:    ss.MeetingLink,
		Status:         ss.Status,
	}
}

func (s *Server) handleSessionStart(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.deps.Sessions.Start)
}

func (s *Server) handleSessionComplete(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.deps.Sessions.Complete)
}

func (s *Server) handleSessionCancel(w http.ResponseWriter, r *http.Request) {
	s.sessionAction(w, r, s.deps.Sessions.Cancel)
}

func (s *Server) sessionAction(
	w http.ResponseWriter,
	r *http.Request,
	action func(context.Context, command.SessionCommand) (*command.SessionResult, error),
) {
	res, err := action(r.Context(), command.SessionCommand{
		SessionID:     chi.URLParam(r, "id"),
		UserID:        callerID(r),
		CorrelationID: middleware.GetReqID(r.Context()),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session":         toSessionView(res.Session),
		"match_completed": res.MatchCompleted,
	})
}

// ══════════════════════════════════════════════════════════════════════════════
// OFFERS
// ══════════════════════════════════════════════════════════════════════════════

type offerView struct {
	ID          string               `json:"id"`
	UserID      string               `json:"user_id"`
	Subject     string               `json:"subject"`
	Role        matching.Role        `json:"role"`
	Proficiency matching.Proficiency `json:"proficiency"`
	Urgency     matching.Urgency     `json:"urgency"`
	TargetDate  *time.Time           `json:"target_date,omitempty"`
	Tags        []string             `json:"tags"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

func toOfferView(o *matching.SubjectOffer) offerView {
	if o == nil {
		return offerView{}
	}
	tags := []string(o.Tags)
	if tags == nil {
		tags = []string{}
	}
	return offerView{
		ID:          o.ID,
		UserID:      o.UserID,
		Subject:     o.Subject,
		Role:        o.Role,
		Proficiency: o.Proficiency,
		Urgency:     o.Urgency,
		TargetDate:  o.TargetDate,
		Tags:        tags,
		UpdatedAt:   o.UpdatedAt,
	}
}

type upsertOfferRequest struct {
	Subject     string               `json:"subject"`
	Role        matching.Role        `json:"role"`
	Proficiency matching.Proficiency `json:"proficiency"`
	Urgency     matching.Urgency     `json:"urgency"`
	TargetDate  *time.Time           `json:"target_date"`
	Tags        []string             `json:"tags"`
}

func (s *Server) handleUpsertOffer(w http.ResponseWriter, r *http.Request) {
	var body upsertOfferRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.deps.UpsertOffer.Handle(r.Context(), command.UpsertOfferCommand{
		UserID:      callerID(r),
		Subject:     body.Subject,
		Role:        body.Role,
		Proficiency: body.Proficiency,
		Urgency:     body.Urgency,
		TargetDate:  body.TargetDate,
		Tags:        body.Tags,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, toOfferView(res.Offer))
}

func (s *Server) handleRemoveOffer(w http.ResponseWriter, r *http.Request) {
	err := s.deps.RemoveOffer.Handle(r.Context(), command.RemoveOfferCommand{
		OfferID: chi.URLParam(r, "id"),
		UserID:  callerID(r),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleListOffers(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		var err error
		if userID, err = identity.Require(r.Context(), identity.ContextProvider{}); err != nil {
			s.writeError(w, r, err)
			return
		}
	}
	list, err := s.deps.ListOffers.Handle(r.Context(), query.ListOffersQuery{
		UserID: userID,
		Role:   matching.Role(r.URL.Query().Get("role")),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]offerView, 0, len(list))
	for _, o := range list {
		out = append(out, toOfferView(o))
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{"offers": out})
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS
// ══════════════════════════════════════════════════════════════════════════════

type notificationView struct {
	ID        string            `json:"id"`
	Kind      notification.Kind `json:"kind"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	RelatedID string            `json:"related_id,omitempty"`
	IsRead    bool              `json:"is_read"`
	CreatedAt time.Time         `json:"created_at"`
}

func toNotificationView(n *notification.Notification) notificationView {
	return notificationView{
		ID:        n.ID,
		Kind:      n.Kind,
		Title:     n.Title,
		Message:   n.Message,
		RelatedID: n.RelatedID,
		IsRead:    n.IsRead,
		CreatedAt: n.CreatedAt,
	}
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) {
	userID, err := identity.Require(r.Context(), identity.ContextProvider{})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	res, err := s.deps.Notifications.Handle(r.Context(), query.GetNotificationsQuery{
		UserID:     userID,
		UnreadOnly: boolParam(r, "unread"),
		Limit:      intParam(r, "limit", 0),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]notificationView, 0, len(res.Notifications))
	for _, n := range res.Notifications {
		out = append(out, toNotificationView(n))
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"notifications": out,
		"unread_count":  res.UnreadCount,
	})
}

type markReadRequest struct {
	IDs []string `json:"ids"`
	All bool     `json:"all"`
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	var body markReadRequest
	if !s.decode(w, r, &body) {
		return
	}
	n, err := s.deps.MarkRead.Handle(r.Context(), command.MarkNotificationsReadCommand{
		UserID: callerID(r),
		IDs:    body.IDs,
		All:    body.All,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]int{"updated": n})
}

// ══════════════════════════════════════════════════════════════════════════════
// EXTERNAL PRODUCERS
// ══════════════════════════════════════════════════════════════════════════════

type awardRequest struct {
	UserID   string            `json:"user_id"`
	Reason   reputation.Reason `json:"reason"`
	SourceID string            `json:"source_id"`
}

func (s *Server) handleAwardPoints(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.Require(r.Context(), identity.ContextProvider{}); err != nil {
		s.writeError(w, r, err)
		return
	}
	var body awardRequest
	if !s.decode(w, r, &body) {
		return
	}
	res, err := s.deps.AwardPoints.Handle(r.Context(), command.AwardActivityPointsCommand{
		UserID:   body.UserID,
		Reason:   body.Reason,
		SourceID: body.SourceID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"applied":   res.Applied,
		"amount":    res.Amount,
		"new_total": res.NewTotal,
	})
}

type emitRequest struct {
	UserID    string            `json:"user_id"`
	Kind      notification.Kind `json:"kind"`
	Title     string            `json:"title"`
	Message   string            `json:"message"`
	RelatedID string            `json:"related_id"`
}

func (s *Server) handleEmitNotification(w http.ResponseWriter, r *http.Request) {
	if _, err := identity.Require(r.Context(), identity.ContextProvider{}); err != nil {
		s.writeError(w, r, err)
		return
	}
	var body emitRequest
	if !s.decode(w, r, &body) {
		return
	}
	n, err := s.deps.EmitNotice.Handle(r.Context(), command.EmitNotificationCommand{
		UserID:    body.UserID,
		Kind:      body.Kind,
		Title:     body.Title,
		Message:   body.Message,
		RelatedID: body.RelatedID,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	handlers.WriteJSON(w, http.StatusCreated, toNotificationView(n))
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

// callerID returns the authenticated user or "". Commands reject "" as
// Unauthenticated themselves.
func callerID(r *http.Request) string {
	id, _ := identity.ContextProvider{}.CurrentUserID(r.Context())
	return id
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "bad_request", "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, shared.ErrUnauthorized):
		return http.StatusForbidden, "unauthorized"
	case errors.Is(err, shared.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, shared.ErrDuplicateRequest):
		return http.StatusConflict, "duplicate_request"
	case errors.Is(err, shared.ErrDuplicateRating):
		return http.StatusConflict, "duplicate_rating"
	case errors.Is(err, shared.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, shared.ErrInvalidRating):
		return http.StatusUnprocessableEntity, "invalid_rating"
	case errors.Is(err, shared.ErrValidation):
		return http.StatusUnprocessableEntity, "validation"
	case errors.Is(err, shared.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	message := err.Error()
	var de *shared.DomainError
	if errors.As(err, &de) {
		message = de.Message
	}

	log := logger.FromContext(r.Context())
	switch {
	case status >= 500:
		log.Error("request failed", logger.String("path", r.URL.Path), logger.Err(err))
		if status == http.StatusInternalServerError {
			message = "an unexpected error occurred"
		}
	default:
		log.Debug("request rejected", logger.String("path", r.URL.Path), logger.String("code", code), logger.Err(err))
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	handlers.WriteError(w, status, code, message)
}

func intParam(r *http.Request, key string, def int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func boolParam(r *http.Request, key string) bool {
	switch strings.ToLower(r.URL.Query().Get(key)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
