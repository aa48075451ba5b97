package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. They are published after the primary write commits and
// feed projections such as the leaderboard cache and metrics.
const (
	EventMatchRequested   EventType = "matching.match_requested"
	EventMatchAccepted    EventType = "matching.match_accepted"
	EventMatchDeclined    EventType = "matching.match_declined"
	EventSessionScheduled EventType = "matching.session_scheduled"
	EventSessionStatus    EventType = "matching.session_status_changed"
	EventMatchCompleted   EventType = "matching.match_completed"

	EventRatingSubmitted EventType = "reputation.rating_submitted"
	EventPointsAwarded   EventType = "reputation.points_awarded"

	EventNotificationFailed EventType = "notification.failed"
)

// Event is the base interface for all domain events.
type Event interface {
	EventType() EventType
	OccurredAt() time.Time
	AggregateID() string
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType { return e.Type }

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time { return e.Timestamp }

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string { return e.AggregateId }

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// MatchEvent covers every match status change. AggregateID is the match id.
type MatchEvent struct {
	BaseEvent
	RequesterID string `json:"requester_id"`
	HelperID    string `json:"helper_id"`
	Subject     string `json:"subject"`
	Status      string `json:"status"`
}

// Payload implements Event interface.
func (e MatchEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"requester_id": e.RequesterID,
		"helper_id":    e.HelperID,
		"subject":      e.Subject,
		"status":       e.Status,
	}
}

// NewMatchEvent creates a MatchEvent of the given type.
func NewMatchEvent(t EventType, matchID, requesterID, helperID, subject, status string) MatchEvent {
	return MatchEvent{
		BaseEvent:   NewBaseEvent(t, matchID),
		RequesterID: requesterID,
		HelperID:    helperID,
		Subject:     subject,
		Status:      status,
	}
}

// SessionEvent is emitted when a study session is created or changes status.
type SessionEvent struct {
	BaseEvent
	MatchID     string    `json:"match_id"`
	HostID      string    `json:"host_id"`
	Status      string    `json:"status"`
	ScheduledAt time.Time `json:"scheduled_at"`
}

// Payload implements Event interface.
func (e SessionEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"match_id":     e.MatchID,
		"host_id":      e.HostID,
		"status":       e.Status,
		"scheduled_at": e.ScheduledAt,
	}
}

// NewSessionEvent creates a SessionEvent.
func NewSessionEvent(t EventType, sessionID, matchID, hostID, status string, at time.Time) SessionEvent {
	return SessionEvent{
		BaseEvent:   NewBaseEvent(t, sessionID),
		MatchID:     matchID,
		HostID:      hostID,
		Status:      status,
		ScheduledAt: at,
	}
}

// RatingSubmittedEvent carries the rated user's recomputed reputation.
type RatingSubmittedEvent struct {
	BaseEvent
	MatchID       string  `json:"match_id"`
	RaterID       string  `json:"rater_id"`
	RatedUserID   string  `json:"rated_user_id"`
	Score         int     `json:"score"`
	NewReputation float64 `json:"new_reputation"`
	TotalRatings  int     `json:"total_ratings"`
}

// Payload implements Event interface.
func (e RatingSubmittedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"match_id":       e.MatchID,
		"rater_id":       e.RaterID,
		"rated_user_id":  e.RatedUserID,
		"score":          e.Score,
		"new_reputation": e.NewReputation,
		"total_ratings":  e.TotalRatings,
	}
}

// NewRatingSubmittedEvent creates a RatingSubmittedEvent.
func NewRatingSubmittedEvent(ratingID, matchID, raterID, ratedUserID string, score int, reputation float64, total int) RatingSubmittedEvent {
	return RatingSubmittedEvent{
		BaseEvent:     NewBaseEvent(EventRatingSubmitted, ratingID),
		MatchID:       matchID,
		RaterID:       raterID,
		RatedUserID:   ratedUserID,
		Score:         score,
		NewReputation: reputation,
		TotalRatings:  total,
	}
}

// PointsAwardedEvent is emitted once per newly applied award.
type PointsAwardedEvent struct {
	BaseEvent
	Reason   string `json:"reason"`
	SourceID string `json:"source_id"`
	Amount   int    `json:"amount"`
	NewTotal int    `json:"new_total"`
}

// Payload implements Event interface.
func (e PointsAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"reason":    e.Reason,
		"source_id": e.SourceID,
		"amount":    e.Amount,
		"new_total": e.NewTotal,
	}
}

// NewPointsAwardedEvent creates a PointsAwardedEvent. AggregateID is the user id.
func NewPointsAwardedEvent(userID, reason, sourceID string, amount, newTotal int) PointsAwardedEvent {
	return PointsAwardedEvent{
		BaseEvent: NewBaseEvent(EventPointsAwarded, userID),
		Reason:    reason,
		SourceID:  sourceID,
		Amount:    amount,
		NewTotal:  newTotal,
	}
}

// NotificationFailedEvent records a swallowed notification failure.
type NotificationFailedEvent struct {
	BaseEvent
	Kind  string `json:"kind"`
	Cause string `json:"cause"`
}

// Payload implements Event interface.
func (e NotificationFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{"kind": e.Kind, "cause": e.Cause}
}

// NewNotificationFailedEvent creates a NotificationFailedEvent. AggregateID is the recipient.
func NewNotificationFailedEvent(userID, kind string, cause error) NotificationFailedEvent {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return NotificationFailedEvent{
		BaseEvent: NewBaseEvent(EventNotificationFailed, userID),
		Kind:      kind,
		Cause:     msg,
	}
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
