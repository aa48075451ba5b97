package command

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCHEDULE SESSION COMMAND
// Either party of an accepted match sets a time. The schedule is written onto
// the match and a StudySession is created with the caller as host.
// ══════════════════════════════════════════════════════════════════════════════

// ScheduleSessionCommand contains the scheduling data.
type ScheduleSessionCommand struct {
	MatchID       string
	CallerID      string
	ScheduledTime time.Time
	MeetingLink   string
	CorrelationID string
}

// Validate validates the command.
func (c ScheduleSessionCommand) Validate() error {
	if c.CallerID == "" {
		return unauthenticated("schedule_session")
	}
	if c.MatchID == "" {
		return invalid("schedule_session", "match_id is required")
	}
	if c.ScheduledTime.IsZero() {
		return invalid("schedule_session", "scheduled_time is required")
	}
	return nil
}

// ScheduleSessionResult contains the match id and the created session.
type ScheduleSessionResult struct {
	MatchID string
	Session *matching.StudySession
	Events  []shared.Event
}

// ScheduleSessionHandler handles the ScheduleSessionCommand.
type ScheduleSessionHandler struct {
	matches    matching.MatchRepository
	sessions   matching.SessionRepository
	dispatcher *service.Dispatcher
	clock      shared.Clock
}

// NewScheduleSessionHandler creates a new ScheduleSessionHandler.
func NewScheduleSessionHandler(
	matches matching.MatchRepository,
	sessions matching.SessionRepository,
	dispatcher *service.Dispatcher,
	clock shared.Clock,
) *ScheduleSessionHandler {
	return &ScheduleSessionHandler{
		matches:    matches,
		sessions:   sessions,
		dispatcher: dispatcher,
		clock:      orSystem(clock),
	}
}

// Handle executes the schedule command.
func (h *ScheduleSessionHandler) Handle(ctx context.Context, cmd ScheduleSessionCommand) (*ScheduleSessionResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("schedule_session: %w", err)
	}

	m, err := h.matches.GetByID(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("schedule_session: %w", err)
	}
	if err := m.CheckSchedule(cmd.CallerID); err != nil {
		return nil, fmt.Errorf("schedule_session: %w", err)
	}

	now := h.clock.Now()
	at := cmd.ScheduledTime.UTC()

	updated, err := h.matches.SetSchedule(ctx, m.ID, at, cmd.MeetingLink, now)
	if err != nil {
		return nil, fmt.Errorf("schedule_session: %w", err)
	}

	session := matching.NewSessionFromMatch(service.NewID(), updated, cmd.CallerID, at, cmd.MeetingLink, now)
	if err := h.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("schedule_session: create session: %w", err)
	}

	event := shared.NewSessionEvent(shared.EventSessionScheduled, session.ID, updated.ID, session.HostID, string(session.Status), at)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}

	h.dispatcher.Dispatch(ctx, "schedule_session",
		h.dispatcher.Notify(updated.OtherParty(cmd.CallerID), notification.SessionScheduled(updated.Subject, at), session.ID),
		h.dispatcher.Publish(event),
	)

	return &ScheduleSessionResult{
		MatchID: updated.ID,
		Session: session,
		Events:  []shared.Event{event},
	}, nil
}
