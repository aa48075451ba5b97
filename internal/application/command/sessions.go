package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDY SESSION COMMANDS
// scheduled → active → completed, with cancel from scheduled or active.
// Completing a session completes its match.
// ══════════════════════════════════════════════════════════════════════════════

// SessionCommand identifies a session and the acting participant.
type SessionCommand struct {
	SessionID     string
	UserID        string
	CorrelationID string
}

func (c SessionCommand) validate(op string) error {
	if c.UserID == "" {
		return unauthenticated(op)
	}
	if c.SessionID == "" {
		return invalid(op, "session_id is required")
	}
	return nil
}

// SessionResult contains the session after the transition.
type SessionResult struct {
	Session *matching.StudySession

	// MatchCompleted is set by CompleteSession when the match transitioned.
	MatchCompleted bool
}

// SessionHandler handles Start, Complete and Cancel.
type SessionHandler struct {
	sessions   matching.SessionRepository
	complete   *CompleteMatchHandler
	dispatcher *service.Dispatcher
	clock      shared.Clock
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(
	sessions matching.SessionRepository,
	complete *CompleteMatchHandler,
	dispatcher *service.Dispatcher,
	clock shared.Clock,
) *SessionHandler {
	return &SessionHandler{
		sessions:   sessions,
		complete:   complete,
		dispatcher: dispatcher,
		clock:      orSystem(clock),
	}
}

// Start moves a scheduled session to active.
func (h *SessionHandler) Start(ctx context.Context, cmd SessionCommand) (*SessionResult, error) {
	s, err := h.transition(ctx, "start_session", cmd, matching.SessionStatusActive)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: s}, nil
}

// Complete moves an active session to completed and completes the match.
// Calling it again on a completed session only retries the match step, so a
// failure after the session commit can be repaired by the caller.
func (h *SessionHandler) Complete(ctx context.Context, cmd SessionCommand) (*SessionResult, error) {
	const op = "complete_session"

	s, err := h.load(ctx, op, cmd)
	if err != nil {
		return nil, err
	}
	if s.Status != matching.SessionStatusCompleted {
		if s, err = h.apply(ctx, op, cmd, s, matching.SessionStatusCompleted); err != nil {
			return nil, err
		}
	} else if !s.IsParticipant(cmd.UserID) {
		return nil, fmt.Errorf("%s: %w", op, shared.ErrNotParticipant)
	}

	res, err := h.complete.Handle(ctx, CompleteMatchCommand{
		MatchID:       s.MatchID,
		CallerID:      cmd.UserID,
		CorrelationID: cmd.CorrelationID,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &SessionResult{Session: s, MatchCompleted: res.Transitioned}, nil
}

// Cancel moves a scheduled or active session to cancelled.
func (h *SessionHandler) Cancel(ctx context.Context, cmd SessionCommand) (*SessionResult, error) {
	s, err := h.transition(ctx, "cancel_session", cmd, matching.SessionStatusCancelled)
	if err != nil {
		return nil, err
	}
	return &SessionResult{Session: s}, nil
}

func (h *SessionHandler) transition(ctx context.Context, op string, cmd SessionCommand, to matching.SessionStatus) (*matching.StudySession, error) {
	s, err := h.load(ctx, op, cmd)
	if err != nil {
		return nil, err
	}
	return h.apply(ctx, op, cmd, s, to)
}

func (h *SessionHandler) load(ctx context.Context, op string, cmd SessionCommand) (*matching.StudySession, error) {
	if err := cmd.validate(op); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s, err := h.sessions.GetByID(ctx, cmd.SessionID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (h *SessionHandler) apply(ctx context.Context, op string, cmd SessionCommand, s *matching.StudySession, to matching.SessionStatus) (*matching.StudySession, error) {
	if err := s.CheckTransition(cmd.UserID, to); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	updated, err := h.sessions.TransitionStatus(ctx, s.ID, s.Status, to, h.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	event := shared.NewSessionEvent(shared.EventSessionStatus, updated.ID, updated.MatchID, updated.HostID, string(updated.Status), updated.ScheduledTime)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	h.dispatcher.Dispatch(ctx, op, h.dispatcher.Publish(event))

	return updated, nil
}
