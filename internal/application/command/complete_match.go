package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETE MATCH COMMAND
// Invoked by session completion. Idempotent: completing an already completed
// match is a no-op and produces no side effects.
// ══════════════════════════════════════════════════════════════════════════════

// CompleteMatchCommand identifies the match to complete.
type CompleteMatchCommand struct {
	MatchID string

	// CallerID must be a party to the match. Empty marks a trusted internal
	// trigger.
	CallerID string

	CorrelationID string
}

// CompleteMatchResult reports whether this call performed the transition.
type CompleteMatchResult struct {
	MatchID string

	// Transitioned is false when the match was already completed.
	Transitioned bool

	Events []shared.Event
}

// CompleteMatchHandler handles the CompleteMatchCommand.
type CompleteMatchHandler struct {
	matches    matching.MatchRepository
	dispatcher *service.Dispatcher
	clock      shared.Clock
	log        *logger.Logger
}

// NewCompleteMatchHandler creates a new CompleteMatchHandler.
func NewCompleteMatchHandler(
	matches matching.MatchRepository,
	dispatcher *service.Dispatcher,
	clock shared.Clock,
	log *logger.Logger,
) *CompleteMatchHandler {
	if log == nil {
		log = logger.Default()
	}
	return &CompleteMatchHandler{
		matches:    matches,
		dispatcher: dispatcher,
		clock:      orSystem(clock),
		log:        log.With(logger.Component("complete_match")),
	}
}

// Handle executes the complete command.
func (h *CompleteMatchHandler) Handle(ctx context.Context, cmd CompleteMatchCommand) (*CompleteMatchResult, error) {
	if cmd.MatchID == "" {
		return nil, fmt.Errorf("complete_match: %w", invalid("complete_match", "match_id is required"))
	}

	m, err := h.matches.GetByID(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("complete_match: %w", err)
	}

	if cmd.CallerID != "" && !m.IsParty(cmd.CallerID) {
		return nil, fmt.Errorf("complete_match: %w", shared.ErrNotParty)
	}

	done, err := m.CheckComplete()
	if err != nil {
		return nil, fmt.Errorf("complete_match: %w", err)
	}
	if done {
		return &CompleteMatchResult{MatchID: m.ID}, nil
	}

	updated, err := h.matches.TransitionStatus(ctx, m.ID, matching.MatchStatusAccepted, matching.MatchStatusCompleted, h.clock.Now())
	if err != nil {
		if errors.Is(err, shared.ErrInvalidTransition) {
			// Lost a race against another completion: still a no-op.
			if current, gerr := h.matches.GetByID(ctx, m.ID); gerr == nil && current.Status == matching.MatchStatusCompleted {
				h.log.Debug("match already completed concurrently", logger.MatchID(m.ID))
				return &CompleteMatchResult{MatchID: m.ID}, nil
			}
		}
		return nil, fmt.Errorf("complete_match: %w", err)
	}

	event := withCorrelation(shared.NewMatchEvent(shared.EventMatchCompleted, updated.ID, updated.RequesterID, updated.HelperID, updated.Subject, string(updated.Status)), cmd.CorrelationID)
	h.dispatcher.Dispatch(ctx, "complete_match", h.dispatcher.Publish(event))

	return &CompleteMatchResult{
		MatchID:      updated.ID,
		Transitioned: true,
		Events:       []shared.Event{event},
	}, nil
}
