package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RESPOND TO MATCH COMMAND
// The helper accepts or declines a pending match. Accepting awards the helper
// points; both outcomes notify the requester.
// ══════════════════════════════════════════════════════════════════════════════

// RespondToMatchCommand contains the helper's decision.
type RespondToMatchCommand struct {
	MatchID       string
	ResponderID   string
	Decision      matching.Decision
	CorrelationID string
}

// Validate validates the command.
func (c RespondToMatchCommand) Validate() error {
	if c.ResponderID == "" {
		return unauthenticated("respond_to_match")
	}
	if c.MatchID == "" {
		return invalid("respond_to_match", "match_id is required")
	}
	if !c.Decision.IsValid() {
		return invalid("respond_to_match", fmt.Sprintf("invalid decision: %q", c.Decision))
	}
	return nil
}

// RespondToMatchResult contains the new status.
type RespondToMatchResult struct {
	MatchID string
	Status  matching.MatchStatus
	Events  []shared.Event
}

// RespondToMatchHandler handles the RespondToMatchCommand.
type RespondToMatchHandler struct {
	matches    matching.MatchRepository
	dispatcher *service.Dispatcher
	clock      shared.Clock
}

// NewRespondToMatchHandler creates a new RespondToMatchHandler.
func NewRespondToMatchHandler(
	matches matching.MatchRepository,
	dispatcher *service.Dispatcher,
	clock shared.Clock,
) *RespondToMatchHandler {
	return &RespondToMatchHandler{
		matches:    matches,
		dispatcher: dispatcher,
		clock:      orSystem(clock),
	}
}

// Handle executes the respond command.
func (h *RespondToMatchHandler) Handle(ctx context.Context, cmd RespondToMatchCommand) (*RespondToMatchResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("respond_to_match: %w", err)
	}

	m, err := h.matches.GetByID(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("respond_to_match: %w", err)
	}
	if err := m.CheckRespond(cmd.ResponderID); err != nil {
		return nil, fmt.Errorf("respond_to_match: %w", err)
	}

	now := h.clock.Now()
	target := cmd.Decision.Target()

	// Compare-and-swap: a concurrent response that got there first makes this
	// one fail with InvalidTransition.
	updated, err := h.matches.TransitionStatus(ctx, m.ID, matching.MatchStatusPending, target, now)
	if err != nil {
		return nil, fmt.Errorf("respond_to_match: %w", err)
	}

	accepted := target == matching.MatchStatusAccepted
	eventType := shared.EventMatchDeclined
	if accepted {
		eventType = shared.EventMatchAccepted
	}
	event := withCorrelation(shared.NewMatchEvent(eventType, updated.ID, updated.RequesterID, updated.HelperID, updated.Subject, string(updated.Status)), cmd.CorrelationID)

	actions := make([]service.Action, 0, 3)
	if accepted {
		award, err := reputation.NewAward(updated.HelperID, reputation.ReasonMatchAccepted, updated.ID, now)
		if err == nil {
			actions = append(actions, h.dispatcher.Award(award))
		}
	}
	actions = append(actions,
		h.dispatcher.Notify(updated.RequesterID, notification.MatchResponded(updated.Subject, accepted), updated.ID),
		h.dispatcher.Publish(event),
	)
	h.dispatcher.Dispatch(ctx, "respond_to_match", actions...)

	return &RespondToMatchResult{
		MatchID: updated.ID,
		Status:  updated.Status,
		Events:  []shared.Event{event},
	}, nil
}
