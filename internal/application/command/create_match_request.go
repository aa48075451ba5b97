// Package command contains write operations (CQRS - Commands).
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
// CREATE MATCH REQUEST COMMAND
// A learner asks a helper for help with one subject. At most one open match
// may exist per (requester, helper, subject); the store enforces it.
// ══════════════════════════════════════════════════════════════════════════════

// CreateMatchRequestCommand contains the data to create a match request.
type CreateMatchRequestCommand struct {
	// RequesterID is the authenticated caller.
	RequesterID string

	// HelperID is the user being asked for help.
	HelperID string

	// Subject is the subject to learn.
	Subject string

	// Message is an optional note to the helper.
	Message string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CreateMatchRequestCommand) Validate() error {
	if c.RequesterID == "" {
		return unauthenticated("create_match_request")
	}
	if c.HelperID == "" {
		return invalid("create_match_request", "helper_id is required")
	}
	if c.Subject == "" {
		return invalid("create_match_request", "subject is required")
	}
	if c.RequesterID == c.HelperID {
		return shared.ErrSelfMatch
	}
	return nil
}

// CreateMatchRequestResult contains the result of creating a match request.
type CreateMatchRequestResult struct {
	MatchID   string
	Status    matching.MatchStatus
	CreatedAt time.Time
	Events    []shared.Event
}

// CreateMatchRequestHandler handles the CreateMatchRequestCommand.
type CreateMatchRequestHandler struct {
	matches    matching.MatchRepository
	dispatcher *service.Dispatcher
	clock      shared.Clock
}

// NewCreateMatchRequestHandler creates a new CreateMatchRequestHandler.
func NewCreateMatchRequestHandler(
	matches matching.MatchRepository,
	dispatcher *service.Dispatcher,
	clock shared.Clock,
) *CreateMatchRequestHandler {
	return &CreateMatchRequestHandler{
		matches:    matches,
		dispatcher: dispatcher,
		clock:      orSystem(clock),
	}
}

// Handle executes the create match request command.
func (h *CreateMatchRequestHandler) Handle(ctx context.Context, cmd CreateMatchRequestCommand) (*CreateMatchRequestResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("create_match_request: %w", err)
	}

	now := h.clock.Now()
	m, err := matching.NewMatch(matching.NewMatchParams{
		ID:          service.NewID(),
		RequesterID: cmd.RequesterID,
		HelperID:    cmd.HelperID,
		Subject:     cmd.Subject,
		Message:     cmd.Message,
		Now:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("create_match_request: %w", err)
	}

	// Uniqueness is decided here, atomically, by the store.
	if err := h.matches.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("create_match_request: %w", err)
	}

	event := withCorrelation(shared.NewMatchEvent(shared.EventMatchRequested, m.ID, m.RequesterID, m.HelperID, m.Subject, string(m.Status)), cmd.CorrelationID)

	h.dispatcher.Dispatch(ctx, "create_match_request",
		h.dispatcher.Notify(m.HelperID, notification.MatchRequested(m.Subject), m.ID),
		h.dispatcher.Publish(event),
	)

	return &CreateMatchRequestResult{
		MatchID:   m.ID,
		Status:    m.Status,
		CreatedAt: now,
		Events:    []shared.Event{event},
	}, nil
}
