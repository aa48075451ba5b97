package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SUBMIT RATING COMMAND
// A party of a completed match rates the other party. The rating insert and
// the reputation update are one atomic store operation; the bonus award
// follows as a post-commit action.
// ══════════════════════════════════════════════════════════════════════════════

// SubmitRatingCommand contains the rating data.
type SubmitRatingCommand struct {
	RaterID       string
	MatchID       string
	RatedUserID   string
	Score         int
	Feedback      string
	CorrelationID string
}

// Validate validates the command. Score range is checked first.
func (c SubmitRatingCommand) Validate() error {
	if err := reputation.ValidateScore(c.Score); err != nil {
		return err
	}
	if c.RaterID == "" {
		return unauthenticated("submit_rating")
	}
	if c.MatchID == "" || c.RatedUserID == "" {
		return invalid("submit_rating", "match_id and rated_user_id are required")
	}
	return nil
}

// SubmitRatingResult contains the outcome.
type SubmitRatingResult struct {
	MatchID       string
	RatingID      string
	NewReputation float64
	TotalRatings  int
	BonusPoints   int
	Events        []shared.Event
}

// SubmitRatingHandler handles the SubmitRatingCommand.
type SubmitRatingHandler struct {
	matches    matching.MatchRepository
	ratings    reputation.RatingRepository
	dispatcher *service.Dispatcher
	clock      shared.Clock
}

// NewSubmitRatingHandler creates a new SubmitRatingHandler.
func NewSubmitRatingHandler(
	matches matching.MatchRepository,
	ratings reputation.RatingRepository,
	dispatcher *service.Dispatcher,
	clock shared.Clock,
) *SubmitRatingHandler {
	return &SubmitRatingHandler{
		matches:    matches,
		ratings:    ratings,
		dispatcher: dispatcher,
		clock:      orSystem(clock),
	}
}

// Handle executes the submit rating command.
func (h *SubmitRatingHandler) Handle(ctx context.Context, cmd SubmitRatingCommand) (*SubmitRatingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("submit_rating: %w", err)
	}

	m, err := h.matches.GetByID(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("submit_rating: %w", err)
	}
	if !m.IsParty(cmd.RaterID) {
		return nil, fmt.Errorf("submit_rating: %w", shared.ErrNotParty)
	}
	if cmd.RatedUserID != m.OtherParty(cmd.RaterID) {
		return nil, fmt.Errorf("submit_rating: %w", shared.ErrRatedNotOtherParty)
	}
	if m.Status != matching.MatchStatusCompleted {
		return nil, fmt.Errorf("submit_rating: %w", shared.ErrMatchNotCompleted)
	}

	now := h.clock.Now()
	rating, err := reputation.NewRating(reputation.NewRatingParams{
		ID:          service.NewID(),
		MatchID:     m.ID,
		RaterID:     cmd.RaterID,
		RatedUserID: cmd.RatedUserID,
		Score:       cmd.Score,
		Feedback:    cmd.Feedback,
		Now:         now,
	})
	if err != nil {
		return nil, fmt.Errorf("submit_rating: %w", err)
	}

	profile, err := h.ratings.Submit(ctx, rating)
	if err != nil {
		return nil, fmt.Errorf("submit_rating: %w", err)
	}

	event := shared.NewRatingSubmittedEvent(rating.ID, m.ID, rating.RaterID, rating.RatedUserID, rating.Score, profile.Reputation(), profile.TotalRatings)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}

	actions := make([]service.Action, 0, 2)
	if award, ok, err := reputation.NewRatingBonus(rating, now); err == nil && ok {
		actions = append(actions, h.dispatcher.Award(award))
	}
	actions = append(actions, h.dispatcher.Publish(event))
	h.dispatcher.Dispatch(ctx, "submit_rating", actions...)

	return &SubmitRatingResult{
		MatchID:       m.ID,
		RatingID:      rating.ID,
		NewReputation: profile.Reputation(),
		TotalRatings:  profile.TotalRatings,
		BonusPoints:   rating.BonusPoints(),
		Events:        []shared.Event{event},
	}, nil
}
