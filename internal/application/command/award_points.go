package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// AWARD ACTIVITY POINTS COMMAND
// Entry point for external producers (forum, resources). They name the reason
// and the source object; the amount is fixed by the domain.
// ══════════════════════════════════════════════════════════════════════════════

// AwardActivityPointsCommand contains the award request.
type AwardActivityPointsCommand struct {
	UserID   string
	Reason   reputation.Reason
	SourceID string
}

// Validate validates the command.
func (c AwardActivityPointsCommand) Validate() error {
	if c.UserID == "" || c.SourceID == "" {
		return invalid("award_activity_points", "user_id and source_id are required")
	}
	if !c.Reason.IsActivity() {
		return shared.ErrUnknownAwardReason
	}
	return nil
}

// AwardActivityPointsResult contains the outcome.
type AwardActivityPointsResult struct {
	Applied  bool
	Amount   int
	NewTotal int
}

// AwardActivityPointsHandler handles the AwardActivityPointsCommand.
type AwardActivityPointsHandler struct {
	ledger *service.Ledger
	clock  shared.Clock
}

// NewAwardActivityPointsHandler creates a new AwardActivityPointsHandler.
func NewAwardActivityPointsHandler(ledger *service.Ledger, clock shared.Clock) *AwardActivityPointsHandler {
	return &AwardActivityPointsHandler{ledger: ledger, clock: orSystem(clock)}
}

// Handle executes the award. Repeating the same (user, reason, source) is a no-op.
func (h *AwardActivityPointsHandler) Handle(ctx context.Context, cmd AwardActivityPointsCommand) (*AwardActivityPointsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("award_activity_points: %w", err)
	}

	award, err := reputation.NewAward(cmd.UserID, cmd.Reason, cmd.SourceID, h.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("award_activity_points: %w", err)
	}

	res, err := h.ledger.Award(ctx, award)
	if err != nil {
		return nil, fmt.Errorf("award_activity_points: %w", err)
	}

	out := &AwardActivityPointsResult{Applied: res.Applied, NewTotal: res.NewTotal}
	if res.Applied {
		out.Amount = award.Amount
	}
	return out, nil
}
