package command

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RECONCILE AWARDS COMMAND
// Re-applies every award that a committed transition implies. Awards are
// idempotent by key, so this only fills in the ones whose post-commit action
// failed.
// ══════════════════════════════════════════════════════════════════════════════

// ReconcileAwardsCommand bounds the scan.
type ReconcileAwardsCommand struct {
	// Since limits the scan to records updated at or after this time.
	Since time.Time

	// BatchLimit caps records per category. Zero means 500.
	BatchLimit int
}

// ReconcileAwardsResult reports what was scanned and repaired.
type ReconcileAwardsResult struct {
	MatchesScanned int
	RatingsScanned int
	Applied        int
	Failed         int
}

// ReconcileAwardsHandler handles the ReconcileAwardsCommand.
type ReconcileAwardsHandler struct {
	matches matching.MatchRepository
	ratings reputation.RatingRepository
	ledger  *service.Ledger
	clock   shared.Clock
	log     *logger.Logger
}

// NewReconcileAwardsHandler creates a new ReconcileAwardsHandler.
func NewReconcileAwardsHandler(
	matches matching.MatchRepository,
	ratings reputation.RatingRepository,
	ledger *service.Ledger,
	clock shared.Clock,
	log *logger.Logger,
) *ReconcileAwardsHandler {
	if log == nil {
		log = logger.Default()
	}
	return &ReconcileAwardsHandler{
		matches: matches,
		ratings: ratings,
		ledger:  ledger,
		clock:   orSystem(clock),
		log:     log.With(logger.Component("reconcile_awards")),
	}
}

// Handle runs one reconciliation pass.
func (h *ReconcileAwardsHandler) Handle(ctx context.Context, cmd ReconcileAwardsCommand) (*ReconcileAwardsResult, error) {
	limit := cmd.BatchLimit
	if limit <= 0 {
		limit = 500
	}
	now := h.clock.Now()
	res := &ReconcileAwardsResult{}

	matches, err := h.matches.ListByStatus(ctx,
		[]matching.MatchStatus{matching.MatchStatusAccepted, matching.MatchStatusCompleted}, cmd.Since, limit)
	if err != nil {
		return nil, fmt.Errorf("reconcile_awards: list matches: %w", err)
	}
	res.MatchesScanned = len(matches)
	for _, m := range matches {
		award, err := reputation.NewAward(m.HelperID, reputation.ReasonMatchAccepted, m.ID, now)
		if err != nil {
			continue
		}
		h.apply(ctx, award, res)
	}

	ratings, err := h.ratings.ListBonusEligible(ctx, cmd.Since, limit)
	if err != nil {
		return res, fmt.Errorf("reconcile_awards: list ratings: %w", err)
	}
	res.RatingsScanned = len(ratings)
	for _, r := range ratings {
		award, ok, err := reputation.NewRatingBonus(r, now)
		if err != nil || !ok {
			continue
		}
		h.apply(ctx, award, res)
	}

	if res.Applied > 0 || res.Failed > 0 {
		h.log.Info("reconciliation pass finished",
			logger.Int("matches_scanned", res.MatchesScanned),
			logger.Int("ratings_scanned", res.RatingsScanned),
			logger.Int("applied", res.Applied),
			logger.Int("failed", res.Failed),
		)
	}
	return res, nil
}

func (h *ReconcileAwardsHandler) apply(ctx context.Context, a reputation.Award, res *ReconcileAwardsResult) {
	out, err := h.ledger.Award(ctx, a)
	if err != nil {
		res.Failed++
		h.log.Warn("award still failing",
			logger.UserID(a.UserID),
			logger.String("reason", string(a.Reason)),
			logger.String("source_id", a.SourceID),
			logger.Err(err),
		)
		return
	}
	if out.Applied {
		res.Applied++
	}
}
