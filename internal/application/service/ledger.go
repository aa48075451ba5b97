package service

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/pkg/logger"
	"github.com/campus-hub/study-match/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINTS LEDGER
// The single write path for gamification points. Awards are idempotent by
// (user, reason, source), so a retry or a reconciliation pass never double-counts.
// ══════════════════════════════════════════════════════════════════════════════

// Ledger applies point awards.
type Ledger struct {
	profiles  reputation.ProfileRepository
	publisher shared.EventPublisher
	retrier   *retry.Retrier
	log       *logger.Logger
}

// NewLedger creates a new Ledger. A nil retrier uses retry.StoreRetrier.
func NewLedger(profiles reputation.ProfileRepository, publisher shared.EventPublisher, retrier *retry.Retrier, log *logger.Logger) *Ledger {
	if log == nil {
		log = logger.Default()
	}
	l := &Ledger{
		profiles:  profiles,
		publisher: publisher,
		log:       log.With(logger.Component("points_ledger")),
	}
	if retrier == nil {
		retrier = retry.StoreRetrier(shared.IsRetryable)
	}
	l.retrier = retrier
	return l
}

// AwardResult describes the outcome of an award.
type AwardResult struct {
	Applied  bool
	NewTotal int
}

// Award applies the award, retrying while the store is unavailable.
// A newly applied award publishes PointsAwarded.
func (l *Ledger) Award(ctx context.Context, a reputation.Award) (*AwardResult, error) {
	var res AwardResult
	err := l.retrier.Do(ctx, func(ctx context.Context) error {
		applied, total, err := l.profiles.ApplyAward(ctx, a)
		if err != nil {
			return err
		}
		res = AwardResult{Applied: applied, NewTotal: total}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("award_points: %w", err)
	}

	if res.Applied {
		l.log.Debug("points awarded",
			logger.UserID(a.UserID),
			logger.String("reason", string(a.Reason)),
			logger.String("source_id", a.SourceID),
			logger.Points(a.Amount),
		)
		if l.publisher != nil {
			_ = l.publisher.Publish(shared.NewPointsAwardedEvent(a.UserID, string(a.Reason), a.SourceID, a.Amount, res.NewTotal))
		}
	}
	return &res, nil
}

// AwardFor builds a fixed-amount award and applies it.
func (l *Ledger) AwardFor(ctx context.Context, userID string, reason reputation.Reason, sourceID string, now time.Time) (*AwardResult, error) {
	a, err := reputation.NewAward(userID, reason, sourceID, now)
	if err != nil {
		return nil, err
	}
	return l.Award(ctx, a)
}
