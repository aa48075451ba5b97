package app

import (
	"context"

	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/pkg/circuitbreaker"
	"github.com/campus-hub/study-match/pkg/logger"
)

// guardedLeaderboard stops hitting a failing cache; the rejection surfaces as
// an error and the leaderboard query falls back to the store.
type guardedLeaderboard struct {
	inner   reputation.LeaderboardCache
	breaker *circuitbreaker.CircuitBreaker
}

// GuardLeaderboard wraps cache in a circuit breaker that logs its transitions.
func GuardLeaderboard(cache reputation.LeaderboardCache, breaker *circuitbreaker.CircuitBreaker) reputation.LeaderboardCache {
	if cache == nil {
		return nil
	}
	return &guardedLeaderboard{inner: cache, breaker: breaker}
}

func newLeaderboardBreaker(log *logger.Logger) *circuitbreaker.CircuitBreaker {
	return circuitbreaker.CacheBreaker("leaderboard-cache", func(name string, from, to circuitbreaker.State) {
		log.Warn("circuit breaker state changed",
			logger.String("breaker", name),
			logger.String("from", from.String()),
			logger.String("to", to.String()),
		)
	})
}

func (g *guardedLeaderboard) Top(ctx context.Context, limit int) ([]reputation.RankedUser, error) {
	var out []reputation.RankedUser
	err := g.breaker.Execute(ctx, func(ctx context.Context) error {
		var err error
		out, err = g.inner.Top(ctx, limit)
		return err
	})
	return out, err
}

func (g *guardedLeaderboard) SetPoints(ctx context.Context, userID string, points int) error {
	return g.breaker.Execute(ctx, func(ctx context.Context) error {
		return g.inner.SetPoints(ctx, userID, points)
	})
}
