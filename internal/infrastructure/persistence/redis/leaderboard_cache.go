package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD CACHE
// Points index on a sorted set. Scores are stored negated so that ZRANGE
// yields points descending with ties by user id ascending, the same order
// as ProfileRepository.TopByPoints.
// ══════════════════════════════════════════════════════════════════════════════

const (
	// DefaultWarmSize is how many top profiles Warm loads.
	DefaultWarmSize = 1000

	// handlerTimeout bounds a single event-driven write.
	handlerTimeout = 2 * time.Second
)

// LeaderboardCache implements reputation.LeaderboardCache on Redis.
type LeaderboardCache struct {
	cache    *Cache
	key      string
	readyKey string
	log      *logger.Logger
}

var _ reputation.LeaderboardCache = (*LeaderboardCache)(nil)

// NewLeaderboardCache creates a new LeaderboardCache instance.
func NewLeaderboardCache(cache *Cache, log *logger.Logger) *LeaderboardCache {
	if log == nil {
		log = logger.Nop()
	}
	key := cache.Key(LeaderboardKey(""))
	return &LeaderboardCache{
		cache:    cache,
		key:      key,
		readyKey: key + ":ready",
		log:      log.With(logger.Component("leaderboard_cache")),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// WRITE OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// SetPoints records the user's current total. Writing an absolute value
// keeps redelivered events harmless.
func (l *LeaderboardCache) SetPoints(ctx context.Context, userID string, points int) error {
	if userID == "" {
		return ErrCacheKeyEmpty
	}
	return l.cache.Client().ZAdd(ctx, l.key, redis.Z{
		Score:  -float64(points),
		Member: userID,
	}).Err()
}

// Rebuild replaces the index with users and marks it ready.
func (l *LeaderboardCache) Rebuild(ctx context.Context, users []reputation.RankedUser) error {
	tmp := l.key + ":rebuild"
	_, err := l.cache.Client().TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, tmp)
		if len(users) == 0 {
			pipe.Del(ctx, l.key)
		} else {
			pipe.ZAdd(ctx, tmp, toMembers(users)...)
			pipe.Rename(ctx, tmp, l.key)
		}
		pipe.Set(ctx, l.readyKey, time.Now().UTC().Format(time.RFC3339), 0)
		return nil
	})
	return err
}

// Warm loads the top profiles from the store into the index.
// Users outside the loaded range join the index on their next award.
func (l *LeaderboardCache) Warm(ctx context.Context, profiles reputation.ProfileRepository, size int) error {
	if size <= 0 {
		size = DefaultWarmSize
	}
	top, err := profiles.TopByPoints(ctx, size)
	if err != nil {
		return fmt.Errorf("warm leaderboard: %w", err)
	}

	users := make([]reputation.RankedUser, 0, len(top))
	for _, p := range top {
		users = append(users, reputation.RankedUser{UserID: p.UserID, Points: p.Points})
	}
	if err := l.Rebuild(ctx, users); err != nil {
		return fmt.Errorf("warm leaderboard: %w", err)
	}

	l.log.Info("leaderboard cache warmed", logger.Int("users", len(users)))
	return nil
}

// Invalidate drops the index; readers fall back to the store until Warm runs.
func (l *LeaderboardCache) Invalidate(ctx context.Context) error {
	return l.cache.Client().Del(ctx, l.key, l.readyKey).Err()
}

// ══════════════════════════════════════════════════════════════════════════════
// READ OPERATIONS
// ══════════════════════════════════════════════════════════════════════════════

// Top returns users by points descending. An index that was never warmed
// returns an empty slice so callers use the store.
func (l *LeaderboardCache) Top(ctx context.Context, limit int) ([]reputation.RankedUser, error) {
	if limit <= 0 {
		limit = shared.NormalizeLimit(limit)
	}

	var (
		ready   *redis.IntCmd
		members *redis.ZSliceCmd
	)
	_, err := l.cache.Client().Pipelined(ctx, func(pipe redis.Pipeliner) error {
		ready = pipe.Exists(ctx, l.readyKey)
		members = pipe.ZRangeWithScores(ctx, l.key, 0, int64(limit-1))
		return nil
	})
	if err != nil {
		return nil, err
	}
	if ready.Val() == 0 {
		return []reputation.RankedUser{}, nil
	}
	return toRankedUsers(members.Val()), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENT HANDLING
// ══════════════════════════════════════════════════════════════════════════════

// HandlePointsAwarded keeps the index in step with the points ledger.
func (l *LeaderboardCache) HandlePointsAwarded(event shared.Event) error {
	e, ok := event.(shared.PointsAwardedEvent)
	if !ok {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	if err := l.SetPoints(ctx, e.AggregateID(), e.NewTotal); err != nil {
		l.log.Warn("leaderboard cache update failed",
			logger.UserID(e.AggregateID()),
			logger.Points(e.NewTotal),
			logger.Err(err),
		)
		return err
	}
	return nil
}

// Register subscribes the cache to points events.
func (l *LeaderboardCache) Register(bus shared.EventSubscriber) error {
	return bus.Subscribe(shared.EventPointsAwarded, l.HandlePointsAwarded)
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func toMembers(users []reputation.RankedUser) []redis.Z {
	out := make([]redis.Z, 0, len(users))
	for _, u := range users {
		out = append(out, redis.Z{Score: -float64(u.Points), Member: u.UserID})
	}
	return out
}

func toRankedUsers(zs []redis.Z) []reputation.RankedUser {
	out := make([]reputation.RankedUser, 0, len(zs))
	for _, z := range zs {
		id, ok := z.Member.(string)
		if !ok {
			continue
		}
		out = append(out, reputation.RankedUser{UserID: id, Points: int(-z.Score)})
	}
	return out
}
