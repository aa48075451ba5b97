package app

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/pkg/circuitbreaker"
	"github.com/campus-hub/study-match/pkg/logger"
)

type flakyCache struct {
	err   error
	calls int
}

func (f *flakyCache) Top(context.Context, int) ([]reputation.RankedUser, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return []reputation.RankedUser{{UserID: "bob", Points: 20}}, nil
}

func (f *flakyCache) SetPoints(context.Context, string, int) error {
	f.calls++
	return f.err
}

func TestGuardLeaderboard_NilCache(t *testing.T) {
	assert.Nil(t, GuardLeaderboard(nil, newLeaderboardBreaker(logger.Nop())))
}

func TestGuardLeaderboard_PassesThrough(t *testing.T) {
	inner := &flakyCache{}
	cache := GuardLeaderboard(inner, newLeaderboardBreaker(logger.Nop()))

	top, err := cache.Top(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []reputation.RankedUser{{UserID: "bob", Points: 20}}, top)
	require.NoError(t, cache.SetPoints(context.Background(), "bob", 25))
	assert.Equal(t, 2, inner.calls)
}

func TestGuardLeaderboard_OpensAfterFailures(t *testing.T) {
	inner := &flakyCache{err: errors.New("connection refused")}
	breaker := circuitbreaker.New("test", circuitbreaker.WithFailureThreshold(2))
	cache := GuardLeaderboard(inner, breaker)
	ctx := context.Background()

	_, err := cache.Top(ctx, 10)
	require.Error(t, err)
	_, err = cache.Top(ctx, 10)
	require.Error(t, err)

	_, err = cache.Top(ctx, 10)
	assert.ErrorIs(t, err, circuitbreaker.ErrCircuitOpen)
	assert.ErrorIs(t, cache.SetPoints(ctx, "bob", 1), circuitbreaker.ErrCircuitOpen)
	assert.Equal(t, 2, inner.calls, "open circuit skips the cache")
}
