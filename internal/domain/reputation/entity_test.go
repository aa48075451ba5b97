package reputation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

func TestValidateScore(t *testing.T) {
	for s := MinScore; s <= MaxScore; s++ {
		assert.NoError(t, ValidateScore(s))
	}
	assert.ErrorIs(t, ValidateScore(0), shared.ErrInvalidRating)
	assert.ErrorIs(t, ValidateScore(6), shared.ErrInvalidRating)
}

func TestRating_Bonus(t *testing.T) {
	cases := map[int]int{1: 0, 2: 0, 3: 0, 4: 8, 5: 10}
	for score, want := range cases {
		r := &Rating{Score: score}
		assert.Equal(t, want, r.BonusPoints(), "score %d", score)
	}
}

func TestNewRating_RejectsSelf(t *testing.T) {
	_, err := NewRating(NewRatingParams{MatchID: "m", RaterID: "a", RatedUserID: "a", Score: 5})
	assert.ErrorIs(t, err, shared.ErrUnauthorized)
}

func runningMean(oldMean float64, oldCount, score int) float64 {
	return (oldMean*float64(oldCount) + float64(score)) / float64(oldCount+1)
}

func TestProfile_ReputationEqualsRunningMean(t *testing.T) {
	scores := []int{5, 3, 4, 1, 5, 2}
	p := Profile{}
	mean, count := 0.0, 0
	sum := 0
	for _, s := range scores {
		p = p.WithRating(s)
		mean = runningMean(mean, count, s)
		count++
		sum += s
		assert.InDelta(t, mean, p.Reputation(), 1e-9)
	}
	assert.InDelta(t, float64(sum)/float64(len(scores)), p.Reputation(), 1e-9)
	assert.Equal(t, len(scores), p.TotalRatings)

	var empty *Profile
	assert.Zero(t, empty.Reputation())
}

func TestNewAward_FixedAmounts(t *testing.T) {
	now := time.Now()
	a, err := NewAward("u", ReasonMatchAccepted, "m1", now)
	require.NoError(t, err)
	assert.Equal(t, 10, a.Amount)

	a, err = NewAward("u", ReasonResourceUpload, "r1", now)
	require.NoError(t, err)
	assert.Equal(t, 15, a.Amount)

	_, err = NewAward("u", ReasonRatingBonus, "x", now)
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewAward("u", ReasonForumPost, "", now)
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestNewRatingBonus(t *testing.T) {
	_, ok, err := NewRatingBonus(&Rating{ID: "r", RatedUserID: "u", Score: 3}, time.Now())
	assert.NoError(t, err)
	assert.False(t, ok)

	a, ok, err := NewRatingBonus(&Rating{ID: "r", RatedUserID: "u", Score: 5}, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, AwardKey{UserID: "u", Reason: ReasonRatingBonus, SourceID: "r"}, a.Key())
	assert.Equal(t, 10, a.Amount)
}
