package memory

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

var t0 = time.Date(2025, 4, 1, 10, 0, 0, 0, time.UTC)

func newMatch(id, subject string) *matching.Match {
	return &matching.Match{
		ID: id, RequesterID: "L", HelperID: "H", Subject: subject,
		Status: matching.MatchStatusPending, CreatedAt: t0, UpdatedAt: t0,
	}
}

func TestMatchRepository_ConcurrentCreateAdmitsOne(t *testing.T) {
	repo := New().Matches()
	ctx := context.Background()

	const n = 32
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = repo.Create(ctx, newMatch(fmt.Sprintf("m%d", i), "Calculus"))
		}(i)
	}
	wg.Wait()

	ok, dup := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case assert.ErrorIs(t, err, shared.ErrDuplicateRequest):
			dup++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dup)

	pending, err := repo.ListByUser(ctx, "L", matching.MatchStatusPending)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestMatchRepository_SubjectKeyIsCaseInsensitive(t *testing.T) {
	repo := New().Matches()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newMatch("a", "Calculus")))
	assert.ErrorIs(t, repo.Create(ctx, newMatch("b", "calculus")), shared.ErrDuplicateRequest)

	open, err := repo.HasOpenMatch(ctx, "L", "H", "CALCULUS")
	require.NoError(t, err)
	assert.True(t, open)
}

func TestMatchRepository_TerminalFreesTriple(t *testing.T) {
	repo := New().Matches()
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, newMatch("a", "Physics")))
	_, err := repo.TransitionStatus(ctx, "a", matching.MatchStatusPending, matching.MatchStatusDeclined, t0)
	require.NoError(t, err)

	open, err := repo.HasOpenMatch(ctx, "L", "H", "Physics")
	require.NoError(t, err)
	assert.False(t, open)
	assert.NoError(t, repo.Create(ctx, newMatch("b", "Physics")))
}

func TestMatchRepository_TransitionIsCompareAndSwap(t *testing.T) {
	repo := New().Matches()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newMatch("a", "Chem")))

	_, err := repo.TransitionStatus(ctx, "a", matching.MatchStatusAccepted, matching.MatchStatusCompleted, t0)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	m, err := repo.TransitionStatus(ctx, "a", matching.MatchStatusPending, matching.MatchStatusAccepted, t0)
	require.NoError(t, err)
	assert.Equal(t, matching.MatchStatusAccepted, m.Status)

	_, err = repo.TransitionStatus(ctx, "a", matching.MatchStatusPending, matching.MatchStatusDeclined, t0)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = repo.TransitionStatus(ctx, "missing", matching.MatchStatusPending, matching.MatchStatusAccepted, t0)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestMatchRepository_SetScheduleRequiresAccepted(t *testing.T) {
	repo := New().Matches()
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, newMatch("a", "Chem")))

	_, err := repo.SetSchedule(ctx, "a", t0.Add(time.Hour), "", t0)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	_, err = repo.TransitionStatus(ctx, "a", matching.MatchStatusPending, matching.MatchStatusAccepted, t0)
	require.NoError(t, err)
	m, err := repo.SetSchedule(ctx, "a", t0.Add(time.Hour), "https://meet", t0)
	require.NoError(t, err)
	assert.Equal(t, "https://meet", m.MeetingLink)
	require.NotNil(t, m.ScheduledTime)
}

func TestOfferRepository_UpsertAndOrder(t *testing.T) {
	repo := New().Offers()
	ctx := context.Background()

	mk := func(id, user string, u matching.Urgency) *matching.SubjectOffer {
		return &matching.SubjectOffer{ID: id, UserID: user, Subject: "Calculus", Role: matching.RoleTeach,
			Proficiency: matching.ProficiencyAdvanced, Urgency: u, CreatedAt: t0}
	}

	_, err := repo.Upsert(ctx, mk("o1", "h1", matching.UrgencyLow))
	require.NoError(t, err)
	_, err = repo.Upsert(ctx, mk("o2", "h2", matching.UrgencyHigh))
	require.NoError(t, err)

	updated, err := repo.Upsert(ctx, mk("o3", "h1", matching.UrgencyHigh))
	require.NoError(t, err)
	assert.Equal(t, "o1", updated.ID)

	all, err := repo.ListTeachOffers(ctx, "calculus", "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "o1", all[0].ID)
	assert.Equal(t, matching.UrgencyHigh, all[0].Urgency)

	high, err := repo.ListTeachOffers(ctx, "Calculus", matching.UrgencyHigh)
	require.NoError(t, err)
	assert.Len(t, high, 2)

	require.NoError(t, repo.Delete(ctx, "o1"))
	assert.ErrorIs(t, repo.Delete(ctx, "o1"), shared.ErrNotFound)
}

func TestRatingRepository_AtomicMeanUnderConcurrency(t *testing.T) {
	store := New()
	ratings := store.Ratings()
	ctx := context.Background()

	const n = 50
	var wg sync.WaitGroup
	sum := 0
	for i := 0; i < n; i++ {
		score := i%5 + 1
		sum += score
		wg.Add(1)
		go func(i, score int) {
			defer wg.Done()
			_, err := ratings.Submit(ctx, &reputation.Rating{
				ID: fmt.Sprintf("r%d", i), MatchID: fmt.Sprintf("m%d", i),
				RaterID: "rater", RatedUserID: "target", Score: score, CreatedAt: t0,
			})
			assert.NoError(t, err)
		}(i, score)
	}
	wg.Wait()

	p, err := store.Profiles().Get(ctx, "target")
	require.NoError(t, err)
	assert.Equal(t, n, p.TotalRatings)
	assert.InDelta(t, float64(sum)/n, p.Reputation(), 1e-9)
}

func TestRatingRepository_DuplicateRejected(t *testing.T) {
	ratings := New().Ratings()
	ctx := context.Background()
	r := &reputation.Rating{ID: "r1", MatchID: "m", RaterID: "a", RatedUserID: "b", Score: 4, CreatedAt: t0}

	_, err := ratings.Submit(ctx, r)
	require.NoError(t, err)

	r2 := *r
	r2.ID = "r2"
	_, err = ratings.Submit(ctx, &r2)
	assert.ErrorIs(t, err, shared.ErrDuplicateRating)

	ok, err := ratings.Exists(ctx, "a", "m")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestProfileRepository_ApplyAwardIdempotent(t *testing.T) {
	profiles := New().Profiles()
	ctx := context.Background()
	a, err := reputation.NewAward("h", reputation.ReasonMatchAccepted, "m1", t0)
	require.NoError(t, err)

	applied, total, err := profiles.ApplyAward(ctx, a)
	require.NoError(t, err)
	assert.True(t, applied)
	assert.Equal(t, 10, total)

	applied, total, err = profiles.ApplyAward(ctx, a)
	require.NoError(t, err)
	assert.False(t, applied)
	assert.Equal(t, 10, total)

	top, err := profiles.TopByPoints(ctx, 10)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, "h", top[0].UserID)
}

func TestNotificationRepository(t *testing.T) {
	repo := New().Notifications()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Insert(ctx, &notification.Notification{
			ID: fmt.Sprintf("n%d", i), UserID: "u", Kind: notification.KindNewMessage, Title: "t", CreatedAt: t0,
		}))
	}
	require.NoError(t, repo.Insert(ctx, &notification.Notification{ID: "other", UserID: "v", Kind: notification.KindNewMessage, Title: "t"}))

	list, err := repo.ListByUser(ctx, "u", false, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "n2", list[0].ID)

	n, err := repo.MarkRead(ctx, "u", []string{"n0", "other"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	unread, err := repo.CountUnread(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	n, err = repo.MarkAllRead(ctx, "u")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	unread, err = repo.CountUnread(ctx, "v")
	require.NoError(t, err)
	assert.Equal(t, 1, unread)
}
