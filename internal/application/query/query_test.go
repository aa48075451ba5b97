package query_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/study-match/internal/application/query"
	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/infrastructure/persistence/memory"
	"github.com/campus-hub/study-match/pkg/logger"
)

var now = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func offer(t *testing.T, store *memory.Store, user, subject string, role matching.Role, prof matching.Proficiency, urg matching.Urgency, tags ...string) *matching.SubjectOffer {
	t.Helper()
	o, err := matching.NewSubjectOffer(matching.NewSubjectOfferParams{
		ID:          user + "-" + subject + "-" + string(role),
		UserID:      user,
		Subject:     subject,
		Role:        role,
		Proficiency: prof,
		Urgency:     urg,
		Tags:        tags,
		Now:         now,
	})
	require.NoError(t, err)
	stored, err := store.Offers().Upsert(context.Background(), o)
	require.NoError(t, err)
	return stored
}

func rate(t *testing.T, store *memory.Store, id, rater, rated string, score int) {
	t.Helper()
	r, err := reputation.NewRating(reputation.NewRatingParams{
		ID:          id,
		MatchID:     "m-" + id,
		RaterID:     rater,
		RatedUserID: rated,
		Score:       score,
		Now:         now,
	})
	require.NoError(t, err)
	_, err = store.Ratings().Submit(context.Background(), r)
	require.NoError(t, err)
}

func createMatch(t *testing.T, store *memory.Store, id, requester, helper, subject string) *matching.Match {
	t.Helper()
	m, err := matching.NewMatch(matching.NewMatchParams{
		ID:          id,
		RequesterID: requester,
		HelperID:    helper,
		Subject:     subject,
		Now:         now,
	})
	require.NoError(t, err)
	require.NoError(t, store.Matches().Create(context.Background(), m))
	return m
}

// ══════════════════════════════════════════════════════════════════════════════
// FIND CANDIDATES
// ══════════════════════════════════════════════════════════════════════════════

func newFinder(store *memory.Store) *query.FindCandidatesHandler {
	return query.NewFindCandidatesHandler(store.Offers(), store.Matches(), store.Profiles())
}

func TestFindCandidates_EmptyCases(t *testing.T) {
	store := memory.New()
	h := newFinder(store)
	ctx := context.Background()

	res, err := h.Handle(ctx, query.FindCandidatesQuery{})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates)

	offer(t, store, "bob", "Calculus", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyHigh)
	res, err = h.Handle(ctx, query.FindCandidatesQuery{LearnerID: "alice"})
	require.NoError(t, err)
	assert.Empty(t, res.Candidates, "learner without learn offers gets nothing")
}

func TestFindCandidates_ScenarioScore(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	offer(t, store, "learner", "Calculus", matching.RoleLearn, matching.ProficiencyBeginner, matching.UrgencyHigh, "limits", "series")
	offer(t, store, "helper", "Calculus", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyHigh, "series", "limits", "proofs")
	rate(t, store, "r1", "x", "helper", 4)

	res, err := newFinder(store).Handle(ctx, query.FindCandidatesQuery{LearnerID: "learner"})
	require.NoError(t, err)
	require.Len(t, res.Candidates, 1)

	c := res.Candidates[0]
	assert.Equal(t, "helper", c.HelperID)
	assert.Equal(t, 100, c.Score)
	assert.Equal(t, matching.MatchQualityExcellent, c.Quality)
	assert.InDelta(t, 4.0, c.HelperReputation, 1e-9)
	assert.Equal(t, 1, c.HelperRatings)
	require.NotNil(t, c.LearnerOffer)
	require.NotNil(t, c.HelperOffer)
}

func TestFindCandidates_RanksDescendingWithStableTies(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	offer(t, store, "alice", "Physics", matching.RoleLearn, matching.ProficiencyIntermediate, matching.UrgencyMedium)
	// 50 + 15 = 65
	offer(t, store, "first", "physics", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyLow)
	// 50 + 20 + 15 = 85
	offer(t, store, "best", "Physics", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyMedium)
	// 65, inserted after "first"
	offer(t, store, "second", "Physics", matching.RoleTeach, matching.ProficiencyIntermediate, matching.UrgencyHigh)
	// 50
	offer(t, store, "weak", "Physics", matching.RoleTeach, matching.ProficiencyBeginner, matching.UrgencyLow)
	// own teach offer is never a candidate
	offer(t, store, "alice", "Physics", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyMedium)

	res, err := newFinder(store).Handle(ctx, query.FindCandidatesQuery{LearnerID: "alice"})
	require.NoError(t, err)

	ids := make([]string, 0, len(res.Candidates))
	scores := make([]int, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		ids = append(ids, c.HelperID)
		scores = append(scores, c.Score)
	}
	assert.Equal(t, []string{"best", "first", "second", "weak"}, ids)
	assert.Equal(t, []int{85, 65, 65, 50}, scores)

	limited, err := newFinder(store).Handle(ctx, query.FindCandidatesQuery{LearnerID: "alice", Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited.Candidates, 2)
}

func TestFindCandidates_Filters(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	offer(t, store, "alice", "Calculus", matching.RoleLearn, matching.ProficiencyBeginner, matching.UrgencyHigh)
	offer(t, store, "alice", "History", matching.RoleLearn, matching.ProficiencyBeginner, matching.UrgencyLow)
	offer(t, store, "bob", "Calculus", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyHigh)
	offer(t, store, "carol", "Calculus", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyLow)
	offer(t, store, "dave", "History", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyLow)

	require.NoError(t, store.Profiles().UpsertBasics(ctx, "bob", "Bob", "KBTU"))
	require.NoError(t, store.Profiles().UpsertBasics(ctx, "carol", "Carol", "NU"))
	require.NoError(t, store.Profiles().UpsertBasics(ctx, "dave", "Dave", "kbtu"))

	h := newFinder(store)

	bySubject, err := h.Handle(ctx, query.FindCandidatesQuery{LearnerID: "alice", Subject: "calculus"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "carol"}, helperIDs(bySubject))

	byUrgency, err := h.Handle(ctx, query.FindCandidatesQuery{LearnerID: "alice", Urgency: matching.UrgencyLow})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"carol", "dave"}, helperIDs(byUrgency))

	byUniversity, err := h.Handle(ctx, query.FindCandidatesQuery{LearnerID: "alice", University: "KBTU"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"bob", "dave"}, helperIDs(byUniversity))
	for _, c := range byUniversity.Candidates {
		assert.NotEmpty(t, c.HelperName)
	}
}

func TestFindCandidates_ExcludesOpenMatchesOnly(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	offer(t, store, "alice", "Calculus", matching.RoleLearn, matching.ProficiencyBeginner, matching.UrgencyHigh)
	offer(t, store, "bob", "Calculus", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyHigh)
	offer(t, store, "carol", "Calculus", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyHigh)

	createMatch(t, store, "m1", "alice", "bob", "CALCULUS")
	declined := createMatch(t, store, "m2", "alice", "carol", "Calculus")
	_, err := store.Matches().TransitionStatus(ctx, declined.ID, matching.MatchStatusPending, matching.MatchStatusDeclined, now)
	require.NoError(t, err)

	res, err := newFinder(store).Handle(ctx, query.FindCandidatesQuery{LearnerID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, helperIDs(res))
}

func helperIDs(res *query.FindCandidatesResult) []string {
	out := make([]string, 0, len(res.Candidates))
	for _, c := range res.Candidates {
		out = append(out, c.HelperID)
	}
	return out
}

// ══════════════════════════════════════════════════════════════════════════════
// CAN RATE
// ══════════════════════════════════════════════════════════════════════════════

func TestCanRate(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	h := query.NewCanRateHandler(store.Matches(), store.Ratings())

	m := createMatch(t, store, "m1", "alice", "bob", "Calculus")

	ok, err := h.Handle(ctx, query.CanRateQuery{MatchID: m.ID, UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, ok, "pending match")

	_, err = store.Matches().TransitionStatus(ctx, m.ID, matching.MatchStatusPending, matching.MatchStatusAccepted, now)
	require.NoError(t, err)
	_, err = store.Matches().TransitionStatus(ctx, m.ID, matching.MatchStatusAccepted, matching.MatchStatusCompleted, now)
	require.NoError(t, err)

	ok, err = h.Handle(ctx, query.CanRateQuery{MatchID: m.ID, UserID: "alice"})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Handle(ctx, query.CanRateQuery{MatchID: m.ID, UserID: "mallory"})
	require.NoError(t, err)
	assert.False(t, ok, "outsider")

	ok, err = h.Handle(ctx, query.CanRateQuery{MatchID: "missing", UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, ok, "unknown match")

	r, err := reputation.NewRating(reputation.NewRatingParams{ID: "r1", MatchID: m.ID, RaterID: "alice", RatedUserID: "bob", Score: 5, Now: now})
	require.NoError(t, err)
	_, err = store.Ratings().Submit(ctx, r)
	require.NoError(t, err)

	ok, err = h.Handle(ctx, query.CanRateQuery{MatchID: m.ID, UserID: "alice"})
	require.NoError(t, err)
	assert.False(t, ok, "already rated")

	ok, err = h.Handle(ctx, query.CanRateQuery{MatchID: m.ID, UserID: "bob"})
	require.NoError(t, err)
	assert.True(t, ok, "other party may still rate")
}

// ══════════════════════════════════════════════════════════════════════════════
// USER MATCHES / RATINGS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetUserMatches_TagsRole(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Profiles().UpsertBasics(ctx, "bob", "Bob", "KBTU"))

	createMatch(t, store, "m1", "alice", "bob", "Calculus")
	createMatch(t, store, "m2", "carol", "alice", "History")

	h := query.NewGetUserMatchesHandler(store.Matches(), store.Profiles())
	list, err := h.Handle(ctx, query.GetUserMatchesQuery{UserID: "alice"})
	require.NoError(t, err)
	require.Len(t, list, 2)

	byID := map[string]query.MatchDTO{}
	for _, m := range list {
		byID[m.ID] = m
	}
	assert.Equal(t, query.MatchRoleRequested, byID["m1"].Role)
	assert.Equal(t, "bob", byID["m1"].OtherUserID)
	assert.Equal(t, "Bob", byID["m1"].OtherName)
	assert.Equal(t, query.MatchRoleHelping, byID["m2"].Role)
	assert.Equal(t, "carol", byID["m2"].OtherUserID)

	accepted, err := h.Handle(ctx, query.GetUserMatchesQuery{UserID: "alice", Status: matching.MatchStatusAccepted})
	require.NoError(t, err)
	assert.Empty(t, accepted)
}

func TestGetUserRatings(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	require.NoError(t, store.Profiles().UpsertBasics(ctx, "alice", "Alice", "NU"))

	rate(t, store, "r1", "alice", "bob", 5)
	rate(t, store, "r2", "carol", "bob", 2)

	h := query.NewGetUserRatingsHandler(store.Ratings(), store.Profiles())
	res, err := h.Handle(ctx, query.GetUserRatingsQuery{UserID: "bob"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.TotalRatings)
	assert.InDelta(t, 3.5, res.Reputation, 1e-9)
	require.Len(t, res.Ratings, 2)
	assert.Equal(t, "r2", res.Ratings[0].ID, "newest first")
	assert.Equal(t, "Alice", res.Ratings[1].RaterName)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD
// ══════════════════════════════════════════════════════════════════════════════

type stubCache struct {
	top []reputation.RankedUser
	err error
}

func (s *stubCache) Top(_ context.Context, limit int) ([]reputation.RankedUser, error) {
	if s.err != nil {
		return nil, s.err
	}
	if len(s.top) > limit {
		return s.top[:limit], nil
	}
	return s.top, nil
}

func (s *stubCache) SetPoints(context.Context, string, int) error { return nil }

func seedPoints(t *testing.T, store *memory.Store) {
	t.Helper()
	ctx := context.Background()
	for _, a := range []struct {
		user   string
		reason reputation.Reason
		source string
	}{
		{"alice", reputation.ReasonResourceUpload, "res-1"},
		{"bob", reputation.ReasonForumPost, "post-1"},
		{"bob", reputation.ReasonForumReply, "reply-1"},
		{"carol", reputation.ReasonMatchAccepted, "m-1"},
	} {
		award, err := reputation.NewAward(a.user, a.reason, a.source, now)
		require.NoError(t, err)
		_, _, err = store.Profiles().ApplyAward(ctx, award)
		require.NoError(t, err)
	}
}

func TestGetLeaderboard_FromStore(t *testing.T) {
	store := memory.New()
	seedPoints(t, store)

	h := query.NewGetLeaderboardHandler(store.Profiles(), nil, logger.Nop())
	res, err := h.Handle(context.Background(), query.GetLeaderboardQuery{Limit: 2})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "alice", res.Entries[0].UserID)
	assert.Equal(t, 15, res.Entries[0].Points)
	assert.Equal(t, 1, res.Entries[0].Rank)
	assert.Equal(t, "carol", res.Entries[1].UserID)
}

func TestGetLeaderboard_CachePreferredWithFallback(t *testing.T) {
	store := memory.New()
	seedPoints(t, store)
	require.NoError(t, store.Profiles().UpsertBasics(context.Background(), "bob", "Bob", "NU"))

	cache := &stubCache{top: []reputation.RankedUser{{UserID: "bob", Points: 99}}}
	h := query.NewGetLeaderboardHandler(store.Profiles(), cache, logger.Nop())

	res, err := h.Handle(context.Background(), query.GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.True(t, res.FromCache)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "Bob", res.Entries[0].Name)
	assert.Equal(t, 99, res.Entries[0].Points)

	cache.err = errors.New("redis down")
	res, err = h.Handle(context.Background(), query.GetLeaderboardQuery{})
	require.NoError(t, err)
	assert.False(t, res.FromCache)
	assert.Len(t, res.Entries, 3)
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATIONS / OFFERS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetNotifications(t *testing.T) {
	store := memory.New()
	ctx := context.Background()

	for i, kind := range []notification.Kind{notification.KindMatchRequest, notification.KindNewMessage} {
		n, err := notification.NewNotification(notification.NewNotificationParams{
			ID:      string(rune('a' + i)),
			UserID:  "bob",
			Kind:    kind,
			Title:   "t",
			Message: "m",
			Now:     now.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
		require.NoError(t, store.Notifications().Insert(ctx, n))
	}
	_, err := store.Notifications().MarkRead(ctx, "bob", []string{"a"})
	require.NoError(t, err)

	h := query.NewGetNotificationsHandler(store.Notifications())

	all, err := h.Handle(ctx, query.GetNotificationsQuery{UserID: "bob"})
	require.NoError(t, err)
	assert.Len(t, all.Notifications, 2)
	assert.Equal(t, 1, all.UnreadCount)

	unread, err := h.Handle(ctx, query.GetNotificationsQuery{UserID: "bob", UnreadOnly: true})
	require.NoError(t, err)
	require.Len(t, unread.Notifications, 1)
	assert.Equal(t, "b", unread.Notifications[0].ID)

	anon, err := h.Handle(ctx, query.GetNotificationsQuery{})
	require.NoError(t, err)
	assert.Empty(t, anon.Notifications)
}

func TestListOffers(t *testing.T) {
	store := memory.New()
	offer(t, store, "alice", "Calculus", matching.RoleLearn, matching.ProficiencyBeginner, matching.UrgencyHigh)
	offer(t, store, "alice", "Physics", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyLow)
	offer(t, store, "bob", "Physics", matching.RoleTeach, matching.ProficiencyAdvanced, matching.UrgencyLow)

	h := query.NewListOffersHandler(store.Offers())

	all, err := h.Handle(context.Background(), query.ListOffersQuery{UserID: "alice"})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	teach, err := h.Handle(context.Background(), query.ListOffersQuery{UserID: "alice", Role: matching.RoleTeach})
	require.NoError(t, err)
	require.Len(t, teach, 1)
	assert.Equal(t, "Physics", teach[0].Subject)
}
