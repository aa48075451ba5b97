package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

var now = time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

func newPending(t *testing.T) *Match {
	t.Helper()
	m, err := NewMatch(NewMatchParams{ID: "m1", RequesterID: "L", HelperID: "H", Subject: "  Calculus ", Now: now})
	require.NoError(t, err)
	return m
}

func TestNewMatch(t *testing.T) {
	m := newPending(t)
	assert.Equal(t, MatchStatusPending, m.Status)
	assert.Equal(t, "Calculus", m.Subject)
	assert.Equal(t, MatchKey{RequesterID: "L", HelperID: "H", Subject: "calculus"}, m.Key())

	_, err := NewMatch(NewMatchParams{RequesterID: "L", HelperID: "L", Subject: "x"})
	assert.ErrorIs(t, err, shared.ErrValidation)

	_, err = NewMatch(NewMatchParams{RequesterID: "L", HelperID: "H"})
	assert.ErrorIs(t, err, shared.ErrValidation)
}

func TestCanTransition_Graph(t *testing.T) {
	all := []MatchStatus{MatchStatusPending, MatchStatusAccepted, MatchStatusDeclined, MatchStatusCompleted}
	allowed := map[[2]MatchStatus]bool{
		{MatchStatusPending, MatchStatusAccepted}:   true,
		{MatchStatusPending, MatchStatusDeclined}:   true,
		{MatchStatusAccepted, MatchStatusCompleted}: true,
	}

	for _, from := range all {
		for _, to := range all {
			assert.Equal(t, allowed[[2]MatchStatus{from, to}], CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestMatch_Apply(t *testing.T) {
	m := newPending(t)
	require.NoError(t, m.Apply(MatchStatusAccepted, now.Add(time.Minute)))
	assert.NotNil(t, m.RespondedAt)

	require.NoError(t, m.Apply(MatchStatusCompleted, now.Add(time.Hour)))
	assert.NotNil(t, m.CompletedAt)

	err := m.Apply(MatchStatusAccepted, now)
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	d := newPending(t)
	require.NoError(t, d.Apply(MatchStatusDeclined, now))
	assert.ErrorIs(t, d.Apply(MatchStatusCompleted, now), shared.ErrInvalidTransition)
}

func TestMatch_CheckRespond_AuthorizationFirst(t *testing.T) {
	for _, status := range []MatchStatus{MatchStatusPending, MatchStatusAccepted, MatchStatusDeclined, MatchStatusCompleted} {
		m := newPending(t)
		m.Status = status
		assert.ErrorIs(t, m.CheckRespond("L"), shared.ErrUnauthorized, status)
		assert.ErrorIs(t, m.CheckRespond("stranger"), shared.ErrUnauthorized, status)
	}

	m := newPending(t)
	assert.NoError(t, m.CheckRespond("H"))
	m.Status = MatchStatusDeclined
	assert.ErrorIs(t, m.CheckRespond("H"), shared.ErrInvalidTransition)
}

func TestMatch_CheckSchedule(t *testing.T) {
	m := newPending(t)
	assert.ErrorIs(t, m.CheckSchedule("H"), shared.ErrInvalidTransition)
	m.Status = MatchStatusAccepted
	assert.NoError(t, m.CheckSchedule("L"))
	assert.NoError(t, m.CheckSchedule("H"))
	assert.ErrorIs(t, m.CheckSchedule("X"), shared.ErrUnauthorized)
}

func TestMatch_CheckComplete(t *testing.T) {
	m := newPending(t)
	_, err := m.CheckComplete()
	assert.ErrorIs(t, err, shared.ErrInvalidTransition)

	m.Status = MatchStatusAccepted
	done, err := m.CheckComplete()
	assert.NoError(t, err)
	assert.False(t, done)

	m.Status = MatchStatusCompleted
	done, err = m.CheckComplete()
	assert.NoError(t, err)
	assert.True(t, done)
}

func TestSession_FromMatchAndTransitions(t *testing.T) {
	m := newPending(t)
	s := NewSessionFromMatch("s1", m, "H", now.Add(24*time.Hour), "https://meet/x", now)

	assert.Equal(t, "Calculus Study Session", s.Title)
	assert.Equal(t, []string{"L", "H"}, s.ParticipantIDs)
	assert.Equal(t, 60*time.Minute, s.Duration)
	assert.Equal(t, SessionStatusScheduled, s.Status)

	assert.NoError(t, s.CheckTransition("L", SessionStatusActive))
	assert.ErrorIs(t, s.CheckTransition("X", SessionStatusActive), shared.ErrUnauthorized)
	assert.ErrorIs(t, s.CheckTransition("L", SessionStatusCompleted), shared.ErrInvalidTransition)

	assert.True(t, CanTransitionSession(SessionStatusActive, SessionStatusCancelled))
	assert.False(t, CanTransitionSession(SessionStatusCompleted, SessionStatusCancelled))
}

func TestNewSubjectOffer_Validation(t *testing.T) {
	o, err := NewSubjectOffer(NewSubjectOfferParams{
		UserID: "u", Subject: " Linear  Algebra ", Role: RoleLearn,
		Proficiency: ProficiencyBeginner, Urgency: UrgencyLow, Tags: []string{"Proofs"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Linear Algebra", o.Subject)
	assert.Equal(t, OfferKey{UserID: "u", Subject: "linear algebra", Role: RoleLearn}, o.Key())

	_, err = NewSubjectOffer(NewSubjectOfferParams{UserID: "u", Subject: "x", Role: "both", Proficiency: ProficiencyBeginner, Urgency: UrgencyLow})
	assert.ErrorIs(t, err, shared.ErrValidation)
	_, err = NewSubjectOffer(NewSubjectOfferParams{UserID: "u", Subject: "x", Role: RoleTeach, Proficiency: "guru", Urgency: UrgencyLow})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
