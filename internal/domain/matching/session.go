package matching

import (
	"time"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STUDY SESSION
// Создаётся при назначении времени у accepted-матча. Дальше живёт своей жизнью:
//
//	scheduled ──► active ──► completed
//	    │            │
//	    └────────────┴──► cancelled
// ══════════════════════════════════════════════════════════════════════════════

// DefaultSessionDuration - длительность сессии по умолчанию.
const DefaultSessionDuration = 60 * time.Minute

// SessionStatus - статус учебной сессии.
type SessionStatus string

const (
	SessionStatusScheduled SessionStatus = "scheduled"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusCancelled SessionStatus = "cancelled"
)

// IsValid проверяет корректность статуса.
func (s SessionStatus) IsValid() bool {
	switch s {
	case SessionStatusScheduled, SessionStatusActive, SessionStatusCompleted, SessionStatusCancelled:
		return true
	default:
		return false
	}
}

var sessionTransitions = map[SessionStatus][]SessionStatus{
	SessionStatusScheduled: {SessionStatusActive, SessionStatusCancelled},
	SessionStatusActive:    {SessionStatusCompleted, SessionStatusCancelled},
}

// CanTransitionSession сообщает, разрешён ли переход сессии.
func CanTransitionSession(from, to SessionStatus) bool {
	for _, next := range sessionTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StudySession - учебная сессия по матчу.
type StudySession struct {
	ID string

	// MatchID - матч, из которого создана сессия.
	MatchID string

	// Title - "<subject> Study Session".
	Title string

	// Subject копируется из матча.
	Subject string

	// HostID - кто назначил сессию.
	HostID string

	// ParticipantIDs - обе стороны матча.
	ParticipantIDs []string

	ScheduledTime time.Time
	Duration      time.Duration
	MeetingLink   string
	Status        SessionStatus

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSessionFromMatch создаёт сессию в статусе scheduled.
func NewSessionFromMatch(id string, m *Match, hostID string, at time.Time, link string, now time.Time) *StudySession {
	return &StudySession{
		ID:             id,
		MatchID:        m.ID,
		Title:          m.Subject + " Study Session",
		Subject:        m.Subject,
		HostID:         hostID,
		ParticipantIDs: []string{m.RequesterID, m.HelperID},
		ScheduledTime:  at,
		Duration:       DefaultSessionDuration,
		MeetingLink:    link,
		Status:         SessionStatusScheduled,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// IsParticipant проверяет участие пользователя.
func (s *StudySession) IsParticipant(userID string) bool {
	for _, id := range s.ParticipantIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// CheckTransition проверяет право и допустимость перехода.
func (s *StudySession) CheckTransition(byUserID string, to SessionStatus) error {
	if !s.IsParticipant(byUserID) {
		return shared.ErrNotParticipant
	}
	if !CanTransitionSession(s.Status, to) {
		return shared.WrapError("matching", "TransitionSession", shared.ErrInvalidTransition,
			string(s.Status)+" -> "+string(to)+" is not allowed", shared.ErrSessionTransition)
	}
	return nil
}

// Clone возвращает копию сессии.
func (s *StudySession) Clone() *StudySession {
	c := *s
	c.ParticipantIDs = append([]string(nil), s.ParticipantIDs...)
	return &c
}
