package matching

import (
	"strings"
	"time"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH STATUS
// Машина состояний:
//
//	pending ──accept──► accepted ──complete──► completed
//	   │
//	   └──decline──► declined
//
// declined и completed терминальны. Из них переходов нет.
// ══════════════════════════════════════════════════════════════════════════════

// MatchStatus - статус матча.
type MatchStatus string

const (
	// MatchStatusPending - запрос создан, ждёт ответа помощника.
	MatchStatusPending MatchStatus = "pending"

	// MatchStatusAccepted - помощник согласился.
	MatchStatusAccepted MatchStatus = "accepted"

	// MatchStatusDeclined - помощник отказал. Терминальный.
	MatchStatusDeclined MatchStatus = "declined"

	// MatchStatusCompleted - сессия проведена. Терминальный.
	MatchStatusCompleted MatchStatus = "completed"
)

// IsValid проверяет корректность статуса.
func (s MatchStatus) IsValid() bool {
	switch s {
	case MatchStatusPending, MatchStatusAccepted, MatchStatusDeclined, MatchStatusCompleted:
		return true
	default:
		return false
	}
}

// IsTerminal возвращает true для declined и completed.
func (s MatchStatus) IsTerminal() bool {
	return s == MatchStatusDeclined || s == MatchStatusCompleted
}

// OpenStatuses - нетерминальные статусы. По ним проверяется уникальность тройки.
var OpenStatuses = []MatchStatus{MatchStatusPending, MatchStatusAccepted}

var matchTransitions = map[MatchStatus][]MatchStatus{
	MatchStatusPending:  {MatchStatusAccepted, MatchStatusDeclined},
	MatchStatusAccepted: {MatchStatusCompleted},
}

// CanTransition сообщает, разрешён ли переход from → to.
func CanTransition(from, to MatchStatus) bool {
	for _, next := range matchTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Decision - ответ помощника на запрос.
type Decision string

const (
	DecisionAccept  Decision = "accept"
	DecisionDecline Decision = "decline"
)

// IsValid проверяет корректность решения.
func (d Decision) IsValid() bool {
	return d == DecisionAccept || d == DecisionDecline
}

// Target возвращает статус, в который переводит решение.
func (d Decision) Target() MatchStatus {
	if d == DecisionAccept {
		return MatchStatusAccepted
	}
	return MatchStatusDeclined
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH
// Связь запрашивающего и помощника по одному предмету.
// ══════════════════════════════════════════════════════════════════════════════

// Match - агрегат жизненного цикла матча.
type Match struct {
	// ID - идентификатор матча (UUID).
	ID string

	// RequesterID - кто попросил помощи.
	RequesterID string

	// HelperID - у кого попросили помощи.
	HelperID string

	// Subject - предмет.
	Subject string

	// Status - текущий статус.
	Status MatchStatus

	// Message - сопроводительное сообщение. Опционально.
	Message string

	// ScheduledTime - время сессии. Только для accepted.
	ScheduledTime *time.Time

	// MeetingLink - ссылка на встречу. Опционально.
	MeetingLink string

	CreatedAt time.Time
	UpdatedAt time.Time

	// RespondedAt - когда помощник ответил.
	RespondedAt *time.Time

	// CompletedAt - когда матч завершён.
	CompletedAt *time.Time
}

// NewMatchParams параметры для создания матча.
type NewMatchParams struct {
	ID          string
	RequesterID string
	HelperID    string
	Subject     string
	Message     string
	Now         time.Time
}

// NewMatch создаёт матч в статусе pending.
func NewMatch(p NewMatchParams) (*Match, error) {
	subject := strings.Join(strings.Fields(p.Subject), " ")
	switch {
	case p.RequesterID == "":
		return nil, shared.NewDomainError("matching", "NewMatch", shared.ErrValidation, "requester id is required")
	case p.HelperID == "":
		return nil, shared.NewDomainError("matching", "NewMatch", shared.ErrValidation, "helper id is required")
	case subject == "":
		return nil, shared.NewDomainError("matching", "NewMatch", shared.ErrValidation, "subject is required")
	case p.RequesterID == p.HelperID:
		return nil, shared.ErrSelfMatch
	}

	return &Match{
		ID:          p.ID,
		RequesterID: p.RequesterID,
		HelperID:    p.HelperID,
		Subject:     subject,
		Status:      MatchStatusPending,
		Message:     strings.TrimSpace(p.Message),
		CreatedAt:   p.Now,
		UpdatedAt:   p.Now,
	}, nil
}

// Key возвращает тройку уникальности (requester, helper, subject).
func (m *Match) Key() MatchKey {
	return MatchKey{RequesterID: m.RequesterID, HelperID: m.HelperID, Subject: NormalizeSubject(m.Subject)}
}

// MatchKey - тройка, по которой допускается не больше одного открытого матча.
type MatchKey struct {
	RequesterID string
	HelperID    string
	Subject     string
}

// IsParty проверяет, является ли пользователь одной из сторон матча.
func (m *Match) IsParty(userID string) bool {
	return userID != "" && (userID == m.RequesterID || userID == m.HelperID)
}

// OtherParty возвращает вторую сторону матча.
func (m *Match) OtherParty(userID string) string {
	if userID == m.RequesterID {
		return m.HelperID
	}
	return m.RequesterID
}

// CheckRespond проверяет, может ли пользователь ответить на матч.
// Проверка прав идёт раньше проверки статуса.
func (m *Match) CheckRespond(byUserID string) error {
	if byUserID != m.HelperID {
		return shared.ErrNotHelper
	}
	if m.Status != MatchStatusPending {
		return shared.ErrMatchNotPending
	}
	return nil
}

// CheckSchedule проверяет, можно ли назначить сессию.
func (m *Match) CheckSchedule(byUserID string) error {
	if !m.IsParty(byUserID) {
		return shared.ErrNotParty
	}
	if m.Status != MatchStatusAccepted {
		return shared.ErrMatchNotAccepted
	}
	return nil
}

// CheckComplete проверяет завершение. Возвращает done=true, если матч уже
// completed и вызов нужно считать no-op.
func (m *Match) CheckComplete() (done bool, err error) {
	switch m.Status {
	case MatchStatusCompleted:
		return true, nil
	case MatchStatusAccepted:
		return false, nil
	default:
		return false, shared.NewDomainError("matching", "Complete", shared.ErrInvalidTransition,
			"only accepted matches can be completed, got "+string(m.Status))
	}
}

// Apply переводит матч в новый статус в памяти.
func (m *Match) Apply(to MatchStatus, at time.Time) error {
	if m.Status.IsTerminal() {
		return shared.ErrMatchTerminal
	}
	if !CanTransition(m.Status, to) {
		return shared.NewDomainError("matching", "Transition", shared.ErrInvalidTransition,
			string(m.Status)+" -> "+string(to)+" is not allowed")
	}
	m.Status = to
	m.UpdatedAt = at
	switch to {
	case MatchStatusAccepted, MatchStatusDeclined:
		m.RespondedAt = &at
	case MatchStatusCompleted:
		m.CompletedAt = &at
	}
	return nil
}

// Clone возвращает копию матча.
func (m *Match) Clone() *Match {
	c := *m
	if m.ScheduledTime != nil {
		t := *m.ScheduledTime
		c.ScheduledTime = &t
	}
	if m.RespondedAt != nil {
		t := *m.RespondedAt
		c.RespondedAt = &t
	}
	if m.CompletedAt != nil {
		t := *m.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
