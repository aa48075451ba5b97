package matching

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Контракт хранилища. Реализации: infrastructure/persistence/postgres и memory.
//
// Все проверки уникальности и переходы статусов атомарны на уровне хранилища:
// приложение не делает «прочитал → проверил → записал» для инвариантов.
// ══════════════════════════════════════════════════════════════════════════════

// OfferRepository - хранилище офферов.
type OfferRepository interface {
	// Upsert вставляет или обновляет оффер по ключу (userId, subject, role).
	// Возвращает итоговый оффер (с ID существующей записи при обновлении).
	Upsert(ctx context.Context, offer *SubjectOffer) (*SubjectOffer, error)

	// GetByID возвращает оффер. ErrOfferNotFound, если его нет.
	GetByID(ctx context.Context, id string) (*SubjectOffer, error)

	// Delete удаляет оффер. ErrOfferNotFound, если его нет.
	Delete(ctx context.Context, id string) error

	// ListByUser возвращает офферы пользователя. Пустая роль - все роли.
	ListByUser(ctx context.Context, userID string, role Role) ([]*SubjectOffer, error)

	// ListTeachOffers возвращает teach-офферы по предмету в порядке вставки.
	// Пустая срочность - без фильтра.
	ListTeachOffers(ctx context.Context, subject string, urgency Urgency) ([]*SubjectOffer, error)
}

// MatchRepository - хранилище матчей.
type MatchRepository interface {
	// Create вставляет pending-матч. Если для тройки уже есть открытый матч,
	// возвращает ErrOpenMatchExists. Проверка и вставка - одна атомарная операция.
	Create(ctx context.Context, m *Match) error

	// GetByID возвращает матч. ErrMatchNotFound, если его нет.
	GetByID(ctx context.Context, id string) (*Match, error)

	// TransitionStatus - compare-and-swap статуса. Если текущий статус не from,
	// возвращает ошибку вида ErrInvalidTransition.
	TransitionStatus(ctx context.Context, id string, from, to MatchStatus, at time.Time) (*Match, error)

	// SetSchedule записывает время и ссылку, только если матч accepted.
	SetSchedule(ctx context.Context, id string, scheduled time.Time, link string, at time.Time) (*Match, error)

	// HasOpenMatch проверяет наличие pending/accepted матча для тройки.
	HasOpenMatch(ctx context.Context, requesterID, helperID, subject string) (bool, error)

	// ListByUser возвращает матчи, где пользователь - любая из сторон,
	// от новых к старым. Пустой статус - все.
	ListByUser(ctx context.Context, userID string, status MatchStatus) ([]*Match, error)

	// ListByStatus возвращает матчи в указанных статусах, обновлённые не раньше since.
	ListByStatus(ctx context.Context, statuses []MatchStatus, since time.Time, limit int) ([]*Match, error)
}

// SessionRepository - хранилище учебных сессий.
type SessionRepository interface {
	Create(ctx context.Context, s *StudySession) error

	// GetByID возвращает сессию. ErrSessionNotFound, если её нет.
	GetByID(ctx context.Context, id string) (*StudySession, error)

	// TransitionStatus - compare-and-swap статуса сессии.
	TransitionStatus(ctx context.Context, id string, from, to SessionStatus, at time.Time) (*StudySession, error)

	// ListByMatch возвращает сессии матча по времени создания.
	ListByMatch(ctx context.Context, matchID string) ([]*StudySession, error)
}
