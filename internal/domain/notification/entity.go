// Package notification содержит доменную модель уведомлений: записи для
// конкретного пользователя, создаваемые при переходах жизненного цикла матча
// и внешними источниками (чат, напоминания об экзаменах).
package notification

import (
	"context"
	"strings"
	"time"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION KIND
// ══════════════════════════════════════════════════════════════════════════════

// Kind определяет тип уведомления.
type Kind string

const (
	// KindMatchRequest - помощнику пришёл запрос.
	KindMatchRequest Kind = "match_request"

	// KindMatchAccepted - ответ на запрос (и принятие, и отказ).
	KindMatchAccepted Kind = "match_accepted"

	// KindNewMessage - новое сообщение в чате (внешний источник).
	KindNewMessage Kind = "new_message"

	// KindSessionReminder - сессия назначена или скоро начнётся.
	KindSessionReminder Kind = "session_reminder"

	// KindExamReminder - напоминание об экзамене (внешний источник).
	KindExamReminder Kind = "exam_reminder"
)

// IsValid проверяет, что тип уведомления корректен.
func (k Kind) IsValid() bool {
	switch k {
	case KindMatchRequest, KindMatchAccepted, KindNewMessage, KindSessionReminder, KindExamReminder:
		return true
	default:
		return false
	}
}

// IsExternal - типы, которые могут создавать внешние сервисы.
func (k Kind) IsExternal() bool {
	return k == KindNewMessage || k == KindExamReminder
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - запись уведомления. Создаётся непрочитанной.
type Notification struct {
	ID        string
	UserID    string
	Kind      Kind
	Title     string
	Message   string
	RelatedID string
	IsRead    bool
	CreatedAt time.Time
}

// NewNotificationParams параметры для создания уведомления.
type NewNotificationParams struct {
	ID        string
	UserID    string
	Kind      Kind
	Title     string
	Message   string
	RelatedID string
	Now       time.Time
}

// NewNotification создаёт уведомление с валидацией.
func NewNotification(p NewNotificationParams) (*Notification, error) {
	if p.UserID == "" {
		return nil, shared.NewDomainError("notification", "New", shared.ErrValidation, "recipient is required")
	}
	if !p.Kind.IsValid() {
		return nil, shared.ErrInvalidNotificationKind
	}
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, shared.NewDomainError("notification", "New", shared.ErrValidation, "title is required")
	}
	return &Notification{
		ID:        p.ID,
		UserID:    p.UserID,
		Kind:      p.Kind,
		Title:     title,
		Message:   strings.TrimSpace(p.Message),
		RelatedID: p.RelatedID,
		CreatedAt: p.Now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEMPLATES
// Тексты уведомлений жизненного цикла.
// ══════════════════════════════════════════════════════════════════════════════

// Content - заголовок и текст.
type Content struct {
	Kind    Kind
	Title   string
	Message string
}

// MatchRequested - помощнику о новом запросе.
func MatchRequested(subject string) Content {
	return Content{
		Kind:    KindMatchRequest,
		Title:   "New Match Request",
		Message: "Someone wants to learn " + subject + " from you!",
	}
}

// MatchResponded - запрашивающему о решении помощника.
func MatchResponded(subject string, accepted bool) Content {
	if accepted {
		return Content{
			Kind:    KindMatchAccepted,
			Title:   "Match Accepted!",
			Message: "Your request to learn " + subject + " has been accepted!",
		}
	}
	return Content{
		Kind:    KindMatchAccepted,
		Title:   "Match Declined",
		Message: "Your request to learn " + subject + " was declined.",
	}
}

// SessionScheduled - второй стороне о назначенной сессии.
func SessionScheduled(subject string, at time.Time) Content {
	return Content{
		Kind:    KindSessionReminder,
		Title:   "Session Scheduled",
		Message: "A study session for " + subject + " has been scheduled for " + at.UTC().Format("Jan 2, 2006 15:04 MST") + ".",
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY
// ══════════════════════════════════════════════════════════════════════════════

// Repository - хранилище уведомлений.
type Repository interface {
	Insert(ctx context.Context, n *Notification) error

	// ListByUser возвращает уведомления пользователя, от новых к старым.
	ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*Notification, error)

	// MarkRead помечает прочитанными уведомления пользователя из списка.
	// Чужие ID игнорируются. Возвращает число изменённых записей.
	MarkRead(ctx context.Context, userID string, ids []string) (int, error)

	// MarkAllRead помечает прочитанными все уведомления пользователя.
	MarkAllRead(ctx context.Context, userID string) (int, error)

	// CountUnread возвращает число непрочитанных.
	CountUnread(ctx context.Context, userID string) (int, error)
}
