// Package matching содержит доменную модель подбора: предложения по предметам,
// жизненный цикл матча, учебные сессии и алгоритм оценки совместимости.
package matching

import (
	"sort"
	"strings"
	"time"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Role определяет, хочет пользователь учить или учиться.
type Role string

const (
	// RoleTeach - пользователь готов помогать по предмету.
	RoleTeach Role = "teach"

	// RoleLearn - пользователь ищет помощь по предмету.
	RoleLearn Role = "learn"
)

// IsValid проверяет корректность роли.
func (r Role) IsValid() bool {
	return r == RoleTeach || r == RoleLearn
}

// Proficiency - уровень владения предметом. Уровни упорядочены.
type Proficiency string

const (
	ProficiencyBeginner     Proficiency = "beginner"
	ProficiencyIntermediate Proficiency = "intermediate"
	ProficiencyAdvanced     Proficiency = "advanced"
)

// Ordinal возвращает порядковый номер уровня: 1, 2, 3 (0 для неизвестного).
func (p Proficiency) Ordinal() int {
	switch p {
	case ProficiencyBeginner:
		return 1
	case ProficiencyIntermediate:
		return 2
	case ProficiencyAdvanced:
		return 3
	default:
		return 0
	}
}

// IsValid проверяет корректность уровня.
func (p Proficiency) IsValid() bool {
	return p.Ordinal() > 0
}

// Urgency - срочность запроса.
type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyMedium Urgency = "medium"
	UrgencyHigh   Urgency = "high"
)

// IsValid проверяет корректность срочности.
func (u Urgency) IsValid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh:
		return true
	default:
		return false
	}
}

// Tags - нормализованное множество тегов (нижний регистр, без дублей, отсортировано).
type Tags []string

// NewTags нормализует произвольный список тегов.
func NewTags(raw []string) Tags {
	seen := make(map[string]struct{}, len(raw))
	out := make(Tags, 0, len(raw))
	for _, t := range raw {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// CommonCount возвращает размер пересечения двух множеств тегов.
func (t Tags) CommonCount(other Tags) int {
	if len(t) == 0 || len(other) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(other))
	for _, tag := range other {
		set[tag] = struct{}{}
	}
	n := 0
	for _, tag := range t {
		if _, ok := set[tag]; ok {
			n++
		}
	}
	return n
}

// NormalizeSubject приводит название предмета к каноничному виду.
// Сравнение предметов регистронезависимое, исходное написание сохраняется в оффере.
func NormalizeSubject(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// ══════════════════════════════════════════════════════════════════════════════
// SUBJECT OFFER
// Заявленный интерес пользователя к предмету: учить или учиться.
// Уникален по (UserID, Subject, Role).
// ══════════════════════════════════════════════════════════════════════════════

// SubjectOffer - предложение пользователя по предмету.
type SubjectOffer struct {
	// ID - идентификатор оффера (UUID).
	ID string

	// UserID - владелец оффера.
	UserID string

	// Subject - название предмета в написании пользователя.
	Subject string

	// Role - teach или learn.
	Role Role

	// Proficiency - уровень владения.
	Proficiency Proficiency

	// Urgency - срочность.
	Urgency Urgency

	// TargetDate - желаемая дата (например, экзамен). Опционально.
	TargetDate *time.Time

	// Tags - свободные теги.
	Tags Tags

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewSubjectOfferParams параметры для создания оффера.
type NewSubjectOfferParams struct {
	ID          string
	UserID      string
	Subject     string
	Role        Role
	Proficiency Proficiency
	Urgency     Urgency
	TargetDate  *time.Time
	Tags        []string
	Now         time.Time
}

// NewSubjectOffer создаёт и валидирует оффер.
func NewSubjectOffer(p NewSubjectOfferParams) (*SubjectOffer, error) {
	subject := strings.Join(strings.Fields(p.Subject), " ")
	if p.UserID == "" {
		return nil, shared.NewDomainError("matching", "NewOffer", shared.ErrValidation, "user id is required")
	}
	if subject == "" {
		return nil, shared.NewDomainError("matching", "NewOffer", shared.ErrValidation, "subject is required")
	}
	if !p.Role.IsValid() {
		return nil, shared.ErrInvalidRole
	}
	if !p.Proficiency.IsValid() {
		return nil, shared.ErrInvalidProficiency
	}
	if !p.Urgency.IsValid() {
		return nil, shared.ErrInvalidUrgency
	}

	return &SubjectOffer{
		ID:          p.ID,
		UserID:      p.UserID,
		Subject:     subject,
		Role:        p.Role,
		Proficiency: p.Proficiency,
		Urgency:     p.Urgency,
		TargetDate:  p.TargetDate,
		Tags:        NewTags(p.Tags),
		CreatedAt:   p.Now,
		UpdatedAt:   p.Now,
	}, nil
}

// Key возвращает ключ уникальности оффера.
func (o *SubjectOffer) Key() OfferKey {
	return OfferKey{UserID: o.UserID, Subject: NormalizeSubject(o.Subject), Role: o.Role}
}

// OfferKey - ключ upsert'а (userId, subject, role).
type OfferKey struct {
	UserID  string
	Subject string
	Role    Role
}
