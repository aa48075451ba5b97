package reputation

import (
	"time"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// POINT AWARDS
// Единственный путь изменения очков. Вызывающий выбирает причину и источник,
// сумму определяет домен. Начисление идемпотентно по (UserID, Reason, SourceID).
// ══════════════════════════════════════════════════════════════════════════════

// Reason - причина начисления очков.
type Reason string

const (
	// ReasonMatchAccepted - помощник принял запрос. Источник - ID матча.
	ReasonMatchAccepted Reason = "match_accepted"

	// ReasonRatingBonus - получена оценка ≥ 4. Источник - ID оценки.
	ReasonRatingBonus Reason = "rating_bonus"

	// ReasonForumPost - создан пост на форуме.
	ReasonForumPost Reason = "forum_post"

	// ReasonForumReply - ответ на форуме.
	ReasonForumReply Reason = "forum_reply"

	// ReasonResourceUpload - загружен учебный материал.
	ReasonResourceUpload Reason = "resource_upload"
)

var fixedAmounts = map[Reason]int{
	ReasonMatchAccepted:  10,
	ReasonForumPost:      5,
	ReasonForumReply:     2,
	ReasonResourceUpload: 15,
}

// IsActivity - причины, которые могут прислать внешние сервисы.
func (r Reason) IsActivity() bool {
	return r == ReasonForumPost || r == ReasonForumReply || r == ReasonResourceUpload
}

// IsValid проверяет, что причина известна.
func (r Reason) IsValid() bool {
	_, fixed := fixedAmounts[r]
	return fixed || r == ReasonRatingBonus
}

// Award - одно начисление очков.
type Award struct {
	UserID    string
	Reason    Reason
	SourceID  string
	Amount    int
	CreatedAt time.Time
}

// Key возвращает ключ идемпотентности.
func (a Award) Key() AwardKey {
	return AwardKey{UserID: a.UserID, Reason: a.Reason, SourceID: a.SourceID}
}

// AwardKey - ключ идемпотентности начисления.
type AwardKey struct {
	UserID   string
	Reason   Reason
	SourceID string
}

// NewAward создаёт начисление с фиксированной суммой.
func NewAward(userID string, reason Reason, sourceID string, now time.Time) (Award, error) {
	amount, ok := fixedAmounts[reason]
	if !ok {
		return Award{}, shared.ErrUnknownAwardReason
	}
	return newAward(userID, reason, sourceID, amount, now)
}

// NewRatingBonus создаёт бонус за оценку. ok=false, если бонус не положен.
func NewRatingBonus(r *Rating, now time.Time) (Award, bool, error) {
	if !r.EarnsBonus() {
		return Award{}, false, nil
	}
	a, err := newAward(r.RatedUserID, ReasonRatingBonus, r.ID, r.BonusPoints(), now)
	return a, err == nil, err
}

func newAward(userID string, reason Reason, sourceID string, amount int, now time.Time) (Award, error) {
	if userID == "" || sourceID == "" {
		return Award{}, shared.NewDomainError("reputation", "Award", shared.ErrValidation, "user id and source id are required")
	}
	return Award{
		UserID:    userID,
		Reason:    reason,
		SourceID:  sourceID,
		Amount:    amount,
		CreatedAt: now,
	}, nil
}
