// Package reputation содержит рейтинги, профиль репутации и начисление очков.
package reputation

import (
	"strings"
	"time"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// RATING
// Оценка одной стороны матча другой стороной. Неизменяема после создания.
// Ровно одна оценка на пару (RaterID, MatchID).
// ══════════════════════════════════════════════════════════════════════════════

const (
	MinScore = 1
	MaxScore = 5

	// BonusThreshold - с какой оценки оцениваемый получает бонусные очки.
	BonusThreshold = 4

	// BonusMultiplier - бонус = оценка × множитель.
	BonusMultiplier = 2
)

// Rating - оценка после сессии.
type Rating struct {
	ID          string
	MatchID     string
	RaterID     string
	RatedUserID string
	Score       int
	Feedback    string
	CreatedAt   time.Time
}

// ValidateScore проверяет диапазон оценки.
func ValidateScore(score int) error {
	if score < MinScore || score > MaxScore {
		return shared.ErrRatingOutOfRange
	}
	return nil
}

// NewRatingParams параметры для создания оценки.
type NewRatingParams struct {
	ID          string
	MatchID     string
	RaterID     string
	RatedUserID string
	Score       int
	Feedback    string
	Now         time.Time
}

// NewRating создаёт оценку с валидацией.
func NewRating(p NewRatingParams) (*Rating, error) {
	if err := ValidateScore(p.Score); err != nil {
		return nil, err
	}
	if p.RaterID == "" || p.MatchID == "" || p.RatedUserID == "" {
		return nil, shared.NewDomainError("reputation", "NewRating", shared.ErrValidation, "rater, match and rated user are required")
	}
	if p.RaterID == p.RatedUserID {
		return nil, shared.ErrRatedNotOtherParty
	}
	return &Rating{
		ID:          p.ID,
		MatchID:     p.MatchID,
		RaterID:     p.RaterID,
		RatedUserID: p.RatedUserID,
		Score:       p.Score,
		Feedback:    strings.TrimSpace(p.Feedback),
		CreatedAt:   p.Now,
	}, nil
}

// EarnsBonus сообщает, положены ли оцениваемому бонусные очки.
func (r *Rating) EarnsBonus() bool {
	return r.Score >= BonusThreshold
}

// BonusPoints возвращает количество бонусных очков (0, если не положено).
func (r *Rating) BonusPoints() int {
	if !r.EarnsBonus() {
		return 0
	}
	return r.Score * BonusMultiplier
}

// ══════════════════════════════════════════════════════════════════════════════
// PROFILE
// Проекция профиля пользователя. Имя и университет приходят из внешнего
// сервиса профилей; репутацию и очки меняет только этот домен.
// ══════════════════════════════════════════════════════════════════════════════

// Profile - репутационный профиль пользователя.
type Profile struct {
	UserID     string
	Name       string
	University string

	// RatingSum - сумма всех полученных оценок.
	RatingSum int64

	// TotalRatings - количество полученных оценок.
	TotalRatings int

	// Points - очки геймификации.
	Points int

	UpdatedAt time.Time
}

// Reputation возвращает среднюю оценку (0 без оценок).
// Хранится пара (сумма, количество), среднее считается из неё, поэтому
// (old×n + s)/(n+1) получается точно и без устаревших чтений.
func (p *Profile) Reputation() float64 {
	if p == nil || p.TotalRatings == 0 {
		return 0
	}
	return float64(p.RatingSum) / float64(p.TotalRatings)
}

// WithRating возвращает профиль после учёта ещё одной оценки.
func (p Profile) WithRating(score int) Profile {
	p.RatingSum += int64(score)
	p.TotalRatings++
	return p
}
