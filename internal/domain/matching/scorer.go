package matching

import "math"

// ══════════════════════════════════════════════════════════════════════════════
// COMPATIBILITY SCORER
// Чистая функция: одинаковые входы дают одинаковый результат, без побочных эффектов.
//
//	50                               база
//	+20  срочность совпадает
//	+15  уровень помощника ≥ уровня ученика
//	+min(репутация × 5, 15)
//	+3   за каждый общий тег
//	итог ограничен 100
// ══════════════════════════════════════════════════════════════════════════════

const (
	scoreBase             = 50
	scoreUrgencyMatch     = 20
	scoreProficiencyFit   = 15
	scoreReputationFactor = 5
	scoreReputationCap    = 15
	scorePerCommonTag     = 3
	scoreMax              = 100
)

// MatchScore - оценка совместимости (0-100).
type MatchScore int

// IsValid проверяет корректность оценки.
func (m MatchScore) IsValid() bool {
	return m >= 0 && m <= scoreMax
}

// MatchQuality - качественная оценка подбора.
type MatchQuality string

const (
	MatchQualityExcellent MatchQuality = "excellent"
	MatchQualityGood      MatchQuality = "good"
	MatchQualityFair      MatchQuality = "fair"
	MatchQualityPoor      MatchQuality = "poor"
)

// Quality возвращает качественную оценку совместимости.
func (m MatchScore) Quality() MatchQuality {
	switch {
	case m >= 85:
		return MatchQualityExcellent
	case m >= 70:
		return MatchQualityGood
	case m >= 50:
		return MatchQualityFair
	default:
		return MatchQualityPoor
	}
}

// Score считает совместимость ученика и помощника.
// Отсутствующая или отрицательная репутация считается нулевой.
func Score(learner, helper *SubjectOffer, helperReputation float64) MatchScore {
	total := float64(scoreBase)

	if learner.Urgency == helper.Urgency {
		total += scoreUrgencyMatch
	}

	if helper.Proficiency.Ordinal() >= learner.Proficiency.Ordinal() {
		total += scoreProficiencyFit
	}

	if helperReputation > 0 && !math.IsNaN(helperReputation) {
		total += math.Min(helperReputation*scoreReputationFactor, scoreReputationCap)
	}

	total += float64(scorePerCommonTag * learner.Tags.CommonCount(helper.Tags))

	// Целая шкала: дробный бонус репутации округляется, половина вверх.
	total = math.Min(total, scoreMax)
	return MatchScore(math.Round(total))
}
