// Package query contains read operations (CQRS - Queries).
// Queries never modify state.
package query

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/reputation"
)

// ══════════════════════════════════════════════════════════════════════════════
// FIND CANDIDATES QUERY
// Подбирает помощников под learn-предложения ученика и ранжирует их по
// оценке совместимости. Ключевой запрос Match Directory.
// ══════════════════════════════════════════════════════════════════════════════

// FindCandidatesQuery содержит параметры подбора.
type FindCandidatesQuery struct {
	// LearnerID - текущий пользователь. Пустой = аноним, результат пустой.
	LearnerID string

	// ─────────────────────────────────────────────────────────────────────────
	// Фильтры (все опциональны)
	// ─────────────────────────────────────────────────────────────────────────

	// Subject ограничивает подбор одним предметом.
	Subject string

	// University оставляет помощников только из этого университета.
	University string

	// Urgency оставляет только teach-предложения с такой срочностью.
	Urgency matching.Urgency

	// Limit обрезает результат после сортировки. 0 = без ограничения.
	Limit int
}

// CandidateDTO - один кандидат в помощники.
type CandidateDTO struct {
	HelperID   string `json:"helper_id"`
	HelperName string `json:"helper_name,omitempty"`
	University string `json:"university,omitempty"`

	Subject string `json:"subject"`

	// Score - совместимость 0-100.
	Score   int                   `json:"score"`
	Quality matching.MatchQuality `json:"quality"`

	HelperReputation float64 `json:"helper_reputation"`
	HelperRatings    int     `json:"helper_ratings"`

	LearnerOffer *matching.SubjectOffer `json:"learner_offer"`
	HelperOffer  *matching.SubjectOffer `json:"helper_offer"`
}

// FindCandidatesResult содержит ранжированный список.
type FindCandidatesResult struct {
	Candidates []CandidateDTO `json:"candidates"`
}

// FindCandidatesHandler обрабатывает запрос подбора.
type FindCandidatesHandler struct {
	offers   matching.OfferRepository
	matches  matching.MatchRepository
	profiles reputation.ProfileRepository
}

// NewFindCandidatesHandler создаёт новый обработчик.
func NewFindCandidatesHandler(
	offers matching.OfferRepository,
	matches matching.MatchRepository,
	profiles reputation.ProfileRepository,
) *FindCandidatesHandler {
	return &FindCandidatesHandler{
		offers:   offers,
		matches:  matches,
		profiles: profiles,
	}
}

type pairing struct {
	learner *matching.SubjectOffer
	helper  *matching.SubjectOffer
}

// Handle выполняет подбор.
func (h *FindCandidatesHandler) Handle(ctx context.Context, q FindCandidatesQuery) (*FindCandidatesResult, error) {
	empty := &FindCandidatesResult{Candidates: []CandidateDTO{}}
	if q.LearnerID == "" {
		return empty, nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 1. learn-предложения ученика
	// ─────────────────────────────────────────────────────────────────────────

	learnOffers, err := h.offers.ListByUser(ctx, q.LearnerID, matching.RoleLearn)
	if err != nil {
		return nil, fmt.Errorf("find_candidates: list learn offers: %w", err)
	}
	if q.Subject != "" {
		want := matching.NormalizeSubject(q.Subject)
		filtered := learnOffers[:0:0]
		for _, o := range learnOffers {
			if matching.NormalizeSubject(o.Subject) == want {
				filtered = append(filtered, o)
			}
		}
		learnOffers = filtered
	}
	if len(learnOffers) == 0 {
		return empty, nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 2. Открытые матчи ученика: такие пары исключаются
	// ─────────────────────────────────────────────────────────────────────────

	open, err := h.openPairs(ctx, q.LearnerID)
	if err != nil {
		return nil, err
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 3. teach-предложения по каждому предмету, в порядке перебора
	// ─────────────────────────────────────────────────────────────────────────

	var pairs []pairing
	helperIDs := make([]string, 0)
	seenHelper := make(map[string]bool)

	for _, learn := range learnOffers {
		teach, err := h.offers.ListTeachOffers(ctx, learn.Subject, q.Urgency)
		if err != nil {
			return nil, fmt.Errorf("find_candidates: list teach offers: %w", err)
		}
		for _, t := range teach {
			if t.UserID == q.LearnerID {
				continue
			}
			if open[pairKey(t.UserID, learn.Subject)] {
				continue
			}
			pairs = append(pairs, pairing{learner: learn, helper: t})
			if !seenHelper[t.UserID] {
				seenHelper[t.UserID] = true
				helperIDs = append(helperIDs, t.UserID)
			}
		}
	}
	if len(pairs) == 0 {
		return empty, nil
	}

	// ─────────────────────────────────────────────────────────────────────────
	// 4. Профили помощников, фильтр по университету, скоринг
	// ─────────────────────────────────────────────────────────────────────────

	profiles, err := h.profiles.GetMany(ctx, helperIDs)
	if err != nil {
		return nil, fmt.Errorf("find_candidates: load profiles: %w", err)
	}

	candidates := make([]CandidateDTO, 0, len(pairs))
	for _, p := range pairs {
		profile := profiles[p.helper.UserID]
		if q.University != "" && (profile == nil || !strings.EqualFold(strings.TrimSpace(profile.University), strings.TrimSpace(q.University))) {
			continue
		}

		rep := profile.Reputation()
		score := matching.Score(p.learner, p.helper, rep)

		c := CandidateDTO{
			HelperID:         p.helper.UserID,
			Subject:          p.learner.Subject,
			Score:            int(score),
			Quality:          score.Quality(),
			HelperReputation: rep,
			LearnerOffer:     p.learner,
			HelperOffer:      p.helper,
		}
		if profile != nil {
			c.HelperName = profile.Name
			c.University = profile.University
			c.HelperRatings = profile.TotalRatings
		}
		candidates = append(candidates, c)
	}

	// Стабильная сортировка: при равном счёте сохраняется порядок перебора.
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})

	if q.Limit > 0 && len(candidates) > q.Limit {
		candidates = candidates[:q.Limit]
	}

	return &FindCandidatesResult{Candidates: candidates}, nil
}

// openPairs собирает (helper, subject) по незавершённым матчам, где ученик - инициатор.
func (h *FindCandidatesHandler) openPairs(ctx context.Context, learnerID string) (map[string]bool, error) {
	open := make(map[string]bool)
	for _, status := range matching.OpenStatuses {
		list, err := h.matches.ListByUser(ctx, learnerID, status)
		if err != nil {
			return nil, fmt.Errorf("find_candidates: list matches: %w", err)
		}
		for _, m := range list {
			if m.RequesterID == learnerID {
				open[pairKey(m.HelperID, m.Subject)] = true
			}
		}
	}
	return open, nil
}

func pairKey(helperID, subject string) string {
	return helperID + "\x00" + matching.NormalizeSubject(subject)
}
