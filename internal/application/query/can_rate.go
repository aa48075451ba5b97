package query

import (
	"context"
	"fmt"

	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CAN RATE QUERY
// true, если матч существует, завершён, пользователь - его участник и ещё
// не оценивал этот матч.
// ══════════════════════════════════════════════════════════════════════════════

// CanRateQuery содержит параметры проверки.
type CanRateQuery struct {
	MatchID string
	UserID  string
}

// CanRateHandler обрабатывает запрос.
type CanRateHandler struct {
	matches matching.MatchRepository
	ratings reputation.RatingRepository
}

// NewCanRateHandler создаёт новый обработчик.
func NewCanRateHandler(matches matching.MatchRepository, ratings reputation.RatingRepository) *CanRateHandler {
	return &CanRateHandler{matches: matches, ratings: ratings}
}

// Handle возвращает ошибку только при недоступности хранилища.
func (h *CanRateHandler) Handle(ctx context.Context, q CanRateQuery) (bool, error) {
	if q.UserID == "" || q.MatchID == "" {
		return false, nil
	}

	m, err := h.matches.GetByID(ctx, q.MatchID)
	if err != nil {
		if shared.IsNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("can_rate: %w", err)
	}
	if m.Status != matching.MatchStatusCompleted || !m.IsParty(q.UserID) {
		return false, nil
	}

	rated, err := h.ratings.Exists(ctx, q.UserID, m.ID)
	if err != nil {
		return false, fmt.Errorf("can_rate: %w", err)
	}
	return !rated, nil
}
