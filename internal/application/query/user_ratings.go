package query

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER RATINGS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetUserRatingsQuery содержит параметры запроса.
type GetUserRatingsQuery struct {
	UserID string
	Limit  int
}

// RatingDTO - полученная оценка.
type RatingDTO struct {
	ID        string    `json:"id"`
	MatchID   string    `json:"match_id"`
	RaterID   string    `json:"rater_id"`
	RaterName string    `json:"rater_name,omitempty"`
	Score     int       `json:"score"`
	Feedback  string    `json:"feedback,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// GetUserRatingsResult - оценки и сводка по репутации.
type GetUserRatingsResult struct {
	UserID       string      `json:"user_id"`
	Reputation   float64     `json:"reputation"`
	TotalRatings int         `json:"total_ratings"`
	Ratings      []RatingDTO `json:"ratings"`
}

// GetUserRatingsHandler обрабатывает запрос.
type GetUserRatingsHandler struct {
	ratings  reputation.RatingRepository
	profiles reputation.ProfileRepository
}

// NewGetUserRatingsHandler создаёт новый обработчик.
func NewGetUserRatingsHandler(ratings reputation.RatingRepository, profiles reputation.ProfileRepository) *GetUserRatingsHandler {
	return &GetUserRatingsHandler{ratings: ratings, profiles: profiles}
}

// Handle выполняет запрос.
func (h *GetUserRatingsHandler) Handle(ctx context.Context, q GetUserRatingsQuery) (*GetUserRatingsResult, error) {
	limit := shared.NormalizeLimit(q.Limit)

	list, err := h.ratings.ListByRatedUser(ctx, q.UserID, limit)
	if err != nil {
		return nil, fmt.Errorf("get_user_ratings: %w", err)
	}

	ids := make([]string, 0, len(list)+1)
	ids = append(ids, q.UserID)
	for _, r := range list {
		ids = append(ids, r.RaterID)
	}
	profiles, err := h.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("get_user_ratings: load profiles: %w", err)
	}

	res := &GetUserRatingsResult{UserID: q.UserID, Ratings: make([]RatingDTO, 0, len(list))}
	if p := profiles[q.UserID]; p != nil {
		res.Reputation = p.Reputation()
		res.TotalRatings = p.TotalRatings
	}
	for _, r := range list {
		dto := RatingDTO{
			ID:        r.ID,
			MatchID:   r.MatchID,
			RaterID:   r.RaterID,
			Score:     r.Score,
			Feedback:  r.Feedback,
			CreatedAt: r.CreatedAt,
		}
		if p := profiles[r.RaterID]; p != nil {
			dto.RaterName = p.Name
		}
		res.Ratings = append(res.Ratings, dto)
	}
	return res, nil
}
