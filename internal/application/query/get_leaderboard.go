package query

import (
	"context"
	"fmt"

	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Топ пользователей по очкам. Сначала кэш (Redis sorted set), при ошибке или
// пустом кэше - хранилище профилей.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса.
type GetLeaderboardQuery struct {
	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int
}

// LeaderboardEntryDTO - запись лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция (начиная с 1).
	Rank int `json:"rank"`

	UserID     string  `json:"user_id"`
	Name       string  `json:"name,omitempty"`
	University string  `json:"university,omitempty"`
	Points     int     `json:"points"`
	Reputation float64 `json:"reputation"`
}

// GetLeaderboardResult содержит результат.
type GetLeaderboardResult struct {
	Entries []LeaderboardEntryDTO `json:"entries"`

	// FromCache - ответ собран из кэша.
	FromCache bool `json:"from_cache"`
}

// GetLeaderboardHandler обрабатывает запрос.
type GetLeaderboardHandler struct {
	profiles reputation.ProfileRepository
	cache    reputation.LeaderboardCache
	log      *logger.Logger
}

// NewGetLeaderboardHandler создаёт новый обработчик. cache может быть nil.
func NewGetLeaderboardHandler(profiles reputation.ProfileRepository, cache reputation.LeaderboardCache, log *logger.Logger) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Default()
	}
	return &GetLeaderboardHandler{
		profiles: profiles,
		cache:    cache,
		log:      log.With(logger.Component("get_leaderboard")),
	}
}

// Handle выполняет запрос.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	limit := shared.NormalizeLimit(q.Limit)

	if h.cache != nil {
		res, err := h.fromCache(ctx, limit)
		if err == nil && len(res.Entries) > 0 {
			return res, nil
		}
		if err != nil {
			h.log.Warn("leaderboard cache unavailable, falling back to store", logger.Err(err))
		}
	}

	top, err := h.profiles.TopByPoints(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntryDTO, 0, len(top))
	for i, p := range top {
		entries = append(entries, LeaderboardEntryDTO{
			Rank:       i + 1,
			UserID:     p.UserID,
			Name:       p.Name,
			University: p.University,
			Points:     p.Points,
			Reputation: p.Reputation(),
		})
	}
	return &GetLeaderboardResult{Entries: entries}, nil
}

func (h *GetLeaderboardHandler) fromCache(ctx context.Context, limit int) (*GetLeaderboardResult, error) {
	ranked, err := h.cache.Top(ctx, limit)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(ranked))
	for _, r := range ranked {
		ids = append(ids, r.UserID)
	}
	profiles, err := h.profiles.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntryDTO, 0, len(ranked))
	for i, r := range ranked {
		e := LeaderboardEntryDTO{Rank: i + 1, UserID: r.UserID, Points: r.Points}
		if p := profiles[r.UserID]; p != nil {
			e.Name = p.Name
			e.University = p.University
			e.Reputation = p.Reputation()
		}
		entries = append(entries, e)
	}
	return &GetLeaderboardResult{Entries: entries, FromCache: true}, nil
}
