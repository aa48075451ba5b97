package query

import (
	"context"
	"fmt"
	"time"

	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/reputation"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET USER MATCHES QUERY
// Матчи пользователя в обеих ролях, от новых к старым.
// ══════════════════════════════════════════════════════════════════════════════

// MatchRole - роль пользователя в матче.
type MatchRole string

const (
	// MatchRoleRequested - пользователь запросил помощь.
	MatchRoleRequested MatchRole = "requested"

	// MatchRoleHelping - пользователь помогает.
	MatchRoleHelping MatchRole = "helping"
)

// GetUserMatchesQuery содержит параметры запроса.
type GetUserMatchesQuery struct {
	UserID string

	// Status - фильтр по статусу (пустой = все).
	Status matching.MatchStatus
}

// MatchDTO - матч глазами пользователя.
type MatchDTO struct {
	ID            string               `json:"id"`
	Subject       string               `json:"subject"`
	Status        matching.MatchStatus `json:"status"`
	Role          MatchRole            `json:"role"`
	Message       string               `json:"message,omitempty"`
	ScheduledTime *time.Time           `json:"scheduled_time,omitempty"`
	MeetingLink   string               `json:"meeting_link,omitempty"`
	CreatedAt     time.Time            `json:"created_at"`

	// ─────────────────────────────────────────────────────────────────────────
	// Другая сторона
	// ─────────────────────────────────────────────────────────────────────────

	OtherUserID     string  `json:"other_user_id"`
	OtherName       string  `json:"other_name,omitempty"`
	OtherReputation float64 `json:"other_reputation"`
}

// GetUserMatchesHandler обрабатывает запрос.
type GetUserMatchesHandler struct {
	matches  matching.MatchRepository
	profiles reputation.ProfileRepository
}

// NewGetUserMatchesHandler создаёт новый обработчик.
func NewGetUserMatchesHandler(matches matching.MatchRepository, profiles reputation.ProfileRepository) *GetUserMatchesHandler {
	return &GetUserMatchesHandler{matches: matches, profiles: profiles}
}

// Handle выполняет запрос. Аноним получает пустой список.
func (h *GetUserMatchesHandler) Handle(ctx context.Context, q GetUserMatchesQuery) ([]MatchDTO, error) {
	if q.UserID == "" {
		return []MatchDTO{}, nil
	}

	list, err := h.matches.ListByUser(ctx, q.UserID, q.Status)
	if err != nil {
		return nil, fmt.Errorf("get_user_matches: %w", err)
	}

	others := make([]string, 0, len(list))
	for _, m := range list {
		others = append(others, m.OtherParty(q.UserID))
	}
	profiles, err := h.profiles.GetMany(ctx, others)
	if err != nil {
		return nil, fmt.Errorf("get_user_matches: load profiles: %w", err)
	}

	out := make([]MatchDTO, 0, len(list))
	for _, m := range list {
		dto := MatchDTO{
			ID:            m.ID,
			Subject:       m.Subject,
			Status:        m.Status,
			Role:          MatchRoleHelping,
			Message:       m.Message,
			ScheduledTime: m.ScheduledTime,
			MeetingLink:   m.MeetingLink,
			CreatedAt:     m.CreatedAt,
			OtherUserID:   m.OtherParty(q.UserID),
		}
		if m.RequesterID == q.UserID {
			dto.Role = MatchRoleRequested
		}
		if p := profiles[dto.OtherUserID]; p != nil {
			dto.OtherName = p.Name
			dto.OtherReputation = p.Reputation()
		}
		out = append(out, dto)
	}
	return out, nil
}
