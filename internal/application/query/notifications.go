package query

import (
	"context"
	"fmt"

	"github.com/campus-hub/study-match/internal/domain/matching"
	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET NOTIFICATIONS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetNotificationsQuery содержит параметры запроса.
type GetNotificationsQuery struct {
	UserID     string
	UnreadOnly bool
	Limit      int
}

// GetNotificationsResult - уведомления и счётчик непрочитанных.
type GetNotificationsResult struct {
	Notifications []*notification.Notification `json:"notifications"`
	UnreadCount   int                          `json:"unread_count"`
}

// GetNotificationsHandler обрабатывает запрос.
type GetNotificationsHandler struct {
	repo notification.Repository
}

// NewGetNotificationsHandler создаёт новый обработчик.
func NewGetNotificationsHandler(repo notification.Repository) *GetNotificationsHandler {
	return &GetNotificationsHandler{repo: repo}
}

// Handle выполняет запрос.
func (h *GetNotificationsHandler) Handle(ctx context.Context, q GetNotificationsQuery) (*GetNotificationsResult, error) {
	if q.UserID == "" {
		return &GetNotificationsResult{Notifications: []*notification.Notification{}}, nil
	}

	list, err := h.repo.ListByUser(ctx, q.UserID, q.UnreadOnly, shared.NormalizeLimit(q.Limit))
	if err != nil {
		return nil, fmt.Errorf("get_notifications: %w", err)
	}
	unread, err := h.repo.CountUnread(ctx, q.UserID)
	if err != nil {
		return nil, fmt.Errorf("get_notifications: count unread: %w", err)
	}
	return &GetNotificationsResult{Notifications: list, UnreadCount: unread}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LIST OFFERS QUERY
// ══════════════════════════════════════════════════════════════════════════════

// ListOffersQuery содержит параметры запроса.
type ListOffersQuery struct {
	UserID string

	// Role - фильтр по роли (пустая = обе).
	Role matching.Role
}

// ListOffersHandler обрабатывает запрос.
type ListOffersHandler struct {
	offers matching.OfferRepository
}

// NewListOffersHandler создаёт новый обработчик.
func NewListOffersHandler(offers matching.OfferRepository) *ListOffersHandler {
	return &ListOffersHandler{offers: offers}
}

// Handle выполняет запрос.
func (h *ListOffersHandler) Handle(ctx context.Context, q ListOffersQuery) ([]*matching.SubjectOffer, error) {
	list, err := h.offers.ListByUser(ctx, q.UserID, q.Role)
	if err != nil {
		return nil, fmt.Errorf("list_offers: %w", err)
	}
	return list, nil
}
