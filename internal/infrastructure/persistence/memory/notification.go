package memory

import (
	"context"
	"sort"

	"github.com/campus-hub/study-match/internal/domain/notification"
)

// NotificationRepository implements notification.Repository.
type NotificationRepository struct{ s *Store }

// Insert stores a notification.
func (r *NotificationRepository) Insert(_ context.Context, n *notification.Notification) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	c := *n
	r.s.notifications[c.ID] = &notificationRow{seq: r.s.next(), n: &c}
	return nil
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(_ context.Context, userID string, unreadOnly bool, limit int) ([]*notification.Notification, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rows := make([]*notificationRow, 0)
	for _, row := range r.s.notifications {
		if row.n.UserID == userID && (!unreadOnly || !row.n.IsRead) {
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].seq > rows[j].seq })
	if limit > 0 && len(rows) > limit {
		rows = rows[:limit]
	}

	out := make([]*notification.Notification, len(rows))
	for i, row := range rows {
		c := *row.n
		out[i] = &c
	}
	return out, nil
}

// MarkRead marks the listed notifications owned by userID as read.
func (r *NotificationRepository) MarkRead(_ context.Context, userID string, ids []string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, id := range ids {
		row, ok := r.s.notifications[id]
		if !ok || row.n.UserID != userID || row.n.IsRead {
			continue
		}
		row.n.IsRead = true
		n++
	}
	return n, nil
}

// MarkAllRead marks every unread notification of the user as read.
func (r *NotificationRepository) MarkAllRead(_ context.Context, userID string) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	n := 0
	for _, row := range r.s.notifications {
		if row.n.UserID == userID && !row.n.IsRead {
			row.n.IsRead = true
			n++
		}
	}
	return n, nil
}

// CountUnread counts unread notifications.
func (r *NotificationRepository) CountUnread(_ context.Context, userID string) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	n := 0
	for _, row := range r.s.notifications {
		if row.n.UserID == userID && !row.n.IsRead {
			n++
		}
	}
	return n, nil
}
