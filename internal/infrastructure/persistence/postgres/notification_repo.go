package postgres

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/campus-hub/study-match/internal/domain/notification"
)

const notificationColumns = "id, user_id, kind, title, message, related_id, is_read, created_at"

// NotificationRepository implements notification.Repository for PostgreSQL.
type NotificationRepository struct {
	conn *Connection
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(conn *Connection) *NotificationRepository {
	return &NotificationRepository{conn: conn}
}

func scanNotification(row pgx.Row) (*notification.Notification, error) {
	var (
		n    notification.Notification
		kind string
	)
	if err := row.Scan(&n.ID, &n.UserID, &kind, &n.Title, &n.Message, &n.RelatedID, &n.IsRead, &n.CreatedAt); err != nil {
		return nil, err
	}
	n.Kind = notification.Kind(kind)
	return &n, nil
}

// Insert stores a notification.
func (r *NotificationRepository) Insert(ctx context.Context, n *notification.Notification) error {
	sql, args, err := psql.Insert("notifications").
		Columns("id", "user_id", "kind", "title", "message", "related_id", "is_read", "created_at").
		Values(n.ID, n.UserID, string(n.Kind), n.Title, n.Message, n.RelatedID, n.IsRead, n.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := r.conn.Exec(ctx, sql, args...); err != nil {
		return mapError("notification", "Insert", err, nil)
	}
	return nil
}

func userNotificationsQuery(userID string, unreadOnly bool, limit int) (string, []any, error) {
	b := psql.Select(notificationColumns).From("notifications").Where(sq.Eq{"user_id": userID})
	if unreadOnly {
		b = b.Where(sq.Eq{"is_read": false})
	}
	b = b.OrderBy("seq DESC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	return b.ToSql()
}

// ListByUser returns the user's notifications, newest first.
func (r *NotificationRepository) ListByUser(ctx context.Context, userID string, unreadOnly bool, limit int) ([]*notification.Notification, error) {
	sql, args, err := userNotificationsQuery(userID, unreadOnly, limit)
	if err != nil {
		return nil, err
	}
	rows, err := r.conn.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError("notification", "List", err, nil)
	}
	defer rows.Close()

	out := make([]*notification.Notification, 0)
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, mapError("notification", "List", err, nil)
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("notification", "List", err, nil)
	}
	return out, nil
}

// MarkRead marks the listed notifications of the user as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, userID string, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	return r.markRead(ctx, sq.Eq{"user_id": userID, "id": ids})
}

// MarkAllRead marks every notification of the user as read.
func (r *NotificationRepository) MarkAllRead(ctx context.Context, userID string) (int, error) {
	return r.markRead(ctx, sq.Eq{"user_id": userID})
}

func (r *NotificationRepository) markRead(ctx context.Context, where sq.Eq) (int, error) {
	sql, args, err := psql.Update("notifications").
		Set("is_read", true).
		Where(where).
		Where(sq.Eq{"is_read": false}).
		ToSql()
	if err != nil {
		return 0, err
	}
	tag, err := r.conn.Exec(ctx, sql, args...)
	if err != nil {
		return 0, mapError("notification", "MarkRead", err, nil)
	}
	return int(tag.RowsAffected()), nil
}

// CountUnread returns the number of unread notifications.
func (r *NotificationRepository) CountUnread(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.conn.QueryRow(ctx, "SELECT COUNT(*) FROM notifications WHERE user_id = $1 AND NOT is_read", userID).Scan(&n)
	if err != nil {
		return 0, mapError("notification", "CountUnread", err, nil)
	}
	return n, nil
}
