package command

import (
	"context"
	"fmt"

	"github.com/campus-hub/study-match/internal/application/service"
	"github.com/campus-hub/study-match/internal/domain/notification"
)

// ══════════════════════════════════════════════════════════════════════════════
// MARK NOTIFICATIONS READ COMMAND
// ══════════════════════════════════════════════════════════════════════════════

// MarkNotificationsReadCommand marks the caller's notifications as read.
// An empty IDs list with All=true marks everything.
type MarkNotificationsReadCommand struct {
	UserID string
	IDs    []string
	All    bool
}

// MarkNotificationsReadHandler handles the command.
type MarkNotificationsReadHandler struct {
	repo notification.Repository
}

// NewMarkNotificationsReadHandler creates a new MarkNotificationsReadHandler.
func NewMarkNotificationsReadHandler(repo notification.Repository) *MarkNotificationsReadHandler {
	return &MarkNotificationsReadHandler{repo: repo}
}

// Handle returns the number of notifications changed.
func (h *MarkNotificationsReadHandler) Handle(ctx context.Context, cmd MarkNotificationsReadCommand) (int, error) {
	if cmd.UserID == "" {
		return 0, fmt.Errorf("mark_notifications_read: %w", unauthenticated("mark_notifications_read"))
	}
	if cmd.All {
		n, err := h.repo.MarkAllRead(ctx, cmd.UserID)
		if err != nil {
			return 0, fmt.Errorf("mark_notifications_read: %w", err)
		}
		return n, nil
	}
	if len(cmd.IDs) == 0 {
		return 0, nil
	}
	n, err := h.repo.MarkRead(ctx, cmd.UserID, cmd.IDs)
	if err != nil {
		return 0, fmt.Errorf("mark_notifications_read: %w", err)
	}
	return n, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// EMIT NOTIFICATION COMMAND
// Used by external producers (chat, exam reminders). Unlike lifecycle
// notifications, failures are returned to the caller.
// ══════════════════════════════════════════════════════════════════════════════

// EmitNotificationCommand contains the notification data.
type EmitNotificationCommand struct {
	UserID    string
	Kind      notification.Kind
	Title     string
	Message   string
	RelatedID string
}

// EmitNotificationHandler handles the command.
type EmitNotificationHandler struct {
	emitter *service.Emitter
}

// NewEmitNotificationHandler creates a new EmitNotificationHandler.
func NewEmitNotificationHandler(emitter *service.Emitter) *EmitNotificationHandler {
	return &EmitNotificationHandler{emitter: emitter}
}

// Handle stores the notification.
func (h *EmitNotificationHandler) Handle(ctx context.Context, cmd EmitNotificationCommand) (*notification.Notification, error) {
	if !cmd.Kind.IsExternal() {
		return nil, fmt.Errorf("emit_notification: %w", invalid("emit_notification", "kind is reserved for match lifecycle: "+string(cmd.Kind)))
	}
	n, err := h.emitter.Emit(ctx, cmd.UserID, cmd.Kind, cmd.Title, cmd.Message, cmd.RelatedID)
	if err != nil {
		return nil, fmt.Errorf("emit_notification: %w", err)
	}
	return n, nil
}
