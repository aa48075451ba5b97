// Package service contains application services shared by command handlers:
// the notification emitter, the points ledger and the post-commit dispatcher.
package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/pkg/logger"
)

// NewID returns a fresh random identifier.
func NewID() string {
	return uuid.NewString()
}

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION EMITTER
// ══════════════════════════════════════════════════════════════════════════════

// Emitter appends notification records.
type Emitter struct {
	repo      notification.Repository
	publisher shared.EventPublisher
	clock     shared.Clock
	log       *logger.Logger
}

// NewEmitter creates a new Emitter.
func NewEmitter(repo notification.Repository, publisher shared.EventPublisher, clock shared.Clock, log *logger.Logger) *Emitter {
	if clock == nil {
		clock = shared.SystemClock{}
	}
	if log == nil {
		log = logger.Default()
	}
	return &Emitter{
		repo:      repo,
		publisher: publisher,
		clock:     clock,
		log:       log.With(logger.Component("notification_emitter")),
	}
}

// Emit stores one unread notification and returns it.
func (e *Emitter) Emit(ctx context.Context, userID string, kind notification.Kind, title, message, relatedID string) (*notification.Notification, error) {
	n, err := notification.NewNotification(notification.NewNotificationParams{
		ID:        NewID(),
		UserID:    userID,
		Kind:      kind,
		Title:     title,
		Message:   message,
		RelatedID: relatedID,
		Now:       e.clock.Now(),
	})
	if err != nil {
		return nil, err
	}
	if err := e.repo.Insert(ctx, n); err != nil {
		return nil, fmt.Errorf("emit_notification: %w", err)
	}
	return n, nil
}

// Notify is the best-effort form used after a lifecycle transition. Failures
// are logged and published as NotificationFailed, never returned.
func (e *Emitter) Notify(ctx context.Context, userID string, c notification.Content, relatedID string) {
	if _, err := e.Emit(ctx, userID, c.Kind, c.Title, c.Message, relatedID); err != nil {
		e.log.Warn("notification dropped",
			logger.UserID(userID),
			logger.String("kind", string(c.Kind)),
			logger.String("related_id", relatedID),
			logger.Err(err),
		)
		if e.publisher != nil {
			_ = e.publisher.Publish(shared.NewNotificationFailedEvent(userID, string(c.Kind), err))
		}
	}
}
