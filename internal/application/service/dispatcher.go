package service

import (
	"context"

	"github.com/campus-hub/study-match/internal/domain/notification"
	"github.com/campus-hub/study-match/internal/domain/reputation"
	"github.com/campus-hub/study-match/internal/domain/shared"
	"github.com/campus-hub/study-match/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// POST-COMMIT DISPATCHER
// Runs side effects of a committed transition one after another, in the order
// given. A failing action is logged and skipped; the next one still runs and
// the caller never sees the error. Failed awards are picked up by the
// reconciliation job.
// ══════════════════════════════════════════════════════════════════════════════

// Action is one post-commit side effect.
type Action struct {
	Name string
	Run  func(ctx context.Context) error
}

// Dispatcher executes post-commit actions.
type Dispatcher struct {
	ledger    *Ledger
	emitter   *Emitter
	publisher shared.EventPublisher
	log       *logger.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(ledger *Ledger, emitter *Emitter, publisher shared.EventPublisher, log *logger.Logger) *Dispatcher {
	if log == nil {
		log = logger.Default()
	}
	return &Dispatcher{
		ledger:    ledger,
		emitter:   emitter,
		publisher: publisher,
		log:       log.With(logger.Component("dispatcher")),
	}
}

// Dispatch runs actions sequentially and returns how many failed.
func (d *Dispatcher) Dispatch(ctx context.Context, op string, actions ...Action) int {
	failed := 0
	for _, a := range actions {
		if err := a.Run(ctx); err != nil {
			failed++
			d.log.Error("post-commit action failed",
				logger.Operation(op),
				logger.String("action", a.Name),
				logger.Err(err),
			)
		}
	}
	return failed
}

// Award returns an action applying a point award.
func (d *Dispatcher) Award(a reputation.Award) Action {
	return Action{
		Name: "award:" + string(a.Reason),
		Run: func(ctx context.Context) error {
			_, err := d.ledger.Award(ctx, a)
			return err
		},
	}
}

// Notify returns an action emitting a best-effort notification.
func (d *Dispatcher) Notify(userID string, c notification.Content, relatedID string) Action {
	return Action{
		Name: "notify:" + string(c.Kind),
		Run: func(ctx context.Context) error {
			d.emitter.Notify(ctx, userID, c, relatedID)
			return nil
		},
	}
}

// Publish returns an action publishing domain events.
func (d *Dispatcher) Publish(events ...shared.Event) Action {
	return Action{
		Name: "publish",
		Run: func(context.Context) error {
			if d.publisher == nil {
				return nil
			}
			var first error
			for _, e := range events {
				if err := d.publisher.Publish(e); err != nil && first == nil {
					first = err
				}
			}
			return first
		},
	}
}
