package command

import (
	"github.com/campus-hub/study-match/internal/domain/shared"
)

func orSystem(c shared.Clock) shared.Clock {
	if c == nil {
		return shared.SystemClock{}
	}
	return c
}

func unauthenticated(op string) error {
	return shared.NewDomainError("command", op, shared.ErrUnauthenticated, "caller identity is required")
}

func invalid(op, msg string) error {
	return shared.NewDomainError("command", op, shared.ErrValidation, msg)
}

func withCorrelation(e shared.MatchEvent, id string) shared.MatchEvent {
	if id != "" {
		e.BaseEvent = e.BaseEvent.WithCorrelationID(id)
	}
	return e
}
