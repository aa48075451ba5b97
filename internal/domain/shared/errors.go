// Package shared contains the error taxonomy, domain events and small value
// objects used by every domain package. It has no external dependencies.
package shared

import (
	"errors"
	"fmt"
)

// Base error kinds. Match them with errors.Is().
var (
	// Identity
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrUnauthorized    = errors.New("unauthorized")

	// Lookup
	ErrNotFound = errors.New("entity not found")

	// Uniqueness
	ErrDuplicateRequest = errors.New("duplicate match request")
	ErrDuplicateRating  = errors.New("duplicate rating")

	// State machine
	ErrInvalidTransition = errors.New("invalid state transition")

	// Input
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrValidation    = errors.New("validation error")

	// Store or collaborator failure. The only kind that is retried.
	ErrUnavailable = errors.New("service unavailable")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g. "matching", "reputation"
	Op      string // operation that failed, e.g. "Respond"
	Kind    error  // base kind for errors.Is()
	Message string
	Err     error // underlying cause, optional
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching on both the kind and the cause.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// Matching errors
var (
	ErrMatchNotFound      = NewDomainError("matching", "Find", ErrNotFound, "match not found")
	ErrOfferNotFound      = NewDomainError("matching", "FindOffer", ErrNotFound, "subject offer not found")
	ErrSessionNotFound    = NewDomainError("matching", "FindSession", ErrNotFound, "study session not found")
	ErrOpenMatchExists    = NewDomainError("matching", "Create", ErrDuplicateRequest, "an open match already exists for this pair and subject")
	ErrSelfMatch          = NewDomainError("matching", "Create", ErrValidation, "cannot request a match with yourself")
	ErrNotHelper          = NewDomainError("matching", "Respond", ErrUnauthorized, "only the helper can respond to a match")
	ErrNotParty           = NewDomainError("matching", "Authorize", ErrUnauthorized, "user is not a party to this match")
	ErrNotParticipant     = NewDomainError("matching", "AuthorizeSession", ErrUnauthorized, "user is not a participant of this session")
	ErrNotOfferOwner      = NewDomainError("matching", "RemoveOffer", ErrUnauthorized, "only the owner can remove an offer")
	ErrMatchNotPending    = NewDomainError("matching", "Respond", ErrInvalidTransition, "match is not pending")
	ErrMatchNotAccepted   = NewDomainError("matching", "Schedule", ErrInvalidTransition, "match is not accepted")
	ErrMatchTerminal      = NewDomainError("matching", "Transition", ErrInvalidTransition, "match is in a terminal state")
	ErrSessionTransition  = NewDomainError("matching", "TransitionSession", ErrInvalidTransition, "invalid study session transition")
	ErrInvalidProficiency = NewDomainError("matching", "Validate", ErrValidation, "invalid proficiency level")
	ErrInvalidUrgency     = NewDomainError("matching", "Validate", ErrValidation, "invalid urgency")
	ErrInvalidRole        = NewDomainError("matching", "Validate", ErrValidation, "invalid offer role")
)

// Reputation errors
var (
	ErrRatingOutOfRange   = NewDomainError("reputation", "Validate", ErrInvalidRating, "rating must be between 1 and 5")
	ErrAlreadyRated       = NewDomainError("reputation", "Submit", ErrDuplicateRating, "match already rated by this user")
	ErrMatchNotCompleted  = NewDomainError("reputation", "Submit", ErrInvalidTransition, "match is not completed")
	ErrRatedNotOtherParty = NewDomainError("reputation", "Submit", ErrUnauthorized, "rated user must be the other party of the match")
	ErrProfileNotFound    = NewDomainError("reputation", "FindProfile", ErrNotFound, "profile not found")
	ErrUnknownAwardReason = NewDomainError("reputation", "Award", ErrValidation, "unknown point award reason")
)

// Notification errors
var (
	ErrInvalidNotificationKind = NewDomainError("notification", "Validate", ErrValidation, "invalid notification kind")
)

// IsNotFound checks if the error is a "not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsUnavailable reports a store or collaborator failure.
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// IsValidation checks if the error is caused by malformed input.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) || errors.Is(err, ErrInvalidRating)
}

// IsConflict reports uniqueness or state machine violations.
func IsConflict(err error) bool {
	return errors.Is(err, ErrDuplicateRequest) ||
		errors.Is(err, ErrDuplicateRating) ||
		errors.Is(err, ErrInvalidTransition)
}

// IsRetryable checks if the operation can be retried. Only Unavailable qualifies.
func IsRetryable(err error) bool {
	return IsUnavailable(err)
}

// Unavailable wraps a store failure so callers may retry.
func Unavailable(domain, op string, err error) *DomainError {
	return WrapError(domain, op, ErrUnavailable, "store unavailable", err)
}
