package shared

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Unavailable("matching", "Create", cause)

	assert.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsRetryable(err))
	assert.Contains(t, err.Error(), "matching.Create")
}

func TestDomainError_WrappedSentinelsKeepKind(t *testing.T) {
	err := fmt.Errorf("respond: %w", ErrNotHelper)

	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.ErrorIs(t, err, ErrNotHelper)
	assert.False(t, IsRetryable(err))
}

func TestClassifiers(t *testing.T) {
	assert.True(t, IsNotFound(ErrMatchNotFound))
	assert.True(t, IsConflict(ErrOpenMatchExists))
	assert.True(t, IsConflict(ErrAlreadyRated))
	assert.True(t, IsConflict(ErrMatchNotPending))
	assert.True(t, IsValidation(ErrRatingOutOfRange))
	assert.True(t, IsValidation(ErrSelfMatch))
	assert.False(t, IsValidation(ErrNotParty))
}

func TestManualClock(t *testing.T) {
	start := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	c := NewManualClock(start)
	c.Advance(time.Hour)
	assert.Equal(t, start.Add(time.Hour), c.Now())
}

func TestNormalizeLimit(t *testing.T) {
	assert.Equal(t, DefaultPageSize, NormalizeLimit(0))
	assert.Equal(t, MaxPageSize, NormalizeLimit(1000))
	assert.Equal(t, 7, NormalizeLimit(7))
}
