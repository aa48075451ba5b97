package identity

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/campus-hub/study-match/internal/domain/shared"
)

func TestContextProvider(t *testing.T) {
	p := ContextProvider{}

	_, ok := p.CurrentUserID(context.Background())
	assert.False(t, ok)

	_, ok = p.CurrentUserID(WithUserID(context.Background(), ""))
	assert.False(t, ok)

	id, ok := p.CurrentUserID(WithUserID(context.Background(), "u1"))
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
}

func TestRequire(t *testing.T) {
	_, err := Require(context.Background(), Static(""))
	assert.ErrorIs(t, err, shared.ErrUnauthenticated)

	id, err := Require(context.Background(), Static("u2"))
	assert.NoError(t, err)
	assert.Equal(t, "u2", id)
}
