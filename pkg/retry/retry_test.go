package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func fast() []Option {
	return []Option{WithBaseDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond), WithJitter(0)}
}

func TestDo_RetriesTransientUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return Transient(errors.New("flaky"))
		}
		return nil
	}, append(fast(), WithAttempts(5))...)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_ReturnsUnwrappedErrorAfterLastAttempt(t *testing.T) {
	base := errors.New("down")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Transient(base)
	}, append(fast(), WithAttempts(2))...)

	assert.Equal(t, 2, calls)
	assert.Same(t, base, err)
}

func TestDo_DoesNotRetryPlainErrors(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return errors.New("bad input")
	}, fast()...)

	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_StopOverridesClassifier(t *testing.T) {
	base := errors.New("fatal")
	calls := 0
	err := Do(context.Background(), func(context.Context) error {
		calls++
		return Stop(base)
	}, append(fast(), WithClassifier(func(error) bool { return true }))...)

	assert.Equal(t, 1, calls)
	assert.Same(t, base, err)
}

func TestDo_NotifyCalledBetweenAttempts(t *testing.T) {
	var seen []int
	_ = Do(context.Background(), func(context.Context) error {
		return Transient(errors.New("x"))
	}, append(fast(), WithAttempts(3), WithNotify(func(a int, _ error, _ time.Duration) {
		seen = append(seen, a)
	}))...)

	assert.Equal(t, []int{1, 2}, seen)
}

func TestDo_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, func(context.Context) error {
		calls++
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), New(fast()...), func(context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Transient(errors.New("again"))
		}
		return 42, nil
	})

	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}
