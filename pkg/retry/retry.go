// Package retry runs an operation again with exponential backoff while its
// error is classified as transient.
package retry

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"
)

// transientError marks an error as safe to retry.
type transientError struct{ err error }

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// Transient marks err as retryable under the default classifier.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{err: err}
}

// IsTransient reports whether err was marked with Transient.
func IsTransient(err error) bool {
	var t *transientError
	return errors.As(err, &t)
}

// stopError aborts the loop regardless of the classifier.
type stopError struct{ err error }

func (e *stopError) Error() string { return e.err.Error() }
func (e *stopError) Unwrap() error { return e.err }

// Stop wraps err so that Do returns it immediately.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return &stopError{err: err}
}

// Policy describes how often and how long to retry.
type Policy struct {
	Attempts   int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Multiplier float64
	Jitter     float64

	// Classify decides whether an error is worth another attempt.
	// Nil means IsTransient.
	Classify func(error) bool

	// Notify runs before each sleep.
	Notify func(attempt int, err error, wait time.Duration)
}

// Option mutates a Policy.
type Option func(*Policy)

func WithAttempts(n int) Option {
	return func(p *Policy) {
		if n > 0 {
			p.Attempts = n
		}
	}
}

func WithBaseDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.BaseDelay = d
		}
	}
}

func WithMaxDelay(d time.Duration) Option {
	return func(p *Policy) {
		if d > 0 {
			p.MaxDelay = d
		}
	}
}

func WithJitter(j float64) Option {
	return func(p *Policy) {
		if j >= 0 && j <= 1 {
			p.Jitter = j
		}
	}
}

// WithClassifier replaces the transient check.
func WithClassifier(fn func(error) bool) Option {
	return func(p *Policy) { p.Classify = fn }
}

// WithNotify installs a hook invoked before each backoff sleep.
func WithNotify(fn func(attempt int, err error, wait time.Duration)) Option {
	return func(p *Policy) { p.Notify = fn }
}

// Retrier executes operations under a Policy.
type Retrier struct {
	policy Policy
}

// New builds a Retrier starting from three attempts at 50ms doubling to 2s.
func New(opts ...Option) *Retrier {
	p := Policy{
		Attempts:   3,
		BaseDelay:  50 * time.Millisecond,
		MaxDelay:   2 * time.Second,
		Multiplier: 2,
		Jitter:     0.1,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return &Retrier{policy: p}
}

// Policy returns a copy of the effective policy.
func (r *Retrier) Policy() Policy { return r.policy }

// Do calls op until it succeeds, returns a non-retryable error, the attempts
// run out or ctx is done. The returned error is never a Transient or Stop
// wrapper.
func (r *Retrier) Do(ctx context.Context, op func(ctx context.Context) error) error {
	classify := r.policy.Classify
	if classify == nil {
		classify = IsTransient
	}

	var last error
	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			if last != nil {
				return unwrapMarkers(last)
			}
			return err
		}

		err := op(ctx)
		if err == nil {
			return nil
		}
		last = err

		var stop *stopError
		if errors.As(err, &stop) {
			return stop.err
		}
		if !classify(err) || attempt >= r.policy.Attempts {
			return unwrapMarkers(err)
		}

		wait := r.backoff(attempt)
		if r.policy.Notify != nil {
			r.policy.Notify(attempt, err, wait)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return unwrapMarkers(last)
		case <-timer.C:
		}
	}
}

func (r *Retrier) backoff(attempt int) time.Duration {
	d := float64(r.policy.BaseDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if max := float64(r.policy.MaxDelay); d > max {
		d = max
	}
	if r.policy.Jitter > 0 {
		d += d * r.policy.Jitter * (rand.Float64()*2 - 1)
	}
	if d < 0 {
		return 0
	}
	return time.Duration(d)
}

func unwrapMarkers(err error) error {
	if t, ok := err.(*transientError); ok {
		return t.err
	}
	return err
}

// Do is shorthand for New(opts...).Do(ctx, op).
func Do(ctx context.Context, op func(ctx context.Context) error, opts ...Option) error {
	return New(opts...).Do(ctx, op)
}

// DoWithData runs op under the retrier and returns its last result.
func DoWithData[T any](ctx context.Context, r *Retrier, op func(ctx context.Context) (T, error)) (T, error) {
	var out T
	err := r.Do(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

// StoreRetrier is tuned for short-lived store outages.
func StoreRetrier(classify func(error) bool) *Retrier {
	return New(
		WithAttempts(4),
		WithBaseDelay(25*time.Millisecond),
		WithMaxDelay(500*time.Millisecond),
		WithJitter(0.05),
		WithClassifier(classify),
	)
}
