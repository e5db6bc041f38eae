package interact

import (
	"context"
	"time"
)

// Policy bounds a retry loop. MaxAttempts below 1 is treated as 1.
type Policy struct {
	MaxAttempts int
	Backoff     time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxAttempts: 3, Backoff: time.Second}
}

// State is the position of a retry loop.
type State int

const (
	Attempting State = iota
	Succeeded
	Failed
)

func (s State) String() string {
	switch s {
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "attempting"
	}
}

// Outcome is the terminal result of Retry. On Failed, Err is the error of
// the last attempt and Value is the zero value.
type Outcome[T any] struct {
	State    State
	Value    T
	Attempts int
	Err      error
}

type retryOptions struct {
	sleep   func(context.Context, time.Duration) error
	onRetry func(attempt int, err error)
}

type RetryOption func(*retryOptions)

// WithSleep replaces the backoff wait. It must return early with an error
// when ctx is done.
func WithSleep(sleep func(context.Context, time.Duration) error) RetryOption {
	return func(o *retryOptions) { o.sleep = sleep }
}

// OnRetry is called after each failed attempt that will be retried.
func OnRetry(fn func(attempt int, err error)) RetryOption {
	return func(o *retryOptions) { o.onRetry = fn }
}

// Retry runs fn until it succeeds or p.MaxAttempts attempts have failed,
// waiting p.Backoff between attempts. Attempts are numbered from 1. A
// cancelled ctx during the backoff ends the loop as Failed with the last
// attempt's error.
func Retry[T any](ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) (T, error), opts ...RetryOption) Outcome[T] {
	o := retryOptions{sleep: sleepContext, onRetry: func(int, error) {}}
	for _, opt := range opts {
		opt(&o)
	}
	maxAttempts := max(p.MaxAttempts, 1)

	out := Outcome[T]{State: Attempting}
	for n := 1; out.State == Attempting; n++ {
		v, err := fn(ctx, n)
		out.Attempts = n

		switch {
		case err == nil:
			out.State, out.Value = Succeeded, v
		case n >= maxAttempts:
			out.State, out.Err = Failed, err
		default:
			o.onRetry(n, err)
			if o.sleep(ctx, p.Backoff) != nil {
				out.State, out.Err = Failed, err
			}
		}
	}
	return out
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
