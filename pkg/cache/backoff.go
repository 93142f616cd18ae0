package cache

import (
	"context"
	"errors"
	"time"
)

// ErrUnavailable marks a failure to reach a remote backend. Only errors
// that wrap it are retried by [Backoff.Do].
var ErrUnavailable = errors.New("cache backend unavailable")

// Backoff is a bounded retry policy for connecting to a remote backend.
// The zero value makes three attempts starting at one second.
type Backoff struct {
	Attempts int
	Delay    time.Duration
}

func (b Backoff) attempts() int {
	if b.Attempts <= 0 {
		return 3
	}
	return b.Attempts
}

func (b Backoff) delay() time.Duration {
	if b.Delay <= 0 {
		return time.Second
	}
	return b.Delay
}

// Do calls fn until it succeeds, returns an error that does not wrap
// [ErrUnavailable], or runs out of attempts. The delay doubles after each
// failed attempt. Cancellation of ctx stops the wait.
func (b Backoff) Do(ctx context.Context, fn func(context.Context) error) error {
	delay := b.delay()
	n := b.attempts()

	var err error
	for i := range n {
		if err = fn(ctx); err == nil || !errors.Is(err, ErrUnavailable) {
			return err
		}
		if i == n-1 {
			break
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
	}
	return err
}
