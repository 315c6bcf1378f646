package retry

import (
	"context"
	"errors"
	"time"
)

// Policy describes how often and how patiently an operation is retried.
type Policy struct {
	Attempts int

	// Backoff returns the delay after the given failed attempt (1-based).
	Backoff func(attempt int) time.Duration

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Default is three attempts one second apart.
var Default = Policy{
	Attempts: 3,
	Backoff:  Fixed(time.Second),
}

func Fixed(d time.Duration) func(int) time.Duration {
	return func(int) time.Duration { return d }
}

// Exponential doubles d after every attempt.
func Exponential(d time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		return d << uint(attempt-1)
	}
}

type stop struct {
	error
}

func (s stop) Unwrap() error {
	return s.error
}

// Stop marks err as permanent. Do returns the wrapped error immediately.
func Stop(err error) error {
	if err == nil {
		return nil
	}
	return stop{err}
}

// Do runs fn until it succeeds, returns a Stop error, ctx is done or the
// attempts are exhausted. The last error is returned.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error) error {
	attempts := p.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = wait
	}
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = fn(attempt)
		if err == nil {
			return nil
		}
		var s stop
		if errors.As(err, &s) {
			return s.error
		}
		if ctx.Err() != nil {
			return err
		}
		if attempt == attempts {
			break
		}
		var d time.Duration
		if p.Backoff != nil {
			d = p.Backoff(attempt)
		}
		if serr := sleep(ctx, d); serr != nil {
			return err
		}
	}
	return err
}

func wait(ctx context.Context, d time.Duration) error {
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
