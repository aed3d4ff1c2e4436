package retry

import (
	"context"
	"errors"
	"time"

	"github.com/code-payments/phonelist-server/pkg/retry/backoff"
)

// Strategy decides whether another attempt should follow a failed one.
// attempts is the number of attempts made so far.
type Strategy func(ctx context.Context, attempts uint, err error) bool

// Limit allows at most maxAttempts attempts in total
func Limit(maxAttempts uint) Strategy {
	return func(_ context.Context, attempts uint, _ error) bool {
		return attempts < maxAttempts
	}
}

// RetriableErrors only retries errors matching one of the provided errors, as
// determined by errors.Is
func RetriableErrors(retriableErrors ...error) Strategy {
	return func(_ context.Context, _ uint, err error) bool {
		for _, retriable := range retriableErrors {
			if errors.Is(err, retriable) {
				return true
			}
		}
		return false
	}
}

// OnRetry calls fn before every retry. It never prevents one.
func OnRetry(fn func(attempts uint, err error)) Strategy {
	return func(_ context.Context, attempts uint, err error) bool {
		fn(attempts, err)
		return true
	}
}

// Backoff sleeps for the delay given by strategy, capped at maxBackoff. The
// sleep ends early when the context is done, and the next loop iteration
// reports the context's error.
func Backoff(strategy backoff.Strategy, maxBackoff time.Duration) Strategy {
	return func(ctx context.Context, attempts uint, _ error) bool {
		delay := strategy(attempts)
		if delay > maxBackoff {
			delay = maxBackoff
		}
		_ = sleeperImpl.Sleep(ctx, delay)
		return true
	}
}

type sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type contextSleeper struct{}

func (s *contextSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

var sleeperImpl sleeper = &contextSleeper{}
