// Package backoff provides backoff strategies for retry.
package backoff

import (
	"math"
	"time"
)

// Strategy returns how long to wait after the given failed attempt. attempts
// starts at 1.
type Strategy func(attempts uint) time.Duration

// Linear returns a strategy that linearly increases based off of the number of
// attempts. It saturates rather than overflowing.
//
// delay = baseDelay * attempts
// Ex. Linear(100*time.Millisecond) = 100ms, 200ms, 300ms, ...
func Linear(baseDelay time.Duration) Strategy {
	return func(attempts uint) time.Duration {
		if baseDelay <= 0 {
			return 0
		}
		if attempts > uint(math.MaxInt64/int64(baseDelay)) {
			return math.MaxInt64
		}
		return baseDelay * time.Duration(attempts)
	}
}
