// Package retry runs an action until it succeeds or one of its strategies
// gives up.
package retry

import (
	"context"
)

// Action is a function to be performed in a retriable manner. The attempt
// number starts at 1.
type Action func(ctx context.Context, attempt uint) error

// Retry executes action until it succeeds, the context is done, or a strategy
// declines another attempt. Strategies are evaluated in order after every
// failed attempt, so a Backoff placed last only sleeps when every earlier
// strategy agreed to retry.
//
// The number of attempts made is returned alongside the last error. A context
// that is done before an attempt starts ends the loop with the context's error.
func Retry(ctx context.Context, action Action, strategies ...Strategy) (uint, error) {
	var attempts uint
	for {
		if err := ctx.Err(); err != nil {
			return attempts, err
		}

		attempts++
		err := action(ctx, attempts)
		if err == nil {
			return attempts, nil
		}

		for _, strategy := range strategies {
			if !strategy(ctx, attempts, err) {
				return attempts, err
			}
		}
	}
}
