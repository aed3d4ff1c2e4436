package retry

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/code-payments/phonelist-server/pkg/retry/backoff"
)

func TestLimit(t *testing.T) {
	ctx := context.Background()
	strategy := Limit(3)

	assert.True(t, strategy(ctx, 1, errConflict))
	assert.True(t, strategy(ctx, 2, errConflict))
	assert.False(t, strategy(ctx, 3, errConflict))
}

func TestRetriableErrors(t *testing.T) {
	ctx := context.Background()
	other := errors.New("rate limited")
	strategy := RetriableErrors(errConflict, other)

	assert.True(t, strategy(ctx, 1, errConflict))
	assert.True(t, strategy(ctx, 1, other))
	assert.True(t, strategy(ctx, 1, errors.Wrap(errConflict, "document list")))
	assert.False(t, strategy(ctx, 1, errors.New("unexpected")))
}

func TestOnRetry(t *testing.T) {
	var observed []uint
	var lastErr error
	strategy := OnRetry(func(attempts uint, err error) {
		observed = append(observed, attempts)
		lastErr = err
	})

	for i := uint(1); i <= 3; i++ {
		assert.True(t, strategy(context.Background(), i, errConflict))
	}
	assert.Equal(t, []uint{1, 2, 3}, observed)
	assert.Equal(t, errConflict, lastErr)
}

func TestBackoff_LinearIsCapped(t *testing.T) {
	ts := &recordingSleeper{}
	sleeperImpl = ts
	defer func() {
		sleeperImpl = &contextSleeper{}
	}()

	_, err := Retry(context.Background(), func(_ context.Context, _ uint) error {
		return errConflict
	},
		Limit(4),
		Backoff(backoff.Linear(100*time.Millisecond), 250*time.Millisecond),
	)
	assert.Equal(t, errConflict, err)

	// Limit declines before the final attempt sleeps
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 250 * time.Millisecond}, ts.sleeps)
}

func TestBackoff_SkippedForNonRetriableError(t *testing.T) {
	ts := &recordingSleeper{}
	sleeperImpl = ts
	defer func() {
		sleeperImpl = &contextSleeper{}
	}()

	_, err := Retry(context.Background(), func(_ context.Context, _ uint) error {
		return errors.New("store unavailable")
	},
		RetriableErrors(errConflict),
		Backoff(backoff.Linear(100*time.Millisecond), time.Second),
	)
	assert.EqualError(t, err, "store unavailable")
	assert.Empty(t, ts.sleeps)
}

func TestContextSleeper(t *testing.T) {
	s := &contextSleeper{}

	assert.NoError(t, s.Sleep(context.Background(), 0))
	assert.NoError(t, s.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, s.Sleep(ctx, 0), context.Canceled)
}

type recordingSleeper struct {
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(_ context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	return nil
}
