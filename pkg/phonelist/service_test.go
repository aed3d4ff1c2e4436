package phonelist

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/code-payments/phonelist-server/pkg/phone"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document"
	"github.com/code-payments/phonelist-server/pkg/phonelist/document/memory"
	"github.com/code-payments/phonelist-server/pkg/testutil"
)

type testEnv struct {
	ctx     context.Context
	store   *memory.Store
	service *Service
}

func setup(t *testing.T, overrides *testOverrides) *testEnv {
	testutil.DisableLogging(t)

	store := memory.New()
	return &testEnv{
		ctx:     context.Background(),
		store:   store,
		service: NewService(store, withManualTestOverrides(overrides)),
	}
}

func (e *testEnv) assertList(t *testing.T, name string, expected []string) {
	doc, err := e.store.Read(e.ctx, name)
	require.NoError(t, err)
	assert.Equal(t, expected, doc.Items)
}

func TestAddPhone_HappyPath(t *testing.T) {
	env := setup(t, &testOverrides{})

	outcome, err := env.service.AddPhone(env.ctx, "list", " 1111111111 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"1111111111"}, outcome.Added)
	assert.Empty(t, outcome.Duplicates)
	assert.Equal(t, 1, outcome.Total)
	assert.EqualValues(t, 1, outcome.Attempts)

	outcome, err = env.service.AddPhone(env.ctx, "list", "2222222222")
	require.NoError(t, err)
	assert.Equal(t, 2, outcome.Total)

	env.assertList(t, "list", []string{"1111111111", "2222222222"})
}

func TestAddPhone_Duplicate(t *testing.T) {
	env := setup(t, &testOverrides{})

	_, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	require.NoError(t, err)

	_, err = env.service.AddPhone(env.ctx, "list", "1111111111")
	assert.Equal(t, ErrDuplicatePhone, err)

	env.assertList(t, "list", []string{"1111111111"})
	assert.Equal(t, 1, env.store.WriteCount("list"))
}

func TestAddPhone_ValidationNeverTouchesStore(t *testing.T) {
	env := setup(t, &testOverrides{})

	for raw, expected := range map[string]error{
		"":              phone.ErrMissingValue,
		"   ":           phone.ErrMissingValue,
		"123":           phone.ErrInvalidLength,
		"12345678901":   phone.ErrInvalidLength,
		"12345abcde":    phone.ErrInvalidFormat,
		"123-456-789":   phone.ErrInvalidLength,
		"(12)456789":    phone.ErrInvalidFormat,
		"１２３４５６７８９０": phone.ErrInvalidFormat,
	} {
		_, err := env.service.AddPhone(env.ctx, "list", raw)
		assert.Equal(t, expected, err, raw)
	}

	_, err := env.service.AddPhone(env.ctx, "../list", "1111111111")
	assert.True(t, errors.Is(err, document.ErrInvalidName))

	assert.Equal(t, 0, env.store.ReadCount("list"))
	assert.Equal(t, 0, env.store.WriteCount("list"))
}

func TestAddPhones_DedupWithinBatch(t *testing.T) {
	env := setup(t, &testOverrides{})

	outcome, err := env.service.AddPhones(env.ctx, "list", []string{"1111111111", "1111111111", "2222222222"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1111111111", "2222222222"}, outcome.Added)
	assert.Empty(t, outcome.Duplicates)
	assert.Equal(t, 2, outcome.Total)

	env.assertList(t, "list", []string{"1111111111", "2222222222"})
}

func TestAddPhones_ExistingDuplicates(t *testing.T) {
	env := setup(t, &testOverrides{})

	_, err := env.service.AddPhones(env.ctx, "list", []string{"1111111111", "2222222222"})
	require.NoError(t, err)

	outcome, err := env.service.AddPhones(env.ctx, "list", []string{"2222222222", "3333333333"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3333333333"}, outcome.Added)
	assert.Equal(t, []string{"2222222222"}, outcome.Duplicates)
	assert.Equal(t, 3, outcome.Total)

	env.assertList(t, "list", []string{"1111111111", "2222222222", "3333333333"})
}

func TestAddPhones_NoNewItemsSkipsWrite(t *testing.T) {
	env := setup(t, &testOverrides{})

	_, err := env.service.AddPhones(env.ctx, "list", []string{"1111111111"})
	require.NoError(t, err)
	require.Equal(t, 1, env.store.WriteCount("list"))

	outcome, err := env.service.AddPhones(env.ctx, "list", []string{"1111111111", " 1111111111"})
	require.NoError(t, err)
	assert.Empty(t, outcome.Added)
	assert.Equal(t, []string{"1111111111", "1111111111"}, outcome.Duplicates)
	assert.Equal(t, 1, outcome.Total)

	assert.Equal(t, 1, env.store.WriteCount("list"))
}

func TestAddPhones_InvalidBatch(t *testing.T) {
	env := setup(t, &testOverrides{})

	_, err := env.service.AddPhones(env.ctx, "list", nil)
	assert.Equal(t, phone.ErrEmptyBatch, err)

	_, err = env.service.AddPhones(env.ctx, "list", []string{"1111111111", " 12 ", "2222222222", "abcdefghij"})
	var batchErr *phone.BatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, []string{" 12 ", "abcdefghij"}, batchErr.Values())

	assert.Equal(t, 0, env.store.ReadCount("list"))
	assert.Equal(t, 0, env.store.WriteCount("list"))
}

func TestAddPhone_ConflictRetriedWithFreshMerge(t *testing.T) {
	env := setup(t, &testOverrides{})

	// Another writer lands its number between our read and first write
	env.store.SetWriteHook(memory.ConcurrentAppend([]string{"9999999999"}, 1))

	outcome, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	require.NoError(t, err)
	assert.EqualValues(t, 2, outcome.Attempts)
	assert.Equal(t, []string{"1111111111"}, outcome.Added)
	assert.Equal(t, 2, outcome.Total)

	assert.Equal(t, 2, env.store.ReadCount("list"))
	assert.Equal(t, 2, env.store.WriteCount("list"))
	env.assertList(t, "list", []string{"9999999999", "1111111111"})
}

func TestAddPhone_ConcurrentWriterAddsSameNumber(t *testing.T) {
	env := setup(t, &testOverrides{})

	env.store.SetWriteHook(memory.ConcurrentAppend([]string{"1111111111"}, 1))

	_, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	assert.Equal(t, ErrDuplicatePhone, err)

	env.assertList(t, "list", []string{"1111111111"})
}

func TestAddPhones_ConcurrentWriterOverlaps(t *testing.T) {
	env := setup(t, &testOverrides{})

	env.store.SetWriteHook(memory.ConcurrentAppend([]string{"2222222222", "9999999999"}, 1))

	outcome, err := env.service.AddPhones(env.ctx, "list", []string{"1111111111", "2222222222"})
	require.NoError(t, err)
	assert.Equal(t, []string{"1111111111"}, outcome.Added)
	assert.Equal(t, []string{"2222222222"}, outcome.Duplicates)
	assert.Equal(t, 3, outcome.Total)

	env.assertList(t, "list", []string{"2222222222", "9999999999", "1111111111"})
}

func TestAddPhone_RetryExhausted(t *testing.T) {
	env := setup(t, &testOverrides{})

	_, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	require.NoError(t, err)

	env.store.SetWriteHook(memory.AlwaysConflict)

	_, err = env.service.AddPhone(env.ctx, "list", "2222222222")
	assert.Equal(t, ErrRetryExhausted, err)

	// 1 successful write, then exactly the max number of attempts
	assert.Equal(t, 1+defaultMaxAttempts, env.store.WriteCount("list"))

	env.store.SetWriteHook(nil)
	env.assertList(t, "list", []string{"1111111111"})
}

func TestAddPhone_LinearBackoffBetweenConflicts(t *testing.T) {
	env := setup(t, &testOverrides{
		baseBackoff: 20 * time.Millisecond,
	})

	env.store.SetWriteHook(memory.AlwaysConflict)

	start := time.Now()
	_, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	assert.Equal(t, ErrRetryExhausted, err)

	// 20ms after the first conflict, 40ms after the second, none after the last
	assert.True(t, time.Since(start) >= 60*time.Millisecond)
}

func TestAddPhone_MaxAttemptsConfigurable(t *testing.T) {
	env := setup(t, &testOverrides{maxAttempts: 5})

	env.store.SetWriteHook(memory.AlwaysConflict)

	_, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	assert.Equal(t, ErrRetryExhausted, err)
	assert.Equal(t, 5, env.store.WriteCount("list"))
}

func TestAddPhone_StoreErrors(t *testing.T) {
	env := setup(t, &testOverrides{})

	env.store.SetReadError(errors.New("unavailable"))
	_, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	assert.True(t, document.IsStoreError(err))
	assert.Equal(t, 1, env.store.ReadCount("list"))
	assert.Equal(t, 0, env.store.WriteCount("list"))

	env.store.SetReadError(nil)
	env.store.SetWriteHook(func(_ context.Context, _ *memory.Store, name string, _ int) error {
		return document.NewStoreError("write", name, errors.New("bad gateway"))
	})
	_, err = env.service.AddPhone(env.ctx, "list", "1111111111")
	assert.True(t, document.IsStoreError(err))

	// Store errors during writes aren't retried
	assert.Equal(t, 1, env.store.WriteCount("list"))
}

func TestAddPhone_NotConfigured(t *testing.T) {
	env := setup(t, &testOverrides{})

	env.store.SetWriteHook(func(_ context.Context, _ *memory.Store, _ string, _ int) error {
		return document.ErrNotConfigured
	})

	_, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	assert.Equal(t, document.ErrNotConfigured, err)
}

func TestAddPhone_Timeout(t *testing.T) {
	env := setup(t, &testOverrides{
		baseBackoff: time.Minute,
	})

	env.store.SetWriteHook(memory.AlwaysConflict)

	ctx, cancel := context.WithTimeout(env.ctx, 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := env.service.AddPhone(ctx, "list", "1111111111")
	assert.Equal(t, ErrTimeout, err)
	assert.True(t, time.Since(start) < 10*time.Second)

	// Abandoned during the first backoff
	assert.Equal(t, 1, env.store.WriteCount("list"))
}

func TestAddPhone_MutationTimeout(t *testing.T) {
	env := setup(t, &testOverrides{
		baseBackoff:     time.Minute,
		mutationTimeout: 50 * time.Millisecond,
	})

	env.store.SetWriteHook(memory.AlwaysConflict)

	_, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	assert.Equal(t, ErrTimeout, err)
}

func TestAddPhone_CancelledContext(t *testing.T) {
	env := setup(t, &testOverrides{})

	ctx, cancel := context.WithCancel(env.ctx)
	cancel()

	_, err := env.service.AddPhone(ctx, "list", "1111111111")
	assert.Equal(t, ErrTimeout, err)
	assert.Equal(t, 0, env.store.ReadCount("list"))
}

func TestGetPhones(t *testing.T) {
	env := setup(t, &testOverrides{})

	phones, err := env.service.GetPhones(env.ctx, "missing")
	require.NoError(t, err)
	assert.NotNil(t, phones)
	assert.Empty(t, phones)

	_, err = env.service.AddPhones(env.ctx, "list", []string{"2222222222", "1111111111"})
	require.NoError(t, err)

	phones, err = env.service.GetPhones(env.ctx, "list")
	require.NoError(t, err)
	assert.Equal(t, []string{"2222222222", "1111111111"}, phones)

	_, err = env.service.GetPhones(env.ctx, "")
	assert.True(t, errors.Is(err, document.ErrInvalidName))
}

func TestGetPhones_DegradesOnStoreErrors(t *testing.T) {
	env := setup(t, &testOverrides{})

	_, err := env.service.AddPhone(env.ctx, "list", "1111111111")
	require.NoError(t, err)

	env.store.SetReadError(errors.New("unavailable"))

	phones, err := env.service.GetPhones(env.ctx, "list")
	require.NoError(t, err)
	assert.NotNil(t, phones)
	assert.Empty(t, phones)
}

func TestGetPhones_NotConfigured(t *testing.T) {
	env := setup(t, &testOverrides{})

	env.store.SetReadError(document.ErrNotConfigured)

	_, err := env.service.GetPhones(env.ctx, "list")
	assert.Equal(t, document.ErrNotConfigured, err)
}
